// Package secrets resolves credentials the service should not take as flags.
package secrets

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/xerrors"
)

// ParameterGetter is the subset of *ssm.Client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SSMOptions struct {
	Logger log.Logger

	// Client overrides the SSM client; tests use this.
	Client ParameterGetter

	// AWS config (uses default if nil and Client is nil)
	AWSConfig *aws.Config
}

// SSM reads SecureString parameters from Parameter Store.
type SSM struct {
	client ParameterGetter
	logger log.Logger
}

// NewSSM builds an SSM reader from opts, loading the default AWS config
// when no client or config is given.
func NewSSM(ctx context.Context, opts SSMOptions) (*SSM, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	client := opts.Client
	if client == nil {
		var awsCfg aws.Config
		if opts.AWSConfig != nil {
			awsCfg = *opts.AWSConfig
		} else {
			var err error
			awsCfg, err = config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, xerrors.Wrap(err, "load AWS config")
			}
		}
		client = ssm.NewFromConfig(awsCfg)
	}
	return &SSM{client: client, logger: opts.Logger}, nil
}

// Get returns the decrypted, whitespace-trimmed value of name. An empty
// value is an error.
func (s *SSM) Get(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", xerrors.New("SSM parameter name is required")
	}
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", name)
	}

	v := strings.TrimSpace(*out.Parameter.Value)
	if v == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", name)
	}

	// never log the value
	s.logger.Info(ctx, "loaded secret from SSM", "param", name, "param_version", out.Parameter.Version)
	return v, nil
}
