package main

import (
	"context"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/xerrors"
)

// secretGetter is satisfied by *secrets.SSM.
type secretGetter interface {
	Get(ctx context.Context, name string) (string, error)
}

// resolveToken returns the GitHub token and where it came from. The
// environment wins; the SSM parameter is only read when no variable is set.
// An empty token with a nil error means no credential is configured.
func resolveToken(ctx context.Context, conf cfg.App, lookup func(string) (string, bool), newGetter func(context.Context) (secretGetter, error)) (token, source string, err error) {
	L := log.FromContext(ctx)

	if tok, src := cfg.GitHubTokenFromEnv(lookup); tok != "" {
		return tok, "env:" + src, nil
	}
	if conf.GitHubTokenSSMParam == "" {
		return "", "", nil
	}

	getter, err := newGetter(ctx)
	if err != nil {
		return "", "", xerrors.Wrap(err, "create ssm client")
	}
	tok, err := getter.Get(ctx, conf.GitHubTokenSSMParam)
	if err != nil {
		return "", "", xerrors.Wrapf(err, "read github token from ssm param=%s", conf.GitHubTokenSSMParam)
	}
	L.Info(ctx, "github token loaded from ssm", "param", conf.GitHubTokenSSMParam)
	return tok, "ssm:" + conf.GitHubTokenSSMParam, nil
}
