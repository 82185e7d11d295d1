package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
)

type App struct {
	LogJSON             bool
	LogLevel            string
	HTTPPort            int
	AdminPort           int
	EnablePprof         bool
	EnablePyroscope     bool
	EnableTracing       bool
	PyroServer          string
	PyroTenantID        string
	OTLPEndpoint        string
	TraceSample         float64
	StacktraceLevel     string
	IncludeErrorLinks   bool
	MaxErrorLinks       int
	TrustedProxyHops    int
	AllowedOrigin       string
	GitHubAPIURL        string
	GitHubRepo          string
	GitHubPath          string
	GitHubBranch        string
	GitHubTokenSSMParam string
	EntryTimezone       string
	DrainPeriod         time.Duration
}

// Register binds every App field to fs. Defaults live here.
func Register(fs *flag.FlagSet, c *App) {
	// guestbook
	fs.StringVar(&c.AllowedOrigin, "allowed-origin", "https://noah0627.github.io", "origin allowed to submit messages cross-origin")
	fs.StringVar(&c.GitHubAPIURL, "github-api-url", "https://api.github.com", "GitHub REST API base url (https)")
	fs.StringVar(&c.GitHubRepo, "github-repo", "noah0627/noah0627.github.io", "repository holding the guestbook file (owner/name)")
	fs.StringVar(&c.GitHubPath, "github-path", "files/website/note.txt", "path of the guestbook file inside the repository")
	fs.StringVar(&c.GitHubBranch, "github-branch", "", "branch to read and commit to (empty = repository default)")
	fs.StringVar(&c.GitHubTokenSSMParam, "github-token-ssm-param", "", "ssm parameter to read the GitHub token from when it is not in the environment")
	fs.StringVar(&c.EntryTimezone, "entry-timezone", "Local", "IANA timezone for entry timestamps")

	// listeners
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "public listen port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "ops listen port for metrics, probes and pprof (1..65535)")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 0, "reverse proxies in front of the service that append to X-Forwarded-For (0..10)")
	fs.DurationVar(&c.DrainPeriod, "drain-period", 5*time.Second, "how long readiness fails before listeners close on shutdown (0..5m)")

	// logging
	fs.BoolVar(&c.LogJSON, "log-json", true, "emit JSON logs (false = logfmt)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "minimum level: debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "attach stack traces at or above this level")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "log the wrapped error chain")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "error chain depth to log (1..64)")

	// profiling and tracing
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "serve net/http/pprof on the ops port")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "push continuous profiles to -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "pyroscope tenant (X-Scope-OrgID)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "export OTLP traces to -otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC collector (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "parent-based trace sampling ratio (0..1)")
}

// Token environment variables, checked in order.
var TokenEnvVars = []string{"GUESTBOOK_GITHUB_TOKEN", "GITHUB_TOKEN"}

// GitHubTokenFromEnv returns the first non-empty token from TokenEnvVars
// and the variable it came from.
func GitHubTokenFromEnv(lookup func(string) (string, bool)) (token, source string) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, k := range TokenEnvVars {
		if v, ok := lookup(k); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, k
			}
		}
	}
	return "", ""
}

// Location resolves EntryTimezone. "" and "Local" mean the process zone.
func (c App) Location() (*time.Location, error) {
	switch c.EntryTimezone {
	case "", "Local":
		return time.Local, nil
	}
	return time.LoadLocation(c.EntryTimezone)
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// problems collects every invalid field so operators fix them in one pass.
type problems []error

func (p *problems) addf(bad bool, format string, args ...any) {
	if bad {
		*p = append(*p, fmt.Errorf(format, args...))
	}
}

func badPort(p int) bool { return p < 1 || p > 65535 }

func badURL(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return true
	}
	if len(schemes) == 0 {
		return u.Scheme == ""
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return false
		}
	}
	return true
}

// Validate reports every out-of-range or malformed field, joined, or nil.
func Validate(c App) error {
	var p problems

	p.addf(badPort(c.HTTPPort), "invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort)
	p.addf(badPort(c.AdminPort), "invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort)
	p.addf(c.AdminPort == c.HTTPPort, "ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort)

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		p.addf(true, "invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			p.addf(true, "invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err)
		}
	}
	p.addf(c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64),
		"MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks)

	p.addf(c.TraceSample < 0 || c.TraceSample > 1, "invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample)
	if c.EnableTracing {
		// the grpc exporter wants host:port without a scheme
		if c.OTLPEndpoint == "" {
			p.addf(true, "OTLP_ENDPOINT required when ENABLE_TRACING=true")
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			p.addf(true, "OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err)
		}
	}
	if c.EnablePyroscope {
		p.addf(c.PyroServer == "", "PYRO_SERVER required when ENABLE_PYROSCOPE=true")
		p.addf(c.PyroServer != "" && badURL(c.PyroServer), "PYRO_SERVER must be a URL (got %q)", c.PyroServer)
		p.addf(c.PyroTenantID == "", "PYRO_TENANT required when ENABLE_PYROSCOPE=true")
	}

	p.addf(c.TrustedProxyHops < 0 || c.TrustedProxyHops > 10, "TRUSTED_PROXY_HOPS must be 0..10 (got %d)", c.TrustedProxyHops)

	// echoed verbatim in Access-Control-Allow-Origin
	if u, err := url.Parse(c.AllowedOrigin); err != nil || badURL(c.AllowedOrigin) || (u.Path != "" && u.Path != "/") {
		p.addf(true, "ALLOWED_ORIGIN must be scheme://host (got %q)", c.AllowedOrigin)
	}

	p.addf(badURL(c.GitHubAPIURL, "https"), "GITHUB_API_URL must be an https URL (got %q)", c.GitHubAPIURL)
	owner, name, ok := strings.Cut(c.GitHubRepo, "/")
	p.addf(!ok || owner == "" || name == "" || strings.Contains(name, "/"), "GITHUB_REPO must be owner/name (got %q)", c.GitHubRepo)
	p.addf(strings.Trim(c.GitHubPath, "/") == "", "GITHUB_PATH is required")

	if _, err := c.Location(); err != nil {
		p.addf(true, "invalid ENTRY_TIMEZONE %q: %w", c.EntryTimezone, err)
	}
	p.addf(c.DrainPeriod < 0 || c.DrainPeriod > 5*time.Minute, "DRAIN_PERIOD must be 0..5m (got %s)", c.DrainPeriod)

	return errors.Join(p...)
}
