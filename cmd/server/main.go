package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/github"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/guestbook"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/health"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/prof"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/secrets"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/submithttp"
	v "github.com/keithlinneman/linnemanlabs-guestbook/internal/version"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/xerrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix GUESTBOOK_ and validate
	cfg.FillFromEnv(flag.CommandLine, "GUESTBOOK_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	loc, err := conf.Location()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		BuildId:           vi.BuildId,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"trusted_proxy_hops", conf.TrustedProxyHops,
		"allowed_origin", conf.AllowedOrigin,
		"github_api_url", conf.GitHubAPIURL,
		"github_repo", conf.GitHubRepo,
		"github_path", conf.GitHubPath,
		"github_branch", conf.GitHubBranch,
		"github_token_ssm_param", conf.GitHubTokenSSMParam,
		"entry_timezone", loc.String(),
		"drain_period", conf.DrainPeriod,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"build_id":  vi.BuildId,
			"source":    "go-agent",
		},
		OnActive: m.SetProfilingActive,
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
		Repo:      conf.GitHubRepo,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
		shutdownOTEL = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// Resolve the GitHub credential. A missing token is not fatal: the
	// process serves, readiness fails and submissions answer 服务器配置错误.
	token, tokenSource, err := resolveToken(ctx, conf, os.LookupEnv, func(ctx context.Context) (secretGetter, error) {
		sm, err := secrets.NewSSM(ctx, secrets.SSMOptions{Logger: L})
		if err != nil {
			return nil, err
		}
		return sm, nil
	})
	if err != nil {
		L.Error(ctx, err, "failed to resolve github token")
	}
	if token == "" {
		L.Warn(ctx, "no github token configured, submissions will fail until one is provided",
			"env_vars", cfg.TokenEnvVars,
			"ssm_param", conf.GitHubTokenSSMParam,
		)
	} else {
		L.Info(ctx, "github token configured", "token_source", tokenSource)
	}
	m.SetCredentialConfigured(token != "")

	ghClient, err := github.NewClient(github.Config{
		BaseURL:    conf.GitHubAPIURL,
		Token:      token,
		Repo:       conf.GitHubRepo,
		Path:       conf.GitHubPath,
		Branch:     conf.GitHubBranch,
		UserAgent:  vi.UserAgent(),
		Logger:     L.With("component", "github"),
		OnResponse: m.ObserveGitHubRequest,
	})
	if err != nil {
		L.Error(ctx, xerrors.Wrap(err, "github client"), "failed to create github client")
		os.Exit(1)
	}

	svc := guestbook.NewService(guestbook.Options{
		Store:    ghClient,
		Logger:   L.With("component", "guestbook"),
		Location: loc,
		OnResult: m.IncSubmission,
	})
	submitAPI := submithttp.NewAPI(svc, submithttp.Options{
		AllowedOrigin: conf.AllowedOrigin,
		Logger:        L,
	})

	// setup toggle for server shutdown
	var gate health.ShutdownGate

	// ready only while not draining and a credential is present
	readiness := health.All(
		gate.Probe(),
		health.Require(ghClient.Configured, "github: no credential configured"),
	)

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		APIRoutes:    func(r chi.Router) { submitAPI.RegisterRoutes(r) },
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
	})
	if err != nil {
		L.Error(ctx, err, "failed to start public http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// admin/ops listener: metrics, health checks, pprof
	// requests from public addresses are rejected in case the port is ever exposed
	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "reason", err.Error())
	}

	// wait for ctrl+c / sigterm
	<-ctx.Done()
	stop()

	bg := context.Background()
	L.Info(bg, "shutdown signal received")

	// fail readiness so the load balancer stops routing here
	gate.Set("draining")
	L.Info(bg, "shutdown gate closed, draining", "drain_period", conf.DrainPeriod)

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.DrainPeriod):
		L.Info(bg, "drain period complete")
	case <-forceCh:
		L.Warn(bg, "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(bg, httpserver.DefaultWriteTimeout+5*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "public http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "otel shutdown")
	}
	stopProf()

	L.Info(bg, "shutdown complete")
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when the unit is Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return xerrors.New("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return xerrors.Wrap(err, "systemd notify dial")
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return xerrors.Wrap(err, "systemd notify write")
	}
	return nil
}
