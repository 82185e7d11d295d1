// Package prof pushes continuous profiles to a Pyroscope server.
package prof

import (
	"context"
	"net/url"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/xerrors"
)

type Options struct {
	Enabled       bool
	AppName       string
	ServerAddress string
	// AuthToken is sent as a bearer token when set.
	AuthToken            string
	TenantID             string
	Tags                 map[string]string
	ProfileMutexFraction int
	BlockProfileRate     int

	// OnActive reports whether the profiler ended up running. Called once
	// from Start and again with false from the returned stop func.
	OnActive func(active bool)
}

// profileTypes covers CPU, heap, goroutines and contention. Mutex and block
// profiles stay empty unless the matching runtime rates are set.
var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockCount,
	pyroscope.ProfileBlockDuration,
}

func checkServerAddress(addr string) error {
	u, err := url.Parse(addr)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return xerrors.Newf("invalid server address (%q)", addr)
	}
	return nil
}

func buildConfig(opts Options) pyroscope.Config {
	cfg := pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		TenantID:        opts.TenantID,
		Tags:            opts.Tags,
		ProfileTypes:    profileTypes,
	}
	if opts.AuthToken != "" {
		cfg.HTTPHeaders = map[string]string{"Authorization": "Bearer " + opts.AuthToken}
	}
	return cfg
}

// Start begins profiling when enabled. The returned stop func is always
// non-nil, even alongside an error.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)
	report := func(active bool) {
		if opts.OnActive != nil {
			opts.OnActive(active)
		}
	}
	noop := func() {}

	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		report(false)
		return noop, nil
	}

	if err := checkServerAddress(opts.ServerAddress); err != nil {
		L.Error(ctx, err, "pyroscope options")
		report(false)
		return noop, err
	}

	if opts.ProfileMutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.ProfileMutexFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}

	kv := []any{"server_address", opts.ServerAddress, "app_name", opts.AppName}

	profiler, err := pyroscope.Start(buildConfig(opts))
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", kv...)
		report(false)
		return noop, xerrors.Wrap(err, "pyroscope start")
	}
	report(true)
	L.Info(ctx, "pyroscope started", kv...)

	return func() {
		report(false)
		profiler.Stop()
		L.Info(context.Background(), "pyroscope stopped", kv...)
	}, nil
}
