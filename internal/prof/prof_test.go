package prof

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
)

func TestStart_NotRunning(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"disabled", Options{}, ""},
		{"disabled ignores the rest", Options{AuthToken: "secret", Tags: map[string]string{"k": "v"}, BlockProfileRate: 999}, ""},
		{"empty address", Options{Enabled: true, AppName: "linnemanlabs-guestbook"}, "invalid server address"},
		{"address without scheme", Options{Enabled: true, ServerAddress: "pyroscope:4040"}, "invalid server address"},
		{"unsupported scheme", Options{Enabled: true, ServerAddress: "ftp://pyroscope"}, "invalid server address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var active []bool
			tt.opts.OnActive = func(a bool) { active = append(active, a) }

			ctx := log.WithContext(context.Background(), log.Nop())
			stop, err := Start(ctx, tt.opts)

			switch {
			case tt.wantErr == "" && err != nil:
				t.Fatalf("Start: %v", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Fatalf("Start err = %v, want %q", err, tt.wantErr)
			}
			if stop == nil {
				t.Fatal("stop func is nil")
			}
			stop()
			stop()

			if diff := cmp.Diff([]bool{false}, active); diff != "" {
				t.Fatalf("OnActive calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStart_NoLoggerInContext(t *testing.T) {
	stop, err := Start(context.Background(), Options{Enabled: true})
	if err == nil {
		t.Fatal("expected error for empty server address")
	}
	stop()
}

func TestCheckServerAddress(t *testing.T) {
	for addr, ok := range map[string]bool{
		"http://localhost:4040":        true,
		"https://profiles.example.org": true,
		"":                             false,
		"localhost:4040":               false,
		"https://":                     false,
	} {
		if err := checkServerAddress(addr); (err == nil) != ok {
			t.Errorf("checkServerAddress(%q) = %v, want ok=%v", addr, err, ok)
		}
	}
}

func TestBuildConfig(t *testing.T) {
	opts := Options{
		AppName:       "linnemanlabs-guestbook",
		ServerAddress: "https://pyro:4040",
		TenantID:      "t1",
		Tags:          map[string]string{"component": "server"},
	}

	cfg := buildConfig(opts)
	if cfg.ApplicationName != opts.AppName || cfg.ServerAddress != opts.ServerAddress || cfg.TenantID != "t1" {
		t.Fatalf("config = %+v", cfg)
	}
	if diff := cmp.Diff(opts.Tags, cfg.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.ProfileTypes) != len(profileTypes) {
		t.Fatalf("profile types = %d, want %d", len(cfg.ProfileTypes), len(profileTypes))
	}
	if cfg.HTTPHeaders != nil {
		t.Fatalf("HTTPHeaders = %v without a token", cfg.HTTPHeaders)
	}

	opts.AuthToken = "tok"
	if got := buildConfig(opts).HTTPHeaders["Authorization"]; got != "Bearer tok" {
		t.Fatalf("Authorization = %q", got)
	}
}
