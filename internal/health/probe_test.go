package health

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// errString renders a probe result as "" for pass or the failure reason.
func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func failing(reason string) Probe {
	return CheckFunc(func(context.Context) error { return errors.New(reason) })
}

func TestCombinators(t *testing.T) {
	pass := Fixed(true, "ignored")

	tests := []struct {
		name  string
		probe Probe
		want  string
	}{
		{"fixed ok", pass, ""},
		{"fixed fail", Fixed(false, "github: no credential"), "github: no credential"},
		{"fixed default reason", Fixed(false, ""), "unhealthy"},

		{"all pass", All(pass, pass), ""},
		{"all first failure wins", All(pass, failing("a"), failing("b")), "a"},
		{"all empty", All(), ""},
		{"all skips nil", All(nil, pass, nil), ""},
		{"all nil before failure", All(nil, failing("draining")), "draining"},

		{"require ok", Require(func() bool { return true }, "x"), ""},
		{"require not ok", Require(func() bool { return false }, "github: no credential"), "github: no credential"},
		{"require nil getter", Require(nil, ""), "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errString(tt.probe.Check(context.Background())); got != tt.want {
				t.Fatalf("Check = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAll_ShortCircuits(t *testing.T) {
	called := false
	later := CheckFunc(func(context.Context) error { called = true; return nil })
	if err := All(failing("first"), later).Check(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if called {
		t.Fatal("probe after a failure was evaluated")
	}
}

func TestRequire_EvaluatedPerCheck(t *testing.T) {
	ok := false
	p := Require(func() bool { return ok }, "not configured")
	if p.Check(context.Background()) == nil {
		t.Fatal("want failure while ok=false")
	}
	ok = true
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("want pass after ok flips, got %v", err)
	}
}

// ShutdownGate

func TestShutdownGate(t *testing.T) {
	var g ShutdownGate
	p := g.Probe()

	steps := []struct {
		action func()
		want   string
	}{
		{func() {}, ""},
		{func() { g.Set("shutting down") }, "shutting down"},
		{func() { g.Set("") }, "draining"},
		{func() { g.Set("second signal") }, "second signal"},
		{func() { g.Clear() }, ""},
	}
	for i, s := range steps {
		s.action()
		if got := errString(p.Check(context.Background())); got != s.want {
			t.Fatalf("step %d: Check = %q, want %q", i, got, s.want)
		}
	}
}

func TestShutdownGate_ConcurrentAccess(t *testing.T) {
	var g ShutdownGate
	p := g.Probe()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); g.Set("draining") }()
		go func() { defer wg.Done(); g.Clear() }()
		go func() { defer wg.Done(); p.Check(context.Background()) }()
	}
	wg.Wait()
}

// Readiness composition as wired by the server

func TestReadiness_GateAndCredential(t *testing.T) {
	var g ShutdownGate
	configured := false
	ready := All(g.Probe(), Require(func() bool { return configured }, "github: no credential"))

	if got := errString(ready.Check(context.Background())); got != "github: no credential" {
		t.Fatalf("without credential = %q", got)
	}
	configured = true
	if err := ready.Check(context.Background()); err != nil {
		t.Fatalf("with credential = %v", err)
	}
	g.Set("shutting down")
	if got := errString(ready.Check(context.Background())); got != "shutting down" {
		t.Fatalf("while draining = %q", got)
	}
}
