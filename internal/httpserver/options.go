package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/health"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
)

type Options struct {
	Logger log.Logger
	Port   int

	// Health and Readiness are mounted at /-/healthy and /-/ready when set.
	Health    health.Probe
	Readiness health.Probe

	// APIRoutes registers application routes on the router.
	APIRoutes func(chi.Router)

	// MaxBodyBytes defaults to httpmw.DefaultMaxBody.
	MaxBodyBytes int64

	UseRecoverMW bool
	OnPanic      func() // e.g. increment a panic counter
	MetricsMW    func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
}
