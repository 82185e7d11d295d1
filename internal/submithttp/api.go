// Package submithttp exposes guestbook submission over HTTP: method gating,
// CORS for the site that hosts the form, JSON in and out, and mapping of
// guestbook error kinds to status codes.
package submithttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/guestbook"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/xerrors"
)

// Route is the path the submission form posts to.
const Route = "/api/submit-message"

// DefaultAllowedOrigin is the site allowed to call Route from a browser.
const DefaultAllowedOrigin = "https://noah0627.github.io"

const msgBodyTooLarge = "请求体过大"

// Submitter is implemented by *guestbook.Service.
type Submitter interface {
	Submit(ctx context.Context, sub guestbook.Submission) (*guestbook.Receipt, error)
}

type Options struct {
	// AllowedOrigin is echoed in Access-Control-Allow-Origin.
	AllowedOrigin string
	Logger        log.Logger
}

// API implements the submission endpoint
type API struct {
	svc    Submitter
	origin string
	logger log.Logger
}

// NewAPI creates the submission handler
func NewAPI(svc Submitter, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = DefaultAllowedOrigin
	}
	return &API{
		svc:    svc,
		origin: opts.AllowedOrigin,
		logger: opts.Logger,
	}
}

// RegisterRoutes attaches the submission endpoint to the router. All
// methods are routed here so that non-POST requests get the JSON 405
// with CORS headers instead of the router's default.
func (api *API) RegisterRoutes(r chi.Router) {
	r.With(httpmw.Scope("submit_message")).HandleFunc(Route, api.HandleSubmit)
}

// SuccessResponse is the body of a stored submission.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleSubmit serves OPTIONS preflight and POST submissions
func (api *API) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	L := api.logger.With("request_id", httpmw.RequestIDFromContext(ctx))

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", api.origin)
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Add("Vary", "Origin")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		api.writeJSON(ctx, w, http.StatusMethodNotAllowed, ErrorResponse{Error: guestbook.MsgMethodNotAllowed})
		return
	}

	sub, err := decodeSubmission(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			L.Warn(ctx, "submission body too large", "limit_bytes", tooLarge.Limit)
			api.writeJSON(ctx, w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: msgBodyTooLarge})
			return
		}
		L.Warn(ctx, "undecodable submission body", "error", err)
		api.writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Error: guestbook.MsgBadRequestBody})
		return
	}

	rec, err := api.svc.Submit(ctx, sub)
	if err != nil {
		api.writeError(ctx, L, w, err)
		return
	}

	L.Info(ctx, "guestbook submission stored",
		"created", rec.Created,
		"commit_sha", rec.CommitSHA,
	)
	api.writeJSON(ctx, w, http.StatusOK, SuccessResponse{Success: true, Message: rec.Message})
}

// decodeSubmission reads exactly one JSON object; anything but whitespace
// after it is rejected.
func decodeSubmission(body io.Reader) (guestbook.Submission, error) {
	var sub guestbook.Submission
	dec := json.NewDecoder(body)
	if err := dec.Decode(&sub); err != nil {
		return sub, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return sub, err
		}
		return sub, xerrors.New("trailing data after submission body")
	}
	return sub, nil
}

func (api *API) writeError(ctx context.Context, L log.Logger, w http.ResponseWriter, err error) {
	kind := guestbook.KindOf(err)
	status := kind.HTTPStatus()

	var gerr *guestbook.Error
	errors.As(err, &gerr)
	logged := xerrors.EnsureTrace(err)

	switch {
	case kind == guestbook.KindValidation:
		L.Info(ctx, "submission rejected", "reason", guestbook.Message(err))
	case gerr != nil && gerr.Status != 0:
		// upstream body goes to the log only
		L.Error(ctx, logged, "submission failed",
			"kind", kind.String(),
			"upstream_status", gerr.Status,
			"upstream_body", gerr.Body,
		)
	default:
		L.Error(ctx, logged, "submission failed", "kind", kind.String())
	}

	api.writeJSON(ctx, w, status, ErrorResponse{Error: guestbook.Message(err)})
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
