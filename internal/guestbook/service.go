// Package guestbook appends visitor messages to a text file kept in a
// GitHub repository.
//
// Submit is a single read-modify-write: fetch the file and its blob sha,
// append one formatted entry, write it back presenting that sha (or none
// when the file does not exist yet). Concurrent submitters racing on the
// same sha are left to GitHub's own check; a rejected write surfaces as
// KindUpstreamWrite and is not retried.
package guestbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/github"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
)

// Store is the remote file the guestbook lives in. *github.Client satisfies it.
type Store interface {
	Configured() bool
	GetContents(ctx context.Context) (*github.FileContent, error)
	PutContents(ctx context.Context, req github.PutContentsRequest) (*github.PutContentsResult, error)
}

type Options struct {
	Store  Store
	Logger log.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// Location used for entry timestamps; nil means time.Local.
	Location *time.Location

	// OnResult is called once per Submit with "success" or the failure kind.
	OnResult func(result string)
}

type Service struct {
	store    Store
	logger   log.Logger
	now      func() time.Time
	loc      *time.Location
	onResult func(string)
	tracer   trace.Tracer
}

// Receipt describes a stored submission.
type Receipt struct {
	Message   string
	Created   bool
	SHA       string
	CommitSHA string
}

func NewService(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		logger:   opts.Logger,
		now:      opts.Now,
		loc:      opts.Location,
		onResult: opts.OnResult,
		tracer:   otel.Tracer("linnemanlabs-guestbook/guestbook"),
	}
	if s.logger == nil {
		s.logger = log.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s
}

// Submit validates sub and appends it to the remote file. Every failure is
// an *Error; use KindOf to classify it.
func (s *Service) Submit(ctx context.Context, sub Submission) (rec *Receipt, err error) {
	ctx, span := s.tracer.Start(ctx, "guestbook.submit",
		trace.WithAttributes(
			attribute.Int("guestbook.author_len", len(sub.Author)),
			attribute.Int("guestbook.content_len", len(sub.Content)),
		),
	)
	defer func() {
		result := "success"
		if err != nil {
			result = KindOf(err).String()
			span.SetStatus(codes.Error, result)
			span.RecordError(err)
		}
		span.SetAttributes(attribute.String("guestbook.result", result))
		span.End()
		if s.onResult != nil {
			s.onResult(result)
		}
	}()

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if s.store == nil || !s.store.Configured() {
		return nil, &Error{Kind: KindConfiguration, Msg: MsgMisconfigured}
	}

	prior, sha, found, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	entry := FormatEntry(sub.Author, s.now(), sub.Content, s.loc)
	next := make([]byte, 0, len(prior)+len(entry))
	next = append(next, prior...)
	next = append(next, entry...)

	res, err := s.store.PutContents(ctx, github.PutContentsRequest{
		Message: CommitMessage(sub.Author),
		Content: next,
		SHA:     sha,
	})
	if err != nil {
		status := github.StatusCode(err)
		return nil, &Error{
			Kind:   KindUpstreamWrite,
			Msg:    MsgSubmitFailed,
			Status: status,
			Body:   apiBody(err),
			Err:    err,
		}
	}

	created := !found
	s.logger.Info(ctx, "guestbook entry appended",
		"created", created,
		"bytes", len(next),
		"commit_sha", res.CommitSHA,
	)
	return &Receipt{
		Message:   MsgSubmitted,
		Created:   created,
		SHA:       res.SHA,
		CommitSHA: res.CommitSHA,
	}, nil
}

// fetch returns the current content and blob sha. A missing file is empty
// content with found false. The sha is nil when absent or empty so the
// write omits it.
func (s *Service) fetch(ctx context.Context) (content []byte, sha *string, found bool, err error) {
	fc, err := s.store.GetContents(ctx)
	switch {
	case err == nil:
		if fc.SHA != "" {
			v := fc.SHA
			sha = &v
		}
		return fc.Content, sha, true, nil
	case github.IsNotFound(err):
		s.logger.Info(ctx, "guestbook file not found, creating")
		return nil, nil, false, nil
	case github.IsUnauthorized(err):
		return nil, nil, false, &Error{
			Kind:   KindUpstreamAuth,
			Msg:    MsgUpstreamAuth,
			Status: github.StatusCode(err),
			Body:   apiBody(err),
			Err:    err,
		}
	}

	status := github.StatusCode(err)
	msg := MsgSubmitFailed
	if status != 0 {
		msg = fmt.Sprintf("GitHub API错误: %d", status)
	}
	return nil, nil, false, &Error{
		Kind:   KindUpstream,
		Msg:    msg,
		Status: status,
		Body:   apiBody(err),
		Err:    err,
	}
}

func apiBody(err error) string {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}
