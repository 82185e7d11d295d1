// Package github is a small client for the GitHub repository contents API,
// scoped to a single file in a single repository.
//
// Only the two calls the guestbook needs are implemented: read a file with
// its blob sha, and create-or-update it. There is no retry, rate limit
// tracking or ETag caching; every failure is returned to the caller.
//
// Errors are either *APIError (the server answered with a non-2xx status)
// or a wrapped transport/decoding error. Callers branch on IsNotFound,
// IsUnauthorized and IsConflict.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/linnemanlabs-guestbook/internal/log"
	"github.com/keithlinneman/linnemanlabs-guestbook/internal/xerrors"
)

const (
	DefaultBaseURL = "https://api.github.com"

	// media type the contents endpoints are pinned to
	mediaType  = "application/vnd.github.v3+json"
	apiVersion = "2022-11-28"

	// GitHub error bodies are small; cap what we buffer from a misbehaving proxy
	maxResponseBytes = 4 << 20
)

// Operation names used for logging and the OnResponse hook.
const (
	OpGetContents = "get_contents"
	OpPutContents = "put_contents"
)

type Config struct {
	// BaseURL defaults to https://api.github.com and must be HTTPS.
	BaseURL string

	// Token is sent as a bearer credential. An empty token is allowed so the
	// process can start, but Configured() reports false.
	Token string

	// Repo is "owner/name".
	Repo string

	// Path of the file inside the repository, without a leading slash.
	Path string

	// Branch is optional; empty means the repository default branch.
	Branch string

	UserAgent string

	// HTTPClient defaults to a client with an otelhttp transport.
	HTTPClient *http.Client

	Logger log.Logger

	// OnResponse is called once per request with the HTTP status
	// (0 on transport failure) and elapsed time.
	OnResponse func(op string, status int, d time.Duration)
}

type Client struct {
	endpoint   string
	token      string
	branch     string
	userAgent  string
	httpClient *http.Client
	logger     log.Logger
	onResponse func(op string, status int, d time.Duration)
}

// FileContent is the decoded result of GetContents.
type FileContent struct {
	Path     string
	SHA      string
	Size     int64
	Encoding string
	Content  []byte
}

// PutContentsRequest is the body of a create-or-update call. SHA must be
// the blob sha of the file being replaced, or nil to create the file.
type PutContentsRequest struct {
	Message string
	Content []byte
	SHA     *string
}

type PutContentsResult struct {
	SHA       string
	CommitSHA string
}

// wire types

type contentsResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

type putContentsBody struct {
	Message string  `json:"message"`
	Content string  `json:"content"`
	SHA     *string `json:"sha,omitempty"`
	Branch  string  `json:"branch,omitempty"`
}

type putContentsResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

func NewClient(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(base, "https://") {
		return nil, xerrors.Newf("github: API client requires HTTPS (got %q)", base)
	}

	owner, name, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, xerrors.Newf("github: repo must be owner/name (got %q)", cfg.Repo)
	}
	p := strings.Trim(cfg.Path, "/")
	if p == "" {
		return nil, xerrors.New("github: file path is required")
	}

	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	endpoint := base + "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name) + "/contents/" + strings.Join(segs, "/")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	lg := cfg.Logger
	if lg == nil {
		lg = log.Nop()
	}

	return &Client{
		endpoint:   endpoint,
		token:      cfg.Token,
		branch:     cfg.Branch,
		userAgent:  cfg.UserAgent,
		httpClient: hc,
		logger:     lg.With("github_repo", cfg.Repo, "github_path", p),
		onResponse: cfg.OnResponse,
	}, nil
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool { return c.token != "" }

// GetContents fetches the file and its blob sha. A missing file is returned
// as an *APIError with StatusCode 404; use IsNotFound.
func (c *Client) GetContents(ctx context.Context) (*FileContent, error) {
	u := c.endpoint
	if c.branch != "" {
		u += "?ref=" + url.QueryEscape(c.branch)
	}

	body, err := c.do(ctx, OpGetContents, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var resp contentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, xerrors.Wrap(err, "github: decode contents response")
	}
	if resp.Type != "" && resp.Type != "file" {
		return nil, xerrors.Newf("github: %s is a %s, not a file", resp.Path, resp.Type)
	}

	out := &FileContent{
		Path:     resp.Path,
		SHA:      resp.SHA,
		Size:     resp.Size,
		Encoding: resp.Encoding,
	}
	switch resp.Encoding {
	case "base64":
		// GitHub wraps the payload at 60 columns
		raw := strings.NewReplacer("\n", "", "\r", "").Replace(resp.Content)
		out.Content, err = base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, xerrors.Wrap(err, "github: decode base64 content")
		}
	case "":
		if resp.Content != "" || resp.Size > 0 {
			return nil, xerrors.New("github: contents response has no encoding")
		}
	default:
		// "none" is returned for files between 1 and 100 MB
		return nil, xerrors.Newf("github: unsupported content encoding %q (size %d)", resp.Encoding, resp.Size)
	}
	return out, nil
}

// PutContents creates or replaces the file.
func (c *Client) PutContents(ctx context.Context, req PutContentsRequest) (*PutContentsResult, error) {
	payload, err := json.Marshal(putContentsBody{
		Message: req.Message,
		Content: base64.StdEncoding.EncodeToString(req.Content),
		SHA:     req.SHA,
		Branch:  c.branch,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "github: encode put body")
	}

	body, err := c.do(ctx, OpPutContents, http.MethodPut, c.endpoint, payload)
	if err != nil {
		return nil, err
	}

	var resp putContentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, xerrors.Wrap(err, "github: decode put response")
	}
	return &PutContentsResult{SHA: resp.Content.SHA, CommitSHA: resp.Commit.SHA}, nil
}

func (c *Client) do(ctx context.Context, op, method, u string, payload []byte) ([]byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, xerrors.Wrap(err, "github: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", mediaType)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, time.Since(start))
		c.logger.Warn(ctx, "github request failed", "op", op, "error", err)
		return nil, xerrors.Wrapf(err, "github: %s %s", method, op)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	c.observe(op, resp.StatusCode, elapsed)
	if err != nil {
		return nil, xerrors.Wrapf(err, "github: read %s response", op)
	}

	c.logger.Info(ctx, "github response",
		"op", op,
		"status", resp.StatusCode,
		"duration_seconds", elapsed.Seconds(),
		"github_request_id", resp.Header.Get("X-GitHub-Request-Id"),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) observe(op string, status int, d time.Duration) {
	if c.onResponse != nil {
		c.onResponse(op, status, d)
	}
}
