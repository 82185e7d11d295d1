package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// newTestClient points a Client at server with token auth.
func newTestClient(t *testing.T, server *httptest.Server, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:    server.URL,
		Token:      "test-token",
		Repo:       "noah0627/noah0627.github.io",
		Path:       "files/website/note.txt",
		UserAgent:  "linnemanlabs-guestbook/test",
		HTTPClient: server.Client(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

// NewClient

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"http base", Config{BaseURL: "http://api.github.com", Repo: "a/b", Path: "x"}, "requires HTTPS"},
		{"repo no slash", Config{Repo: "noslash", Path: "x"}, "owner/name"},
		{"repo empty owner", Config{Repo: "/b", Path: "x"}, "owner/name"},
		{"repo extra segment", Config{Repo: "a/b/c", Path: "x"}, "owner/name"},
		{"no path", Config{Repo: "a/b", Path: "/"}, "file path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestNewClient_DefaultsAndEndpoint(t *testing.T) {
	c, err := NewClient(Config{Repo: "owner/repo", Path: "/files/留言 板.txt"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	want := "https://api.github.com/repos/owner/repo/contents/files/%E7%95%99%E8%A8%80%20%E6%9D%BF.txt"
	if c.endpoint != want {
		t.Fatalf("endpoint = %q, want %q", c.endpoint, want)
	}
	if c.httpClient == nil {
		t.Fatal("default http client not set")
	}
	if c.Configured() {
		t.Fatal("Configured() should be false without a token")
	}
}

// GetContents

func TestGetContents_HeadersAndDecode(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotAccept, gotVersion, gotUA string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotVersion = r.Header.Get("X-GitHub-Api-Version")
		gotUA = r.Header.Get("User-Agent")

		// GitHub line-wraps base64 content
		enc := b64("作者:Bob\n时间:2025/1/5 08:05:09\n内容:hi\n\n")
		wrapped := enc[:20] + "\n" + enc[20:]
		json.NewEncoder(w).Encode(map[string]any{
			"type": "file", "encoding": "base64", "size": 42,
			"path": "files/website/note.txt", "sha": "abc123", "content": wrapped,
		})
	}))
	defer server.Close()

	fc, err := newTestClient(t, server).GetContents(context.Background())
	if err != nil {
		t.Fatalf("GetContents: %v", err)
	}

	if gotMethod != http.MethodGet {
		t.Errorf("method = %s", gotMethod)
	}
	if gotPath != "/repos/noah0627/noah0627.github.io/contents/files/website/note.txt" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAccept != "application/vnd.github.v3+json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotVersion != "2022-11-28" {
		t.Errorf("X-GitHub-Api-Version = %q", gotVersion)
	}
	if gotUA != "linnemanlabs-guestbook/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	want := &FileContent{
		Path:     "files/website/note.txt",
		SHA:      "abc123",
		Size:     42,
		Encoding: "base64",
		Content:  []byte("作者:Bob\n时间:2025/1/5 08:05:09\n内容:hi\n\n"),
	}
	if diff := cmp.Diff(want, fc); diff != "" {
		t.Fatalf("FileContent mismatch (-want +got):\n%s", diff)
	}
}

func TestGetContents_BranchRef(t *testing.T) {
	var gotRef string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRef = r.URL.Query().Get("ref")
		w.Write([]byte(`{"type":"file","encoding":"base64","content":"","sha":"s"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, func(cfg *Config) { cfg.Branch = "guestbook/main" })
	if _, err := c.GetContents(context.Background()); err != nil {
		t.Fatalf("GetContents: %v", err)
	}
	if gotRef != "guestbook/main" {
		t.Fatalf("ref = %q", gotRef)
	}
}

func TestGetContents_NotFound(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found","documentation_url":"https://docs.github.com/rest"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).GetContents(context.Background())
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false", err)
	}
	var apiErr *APIError
	if !asAPIError(err, &apiErr) {
		t.Fatal("expected *APIError")
	}
	if apiErr.Message != "Not Found" || apiErr.DocumentationURL == "" {
		t.Fatalf("APIError not parsed: %+v", apiErr)
	}
	if !strings.Contains(apiErr.Body, "Not Found") {
		t.Fatalf("Body = %q", apiErr.Body)
	}
}

func TestGetContents_Unauthorized(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).GetContents(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("IsUnauthorized(%v) = false", err)
	}
	if err.Error() != "github: HTTP 401: Bad credentials" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestGetContents_NonJSONErrorBody(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).GetContents(context.Background())
	if StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("StatusCode = %d", StatusCode(err))
	}
	if err.Error() != "github: HTTP 502" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestGetContents_RejectsDirectoryAndLargeFiles(t *testing.T) {
	tests := map[string]string{
		"directory": `[{"type":"file"}]`,
		"dir type":  `{"type":"dir","path":"files"}`,
		"too large": `{"type":"file","encoding":"none","size":2000000,"content":""}`,
		"bad b64":   `{"type":"file","encoding":"base64","content":"!!!"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server).GetContents(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if StatusCode(err) != 0 {
				t.Fatalf("decode failures should not look like API errors, got status %d", StatusCode(err))
			}
		})
	}
}

func TestGetContents_TransportError(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, server)
	server.Close()

	var status = -1
	c.onResponse = func(op string, s int, d time.Duration) { status = s }

	if _, err := c.GetContents(context.Background()); err == nil {
		t.Fatal("expected transport error")
	}
	if status != 0 {
		t.Fatalf("OnResponse status = %d, want 0 for transport failure", status)
	}
}

// PutContents

func TestPutContents_UpdateBody(t *testing.T) {
	var got map[string]any
	var gotMethod, gotCT string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":{"sha":"newblob"},"commit":{"sha":"commit1"}}`))
	}))
	defer server.Close()

	sha := "oldblob"
	res, err := newTestClient(t, server).PutContents(context.Background(), PutContentsRequest{
		Message: "添加新留言 - Ann",
		Content: []byte("hello\n"),
		SHA:     &sha,
	})
	if err != nil {
		t.Fatalf("PutContents: %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %s", gotMethod)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	want := map[string]any{
		"message": "添加新留言 - Ann",
		"content": b64("hello\n"),
		"sha":     "oldblob",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("put body mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&PutContentsResult{SHA: "newblob", CommitSHA: "commit1"}, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestPutContents_CreateOmitsSHA(t *testing.T) {
	var raw []byte
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"content":{"sha":"first"},"commit":{"sha":"c"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server, func(cfg *Config) { cfg.Branch = "main" }).
		PutContents(context.Background(), PutContentsRequest{Message: "m", Content: []byte("x")})
	if err != nil {
		t.Fatalf("PutContents: %v", err)
	}
	if strings.Contains(string(raw), `"sha"`) {
		t.Fatalf("sha must be absent when creating, body: %s", raw)
	}
	if !strings.Contains(string(raw), `"branch":"main"`) {
		t.Fatalf("branch missing from body: %s", raw)
	}
}

func TestPutContents_Conflict(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"is at 111 but expected 222"}`))
	}))
	defer server.Close()

	sha := "222"
	_, err := newTestClient(t, server).PutContents(context.Background(), PutContentsRequest{Message: "m", SHA: &sha})
	if !IsConflict(err) {
		t.Fatalf("IsConflict(%v) = false", err)
	}
}

func TestOnResponse_CalledPerRequest(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	type obs struct {
		op     string
		status int
	}
	var mu sync.Mutex
	var got []obs
	c := newTestClient(t, server, func(cfg *Config) {
		cfg.OnResponse = func(op string, status int, d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, obs{op, status})
		}
	})

	c.GetContents(context.Background())
	c.PutContents(context.Background(), PutContentsRequest{Message: "m"})

	want := []obs{{OpGetContents, 404}, {OpPutContents, 201}}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(obs{})); diff != "" {
		t.Fatalf("observations mismatch (-want +got):\n%s", diff)
	}
}

func asAPIError(err error, target **APIError) bool {
	ae, ok := err.(*APIError)
	if ok {
		*target = ae
	}
	return ok
}
