// internal/requester/executor_test.go
package requester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteJSONResponse(t *testing.T) {
	var gotAccept, gotAgent, gotTrace, gotQuery, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAgent = r.Header.Get("User-Agent")
		gotTrace = r.Header.Get("X-Trace")
		gotQuery = r.URL.RawQuery
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Rate", "10")
		_, _ = w.Write([]byte(`{"id":7,"name":"ada"}`))
	}))
	defer server.Close()

	out := NewExecutor(0).Execute(context.Background(), Request{
		BaseURL:    server.URL + "/api/",
		Path:       "/users/{id}",
		PathParams: map[string]string{"id": "7"},
		Query:      map[string]string{"expand": "true"},
		Headers:    map[string]string{"X-Trace": "abc"},
	})

	assert.False(t, out.Failed())
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, `{"id":7,"name":"ada"}`, out.Body.String())
	assert.Equal(t, "10", out.Headers["X-Rate"])
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, DefaultUserAgent, gotAgent)
	assert.Equal(t, "abc", gotTrace)
	assert.Equal(t, "expand=true", gotQuery)
	assert.Equal(t, "/api/users/7", gotPath)
}

func TestExecuteCallerHeadersOverrideDefaults(t *testing.T) {
	var gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	out := NewExecutor(0).Execute(context.Background(), Request{
		BaseURL: server.URL,
		Path:    "list",
		Headers: map[string]string{"Accept": "text/plain"},
	})
	assert.Equal(t, "text/plain", gotAccept)
	assert.Equal(t, `[]`, out.Body.String())
}

func TestExecuteNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	out := NewExecutor(0).Execute(context.Background(), Request{BaseURL: server.URL, Path: "/"})
	assert.Equal(t, http.StatusBadGateway, out.StatusCode)
	raw, ok := out.Body.Get("raw_response")
	require.True(t, ok)
	s, _ := raw.AsString()
	assert.Equal(t, "<html>oops</html>", s)
}

func TestExecuteOversizedBodyFails(t *testing.T) {
	payload := `{"items":["` + strings.Repeat("x", 64) + `"]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	out := NewExecutor(0).WithMaxBodyBytes(int64(len(payload)-1)).Execute(context.Background(), Request{BaseURL: server.URL, Path: "/big"})
	assert.True(t, out.Failed())
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.Contains(t, out.Err, "exceeds")
	assert.False(t, out.Body.Has("raw_response"))

	out = NewExecutor(0).WithMaxBodyBytes(int64(len(payload))).Execute(context.Background(), Request{BaseURL: server.URL, Path: "/big"})
	assert.False(t, out.Failed())
	assert.Equal(t, payload, out.Body.String())
}

func TestExecuteTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	out := NewExecutor(time.Second).Execute(context.Background(), Request{BaseURL: url, Path: "/x"})
	assert.True(t, out.Failed())
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	msg, ok := out.Body.Get("error")
	require.True(t, ok)
	s, _ := msg.AsString()
	assert.NotEmpty(t, s)
}

func TestExecuteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	out := NewExecutor(50 * time.Millisecond).Execute(context.Background(), Request{BaseURL: server.URL, Path: "/slow"})
	assert.True(t, out.Failed())
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
}

func TestBuildURL(t *testing.T) {
	testCases := []struct {
		name  string
		base  string
		path  string
		pp    map[string]string
		query map[string]string
		want  string
	}{
		{"plain", "https://api.example.com", "/users", nil, nil, "https://api.example.com/users"},
		{"slashes collapse", "https://api.example.com/v1/", "/users", nil, nil, "https://api.example.com/v1/users"},
		{"no slashes", "https://h", "users", nil, nil, "https://h/users"},
		{"path param escaped", "https://h", "/files/{name}", map[string]string{"name": "a b"}, nil, "https://h/files/a%20b"},
		{"query", "https://h", "/s", nil, map[string]string{"q": "x y", "a": "1"}, "https://h/s?a=1&q=x+y"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BuildURL(tc.base, tc.path, tc.pp, tc.query))
		})
	}
}
