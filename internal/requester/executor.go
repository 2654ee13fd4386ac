// internal/requester/executor.go
package requester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
	"github.com/alvera-ai/interoperability-template-generator/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "API-Tester/1.0"

	// DefaultMaxBodyBytes caps how much of a response body is buffered.
	DefaultMaxBodyBytes = 16 << 20
)

// Request describes one GET call.
type Request struct {
	BaseURL    string
	Path       string
	PathParams map[string]string
	Query      map[string]string
	Headers    map[string]string
}

// CallOutcome is the normalized result of a call. Transport failures are
// folded into StatusCode 500 with an {"error": ...} body.
type CallOutcome struct {
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code"`
	Body       jsonval.Value     `json:"body"`
	Headers    map[string]string `json:"headers"`
	Duration   time.Duration     `json:"duration"`
	Err        string            `json:"transport_error,omitempty"`
}

// Failed reports whether the call produced no usable response: the server
// was unreachable or the body could not be read in full.
func (o CallOutcome) Failed() bool {
	return o.Err != ""
}

// Executor issues GET requests with fixed defaults.
type Executor struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewExecutor creates an Executor. A zero timeout selects DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		client:    &http.Client{Timeout: timeout},
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBodyBytes,
	}
}

// WithMaxBodyBytes changes the response body cap. Larger bodies fail the
// call instead of being truncated.
func (e *Executor) WithMaxBodyBytes(n int64) *Executor {
	e.maxBody = n
	return e
}

// WithClient swaps the underlying HTTP client.
func (e *Executor) WithClient(c *http.Client) *Executor {
	e.client = c
	return e
}

// BuildURL joins base and path, substitutes {name} path templates and
// appends the encoded query string.
func BuildURL(base, path string, pathParams, query map[string]string) string {
	for name, value := range pathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	full := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")

	if len(query) == 0 {
		return full
	}
	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	sep := "?"
	if strings.Contains(full, "?") {
		sep = "&"
	}
	return full + sep + values.Encode()
}

// Execute runs the GET. It never returns an error; see CallOutcome.
func (e *Executor) Execute(ctx context.Context, req Request) CallOutcome {
	target := BuildURL(req.BaseURL, req.Path, req.PathParams, req.Query)
	start := time.Now()

	outcome := func(err error) CallOutcome {
		customLog.Warnf("Requester: GET %s failed: %v", target, err)
		return CallOutcome{
			URL:        target,
			StatusCode: http.StatusInternalServerError,
			Body:       jsonval.ObjectValue(jsonval.Member{Key: "error", Value: jsonval.StringValue(err.Error())}),
			Headers:    map[string]string{},
			Duration:   time.Since(start),
			Err:        err.Error(),
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return outcome(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", e.userAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return outcome(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody+1))
	if err != nil {
		return outcome(fmt.Errorf("reading response body: %w", err))
	}
	if int64(len(raw)) > e.maxBody {
		return outcome(fmt.Errorf("response body from status %d exceeds %d bytes", resp.StatusCode, e.maxBody))
	}

	customLog.Printf("Requester: GET %s -> %d (%d bytes, %v)", target, resp.StatusCode, len(raw), time.Since(start))
	return CallOutcome{
		URL:        target,
		StatusCode: resp.StatusCode,
		Body:       decodeBody(raw),
		Headers:    flattenHeaders(resp.Header),
		Duration:   time.Since(start),
	}
}

// decodeBody parses JSON or wraps the raw text as {"raw_response": text}.
func decodeBody(raw []byte) jsonval.Value {
	if v, err := jsonval.Parse(raw); err == nil {
		return v
	}
	return jsonval.ObjectValue(jsonval.Member{Key: "raw_response", Value: jsonval.StringValue(string(raw))})
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[k] = strings.Join(vs, ", ")
	}
	return out
}
