package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/August26/proxychk/internal/limiter"
	"github.com/August26/proxychk/internal/model"
)

// Status texts of results produced by the validation service.
const (
	statusWorking = "Working"
	statusFailed  = "Failed"
)

// ValidationClient asks a third-party service to validate all four
// protocols of an endpoint in one round trip.
type ValidationClient struct {
	client  *fasthttp.Client
	limiter *limiter.Limiter
	url     string
	host    string
	key     string
	timeout time.Duration
	ceiling int
	logger  *slog.Logger
}

// ValidationOption configures a ValidationClient.
type ValidationOption func(*ValidationClient)

// WithAPIKey sets the x-rapidapi-host and x-rapidapi-key headers.
func WithAPIKey(host, key string) ValidationOption {
	return func(c *ValidationClient) {
		c.host = host
		c.key = key
	}
}

// WithStatusCeiling sets the exclusive upper bound of usable status codes.
func WithStatusCeiling(ceiling int) ValidationOption {
	return func(c *ValidationClient) {
		c.ceiling = ceiling
	}
}

// WithValidationLogger sets the logger.
func WithValidationLogger(logger *slog.Logger) ValidationOption {
	return func(c *ValidationClient) {
		c.logger = logger
	}
}

// NewValidationClient returns a client posting to url with the given
// per-call timeout.
func NewValidationClient(l *limiter.Limiter, url string, timeout time.Duration, opts ...ValidationOption) *ValidationClient {
	c := &ValidationClient{
		client: &fasthttp.Client{
			Name:         "proxychk",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		limiter: l,
		url:     url,
		timeout: timeout,
		ceiling: 500,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// validationRequest is the payload the service expects.
type validationRequest struct {
	ProxyIP       string `json:"proxyIp"`
	ProxyPort     int    `json:"proxyPort"`
	ProxyUsername string `json:"proxyUsername,omitempty"`
	ProxyPassword string `json:"proxyPassword,omitempty"`
}

// validityFlags are the per-protocol verdicts. The service sends them
// either under "data" or at the top level.
var validityFlags = [4]string{
	"isHttpProxyValid",
	"isHttpsProxyValid",
	"isSocks4ProxyValid",
	"isSocks5ProxyValid",
}

// Validate returns four results in model.AllProtocols order, or an error
// wrapping ErrServiceUnusable when the caller should fall back.
func (c *ValidationClient) Validate(ctx context.Context, ep model.Endpoint) ([4]model.ProtocolResult, error) {
	var out [4]model.ProtocolResult

	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrServiceUnusable, err)
	}
	defer release()

	payload := validationRequest{ProxyIP: ep.Host(), ProxyPort: ep.Port()}
	if creds, ok := ep.Credentials(); ok {
		payload.ProxyUsername = creds.User
		payload.ProxyPassword = creds.Password
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("%w: encode request: %v", ErrServiceUnusable, err)
	}

	start := time.Now()
	status, respBody, err := c.do(ctx, body)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Debug("validation service request failed", "proxy", ep.Redacted(), "error", err)
		return out, fmt.Errorf("%w: %v", ErrServiceUnusable, err)
	}
	if status < fasthttp.StatusOK || status >= c.ceiling {
		c.logger.Debug("validation service returned unusable status", "proxy", ep.Redacted(), "status", status)
		return out, fmt.Errorf("%w: status %d", ErrServiceUnusable, status)
	}

	flags, err := decodeValidity(respBody)
	if err != nil {
		c.logger.Debug("validation service response not parsable", "proxy", ep.Redacted(), "status", status, "error", err)
		return out, fmt.Errorf("%w: %v", ErrServiceUnusable, err)
	}

	for i, p := range model.AllProtocols {
		text := statusFailed
		if flags[i] {
			text = statusWorking
		}
		out[i] = model.ProtocolResult{
			Protocol:   p,
			Working:    flags[i],
			StatusText: text,
			Elapsed:    elapsed,
			Source:     model.SourceExternal,
		}
	}
	return out, nil
}

// do runs the request on its own goroutine so ctx cancellation is honoured
// even though fasthttp only knows deadlines. Request and response objects
// are released by that goroutine.
func (c *ValidationClient) do(ctx context.Context, body []byte) (int, []byte, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	type result struct {
		status int
		body   []byte
		err    error
	}
	done := make(chan result, 1)

	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(c.url)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		req.Header.Set("Accept", "application/json")
		if c.host != "" {
			req.Header.Set("x-rapidapi-host", c.host)
		}
		if c.key != "" {
			req.Header.Set("x-rapidapi-key", c.key)
		}
		req.SetBody(body)

		err := c.client.DoDeadline(req, resp, deadline)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{status: resp.StatusCode(), body: bytes.Clone(resp.Body())}
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case r := <-done:
		if errors.Is(r.err, fasthttp.ErrTimeout) {
			return 0, nil, fmt.Errorf("request timed out after %v: %w", c.timeout, r.err)
		}
		return r.status, r.body, r.err
	}
}

// decodeValidity extracts the four flags from either response shape:
//
//	{"status":"success","data":{"isHttpProxyValid":true,...}}
//	{"isHttpProxyValid":true,...}
//
// A body that carries none of the flags is rejected.
func decodeValidity(body []byte) ([4]bool, error) {
	var flags [4]bool

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return flags, fmt.Errorf("decode response: %w", err)
	}

	shapes := []map[string]json.RawMessage{top}
	if raw, ok := top["data"]; ok {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(raw, &data); err == nil {
			if isSuccess(top["status"]) {
				shapes = []map[string]json.RawMessage{data, top}
			} else {
				shapes = append(shapes, data)
			}
		}
	}

	for _, fields := range shapes {
		found := false
		for i, name := range validityFlags {
			raw, ok := fields[name]
			if !ok {
				continue
			}
			found = true
			flags[i] = truthy(raw)
		}
		if found {
			return flags, nil
		}
	}
	return flags, errors.New("response has no validity flags")
}

func isSuccess(raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return strings.EqualFold(s, "success")
}

// truthy accepts JSON booleans, numbers and the strings true/false/yes/no/1/0.
func truthy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return strings.EqualFold(strings.TrimSpace(t), "yes")
	default:
		return false
	}
}
