package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/August26/proxychk/internal/limiter"
	"github.com/August26/proxychk/internal/model"
)

// Status texts of fallback candidate failures.
const (
	statusTimeout        = "Timeout"
	statusCancelled      = "Request Cancelled"
	statusProxyConnError = "Proxy Connection Error"
	statusConnFailed     = "Connection Failed"
	statusSSLError       = "SSL Error"
	statusClientError    = "Client Error"
)

// FallbackTester probes each protocol directly through the endpoint when
// the validation service could not answer.
type FallbackTester struct {
	limiter        *limiter.Limiter
	targets        func(model.Protocol) []string
	newClient      ClientFactory
	requestTimeout time.Duration
	raceTimeout    time.Duration
	enrichTimeout  time.Duration
	userAgent      string
	maxBodySize    int64
	logger         *slog.Logger
}

// FallbackOption configures a FallbackTester.
type FallbackOption func(*FallbackTester)

// WithClientFactory replaces how per-protocol HTTP clients are built.
func WithClientFactory(f ClientFactory) FallbackOption {
	return func(t *FallbackTester) {
		t.newClient = f
	}
}

// WithEnrichTimeout bounds reading a JSON body for IP and anonymity.
func WithEnrichTimeout(d time.Duration) FallbackOption {
	return func(t *FallbackTester) {
		t.enrichTimeout = d
	}
}

// WithUserAgent sets the User-Agent sent to targets.
func WithUserAgent(ua string) FallbackOption {
	return func(t *FallbackTester) {
		t.userAgent = ua
	}
}

// WithMaxBodySize limits how much of a JSON body is read.
func WithMaxBodySize(n int64) FallbackOption {
	return func(t *FallbackTester) {
		t.maxBodySize = n
	}
}

// WithFallbackLogger sets the logger.
func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(t *FallbackTester) {
		t.logger = logger
	}
}

// NewFallbackTester returns a tester. targets gives the candidate URLs of a
// protocol; requestTimeout bounds each candidate and raceTimeout bounds the
// whole race of one protocol.
func NewFallbackTester(l *limiter.Limiter, targets func(model.Protocol) []string, requestTimeout, raceTimeout time.Duration, opts ...FallbackOption) *FallbackTester {
	t := &FallbackTester{
		limiter:        l,
		targets:        targets,
		requestTimeout: requestTimeout,
		raceTimeout:    raceTimeout,
		enrichTimeout:  2 * time.Second,
		maxBodySize:    1 << 20,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.newClient == nil {
		t.newClient = NewClientFactory(requestTimeout, requestTimeout)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// TestAll runs the four protocol races concurrently and returns their
// results in model.AllProtocols order.
func (t *FallbackTester) TestAll(ctx context.Context, ep model.Endpoint) [4]model.ProtocolResult {
	var out [4]model.ProtocolResult
	var wg sync.WaitGroup
	for i, p := range model.AllProtocols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = t.TestProtocol(ctx, ep, p)
		}()
	}
	wg.Wait()
	return out
}

// TestProtocol races one probe per candidate URL. The first working result
// is returned at once and the other candidates are cancelled. Otherwise the
// last completed result is returned when all candidates are done or the race
// deadline passes, or a default failure if none completed.
func (t *FallbackTester) TestProtocol(ctx context.Context, ep model.Endpoint, p model.Protocol) model.ProtocolResult {
	last := model.ProtocolResult{
		Protocol:   p,
		StatusText: fmt.Sprintf("Not working with %s", p),
		Source:     model.SourceFallback,
	}

	targets := t.targets(p)
	if len(targets) == 0 {
		return last
	}

	raceCtx, cancel := context.WithTimeout(ctx, t.raceTimeout)
	defer cancel()

	type outcome struct {
		res model.ProtocolResult
		err error
	}
	results := make(chan outcome, len(targets))

	for _, target := range targets {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					results <- outcome{err: fmt.Errorf("candidate %s panicked: %v", target, r)}
				}
			}()
			res, err := t.candidate(raceCtx, ep, p, target)
			results <- outcome{res: res, err: err}
		}()
	}

	for range targets {
		select {
		case o := <-results:
			if o.err != nil {
				t.logger.Debug("fallback candidate raised", "protocol", p, "proxy", ep.Redacted(), "error", o.err)
				continue
			}
			last = o.res
			if o.res.Working {
				t.logger.Debug("proxy working", "protocol", p, "proxy", ep.Redacted(), "target", o.res.Target)
				return o.res
			}
		case <-raceCtx.Done():
			t.logger.Debug("fallback race timed out", "protocol", p, "proxy", ep.Redacted())
			return last
		}
	}
	return last
}

// candidate probes target through ep. An error means the probe could not
// run at all (no ceiling unit, client construction failed); probe failures
// are reported in the result.
func (t *FallbackTester) candidate(ctx context.Context, ep model.Endpoint, p model.Protocol, target string) (model.ProtocolResult, error) {
	release, err := t.limiter.Acquire(ctx)
	if err != nil {
		return model.ProtocolResult{}, err
	}
	defer release()

	client, err := t.newClient(p, ep)
	if err != nil {
		return model.ProtocolResult{}, fmt.Errorf("build %s client: %w", p, err)
	}
	defer client.CloseIdleConnections()

	return t.probe(ctx, client, p, target), nil
}

// probe issues one GET through client. Any status below 500 means the proxy
// relayed the request. JSON bodies are read, within enrichTimeout, for the
// reported IP and the forwarding headers; enrichment failures are ignored.
func (t *FallbackTester) probe(ctx context.Context, client *http.Client, p model.Protocol, target string) model.ProtocolResult {
	res := model.ProtocolResult{
		Protocol:   p,
		StatusText: "Failed",
		Source:     model.SourceFallback,
		Target:     target,
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		res.StatusText = statusClientError
		return res
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	req.Header.Set("Accept", "*/*")
	req.Close = true

	start := time.Now()
	resp, err := client.Do(req)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.StatusText = classifyTransportError(reqCtx, err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		res.StatusText = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return res
	}

	res.Working = true
	res.StatusText = fmt.Sprintf("Working (%.2fs)", res.Elapsed.Seconds())

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		timer := time.AfterFunc(t.enrichTimeout, cancel)
		defer timer.Stop()
		t.enrich(&res, resp.Body)
	}
	return res
}

// echoResponse holds the fields we use from httpbin-style echo services.
type echoResponse struct {
	Origin  string            `json:"origin"`
	Query   string            `json:"query"`
	Headers map[string]string `json:"headers"`
}

func (t *FallbackTester) enrich(res *model.ProtocolResult, body io.Reader) {
	data, err := io.ReadAll(io.LimitReader(body, t.maxBodySize))
	if err != nil {
		t.logger.Debug("response reading failed", "protocol", res.Protocol, "error", err)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.logger.Debug("JSON parsing error", "protocol", res.Protocol, "error", err)
		return
	}

	var echo echoResponse
	_ = json.Unmarshal(fields["origin"], &echo.Origin)
	_ = json.Unmarshal(fields["query"], &echo.Query)
	_ = json.Unmarshal(fields["headers"], &echo.Headers)

	switch {
	case echo.Origin != "":
		res.DetectedIP = firstIPToken(echo.Origin)
	case echo.Query != "":
		res.DetectedIP = strings.TrimSpace(echo.Query)
	}

	observed := make(http.Header, len(echo.Headers))
	for k, v := range echo.Headers {
		observed.Set(k, v)
	}
	res.Anonymity = DetermineAnonymity(observed)
}

// classifyTransportError turns a client error into a diagnostic status text.
func classifyTransportError(ctx context.Context, err error) string {
	var (
		netErr     net.Error
		opErr      *net.OpError
		certErr    *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		recordErr  tls.RecordHeaderError
		hostErr    x509.HostnameError
		alertErr   tls.AlertError
		invalidErr x509.CertificateInvalidError
	)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return statusTimeout
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return statusCancelled
	case errors.As(err, &certErr), errors.As(err, &unknownCA), errors.As(err, &recordErr),
		errors.As(err, &hostErr), errors.As(err, &alertErr), errors.As(err, &invalidErr):
		return statusSSLError
	case errors.As(err, &opErr) && opErr.Op == "proxyconnect":
		return statusProxyConnError
	case isProxyHandshakeError(err):
		return statusProxyConnError
	case errors.As(err, &opErr):
		return statusConnFailed
	default:
		return statusClientError
	}
}

// isProxyHandshakeError recognises SOCKS and CONNECT negotiation failures,
// which the dialers report as plain errors.
func isProxyHandshakeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"socks", "proxyconnect", "proxy authentication"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// firstIPToken takes the first address of an "a, b" origin list.
func firstIPToken(origin string) string {
	if origin == "" {
		return ""
	}
	parts := strings.Split(origin, ",")
	return strings.TrimSpace(parts[0])
}
