package checker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/August26/proxychk/internal/model"
	"github.com/August26/proxychk/internal/parser"
	"github.com/August26/proxychk/internal/report"
)

// Defaults used when no option overrides them.
const (
	DefaultBatchSize    = 10
	DefaultBatchTimeout = 54 * time.Second
)

// SocketProbe checks raw TCP reachability of an endpoint.
type SocketProbe interface {
	Probe(ctx context.Context, ep model.Endpoint) (model.SocketResult, error)
}

// Validator validates all four protocols in one call. Any error sends the
// checker down the fallback path.
type Validator interface {
	Validate(ctx context.Context, ep model.Endpoint) ([4]model.ProtocolResult, error)
}

// ProtocolTester probes all four protocols directly.
type ProtocolTester interface {
	TestAll(ctx context.Context, ep model.Endpoint) [4]model.ProtocolResult
}

// Checker runs the per-endpoint pipeline: parse, socket probe, validation
// service, then fallback testing when the service gave no usable answer.
type Checker struct {
	socket       SocketProbe
	validator    Validator
	tester       ProtocolTester
	batchSize    int
	batchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithBatchSize sets how many endpoints run concurrently per sub-batch.
func WithBatchSize(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithBatchTimeout sets the deadline of each sub-batch.
func WithBatchTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

// WithClock sets the time source stamped into reports.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// New returns a Checker. validator may be nil, in which case every
// reachable endpoint is tested through tester.
func New(socket SocketProbe, validator Validator, tester ProtocolTester, opts ...Option) *Checker {
	c := &Checker{
		socket:       socket,
		validator:    validator,
		tester:       tester,
		batchSize:    DefaultBatchSize,
		batchTimeout: DefaultBatchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Check runs the whole pipeline for one raw endpoint string. Failures are
// reported in the entry, never returned.
func (c *Checker) Check(ctx context.Context, raw, requester string) model.BatchEntry {
	ep, err := parser.ParseEndpoint(raw)
	if err != nil {
		c.logger.Debug("invalid proxy", "input", redactInput(raw), "error", err)
		return errorEntry(raw, err)
	}

	sock, err := c.socket.Probe(ctx, ep)
	if err != nil {
		c.logger.Info("proxy not responding", "proxy", ep.Redacted(), "error", err)
		return errorEntry(raw, err)
	}

	results, err := c.validate(ctx, ep)
	if err != nil {
		c.logger.Debug("validation service unusable, testing protocols directly", "proxy", ep.Redacted(), "error", err)
		results = c.tester.TestAll(ctx, ep)
	}

	if ctx.Err() != nil {
		return errorEntry(raw, fmt.Errorf("%w %s: %w", ErrBatchTimeout, ep.Redacted(), ctx.Err()))
	}

	r := report.Build(ep, sock, results, requester, c.now())
	c.logger.Info("proxy checked",
		"proxy", ep.Redacted(),
		"working", r.OverallWorking,
		"protocols", r.WorkingProtocols,
		"source", results[0].Source,
	)
	return model.BatchEntry{Input: raw, Kind: model.KindOK, Report: r}
}

func (c *Checker) validate(ctx context.Context, ep model.Endpoint) ([4]model.ProtocolResult, error) {
	if c.validator == nil {
		return [4]model.ProtocolResult{}, fmt.Errorf("%w: disabled", ErrServiceUnusable)
	}
	return c.validator.Validate(ctx, ep)
}

// safeCheck turns a panic anywhere in one endpoint's pipeline into an entry.
func (c *Checker) safeCheck(ctx context.Context, raw, requester string) (entry model.BatchEntry) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("proxy check panicked", "input", redactInput(raw), "panic", r)
			entry = errorEntry(raw, &PipelineError{Input: redactInput(raw), Cause: r})
		}
	}()
	return c.Check(ctx, raw, requester)
}

// RunBatch checks raws in sequential sub-batches and returns one entry per
// input, in input order.
func (c *Checker) RunBatch(ctx context.Context, raws []string, requester string) []model.BatchEntry {
	out := make([]model.BatchEntry, len(raws))
	start := time.Now()

	for lo := 0; lo < len(raws); lo += c.batchSize {
		hi := min(lo+c.batchSize, len(raws))
		c.runSubBatch(ctx, raws[lo:hi], requester, out[lo:hi])
	}

	c.logger.Debug("batch finished", "count", len(raws), "duration", time.Since(start))
	return out
}

// runSubBatch checks raws concurrently and fills dst. Members still running
// at the sub-batch deadline are recorded as timeouts and their late results
// are dropped.
func (c *Checker) runSubBatch(ctx context.Context, raws []string, requester string, dst []model.BatchEntry) {
	if err := ctx.Err(); err != nil {
		for i, raw := range raws {
			dst[i] = timeoutEntry(raw, err)
		}
		return
	}

	subCtx, cancel := context.WithTimeout(ctx, c.batchTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		sealed bool
		filled = make([]bool, len(raws))
		g      errgroup.Group
	)

	for i, raw := range raws {
		g.Go(func() error {
			entry := c.safeCheck(subCtx, raw, requester)
			mu.Lock()
			defer mu.Unlock()
			if !sealed {
				dst[i] = entry
				filled[i] = true
			}
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-subCtx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	sealed = true

	pending := 0
	for i, raw := range raws {
		if !filled[i] {
			dst[i] = timeoutEntry(raw, subCtx.Err())
			pending++
		}
	}
	if pending > 0 {
		c.logger.Warn("sub-batch timed out", "pending", pending, "size", len(raws), "timeout", c.batchTimeout)
	}
}

func errorEntry(raw string, err error) model.BatchEntry {
	return model.BatchEntry{Input: raw, Kind: ClassifyError(err), Err: err}
}

func timeoutEntry(raw string, cause error) model.BatchEntry {
	err := fmt.Errorf("%w %s", ErrBatchTimeout, redactInput(raw))
	if cause != nil {
		err = fmt.Errorf("%w %s: %w", ErrBatchTimeout, redactInput(raw), cause)
	}
	return model.BatchEntry{Input: raw, Kind: model.KindTimeout, Err: err}
}

// redactInput masks the password of a raw endpoint string when it parses.
func redactInput(raw string) string {
	ep, err := parser.ParseEndpoint(raw)
	if err != nil {
		return raw
	}
	return ep.Redacted()
}
