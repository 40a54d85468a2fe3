// Package service wires the checker components together and owns their
// lifecycle.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/August26/proxychk/internal/analytics"
	"github.com/August26/proxychk/internal/checker"
	"github.com/August26/proxychk/internal/config"
	"github.com/August26/proxychk/internal/dnscache"
	"github.com/August26/proxychk/internal/limiter"
	"github.com/August26/proxychk/internal/model"
)

var (
	// ErrNotInitialized is returned by Start before Init.
	ErrNotInitialized = errors.New("service not initialized")

	// ErrNotRunning is returned by CheckBatch outside Start/Stop.
	ErrNotRunning = errors.New("service not running")
)

// Status is a point-in-time view of the service.
type Status struct {
	Running   bool               `json:"running" yaml:"running"`
	StartedAt time.Time          `json:"started_at" yaml:"started_at"`
	Uptime    time.Duration      `json:"uptime" yaml:"uptime"`
	InFlight  int                `json:"in_flight" yaml:"in_flight"`
	Stats     analytics.Snapshot `json:"stats" yaml:"stats"`
}

// Service is the composition root: New, Init, Start, CheckBatch, Stop.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time

	limiter  *limiter.Limiter
	resolver *dnscache.Resolver
	checker  *checker.Checker
	stats    *analytics.Stats

	// overridable in tests
	socket    checker.SocketProbe
	validator checker.Validator
	tester    checker.ProtocolTester
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSocketProbe replaces the socket prober built by Init.
func WithSocketProbe(p checker.SocketProbe) Option {
	return func(s *Service) { s.socket = p }
}

// WithValidator replaces the validation client built by Init.
func WithValidator(v checker.Validator) Option {
	return func(s *Service) { s.validator = v }
}

// WithProtocolTester replaces the fallback tester built by Init.
func WithProtocolTester(t checker.ProtocolTester) Option {
	return func(s *Service) { s.tester = t }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns an uninitialized service. cfg must already be validated.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init builds every component from the configuration.
func (s *Service) Init() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg
	s.limiter = limiter.New(cfg.Concurrency)
	s.resolver = dnscache.New(cfg.DNSCacheTTL, dnscache.WithLogger(s.logger))
	s.stats = analytics.NewStats(s.now)

	if s.socket == nil {
		s.socket = checker.NewSocketProber(s.limiter, cfg.SocketTimeout,
			checker.WithResolver(s.resolver),
			checker.WithSocketLogger(s.logger),
		)
	}
	if s.validator == nil && cfg.Validation.URL != "" {
		s.validator = checker.NewValidationClient(s.limiter, cfg.Validation.URL, cfg.ExternalTimeout(),
			checker.WithAPIKey(cfg.Validation.Host, cfg.Validation.Key),
			checker.WithStatusCeiling(cfg.Validation.UsableStatusCeiling),
			checker.WithValidationLogger(s.logger),
		)
	}
	if s.tester == nil {
		s.tester = checker.NewFallbackTester(s.limiter, cfg.Targets.For, cfg.RequestTimeout, cfg.RaceTimeout(),
			checker.WithClientFactory(checker.NewClientFactory(cfg.ConnectTimeout, cfg.RequestTimeout)),
			checker.WithEnrichTimeout(cfg.EnrichTimeout),
			checker.WithUserAgent(cfg.UserAgent),
			checker.WithMaxBodySize(cfg.MaxBodySize),
			checker.WithFallbackLogger(s.logger),
		)
	}

	s.checker = checker.New(s.socket, s.validator, s.tester,
		checker.WithBatchSize(cfg.BatchSize),
		checker.WithBatchTimeout(cfg.BatchTimeout()),
		checker.WithClock(s.now),
		checker.WithLogger(s.logger),
	)

	s.logger.Debug("service initialized",
		"concurrency", cfg.Concurrency,
		"batch_size", cfg.BatchSize,
		"validation_service", cfg.Validation.URL != "",
	)
	return nil
}

// Start marks the service running.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checker == nil {
		return ErrNotInitialized
	}
	if s.running {
		return nil
	}
	s.running = true
	s.startedAt = s.now()
	s.logger.Info("service started")
	return nil
}

// CheckBatch checks raws on behalf of requester and returns one entry per
// input in input order. Stats are updated as a side effect.
func (s *Service) CheckBatch(ctx context.Context, requester string, raws []string) ([]model.BatchEntry, error) {
	s.mu.RLock()
	running, c, stats := s.running, s.checker, s.stats
	s.mu.RUnlock()

	if !running {
		return nil, ErrNotRunning
	}

	stats.Touch(requester)
	entries := c.RunBatch(ctx, raws, requester)
	stats.RecordBatch(requester, entries)
	return entries, nil
}

// Status reports whether the service runs and its counters.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{Running: s.running, StartedAt: s.startedAt}
	if s.running {
		st.Uptime = s.now().Sub(s.startedAt)
	}
	if s.limiter != nil {
		st.InFlight = s.limiter.InFlight()
	}
	if s.stats != nil {
		st.Stats = s.stats.Snapshot()
	}
	return st
}

// Stop marks the service stopped and drops cached DNS answers. Checks in
// progress are not interrupted; cancel their context for that.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	if s.resolver != nil {
		s.resolver.Flush()
	}
	s.logger.Info("service stopped", "uptime", s.now().Sub(s.startedAt))
	return nil
}
