// Package config holds the runtime configuration of proxychk.
package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/August26/proxychk/internal/model"
)

// Default configuration values.
const (
	AppName = "proxychk"

	DefaultConcurrency    = 20
	DefaultBatchSize      = 10
	DefaultRequestTimeout = 18 * time.Second
	DefaultConnectTimeout = 12 * time.Second
	DefaultSocketTimeout  = 8 * time.Second
	DefaultEnrichTimeout  = 2 * time.Second
	DefaultDNSCacheTTL    = 5 * time.Minute

	// External calls get a shorter budget than a fallback candidate so a slow
	// third party does not eat the time left for fallback probing.
	DefaultExternalTimeoutRatio = 0.8
	DefaultRaceTimeoutRatio     = 1.5
	DefaultBatchTimeoutRatio    = 3.0

	DefaultValidationURL  = "https://proxy-checker.p.rapidapi.com/api/proxy-checker"
	DefaultValidationHost = "proxy-checker.p.rapidapi.com"

	// Responses below this status are parsed; the service returns a validity
	// payload even on 4xx.
	DefaultUsableStatusCeiling = 500

	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/112.0.0.0 Safari/537.36"
	DefaultMaxBodySize = 1 << 20
	DefaultFormat      = "text"
)

// Output formats accepted by the CLI.
var Formats = []string{"text", "table", "json", "csv", "yaml", "markdown"}

// Targets lists fallback target URLs per protocol, tried concurrently.
type Targets struct {
	HTTP   []string `mapstructure:"http"`
	HTTPS  []string `mapstructure:"https"`
	SOCKS4 []string `mapstructure:"socks4"`
	SOCKS5 []string `mapstructure:"socks5"`
}

// For returns the target list of p.
func (t Targets) For(p model.Protocol) []string {
	switch p {
	case model.ProtocolHTTP:
		return t.HTTP
	case model.ProtocolHTTPS:
		return t.HTTPS
	case model.ProtocolSOCKS4:
		return t.SOCKS4
	case model.ProtocolSOCKS5:
		return t.SOCKS5
	default:
		return nil
	}
}

// DefaultTargets mixes an echo service, an IP reporting service and a
// static page per protocol.
func DefaultTargets() Targets {
	return Targets{
		HTTP:   []string{"http://httpbin.org/get", "http://ip-api.com/json", "http://example.com"},
		HTTPS:  []string{"https://httpbin.org/get", "https://ifconfig.me/all.json", "https://example.com"},
		SOCKS4: []string{"http://httpbin.org/get", "http://ip.jsontest.com", "http://example.com"},
		SOCKS5: []string{"http://httpbin.org/get", "http://ip-api.com/json", "http://example.com"},
	}
}

// Validation configures the third-party validation service.
// An empty URL disables it and every check goes straight to fallback.
type Validation struct {
	URL                 string `mapstructure:"url"`
	Host                string `mapstructure:"host"`
	Key                 string `mapstructure:"key"`
	UsableStatusCeiling int    `mapstructure:"usable_status_ceiling"`
}

// Config is populated from defaults, an optional file, the environment and
// CLI flags, in that order, and passed explicitly to every component.
type Config struct {
	Concurrency int `mapstructure:"concurrency"` // global ceiling on in-flight network operations
	BatchSize   int `mapstructure:"batch_size"`  // endpoints per sub-batch

	RequestTimeout time.Duration `mapstructure:"request_timeout"` // per fallback candidate
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // dial through the proxy
	SocketTimeout  time.Duration `mapstructure:"socket_timeout"`  // per raw connect attempt
	EnrichTimeout  time.Duration `mapstructure:"enrich_timeout"`  // reading a JSON body for IP/anonymity
	DNSCacheTTL    time.Duration `mapstructure:"dns_cache_ttl"`

	ExternalTimeoutRatio float64 `mapstructure:"external_timeout_ratio"`
	RaceTimeoutRatio     float64 `mapstructure:"race_timeout_ratio"`
	BatchTimeoutRatio    float64 `mapstructure:"batch_timeout_ratio"`

	Validation Validation `mapstructure:"validation"`
	Targets    Targets    `mapstructure:"targets"`

	UserAgent   string `mapstructure:"user_agent"`
	MaxBodySize int64  `mapstructure:"max_body_size"`

	Verbose bool   `mapstructure:"verbose"`
	Format  string `mapstructure:"format"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Concurrency:          DefaultConcurrency,
		BatchSize:            DefaultBatchSize,
		RequestTimeout:       DefaultRequestTimeout,
		ConnectTimeout:       DefaultConnectTimeout,
		SocketTimeout:        DefaultSocketTimeout,
		EnrichTimeout:        DefaultEnrichTimeout,
		DNSCacheTTL:          DefaultDNSCacheTTL,
		ExternalTimeoutRatio: DefaultExternalTimeoutRatio,
		RaceTimeoutRatio:     DefaultRaceTimeoutRatio,
		BatchTimeoutRatio:    DefaultBatchTimeoutRatio,
		Validation: Validation{
			URL:                 DefaultValidationURL,
			Host:                DefaultValidationHost,
			UsableStatusCeiling: DefaultUsableStatusCeiling,
		},
		Targets:     DefaultTargets(),
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		Format:      DefaultFormat,
	}
}

// ExternalTimeout is the budget of one validation service call.
func (c *Config) ExternalTimeout() time.Duration {
	return scale(c.RequestTimeout, c.ExternalTimeoutRatio)
}

// RaceTimeout bounds one protocol's fallback race.
func (c *Config) RaceTimeout() time.Duration {
	return scale(c.RequestTimeout, c.RaceTimeoutRatio)
}

// BatchTimeout bounds one sub-batch.
func (c *Config) BatchTimeout() time.Duration {
	return scale(c.RequestTimeout, c.BatchTimeoutRatio)
}

func scale(d time.Duration, ratio float64) time.Duration {
	return time.Duration(float64(d) * ratio)
}

// XDGConfigDir returns the XDG config directory for proxychk.
// On Linux: ~/.config/proxychk
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.RequestTimeout <= 0 || c.ConnectTimeout <= 0 || c.SocketTimeout <= 0 || c.EnrichTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.ExternalTimeoutRatio <= 0 || c.RaceTimeoutRatio <= 0 || c.BatchTimeoutRatio <= 0 {
		return ErrInvalidRatio
	}
	if c.Validation.UsableStatusCeiling <= 200 || c.Validation.UsableStatusCeiling > 600 {
		return ErrInvalidStatusCeiling
	}
	for _, p := range model.AllProtocols {
		if len(c.Targets.For(p)) == 0 {
			return ErrNoFallbackTargets
		}
	}
	if !slices.Contains(Formats, c.Format) {
		return ErrInvalidFormat
	}
	return nil
}
