// Package dnscache caches per-family host lookups for the socket prober.
package dnscache

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/patrickmn/go-cache"
)

// Resolved addresses are kept for five minutes by default.
const (
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// LookupFunc resolves host for network "ip4" or "ip6".
type LookupFunc func(ctx context.Context, network, host string) ([]net.IP, error)

// Resolver resolves host names through an in-memory TTL cache.
type Resolver struct {
	cache  *cache.Cache
	lookup LookupFunc
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookup replaces the underlying lookup, mainly for tests.
func WithLookup(fn LookupFunc) Option {
	return func(r *Resolver) {
		r.lookup = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver with the given TTL.
func New(ttl time.Duration, opts ...Option) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Resolver{
		cache:  cache.New(ttl, DefaultCleanupInterval),
		lookup: net.DefaultResolver.LookupIP,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Lookup returns the addresses of host for the given network ("ip4" or
// "ip6"). IP literals are returned without a lookup when they match the
// family and rejected otherwise.
func (r *Resolver) Lookup(ctx context.Context, network, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		is4 := ip.To4() != nil
		if (network == "ip4") == is4 {
			return []net.IP{ip}, nil
		}
		return nil, &net.AddrError{Err: "address family mismatch", Addr: host}
	}

	key := network + "/" + host
	if x, found := r.cache.Get(key); found {
		if ips, ok := x.([]net.IP); ok {
			r.logger.Debug("dns cache hit", "host", host, "network", network)
			return ips, nil
		}
	}

	ips, err := r.lookup(ctx, network, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s (%s): %w", host, network, err)
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	r.cache.SetDefault(key, ips)
	return ips, nil
}

// Flush drops all cached entries.
func (r *Resolver) Flush() {
	r.cache.Flush()
}

// Len returns the number of cached entries, including expired ones not yet
// cleaned up.
func (r *Resolver) Len() int {
	return r.cache.ItemCount()
}
