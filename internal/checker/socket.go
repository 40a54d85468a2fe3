package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/August26/proxychk/internal/limiter"
	"github.com/August26/proxychk/internal/model"
)

// codeConnRefused is reported when an attempt fails without an errno.
const codeConnRefused = 111

// DialFunc opens a raw connection, as net.Dialer.DialContext does.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// HostResolver resolves a host for "ip4" or "ip6".
type HostResolver interface {
	Lookup(ctx context.Context, network, host string) ([]net.IP, error)
}

// SocketProber checks that an endpoint accepts TCP connections at all,
// independent of any proxy protocol.
type SocketProber struct {
	limiter  *limiter.Limiter
	resolver HostResolver
	dial     DialFunc
	timeout  time.Duration
	logger   *slog.Logger
}

// SocketOption configures a SocketProber.
type SocketOption func(*SocketProber)

// WithDialer replaces the raw dialer, mainly for tests.
func WithDialer(dial DialFunc) SocketOption {
	return func(p *SocketProber) {
		p.dial = dial
	}
}

// WithResolver sets the host resolver. Without one, hosts are passed to the
// dialer unresolved and the dialer picks addresses of the requested family.
func WithResolver(r HostResolver) SocketOption {
	return func(p *SocketProber) {
		p.resolver = r
	}
}

// WithSocketLogger sets the logger.
func WithSocketLogger(logger *slog.Logger) SocketOption {
	return func(p *SocketProber) {
		p.logger = logger
	}
}

// NewSocketProber returns a prober whose attempts are each bounded by timeout.
func NewSocketProber(l *limiter.Limiter, timeout time.Duration, opts ...SocketOption) *SocketProber {
	p := &SocketProber{
		limiter: l,
		timeout: timeout,
		dial:    (&net.Dialer{}).DialContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Probe tries tcp4, then tcp6, then tcp4 once more, stopping at the first
// successful connect. A failed probe returns an *UnreachableError along with
// the result of the last attempt.
func (p *SocketProber) Probe(ctx context.Context, ep model.Endpoint) (model.SocketResult, error) {
	release, err := p.limiter.Acquire(ctx)
	if err != nil {
		return model.SocketResult{}, fmt.Errorf("socket probe %s: %w", ep.Redacted(), err)
	}
	defer release()

	start := time.Now()
	res := model.SocketResult{}
	var lastErr error

	for _, network := range []string{"tcp4", "tcp6", "tcp4"} {
		if ctx.Err() != nil {
			break
		}
		res.Family = network
		lastErr = p.attempt(ctx, network, ep)
		if lastErr == nil {
			res.Connected = true
			res.ErrorCode = 0
			res.Elapsed = time.Since(start)
			return res, nil
		}
		res.ErrorCode = errorCode(lastErr)
		p.logger.Debug("socket attempt failed",
			"proxy", ep.Redacted(),
			"network", network,
			"code", res.ErrorCode,
			"err", lastErr,
		)
	}

	res.Elapsed = time.Since(start)
	if ctx.Err() != nil {
		return res, fmt.Errorf("socket probe %s: %w", ep.Redacted(), ctx.Err())
	}
	if res.ErrorCode == 0 {
		res.ErrorCode = codeConnRefused
	}
	return res, &UnreachableError{Endpoint: ep.Redacted(), Code: res.ErrorCode, Err: lastErr}
}

// attempt performs one connect on its own goroutine so a blocking dial
// never holds up the caller past the attempt deadline. A connection that
// shows up after the caller gave up is closed.
func (p *SocketProber) attempt(ctx context.Context, network string, ep model.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addr, err := p.address(ctx, network, ep)
	if err != nil {
		return err
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		c, err := p.dial(ctx, network, addr)
		done <- dialResult{conn: c, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		_ = r.conn.Close()
		return nil
	}
}

func (p *SocketProber) address(ctx context.Context, network string, ep model.Endpoint) (string, error) {
	if p.resolver == nil {
		return ep.Address(), nil
	}
	family := "ip4"
	if network == "tcp6" {
		family = "ip6"
	}
	ips, err := p.resolver.Lookup(ctx, family, ep.Host())
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ips[0].String(), strconv.Itoa(ep.Port())), nil
}

func errorCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return int(syscall.ETIMEDOUT)
	}
	return codeConnRefused
}
