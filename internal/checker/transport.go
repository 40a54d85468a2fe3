package checker

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
	"h12.io/socks"

	"github.com/August26/proxychk/internal/model"
)

// ClientFactory builds an *http.Client that tunnels through ep using p.
type ClientFactory func(p model.Protocol, ep model.Endpoint) (*http.Client, error)

// NewClientFactory returns the default factory: HTTP and HTTPS go through
// an HTTP proxy (CONNECT for https targets), SOCKS5 uses x/net/proxy and
// SOCKS4 uses h12.io/socks. Certificates are not verified.
func NewClientFactory(connectTimeout, requestTimeout time.Duration) ClientFactory {
	return func(p model.Protocol, ep model.Endpoint) (*http.Client, error) {
		transport := &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // proxies under test are untrusted by definition
			},
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: requestTimeout,
			ExpectContinueTimeout: 1 * time.Second,
			DisableKeepAlives:     true,
			ForceAttemptHTTP2:     false,
		}

		switch p {
		case model.ProtocolHTTP, model.ProtocolHTTPS:
			transport.Proxy = http.ProxyURL(proxyURL("http", ep))

		case model.ProtocolSOCKS5:
			var auth *proxy.Auth
			if creds, ok := ep.Credentials(); ok {
				auth = &proxy.Auth{User: creds.User, Password: creds.Password}
			}
			dialer, err := proxy.SOCKS5("tcp", ep.Address(), auth, &net.Dialer{
				Timeout: connectTimeout,
			})
			if err != nil {
				return nil, err
			}
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = contextDial(dialer.Dial)
			}

		case model.ProtocolSOCKS4:
			u := proxyURL("socks4", ep)
			q := url.Values{}
			q.Set("timeout", connectTimeout.String())
			u.RawQuery = q.Encode()
			transport.DialContext = contextDial(socks.Dial(u.String()))

		default:
			return nil, fmt.Errorf("unsupported protocol %q", p)
		}

		return &http.Client{Transport: transport}, nil
	}
}

func proxyURL(scheme string, ep model.Endpoint) *url.URL {
	u := &url.URL{Scheme: scheme, Host: ep.Address()}
	if creds, ok := ep.Credentials(); ok {
		u.User = url.UserPassword(creds.User, creds.Password)
	}
	return u
}

// contextDial adapts a dial func without context support. The dial runs on
// its own goroutine; if ctx ends first the late connection is closed.
func contextDial(dial func(network, addr string) (net.Conn, error)) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		done := make(chan dialResult, 1)
		go func() {
			c, err := dial(network, addr)
			done <- dialResult{conn: c, err: err}
		}()

		select {
		case <-ctx.Done():
			go func() {
				if r := <-done; r.conn != nil {
					_ = r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		case r := <-done:
			return r.conn, r.err
		}
	}
}
