package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue replaces sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys that are always masked.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"x-rapidapi-key":      true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"key":                 true,
	"password":            true,
	"passwd":              true,
	"proxypassword":       true,
	"proxy_password":      true,
	"token":               true,
	"secret":              true,
}

// sensitiveKeywords mask any key containing them.
var sensitiveKeywords = []string{"password", "passwd", "secret", "token", "credential", "auth"}

// credentialEndpoint matches host:port:user:password strings so the password
// can be masked when a raw endpoint is logged.
var credentialEndpoint = regexp.MustCompile(`^([^:\s]+:\d+:[^:\s]*):[^:\s]+$`)

// userinfoURL matches scheme://user:password@ URLs.
var userinfoURL = regexp.MustCompile(`(://[^:/@\s]*):[^@/\s]*@`)

// SecureHandler wraps an slog.Handler and sanitizes attributes before
// passing records on.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler uses slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(out)}
}

func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] || containsSensitiveKeyword(key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		if s, changed := SanitizeString(a.Value.String()); changed {
			return slog.String(a.Key, s)
		}
	}
	return a
}

func containsSensitiveKeyword(key string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

// SanitizeString masks the password of a credentialed endpoint string or a
// URL with userinfo. The bool reports whether anything was masked.
func SanitizeString(s string) (string, bool) {
	if m := credentialEndpoint.FindStringSubmatch(s); m != nil {
		return m[1] + ":***", true
	}
	if userinfoURL.MatchString(s) {
		return userinfoURL.ReplaceAllString(s, "$1:***@"), true
	}
	return s, false
}
