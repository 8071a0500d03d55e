package log

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys (and header names) that are always masked.
var sensitiveKeys = map[string]bool{
	// HTTP headers
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,

	// Generic credentials
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"refresh_token": true,

	// interactsh registration material
	"secret-key":  true,
	"secret_key":  true,
	"private_key": true,
	"aes_key":     true,
	"aes-key":     true,
}

// sensitiveKeywords mark a key as sensitive when contained anywhere in it.
// The bare word "key" is not listed: "cache_key" and "key" attributes carry
// content hashes, which must stay readable in debug output.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private",
}

// sensitiveParams are query parameter names whose values are masked inside
// logged URLs. interactsh poll URLs carry the registration secret this way.
var sensitiveParams = map[string]bool{
	"secret":       true,
	"token":        true,
	"key":          true,
	"api_key":      true,
	"apikey":       true,
	"access_token": true,
	"auth":         true,
	"password":     true,
}

// sensitivePatterns match values that are masked regardless of their key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer and Basic credentials
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// AWS access keys
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),

	// PEM private keys
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler and masks sensitive information before
// records reach the underlying handler. It understands plain string
// attributes, URLs with credential query parameters, and header maps
// (http.Header or map[string]string) logged as a single attribute.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, the returned SecureHandler uses slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes sanitized and added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, sanitizeString(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case http.Header:
			return slog.Any(a.Key, sanitizeHeader(v))
		case map[string]string:
			return slog.Any(a.Key, sanitizeStringMap(v))
		case *url.URL:
			if v != nil {
				return slog.String(a.Key, sanitizeURL(v))
			}
		}
	}

	return a
}

// isSensitiveKey reports whether an attribute key or header name is sensitive.
func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	if sensitiveKeys[keyLower] {
		return true
	}
	return containsSensitiveKeyword(keyLower)
}

// containsSensitiveKeyword checks if the key contains a sensitive keyword.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// sanitizeString masks pattern-matched secrets and credential query
// parameters of absolute URLs.
func sanitizeString(value string) string {
	if isSensitiveValue(value) {
		return MaskValue
	}
	if strings.Contains(value, "://") && strings.Contains(value, "?") {
		if u, err := url.Parse(value); err == nil && u.Host != "" {
			return sanitizeURL(u)
		}
	}
	return value
}

// sanitizeURL returns u as a string with userinfo passwords and sensitive
// query parameter values masked. u itself is not modified.
func sanitizeURL(u *url.URL) string {
	clone := *u
	if clone.User != nil {
		if _, hasPassword := clone.User.Password(); hasPassword {
			clone.User = url.UserPassword(clone.User.Username(), MaskValue)
		}
	}

	if clone.RawQuery != "" {
		query := clone.Query()
		changed := false
		for name, values := range query {
			if !sensitiveParams[strings.ToLower(name)] {
				continue
			}
			for i := range values {
				values[i] = MaskValue
			}
			changed = true
		}
		if changed {
			clone.RawQuery = query.Encode()
		}
	}

	return clone.String()
}

// sanitizeHeader returns a copy of header with sensitive values masked.
func sanitizeHeader(header http.Header) http.Header {
	out := make(http.Header, len(header))
	for name, values := range header {
		if isSensitiveKey(name) {
			out[name] = []string{MaskValue}
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

// sanitizeStringMap returns a copy of m with sensitive values masked.
func sanitizeStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if isSensitiveKey(k) || isSensitiveValue(v) {
			out[k] = MaskValue
			continue
		}
		out[k] = v
	}
	return out
}

// NewSecureLogger creates a new slog.Logger writing sanitized text output.
// When verbose is true the level is Debug, otherwise Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger creates a new slog.Logger writing sanitized JSON output.
// Useful for structured log aggregation.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
