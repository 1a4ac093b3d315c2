package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log attributes. Values under a sensitive
// key are replaced outright; other string values are scanned for bearer
// tokens and provider API keys.
type Redactor struct {
	sensitiveKeys []string
	patterns      []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the built-in rules.
func NewRedactor() *Redactor {
	return &Redactor{
		sensitiveKeys: []string{
			"secret", "api_key", "apikey",
			"authorization", "x-internal-secret",
			"password", "token_value",
		},
		patterns: []*redactPattern{
			{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
			{regexp.MustCompile(`\b(sk|xai|csk)-[a-zA-Z0-9_\-]{8,}`), "$1-***"},
		},
	}
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if r.isSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactAPIKey(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); s != "" {
			if red := r.RedactString(s); red != s {
				return slog.String(a.Key, red)
			}
		}
	}
	return a
}

// RedactString masks credential-looking substrings of value.
func (r *Redactor) RedactString(value string) string {
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// isSensitiveKey checks if a key name indicates a credential.
func (r *Redactor) isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range r.sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// RedactAPIKey keeps a short prefix of a credential for identification.
func RedactAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "***"
}
