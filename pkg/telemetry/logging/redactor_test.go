package logging

import (
	"log/slog"
	"testing"
)

func TestRedactor_ReplaceAttr(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"secret key", slog.String("internal_secret", "0123456789abcdef"), "0123***"},
		{"header name", slog.String("X-Internal-Secret", "short"), "***"},
		{"api key", slog.String("openai_api_key", "sk-abcdefghijkl"), "sk-a***"},
		{"bearer in value", slog.String("error", "rejected Bearer abc.def-123"), "rejected Bearer ***"},
		{"provider key in value", slog.String("detail", "key sk-proj1234567890 revoked"), "key sk-*** revoked"},
		{"token counts untouched", slog.Int64("input_tokens", 120), "120"},
		{"plain value untouched", slog.String("model", "gpt-4o-mini"), "gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ReplaceAttr(nil, tt.attr)
			if got.Key != tt.attr.Key {
				t.Errorf("Key changed from %s to %s", tt.attr.Key, got.Key)
			}
			if got.Value.String() != tt.want {
				t.Errorf("ReplaceAttr(%s) = %q, want %q", tt.attr.Key, got.Value.String(), tt.want)
			}
		})
	}
}

func TestRedactAPIKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"sk-1234567890", "sk-1***"},
	}
	for _, tt := range tests {
		if got := RedactAPIKey(tt.in); got != tt.want {
			t.Errorf("RedactAPIKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
