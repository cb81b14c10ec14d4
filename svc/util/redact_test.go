package util

import (
	"strings"
	"testing"
)

func TestRedactIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.168.1.77", "192.168.1.0"},
		{"10.0.0.5:51234", "10.0.0.0"},
		{"2001:db8:abcd:12::1", "2001:db8::"},
	}
	for _, tt := range tests {
		if got := RedactIP(tt.in); got != tt.want {
			t.Errorf("RedactIP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := RedactIP("not-an-ip"); !strings.HasPrefix(got, "hash:") {
		t.Errorf("RedactIP of garbage should hash, got %q", got)
	}
}

func TestRedactPasteContent(t *testing.T) {
	if got := RedactPasteContent(""); got != "" {
		t.Errorf("empty: got %q", got)
	}
	if got := RedactPasteContent("short secret"); got != "[REDACTED]" {
		t.Errorf("short: got %q", got)
	}
	long := "0123456789-middle-part-abcdefghij"
	got := RedactPasteContent(long)
	if !strings.HasPrefix(got, "0123456789") || !strings.HasSuffix(got, "abcdefghij") {
		t.Errorf("long: got %q", got)
	}
	if strings.Contains(got, "middle") {
		t.Errorf("long: middle leaked: %q", got)
	}
}

func TestRequestID(t *testing.T) {
	id := NewRequestID()
	if len(id) != 36 {
		t.Fatalf("NewRequestID: unexpected format %q", id)
	}
}
