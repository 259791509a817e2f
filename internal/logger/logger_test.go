package logger

import "testing"

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcd", "****"},
		{"abcdef-secret", "abcd***"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInitFallsBackToInfo(t *testing.T) {
	l, err := Init("not-a-level")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if l.Core().Enabled(-1) {
		t.Errorf("debug should be disabled for an invalid level")
	}
	if !l.Core().Enabled(0) {
		t.Errorf("info should be enabled")
	}
}
