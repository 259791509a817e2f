package auth

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(cfg Config) (*Authenticator, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(cfg, zap.New(core)), logs
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		creds   Credentials
		wantErr bool
	}{
		{"valid key no token configured", Config{APIKey: "key-1"}, Credentials{APIKey: "key-1"}, false},
		{"missing key", Config{APIKey: "key-1"}, Credentials{}, true},
		{"wrong key", Config{APIKey: "key-1"}, Credentials{APIKey: "key-2"}, true},
		{"key prefix only", Config{APIKey: "key-1"}, Credentials{APIKey: "key"}, true},
		{"token required and missing", Config{APIKey: "k", BearerToken: "tok"}, Credentials{APIKey: "k"}, true},
		{"token mismatch", Config{APIKey: "k", BearerToken: "tok"}, Credentials{APIKey: "k", BearerToken: "nope"}, true},
		{"token match", Config{APIKey: "k", BearerToken: "tok"}, Credentials{APIKey: "k", BearerToken: "tok"}, false},
		{"token ignored when not configured", Config{APIKey: "k"}, Credentials{APIKey: "k", BearerToken: "whatever"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newObserved(tt.cfg)
			err := a.Authenticate(tt.creds)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthorized) {
					t.Fatalf("expected ErrUnauthorized, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAllowlistWarnsButDoesNotBlockByDefault(t *testing.T) {
	a, logs := newObserved(Config{
		APIKey:             "key-1",
		IPAllowlist:        []string{"10.0.0.1", "192.168.0.0/16"},
		EnforceIPAllowlist: true,
	})

	if err := a.Authenticate(Credentials{APIKey: "key-1", SourceIP: "8.8.8.8"}); err != nil {
		t.Fatalf("allowlist must be advisory by default, got %v", err)
	}
	if n := logs.FilterMessage("Webhook from IP outside allowlist").Len(); n != 1 {
		t.Errorf("expected one allowlist warning, got %d", n)
	}

	for _, ip := range []string{"10.0.0.1", "192.168.4.20", "unknown", ""} {
		if err := a.Authenticate(Credentials{APIKey: "key-1", SourceIP: ip}); err != nil {
			t.Fatalf("ip %q: unexpected error %v", ip, err)
		}
	}
	if n := logs.FilterMessage("Webhook from IP outside allowlist").Len(); n != 1 {
		t.Errorf("allowlisted or unknown IPs should not warn, got %d warnings", n)
	}
}

func TestAllowlistBlockingIsOptIn(t *testing.T) {
	a, _ := newObserved(Config{
		APIKey:              "key-1",
		IPAllowlist:         []string{"10.0.0.1"},
		EnforceIPAllowlist:  true,
		BlockNonAllowlisted: true,
	})
	if err := a.Authenticate(Credentials{APIKey: "key-1", SourceIP: "8.8.8.8"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if err := a.Authenticate(Credentials{APIKey: "key-1", SourceIP: "10.0.0.1"}); err != nil {
		t.Fatalf("allowlisted ip rejected: %v", err)
	}
}

func TestFailureLogMasksKey(t *testing.T) {
	a, logs := newObserved(Config{APIKey: "correct-key"})
	_ = a.Authenticate(Credentials{APIKey: "supersecretvalue"})

	entries := logs.FilterMessage("Webhook authentication failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure log, got %d", len(entries))
	}
	got := entries[0].ContextMap()["api_key"]
	if got != "supe***" {
		t.Errorf("api_key logged as %v, want masked", got)
	}
	for _, v := range entries[0].ContextMap() {
		if s, ok := v.(string); ok && strings.Contains(s, "supersecretvalue") {
			t.Fatalf("secret leaked into logs")
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"Bearer":      "",
		"Basic abc":   "",
		"":            "",
		"Bearer a b":  "",
		"  Bearer x ": "x",
	}
	for in, want := range tests {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
