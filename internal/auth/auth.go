// Package auth verifies the shared secrets the courier sends with every
// webhook call.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/logger"
)

// ErrUnauthorized is returned for any credential failure.
var ErrUnauthorized = errors.New("unauthorized")

// Config holds the expected credentials and the source IP policy.
type Config struct {
	APIKey      string
	BearerToken string
	IPAllowlist []string
	// EnforceIPAllowlist turns on allowlist checks. Outside addresses are
	// only logged unless BlockNonAllowlisted is also set.
	EnforceIPAllowlist  bool
	BlockNonAllowlisted bool
}

// Credentials are the values presented on one request.
type Credentials struct {
	APIKey      string
	BearerToken string
	SourceIP    string
}

// Authenticator checks webhook credentials.
type Authenticator struct {
	cfg       Config
	allowed   map[string]struct{}
	allowNets []*net.IPNet
	logger    *zap.Logger
}

// New builds an Authenticator. Allowlist entries may be single addresses or
// CIDR ranges.
func New(cfg Config, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Authenticator{
		cfg:     cfg,
		allowed: make(map[string]struct{}, len(cfg.IPAllowlist)),
		logger:  log,
	}
	for _, entry := range cfg.IPAllowlist {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			a.allowNets = append(a.allowNets, ipNet)
			continue
		}
		a.allowed[entry] = struct{}{}
	}
	return a
}

// Authenticate returns nil when the credentials match, or an error wrapping
// ErrUnauthorized.
func (a *Authenticator) Authenticate(c Credentials) error {
	apiKey := strings.TrimSpace(c.APIKey)
	fields := []zap.Field{
		logger.Masked("api_key", apiKey),
		zap.String("source_ip", c.SourceIP),
	}

	if apiKey == "" {
		return a.reject("missing API key", fields)
	}
	if !equal(apiKey, a.cfg.APIKey) {
		return a.reject("invalid API key", fields)
	}

	if a.cfg.BearerToken != "" {
		token := strings.TrimSpace(c.BearerToken)
		if token == "" {
			return a.reject("missing bearer token", fields)
		}
		if !equal(token, a.cfg.BearerToken) {
			return a.reject("invalid bearer token", fields)
		}
	}

	if a.cfg.EnforceIPAllowlist && !a.ipAllowed(c.SourceIP) {
		if a.cfg.BlockNonAllowlisted {
			return a.reject("source IP not in allowlist", fields)
		}
		a.logger.Warn("Webhook from IP outside allowlist", fields...)
	}

	a.logger.Debug("Webhook authenticated", fields...)
	return nil
}

func (a *Authenticator) reject(reason string, fields []zap.Field) error {
	a.logger.Warn("Webhook authentication failed", append(fields, zap.String("reason", reason))...)
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

// ipAllowed reports true for unresolvable addresses; only a known address
// outside the list counts as a violation.
func (a *Authenticator) ipAllowed(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" || strings.EqualFold(ip, "unknown") {
		return true
	}
	if _, ok := a.allowed[ip]; ok {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	for _, n := range a.allowNets {
		if n.Contains(parsed) {
			return true
		}
	}
	for allowed := range a.allowed {
		if other := net.ParseIP(allowed); other != nil && other.Equal(parsed) {
			return true
		}
	}
	return false
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authz string) string {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func equal(presented, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}
