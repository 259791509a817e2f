package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
)

// SignatureHeader carries the HMAC of the request body.
const SignatureHeader = "X-Signature"

// maxErrorBody bounds how much of a failed response is kept for the log.
const maxErrorBody = 512

// HTTPSink POSTs notifications as JSON to a fixed URL, signing each body
// when a secret is configured.
type HTTPSink struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPSink creates a sink for url. client may be nil.
func NewHTTPSink(url, secret string, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPSink{url: url, secret: secret, client: client}
}

func (s *HTTPSink) Name() string { return "http" }

func (s *HTTPSink) Emit(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(n.EventType))
	if n.RequestID != "" {
		req.Header.Set("X-Request-ID", n.RequestID)
	}
	if s.secret != "" {
		signature, err := Sign(body, s.secret)
		if err != nil {
			return err
		}
		req.Header.Set(SignatureHeader, signature)
	}

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed after %s: %w", time.Since(started).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("notification endpoint returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Sign returns the body signature as sha256=<hex hmac>.
func Sign(body []byte, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write(body); err != nil {
		return "", fmt.Errorf("failed to write payload to HMAC: %w", err)
	}
	return "sha256=" + hex.EncodeToString(mac.Sum(nil)), nil
}
