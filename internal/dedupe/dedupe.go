// Package dedupe answers whether a scan has already been stored, so repeated
// courier deliveries can be acknowledged without being queued again.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
)

// Lookup is the persistent fingerprint index.
type Lookup interface {
	TrackingEventExists(ctx context.Context, awb, status, statusDateTime string) (bool, error)
}

// Cache is an optional fast path in front of Lookup.
type Cache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Deduplicator checks scan fingerprints. The (awb, status, status_date_time)
// triple is the key; StatusDateTime is compared as sent, after trimming.
type Deduplicator struct {
	lookup Lookup
	cache  Cache
	logger *zap.Logger
}

// New creates a Deduplicator. cache may be nil.
func New(lookup Lookup, cache Cache, logger *zap.Logger) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{lookup: lookup, cache: cache, logger: logger}
}

// Key returns the cache key for a fingerprint.
func Key(awb, status, statusDateTime string) string {
	sum := sha256.Sum256([]byte(awb + "\x00" + status + "\x00" + statusDateTime))
	return "dedupe:scan:" + hex.EncodeToString(sum[:])
}

// Exists reports whether the scan is already stored. Cache failures fall
// through to the persistent lookup; only lookup failures are returned.
func (d *Deduplicator) Exists(ctx context.Context, awb, status, statusDateTime string) (bool, error) {
	key := Key(awb, status, statusDateTime)

	if d.cache != nil {
		seen, err := d.cache.Seen(ctx, key)
		if err != nil {
			d.logger.Warn("Dedupe cache lookup failed, using database",
				zap.String("awb", awb),
				zap.Error(err),
			)
		} else if seen {
			return true, nil
		}
	}

	found, err := d.lookup.TrackingEventExists(ctx, awb, status, statusDateTime)
	if err != nil {
		return false, fmt.Errorf("dedupe lookup: %w", err)
	}
	if found {
		d.mark(ctx, key, awb)
	}
	return found, nil
}

// Remember records a fingerprint after the event has been stored.
func (d *Deduplicator) Remember(ctx context.Context, awb, status, statusDateTime string) {
	d.mark(ctx, Key(awb, status, statusDateTime), awb)
}

func (d *Deduplicator) mark(ctx context.Context, key, awb string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Mark(ctx, key); err != nil {
		d.logger.Warn("Failed to record dedupe fingerprint",
			zap.String("awb", awb),
			zap.Error(err),
		)
	}
}
