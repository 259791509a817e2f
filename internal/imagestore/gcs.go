// Package imagestore uploads shipment document images to Google Cloud
// Storage.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/UDDITwork/shipsarthi-sub005/internal/config"
	"github.com/UDDITwork/shipsarthi-sub005/internal/processor"
)

// ProviderGCS is recorded on every document this package stores.
const ProviderGCS = "gcs"

type writerFunc func(ctx context.Context, object, contentType string) io.WriteCloser

// GCS uploads objects into one bucket under a folder prefix.
type GCS struct {
	client    *storage.Client
	bucket    string
	prefix    string
	newWriter writerFunc
	logger    *zap.Logger
}

var _ processor.ImageStorage = (*GCS)(nil)

// NewGCS creates a client for cfg.GCSBucket. Explicit JSON credentials are
// used when configured, application default credentials otherwise.
func NewGCS(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*GCS, error) {
	if strings.TrimSpace(cfg.GCSBucket) == "" {
		return nil, errors.New("GCS bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	g := &GCS{
		client: client,
		bucket: cfg.GCSBucket,
		prefix: strings.Trim(cfg.FolderPrefix, "/"),
		logger: logger,
	}
	g.newWriter = func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		w.CacheControl = "private, max-age=0"
		return w
	}

	logger.Info("GCS image storage ready",
		zap.String("bucket", cfg.GCSBucket),
		zap.String("prefix", g.prefix),
	)
	return g, nil
}

// Upload writes data to <prefix>/<name>, replacing any existing object.
func (g *GCS) Upload(ctx context.Context, name string, data []byte, contentType string) (processor.Stored, error) {
	object := g.objectName(name)

	w := g.newWriter(ctx, object, contentType)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return processor.Stored{}, fmt.Errorf("failed to write gs://%s/%s: %w", g.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return processor.Stored{}, fmt.Errorf("failed to finalize gs://%s/%s: %w", g.bucket, object, err)
	}

	g.logger.Debug("Uploaded document image",
		zap.String("object", object),
		zap.Int("size_bytes", len(data)),
		zap.String("content_type", contentType),
	)
	return processor.Stored{
		URL:        g.PublicURL(object),
		ObjectName: object,
		Provider:   ProviderGCS,
	}, nil
}

// PublicURL returns the storage.googleapis.com URL of object.
func (g *GCS) PublicURL(object string) string {
	u := url.URL{
		Scheme: "https",
		Host:   "storage.googleapis.com",
		Path:   "/" + g.bucket + "/" + object,
	}
	return u.String()
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GCS) objectName(name string) string {
	name = strings.TrimLeft(name, "/")
	if g.prefix == "" {
		return name
	}
	return path.Join(g.prefix, name)
}
