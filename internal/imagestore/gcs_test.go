package imagestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"go.uber.org/zap"
)

type memObject struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (m *memObject) Close() error {
	m.closed = true
	return m.closeErr
}

func newTestGCS(prefix string, objects map[string]*memObject, closeErr error) *GCS {
	g := &GCS{bucket: "shipments-bucket", prefix: prefix, logger: zap.NewNop()}
	g.newWriter = func(_ context.Context, object, _ string) io.WriteCloser {
		obj := &memObject{closeErr: closeErr}
		objects[object] = obj
		return obj
	}
	return g
}

func TestUploadUsesPrefixAndReturnsURL(t *testing.T) {
	objects := map[string]*memObject{}
	g := newTestGCS("shipments", objects, nil)

	stored, err := g.Upload(context.Background(), "epod/W1.jpg", []byte("data"), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	obj, ok := objects["shipments/epod/W1.jpg"]
	if !ok || obj.String() != "data" || !obj.closed {
		t.Fatalf("object not written: %v", objects)
	}
	if stored.URL != "https://storage.googleapis.com/shipments-bucket/shipments/epod/W1.jpg" {
		t.Errorf("URL = %s", stored.URL)
	}
	if stored.ObjectName != "shipments/epod/W1.jpg" || stored.Provider != ProviderGCS {
		t.Errorf("unexpected stored %+v", stored)
	}
}

func TestUploadWithoutPrefix(t *testing.T) {
	objects := map[string]*memObject{}
	g := newTestGCS("", objects, nil)
	if _, err := g.Upload(context.Background(), "/qc-images/W3_R9.png", []byte("x"), "image/png"); err != nil {
		t.Fatal(err)
	}
	if _, ok := objects["qc-images/W3_R9.png"]; !ok {
		t.Fatalf("unexpected objects %v", objects)
	}
}

func TestUploadCloseErrorIsReturned(t *testing.T) {
	objects := map[string]*memObject{}
	g := newTestGCS("p", objects, errors.New("403 forbidden"))
	if _, err := g.Upload(context.Background(), "epod/W1.jpg", []byte("x"), "image/jpeg"); err == nil {
		t.Fatal("expected finalize error")
	}
}
