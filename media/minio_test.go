package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startMinio(t *testing.T) MinioConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("minio integration test skipped in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var (
		c   testcontainers.Container
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
			}
		}()
		c, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "minio/minio:latest",
				ExposedPorts: []string{"9000/tcp"},
				Env: map[string]string{
					"MINIO_ROOT_USER":     "scribe",
					"MINIO_ROOT_PASSWORD": "scribe-secret",
				},
				Cmd:        []string{"server", "/data"},
				WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(time.Minute),
			},
			Started: true,
		})
	}()
	if err != nil {
		t.Skipf("minio test skipped: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		t.Fatalf("minio endpoint: %v", err)
	}
	return MinioConfig{
		Endpoint:  endpoint,
		Bucket:    "covers-test",
		AccessKey: "scribe",
		SecretKey: "scribe-secret",
		PathStyle: true,
	}
}

func TestMinioRoundTrip(t *testing.T) {
	cfg := startMinio(t)
	ctx := context.Background()

	store, err := NewMinioStore(cfg)
	if err != nil {
		t.Fatalf("NewMinioStore() error = %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("second EnsureBucket() error = %v", err)
	}

	covers := NewCovers(store)
	url, err := covers.Upload(ctx, Upload{Filename: "c.png", ContentType: "image/png", Body: bytes.NewReader(pngHeader)})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	obj, err := store.cl.GetObject(ctx, cfg.Bucket, url[len(store.public)+1:], minio.GetObjectOptions{})
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Fatalf("stored bytes differ")
	}
	if ct := http.DetectContentType(data); ct != "image/png" {
		t.Fatalf("content sniffed as %q", ct)
	}

	if err := covers.Discard(ctx, url); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
}
