// Package media stores post cover images in an object store.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUploadsDisabled = errors.New("media: uploads are not configured")
	ErrNotImage        = errors.New("media: only image files are allowed")
	ErrTooLarge        = errors.New("media: file too large")
)

const (
	DefaultMaxCoverSize = 5 << 20
	CoverPrefix         = "covers/"
)

// ObjectStore is the storage behind Covers.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	RemoveObject(ctx context.Context, key string) error
	// URL is the public address of key.
	URL(key string) string
}

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Covers validates and stores cover images.
type Covers struct {
	store   ObjectStore
	maxSize int64
	newID   func() string
}

type Option func(*Covers)

// WithMaxSize caps accepted uploads in bytes.
func WithMaxSize(n int64) Option {
	return func(c *Covers) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// NewCovers wraps store. A nil store disables uploads.
func NewCovers(store ObjectStore, opts ...Option) *Covers {
	c := &Covers{store: store, maxSize: DefaultMaxCoverSize, newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Enabled reports whether an object store is configured.
func (c *Covers) Enabled() bool { return c != nil && c.store != nil }

// MaxSize is the upload cap in bytes.
func (c *Covers) MaxSize() int64 { return c.maxSize }

// Upload stores u under covers/<uuid><ext> and returns its public URL.
// The content is sniffed; a declared image type alone is not trusted.
func (c *Covers) Upload(ctx context.Context, u Upload) (string, error) {
	if !c.Enabled() {
		return "", ErrUploadsDisabled
	}
	if u.ContentType != "" && !strings.HasPrefix(strings.ToLower(u.ContentType), "image/") {
		return "", ErrNotImage
	}
	data, err := io.ReadAll(io.LimitReader(u.Body, c.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("media: read upload: %w", err)
	}
	if int64(len(data)) > c.maxSize {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, c.maxSize)
	}
	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return "", ErrNotImage
	}

	key := CoverPrefix + c.newID() + extension(u.Filename)
	if err := c.store.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), sniffed); err != nil {
		return "", fmt.Errorf("media: store cover: %w", err)
	}
	return c.store.URL(key), nil
}

// Discard removes a cover previously returned by Upload. URLs that were
// not produced by this store are ignored.
func (c *Covers) Discard(ctx context.Context, url string) error {
	if !c.Enabled() || url == "" {
		return nil
	}
	i := strings.Index(url, CoverPrefix)
	if i < 0 {
		return nil
	}
	key := url[i:]
	if c.store.URL(key) != url {
		return nil
	}
	return c.store.RemoveObject(ctx, key)
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

func extension(filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, `\`, "/")))
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}
