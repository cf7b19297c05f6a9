// Package imagestore saves complaint photos under the media root.
//
// Files are written to <root>/complaint_images/YYYY/MM/<uuid>.<ext> and served
// from <urlPrefix>/<same relative path>. Only the relative path is stored on
// the ComplaintImage record.
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
)

var (
	ErrTooLarge = errors.New("image exceeds the size limit")
	ErrNotImage = errors.New("file is not a supported image")
)

// allowed maps sniffed content types to file extensions.
var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Saved describes a stored image.
type Saved struct {
	Path        string
	ContentType string
	Size        int64
}

// Store validates uploads and hands them to a storage backend.
type Store struct {
	backend  storage.Store
	maxBytes int64
}

// New builds a Store on any storage backend.
func New(backend storage.Store, maxBytes int64) *Store {
	return &Store{backend: backend, maxBytes: maxBytes}
}

// NewLocal builds a Store writing under the local directory root and
// serving from urlPrefix.
func NewLocal(root, urlPrefix string, maxBytes int64) (*Store, error) {
	backend, err := storage.NewLocal(storage.LocalConfig{
		BasePath: root,
		BaseURL:  urlPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("media storage: %w", err)
	}
	return New(backend, maxBytes), nil
}

// MaxBytes is the per-image size cap.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// SaveUpload stores one multipart file.
func (s *Store) SaveUpload(ctx context.Context, fh *multipart.FileHeader, now time.Time) (Saved, error) {
	if fh.Size > s.maxBytes {
		return Saved{}, ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return Saved{}, err
	}
	defer f.Close()
	return s.Save(ctx, f, now)
}

// Save sniffs the content type, enforces the size cap and writes r.
func (s *Store) Save(ctx context.Context, r io.Reader, now time.Time) (Saved, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Saved{}, err
	}
	head = head[:n]
	if n == 0 {
		return Saved{}, ErrNotImage
	}

	ctype := http.DetectContentType(head)
	ext, ok := allowed[ctype]
	if !ok {
		return Saved{}, ErrNotImage
	}

	// Buffer the remainder so an oversized upload never reaches the backend.
	var buf bytes.Buffer
	buf.Write(head)
	copied, err := io.Copy(&buf, io.LimitReader(r, s.maxBytes-int64(n)+1))
	if err != nil {
		return Saved{}, err
	}
	size := int64(n) + copied
	if size > s.maxBytes {
		return Saved{}, ErrTooLarge
	}

	now = now.UTC()
	rel := path.Join("complaint_images",
		fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())),
		uuid.NewString()+ext)

	if err := s.backend.Put(ctx, rel, &buf, &storage.PutOptions{ContentType: ctype}); err != nil {
		return Saved{}, fmt.Errorf("store image: %w", err)
	}
	return Saved{Path: rel, ContentType: ctype, Size: size}, nil
}

// Delete removes a stored image. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, rel string) error {
	if strings.Trim(rel, "/.") == "" {
		return storage.ErrInvalidPath
	}
	err := s.backend.Delete(ctx, rel)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// URL returns the public URL for a stored relative path.
func (s *Store) URL(rel string) string {
	return s.backend.URL(rel)
}
