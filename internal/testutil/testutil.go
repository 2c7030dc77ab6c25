// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sort"
	"strings"
	"sync"
)

// T is the subset of testing.TB the fixtures need.
type T interface {
	Helper()
	Fatalf(string, ...any)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t T, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, gradient(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// TinyJPEG returns an in-memory JPEG byte slice with the requested dimensions.
func TinyJPEG(t T, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, gradient(w, h), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

// ErrStoreDown is returned by MemoryStore when failures are injected.
var ErrStoreDown = errors.New("object store unavailable")

// MemoryStore is an in-memory object store serving URLs under BaseURL.
type MemoryStore struct {
	BaseURL string

	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	failPut   bool
	failAfter int
	puts      int
}

// NewMemoryStore returns an empty store with base URL "https://cdn.test".
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{BaseURL: "https://cdn.test", objects: make(map[string][]byte), failAfter: -1}
}

// FailPuts makes every Put fail.
func (s *MemoryStore) FailPuts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = true
}

// FailPutsAfter lets n more Puts succeed and fails the rest.
func (s *MemoryStore) FailPutsAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = s.puts + n
}

func (s *MemoryStore) Put(ctx context.Context, key string, body []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut || (s.failAfter >= 0 && s.puts >= s.failAfter) {
		return "", ErrStoreDown
	}
	s.puts++
	s.objects[key] = append([]byte(nil), body...)
	return s.PublicURL(key), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *MemoryStore) PublicURL(key string) string {
	return s.BaseURL + "/" + key
}

func (s *MemoryStore) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.BaseURL+"/")
	return key, ok && key != ""
}

// Keys lists stored keys in order.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Object returns the stored bytes for key.
func (s *MemoryStore) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

// Deleted lists every key passed to Delete.
func (s *MemoryStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
