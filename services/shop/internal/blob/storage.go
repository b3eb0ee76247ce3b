// Package blob stores catalog images in container-scoped blob storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/appetiteclub/apt"
)

const (
	ContainerModel      = "model"
	ContainerComplement = "complement"
)

var (
	ErrInvalidURL = errors.New("invalid blob url")
	ErrNotFound   = errors.New("blob not found")
)

// Storage uploads and deletes blobs. Upload returns the public URL that gets
// persisted on the catalog entity.
type Storage interface {
	Upload(ctx context.Context, container, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, container, name string) error
}

// KeyFromURL returns the blob name of an image URL: its last path segment,
// URL-decoded.
func KeyFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	key, err := url.PathUnescape(path.Base(u.EscapedPath()))
	if err != nil || key == "" || key == "." || key == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return key, nil
}

// DeleteByURL deletes the blob an image URL points to.
func DeleteByURL(ctx context.Context, s Storage, container, imageURL string) error {
	key, err := KeyFromURL(imageURL)
	if err != nil {
		return err
	}
	if err := s.Delete(ctx, container, key); err != nil {
		return fmt.Errorf("delete blob %s/%s: %w", container, key, err)
	}
	return nil
}

// FromProperties builds the storage backend from apt.Config.
func FromProperties(config *apt.Config) (Storage, error) {
	if config == nil {
		return nil, fmt.Errorf("blob: properties required")
	}

	backend, _ := config.GetString("blob.backend")
	accountURL, _ := config.GetString("blob.account.url")
	if backend == "" {
		backend = "azure"
		if accountURL == "" {
			backend = "memory"
		}
	}

	switch backend {
	case "azure":
		modelSAS, _ := config.GetString("blob.model.sas")
		complementSAS, _ := config.GetString("blob.complement.sas")
		return NewAzureBackend(accountURL, map[string]string{
			ContainerModel:      modelSAS,
			ContainerComplement: complementSAS,
		})
	case "memory":
		return NewMemoryBackend("memory://blobs"), nil
	default:
		return nil, fmt.Errorf("blob: unsupported backend %q", backend)
	}
}

// MemoryBackend keeps blobs in process. It backs development setups without
// a storage account.
type MemoryBackend struct {
	baseURL string
	mu      sync.RWMutex
	blobs   map[string][]byte
}

func NewMemoryBackend(baseURL string) *MemoryBackend {
	return &MemoryBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		blobs:   make(map[string][]byte),
	}
}

func (m *MemoryBackend) Upload(ctx context.Context, container, name string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	m.blobs[container+"/"+name] = append([]byte(nil), data...)
	m.mu.Unlock()
	return m.baseURL + "/" + container + "/" + url.PathEscape(name), nil
}

func (m *MemoryBackend) Delete(ctx context.Context, container, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := container + "/" + name
	if _, ok := m.blobs[k]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, k)
	return nil
}

// Has reports whether a blob exists.
func (m *MemoryBackend) Has(container, name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[container+"/"+name]
	return ok
}
