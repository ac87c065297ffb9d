// Package blobstore provides the key/value object stores that back the result
// cache. Stores give no transactional guarantees beyond single-object
// atomicity; concurrent writers of one key resolve as last writer wins.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by GetObject when the key does not exist
var ErrNotFound = errors.New("blobstore: object not found")

// ErrInvalidKey is returned for keys a backend cannot address
var ErrInvalidKey = errors.New("blobstore: invalid key")

// ObjectInfo describes one stored object
type ObjectInfo struct {
	Key  string
	Size int64
}

// Store is the minimal contract required by the result cache
type Store interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte) error
	DeleteObject(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Pinger is implemented by stores that can report backend reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s when it implements Pinger and succeeds otherwise
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases s when it holds resources
func Close(s Store) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
