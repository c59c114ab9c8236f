package offline

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
)

// Bucket is one named response cache.
type Bucket interface {
	Match(ctx context.Context, url string) (*Response, bool, error)
	Put(ctx context.Context, url string, resp *Response) error
	// Keys lists the stored urls.
	Keys(ctx context.Context) ([]string, error)
}

// CacheStorage holds every bucket of the origin.
type CacheStorage interface {
	// Open returns the named bucket, creating it when missing.
	Open(ctx context.Context, name string) (Bucket, error)
	// Keys lists bucket names in creation order.
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
	// Match searches every bucket in creation order.
	Match(ctx context.Context, url string) (*Response, bool, error)
}

// OpenStorage selects a CacheStorage by driver name.
func OpenStorage(driver string, db *sql.DB) (CacheStorage, error) {
	switch driver {
	case "memory":
		return NewMemoryCacheStorage(), nil
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite cache storage needs a database")
		}
		return NewSQLiteCacheStorage(db), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %q", driver)
	}
}

// MemoryCacheStorage keeps buckets for the life of the process.
type MemoryCacheStorage struct {
	mu      sync.RWMutex
	order   []string
	buckets map[string]*memoryBucket
}

// NewMemoryCacheStorage creates an empty MemoryCacheStorage.
func NewMemoryCacheStorage() *MemoryCacheStorage {
	return &MemoryCacheStorage{buckets: make(map[string]*memoryBucket)}
}

func (s *MemoryCacheStorage) Open(_ context.Context, name string) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[name]
	if !ok {
		b = &memoryBucket{entries: make(map[string]*Response)}
		s.buckets[name] = b
		s.order = append(s.order, name)
	}
	return b, nil
}

func (s *MemoryCacheStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

func (s *MemoryCacheStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[name]; !ok {
		return false, nil
	}
	delete(s.buckets, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	return true, nil
}

func (s *MemoryCacheStorage) Match(ctx context.Context, url string) (*Response, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range s.order {
		if resp, ok, _ := s.buckets[name].Match(ctx, url); ok {
			return resp, true, nil
		}
	}
	return nil, false, nil
}

type memoryBucket struct {
	mu      sync.RWMutex
	urls    []string
	entries map[string]*Response
}

func (b *memoryBucket) Match(_ context.Context, url string) (*Response, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	resp, ok := b.entries[url]
	return resp.Clone(), ok, nil
}

func (b *memoryBucket) Put(_ context.Context, url string, resp *Response) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[url]; !ok {
		b.urls = append(b.urls, url)
	}
	b.entries[url] = resp.Clone()
	return nil
}

func (b *memoryBucket) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.urls), nil
}
