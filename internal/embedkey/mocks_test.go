package embedkey

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"bookingtms/internal/widgetconfig"
	"bookingtms/pkg/cache"
)

type fakeStore struct {
	mu      sync.Mutex
	widgets map[string]*widgetconfig.Widget
	calls   int
	err     error
}

func (s *fakeStore) GetByEmbedKey(ctx context.Context, embedKey string) (*widgetconfig.Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	w, ok := s.widgets[embedKey]
	if !ok {
		return nil, widgetconfig.ErrWidgetNotFound
	}
	return w, nil
}

// memoryCache implements cache.Service over a map
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(v, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}
