package directory

import (
	"context"
	"sync"
)

// StaticSource serves URLs declared in configuration. Set replaces the
// table, which lets tests and local setups simulate deployments coming and going.
type StaticSource struct {
	mu   sync.RWMutex
	urls map[string]string
}

// NewStaticSource creates a source over a copy of urls.
func NewStaticSource(urls map[string]string) *StaticSource {
	s := &StaticSource{}
	s.Set(urls)
	return s
}

// Name implements Source.
func (s *StaticSource) Name() string { return SourceStatic }

// Set replaces the whole table.
func (s *StaticSource) Set(urls map[string]string) {
	cp := make(map[string]string, len(urls))
	for k, v := range urls {
		cp[k] = v
	}
	s.mu.Lock()
	s.urls = cp
	s.mu.Unlock()
}

// Fetch implements Source.
func (s *StaticSource) Fetch(ctx context.Context, names []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(names))
	for _, name := range names {
		if url, ok := s.urls[name]; ok && url != "" {
			out[name] = url
		}
	}
	return out, nil
}

// Close is a no-op for StaticSource.
func (s *StaticSource) Close() error { return nil }
