// Package memory holds metadata documents in process memory with LRU
// eviction bounded by entry count and total bytes.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/gftdcojp/tng-client/internal/metrics"
	"go.uber.org/zap"
)

const cacheName = "memory"

type entry struct {
	url  string
	body []byte
}

// Store implements tng.DocumentCache as an in-process LRU cache.
type Store struct {
	mu         sync.Mutex
	cfg        config.MemoryCacheConfig
	entries    map[string]*list.Element
	order      *list.List // front is most recently used
	totalBytes int64
	logger     *zap.Logger
}

func NewStore(cfg config.MemoryCacheConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:     cfg,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		logger:  logger,
	}
}

func (s *Store) Get(_ context.Context, url string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[url]
	if !ok {
		metrics.CacheLookups.WithLabelValues(cacheName, "miss").Inc()
		return nil, false, nil
	}
	s.order.MoveToFront(el)
	metrics.CacheLookups.WithLabelValues(cacheName, "hit").Inc()
	return el.Value.(*entry).body, true, nil
}

// Put stores body under url. A document larger than MaxBytes is not kept.
func (s *Store) Put(_ context.Context, url string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(len(body))
	if limit := int64(s.cfg.MaxBytes); limit > 0 && size > limit {
		s.logger.Debug("document exceeds memory cache", zap.String("url", url), zap.Int64("size", size))
		return nil
	}

	if el, ok := s.entries[url]; ok {
		e := el.Value.(*entry)
		s.totalBytes += size - int64(len(e.body))
		e.body = body
		s.order.MoveToFront(el)
	} else {
		for s.shouldEvict(size) {
			s.evictOldest()
		}
		s.entries[url] = s.order.PushFront(&entry{url: url, body: body})
		s.totalBytes += size
	}
	for s.overBytes(0) && s.order.Len() > 1 {
		s.evictOldest()
	}
	metrics.CacheBytes.WithLabelValues(cacheName).Set(float64(s.totalBytes))
	return nil
}

func (s *Store) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[url]; ok {
		s.remove(el)
		metrics.CacheBytes.WithLabelValues(cacheName).Set(float64(s.totalBytes))
	}
	return nil
}

// Len returns the number of cached documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Bytes returns the total size of cached documents.
func (s *Store) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	s.totalBytes = 0
	metrics.CacheBytes.WithLabelValues(cacheName).Set(0)
	return nil
}

func (s *Store) shouldEvict(incoming int64) bool {
	if len(s.entries) == 0 {
		return false
	}
	if s.cfg.MaxEntries > 0 && len(s.entries) >= s.cfg.MaxEntries {
		return true
	}
	return s.overBytes(incoming)
}

func (s *Store) overBytes(incoming int64) bool {
	limit := int64(s.cfg.MaxBytes)
	return limit > 0 && s.totalBytes+incoming > limit
}

func (s *Store) evictOldest() {
	el := s.order.Back()
	if el == nil {
		return
	}
	url := el.Value.(*entry).url
	s.remove(el)
	metrics.CacheEvictions.WithLabelValues(cacheName).Inc()
	s.logger.Debug("evicted document from memory", zap.String("url", url))
}

func (s *Store) remove(el *list.Element) {
	e := el.Value.(*entry)
	s.order.Remove(el)
	delete(s.entries, e.url)
	s.totalBytes -= int64(len(e.body))
}
