// Package cache holds rendered pages keyed by the store version they were
// rendered from. Any mutation bumps the version, so stale pages are never
// served and simply age out of the LRU.
package cache

import (
	"errors"
	"strconv"
	"sync"

	"pastebin/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

type PageCache struct {
	c     *lru.Cache[string, []byte]
	mu    sync.Mutex
	group singleflight.Group
}

func NewPageCache(size int) (*PageCache, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if size > 100000 {
		return nil, errors.New("cache size too large")
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &PageCache{c: c}, nil
}

func Key(page string, version uint64) string {
	return page + ":" + strconv.FormatUint(version, 10)
}

func (p *PageCache) Get(page string, version uint64) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	body, ok := p.c.Get(Key(page, version))
	if ok {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}
	return body, ok
}

func (p *PageCache) Set(page string, version uint64, body []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.c.Add(Key(page, version), body)
}

// GetOrRender returns the cached page or renders and caches it. Concurrent
// misses for the same key share one render. Render errors are not cached.
func (p *PageCache) GetOrRender(page string, version uint64, render func() ([]byte, error)) ([]byte, error) {
	if body, ok := p.Get(page, version); ok {
		return body, nil
	}
	v, err, _ := p.group.Do(Key(page, version), func() (interface{}, error) {
		body, err := render()
		if err != nil {
			return nil, err
		}
		p.Set(page, version, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (p *PageCache) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c.Len()
}

func (p *PageCache) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.c.Purge()
}
