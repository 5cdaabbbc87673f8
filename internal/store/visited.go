// Package store provides the bounded visited-URL set used to detect redirect loops.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// VisitedSet remembers the URLs seen during one redirect chain. The Bloom filter
// answers most "never seen" lookups; the LRU holds the exact, bounded membership.
type VisitedSet struct {
	bloom *bloom.BloomFilter
	lru   *lru.Cache[string, struct{}]
	mutex sync.RWMutex
}

// NewVisitedSet creates a set holding up to capacity URLs with the given Bloom false positive rate.
func NewVisitedSet(capacity int, falsePositiveRate float64) *VisitedSet {
	if capacity < 1 {
		capacity = 1
	}
	lruCache, _ := lru.New[string, struct{}](capacity)

	return &VisitedSet{
		bloom: bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
		lru:   lruCache,
	}
}

// Has reports whether rawURL was already visited.
func (vs *VisitedSet) Has(rawURL string) bool {
	vs.mutex.RLock()
	defer vs.mutex.RUnlock()

	if !vs.bloom.TestString(rawURL) {
		return false
	}
	return vs.lru.Contains(rawURL)
}

// Visit records rawURL and reports whether it was new.
func (vs *VisitedSet) Visit(rawURL string) bool {
	vs.mutex.Lock()
	defer vs.mutex.Unlock()

	if vs.bloom.TestString(rawURL) && vs.lru.Contains(rawURL) {
		return false
	}
	vs.bloom.AddString(rawURL)
	vs.lru.Add(rawURL, struct{}{})
	return true
}

// Size returns the number of URLs currently held.
func (vs *VisitedSet) Size() int {
	vs.mutex.RLock()
	defer vs.mutex.RUnlock()
	return vs.lru.Len()
}
