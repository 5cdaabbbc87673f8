// Package flood provides per-client request rate limiting for the HTTP serve mode.
package flood

import (
	"sync"
	"time"
)

const (
	windowDuration  = 60 * time.Second
	cleanupInterval = 10 * time.Minute
	idleTimeout     = 10 * time.Minute
)

// Floodgate limits each client to a number of requests per route in a sliding
// one-minute window. Idle clients are forgotten by a background sweep.
type Floodgate struct {
	limitPerMinute int
	entries        map[string]*clientEntry // keyed by entryKey(route, clientID)
	mutex          sync.RWMutex
	stopCleanup    chan struct{}
	stopOnce       sync.Once
}

type clientEntry struct {
	timestamps []time.Time // accepted requests inside the window, oldest first
	lastSeen   time.Time
}

// New creates a Floodgate allowing limitPerMinute requests per client and route.
// A limit of zero or less rejects everything; callers disable limiting by not
// creating a gate at all.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		limitPerMinute: limitPerMinute,
		entries:        make(map[string]*clientEntry),
		stopCleanup:    make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// Stop ends the background sweep. It is safe to call more than once.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() {
		close(fg.stopCleanup)
	})
}

func entryKey(route, clientID string) string {
	return route + ":" + clientID
}

// Allow records a request and reports whether it fits in the client's window.
// Rejected requests are not recorded.
func (fg *Floodgate) Allow(route, clientID string) bool {
	now := time.Now()

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	entry := fg.entry(entryKey(route, clientID))
	entry.lastSeen = now
	entry.prune(now)

	if len(entry.timestamps) >= fg.limitPerMinute {
		return false
	}

	entry.timestamps = append(entry.timestamps, now)
	return true
}

// RetryAfter returns how long until the client may send its next request on
// route; zero when it may send one now.
func (fg *Floodgate) RetryAfter(route, clientID string) time.Duration {
	now := time.Now()

	fg.mutex.RLock()
	defer fg.mutex.RUnlock()

	if fg.limitPerMinute <= 0 {
		return windowDuration
	}
	entry, ok := fg.entries[entryKey(route, clientID)]
	if !ok {
		return 0
	}

	windowStart := now.Add(-windowDuration)
	inWindow := entry.timestamps[:0:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			inWindow = append(inWindow, ts)
		}
	}
	if len(inWindow) < fg.limitPerMinute {
		return 0
	}

	// The slot frees up when the oldest request that keeps the client at the limit expires.
	oldest := inWindow[len(inWindow)-fg.limitPerMinute]
	return oldest.Add(windowDuration).Sub(now)
}

func (fg *Floodgate) entry(key string) *clientEntry {
	entry, ok := fg.entries[key]
	if !ok {
		entry = &clientEntry{
			timestamps: make([]time.Time, 0, max(fg.limitPerMinute, 0)+1),
		}
		fg.entries[key] = entry
	}
	return entry
}

// prune drops timestamps that left the window, reusing the slice.
func (e *clientEntry) prune(now time.Time) {
	windowStart := now.Add(-windowDuration)
	kept := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	e.timestamps = kept
}

func (fg *Floodgate) cleanup() {
	fg.performCleanup()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.performCleanup()
		case <-fg.stopCleanup:
			return
		}
	}
}

func (fg *Floodgate) performCleanup() {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := time.Now().Add(-idleTimeout)
	for key, entry := range fg.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(fg.entries, key)
		}
	}
}

// GetStats returns the gate's current size and settings.
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.RLock()
	defer fg.mutex.RUnlock()

	return Stats{
		ActiveClients:  len(fg.entries),
		LimitPerMinute: fg.limitPerMinute,
		WindowSeconds:  int(windowDuration.Seconds()),
	}
}

// Stats describes a Floodgate. ActiveClients counts client and route pairs.
type Stats struct {
	ActiveClients  int `json:"active_clients"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}
