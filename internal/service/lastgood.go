package service

import (
	"encoding/json"
	"sync"
	"time"
)

// lastGood remembers the most recent successful response per cache key so a
// request can be answered after the cache entry expired and every provider
// failed.
type lastGood struct {
	mu      sync.RWMutex
	entries map[string]lastGoodEntry
	max     int
}

type lastGoodEntry struct {
	value json.RawMessage
	at    time.Time
}

func newLastGood(max int) *lastGood {
	return &lastGood{entries: make(map[string]lastGoodEntry), max: max}
}

func (l *lastGood) put(key string, v any, now time.Time) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[key]; !ok && l.max > 0 && len(l.entries) >= l.max {
		l.evictOldest()
	}
	l.entries[key] = lastGoodEntry{value: data, at: now}
}

// get decodes the value for key into dst and returns when it was stored.
func (l *lastGood) get(key string, dst any) (time.Time, bool) {
	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	if err := json.Unmarshal(e.value, dst); err != nil {
		return time.Time{}, false
	}
	return e.at, true
}

func (l *lastGood) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// evictOldest must be called with mu held.
func (l *lastGood) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range l.entries {
		if oldestKey == "" || e.at.Before(oldest) {
			oldestKey, oldest = k, e.at
		}
	}
	delete(l.entries, oldestKey)
}
