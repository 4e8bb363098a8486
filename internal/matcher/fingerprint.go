package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// purgeGenerationGap is the staleness bound: entries not seen for this many
// generations are dropped after a run.
const purgeGenerationGap = 5

// Fingerprint identifies a stream as displayed: group, stream id, and the
// raw name. Any rename produces a new fingerprint and so a fresh match.
func Fingerprint(groupID, streamID, rawName string) string {
	h := sha256.New()
	h.Write([]byte(groupID))
	h.Write([]byte{0})
	h.Write([]byte(streamID))
	h.Write([]byte{0})
	h.Write([]byte(rawName))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// CacheEntry is one remembered match outcome.
type CacheEntry struct {
	Fingerprint        string
	EventID            string
	League             string
	Confidence         float64
	Segment            Segment
	LastSeenGeneration uint64
}

// FingerprintStore persists the match cache across process restarts.
type FingerprintStore interface {
	LoadMatchCache() ([]CacheEntry, error)
	SaveMatchCache(entries []CacheEntry) error
}

// fingerprintCache serialises all writes behind one mutex; reads copy the
// entry out so callers never hold a reference into the map.
type fingerprintCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

func newFingerprintCache() *fingerprintCache {
	return &fingerprintCache{entries: make(map[string]CacheEntry)}
}

func (c *fingerprintCache) get(fp string, generation uint64) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fp]
	if !ok {
		return CacheEntry{}, false
	}
	e.LastSeenGeneration = generation
	c.entries[fp] = e
	return e, true
}

func (c *fingerprintCache) put(e CacheEntry) {
	c.mu.Lock()
	c.entries[e.Fingerprint] = e
	c.mu.Unlock()
}

// purge drops entries unseen for purgeGenerationGap generations and returns
// how many were removed.
func (c *fingerprintCache) purge(generation uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for fp, e := range c.entries {
		if generation-e.LastSeenGeneration >= purgeGenerationGap {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed
}

func (c *fingerprintCache) snapshot() []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

func (c *fingerprintCache) load(entries []CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[e.Fingerprint] = e
	}
}

func (c *fingerprintCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
