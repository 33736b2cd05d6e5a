package lru

// Stats holds cache performance counters.
type Stats struct {
	Hits       int64
	Misses     int64
	Entries    int
	MaxEntries int
}

// HitRate returns the fraction of lookups served from the cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Stats returns the current counters.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Entries:    c.Len(),
		MaxEntries: c.maxEntries,
	}
}
