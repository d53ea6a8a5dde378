package entity

import "time"

// Service health states reported by the health endpoint.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CacheStats contains lookup cache counters.
type CacheStats struct {
	Hits     int64
	Misses   int64
	Degraded bool
}

// HitRate returns the share of lookups served from the cache.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MemoryStats contains process memory usage in bytes.
type MemoryStats struct {
	Alloc      uint64
	TotalAlloc uint64
	Sys        uint64
	NumGC      uint32
}

// Metrics is the aggregated view served by the metrics endpoint.
type Metrics struct {
	TotalLinks    int64
	RecentLinks   int64 // RecentLinks counts links created within the last 24 hours.
	TotalClicks   int64
	AverageClicks float64
	TopLinks      []*ShortLink
	Cache         CacheStats
	Uptime        time.Duration
	Memory        MemoryStats
	CollectedAt   time.Time
}

// Health is the result of a dependency check.
type Health struct {
	Status    string
	Store     string
	Cache     string
	Server    string
	Uptime    time.Duration
	CheckedAt time.Time
}

// Healthy reports whether every dependency is healthy.
func (h Health) Healthy() bool {
	return h.Status == StatusHealthy
}
