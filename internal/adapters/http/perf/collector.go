// Package perf keeps a bounded in-memory history of request, query and
// upstream timings for the admin performance page.
package perf

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// EntryKind tells what was timed.
type EntryKind uint8

const (
	KindRequest  EntryKind = iota // inbound HTTP request
	KindQuery                     // local SQLite statement
	KindUpstream                  // call to a backend service
)

// Entry is one timing record.
type Entry struct {
	Kind       EntryKind
	Path       string // "GET /members", "store.Method" or "service METHOD"
	StatusCode int
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring buffer; when full the oldest entry is
// overwritten. Aggregation only happens in Snapshot.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	pos     int
	count   atomic.Int64
	now     func() time.Time
}

// NewCollector creates a collector holding at most size entries.
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{entries: make([]Entry, size), now: time.Now}
}

// Record stores e.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % len(c.entries)
	c.mu.Unlock()
	c.count.Add(1)
}

// ObserveUpstream implements backend.Observer.
func (c *Collector) ObserveUpstream(service, method string, status int, d time.Duration) {
	c.Record(Entry{
		Kind:       KindUpstream,
		Path:       service + " " + method,
		StatusCode: status,
		DurationMs: float64(d.Microseconds()) / 1000.0,
		Timestamp:  c.now().Add(-d),
	})
}

// TotalRecorded returns how many entries were ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return c.count.Load()
}

// PathStat aggregates the entries sharing one Path.
type PathStat struct {
	Path    string
	Count   int
	Errors  int // status >= 500, or 0 for upstream calls that never got a response
	TotalMs float64
	AvgMs   float64
	MaxMs   float64
}

// KindStats summarises one EntryKind.
type KindStats struct {
	Count   int
	P50Ms   float64
	P95Ms   float64
	P99Ms   float64
	Slowest []PathStat
}

// Snapshot is the aggregated view rendered on the perf page.
type Snapshot struct {
	TotalRecorded int64
	Since         time.Time
	Requests      KindStats
	Queries       KindStats
	Upstream      KindStats
}

// Snapshot aggregates entries recorded at or after since, keeping the topN
// slowest paths (by average) per kind.
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := make([]Entry, len(c.entries))
	copy(buf, c.entries)
	c.mu.Unlock()

	var groups [3][]Entry
	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) || int(e.Kind) >= len(groups) {
			continue
		}
		groups[e.Kind] = append(groups[e.Kind], e)
	}

	return Snapshot{
		TotalRecorded: c.TotalRecorded(),
		Since:         since,
		Requests:      summarise(groups[KindRequest], topN),
		Queries:       summarise(groups[KindQuery], topN),
		Upstream:      summarise(groups[KindUpstream], topN),
	}
}

func summarise(entries []Entry, topN int) KindStats {
	ks := KindStats{Count: len(entries)}
	if len(entries) == 0 {
		return ks
	}
	durations := make([]float64, 0, len(entries))
	byPath := make(map[string]*PathStat)
	for _, e := range entries {
		durations = append(durations, e.DurationMs)
		s := byPath[e.Path]
		if s == nil {
			s = &PathStat{Path: e.Path}
			byPath[e.Path] = s
		}
		s.Count++
		s.TotalMs += e.DurationMs
		s.MaxMs = math.Max(s.MaxMs, e.DurationMs)
		if isFailure(e) {
			s.Errors++
		}
	}
	sort.Float64s(durations)
	ks.P50Ms = percentile(durations, 50)
	ks.P95Ms = percentile(durations, 95)
	ks.P99Ms = percentile(durations, 99)

	ks.Slowest = make([]PathStat, 0, len(byPath))
	for _, s := range byPath {
		s.AvgMs = s.TotalMs / float64(s.Count)
		ks.Slowest = append(ks.Slowest, *s)
	}
	sort.Slice(ks.Slowest, func(i, j int) bool {
		if ks.Slowest[i].AvgMs != ks.Slowest[j].AvgMs {
			return ks.Slowest[i].AvgMs > ks.Slowest[j].AvgMs
		}
		return ks.Slowest[i].Path < ks.Slowest[j].Path
	})
	if topN > 0 && len(ks.Slowest) > topN {
		ks.Slowest = ks.Slowest[:topN]
	}
	return ks
}

func isFailure(e Entry) bool {
	switch e.Kind {
	case KindUpstream:
		return e.StatusCode == 0 || e.StatusCode >= 500
	case KindRequest:
		return e.StatusCode >= 500
	}
	return false
}

// percentile interpolates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
