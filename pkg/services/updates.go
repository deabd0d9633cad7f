package services

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/robinjoseph08/golib/logger"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/sources"
)

// catalogSnapshot is an immutable view of the remote catalog.
type catalogSnapshot struct {
	entries   []data.ChapterEntry
	byNumber  map[int]int
	latest    int
	refreshed time.Time
}

func newSnapshot(entries []data.ChapterEntry, at time.Time) *catalogSnapshot {
	seen := make(map[int]struct{}, len(entries))
	sorted := make([]data.ChapterEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Number]; dup {
			continue
		}
		seen[e.Number] = struct{}{}
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	s := &catalogSnapshot{entries: sorted, byNumber: make(map[int]int, len(sorted)), refreshed: at}
	for i, e := range sorted {
		s.byNumber[e.Number] = i
		if e.Number > s.latest {
			s.latest = e.Number
		}
	}
	return s
}

// UpdateDetector caches the remote catalog and diffs it against a watermark.
// A failed refresh keeps the last good snapshot.
type UpdateDetector struct {
	resolver sources.Resolver
	log      logger.Logger
	now      func() time.Time

	snapshot atomic.Pointer[catalogSnapshot]
}

// NewUpdateDetector creates a detector with no catalog loaded.
func NewUpdateDetector(resolver sources.Resolver, log logger.Logger) *UpdateDetector {
	return &UpdateDetector{resolver: resolver, log: log, now: time.Now}
}

// Refresh reloads the catalog. On error the previous snapshot stays in place.
func (u *UpdateDetector) Refresh(ctx context.Context) error {
	entries, err := u.resolver.ListEntries(ctx)
	if err != nil {
		u.log.Err(err).Warn("failed to refresh chapter list, keeping previous entries", logger.Data{
			"cached_entries": len(u.Entries()),
		})
		return err
	}
	u.snapshot.Store(newSnapshot(entries, u.now()))
	u.log.Debug("refreshed chapter list", logger.Data{"entries": len(entries)})
	return nil
}

// CheckForUpdate refreshes the catalog and returns the entries newer than
// currentLatest in ascending order. A failed refresh falls back to the cached
// snapshot.
func (u *UpdateDetector) CheckForUpdate(ctx context.Context, currentLatest int) []data.ChapterEntry {
	_ = u.Refresh(ctx)

	s := u.snapshot.Load()
	if s == nil {
		return nil
	}
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Number > currentLatest })
	if i == len(s.entries) {
		return nil
	}
	out := make([]data.ChapterEntry, len(s.entries)-i)
	copy(out, s.entries[i:])
	return out
}

// LatestNumber returns the highest number in the cached catalog, 0 for a
// loaded but empty one. The second value is false when no catalog has been
// loaded yet.
func (u *UpdateDetector) LatestNumber() (int, bool) {
	s := u.snapshot.Load()
	if s == nil {
		return 0, false
	}
	return s.latest, true
}

// Entries returns the cached catalog in ascending order.
func (u *UpdateDetector) Entries() []data.ChapterEntry {
	s := u.snapshot.Load()
	if s == nil {
		return nil
	}
	out := make([]data.ChapterEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (u *UpdateDetector) Lookup(number int) (data.ChapterEntry, bool) {
	s := u.snapshot.Load()
	if s == nil {
		return data.ChapterEntry{}, false
	}
	i, ok := s.byNumber[number]
	if !ok {
		return data.ChapterEntry{}, false
	}
	return s.entries[i], true
}

// LastRefresh is the time of the last successful refresh, zero if none.
func (u *UpdateDetector) LastRefresh() time.Time {
	s := u.snapshot.Load()
	if s == nil {
		return time.Time{}
	}
	return s.refreshed
}
