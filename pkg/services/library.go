package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

// ChapterSummary is a downloaded chapter as shown to users.
type ChapterSummary struct {
	Number       int       `json:"chapter"`
	Title        string    `json:"title"`
	Package      string    `json:"package"`
	Pages        int       `json:"pages"`
	PublishedAt  time.Time `json:"published_at,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// ListChapters returns the downloaded chapters in ascending order, or newest
// publication first when byDate is set. The DuckDB index answers byDate
// queries when enabled; otherwise the cached catalog supplies the dates.
func (c *Controller) ListChapters(ctx context.Context, byDate bool, limit int) ([]ChapterSummary, error) {
	if byDate && c.Index != nil {
		rows, err := c.Index.ListChapters(ctx, data.ListOptions{ByDate: true, Limit: limit})
		if err != nil {
			return nil, err
		}
		out := make([]ChapterSummary, 0, len(rows))
		for _, r := range rows {
			out = append(out, ChapterSummary{
				Number:       r.Number,
				Title:        displayTitle(r.Number, r.Title),
				Package:      c.relative(r.PackagePath),
				Pages:        r.Pages,
				PublishedAt:  r.PublishedAt,
				DownloadedAt: r.DownloadedAt,
			})
		}
		return out, nil
	}

	chapters, err := c.Downloader.List()
	if err != nil {
		return nil, err
	}
	out := make([]ChapterSummary, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, c.Summary(ch))
	}
	if byDate {
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
				return out[i].PublishedAt.After(out[j].PublishedAt)
			}
			return out[i].Number > out[j].Number
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Controller) Summary(ch *data.DownloadedChapter) ChapterSummary {
	s := ChapterSummary{
		Number:       ch.Number,
		Title:        displayTitle(ch.Number, ch.Title),
		Package:      c.relative(ch.PackagePath),
		Pages:        len(ch.Pages),
		DownloadedAt: ch.DownloadedAt,
	}
	if entry, ok := c.Updates.Lookup(ch.Number); ok {
		s.PublishedAt = entry.PublishedAt
	}
	return s
}

// Available refreshes the catalog and returns it newest first. A failed
// refresh falls back to the cached catalog; with nothing cached the refresh
// error is returned.
func (c *Controller) Available(ctx context.Context) ([]data.ChapterEntry, error) {
	err := c.Updates.Refresh(ctx)
	entries := c.Updates.Entries()
	if entries == nil && err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	for i := range entries {
		entries[i].Title = displayTitle(entries[i].Number, entries[i].Title)
	}
	return entries, nil
}

// DeleteResult reports a bulk deletion.
type DeleteResult struct {
	Deleted []int          `json:"deleted"`
	Failed  []DeleteFailed `json:"failed"`
}

type DeleteFailed struct {
	Number int    `json:"chapter"`
	Reason string `json:"reason"`
}

// DeleteChapters deletes each chapter independently.
func (c *Controller) DeleteChapters(ctx context.Context, numbers []int) DeleteResult {
	result := DeleteResult{Deleted: []int{}, Failed: []DeleteFailed{}}
	for _, n := range numbers {
		if err := c.Downloader.Delete(ctx, n); err != nil {
			reason := err.Error()
			if errors.Is(err, data.ErrNotFound) {
				reason = "not found"
			}
			result.Failed = append(result.Failed, DeleteFailed{Number: n, Reason: reason})
			continue
		}
		result.Deleted = append(result.Deleted, n)
	}
	return result
}

func (c *Controller) relative(path string) string {
	rel, err := filepath.Rel(c.Store.Root(), path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func displayTitle(number int, title string) string {
	if title == "" {
		return fmt.Sprintf("Kapitel %d", number)
	}
	return title
}
