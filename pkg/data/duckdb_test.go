package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := OpenRepository(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func downloaded(number int, title string) *DownloadedChapter {
	return &DownloadedChapter{
		Number:       number,
		Title:        title,
		Pages:        []string{"01.jpg", "02.jpg", "03.jpg"},
		PackagePath:  filepath.Join("data", "ch", "onepiece.epub"),
		DownloadedAt: time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordAndGetChapter(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	entry := &ChapterEntry{
		Number:      1156,
		Title:       "Ein neuer Morgen",
		PublishedAt: time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC),
		Available:   true,
	}
	require.NoError(t, repo.RecordDownload(ctx, downloaded(1156, "Ein neuer Morgen"), entry))

	got, err := repo.GetChapter(ctx, 1156)
	require.NoError(t, err)
	assert.Equal(t, 1156, got.Number)
	assert.Equal(t, "Ein neuer Morgen", got.Title)
	assert.Equal(t, 3, got.Pages)
	assert.True(t, got.Available)
	assert.True(t, got.PublishedAt.Equal(entry.PublishedAt))
}

func TestRecordDownloadUpserts(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordDownload(ctx, downloaded(1, "old"), nil))
	require.NoError(t, repo.RecordDownload(ctx, downloaded(1, "new"), nil))

	chapters, err := repo.ListChapters(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "new", chapters[0].Title)
	assert.True(t, chapters[0].PublishedAt.IsZero())
}

func TestGetChapterNotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetChapter(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListChaptersByDate(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	dates := map[int]time.Time{
		10: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		11: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		12: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	for n, d := range dates {
		require.NoError(t, repo.RecordDownload(ctx, downloaded(n, "t"), &ChapterEntry{Number: n, PublishedAt: d, Available: true}))
	}

	byNumber, err := repo.ListChapters(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12}, numbers(byNumber))

	byDate, err := repo.ListChapters(ctx, ListOptions{ByDate: true})
	require.NoError(t, err)
	assert.Equal(t, []int{11, 12, 10}, numbers(byDate))

	limited, err := repo.ListChapters(ctx, ListOptions{ByDate: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{11}, numbers(limited))
}

func TestDeleteChapter(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordDownload(ctx, downloaded(7, "t"), nil))
	require.NoError(t, repo.DeleteChapter(ctx, 7))

	chapters, err := repo.ListChapters(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, chapters)
}

func numbers(chapters []*IndexedChapter) []int {
	out := make([]int, len(chapters))
	for i, c := range chapters {
		out[i] = c.Number
	}
	return out
}
