package services

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

func numbersOf(entries []data.ChapterEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Number
	}
	return out
}

func TestCheckForUpdate(t *testing.T) {
	resolver := &fakeResolver{listEntriesFunc: func(context.Context) ([]data.ChapterEntry, error) {
		return []data.ChapterEntry{{Number: 10}, {Number: 12, Title: "Zwölf"}, {Number: 11}}, nil
	}}
	u := NewUpdateDetector(resolver, logger.New())

	_, known := u.LatestNumber()
	assert.False(t, known)

	assert.Equal(t, []int{11, 12}, numbersOf(u.CheckForUpdate(context.Background(), 10)))
	assert.Empty(t, u.CheckForUpdate(context.Background(), 12))
	assert.Equal(t, []int{10, 11, 12}, numbersOf(u.CheckForUpdate(context.Background(), 0)))

	latest, known := u.LatestNumber()
	assert.True(t, known)
	assert.Equal(t, 12, latest)

	entry, ok := u.Lookup(12)
	require.True(t, ok)
	assert.Equal(t, "Zwölf", entry.Title)
	_, ok = u.Lookup(13)
	assert.False(t, ok)
	assert.False(t, u.LastRefresh().IsZero())
}

func TestLatestNumber_EmptyCatalogIsKnown(t *testing.T) {
	resolver := &fakeResolver{listEntriesFunc: func(context.Context) ([]data.ChapterEntry, error) {
		return []data.ChapterEntry{}, nil
	}}
	u := NewUpdateDetector(resolver, logger.New())

	require.NoError(t, u.Refresh(context.Background()))
	latest, known := u.LatestNumber()
	assert.True(t, known)
	assert.Equal(t, 0, latest)
	assert.False(t, u.LastRefresh().IsZero())
	assert.Empty(t, u.CheckForUpdate(context.Background(), 0))
}

func TestCheckForUpdate_KeepsSnapshotOnFailure(t *testing.T) {
	fail := false
	resolver := &fakeResolver{listEntriesFunc: func(context.Context) ([]data.ChapterEntry, error) {
		if fail {
			return nil, errors.Wrap(data.ErrTransientNetwork, "catalog")
		}
		return []data.ChapterEntry{{Number: 1}, {Number: 2}}, nil
	}}
	u := NewUpdateDetector(resolver, logger.New())

	require.NoError(t, u.Refresh(context.Background()))
	fail = true

	err := u.Refresh(context.Background())
	assert.True(t, errors.Is(err, data.ErrTransientNetwork))
	assert.Equal(t, []int{2}, numbersOf(u.CheckForUpdate(context.Background(), 1)))
	assert.Equal(t, []int{1, 2}, numbersOf(u.Entries()))
}

func TestCheckForUpdate_NoCatalogYet(t *testing.T) {
	resolver := &fakeResolver{listEntriesFunc: func(context.Context) ([]data.ChapterEntry, error) {
		return nil, errors.Wrap(data.ErrParse, "catalog")
	}}
	u := NewUpdateDetector(resolver, logger.New())

	assert.Empty(t, u.CheckForUpdate(context.Background(), 0))
	assert.Nil(t, u.Entries())
	assert.True(t, u.LastRefresh().IsZero())
}

func TestNewSnapshot_Dedupes(t *testing.T) {
	s := newSnapshot([]data.ChapterEntry{
		{Number: 5, Title: "first"},
		{Number: 3},
		{Number: 5, Title: "second"},
	}, time.Time{})
	assert.Equal(t, []int{3, 5}, numbersOf(s.entries))
	assert.Equal(t, "first", s.entries[1].Title)
	assert.Equal(t, 5, s.latest)
}
