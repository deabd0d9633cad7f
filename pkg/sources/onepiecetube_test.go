package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/utils"
)

func newTestSource(t *testing.T, handler http.HandlerFunc, opts ...Option) *OnePieceTube {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOnePieceTube(utils.NewAPI(server.URL, "", 5*time.Second), opts...)
}

func TestListEntries(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manga/kapitel-mangaliste", r.URL.Path)
		assert.Equal(t, utils.DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(catalogPage))
	})

	entries, err := source.ListEntries(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestListEntriesServerError(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := source.ListEntries(context.Background())
	assert.True(t, errors.Is(err, data.ErrTransientNetwork))
}

func TestResolvePages(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manga/kapitel/1000/1", r.URL.Path)
		w.Write([]byte(readerPage(`{"chapter":{"name":"Strohhut","pages":[{"url":"https://cdn.example.com/01.jpg"},{"url":"https://cdn.example.com/02.jpg"}]},"currentChapterId":1234}`)))
	})

	chapter, err := source.ResolvePages(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, "Strohhut", chapter.Title)
	assert.Equal(t, 1234, chapter.InternalID)
	assert.Len(t, chapter.Pages, 2)
}

func TestResolvePagesClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		notErr  error
	}{
		{"404 is not available", http.StatusNotFound, readerPage(`{"chapter":{"pages":[]}}`), data.ErrNotAvailable, data.ErrParse},
		{"marker is not available", http.StatusOK, `<p>Dieses Kapitel ist aktuell nicht verfügbar.</p>`, data.ErrNotAvailable, data.ErrParse},
		{"200 without data block is a parse error", http.StatusOK, `<html><body>Wartung</body></html>`, data.ErrParse, data.ErrNotAvailable},
		{"500 is transient", http.StatusInternalServerError, ``, data.ErrTransientNetwork, data.ErrNotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := source.ResolvePages(context.Background(), 42)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.False(t, errors.Is(err, tt.notErr), "got %v", err)
		})
	}
}

func TestResolvePagesCustomMarker(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<p>Chapter removed</p>`))
	}, WithUnavailableMarkers("Chapter removed"))

	_, err := source.ResolvePages(context.Background(), 7)
	assert.True(t, errors.Is(err, data.ErrNotAvailable))
}

func TestResolvePagesSourceVariant(t *testing.T) {
	var variantHits atomic.Int32
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/source" {
			variantHits.Add(1)
			assert.Contains(t, r.URL.Query().Get("u"), "/manga/kapitel/3/1")
			w.Write([]byte(`<pre>window.__data = {"chapter":{"name":"Aus der Quelle","pages":[{"url":"https://cdn.example.com/01.jpg"}]}};</pre>`))
			return
		}
		w.Write([]byte(readerPage(`{"chapter":{"name":"Gerendert","pages":[{"url":"https://cdn.example.com/01.jpg"}]}}`)))
	})
	source.sourceVariant = source.api.URL("/source?u=%s")

	chapter, err := source.ResolvePages(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Aus der Quelle", chapter.Title)
	assert.Equal(t, int32(1), variantHits.Load())
}

func TestResolvePagesSourceVariantFallback(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/source" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(readerPage(`{"chapter":{"name":"Gerendert","pages":[{"url":"https://cdn.example.com/01.jpg"}]}}`)))
	})
	source.sourceVariant = source.api.URL("/source?u=%s")

	chapter, err := source.ResolvePages(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Gerendert", chapter.Title)
}

func TestResolvePagesInvalidNumber(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := source.ResolvePages(context.Background(), 0)
	assert.True(t, errors.Is(err, data.ErrNotAvailable))
}
