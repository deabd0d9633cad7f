package data

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	page := NewPage("https://cdn.example.com/kapitel/1156-1350/03-04.jpg", 1600, 1200)

	if page.Ordinal != 3 {
		t.Errorf("Expected ordinal 3, got %d", page.Ordinal)
	}
	if !page.Spread {
		t.Error("Expected 03-04.jpg to be a spread")
	}
	if page.Width != 1600 || page.Height != 1200 {
		t.Errorf("Unexpected dimensions %dx%d", page.Width, page.Height)
	}
}

func TestNewPageOrdinalHints(t *testing.T) {
	tests := []struct {
		url     string
		ordinal int
		spread  bool
	}{
		{"https://x/1/00a.jpg", 0, false},
		{"https://x/1/05.png?v=2", 5, false},
		{"https://x/1/cover.jpg", -1, false},
		{"https://x/1/10-11.webp#frag", 10, true},
		{"https://x/1/credits-page.jpg", -1, false},
	}

	for _, tt := range tests {
		page := NewPage(tt.url, 0, 0)
		assert.Equal(t, tt.ordinal, page.Ordinal, tt.url)
		assert.Equal(t, tt.spread, page.Spread, tt.url)
	}
}

func TestBasename(t *testing.T) {
	assert.Equal(t, "01.jpg", Basename("https://cdn.example.com/a/b/01.jpg"))
	assert.Equal(t, "01.jpg", Basename("https://cdn.example.com/a/b/01.jpg?token=abc"))
	assert.Equal(t, "b", Basename("https://cdn.example.com/a/b/"))
}

func TestErrorKinds(t *testing.T) {
	cause := os.ErrPermission
	err := Storage(cause, "write %s", "/tmp/x")

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.False(t, errors.Is(err, ErrTransientNetwork))
	assert.Contains(t, err.Error(), "write /tmp/x")

	assert.Nil(t, Storage(nil, "noop"))
	assert.True(t, errors.Is(Transient(errors.New("boom"), "get"), ErrTransientNetwork))
	assert.True(t, errors.Is(errors.Wrapf(ErrNotAvailable, "chapter %d", 1), ErrNotAvailable))
}
