package data

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// ChapterEntry is one row of the remote chapter catalog.
type ChapterEntry struct {
	Number      int       `json:"number"`
	InternalID  int       `json:"internal_id"`
	Title       string    `json:"title"`
	Date        string    `json:"date,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Href        string    `json:"href,omitempty"`
	PageCount   int       `json:"pages"`
	Available   bool      `json:"available"`
}

// Page is a single remote page image of a chapter.
type Page struct {
	URL     string `json:"url"`
	Ordinal int    `json:"ordinal"`
	Spread  bool   `json:"spread,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// ChapterData is the resolved page list of a chapter, ordered as the remote
// source returned it.
type ChapterData struct {
	Number     int
	InternalID int
	Title      string
	Pages      []Page
}

// DownloadedChapter describes a completed acquisition on disk.
type DownloadedChapter struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Pages        []string  `json:"pages"`
	PackagePath  string    `json:"package_path"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// NewPage builds a Page and derives its ordering hints from the URL's last
// path segment.
func NewPage(url string, width, height int) Page {
	name := Basename(url)
	return Page{
		URL:     url,
		Ordinal: ordinalHint(name),
		Spread:  isSpread(name),
		Width:   width,
		Height:  height,
	}
}

// Basename returns the last path segment of a URL with any query or fragment
// removed.
func Basename(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return path.Base(strings.TrimRight(url, "/"))
}

func ordinalHint(name string) int {
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	if end == 0 {
		return -1
	}
	n, err := strconv.Atoi(name[:end])
	if err != nil {
		return -1
	}
	return n
}

// isSpread reports whether a filename names a double page, e.g. "03-04.jpg".
func isSpread(name string) bool {
	stem := strings.TrimSuffix(name, path.Ext(name))
	first, second, ok := strings.Cut(stem, "-")
	return ok && ordinalHint(first) >= 0 && ordinalHint(second) >= 0
}
