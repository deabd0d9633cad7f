package sources

import (
	"bytes"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

var (
	// entriesMarker precedes the catalog array on the chapter list page.
	entriesMarker = regexp.MustCompile(`"entries"\s*:\s*\[`)
	// windowDataMarker precedes the chapter object on a reader page.
	windowDataMarker = regexp.MustCompile(`window\.__data\s*=\s*\{`)
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
}

// Extractor pulls embedded JSON out of untrusted markup. The markup shape is
// a best-effort external format, so every lookup degrades through script
// tags, the raw body and finally the entity-decoded body.
type Extractor struct{}

// Extract returns the JSON value that starts at the last character matched
// by marker.
func (Extractor) Extract(body []byte, marker *regexp.Regexp) ([]byte, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		var found []byte
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := extractAfter(s.Text(), marker); ok {
				found = v
				return false
			}
			return true
		})
		if found != nil {
			return found, true
		}
	}

	if v, ok := extractAfter(string(body), marker); ok {
		return v, true
	}
	// An escaped source view shows quotes as entities.
	return extractAfter(html.UnescapeString(string(body)), marker)
}

func extractAfter(text string, marker *regexp.Regexp) ([]byte, bool) {
	loc := marker.FindStringIndex(text)
	if loc == nil {
		return nil, false
	}
	v, ok := balanced(text, loc[1]-1)
	if !ok || !json.Valid([]byte(v)) {
		return nil, false
	}
	return []byte(v), true
}

// balanced returns the bracketed JSON value opening at s[start], honouring
// string literals and escapes.
func balanced(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// flexInt accepts both JSON numbers and numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "not a number: %s", b)
	}
	*f = flexInt(n)
	return nil
}

type catalogEntry struct {
	ID          flexInt `json:"id"`
	Number      flexInt `json:"number"`
	Name        string  `json:"name"`
	Date        string  `json:"date"`
	Href        string  `json:"href"`
	Pages       flexInt `json:"pages"`
	IsAvailable *bool   `json:"is_available"`
}

type chapterPayload struct {
	Chapter *struct {
		Name  string `json:"name"`
		Pages []struct {
			URL    string  `json:"url"`
			Width  flexInt `json:"width"`
			Height flexInt `json:"height"`
			Type   string  `json:"type"`
		} `json:"pages"`
	} `json:"chapter"`
	CurrentChapterID flexInt `json:"currentChapterId"`
}

// ParseEntries decodes the catalog array. Entries without a positive number
// are dropped and duplicate numbers keep their first occurrence.
func (e Extractor) ParseEntries(body []byte) ([]data.ChapterEntry, error) {
	raw, ok := e.Extract(body, entriesMarker)
	if !ok {
		return nil, errors.Wrap(data.ErrParse, "entries array not found in catalog page")
	}
	var items []catalogEntry
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrapf(data.ErrParse, "decode catalog entries: %v", err)
	}

	seen := make(map[int]struct{}, len(items))
	entries := make([]data.ChapterEntry, 0, len(items))
	for _, item := range items {
		number := int(item.Number)
		if number <= 0 {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}

		available := true
		if item.IsAvailable != nil {
			available = *item.IsAvailable
		}
		entries = append(entries, data.ChapterEntry{
			Number:      number,
			InternalID:  int(item.ID),
			Title:       strings.TrimSpace(item.Name),
			Date:        item.Date,
			PublishedAt: parseDate(item.Date),
			Href:        item.Href,
			PageCount:   int(item.Pages),
			Available:   available,
		})
	}
	return entries, nil
}

// ParseChapter decodes the window.__data object of a reader page.
func (e Extractor) ParseChapter(number int, body []byte) (*data.ChapterData, error) {
	raw, ok := e.Extract(body, windowDataMarker)
	if !ok {
		return nil, errors.Wrapf(data.ErrParse, "window.__data not found for chapter %d", number)
	}
	var payload chapterPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.Wrapf(data.ErrParse, "decode window.__data for chapter %d: %v", number, err)
	}
	if payload.Chapter == nil {
		return nil, errors.Wrapf(data.ErrParse, "window.__data for chapter %d has no chapter object", number)
	}

	chapter := &data.ChapterData{
		Number:     number,
		InternalID: int(payload.CurrentChapterID),
		Title:      strings.TrimSpace(payload.Chapter.Name),
		Pages:      make([]data.Page, 0, len(payload.Chapter.Pages)),
	}
	for _, p := range payload.Chapter.Pages {
		url := strings.TrimSpace(p.URL)
		if url == "" {
			chapter.Pages = append(chapter.Pages, data.Page{Ordinal: -1, Width: int(p.Width), Height: int(p.Height)})
			continue
		}
		chapter.Pages = append(chapter.Pages, data.NewPage(url, int(p.Width), int(p.Height)))
	}
	return chapter, nil
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
