package sources

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

const catalogPage = `<!DOCTYPE html>
<html><head><title>Kapitel</title></head><body>
<div id="app"></div>
<script>
window.__data = {"category":{"name":"One Piece","entries":[
  {"id":3001,"number":1100,"name":"Kapitel [1100]","date":"2023-12-01","href":"/manga/kapitel/1100/1","pages":17,"is_available":true,"tags":[{"id":1}]},
  {"id":"3002","number":"1101","name":" Die Macht ","date":"2023-12-08 10:00:00","href":"/manga/kapitel/1101/1","pages":"16"},
  {"id":3003,"number":1102,"name":"Leer","date":"unbekannt","href":"/manga/kapitel/1102/1","pages":0,"is_available":false},
  {"id":3004,"number":1101,"name":"Duplikat","date":"2023-12-09","pages":3},
  {"id":3005,"number":0,"name":"Sonderkapitel","date":"2023-12-10","pages":3}
]}};
</script>
</body></html>`

func readerPage(body string) string {
	return `<html><body><script>var x = [1,2];</script><script>window.__data = ` + body + `;</script></body></html>`
}

func TestParseEntries(t *testing.T) {
	entries, err := Extractor{}.ParseEntries([]byte(catalogPage))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1100, entries[0].Number)
	assert.Equal(t, 3001, entries[0].InternalID)
	assert.Equal(t, "Kapitel [1100]", entries[0].Title)
	assert.Equal(t, 17, entries[0].PageCount)
	assert.True(t, entries[0].Available)
	assert.Equal(t, 2023, entries[0].PublishedAt.Year())

	assert.Equal(t, 1101, entries[1].Number)
	assert.Equal(t, 3002, entries[1].InternalID)
	assert.Equal(t, "Die Macht", entries[1].Title)
	assert.Equal(t, 16, entries[1].PageCount)
	assert.True(t, entries[1].Available, "missing is_available defaults to true")
	assert.Equal(t, 8, entries[1].PublishedAt.Day())

	assert.Equal(t, 1102, entries[2].Number)
	assert.False(t, entries[2].Available)
	assert.True(t, entries[2].PublishedAt.IsZero())
}

func TestParseEntriesMissingBlock(t *testing.T) {
	_, err := Extractor{}.ParseEntries([]byte(`<html><body>nothing here</body></html>`))
	assert.True(t, errors.Is(err, data.ErrParse))
}

func TestParseEntriesMalformed(t *testing.T) {
	_, err := Extractor{}.ParseEntries([]byte(`<script>{"entries":[{"number":1,]}</script>`))
	assert.True(t, errors.Is(err, data.ErrParse))
}

func TestParseChapter(t *testing.T) {
	body := readerPage(`{"chapter":{"name":"Romance Dawn","pages":[
		{"url":"https://cdn.example.com/1/01.jpg","width":800,"height":1200,"type":"image"},
		{"url":"https://cdn.example.com/1/02-03.png?v=2","width":1600,"height":1200,"type":"image"},
		{"url":"","type":"image"}
	]},"currentChapterId":4711}`)

	chapter, err := Extractor{}.ParseChapter(1, []byte(body))
	require.NoError(t, err)

	assert.Equal(t, 1, chapter.Number)
	assert.Equal(t, 4711, chapter.InternalID)
	assert.Equal(t, "Romance Dawn", chapter.Title)
	require.Len(t, chapter.Pages, 3)
	assert.Equal(t, 1, chapter.Pages[0].Ordinal)
	assert.Equal(t, 800, chapter.Pages[0].Width)
	assert.True(t, chapter.Pages[1].Spread)
	assert.Equal(t, "", chapter.Pages[2].URL)
	assert.Equal(t, -1, chapter.Pages[2].Ordinal)
}

func TestParseChapterEscapedSource(t *testing.T) {
	body := `<pre>&lt;script&gt;window.__data = {&quot;chapter&quot;:{&quot;name&quot;:&quot;Escaped&quot;,&quot;pages&quot;:[{&quot;url&quot;:&quot;https://cdn.example.com/01.jpg&quot;}]},&quot;currentChapterId&quot;:9};&lt;/script&gt;</pre>`

	chapter, err := Extractor{}.ParseChapter(5, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "Escaped", chapter.Title)
	assert.Equal(t, 9, chapter.InternalID)
	require.Len(t, chapter.Pages, 1)
}

func TestParseChapterBraceInString(t *testing.T) {
	body := readerPage(`{"chapter":{"name":"A } tricky \" name ]","pages":[{"url":"https://cdn.example.com/01.jpg"}]}}`)

	chapter, err := Extractor{}.ParseChapter(2, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, `A } tricky " name ]`, chapter.Title)
}

func TestParseChapterWithoutData(t *testing.T) {
	_, err := Extractor{}.ParseChapter(1, []byte(`<html><body><p>Willkommen</p></body></html>`))
	assert.True(t, errors.Is(err, data.ErrParse))
	assert.False(t, errors.Is(err, data.ErrNotAvailable))
}

func TestParseChapterWithoutChapterObject(t *testing.T) {
	_, err := Extractor{}.ParseChapter(1, []byte(readerPage(`{"category":{}}`)))
	assert.True(t, errors.Is(err, data.ErrParse))
}

func TestBalanced(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"array", `[1,[2,3],4] trailing`, `[1,[2,3],4]`, true},
		{"object", `{"a":{"b":"}"}};`, `{"a":{"b":"}"}}`, true},
		{"escaped quote", `["a\"]"]x`, `["a\"]"]`, true},
		{"unterminated", `[1,2`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := balanced(tt.in, 0)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
