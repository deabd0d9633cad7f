package components

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/onepiece-offline/pkg/app/styles"
	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

const dateLayout = "2006-01-02"

var (
	libraryColumns = []table.Column{
		{Title: "Kapitel", Width: 8},
		{Title: "Titel", Width: 40},
		{Title: "Seiten", Width: 7},
		{Title: "Erschienen", Width: 11},
		{Title: "Geladen", Width: 11},
	}
	catalogColumns = []table.Column{
		{Title: "Kapitel", Width: 8},
		{Title: "Titel", Width: 40},
		{Title: "Seiten", Width: 7},
		{Title: "Datum", Width: 11},
		{Title: "Status", Width: 12},
	}
)

// headerHeight is the header row plus its bottom border.
const headerHeight = 2

// ChapterList is a table of chapters whose first column is the chapter
// number. Until SetHeight is called it grows to show every row.
type ChapterList struct {
	table table.Model
	sized bool
}

func newChapterList(columns []table.Column, rows []table.Row, focused bool) *ChapterList {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(focused),
		table.WithStyles(styles.TableStyles(focused)),
	)
	l := &ChapterList{table: t}
	l.setRows(rows)
	return l
}

// NewLibraryList lists downloaded chapters.
func NewLibraryList(chapters []services.ChapterSummary, focused bool) *ChapterList {
	return newChapterList(libraryColumns, LibraryRows(chapters), focused)
}

// NewCatalogList lists catalog entries and marks the downloaded ones.
func NewCatalogList(entries []data.ChapterEntry, downloaded map[int]bool, focused bool) *ChapterList {
	return newChapterList(catalogColumns, CatalogRows(entries, downloaded), focused)
}

func LibraryRows(chapters []services.ChapterSummary) []table.Row {
	rows := make([]table.Row, 0, len(chapters))
	for _, ch := range chapters {
		published := ""
		if !ch.PublishedAt.IsZero() {
			published = ch.PublishedAt.Format(dateLayout)
		}
		rows = append(rows, table.Row{
			strconv.Itoa(ch.Number),
			Truncate(ch.Title, 38),
			strconv.Itoa(ch.Pages),
			published,
			ch.DownloadedAt.Local().Format(dateLayout),
		})
	}
	return rows
}

func CatalogRows(entries []data.ChapterEntry, downloaded map[int]bool) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		status := "unavailable"
		switch {
		case downloaded[e.Number]:
			status = "downloaded"
		case e.Available:
			status = "available"
		}
		date := e.Date
		if date == "" && !e.PublishedAt.IsZero() {
			date = e.PublishedAt.Format(dateLayout)
		}
		rows = append(rows, table.Row{
			strconv.Itoa(e.Number),
			Truncate(e.Title, 38),
			strconv.Itoa(e.PageCount),
			date,
			status,
		})
	}
	return rows
}

func (l *ChapterList) SetLibrary(chapters []services.ChapterSummary) {
	l.setRows(LibraryRows(chapters))
}

func (l *ChapterList) SetCatalog(entries []data.ChapterEntry, downloaded map[int]bool) {
	l.setRows(CatalogRows(entries, downloaded))
}

func (l *ChapterList) setRows(rows []table.Row) {
	l.table.SetRows(rows)
	if !l.sized {
		l.table.SetHeight(max(len(rows), 1) + headerHeight)
	}
	if l.table.Cursor() >= len(rows) {
		l.table.SetCursor(max(len(rows)-1, 0))
	}
}

// SetHeight fixes the table height, header included.
func (l *ChapterList) SetHeight(h int) {
	l.sized = true
	l.table.SetHeight(max(h, headerHeight+1))
}

func (l *ChapterList) Len() int {
	return len(l.table.Rows())
}

// Selected returns the chapter number under the cursor.
func (l *ChapterList) Selected() (int, bool) {
	row := l.table.SelectedRow()
	if row == nil {
		return 0, false
	}
	n, err := strconv.Atoi(row[0])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Select moves the cursor to a chapter number.
func (l *ChapterList) Select(number int) bool {
	want := strconv.Itoa(number)
	for i, row := range l.table.Rows() {
		if row[0] == want {
			l.table.SetCursor(i)
			return true
		}
	}
	return false
}

func (l *ChapterList) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	l.table, cmd = l.table.Update(msg)
	return cmd
}

func (l *ChapterList) View() string {
	if l.Len() == 0 {
		return styles.MutedStyle.Render("Keine Kapitel")
	}
	return l.table.View()
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
