package components

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

func TestLibraryRows(t *testing.T) {
	published := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := LibraryRows([]services.ChapterSummary{
		{Number: 1100, Title: "Danke, Bonney", Pages: 17, PublishedAt: published, DownloadedAt: time.Now()},
		{Number: 1101, Title: "Kapitel 1101", Pages: 15, DownloadedAt: time.Now()},
	})

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "1100" || rows[0][2] != "17" || rows[0][3] != "2024-03-10" {
		t.Errorf("Unexpected first row: %v", rows[0])
	}
	if rows[1][3] != "" {
		t.Errorf("Expected empty publication date, got %q", rows[1][3])
	}
}

func TestCatalogRows(t *testing.T) {
	rows := CatalogRows([]data.ChapterEntry{
		{Number: 3, Title: "c", Available: true},
		{Number: 2, Title: "b", Available: true, Date: "01.02.2024"},
		{Number: 1, Title: "a", Available: false},
	}, map[int]bool{2: true})

	statuses := []string{rows[0][4], rows[1][4], rows[2][4]}
	want := []string{"available", "downloaded", "unavailable"}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("Row %d: expected status %q, got %q", i, want[i], statuses[i])
		}
	}
	if rows[1][3] != "01.02.2024" {
		t.Errorf("Expected raw date, got %q", rows[1][3])
	}
}

func TestChapterListSelection(t *testing.T) {
	list := NewCatalogList([]data.ChapterEntry{
		{Number: 12, Available: true},
		{Number: 11, Available: true},
		{Number: 10, Available: true},
	}, nil, true)

	n, ok := list.Selected()
	if !ok || n != 12 {
		t.Fatalf("Expected chapter 12 selected, got %d (%v)", n, ok)
	}

	list.Update(tea.KeyMsg{Type: tea.KeyDown})
	if n, _ := list.Selected(); n != 11 {
		t.Errorf("Expected chapter 11 after moving down, got %d", n)
	}

	if !list.Select(10) {
		t.Fatal("Expected chapter 10 to be selectable")
	}
	if n, _ := list.Selected(); n != 10 {
		t.Errorf("Expected chapter 10 selected, got %d", n)
	}
	if list.Select(99) {
		t.Error("Expected unknown chapter not to be selectable")
	}
}

func TestChapterListShrinkKeepsCursorInRange(t *testing.T) {
	list := NewLibraryList([]services.ChapterSummary{{Number: 1}, {Number: 2}, {Number: 3}}, true)
	list.Select(3)

	list.SetLibrary([]services.ChapterSummary{{Number: 1}})

	if n, ok := list.Selected(); !ok || n != 1 {
		t.Errorf("Expected chapter 1 selected, got %d (%v)", n, ok)
	}
}

func TestChapterListEmptyView(t *testing.T) {
	list := NewLibraryList(nil, false)

	if list.Len() != 0 {
		t.Errorf("Expected empty list, got %d rows", list.Len())
	}
	if _, ok := list.Selected(); ok {
		t.Error("Expected no selection in empty list")
	}
	if !strings.Contains(list.View(), "Keine Kapitel") {
		t.Errorf("Unexpected empty view: %s", list.View())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Romance Dawn", 20, "Romance Dawn"},
		{"Romance Dawn", 10, "Romance..."},
		{"Ärger über Ölflecken", 8, "Ärger..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
