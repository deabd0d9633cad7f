package components

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/kerbaras/onepiece-offline/pkg/services"
)

func TestNewProgressTracker(t *testing.T) {
	tracker := NewProgressTracker(80)

	if tracker.width != 80 {
		t.Errorf("Expected width 80, got %d", tracker.width)
	}
	if tracker.bar.Width != 76 {
		t.Errorf("Expected bar width 76, got %d", tracker.bar.Width)
	}
	if tracker.HasActive() {
		t.Error("Expected no active downloads initially")
	}
}

func TestProgressTrackerNarrowWidth(t *testing.T) {
	tracker := NewProgressTracker(5)

	if tracker.bar.Width != 10 {
		t.Errorf("Expected minimum bar width 10, got %d", tracker.bar.Width)
	}
}

func TestUpdateKeepsLatestPerChapter(t *testing.T) {
	tracker := NewProgressTracker(80)

	tracker.Update(services.DownloadProgress{ChapterNumber: 1100, Status: services.StatusDownloading, CurrentPage: 1, TotalPages: 10})
	tracker.Update(services.DownloadProgress{ChapterNumber: 1100, Status: services.StatusDownloading, CurrentPage: 4, TotalPages: 10})

	if len(tracker.downloads) != 1 {
		t.Fatalf("Expected 1 download, got %d", len(tracker.downloads))
	}
	if got := tracker.downloads[1100].CurrentPage; got != 4 {
		t.Errorf("Expected current page 4, got %d", got)
	}
}

func TestUpdateRemovesCompleted(t *testing.T) {
	tracker := NewProgressTracker(80)

	tracker.Update(services.DownloadProgress{ChapterNumber: 7, Status: services.StatusDownloading})
	tracker.Update(services.DownloadProgress{ChapterNumber: 7, Status: services.StatusComplete})

	if tracker.HasActive() {
		t.Error("Expected completed download to be removed")
	}
}

func TestClear(t *testing.T) {
	tracker := NewProgressTracker(80)
	for i := 1; i <= 3; i++ {
		tracker.Update(services.DownloadProgress{ChapterNumber: i, Status: services.StatusDownloading})
	}

	tracker.Clear()

	if tracker.HasActive() {
		t.Error("Expected no active downloads after clear")
	}
}

func TestViewEmpty(t *testing.T) {
	tracker := NewProgressTracker(80)

	if view := tracker.View(); view != "" {
		t.Errorf("Expected empty view, got: %s", view)
	}
}

func TestViewWithProgress(t *testing.T) {
	tracker := NewProgressTracker(80)
	tracker.Update(services.DownloadProgress{
		ChapterNumber: 5,
		Status:        services.StatusDownloading,
		TotalPages:    20,
		CurrentPage:   10,
	})

	view := tracker.View()

	for _, want := range []string{"Downloads", "Kapitel 5", "downloading", "10/20"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected %q in view:\n%s", want, view)
		}
	}
}

func TestViewOrdersChapters(t *testing.T) {
	tracker := NewProgressTracker(80)
	for _, n := range []int{12, 3, 7} {
		tracker.Update(services.DownloadProgress{ChapterNumber: n, Status: services.StatusPackaging})
	}

	view := tracker.View()

	i3 := strings.Index(view, "Kapitel 3")
	i7 := strings.Index(view, "Kapitel 7")
	i12 := strings.Index(view, "Kapitel 12")
	if i3 < 0 || i7 < 0 || i12 < 0 {
		t.Fatalf("Expected all chapters in view:\n%s", view)
	}
	if !(i3 < i7 && i7 < i12) {
		t.Error("Expected chapters in ascending order")
	}
}

func TestProgressWithError(t *testing.T) {
	tracker := NewProgressTracker(80)
	tracker.Update(services.DownloadProgress{
		ChapterNumber: 1,
		Status:        services.StatusError,
		Error:         errors.New("page 3 failed"),
	})

	view := tracker.View()

	if !strings.Contains(view, "Error: page 3 failed") {
		t.Errorf("Expected error details in view:\n%s", view)
	}
}

func TestFraction(t *testing.T) {
	tests := []struct {
		current, total int
		want           float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{-1, 10, 0},
		{5, 10, 0.5},
		{10, 10, 1},
		{12, 10, 1},
	}
	for _, tt := range tests {
		if got := Fraction(tt.current, tt.total); got != tt.want {
			t.Errorf("Fraction(%d, %d) = %v, want %v", tt.current, tt.total, got, tt.want)
		}
	}
}
