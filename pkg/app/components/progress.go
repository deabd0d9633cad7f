package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/kerbaras/onepiece-offline/pkg/app/styles"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

// ProgressTracker keeps the latest progress update of every chapter that is
// downloading or has failed.
type ProgressTracker struct {
	downloads map[int]services.DownloadProgress
	bar       progress.Model
	width     int
}

func NewProgressTracker(width int) *ProgressTracker {
	p := &ProgressTracker{
		downloads: make(map[int]services.DownloadProgress),
		bar:       progress.New(progress.WithGradient(string(styles.Secondary), string(styles.Primary))),
	}
	p.SetWidth(width)
	return p
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
	p.bar.Width = max(width-4, 10)
}

// Update records a progress update. Completed chapters are dropped.
func (p *ProgressTracker) Update(update services.DownloadProgress) {
	if update.Status == services.StatusComplete {
		delete(p.downloads, update.ChapterNumber)
		return
	}
	p.downloads[update.ChapterNumber] = update
}

func (p *ProgressTracker) Clear() {
	p.downloads = make(map[int]services.DownloadProgress)
}

func (p *ProgressTracker) HasActive() bool {
	return len(p.downloads) > 0
}

func (p *ProgressTracker) View() string {
	if len(p.downloads) == 0 {
		return ""
	}

	numbers := make([]int, 0, len(p.downloads))
	for n := range p.downloads {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Downloads"))
	b.WriteString("\n\n")
	for _, n := range numbers {
		update := p.downloads[n]
		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("Kapitel %d", n)))
		b.WriteString("\n")
		if update.TotalPages > 0 {
			b.WriteString(p.bar.ViewAs(Fraction(update.CurrentPage, update.TotalPages)))
			b.WriteString("\n")
		}
		b.WriteString(styles.StatusStyle(update.Status).Render(statusText(update)))
		b.WriteString("\n")
		if update.Error != nil {
			b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", update.Error)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func statusText(update services.DownloadProgress) string {
	if update.TotalPages == 0 {
		return update.Status
	}
	return fmt.Sprintf("%s (%d/%d pages)", update.Status, update.CurrentPage, update.TotalPages)
}

// Fraction is current/total clamped to [0, 1].
func Fraction(current, total int) float64 {
	if total <= 0 || current <= 0 {
		return 0
	}
	if current >= total {
		return 1
	}
	return float64(current) / float64(total)
}
