package screens

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/onepiece-offline/pkg/app/components"
	"github.com/kerbaras/onepiece-offline/pkg/app/styles"
	"github.com/kerbaras/onepiece-offline/pkg/data"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

// CatalogScreen lists the chapters offered by the remote site and downloads
// the selected one.
type CatalogScreen struct {
	ctrl       *services.Controller
	input      textinput.Model
	chapters   *components.ChapterList
	entries    []data.ChapterEntry
	downloaded map[int]bool
	loading    bool
	status     string
	err        error
}

func NewCatalogScreen(ctrl *services.Controller) *CatalogScreen {
	ti := textinput.New()
	ti.Placeholder = "Kapitelnummer..."
	ti.CharLimit = 6
	ti.Width = 20
	ti.Validate = func(s string) error {
		if strings.Trim(s, "0123456789") != "" {
			return fmt.Errorf("not a number")
		}
		return nil
	}

	return &CatalogScreen{
		ctrl:     ctrl,
		input:    ti,
		chapters: components.NewCatalogList(nil, nil, true),
	}
}

func (s *CatalogScreen) Init() tea.Cmd {
	s.loading = true
	return s.loadCatalog
}

// Typing reports whether key presses go to the chapter number input.
func (s *CatalogScreen) Typing() bool {
	return s.input.Focused()
}

func (s *CatalogScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.chapters.SetHeight(msg.Height - 12)
		return s, nil

	case tea.KeyMsg:
		if s.input.Focused() {
			return s, s.updateInput(msg)
		}
		switch msg.String() {
		case "/":
			s.input.SetValue("")
			return s, s.input.Focus()
		case "r":
			return s, s.Init()
		case "enter":
			if n, ok := s.chapters.Selected(); ok {
				return s, s.startDownload(n)
			}
		}
		return s, s.chapters.Update(msg)

	case catalogLoadedMsg:
		s.loading = false
		s.err = msg.err
		if msg.err == nil {
			s.entries = msg.entries
			s.downloaded = msg.downloaded
			s.chapters.SetCatalog(s.entries, s.downloaded)
		}

	case downloadFinishedMsg:
		if msg.err != nil {
			s.err = msg.err
			s.status = ""
			return s, nil
		}
		s.err = nil
		s.status = fmt.Sprintf("Kapitel %d heruntergeladen", msg.number)
		if s.downloaded == nil {
			s.downloaded = map[int]bool{}
		}
		s.downloaded[msg.number] = true
		s.chapters.SetCatalog(s.entries, s.downloaded)
	}
	return s, nil
}

func (s *CatalogScreen) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		s.input.Blur()
		return nil
	case "enter":
		s.input.Blur()
		n, err := strconv.Atoi(s.input.Value())
		if err != nil || n <= 0 {
			return nil
		}
		if !s.chapters.Select(n) {
			// Not in the catalog yet; the remote site may still have it.
			return s.startDownload(n)
		}
		return nil
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

func (s *CatalogScreen) startDownload(number int) tea.Cmd {
	s.status = fmt.Sprintf("Kapitel %d wird geladen...", number)
	s.err = nil
	return download(s.ctrl, number)
}

func (s *CatalogScreen) View() string {
	header := styles.TitleStyle.Render("Katalog")

	inputStyle := styles.InputStyle
	if s.input.Focused() {
		inputStyle = styles.FocusedInputStyle
	}

	var body string
	switch {
	case s.loading:
		body = styles.StatusDownloading.Render("Lade Katalog...")
	default:
		body = s.chapters.View()
	}

	var notice string
	if s.err != nil {
		notice = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	} else if s.status != "" {
		notice = styles.SubtitleStyle.Render(s.status) + "\n\n"
	}

	help := styles.HelpStyle.Render(
		"enter: download • /: jump to chapter • esc: leave input • r: refresh • tab: library • q: quit",
	)
	return fmt.Sprintf("%s\n\n%s\n\n%s%s\n%s", header, inputStyle.Render(s.input.View()), notice, body, help)
}

type catalogLoadedMsg struct {
	entries    []data.ChapterEntry
	downloaded map[int]bool
	err        error
}

type downloadFinishedMsg struct {
	number int
	err    error
}

func (s *CatalogScreen) loadCatalog() tea.Msg {
	ctx := context.Background()
	entries, err := s.ctrl.Available(ctx)
	if err != nil {
		return catalogLoadedMsg{err: err}
	}
	chapters, err := s.ctrl.ListChapters(ctx, false, 0)
	if err != nil {
		return catalogLoadedMsg{err: err}
	}
	downloaded := make(map[int]bool, len(chapters))
	for _, ch := range chapters {
		downloaded[ch.Number] = true
	}
	return catalogLoadedMsg{entries: entries, downloaded: downloaded}
}

func download(ctrl *services.Controller, number int) tea.Cmd {
	return func() tea.Msg {
		_, err := ctrl.Downloader.DownloadChapter(context.Background(), number)
		return downloadFinishedMsg{number: number, err: err}
	}
}

func redownload(ctrl *services.Controller, number int) tea.Cmd {
	return func() tea.Msg {
		_, err := ctrl.Downloader.Redownload(context.Background(), number)
		return downloadFinishedMsg{number: number, err: err}
	}
}
