package screens

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/onepiece-offline/pkg/app/components"
	"github.com/kerbaras/onepiece-offline/pkg/app/styles"
	"github.com/kerbaras/onepiece-offline/pkg/integrations"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

// LibraryScreen lists the downloaded chapters.
type LibraryScreen struct {
	ctrl     *services.Controller
	chapters *components.ChapterList
	status   string
	width    int
	height   int
	err      error
}

func NewLibraryScreen(ctrl *services.Controller) *LibraryScreen {
	return &LibraryScreen{
		ctrl:     ctrl,
		chapters: components.NewLibraryList(nil, true),
	}
}

func (s *LibraryScreen) Init() tea.Cmd {
	return s.loadLibrary
}

func (s *LibraryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.chapters.SetHeight(msg.Height - 8)
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return s, s.loadLibrary
		case "d":
			if n, ok := s.chapters.Selected(); ok {
				return s, s.deleteChapter(n)
			}
		case "e", "c", "p":
			if n, ok := s.chapters.Selected(); ok {
				return s, s.export(n, exportFormats[msg.String()])
			}
		case "f":
			if n, ok := s.chapters.Selected(); ok {
				s.status = fmt.Sprintf("Kapitel %d wird neu geladen...", n)
				return s, redownload(s.ctrl, n)
			}
		}
		return s, s.chapters.Update(msg)

	case libraryLoadedMsg:
		s.err = msg.err
		if msg.err == nil {
			s.chapters.SetLibrary(msg.chapters)
		}

	case exportedMsg:
		s.err = msg.err
		if msg.err == nil {
			s.status = fmt.Sprintf("Exportiert: %s", msg.path)
		}

	case chapterDeletedMsg:
		s.err = msg.err
		if msg.err == nil {
			s.status = fmt.Sprintf("Kapitel %d gelöscht", msg.number)
		}
		return s, s.loadLibrary

	case downloadFinishedMsg:
		s.err = msg.err
		if msg.err == nil {
			s.status = fmt.Sprintf("Kapitel %d heruntergeladen", msg.number)
			return s, s.loadLibrary
		}
	}
	return s, nil
}

var exportFormats = map[string]integrations.Format{
	"e": integrations.FormatEPUB,
	"c": integrations.FormatCBZ,
	"p": integrations.FormatPDF,
}

func (s *LibraryScreen) View() string {
	header := styles.TitleStyle.Render(fmt.Sprintf("One Piece Bibliothek (%d Kapitel)", s.chapters.Len()))

	var notice string
	if s.err != nil {
		notice = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	} else if s.status != "" {
		notice = styles.SubtitleStyle.Render(s.status) + "\n\n"
	}

	help := styles.HelpStyle.Render(
		"↑/k ↓/j: navigate • e/c/p: export EPUB/CBZ/PDF • f: re-download • d: delete • r: refresh • tab: catalog • q: quit",
	)
	return fmt.Sprintf("%s\n\n%s%s\n%s", header, notice, s.chapters.View(), help)
}

type libraryLoadedMsg struct {
	chapters []services.ChapterSummary
	err      error
}

type exportedMsg struct {
	path string
	err  error
}

type chapterDeletedMsg struct {
	number int
	err    error
}

func (s *LibraryScreen) loadLibrary() tea.Msg {
	chapters, err := s.ctrl.ListChapters(context.Background(), false, 0)
	return libraryLoadedMsg{chapters: chapters, err: err}
}

func (s *LibraryScreen) export(number int, format integrations.Format) tea.Cmd {
	return func() tea.Msg {
		path, err := s.ctrl.Downloader.EnsureFormat(context.Background(), number, format)
		return exportedMsg{path: path, err: err}
	}
}

func (s *LibraryScreen) deleteChapter(number int) tea.Cmd {
	return func() tea.Msg {
		return chapterDeletedMsg{number: number, err: s.ctrl.Downloader.Delete(context.Background(), number)}
	}
}
