package screens

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kerbaras/onepiece-offline/pkg/app/components"
	"github.com/kerbaras/onepiece-offline/pkg/app/styles"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

type screenType int

const (
	libraryView screenType = iota
	catalogView
)

// SwitchScreenMsg asks the root screen to show another tab.
type SwitchScreenMsg struct {
	Screen string
}

type progressMsg services.DownloadProgress

type RootScreen struct {
	ctrl     *services.Controller
	progress <-chan services.DownloadProgress

	currentView screenType
	library     *LibraryScreen
	catalog     *CatalogScreen
	tracker     *components.ProgressTracker

	width  int
	height int
}

func NewRootScreen(ctrl *services.Controller) *RootScreen {
	return &RootScreen{
		ctrl:        ctrl,
		progress:    ctrl.Downloader.GetProgressChannel(),
		currentView: libraryView,
		library:     NewLibraryScreen(ctrl),
		catalog:     NewCatalogScreen(ctrl),
		tracker:     components.NewProgressTracker(80),
	}
}

func (r *RootScreen) Init() tea.Cmd {
	return tea.Batch(r.library.Init(), r.waitForProgress())
}

// waitForProgress delivers the next downloader progress update.
func (r *RootScreen) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-r.progress
		if !ok {
			return nil
		}
		return progressMsg(update)
	}
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		r.tracker.SetWidth(msg.Width)
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 4}
		r.library.Update(inner)
		r.catalog.Update(inner)
		return r, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return r, tea.Quit
		case "q":
			if !r.catalog.Typing() || r.currentView != catalogView {
				return r, tea.Quit
			}
		case "tab":
			return r, r.switchTo((r.currentView + 1) % 2)
		}

	case SwitchScreenMsg:
		switch msg.Screen {
		case "library":
			return r, r.switchTo(libraryView)
		case "catalog":
			return r, r.switchTo(catalogView)
		}
		return r, nil

	case progressMsg:
		r.tracker.Update(services.DownloadProgress(msg))
		cmds := []tea.Cmd{r.waitForProgress()}
		if msg.Status == services.StatusComplete {
			cmds = append(cmds, r.library.Init())
		}
		return r, tea.Batch(cmds...)

	case downloadFinishedMsg:
		_, libCmd := r.library.Update(msg)
		_, catCmd := r.catalog.Update(msg)
		return r, tea.Batch(libCmd, catCmd)
	}

	switch r.currentView {
	case catalogView:
		_, cmd := r.catalog.Update(msg)
		return r, cmd
	default:
		_, cmd := r.library.Update(msg)
		return r, cmd
	}
}

func (r *RootScreen) switchTo(view screenType) tea.Cmd {
	r.currentView = view
	if view == catalogView {
		return r.catalog.Init()
	}
	return r.library.Init()
}

func (r *RootScreen) View() string {
	var content string
	switch r.currentView {
	case catalogView:
		content = r.catalog.View()
	default:
		content = r.library.View()
	}
	if r.tracker.HasActive() {
		content = lipgloss.JoinVertical(lipgloss.Left, content, "", r.tracker.View())
	}
	return fmt.Sprintf("%s\n\n%s", r.renderTabs(), content)
}

func (r *RootScreen) renderTabs() string {
	libraryTab := styles.InactiveTabStyle.Render("Bibliothek")
	catalogTab := styles.InactiveTabStyle.Render("Katalog")
	if r.currentView == libraryView {
		libraryTab = styles.ActiveTabStyle.Render("Bibliothek")
	} else {
		catalogTab = styles.ActiveTabStyle.Render("Katalog")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, libraryTab, catalogTab)
}
