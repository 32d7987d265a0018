package actions

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/laconic-cli/internal/app"
	"github.com/glabrego/laconic-cli/internal/storage"
)

type Service interface {
	OpenPage(ctx context.Context, rawURL string) (*app.Page, error)
	History(ctx context.Context, limit int) ([]storage.Visit, error)
}

// Navigation says how a loaded page relates to the one on screen.
type Navigation int

const (
	// NavigateForward pushes the current page onto the back stack.
	NavigateForward Navigation = iota
	// NavigateBack replaces the current page without touching the stack.
	NavigateBack
	// NavigateReload loads the current page again.
	NavigateReload
)

type PageLoadedMsg struct {
	Page       *app.Page
	Navigation Navigation
	Duration   time.Duration
}

type PageErrorMsg struct {
	URL        string
	Navigation Navigation
	Err        error
}

type HistoryLoadedMsg struct {
	Visits []storage.Visit
}

type HistoryErrorMsg struct {
	Err error
}

type OpenURLSuccessMsg struct {
	Status string
	Opened bool
}

type OpenURLErrorMsg struct {
	Err error
}

func LoadPageCmd(service Service, rawURL string, nav Navigation) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		start := time.Now()

		page, err := service.OpenPage(ctx, rawURL)
		if err != nil {
			return PageErrorMsg{URL: rawURL, Navigation: nav, Err: err}
		}
		return PageLoadedMsg{Page: page, Navigation: nav, Duration: time.Since(start)}
	}
}

func LoadHistoryCmd(service Service, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		visits, err := service.History(ctx, limit)
		if err != nil {
			return HistoryErrorMsg{Err: err}
		}
		return HistoryLoadedMsg{Visits: visits}
	}
}

func OpenURLCmd(url string, openFn, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if openFn != nil {
			if err := openFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Opened URL in browser", Opened: true}
			}
		}
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Could not open browser, URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not open URL or copy to clipboard")}
	}
}

func CopyURLCmd(url string, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not copy URL to clipboard")}
	}
}
