package theme

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestRenderHover(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI)
	th := Default()

	if got := th.RenderHover("Chekhov's Gun", ""); got != "" {
		t.Fatalf("expected nothing without a target, got %q", got)
	}

	withTooltip := th.RenderHover("Chekhov's Gun", "https://tvtropes.org/pmwiki/pmwiki.php/Main/ChekhovsGun")
	if !strings.Contains(withTooltip, "Chekhov's Gun") || !strings.Contains(withTooltip, "Main/ChekhovsGun") {
		t.Fatalf("expected tooltip and target, got %q", withTooltip)
	}
	if !strings.Contains(withTooltip, "\x1b[") {
		t.Fatalf("expected styled hover line, got %q", withTooltip)
	}

	bare := th.RenderHover("", "https://tvtropes.org/x")
	if strings.Contains(bare, "→") {
		t.Fatalf("expected no separator without tooltip, got %q", bare)
	}
}

func TestRenderActiveLine(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI)
	th := Default()

	if got := th.RenderActiveLine(false, "plain"); got != "plain" {
		t.Fatalf("expected inactive line untouched, got %q", got)
	}
	if got := th.RenderActiveLine(true, "active"); !strings.Contains(got, "\x1b[") {
		t.Fatalf("expected styled active line, got %q", got)
	}
}
