package note

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/order-desk/console/internal/coordinator"
)

const suggested = "В поръчка #7 бяха направени следните корекции:\n• Болт М8: количество 10 → 4\n• Гайка М8: премахнат от поръчката"

func TestOpenWithSuggestedNote(t *testing.T) {
	m := New(StyleNoTTY)
	m.Open(coordinator.ActionApprove, 7, suggested)
	if !m.IsOpen() {
		t.Fatal("prompt not open")
	}
	if m.Value() != suggested {
		t.Errorf("value = %q", m.Value())
	}
	if p := m.Preview(); !strings.Contains(p, "Болт М8") || !strings.Contains(p, "Гайка М8") {
		t.Errorf("preview = %q", p)
	}
	if !strings.Contains(m.View(), "Одобряване на поръчка #7") {
		t.Error("title missing")
	}
}

func TestRejectHasNoPreview(t *testing.T) {
	m := New(StyleNoTTY)
	m.Open(coordinator.ActionReject, 3, "")
	if m.Preview() != "" {
		t.Error("reject prompt rendered a preview")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("няма")})
	if m.Value() != "няма" {
		t.Errorf("typed value = %q", m.Value())
	}
	m.Close()
	if m.IsOpen() || m.View() != "" {
		t.Error("closed prompt still rendered")
	}
}

func TestRenderMarkdownBullets(t *testing.T) {
	out, err := RenderMarkdown("Заглавие\n• първи\n• втори", StyleNoTTY, 60)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"първи", "втори"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered %q missing %q", out, want)
		}
	}
}
