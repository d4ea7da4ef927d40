package loader

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
)

func TestShowHide(t *testing.T) {
	m := New()
	if m.View() != "" {
		t.Error("hidden loader rendered")
	}
	if cmd := m.Show("Зареждане на поръчките", "Чакащи"); cmd == nil {
		t.Error("first Show did not start the spinner")
	}
	if cmd := m.Show("Одобряване", ""); cmd != nil {
		t.Error("second Show started another tick loop")
	}
	if !m.Active() || !strings.Contains(m.View(), "Одобряване") {
		t.Errorf("view = %q", m.View())
	}
	m.Hide()
	if m.Active() || m.View() != "" {
		t.Error("Hide left the loader visible")
	}
}

func TestTickIgnoredWhileHidden(t *testing.T) {
	m := New()
	if cmd := m.Update(m.spinner.Tick().(spinner.TickMsg)); cmd != nil {
		t.Error("hidden loader kept ticking")
	}
}
