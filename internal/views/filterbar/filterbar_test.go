package filterbar

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/filter"
)

func typeText(m *Model, s string) Field {
	cmd, f := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	_ = cmd
	return f
}

func TestUpdateReportsChangedField(t *testing.T) {
	m := New()
	if f := typeText(&m, "x"); f != FieldNone {
		t.Errorf("unfocused bar reported %v", f)
	}

	m.Focus(FieldSearch)
	if f := typeText(&m, "болт"); f != FieldSearch {
		t.Errorf("changed field = %v, want search", f)
	}
	if m.Search() != "болт" {
		t.Errorf("search = %q", m.Search())
	}

	m.NextField()
	if m.Editing() != FieldMin {
		t.Fatalf("editing = %v", m.Editing())
	}
	if f := typeText(&m, "50"); f.DebounceKey() != "amount" {
		t.Errorf("min debounce key = %q", f.DebounceKey())
	}
	m.NextField()
	typeText(&m, "100,5")
	if lo, hi := m.Amounts(); lo != "50" || hi != "100,5" {
		t.Errorf("amounts = %q %q", lo, hi)
	}

	m.Blur()
	if m.Editing() != FieldNone {
		t.Error("blur kept focus")
	}
}

func TestSyncFromState(t *testing.T) {
	m := New()
	lo := decimal.RequireFromString("12.5")
	s := filter.DefaultState()
	s.Search = "софия"
	s.MinAmount = &lo
	m.Sync(s)
	if m.Search() != "софия" {
		t.Errorf("search = %q", m.Search())
	}
	if a, b := m.Amounts(); a != "12.5" || b != "" {
		t.Errorf("amounts = %q %q", a, b)
	}
}

func TestViewShowsSettings(t *testing.T) {
	m := New()
	s := filter.DefaultState()
	s.Period = filter.PeriodToday
	s.Location = "Пловдив"
	v := m.View(s, 120)
	for _, want := range []string{"Днес", "Пловдив", "изчисти"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(m.View(filter.DefaultState(), 120), "изчисти") {
		t.Error("clear hint shown for default state")
	}
}
