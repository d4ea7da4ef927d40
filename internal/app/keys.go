package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Enter      key.Binding
	Tab        key.Binding
	PrevTab    key.Binding
	Tab1       key.Binding
	Tab2       key.Binding
	Tab3       key.Binding
	Tab4       key.Binding
	Escape     key.Binding
	Quit       key.Binding
	Debug      key.Binding
	Reconnect  key.Binding
	Approve    key.Binding
	Reject     key.Binding
	Increase   key.Binding
	Decrease   key.Binding
	RemoveLine key.Binding
	OKLine     key.Binding
	Reset      key.Binding
	Search     key.Binding
	Amount     key.Binding
	Period     key.Binding
	Sort       key.Binding
	Location   key.Binding
	NextPage   key.Binding
	PrevPage   key.Binding
	Clear      key.Binding
	Submit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "нагоре"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "надолу"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "детайли"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "следващ раздел"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "предишен раздел"),
		),
		Tab1: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "спешни"),
		),
		Tab2: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "чакащи"),
		),
		Tab3: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "потвърдени"),
		),
		Tab4: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "отказани"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "затвори"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "изход"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "дневник"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "свържи отново"),
		),
		Approve: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "одобри"),
		),
		Reject: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "откажи"),
		),
		Increase: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "количество +1"),
		),
		Decrease: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "количество -1"),
		),
		RemoveLine: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "премахни ред"),
		),
		OKLine: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "одобри ред"),
		),
		Reset: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "отмени промените"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "търсене"),
		),
		Amount: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "сума от/до"),
		),
		Period: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "период"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "подредба"),
		),
		Location: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "град"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("n", "pgdown"),
			key.WithHelp("n", "следваща страница"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("N", "pgup"),
			key.WithHelp("N", "предишна страница"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "изчисти филтрите"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "изпрати"),
		),
	}
}
