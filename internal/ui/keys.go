package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap lists every binding the list view reacts to.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Mode     key.Binding
	North    key.Binding
	South    key.Binding
	West     key.Binding
	East     key.Binding
	Category key.Binding
	Recency  key.Binding
	NextPage key.Binding
	Play     key.Binding
	Upload   key.Binding
	Cancel   key.Binding
	Help     key.Binding
	Debug    key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Mode:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus/browse")),
		North:    key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "pan north / later")),
		South:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "pan south / earlier")),
		West:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "pan west")),
		East:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "pan east")),
		Category: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "normal/premium")),
		Recency:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "all time/last day")),
		NextPage: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next page")),
		Play:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		Upload:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Debug:    key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "events")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mode, k.Category, k.Recency, k.Upload, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.NextPage},
		{k.North, k.South, k.West, k.East, k.Mode},
		{k.Category, k.Recency, k.Play, k.Upload, k.Cancel},
		{k.Debug, k.Help, k.Quit},
	}
}
