package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the key bindings of the scan screen.
type keyMap struct {
	Camera key.Binding
	Shoot  key.Binding
	Cancel key.Binding
	Upload key.Binding
	Reset  key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Camera: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "camera")),
		Shoot:  key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "take photo")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Upload: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload file")),
		Reset:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "scan another")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
