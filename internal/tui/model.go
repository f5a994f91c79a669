// Package tui is the terminal front end of a capture session, built on
// bubbletea. It renders session views and turns key presses into session
// actions; the session itself owns all state transitions.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fleveque/ecosort/internal/capture"
	"github.com/fleveque/ecosort/internal/session"
)

// viewMsg carries a fresh session view.
type viewMsg session.View

// viewsClosedMsg is sent when the session closes its subscription.
type viewsClosedMsg struct{}

// actionDoneMsg reports the outcome of a session action.
type actionDoneMsg struct{ err error }

// Model holds the TUI state.
type Model struct {
	sess        *session.Session
	views       <-chan session.View
	unsubscribe func()

	view     session.View
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	input    textinput.Model
	picking  bool
	notice   string
	maxBytes int64
	width    int
	quitting bool
}

// New creates a model bound to s.
func New(s *session.Session, maxBytes int64) Model {
	views, unsubscribe := s.Subscribe()

	ti := textinput.New()
	ti.Placeholder = "/path/to/photo.jpg"
	ti.CharLimit = 1024
	ti.Width = 50

	return Model{
		sess:        s,
		views:       views,
		unsubscribe: unsubscribe,
		view:        s.Snapshot(),
		keys:        defaultKeyMap(),
		help:        help.New(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		input:       ti,
		maxBytes:    maxBytes,
	}
}

// Init starts listening for views and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForView(m.views), m.spinner.Tick)
}

// waitForView blocks on the subscription. Each viewMsg re-arms it.
func waitForView(views <-chan session.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-views
		if !ok {
			return viewsClosedMsg{}
		}
		return viewMsg(v)
	}
}

// action runs fn off the UI goroutine and reports its error.
func action(fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: fn()}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case viewMsg:
		m.view = session.View(msg)
		return m, waitForView(m.views)

	case viewsClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case actionDoneMsg:
		m.notice = ""
		if msg.err != nil {
			m.notice = session.Message(msg.err, m.sess.Language())
		}
		// Pick up the new state right away; the subscription may lag.
		m.view = m.sess.Snapshot()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.picking {
			return m.updatePicker(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.sess
	state := m.view.State

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.unsubscribe()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Camera) && state == session.StateIdle:
		return m, action(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return s.StartCapture(ctx)
		})

	case key.Matches(msg, m.keys.Shoot) && state == session.StateCapturing:
		return m, action(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.CaptureFrame(ctx)
		})

	case key.Matches(msg, m.keys.Cancel) && state == session.StateCapturing:
		return m, action(s.CancelCapture)

	case key.Matches(msg, m.keys.Upload) && state == session.StateIdle:
		m.picking = true
		m.notice = ""
		m.input.Reset()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Reset) && state != session.StateIdle && state != session.StateCapturing:
		return m, action(s.Reset)
	}

	return m, nil
}

// updatePicker handles keys while the file path prompt is open.
func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.picking = false
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		path := strings.TrimSpace(m.input.Value())
		m.picking = false
		m.input.Blur()
		if path == "" {
			return m, nil
		}
		s, maxBytes := m.sess, m.maxBytes
		return m, action(func() error {
			img, err := capture.LoadFromFile(path, maxBytes)
			if err != nil {
				return err
			}
			return s.SelectFile(img)
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// shortHelp lists only the bindings that do something in the current state.
func (m Model) shortHelp() []key.Binding {
	switch m.view.State {
	case session.StateIdle:
		return []key.Binding{m.keys.Camera, m.keys.Upload, m.keys.Quit}
	case session.StateCapturing:
		return []key.Binding{m.keys.Shoot, m.keys.Cancel, m.keys.Quit}
	case session.StateLoading, session.StateResult, session.StateError:
		return []key.Binding{m.keys.Reset, m.keys.Quit}
	}
	return []key.Binding{m.keys.Quit}
}
