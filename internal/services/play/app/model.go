package play

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/message"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/platform/timeouts"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/client"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

type model struct {
	th     theme
	client *client.Client
	print  *message.Printer

	width  int
	height int

	session client.Session
	view    client.TurnView
	hasTurn bool
	// ended is set when the session is gone; the player can start over or
	// quit from there.
	ended bool

	input     string
	choiceIdx int

	streaming     bool
	pendingAction string
	streamText    string
	reasonText    string
	streamChoices []string
	toolLines     []string
	streamEvents  <-chan turn.Event
	streamCancel  context.CancelFunc

	notice          string
	noticeRetryable bool
}

type sessionStartedMsg struct {
	started client.Started
	err     error
}

type streamOpenedMsg struct {
	events <-chan turn.Event
	err    error
}

type streamEventMsg struct {
	evt  turn.Event
	open bool
}

type navigatedMsg struct {
	view client.TurnView
	err  error
}

func (m model) Init() tea.Cmd {
	return m.startSessionCmd("")
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch t := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = t.Width
		m.height = t.Height
		return m, nil

	case sessionStartedMsg:
		if t.err != nil {
			m.ended = true
			m.hasTurn = false
			m.session = client.Session{}
			m.notice, m.noticeRetryable = noticeFor(t.err)
			return m, nil
		}
		m.ended = false
		m.session = t.started.Session
		m.view = t.started.TurnView
		m.hasTurn = true
		m.input = ""
		m.choiceIdx = -1
		m.notice = ""
		return m, nil

	case streamOpenedMsg:
		if t.err != nil {
			m = m.resetStream()
			m.notice, m.noticeRetryable = noticeFor(t.err)
			return m, nil
		}
		m.streamEvents = t.events
		return m, waitForEvent(t.events)

	case streamEventMsg:
		return m.onStreamEvent(t)

	case navigatedMsg:
		if t.err != nil {
			// Past-the-edge navigation is a no-op, not a failure.
			if errors.Is(t.err, apperrors.New(apperrors.CodeTurnOutOfRange, "")) {
				return m, nil
			}
			m.notice, m.noticeRetryable = noticeFor(t.err)
			if errors.Is(t.err, apperrors.New(apperrors.CodeSessionClosed, "")) {
				m.ended = true
			}
			return m, nil
		}
		m.view = t.view
		m.choiceIdx = -1
		return m, nil

	case tea.KeyMsg:
		return m.onKey(t)
	}
	return m, nil
}

func (m model) onStreamEvent(t streamEventMsg) (tea.Model, tea.Cmd) {
	if !t.open {
		// The channel closed without a terminal event: the stream was
		// canceled or the connection dropped.
		m = m.resetStream()
		return m, nil
	}

	switch t.evt.Type {
	case turn.EventTextChunk:
		m.streamText += t.evt.Text
	case turn.EventReasoningChunk:
		m.reasonText += t.evt.Text
	case turn.EventToolCall:
		m.toolLines = append(m.toolLines, t.evt.Tool)
	case turn.EventToolResult:
		if t.evt.Err != nil {
			m.toolLines = append(m.toolLines, t.evt.Tool+": "+t.evt.Err.Error())
		}
	case turn.EventChoices:
		m.streamChoices = t.evt.Choices

	case turn.EventTurnComplete:
		record := t.evt.Turn
		m = m.resetStream()
		m.view = client.TurnView{
			Turn: client.Turn{
				Sequence:  record.Sequence,
				Action:    record.Action,
				Narrative: record.Narrative,
				Choices:   record.Choices,
				Snapshot:  record.Snapshot,
			},
			Cursor: record.Sequence,
			Count:  record.Sequence + 1,
			Latest: true,
		}
		m.hasTurn = true
		m.input = ""
		m.choiceIdx = -1
		return m, nil

	case turn.EventError:
		err := t.evt.Err
		m = m.resetStream()
		if errors.Is(err, context.Canceled) {
			return m, nil
		}
		m.notice, m.noticeRetryable = noticeFor(err)
		if errors.Is(err, apperrors.New(apperrors.CodeSessionClosed, "")) {
			m.ended = true
		}
		return m, nil
	}

	return m, waitForEvent(m.streamEvents)
}

func (m model) onKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyCtrlC:
		return m, m.quitCmd()

	case tea.KeyEsc:
		if m.streaming {
			// Abort the in-flight submission; nothing gets committed.
			if m.streamCancel != nil {
				m.streamCancel()
			}
			return m, nil
		}
		if m.notice != "" {
			m.notice = ""
			return m, nil
		}
		m.input = ""
		return m, nil

	case tea.KeyCtrlN:
		return m.startNewGame()

	case tea.KeyEnter:
		return m.submitCurrent()

	case tea.KeyLeft:
		return m.navigateBy(-1)

	case tea.KeyRight:
		return m.navigateBy(1)

	case tea.KeyUp:
		return m.moveChoice(-1), nil

	case tea.KeyDown:
		return m.moveChoice(1), nil

	case tea.KeyBackspace:
		if !m.streaming && m.input != "" {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
		return m, nil

	case tea.KeyRunes, tea.KeySpace:
		if m.ended {
			switch strings.ToLower(k.String()) {
			case "n":
				return m.startNewGame()
			case "q":
				return m, m.quitCmd()
			}
			return m, nil
		}
		if m.streaming {
			return m, nil
		}
		if k.Type == tea.KeySpace {
			m.input += " "
		} else {
			m.input += string(k.Runes)
		}
		return m, nil
	}
	return m, nil
}

// startSessionCmd creates a fresh session, ending previousID first when
// set.
func (m model) startSessionCmd(previousID string) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.BridgeRequest)
		defer cancel()
		if previousID != "" {
			_ = c.EndSession(ctx, previousID)
		}
		started, err := c.CreateSession(ctx)
		return sessionStartedMsg{started: started, err: err}
	}
}

func (m model) startNewGame() (tea.Model, tea.Cmd) {
	if m.streaming {
		return m, nil
	}
	m.notice = ""
	return m, m.startSessionCmd(m.session.ID)
}

func (m model) submitCurrent() (tea.Model, tea.Cmd) {
	if m.streaming || m.ended || m.session.ID == "" {
		return m, nil
	}
	action := m.input
	if strings.TrimSpace(action) == "" {
		if m.choiceIdx < 0 || m.choiceIdx >= len(m.view.Turn.Choices) {
			return m, nil
		}
		action = m.view.Turn.Choices[m.choiceIdx]
	}

	c := m.client
	sessionID := m.session.ID
	ctx, cancel := context.WithCancel(context.Background())
	m.streamCancel = cancel
	m.streaming = true
	m.pendingAction = action
	m.streamText = ""
	m.reasonText = ""
	m.streamChoices = nil
	m.toolLines = nil
	m.notice = ""
	return m, func() tea.Msg {
		events, err := c.Stream(ctx, sessionID, action)
		return streamOpenedMsg{events: events, err: err}
	}
}

func (m model) navigateBy(delta int) (tea.Model, tea.Cmd) {
	if m.streaming || m.ended || !m.hasTurn {
		return m, nil
	}
	index := m.view.Cursor + delta
	if index < 0 || index >= m.view.Count {
		return m, nil
	}

	c := m.client
	sessionID := m.session.ID
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.BridgeRequest)
		defer cancel()
		view, err := c.Navigate(ctx, sessionID, index)
		return navigatedMsg{view: view, err: err}
	}
}

func (m model) moveChoice(delta int) model {
	if m.streaming || m.ended {
		return m
	}
	count := len(m.view.Turn.Choices)
	if count == 0 {
		return m
	}
	idx := m.choiceIdx + delta
	if m.choiceIdx < 0 {
		if delta > 0 {
			idx = 0
		} else {
			idx = count - 1
		}
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= count {
		idx = count - 1
	}
	m.choiceIdx = idx
	return m
}

// quitCmd ends the session best-effort and stops the program.
func (m model) quitCmd() tea.Cmd {
	if m.streamCancel != nil {
		m.streamCancel()
	}
	c := m.client
	sessionID := m.session.ID
	return func() tea.Msg {
		if sessionID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), timeouts.BridgeRequest)
			defer cancel()
			_ = c.EndSession(ctx, sessionID)
		}
		return tea.QuitMsg{}
	}
}

func (m model) resetStream() model {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
	m.streaming = false
	m.pendingAction = ""
	m.streamText = ""
	m.reasonText = ""
	m.streamChoices = nil
	m.toolLines = nil
	m.streamEvents = nil
	return m
}

func waitForEvent(events <-chan turn.Event) tea.Cmd {
	return func() tea.Msg {
		evt, open := <-events
		return streamEventMsg{evt: evt, open: open}
	}
}

// noticeFor renders an error for the notice line. Bridge errors carry the
// localized message; anything else is shown raw.
func noticeFor(err error) (string, bool) {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.Message, domainErr.Code.Retryable()
	}
	return err.Error(), false
}
