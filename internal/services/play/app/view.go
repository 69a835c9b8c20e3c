package play

import (
	"fmt"
	"sort"
	"strings"
)

func (m model) View() string {
	if m.width > 0 && (m.width < 30 || m.height < 8) {
		return m.th.Muted.Render("Terminal too small")
	}
	if m.ended {
		return m.frame(m.viewEnded())
	}
	return m.frame(m.viewAdventure())
}

func (m model) viewAdventure() string {
	header := m.th.Header.Render(m.print.Sprintf("core.app_name"))
	if m.hasTurn {
		header += "  " + m.th.Muted.Render(m.print.Sprintf("core.turn_position", m.view.Cursor+1, m.view.Count))
	}
	lines := []string{header, ""}

	if m.streaming {
		lines = append(lines, m.th.Accent.Render("> ")+m.pendingAction, "")
		if m.reasonText != "" {
			lines = append(lines, m.th.Muted.Render(m.reasonText), "")
		}
		if m.streamText != "" {
			lines = append(lines, m.streamText)
		} else {
			lines = append(lines, m.th.Muted.Render(m.print.Sprintf("core.streaming")))
		}
		for _, tool := range m.toolLines {
			lines = append(lines, m.th.Muted.Render("· "+tool))
		}
		if len(m.streamChoices) > 0 {
			lines = append(lines, "")
			for i, choice := range m.streamChoices {
				lines = append(lines, m.th.Muted.Render(fmt.Sprintf("  %d. %s", i+1, choice)))
			}
		}
	} else if m.hasTurn {
		if m.view.Turn.Action != "" {
			lines = append(lines, m.th.Accent.Render("> ")+m.view.Turn.Action, "")
		}
		lines = append(lines, m.view.Turn.Narrative)
		if len(m.view.Turn.Choices) > 0 {
			lines = append(lines, "")
			for i, choice := range m.view.Turn.Choices {
				text := fmt.Sprintf("%d. %s", i+1, choice)
				if i == m.choiceIdx {
					lines = append(lines, m.th.Accent.Render("> "+text))
				} else {
					lines = append(lines, "  "+text)
				}
			}
		}
		if len(m.view.Turn.Snapshot) > 0 {
			lines = append(lines, "", m.th.Muted.Render(renderSnapshot(m.view.Turn.Snapshot)))
		}
	}

	if m.notice != "" {
		style := m.th.Danger
		if m.noticeRetryable {
			style = m.th.Accent
		}
		lines = append(lines, "", style.Render(m.notice))
		lines = append(lines, m.th.Muted.Render(m.print.Sprintf("core.retry_hint")))
	}

	if !m.streaming {
		prompt := m.th.Input.Render("> ") + m.input
		if m.input == "" {
			prompt += m.th.Muted.Render(m.print.Sprintf("core.prompt_hint"))
		}
		lines = append(lines, "", prompt)
	}

	lines = append(lines, "", m.th.Muted.Render(m.keyHelp()))
	return strings.Join(lines, "\n")
}

func (m model) viewEnded() string {
	lines := []string{
		m.th.Header.Render(m.print.Sprintf("core.app_name")),
		"",
		m.print.Sprintf("core.ended"),
	}
	if m.notice != "" {
		lines = append(lines, "", m.th.Danger.Render(m.notice))
	}
	lines = append(lines, "", m.th.Muted.Render("[n] New adventure    [q] Quit"))
	return strings.Join(lines, "\n")
}

func (m model) keyHelp() string {
	if m.streaming {
		return "[Esc] Cancel    [Ctrl+C] Quit"
	}
	return "[Enter] Send    [←/→] Turns    [↑/↓] Choices    [Ctrl+N] New    [Ctrl+C] Quit"
}

func (m model) frame(body string) string {
	frame := m.th.Frame
	if m.width >= 4 {
		frame = frame.Width(m.width - 2)
	}
	return frame.Render(body)
}

func renderSnapshot(snapshot map[string]string) string {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+snapshot[key])
	}
	return strings.Join(parts, "    ")
}
