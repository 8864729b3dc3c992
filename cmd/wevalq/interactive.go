package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	reqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	addrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	sess     *session
	filename string
	entry    string
	argvStr  string
	envStr   string
	filter   textinput.Model
	visible  []int
	selected int
	state    modelState
}

type modelState int

const (
	stateBrowse modelState = iota
	stateFilter
	stateDetail
)

func newInteractiveModel(filename, entry, argvStr, envStr string) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		entry:    entry,
		argvStr:  argvStr,
		envStr:   envStr,
		state:    stateBrowse,
	}
}

type loadedMsg struct {
	err  error
	sess *session
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadSession
}

// loadSession runs the client once and harvests its queue. Guest stdio is
// discarded; the alternate screen owns the terminal.
func (m *interactiveModel) loadSession() tea.Msg {
	sess, err := collect(context.Background(), m.filename, m.entry, m.argvStr, m.envStr, io.Discard, io.Discard)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{sess: sess}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.visible)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateBrowse:
				if len(m.visible) > 0 {
					m.state = stateDetail
				}
			case stateFilter:
				m.applyFilter()
				m.state = stateBrowse
			case stateDetail:
				m.state = stateBrowse
			}

		case "/":
			if m.state == stateBrowse && m.sess != nil {
				m.prepareFilter()
				m.state = stateFilter
			}

		case "esc":
			switch m.state {
			case stateFilter:
				m.state = stateBrowse
			case stateDetail:
				m.state = stateBrowse
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sess = msg.sess
		m.applyFilter()
	}

	if m.state == stateFilter {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) prepareFilter() {
	ti := textinput.New()
	ti.Placeholder = "all"
	ti.Prompt = "func id: "
	ti.Width = 12
	ti.Focus()
	m.filter = ti
}

// applyFilter recomputes the visible request list from the filter text. An
// empty or unparsable filter shows everything.
func (m *interactiveModel) applyFilter() {
	m.visible = m.visible[:0]
	text := strings.TrimSpace(m.filter.Value())
	id, err := strconv.ParseUint(text, 10, 32)
	for i, req := range m.sess.Requests {
		if text == "" || err != nil || req.Node.FuncID == uint32(id) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = 0
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.sess == nil {
		return "Running client..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("weval queue"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse:
		mode := "collecting"
		if m.sess.Specialized {
			mode = fmt.Sprintf("resolved, %d table entries", len(m.sess.Table))
		}
		b.WriteString(fmt.Sprintf("Mode: %s   Targets: %d   Requests: %d\n\n",
			mode, len(m.sess.Targets), len(m.sess.Requests)))

		if len(m.visible) == 0 {
			b.WriteString("(queue empty)\n")
		}
		for pos, i := range m.visible {
			cursor := "  "
			if pos == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatRequest(i)))
			} else {
				b.WriteString(cursor + m.formatRequest(i))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • / filter • q quit"))

	case stateFilter:
		b.WriteString("Show requests for one function:\n\n")
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter apply • esc back"))

	case stateDetail:
		req := m.sess.Requests[m.visible[m.selected]]
		b.WriteString(fmt.Sprintf("Request %s\n\n", addrStyle.Render(fmt.Sprintf("node 0x%x", req.Addr))))
		b.WriteString(fmt.Sprintf("  func id: %d\n", req.Node.FuncID))
		b.WriteString(fmt.Sprintf("  slot:    0x%x\n", req.Node.Specialized))
		b.WriteString(fmt.Sprintf("  key:     %d bytes at 0x%x\n\n", req.Node.ArgLen, req.Node.ArgBuf))
		if req.DecodeErr != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("key does not decode: %v", req.DecodeErr)))
			b.WriteString("\n")
		} else {
			for j, a := range req.Args {
				b.WriteString(fmt.Sprintf("  arg%d: %s\n", j, valueStyle.Render(a.String())))
			}
		}
		b.WriteString("\n")
		b.WriteString(addrStyle.Render(hex.Dump(req.Key)))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatRequest(i int) string {
	req := m.sess.Requests[i]
	args := "?"
	if req.DecodeErr == nil {
		args = strconv.Itoa(len(req.Args))
	}
	return reqStyle.Render(fmt.Sprintf("func %d", req.Node.FuncID)) +
		fmt.Sprintf("  %s args  key %dB  ", args, len(req.Key)) +
		addrStyle.Render(fmt.Sprintf("node 0x%x", req.Addr))
}

func runInteractive(filename, entry, argvStr, envStr string) error {
	p := tea.NewProgram(newInteractiveModel(filename, entry, argvStr, envStr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
