package cli

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type lookupState int

const (
	lookupInput lookupState = iota
	lookupResult
)

type lookupModel struct {
	state      lookupState
	textInput  textinput.Model
	geographic bool
	result     string
}

func getLookupModel() lookupModel {
	ti := textinput.New()
	ti.Placeholder = "x,y or lon,lat"
	ti.CharLimit = 64
	ti.Width = 40
	return lookupModel{textInput: ti}
}

func (m lookupModel) reset() lookupModel {
	m.state = lookupInput
	m.result = ""
	m.textInput.SetValue("")
	m.textInput.Focus()
	return m
}

func (m lookupModel) Update(msg tea.Msg, mm *uiModel) (lookupModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case msg.Type == tea.KeyTab && m.state == lookupInput:
			m.geographic = !m.geographic
			return m, nil
		case msg.Type == tea.KeyEnter && m.state == lookupInput:
			m.state = lookupResult
			m.result = m.probe(mm)
			return m, nil
		case msg.Type == tea.KeyEnter && m.state == lookupResult:
			return m.reset(), nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m lookupModel) probe(mm *uiModel) string {
	p, err := parsePair(m.textInput.Value())
	if err != nil {
		return err.Error()
	}
	local := p
	if m.geographic {
		local, err = mm.session.Transformer().FromGeographic(p)
		if err != nil {
			return err.Error()
		}
	}
	return Probe(mm.ctx, mm.session, mm.net, local).String()
}

func (m lookupModel) View() string {
	frame := "network x,y"
	if m.geographic {
		frame = "lon,lat"
	}
	switch m.state {
	case lookupResult:
		return docStyle.Render(fmt.Sprintf("%s\n\n%s", m.result, "(enter for another point, esc to return)") + "\n")
	default:
		return docStyle.Render(fmt.Sprintf(
			"Point in %s\n\n%s\n\n%s",
			frame,
			m.textInput.View(),
			"(tab to switch frame, esc to return)",
		) + "\n")
	}
}
