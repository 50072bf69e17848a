package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"evstudy.dev/zmap/enrich"
)

type detailMsg struct {
	title   string
	profile *enrich.Profile
	z       float64
	err     error
}

type detailModel struct {
	title   string
	loading bool
	msg     detailMsg
}

// loadDetail samples the selected junction or edge in the background.
func (m uiModel) loadDetail(it item) tea.Cmd {
	return func() tea.Msg {
		out := detailMsg{title: it.title}
		switch {
		case it.junction != nil:
			if !it.junction.HasXY {
				out.err = errors.New("junction has no coordinates")
				return out
			}
			out.z, out.err = m.session.Elevation(m.ctx, it.junction.Point)
		case it.edge != nil:
			p, err := m.enricher.Profile(m.ctx, m.net, it.edge)
			out.profile, out.err = &p, err
		}
		return out
	}
}

func (m detailModel) received(msg detailMsg) detailModel {
	if msg.title != m.title {
		return m
	}
	m.loading = false
	m.msg = msg
	return m
}

func (m detailModel) Update(msg tea.Msg, mm *uiModel) (detailModel, tea.Cmd) {
	return m, nil
}

func (m detailModel) View() string {
	if m.loading {
		return docStyle.Render(m.title + "\n\nsampling...\n")
	}
	b := strings.Builder{}
	b.WriteString(m.title + "\n\n")
	switch {
	case m.msg.err != nil:
		fmt.Fprintf(&b, "elevation: unknown (%v)\n", m.msg.err)
	case m.msg.profile == nil:
		fmt.Fprintf(&b, "elevation: %.3f\n", m.msg.z)
	default:
		p := m.msg.profile
		if len(p.Points) == 0 {
			b.WriteString("no usable geometry\n")
			break
		}
		fmt.Fprintf(&b, "length: %.1f m\n", p.Length)
		if pct, deg, ok := p.Grade(); ok {
			fmt.Fprintf(&b, "grade: %.2f%% (%.2f deg)\n", pct, deg)
		} else {
			b.WriteString("grade: unknown\n")
		}
		b.WriteString("\n")
		for i, pt := range p.Points {
			z := "unknown"
			if p.Known[i] {
				z = fmt.Sprintf("%.3f", p.Z[i])
			}
			fmt.Fprintf(&b, "%10.2f %10.2f  %s\n", pt[0], pt[1], z)
		}
	}
	b.WriteString("\n(esc to return)")
	return docStyle.Render(b.String() + "\n")
}
