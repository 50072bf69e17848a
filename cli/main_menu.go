package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"evstudy.dev/zmap/enrich"
	"evstudy.dev/zmap/network"
)

type mainState int

const (
	showMenu mainState = iota
	showDetail
	showLookup
)

var docStyle = lipgloss.NewStyle().Margin(1, 2)

type uiModel struct {
	ctx      context.Context
	list     list.Model
	state    mainState
	detail   detailModel
	lookup   lookupModel
	net      *network.Network
	session  *enrich.Session
	enricher *enrich.Enricher
}

type item struct {
	title, desc string
	state       mainState
	junction    *network.Junction
	edge        *network.Edge
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

func menuItems(net *network.Network) []list.Item {
	items := []list.Item{
		item{title: "Look Up Point", desc: "Elevation of a network or lon,lat coordinate", state: showLookup},
	}
	for i := range net.Junctions {
		j := &net.Junctions[i]
		desc := "no coordinates"
		if j.HasXY {
			desc = fmt.Sprintf("x %.2f y %.2f", j.Point[0], j.Point[1])
		}
		items = append(items, item{title: "Junction " + j.ID, desc: desc, state: showDetail, junction: j})
	}
	for i := range net.Edges {
		e := &net.Edges[i]
		if e.Internal() {
			continue
		}
		items = append(items, item{title: "Edge " + e.ID, desc: fmt.Sprintf("from %s to %s", e.From, e.To), state: showDetail, edge: e})
	}
	return items
}

func initialModel(ctx context.Context, net *network.Network, session *enrich.Session, opts enrich.Options) uiModel {
	listDelegate := list.NewDefaultDelegate()
	m := uiModel{
		ctx:      ctx,
		list:     list.New(menuItems(net), listDelegate, 0, 0),
		lookup:   getLookupModel(),
		net:      net,
		session:  session,
		enricher: enrich.New(session, opts, nil),
	}
	m.list.Title = "Network Elevation"
	return m
}

func (m uiModel) Init() tea.Cmd {
	return nil
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEsc && m.state != showMenu {
			m.state = showMenu
			return m, nil
		}
		if msg.Type == tea.KeyEnter && m.state == showMenu && m.list.FilterState() != list.Filtering {
			it, ok := m.list.SelectedItem().(item)
			if !ok {
				return m, nil
			}
			m.state = it.state
			if it.state == showDetail {
				m.detail = detailModel{title: it.title, loading: true}
				return m, m.loadDetail(it)
			}
			m.lookup = m.lookup.reset()
			return m, nil
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	case detailMsg:
		m.detail = m.detail.received(msg)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case showDetail:
		m.detail, cmd = m.detail.Update(msg, &m)
	case showLookup:
		m.lookup, cmd = m.lookup.Update(msg, &m)
	default:
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m uiModel) View() string {
	switch m.state {
	case showDetail:
		return m.detail.View()
	case showLookup:
		return m.lookup.View()
	}
	return docStyle.Render(m.list.View())
}

func runExplore(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	net, f, err := readNetwork(cmd.String("net"))
	if err != nil {
		return err
	}
	session, err := openSession(s, f, cmd.String("raster"), nil)
	if err != nil {
		return err
	}
	defer session.Close()

	p := tea.NewProgram(initialModel(ctx, net, session, enrich.OptionsFrom(s)), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
