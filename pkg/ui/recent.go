package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/vanderheijden86/settree/pkg/history"
	"github.com/vanderheijden86/settree/pkg/settings"
)

// recentLoadedMsg carries places read from the history store.
type recentLoadedMsg struct {
	changedOnly bool
	places      []history.Place
	err         error
}

type recentEntry struct {
	place history.Place
	crumb string
}

// RecentModel is the recent locations popup: pages visited lately, newest
// first, shown as breadcrumbs and narrowed with a fuzzy filter. ctrl+e
// switches between all visits and visits that changed something.
type RecentModel struct {
	store         *history.Store
	tree          *settings.Tree
	limit         int
	changedOnly   bool
	entries       []recentEntry
	filtered      []int
	input         textinput.Model
	selectedIndex int
	width         int
	height        int
	theme         Theme
	err           error
	chosen        string
	closed        bool
}

// NewRecentModel creates the popup over store. limit caps the number of
// places shown.
func NewRecentModel(theme Theme, store *history.Store, limit int) RecentModel {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 80
	ti.Width = 40
	return RecentModel{store: store, limit: limit, input: ti, theme: theme}
}

// Open resets the popup for tree and starts loading places.
func (m *RecentModel) Open(tree *settings.Tree) tea.Cmd {
	m.tree = tree
	m.changedOnly = false
	m.entries = nil
	m.filtered = nil
	m.selectedIndex = 0
	m.err = nil
	m.chosen = ""
	m.closed = false
	m.input.SetValue("")
	return tea.Batch(m.input.Focus(), m.Load())
}

// Load reads places for the current mode.
func (m RecentModel) Load() tea.Cmd {
	store, changedOnly, limit := m.store, m.changedOnly, m.limit
	return func() tea.Msg {
		if store == nil {
			return recentLoadedMsg{changedOnly: changedOnly, err: fmt.Errorf("history is disabled")}
		}
		places, err := store.Places(context.Background(), changedOnly, limit)
		return recentLoadedMsg{changedOnly: changedOnly, places: places, err: err}
	}
}

// SetSize updates the popup dimensions
func (m *RecentModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Chosen returns the page picked with enter.
func (m RecentModel) Chosen() (string, bool) {
	return m.chosen, m.chosen != ""
}

// Closed reports whether the popup should go away.
func (m RecentModel) Closed() bool {
	return m.closed || m.chosen != ""
}

// ChangedOnly reports whether only changing visits are listed.
func (m RecentModel) ChangedOnly() bool {
	return m.changedOnly
}

// Items returns the breadcrumbs currently listed.
func (m RecentModel) Items() []string {
	out := make([]string, len(m.filtered))
	for i, idx := range m.filtered {
		out[i] = m.entries[idx].crumb
	}
	return out
}

// Update handles keys and loaded places.
func (m RecentModel) Update(msg tea.Msg) (RecentModel, tea.Cmd) {
	switch msg := msg.(type) {
	case recentLoadedMsg:
		if msg.changedOnly != m.changedOnly {
			return m, nil
		}
		m.setPlaces(msg.places, msg.err)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			m.closed = true
			return m, nil
		case "enter":
			if idx, ok := m.selected(); ok {
				m.chosen = m.entries[idx].place.PageID
			}
			return m, nil
		case "up", "ctrl+p", "ctrl+k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "ctrl+n", "ctrl+j":
			if m.selectedIndex < len(m.filtered)-1 {
				m.selectedIndex++
			}
			return m, nil
		case "ctrl+e":
			m.changedOnly = !m.changedOnly
			m.entries = nil
			m.filtered = nil
			m.selectedIndex = 0
			return m, m.Load()
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.applyFilter()
	}
	return m, cmd
}

// setPlaces turns places into entries. Places whose page no longer exists
// are dropped.
func (m *RecentModel) setPlaces(places []history.Place, err error) {
	m.err = err
	m.entries = m.entries[:0]
	for _, p := range places {
		if m.tree == nil {
			break
		}
		if _, ok := m.tree.FindByID(p.PageID); !ok {
			continue
		}
		m.entries = append(m.entries, recentEntry{
			place: p,
			crumb: history.Breadcrumbs(m.tree.PathNames(p.PageID), p.PageID),
		})
	}
	m.applyFilter()
}

// applyFilter narrows entries with a fuzzy match on their breadcrumbs,
// keeping recency order when the query is empty.
func (m *RecentModel) applyFilter() {
	query := strings.TrimSpace(m.input.Value())
	m.filtered = m.filtered[:0]
	if query == "" {
		for i := range m.entries {
			m.filtered = append(m.filtered, i)
		}
	} else {
		crumbs := make([]string, len(m.entries))
		for i, e := range m.entries {
			crumbs[i] = e.crumb
		}
		for _, match := range fuzzy.Find(query, crumbs) {
			m.filtered = append(m.filtered, match.Index)
		}
	}
	m.selectedIndex = clampInt(m.selectedIndex, 0, max(len(m.filtered)-1, 0))
}

func (m RecentModel) selected() (int, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.filtered) {
		return 0, false
	}
	return m.filtered[m.selectedIndex], true
}

// View renders the popup centered in its area.
func (m RecentModel) View() string {
	width, height := m.width, m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}
	t := m.theme

	boxWidth := clampInt(history.BreadcrumbWidth+16, 30, max(width-4, 30))
	maxVisible := clampInt(height-10, 3, 15)

	var lines []string
	title := "Recent Locations"
	if m.changedOnly {
		title = "Recently Changed Locations"
	}
	lines = append(lines, t.PrimaryBold.Render(title))
	lines = append(lines, "")

	inputStyle := t.Renderer.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(t.Secondary).
		Padding(0, 1).
		Width(boxWidth - 6)
	lines = append(lines, inputStyle.Render(m.input.View()))
	lines = append(lines, "")

	switch {
	case m.err != nil:
		lines = append(lines, t.ErrorText.Render("  "+m.err.Error()))
	case len(m.filtered) == 0:
		lines = append(lines, t.MutedText.Italic(true).Render("  No recent locations"))
	default:
		start := 0
		if m.selectedIndex >= maxVisible {
			start = m.selectedIndex - maxVisible + 1
		}
		end := min(start+maxVisible, len(m.filtered))
		for i := start; i < end; i++ {
			e := m.entries[m.filtered[i]]
			prefix := "  "
			style := t.Base
			if i == m.selectedIndex {
				prefix = "> "
				style = t.PrimaryBold
			}
			mark := " "
			if e.place.Changed {
				mark = t.ModifiedText.Render("*")
			}
			age := FormatTimeRel(e.place.At)
			crumb := padRight(truncate(e.crumb, boxWidth-18), boxWidth-18)
			lines = append(lines, style.Render(prefix+crumb)+mark+" "+t.MutedText.Render(age))
		}
		if len(m.filtered) > maxVisible {
			lines = append(lines, t.MutedText.Render(fmt.Sprintf("  (%d/%d)", m.selectedIndex+1, len(m.filtered))))
		}
	}

	lines = append(lines, "")
	toggle := "changed only"
	if m.changedOnly {
		toggle = "show all"
	}
	lines = append(lines, RenderKeyHints(t, boxWidth-4,
		keyHint{"enter", "jump"},
		keyHint{"ctrl+e", toggle},
		keyHint{"esc", "close"},
	))

	box := PopupStyle.Padding(1, 2).Width(boxWidth).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
