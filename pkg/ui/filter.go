package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/settree/pkg/expansion"
)

// DefaultFilterDelay merges bursts of keystrokes into one refilter.
const DefaultFilterDelay = 300 * time.Millisecond

// filterTickMsg fires when the debounce delay for refilter seq ran out.
type filterTickMsg struct {
	seq int
}

// structureSettledMsg is sent once the tree has re-laid out its rows after
// a refilter. It carries the restore plan armed by the filter change, if
// any.
type structureSettledMsg struct {
	plan expansion.RestorePlan
}

// FilterBar is the "/" filter input. It reports every text change to the
// expansion controller right away and schedules the refilter itself after
// a delay; only the latest scheduled refilter runs.
type FilterBar struct {
	input   textinput.Model
	theme   Theme
	delay   time.Duration
	seq     int
	applied string
	plan    expansion.RestorePlan
	ctrl    *expansion.Controller
}

// NewFilterBar creates a filter bar reporting to ctrl.
func NewFilterBar(theme Theme, ctrl *expansion.Controller, delay time.Duration) FilterBar {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter settings"
	ti.CharLimit = 120
	if delay < 0 {
		delay = 0
	}
	return FilterBar{input: ti, theme: theme, delay: delay, ctrl: ctrl}
}

// Focus focuses the input.
func (f *FilterBar) Focus() tea.Cmd {
	return f.input.Focus()
}

// Blur removes focus from the input.
func (f *FilterBar) Blur() {
	f.input.Blur()
}

// Focused reports whether the input has focus.
func (f FilterBar) Focused() bool {
	return f.input.Focused()
}

// Value returns the current filter text.
func (f FilterBar) Value() string {
	return f.input.Value()
}

// Query returns the text the tree is filtered by right now.
func (f FilterBar) Query() string {
	return f.applied
}

// Active reports whether the input holds filter text.
func (f FilterBar) Active() bool {
	return strings.TrimSpace(f.input.Value()) != ""
}

// Update forwards msg to the input. When the text changed, the controller
// hears about it and a refilter is scheduled.
func (f FilterBar) Update(msg tea.Msg, expanded func() expansion.Snapshot) (FilterBar, tea.Cmd) {
	before := f.input.Value()
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	if f.input.Value() == before {
		return f, cmd
	}
	return f, tea.Batch(cmd, f.changed(expanded))
}

// SetValue replaces the filter text, as if typed.
func (f FilterBar) SetValue(s string, expanded func() expansion.Snapshot) (FilterBar, tea.Cmd) {
	if f.input.Value() == s {
		return f, nil
	}
	f.input.SetValue(s)
	f.input.CursorEnd()
	return f, f.changed(expanded)
}

// Clear empties the filter text.
func (f FilterBar) Clear(expanded func() expansion.Snapshot) (FilterBar, tea.Cmd) {
	return f.SetValue("", expanded)
}

func (f *FilterBar) changed(expanded func() expansion.Snapshot) tea.Cmd {
	plan := f.ctrl.OnFilterTextChanged(f.Active(), expanded)
	if plan.Armed() {
		f.plan = plan
	}
	f.seq++
	seq := f.seq
	if f.delay == 0 {
		return func() tea.Msg { return filterTickMsg{seq: seq} }
	}
	return tea.Tick(f.delay, func(time.Time) tea.Msg {
		return filterTickMsg{seq: seq}
	})
}

// Settle handles a debounce tick. Ticks superseded by later keystrokes are
// dropped. For the current tick it returns the query to apply and the plan
// to restore once the rows are rebuilt; ok is false when there is nothing
// to do.
func (f *FilterBar) Settle(msg filterTickMsg) (query string, plan expansion.RestorePlan, ok bool) {
	if msg.seq != f.seq {
		return "", expansion.RestorePlan{}, false
	}
	f.applied = strings.TrimSpace(f.input.Value())
	plan, f.plan = f.plan, expansion.RestorePlan{}
	return f.applied, plan, true
}

// View renders the input line.
func (f FilterBar) View(width int) string {
	f.input.Width = max(width-len(f.input.Prompt)-1, 1)
	return f.input.View()
}
