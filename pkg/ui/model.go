package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/settree/pkg/debug"
	"github.com/vanderheijden86/settree/pkg/expansion"
	"github.com/vanderheijden86/settree/pkg/history"
	"github.com/vanderheijden86/settree/pkg/hooks"
	"github.com/vanderheijden86/settree/pkg/loader"
	"github.com/vanderheijden86/settree/pkg/settings"
	"github.com/vanderheijden86/settree/pkg/watcher"
)

// focus is the pane that receives keys.
type focus int

const (
	focusTree focus = iota
	focusFilter
	focusPreview
	focusRecent
	focusEdit
)

func (f focus) String() string {
	switch f {
	case focusFilter:
		return "filter"
	case focusPreview:
		return "preview"
	case focusRecent:
		return "recent"
	case focusEdit:
		return "edit"
	default:
		return "tree"
	}
}

// FileChangedMsg is sent when a watched definitions or overrides file
// changes on disk.
type FileChangedMsg struct{}

// reloadedMsg carries the result of re-reading the files.
type reloadedMsg struct {
	tree      *settings.Tree
	overrides settings.Overrides
	err       error
}

// historyRecordedMsg reports a failed history write.
type historyRecordedMsg struct {
	err error
}

// savedMsg reports the outcome of writing the overrides file. hookErr is
// set when a post-save hook failed after a successful write.
type savedMsg struct {
	path    string
	err     error
	hookErr error
	summary string
}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// Options configures a Model.
type Options struct {
	Tree  *settings.Tree
	Edits *settings.Context
	// History is optional; without it the recent locations popup is off.
	History      *history.Store
	HistoryLimit int
	// Watcher and Reload enable live reload. Reload re-reads the
	// definition files.
	Watcher       *watcher.Watcher
	Reload        func(ctx context.Context) (*settings.Tree, error)
	OverridesPath string
	// StateDir holds tree-state.json. Empty disables persistence.
	StateDir string
	// FilterDelay merges keystrokes before refiltering. Zero refilters
	// right away.
	FilterDelay time.Duration
	SplitRatio  float64
	// PreviewWidth caps the wrap width of page descriptions.
	PreviewWidth int
	// Hooks run around each save of the overrides file.
	Hooks *hooks.Config
}

// Model is the root settree model: the settings tree on the left, the
// preview or edit form on the right, a filter line and a status bar.
type Model struct {
	tree    SettingsTreeModel
	filter  FilterBar
	preview PreviewModel
	recent  RecentModel
	edit    *EditForm
	focus   focus

	edits         *settings.Context
	history       *history.Store
	watcher       *watcher.Watcher
	reload        func(ctx context.Context) (*settings.Tree, error)
	overridesPath string
	hooks         *hooks.Config
	splitRatio    float64
	theme         Theme

	width  int
	height int
	ready  bool

	lastPage      string
	pendingJump   string
	dirty         bool
	quitArmed     bool
	statusMsg     string
	statusIsError bool
}

// NewModel creates the root model.
func NewModel(opts Options) Model {
	theme := DefaultTheme(lipgloss.NewRenderer(os.Stdout))

	tree := opts.Tree
	if tree == nil {
		tree, _ = settings.NewTree(nil)
	}
	edits := opts.Edits
	if edits == nil {
		edits = settings.NewContext(tree)
	}
	split := opts.SplitRatio
	if split <= 0 || split >= 1 {
		split = 0.4
	}
	delay := opts.FilterDelay
	if delay < 0 {
		delay = DefaultFilterDelay
	}

	ctrl := expansion.NewController()
	tm := NewSettingsTreeModel(theme, ctrl)
	tm.SetStateDir(opts.StateDir)
	tm.Build(tree, edits)

	m := Model{
		tree:          tm,
		filter:        NewFilterBar(theme, ctrl, delay),
		preview:       NewPreviewModel(theme),
		recent:        NewRecentModel(theme, opts.History, opts.HistoryLimit),
		edits:         edits,
		history:       opts.History,
		watcher:       opts.Watcher,
		reload:        opts.Reload,
		overridesPath: opts.OverridesPath,
		hooks:         opts.Hooks,
		splitRatio:    split,
		theme:         theme,
	}
	if first := tree.FirstPage(); first != nil {
		if !m.tree.SelectByID(first.ID) {
			m.tree.Reveal(first.ID)
		}
	}
	m.preview.SetMaxWrap(opts.PreviewWidth)
	m.showSelected()
	return m
}

// Init starts watching files and records the first visit.
func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	cmds = append(cmds, m.recordCmd(m.lastPage, false))
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The huh form needs every message type, not just keys.
	if m.focus == focusEdit && m.edit != nil {
		return m.updateEdit(msg)
	}

	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()

	case filterTickMsg:
		query, plan, ok := m.filter.Settle(msg)
		if !ok {
			break
		}
		m.tree.ApplyFilter(query)
		cmds = append(cmds, m.selectionChanged())
		cmds = append(cmds, func() tea.Msg { return structureSettledMsg{plan: plan} })

	case structureSettledMsg:
		collapsed := m.tree.Controller().RestoreView(msg.plan, &m.tree)
		if len(collapsed) > 0 {
			debug.Log("ui: restored expansion, collapsed %d nodes", len(collapsed))
			m.tree.saveState()
			m.tree.ensureCursorVisible()
		}
		if id := m.pendingJump; id != "" && !m.tree.FilterActive() {
			m.pendingJump = ""
			m.jumpTo(id)
		}
		cmds = append(cmds, m.selectionChanged())

	case recentLoadedMsg:
		m.recent, _ = m.recent.Update(msg)

	case historyRecordedMsg:
		if msg.err != nil {
			debug.Warn("ui: history: %v", msg.err)
			m.setStatus(fmt.Sprintf("History error: %v", msg.err), true)
		}

	case savedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Save failed: %v", msg.err), true)
			break
		}
		m.dirty = false
		if msg.hookErr != nil {
			m.setStatus(fmt.Sprintf("Saved overrides to %s; %v", msg.path, msg.hookErr), true)
			break
		}
		status := fmt.Sprintf("Saved overrides to %s", msg.path)
		if msg.summary != "" {
			status += " (" + msg.summary + ")"
		}
		m.setStatus(status, false)

	case FileChangedMsg:
		var changed []string
		if m.watcher != nil {
			changed = m.watcher.TakeChanged()
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}
		if len(changed) > 0 {
			cmds = append(cmds, m.reloadCmd(changed))
		}

	case reloadedMsg:
		m.applyReload(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	default:
		if m.focus == focusPreview {
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() != "q" {
		m.quitArmed = false
		m.setStatus("", false)
	}
	switch m.focus {
	case focusFilter:
		return m.handleFilterKey(msg)
	case focusRecent:
		return m.handleRecentKey(msg)
	case focusPreview:
		switch msg.String() {
		case "tab", "esc":
			m.focus = focusTree
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}
	return m.handleTreeKey(msg)
}

func (m Model) handleTreeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if m.dirty && !m.quitArmed {
			m.quitArmed = true
			m.setStatus("Unsaved changes: ctrl+s saves, q again quits", true)
			return m, nil
		}
		return m, tea.Quit
	case "j", "down":
		m.tree.MoveDown()
	case "k", "up":
		m.tree.MoveUp()
	case "l", "right":
		m.tree.ExpandOrMoveToChild()
	case "h", "left":
		m.tree.CollapseOrJumpToParent()
	case " ", "enter":
		m.tree.ToggleExpand()
	case "+", "ctrl+a":
		m.tree.ExpandAll()
	case "-":
		m.tree.CollapseAll()
	case "p":
		m.tree.JumpToParent()
	case "g", "home":
		m.tree.JumpToTop()
	case "G", "end":
		m.tree.JumpToBottom()
	case "ctrl+d", "pgdown":
		m.tree.PageDown()
	case "ctrl+u", "pgup":
		m.tree.PageUp()
	case "tab":
		m.focus = focusPreview
	case "/":
		m.focus = focusFilter
		cmds = append(cmds, m.filter.Focus())
	case "esc":
		if m.filter.Active() {
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Clear(m.tree.ExpandedNodes)
			cmds = append(cmds, cmd)
		}
	case "ctrl+e":
		return m.openRecent()
	case "e":
		return m.openEdit()
	case "r":
		if id := m.tree.SelectedID(); id != "" && (m.edits.Modified(id) || m.edits.Error(id) != nil) {
			m.edits.Reset(id)
			m.dirty = true
			m.setStatus("Reset "+id, false)
		}
	case "ctrl+s":
		cmds = append(cmds, m.saveCmd())
	case "y":
		m.copyBreadcrumb()
	}
	cmds = append(cmds, m.selectionChanged())
	return m, tea.Batch(cmds...)
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.filter.Blur()
		m.focus = focusTree
		m.filter, cmd = m.filter.Clear(m.tree.ExpandedNodes)
		return m, cmd
	case "enter", "tab":
		m.filter.Blur()
		m.focus = focusTree
		return m, nil
	case "up", "ctrl+p":
		m.tree.MoveUp()
		return m, m.selectionChanged()
	case "down", "ctrl+n":
		m.tree.MoveDown()
		return m, m.selectionChanged()
	}
	m.filter, cmd = m.filter.Update(msg, m.tree.ExpandedNodes)
	return m, cmd
}

func (m Model) openRecent() (tea.Model, tea.Cmd) {
	if m.history == nil {
		m.setStatus("History is disabled", true)
		return m, nil
	}
	m.focus = focusRecent
	m.recent.SetSize(m.width, m.height)
	return m, m.recent.Open(m.edits.Tree())
}

func (m Model) handleRecentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.recent, cmd = m.recent.Update(msg)
	if !m.recent.Closed() {
		return m, cmd
	}
	m.focus = focusTree
	id, ok := m.recent.Chosen()
	if !ok {
		return m, cmd
	}
	if m.filter.Active() {
		// The page may be filtered out; jump once the filter is gone.
		m.pendingJump = id
		var clear tea.Cmd
		m.filter, clear = m.filter.Clear(m.tree.ExpandedNodes)
		return m, tea.Batch(cmd, clear)
	}
	m.jumpTo(id)
	return m, tea.Batch(cmd, m.selectionChanged())
}

func (m *Model) jumpTo(id string) {
	if !m.tree.Reveal(id) {
		m.setStatus(fmt.Sprintf("%s is no longer available", id), true)
	}
}

func (m Model) openEdit() (tea.Model, tea.Cmd) {
	node := m.tree.SelectedNode()
	if node == nil {
		return m, nil
	}
	form, err := NewEditForm(m.edits, node.Node, m.previewWidth())
	if err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}
	m.edit = form
	m.focus = focusEdit
	return m, form.Init()
}

func (m Model) updateEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.closeEdit()
		m.setStatus("Edit cancelled", false)
		return m, nil
	}
	cmd := m.edit.Update(msg)
	switch {
	case m.edit.Done():
		pageID := m.edit.PageID()
		changed, errs := m.edit.Apply(m.edits)
		m.closeEdit()
		if changed > 0 {
			m.dirty = true
		}
		if len(errs) > 0 {
			m.setStatus(errs[0].Error(), true)
		} else {
			m.setStatus(fmt.Sprintf("Updated %d values on %s", changed, pageID), false)
		}
		m.showSelected()
		if changed > 0 {
			return m, m.recordCmd(pageID, true)
		}
		return m, nil
	case m.edit.Aborted():
		m.closeEdit()
		return m, nil
	}
	return m, cmd
}

func (m *Model) closeEdit() {
	m.edit = nil
	m.focus = focusTree
}

func (m *Model) copyBreadcrumb() {
	id := m.tree.SelectedID()
	if id == "" {
		return
	}
	crumb := strings.Join(m.edits.Tree().PathNames(id), history.BreadcrumbSeparator)
	if err := clipboard.WriteAll(crumb); err != nil {
		m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
		return
	}
	m.setStatus("Copied "+crumb, false)
}

// selectionChanged refreshes the preview and records a visit when the
// selected page changed.
func (m *Model) selectionChanged() tea.Cmd {
	id := m.tree.SelectedID()
	if id == m.lastPage {
		return nil
	}
	m.showSelected()
	return m.recordCmd(id, false)
}

func (m *Model) showSelected() {
	node := m.tree.SelectedNode()
	m.lastPage = ""
	if node == nil {
		m.preview.Show(m.edits.Tree(), m.edits, nil)
		return
	}
	m.lastPage = node.ID()
	m.preview.Show(m.edits.Tree(), m.edits, node.Node)
}

func (m Model) recordCmd(pageID string, changed bool) tea.Cmd {
	store := m.history
	if store == nil || pageID == "" {
		return nil
	}
	if n, ok := m.edits.Tree().FindByID(pageID); !ok || n.Page == nil {
		return nil
	}
	return func() tea.Msg {
		err := store.Record(context.Background(), history.Place{PageID: pageID, Changed: changed})
		if err != nil {
			return historyRecordedMsg{err: err}
		}
		return nil
	}
}

func (m Model) saveCmd() tea.Cmd {
	path := m.overridesPath
	if path == "" {
		return func() tea.Msg { return savedMsg{err: fmt.Errorf("no overrides file configured")} }
	}
	ov := m.edits.Overrides()
	if m.hooks.Empty() {
		return func() tea.Msg {
			return savedMsg{path: path, err: loader.SaveOverrides(path, ov)}
		}
	}
	runner := hooks.NewExecutor(m.hooks, hooks.SaveContext{
		OverridesPath: path,
		ModifiedPages: m.edits.ModifiedPages(),
		Timestamp:     time.Now(),
	})
	return func() tea.Msg {
		ctx := context.Background()
		if err := runner.RunPreSave(ctx); err != nil {
			return savedMsg{path: path, err: err}
		}
		if err := loader.SaveOverrides(path, ov); err != nil {
			return savedMsg{path: path, err: err}
		}
		hookErr := runner.RunPostSave(ctx)
		return savedMsg{path: path, hookErr: hookErr, summary: runner.Summary()}
	}
}

func (m Model) reloadCmd(changed []string) tea.Cmd {
	reload := m.reload
	overridesPath := m.overridesPath
	if overridesPath != "" {
		if abs, err := filepath.Abs(overridesPath); err == nil {
			overridesPath = abs
		}
	}
	return func() tea.Msg {
		var msg reloadedMsg
		definitionsChanged := false
		for _, p := range changed {
			if p == overridesPath {
				ov, err := loader.LoadOverrides(p)
				if err != nil {
					return reloadedMsg{err: err}
				}
				msg.overrides = ov
				continue
			}
			definitionsChanged = true
		}
		if definitionsChanged && reload != nil {
			msg.tree, msg.err = reload(context.Background())
		}
		return msg
	}
}

// applyReload swaps in reloaded definitions and overrides while keeping
// selection, expansion and the filter.
func (m *Model) applyReload(msg reloadedMsg) {
	if msg.err != nil {
		m.setStatus(fmt.Sprintf("Reload error: %v", msg.err), true)
		return
	}
	tree := msg.tree
	if tree == nil {
		tree = m.edits.Tree()
	}

	var dropped []error
	switch {
	case msg.overrides != nil && !m.dirty:
		edits := settings.NewContext(tree)
		dropped = edits.Apply(msg.overrides)
		m.edits = edits
	case msg.tree != nil:
		dropped = m.edits.Rebind(tree)
	}
	m.tree.Rebuild(tree, m.edits)
	m.showSelected()

	switch {
	case len(dropped) > 0:
		m.setStatus(fmt.Sprintf("Reloaded; %d values no longer apply: %v", len(dropped), dropped[0]), true)
	case msg.overrides != nil && m.dirty:
		m.setStatus("Overrides changed on disk; unsaved edits kept", true)
	default:
		m.setStatus(fmt.Sprintf("Reloaded %d pages", len(tree.Pages())), false)
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.statusMsg = s
	m.statusIsError = isErr
}

// ── layout ──

func (m Model) bodyHeight() int {
	return max(m.height-1, 3)
}

func (m Model) treeWidth() int {
	return max(int(float64(m.width)*m.splitRatio), 20)
}

func (m Model) previewWidth() int {
	return max(m.width-m.treeWidth()-4, 20)
}

func (m *Model) layout() {
	inner := m.bodyHeight() - 2
	m.tree.SetSize(m.treeWidth()-2, inner-1)
	m.preview.SetSize(m.previewWidth(), inner)
	m.recent.SetSize(m.width, m.height)
}

// View renders the model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.focus == focusRecent {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.recent.View(), m.renderFooter())
	}

	inner := m.bodyHeight() - 2
	left := lipgloss.JoinVertical(lipgloss.Left, m.tree.View(), "", m.renderFilterLine())
	leftStyle := PanelStyle
	if m.focus == focusTree || m.focus == focusFilter {
		leftStyle = FocusedPanelStyle
	}
	leftPanel := leftStyle.Width(m.treeWidth() - 2).Height(inner).MaxHeight(inner + 2).Render(left)

	var right string
	if m.focus == focusEdit && m.edit != nil {
		right = m.edit.View()
	} else {
		right = m.preview.View()
	}
	rightStyle := PanelStyle
	if m.focus == focusPreview || m.focus == focusEdit {
		rightStyle = FocusedPanelStyle
	}
	rightPanel := rightStyle.Width(m.previewWidth()).Height(inner).MaxHeight(inner + 2).Render(right)

	body := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
	finalStyle := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		MaxHeight(m.height)
	return finalStyle.Render(lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter()))
}

func (m Model) renderFilterLine() string {
	if m.focus == focusFilter {
		return m.filter.View(m.treeWidth() - 2)
	}
	if q := m.filter.Value(); q != "" {
		return m.theme.SecondaryText.Render("/ " + q)
	}
	return m.theme.MutedText.Render("/ to filter")
}

func (m Model) renderFooter() string {
	width := max(m.width, 20)
	right := fmt.Sprintf("%d pages", len(m.edits.Tree().Pages()))
	if n := len(m.edits.ModifiedPages()); n > 0 {
		right += fmt.Sprintf(" · %d modified", n)
		if m.dirty {
			right += " (unsaved)"
		}
	}
	right = m.theme.MutedText.Render(right)

	var left string
	switch {
	case m.statusMsg != "" && m.statusIsError:
		left = m.theme.ErrorText.Render(m.statusMsg)
	case m.statusMsg != "":
		left = m.theme.Base.Render(m.statusMsg)
	default:
		left = RenderKeyHints(m.theme, width-lipgloss.Width(right)-2, m.hints()...)
	}
	left = m.theme.Renderer.NewStyle().MaxWidth(max(width-lipgloss.Width(right)-1, 1)).Render(left)
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) hints() []keyHint {
	switch m.focus {
	case focusFilter:
		return []keyHint{{"enter", "keep"}, {"esc", "clear"}, {"↑/↓", "move"}}
	case focusPreview:
		return []keyHint{{"↑/↓", "scroll"}, {"tab", "tree"}}
	case focusEdit:
		return []keyHint{{"enter", "next"}, {"esc", "cancel"}}
	}
	return []keyHint{
		{"/", "filter"}, {"e", "edit"}, {"ctrl+e", "recent"},
		{"ctrl+s", "save"}, {"y", "copy path"}, {"q", "quit"},
	}
}

// ── accessors ──

// FocusState returns the focused pane by name.
func (m Model) FocusState() string {
	return m.focus.String()
}

// Tree returns the settings tree model.
func (m Model) Tree() SettingsTreeModel {
	return m.tree
}

// Edits returns the edit session.
func (m Model) Edits() *settings.Context {
	return m.edits
}

// Status returns the status bar message and whether it is an error.
func (m Model) Status() (string, bool) {
	return m.statusMsg, m.statusIsError
}

// Preview returns the preview pane.
func (m Model) Preview() PreviewModel {
	return m.preview
}

// Recent returns the recent locations popup.
func (m Model) Recent() RecentModel {
	return m.recent
}

// Dirty reports whether there are unsaved edits.
func (m Model) Dirty() bool {
	return m.dirty
}
