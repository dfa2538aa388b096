// tree.go - Hierarchical settings tree: groups, pages and sub-pages.
package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/settree/pkg/debug"
	"github.com/vanderheijden86/settree/pkg/expansion"
	"github.com/vanderheijden86/settree/pkg/metrics"
	"github.com/vanderheijden86/settree/pkg/settings"
)

// TreeState is the persistent expand/collapse state of the tree, saved to
// tree-state.json in the state directory.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "expanded": {
//	    "editor": false,      // explicitly collapsed
//	    "editor.codestyle": true
//	  }
//	}
//
// Only explicit user changes are stored. Nodes not in the map use the
// default: groups expanded, pages collapsed. A missing or corrupted file
// means defaults.
type TreeState struct {
	Version  int             `json:"version"`
	Expanded map[string]bool `json:"expanded"`
}

// TreeStateVersion is the current schema version for tree persistence
const TreeStateVersion = 1

// DefaultTreeState returns a new TreeState with sensible defaults
func DefaultTreeState() *TreeState {
	return &TreeState{
		Version:  TreeStateVersion,
		Expanded: make(map[string]bool),
	}
}

// treeStateFileName is the filename for persisted tree state
const treeStateFileName = "tree-state.json"

// TreeStatePath returns the path to the tree state file inside stateDir.
func TreeStatePath(stateDir string) string {
	return filepath.Join(stateDir, treeStateFileName)
}

// SettingsTreeNode is a node of the settings tree together with its view
// state.
type SettingsTreeNode struct {
	Node     *settings.Node
	Children []*SettingsTreeNode
	Expanded bool
	Depth    int
	Parent   *SettingsTreeNode
}

// ID returns the settings node ID.
func (n *SettingsTreeNode) ID() string {
	return n.Node.ID
}

// HasChildren reports whether the node can be expanded.
func (n *SettingsTreeNode) HasChildren() bool {
	return len(n.Children) > 0
}

// SettingsTreeModel manages the settings tree view state. It implements
// expansion.TreeView so a filter episode can be rolled back.
type SettingsTreeModel struct {
	source         *settings.Tree
	edits          *settings.Context
	roots          []*SettingsTreeNode
	nodeMap        map[string]*SettingsTreeNode
	flatList       []*SettingsTreeNode
	cursor         int
	viewportOffset int
	width          int
	height         int
	theme          Theme
	filter         settings.FilterResult
	expansion      *expansion.Controller
	stateDir       string
	built          bool
}

var _ expansion.TreeView = (*SettingsTreeModel)(nil)

// NewSettingsTreeModel creates an empty tree. A nil controller gets a fresh
// one.
func NewSettingsTreeModel(theme Theme, ctrl *expansion.Controller) SettingsTreeModel {
	if ctrl == nil {
		ctrl = expansion.NewController()
	}
	return SettingsTreeModel{
		theme:     theme,
		expansion: ctrl,
		nodeMap:   make(map[string]*SettingsTreeNode),
	}
}

// SetStateDir sets the directory tree-state.json lives in. Empty disables
// persistence.
func (t *SettingsTreeModel) SetStateDir(dir string) {
	t.stateDir = dir
}

// Controller returns the expansion controller the tree reports to.
func (t *SettingsTreeModel) Controller() *expansion.Controller {
	return t.expansion
}

// Build builds the tree from scratch. Expansion comes from the defaults and
// the persisted state.
func (t *SettingsTreeModel) Build(tree *settings.Tree, edits *settings.Context) {
	defer metrics.Timer(metrics.TreeRebuild)()

	t.source = tree
	t.edits = edits
	t.buildNodes(nil)
	t.loadState()
	t.cursor = 0
	t.viewportOffset = 0
	t.rebuildFlatList()
	t.built = true
}

// Rebuild swaps in a reloaded tree and keeps what the user sees: expansion
// of nodes that still exist, the selection and the active filter.
func (t *SettingsTreeModel) Rebuild(tree *settings.Tree, edits *settings.Context) {
	defer metrics.Timer(metrics.TreeRebuild)()

	prev := make(map[string]bool, len(t.nodeMap))
	for id, n := range t.nodeMap {
		prev[id] = n.Expanded
	}
	selected := t.SelectedID()

	t.source = tree
	t.edits = edits
	t.buildNodes(prev)
	if t.filter.Active() {
		t.filter = settings.Match(tree, t.filter.Query)
		t.autoExpand()
	}
	t.rebuildFlatList()
	if !t.SelectByID(selected) {
		t.selectNearest(selected)
	}
	t.ensureCursorVisible()
	t.built = true
}

func (t *SettingsTreeModel) buildNodes(prev map[string]bool) {
	t.roots = nil
	t.nodeMap = make(map[string]*SettingsTreeNode)
	if t.source == nil {
		return
	}
	var build func(n *settings.Node, parent *SettingsTreeNode) *SettingsTreeNode
	build = func(n *settings.Node, parent *SettingsTreeNode) *SettingsTreeNode {
		node := &SettingsTreeNode{Node: n, Depth: n.Depth, Parent: parent}
		t.nodeMap[n.ID] = node
		for _, c := range n.Children {
			node.Children = append(node.Children, build(c, node))
		}
		if expanded, ok := prev[n.ID]; ok {
			node.Expanded = expanded && node.HasChildren()
		} else {
			node.Expanded = n.Depth < 1 && node.HasChildren()
		}
		return node
	}
	for _, r := range t.source.Roots {
		t.roots = append(t.roots, build(r, nil))
	}
}

// saveState persists the current expand/collapse state. Auto-expansion
// during a filter is never persisted. Errors are logged and otherwise
// ignored.
func (t *SettingsTreeModel) saveState() {
	if t.stateDir == "" || t.filter.Active() || t.expansion.Restoring() {
		return
	}
	state := DefaultTreeState()
	for id, node := range t.nodeMap {
		if !node.HasChildren() {
			continue
		}
		defaultExpanded := node.Depth < 1
		if node.Expanded != defaultExpanded {
			state.Expanded[id] = node.Expanded
		}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		debug.Warn("tree: marshal state: %v", err)
		return
	}
	if err := os.MkdirAll(t.stateDir, 0o755); err != nil {
		debug.Warn("tree: create state dir %s: %v", t.stateDir, err)
		return
	}
	path := TreeStatePath(t.stateDir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		debug.Warn("tree: write state %s: %v", path, err)
	}
}

// loadState restores expand/collapse state from disk. A missing or
// corrupted file leaves the defaults in place.
func (t *SettingsTreeModel) loadState() {
	if t.stateDir == "" {
		return
	}
	data, err := os.ReadFile(TreeStatePath(t.stateDir))
	if err != nil {
		return
	}
	var state TreeState
	if err := json.Unmarshal(data, &state); err != nil {
		debug.Warn("tree: invalid state file, using defaults: %v", err)
		return
	}
	t.applyState(&state)
}

// applyState sets expand state from a loaded state. Unknown IDs are stale
// and ignored.
func (t *SettingsTreeModel) applyState(state *TreeState) {
	if state == nil {
		return
	}
	for id, expanded := range state.Expanded {
		if node, ok := t.nodeMap[id]; ok && node.HasChildren() {
			node.Expanded = expanded
		}
	}
}

// SetSize sets the area available to the tree, header included.
func (t *SettingsTreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureCursorVisible()
}

// IsBuilt reports whether Build has run.
func (t *SettingsTreeModel) IsBuilt() bool {
	return t.built
}

// NodeCount returns the number of visible rows.
func (t *SettingsTreeModel) NodeCount() int {
	return len(t.flatList)
}

// VisibleIDs returns the IDs of the visible rows in display order.
func (t *SettingsTreeModel) VisibleIDs() []string {
	ids := make([]string, len(t.flatList))
	for i, n := range t.flatList {
		ids[i] = n.ID()
	}
	return ids
}

// IsExpanded reports whether the node with id is expanded.
func (t *SettingsTreeModel) IsExpanded(id string) bool {
	n, ok := t.nodeMap[id]
	return ok && n.Expanded
}

// Filter returns the filter currently applied.
func (t *SettingsTreeModel) Filter() settings.FilterResult {
	return t.filter
}

// ── expansion.TreeView ──

// FilterActive reports whether a filter query is applied to the rows.
func (t *SettingsTreeModel) FilterActive() bool {
	return t.filter.Active()
}

// ExpandedNodes returns the visible expanded nodes in display order.
func (t *SettingsTreeModel) ExpandedNodes() expansion.Snapshot {
	snap := expansion.NewSnapshot()
	for _, n := range t.flatList {
		if n.Expanded && n.HasChildren() {
			snap.Add(expansion.NodeID(n.ID()))
		}
	}
	return snap
}

// SelectionPaths returns the path of the selected node, if any.
func (t *SettingsTreeModel) SelectionPaths() []expansion.Path {
	node := t.SelectedNode()
	if node == nil {
		return nil
	}
	return []expansion.Path{pathOf(node)}
}

// Rows returns the visible rows.
func (t *SettingsTreeModel) Rows() []expansion.Row {
	rows := make([]expansion.Row, 0, len(t.flatList))
	for _, n := range t.flatList {
		rows = append(rows, expansion.Row{
			Node:     expansion.NodeID(n.ID()),
			Path:     pathOf(n),
			Expanded: n.Expanded && n.HasChildren(),
		})
	}
	return rows
}

// Collapse collapses one node. It goes through the same path as a user
// collapse, so the controller sees the toggle and ignores it while it
// restores.
func (t *SettingsTreeModel) Collapse(id expansion.NodeID) error {
	node, ok := t.nodeMap[string(id)]
	if !ok {
		return fmt.Errorf("collapse: %w: %s", settings.ErrUnknownPage, id)
	}
	t.setExpanded(node, false)
	return nil
}

func pathOf(node *SettingsTreeNode) expansion.Path {
	p := make(expansion.Path, node.Depth+1)
	for cur := node; cur != nil; cur = cur.Parent {
		if cur.Depth < len(p) {
			p[cur.Depth] = expansion.NodeID(cur.ID())
		}
	}
	return p
}

// ── filtering ──

// ApplyFilter re-filters the rows for query. While a query is held every
// node with a visible child is expanded so all matches show. An empty query
// returns to the unfiltered tree with whatever expansion the nodes have.
func (t *SettingsTreeModel) ApplyFilter(query string) settings.FilterResult {
	defer metrics.Timer(metrics.Refilter)()

	selected := t.SelectedID()
	t.filter = settings.Match(t.source, query)
	if t.filter.Active() {
		t.autoExpand()
	}
	t.rebuildFlatList()

	if t.filter.Active() && !t.filter.Matches[selected] && len(t.filter.Ranked) > 0 {
		selected = t.filter.Ranked[0]
	}
	if !t.SelectByID(selected) {
		t.selectNearest(selected)
	}
	t.ensureCursorVisible()
	debug.Log("tree: filter %q matched %d nodes (fuzzy=%v)", t.filter.Query, len(t.filter.Ranked), t.filter.Fuzzy)
	return t.filter
}

// autoExpand expands every parent of a visible node. These expansions are
// not user toggles and are not reported.
func (t *SettingsTreeModel) autoExpand() {
	for _, node := range t.nodeMap {
		if t.isAutoExpandNode(node) {
			node.Expanded = true
		}
	}
}

// isAutoExpandNode reports whether the filter forces node open.
func (t *SettingsTreeModel) isAutoExpandNode(node *SettingsTreeNode) bool {
	if !t.filter.Active() {
		return false
	}
	for _, c := range node.Children {
		if t.filter.Visible(c.ID()) {
			return true
		}
	}
	return false
}

// IsFilterDimmed reports whether node is shown only as context for a match.
func (t *SettingsTreeModel) IsFilterDimmed(node *SettingsTreeNode) bool {
	return node != nil && t.filter.Dimmed(node.ID())
}

// ── expand / collapse ──

// setExpanded changes one node and tells the controller. It is the single
// place expansion changes outside of filtering.
func (t *SettingsTreeModel) setExpanded(node *SettingsTreeNode, expanded bool) bool {
	if node == nil || !node.HasChildren() || node.Expanded == expanded {
		return false
	}
	node.Expanded = expanded
	t.expansion.OnUserExpansionChange()
	t.rebuildFlatList()
	t.saveState()
	return true
}

// ToggleExpand expands or collapses the currently selected node.
func (t *SettingsTreeModel) ToggleExpand() {
	node := t.SelectedNode()
	if node != nil {
		t.setExpanded(node, !node.Expanded)
		t.ensureCursorVisible()
	}
}

// ExpandAll expands all nodes in the tree.
func (t *SettingsTreeModel) ExpandAll() {
	t.setAll(true)
}

// CollapseAll collapses all nodes; the cursor moves to the nearest visible
// ancestor.
func (t *SettingsTreeModel) CollapseAll() {
	t.setAll(false)
}

func (t *SettingsTreeModel) setAll(expanded bool) {
	selected := t.SelectedID()
	changed := false
	for _, node := range t.nodeMap {
		if node.HasChildren() && node.Expanded != expanded {
			node.Expanded = expanded
			changed = true
		}
	}
	if !changed {
		return
	}
	t.expansion.OnUserExpansionChange()
	t.rebuildFlatList()
	if !t.SelectByID(selected) {
		t.selectNearest(selected)
	}
	t.saveState()
	t.ensureCursorVisible()
}

// ExpandOrMoveToChild handles the → / l key: a collapsed node expands, an
// expanded one moves the cursor to its first visible child.
func (t *SettingsTreeModel) ExpandOrMoveToChild() {
	node := t.SelectedNode()
	if node == nil || !node.HasChildren() {
		return
	}
	if !node.Expanded {
		t.setExpanded(node, true)
		t.ensureCursorVisible()
		return
	}
	if t.cursor+1 < len(t.flatList) && t.flatList[t.cursor+1].Parent == node {
		t.cursor++
		t.ensureCursorVisible()
	}
}

// CollapseOrJumpToParent handles the ← / h key: an expanded node
// collapses, anything else jumps to the parent.
func (t *SettingsTreeModel) CollapseOrJumpToParent() {
	node := t.SelectedNode()
	if node == nil {
		return
	}
	if node.HasChildren() && node.Expanded {
		t.setExpanded(node, false)
		t.ensureCursorVisible()
		return
	}
	t.JumpToParent()
}

// JumpToParent moves the cursor to the parent of the selected node.
func (t *SettingsTreeModel) JumpToParent() {
	node := t.SelectedNode()
	if node == nil || node.Parent == nil {
		return
	}
	t.SelectByID(node.Parent.ID())
	t.ensureCursorVisible()
}

// Reveal expands the ancestors of id and selects it. Used when jumping to a
// page from outside the tree, so it counts as a user expansion.
func (t *SettingsTreeModel) Reveal(id string) bool {
	node, ok := t.nodeMap[id]
	if !ok {
		return false
	}
	changed := false
	for p := node.Parent; p != nil; p = p.Parent {
		if !p.Expanded {
			p.Expanded = true
			changed = true
		}
	}
	if changed {
		t.expansion.OnUserExpansionChange()
		t.rebuildFlatList()
		t.saveState()
	}
	found := t.SelectByID(id)
	t.ensureCursorVisible()
	return found
}

// ── navigation ──

// MoveDown moves the cursor down in the flat list.
func (t *SettingsTreeModel) MoveDown() {
	if t.cursor < len(t.flatList)-1 {
		t.cursor++
		t.ensureCursorVisible()
	}
}

// MoveUp moves the cursor up in the flat list.
func (t *SettingsTreeModel) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
		t.ensureCursorVisible()
	}
}

// JumpToTop moves the cursor to the first row.
func (t *SettingsTreeModel) JumpToTop() {
	t.cursor = 0
	t.ensureCursorVisible()
}

// JumpToBottom moves the cursor to the last row.
func (t *SettingsTreeModel) JumpToBottom() {
	if len(t.flatList) > 0 {
		t.cursor = len(t.flatList) - 1
	}
	t.ensureCursorVisible()
}

// PageDown moves cursor down by half a viewport.
func (t *SettingsTreeModel) PageDown() {
	t.moveBy(t.halfPage())
}

// PageUp moves cursor up by half a viewport.
func (t *SettingsTreeModel) PageUp() {
	t.moveBy(-t.halfPage())
}

func (t *SettingsTreeModel) halfPage() int {
	n := t.effectiveVisibleCount() / 2
	if n < 1 {
		n = 1
	}
	return n
}

func (t *SettingsTreeModel) moveBy(delta int) {
	if len(t.flatList) == 0 {
		return
	}
	t.cursor = clampInt(t.cursor+delta, 0, len(t.flatList)-1)
	t.ensureCursorVisible()
}

// SelectedNode returns the currently selected tree node, or nil if none.
func (t *SettingsTreeModel) SelectedNode() *SettingsTreeNode {
	if t.cursor >= 0 && t.cursor < len(t.flatList) {
		return t.flatList[t.cursor]
	}
	return nil
}

// SelectedID returns the ID of the selected node, or "".
func (t *SettingsTreeModel) SelectedID() string {
	if node := t.SelectedNode(); node != nil {
		return node.ID()
	}
	return ""
}

// SelectedPage returns the selected page, or nil when a group or nothing is
// selected.
func (t *SettingsTreeModel) SelectedPage() *settings.Page {
	if node := t.SelectedNode(); node != nil {
		return node.Node.Page
	}
	return nil
}

// SelectByID moves the cursor to the visible node with id.
func (t *SettingsTreeModel) SelectByID(id string) bool {
	if id == "" {
		return false
	}
	for i, node := range t.flatList {
		if node.ID() == id {
			t.cursor = i
			return true
		}
	}
	return false
}

// selectNearest selects the closest visible ancestor of id, or clamps the
// cursor when id is gone entirely.
func (t *SettingsTreeModel) selectNearest(id string) {
	if node, ok := t.nodeMap[id]; ok {
		for p := node.Parent; p != nil; p = p.Parent {
			if t.SelectByID(p.ID()) {
				return
			}
		}
	}
	t.cursor = clampInt(t.cursor, 0, max(len(t.flatList)-1, 0))
}

// rebuildFlatList rebuilds the list of visible rows. The selection follows
// its node when it stays visible.
func (t *SettingsTreeModel) rebuildFlatList() {
	var selected string
	if t.cursor >= 0 && t.cursor < len(t.flatList) {
		selected = t.flatList[t.cursor].ID()
	}
	t.flatList = t.flatList[:0]
	for _, root := range t.roots {
		t.appendVisible(root)
	}
	if !t.SelectByID(selected) {
		t.cursor = clampInt(t.cursor, 0, max(len(t.flatList)-1, 0))
	}
}

// appendVisible adds a node and its visible descendants to flatList.
func (t *SettingsTreeModel) appendVisible(node *SettingsTreeNode) {
	if !t.filter.Visible(node.ID()) {
		return
	}
	t.flatList = append(t.flatList, node)
	if node.Expanded {
		for _, child := range node.Children {
			t.appendVisible(child)
		}
	}
}

// ── rendering ──

// effectiveVisibleCount returns the number of node lines that can be
// displayed, accounting for the header row and position indicator.
func (t *SettingsTreeModel) effectiveVisibleCount() int {
	visibleCount := t.height - 1
	if visibleCount <= 0 {
		visibleCount = 19
	}
	if len(t.flatList) > visibleCount {
		visibleCount--
	}
	if visibleCount < 1 {
		visibleCount = 1
	}
	return visibleCount
}

// ensureCursorVisible adjusts viewportOffset so the cursor is visible.
func (t *SettingsTreeModel) ensureCursorVisible() {
	if len(t.flatList) == 0 {
		t.viewportOffset = 0
		return
	}
	visibleCount := t.effectiveVisibleCount()
	if t.cursor < t.viewportOffset {
		t.viewportOffset = t.cursor
	}
	if t.cursor >= t.viewportOffset+visibleCount {
		t.viewportOffset = t.cursor - visibleCount + 1
	}
	maxOffset := len(t.flatList) - visibleCount
	if maxOffset < 0 {
		maxOffset = 0
	}
	t.viewportOffset = clampInt(t.viewportOffset, 0, maxOffset)
}

// visibleRange returns the [start, end) range of rows to render.
func (t *SettingsTreeModel) visibleRange() (start, end int) {
	if len(t.flatList) == 0 {
		return 0, 0
	}
	visibleCount := t.effectiveVisibleCount()
	start = max(t.viewportOffset, 0)
	end = start + visibleCount
	if end > len(t.flatList) {
		end = len(t.flatList)
		start = max(end-visibleCount, 0)
	}
	return start, end
}

// View renders the header row followed by the visible window of rows.
func (t *SettingsTreeModel) View() string {
	defer metrics.Timer(metrics.UIRender)()

	if !t.built || len(t.flatList) == 0 {
		return t.renderEmptyState()
	}

	var sb strings.Builder
	start, end := t.visibleRange()
	sb.WriteString(t.renderHeader(start))
	sb.WriteString("\n")

	for i := start; i < end; i++ {
		node := t.flatList[i]
		isSelected := i == t.cursor
		line := t.renderNode(node)
		switch {
		case isSelected:
			line = t.theme.Selected.Render(line)
		case t.IsFilterDimmed(node):
			line = t.theme.DimmedText.Render(line)
		}
		sb.WriteString(line)
		if i < end-1 {
			sb.WriteString("\n")
		}
	}

	if len(t.flatList) > t.effectiveVisibleCount() {
		sb.WriteString("\n")
		sb.WriteString(t.theme.MutedText.Render(fmt.Sprintf(" %d-%d of %d", start+1, end, len(t.flatList))))
	}
	return sb.String()
}

// renderHeader renders the title row. Once the rows of a group scroll past
// the group's own row, the header shows that group instead, so the user
// keeps their bearings.
func (t *SettingsTreeModel) renderHeader(start int) string {
	width := t.rowWidth()
	title := " Settings"
	if t.filter.Active() {
		title = fmt.Sprintf(" Settings · %d matching %q", len(t.filter.Ranked), t.filter.Query)
	}
	if group := t.stickyGroup(start); group != nil {
		title = " ▾ " + group.Node.Name
	}
	return t.theme.Header.Width(width).MaxWidth(width).Render(truncate(title, width))
}

// stickyGroup returns the group whose rows are at the top of the window
// while its own row is scrolled away.
func (t *SettingsTreeModel) stickyGroup(start int) *SettingsTreeNode {
	if start <= 0 || start >= len(t.flatList) {
		return nil
	}
	root := t.flatList[start]
	for root.Parent != nil {
		root = root.Parent
	}
	if root == t.flatList[start] {
		return nil
	}
	return root
}

func (t *SettingsTreeModel) rowWidth() int {
	width := t.width
	if width <= 0 {
		width = 80
	}
	return width - 1
}

// renderNode renders one row: [tree-prefix] [indicator] [name] [project].
func (t *SettingsTreeModel) renderNode(node *SettingsTreeNode) string {
	width := t.rowWidth()

	var sb strings.Builder
	prefix := t.buildTreePrefix(node)
	sb.WriteString(prefix)
	sb.WriteString(t.theme.MutedText.Render(t.getExpandIndicator(node)))
	sb.WriteString(" ")

	tag := t.projectTag(node)
	avail := width - lipgloss.Width(prefix) - 2
	if tag != "" {
		avail -= lipgloss.Width(tag) + 1
	}
	name := truncate(node.Node.Name, max(avail, 1))

	id := node.ID()
	modified, invalid := false, false
	if t.edits != nil {
		modified = t.edits.Modified(id)
		invalid = t.edits.Error(id) != nil
	}
	sb.WriteString(t.theme.PageStyle(node.Node.IsGroup(), modified, invalid).Render(name))
	if tag != "" {
		sb.WriteString(" ")
		sb.WriteString(t.theme.ProjectTag.Render(tag))
	}

	return t.theme.Renderer.NewStyle().MaxWidth(width).Render(sb.String())
}

// projectTag marks the topmost page of a project scope.
func (t *SettingsTreeModel) projectTag(node *SettingsTreeNode) string {
	page := node.Node.Page
	if page == nil || page.Scope != settings.ScopeProject || page.Project == "" {
		return ""
	}
	if parent := node.Parent; parent != nil && parent.Node.Page != nil &&
		parent.Node.Page.Scope == settings.ScopeProject && parent.Node.Page.Project == page.Project {
		return ""
	}
	return "[" + page.Project + "]"
}

// buildTreePrefix builds the indentation and branch characters for a node.
func (t *SettingsTreeModel) buildTreePrefix(node *SettingsTreeNode) string {
	if node.Depth == 0 {
		return ""
	}

	var parts []string
	for anc := node.Parent; anc != nil && anc.Depth > 0; anc = anc.Parent {
		if t.hasSiblingsBelow(anc) {
			parts = append(parts, "│   ")
		} else {
			parts = append(parts, "    ")
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	if t.hasSiblingsBelow(node) {
		parts = append(parts, "├── ")
	} else {
		parts = append(parts, "└── ")
	}
	return t.theme.MutedText.Render(strings.Join(parts, ""))
}

// hasSiblingsBelow reports whether a visible sibling follows node.
func (t *SettingsTreeModel) hasSiblingsBelow(node *SettingsTreeNode) bool {
	siblings := t.roots
	if node.Parent != nil {
		siblings = node.Parent.Children
	}
	seen := false
	for _, s := range siblings {
		if s == node {
			seen = true
			continue
		}
		if seen && t.filter.Visible(s.ID()) {
			return true
		}
	}
	return false
}

// getExpandIndicator returns the expand/collapse indicator for a node.
func (t *SettingsTreeModel) getExpandIndicator(node *SettingsTreeNode) string {
	if !node.HasChildren() {
		return "•"
	}
	if node.Expanded {
		return "▾"
	}
	return "▸"
}

// renderEmptyState renders the view when there is nothing to show.
func (t *SettingsTreeModel) renderEmptyState() string {
	var sb strings.Builder
	sb.WriteString(t.theme.PrimaryBold.Render("Settings"))
	sb.WriteString("\n\n")
	if t.filter.Active() {
		sb.WriteString(t.theme.MutedText.Render(fmt.Sprintf("Nothing matches %q.", t.filter.Query)))
		sb.WriteString("\n")
		sb.WriteString(t.theme.MutedText.Render("Press esc to clear the filter."))
		return sb.String()
	}
	sb.WriteString(t.theme.MutedText.Render("No settings pages loaded."))
	sb.WriteString("\n")
	sb.WriteString(t.theme.MutedText.Render("Pass definition files or set SETTREE_DEFINITIONS."))
	return sb.String()
}
