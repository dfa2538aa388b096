// Package expansion keeps a tree's expand/collapse state stable across a
// filter episode.
//
// When the user starts typing a filter, the set of expanded nodes is captured
// once. The filter auto-expands whatever it needs to show matches; when the
// filter is cleared again the tree is collapsed back to the captured state,
// except for nodes on the way to the current selection, which stay open so
// the selection remains visible.
//
// The Controller is plain state: it never reaches into a widget. Callers
// feed it events and hand it the rows the view currently shows; it answers
// with collapse calls on a Collapser.
package expansion

import (
	"fmt"
	"sort"

	"github.com/vanderheijden86/settree/pkg/debug"
	"github.com/vanderheijden86/settree/pkg/metrics"
)

// Collapser collapses a single node. Collapsing an already collapsed node
// must be a no-op.
type Collapser interface {
	Collapse(id NodeID) error
}

// CollapseFunc adapts a function to the Collapser interface.
type CollapseFunc func(id NodeID) error

// Collapse calls f(id).
func (f CollapseFunc) Collapse(id NodeID) error { return f(id) }

// TreeView is the view-side collaborator the controller restores into.
type TreeView interface {
	Collapser
	// FilterActive reports whether a filter text is currently applied.
	FilterActive() bool
	// ExpandedNodes returns the currently visible, expanded nodes.
	ExpandedNodes() Snapshot
	// SelectionPaths returns the root-to-node paths of the selected nodes.
	SelectionPaths() []Path
	// Rows returns the visible rows in display order.
	Rows() []Row
}

// RestorePlan is handed out when a filter episode ends. It carries the
// snapshot captured when the episode began.
type RestorePlan struct {
	ToExpand Snapshot
	Episode  uint64
	armed    bool
}

// Armed reports whether the plan asks for a restore at all.
func (p RestorePlan) Armed() bool { return p.armed }

// Controller tracks the expansion snapshot for one tree.
type Controller struct {
	pending      *Snapshot
	wasFiltering bool
	restoring    bool
	episode      uint64
}

// NewController returns a controller with no snapshot and no filter held.
func NewController() *Controller {
	return &Controller{}
}

// OnFilterTextChanged must be called whenever the filter text changes,
// including when it becomes empty. expanded is only called when a snapshot
// is actually captured.
//
// The returned plan is armed when the change ended a filter episode that had
// a snapshot; the caller should run Restore with it once the view has
// re-laid out its rows. The snapshot stays pending until that restore
// completes, so a filter typed again before then reuses it instead of
// capturing the still-filtered view.
func (c *Controller) OnFilterTextChanged(filtering bool, expanded func() Snapshot) RestorePlan {
	var plan RestorePlan

	if filtering && !c.wasFiltering {
		c.episode++
	}

	switch {
	case filtering && !c.wasFiltering && c.pending == nil:
		snap := expanded().Clone()
		c.pending = &snap
		debug.Log("expansion: captured %d expanded nodes (episode %d)", snap.Len(), c.episode)
	case !filtering && c.wasFiltering && c.pending != nil:
		plan = RestorePlan{ToExpand: c.pending.Clone(), Episode: c.episode, armed: true}
		debug.Log("expansion: filter cleared, restore armed for episode %d", c.episode)
	}

	c.wasFiltering = filtering
	return plan
}

// OnUserExpansionChange must be called for every expand or collapse that the
// user caused directly. Outside a filter episode such a toggle means the
// captured snapshot no longer reflects what the user wants, so it is
// dropped. Toggles issued by Restore itself are ignored.
func (c *Controller) OnUserExpansionChange() {
	if c.restoring || c.wasFiltering {
		return
	}
	if c.pending != nil {
		debug.Log("expansion: snapshot invalidated by manual toggle")
	}
	c.pending = nil
}

// Restore collapses the view back to plan.ToExpand and clears the pending
// snapshot. Plans that are unarmed or belong to an older episode are
// ignored and leave the snapshot alone. It returns the nodes it collapsed.
func (c *Controller) Restore(plan RestorePlan, selection []Path, rows []Row, collapser Collapser) []NodeID {
	if !plan.Armed() {
		return nil
	}
	if plan.Episode != c.episode || c.wasFiltering {
		debug.Log("expansion: dropping stale restore for episode %d (current %d)", plan.Episode, c.episode)
		return nil
	}
	collapsed := c.RestoreSnapshot(plan.ToExpand, selection, rows, collapser)
	c.pending = nil
	return collapsed
}

// RestoreView runs Restore against a TreeView's current rows and selection.
func (c *Controller) RestoreView(plan RestorePlan, view TreeView) []NodeID {
	if !plan.Armed() {
		return nil
	}
	return c.Restore(plan, view.SelectionPaths(), view.Rows(), view)
}

// RestoreSnapshot collapses every expanded row that is neither in toExpand
// nor on the path to a selected node. Nodes already expanded are never
// re-expanded. Collapse failures are logged and skipped.
func (c *Controller) RestoreSnapshot(toExpand Snapshot, selection []Path, rows []Row, collapser Collapser) []NodeID {
	defer metrics.Timer(metrics.Restore)()
	defer c.enterRestore()()

	var marked []Row
	for _, row := range rows {
		if !row.Expanded || toExpand.Contains(row.Node) {
			continue
		}
		if leadsToSelection(row.Path, selection) {
			continue
		}
		marked = append(marked, row)
	}

	// Deepest first, so a parent collapse never hides a row we still have
	// to visit.
	sort.SliceStable(marked, func(i, j int) bool {
		return len(marked[i].Path) > len(marked[j].Path)
	})

	collapsed := make([]NodeID, 0, len(marked))
	for _, row := range marked {
		if err := safeCollapse(collapser, row.Node); err != nil {
			debug.Warn("expansion: collapse %s failed: %v", row.Node, err)
			continue
		}
		collapsed = append(collapsed, row.Node)
	}
	debug.Log("expansion: restore collapsed %d of %d rows", len(collapsed), len(rows))
	return collapsed
}

// Pending returns the captured snapshot, if any.
func (c *Controller) Pending() (Snapshot, bool) {
	if c.pending == nil {
		return Snapshot{}, false
	}
	return c.pending.Clone(), true
}

// Filtering reports the last filter state the controller saw.
func (c *Controller) Filtering() bool { return c.wasFiltering }

// Restoring reports whether a restore is running right now.
func (c *Controller) Restoring() bool { return c.restoring }

// Episode returns the number of filter episodes started so far.
func (c *Controller) Episode() uint64 { return c.episode }

// enterRestore sets the restoring guard and returns its release.
func (c *Controller) enterRestore() func() {
	c.restoring = true
	return func() { c.restoring = false }
}

func safeCollapse(collapser Collapser, id NodeID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return collapser.Collapse(id)
}

func leadsToSelection(p Path, selection []Path) bool {
	for _, sel := range selection {
		if p.IsPrefixOf(sel) {
			return true
		}
	}
	return false
}
