package expansion

import (
	"errors"
	"reflect"
	"sort"
	"testing"
)

// fakeTree is a minimal tree view: a parent map, an expanded set and a
// selection. Collapses are reported back to the controller the same way a
// real view reports user toggles, so the restoring guard is exercised.
type fakeTree struct {
	roots    []NodeID
	children map[NodeID][]NodeID
	parent   map[NodeID]NodeID
	expanded map[NodeID]bool
	selected []NodeID
	ctrl     *Controller

	failOn  map[NodeID]error
	panicOn NodeID
	calls   []NodeID
}

func newFakeTree(edges map[NodeID][]NodeID, roots ...NodeID) *fakeTree {
	f := &fakeTree{
		roots:    roots,
		children: edges,
		parent:   make(map[NodeID]NodeID),
		expanded: make(map[NodeID]bool),
	}
	for p, kids := range edges {
		for _, k := range kids {
			f.parent[k] = p
		}
	}
	return f
}

func (f *fakeTree) expand(ids ...NodeID) {
	for _, id := range ids {
		f.expanded[id] = true
	}
}

func (f *fakeTree) expandAll() {
	for id, kids := range f.children {
		if len(kids) > 0 {
			f.expanded[id] = true
		}
	}
}

func (f *fakeTree) path(id NodeID) Path {
	var p Path
	for cur := id; cur != ""; cur = f.parent[cur] {
		p = append(Path{cur}, p...)
	}
	return p
}

func (f *fakeTree) Rows() []Row {
	var rows []Row
	var walk func(id NodeID)
	walk = func(id NodeID) {
		rows = append(rows, Row{Node: id, Path: f.path(id), Expanded: f.expanded[id]})
		if !f.expanded[id] {
			return
		}
		for _, k := range f.children[id] {
			walk(k)
		}
	}
	for _, r := range f.roots {
		walk(r)
	}
	return rows
}

func (f *fakeTree) ExpandedNodes() Snapshot {
	var s Snapshot
	for _, row := range f.Rows() {
		if row.Expanded {
			s.Add(row.Node)
		}
	}
	return s
}

func (f *fakeTree) SelectionPaths() []Path {
	out := make([]Path, 0, len(f.selected))
	for _, id := range f.selected {
		out = append(out, f.path(id))
	}
	return out
}

func (f *fakeTree) FilterActive() bool { return f.ctrl != nil && f.ctrl.Filtering() }

func (f *fakeTree) Collapse(id NodeID) error {
	f.calls = append(f.calls, id)
	if id == f.panicOn {
		panic("boom")
	}
	if err := f.failOn[id]; err != nil {
		return err
	}
	f.expanded[id] = false
	if f.ctrl != nil {
		f.ctrl.OnUserExpansionChange()
	}
	return nil
}

// userToggle flips a node the way a keypress would.
func (f *fakeTree) userToggle(id NodeID) {
	f.expanded[id] = !f.expanded[id]
	if f.ctrl != nil {
		f.ctrl.OnUserExpansionChange()
	}
}

func sortedIDs(ids []NodeID) []NodeID {
	out := append([]NodeID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func scenarioTree() *fakeTree {
	return newFakeTree(map[NodeID][]NodeID{
		"A": {"D", "F"},
		"D": {"D1"},
		"B": {"B1"},
		"C": {"C1"},
		"X": {"E"},
		"E": {"G"},
	}, "A", "B", "C", "X")
}

func TestSnapshotOrderAndDedup(t *testing.T) {
	s := NewSnapshot("b", "a", "b", "c")
	if s.Len() != 3 {
		t.Fatalf("expected 3 ids, got %d", s.Len())
	}
	if got := s.IDs(); !reflect.DeepEqual(got, []NodeID{"b", "a", "c"}) {
		t.Errorf("expected insertion order [b a c], got %v", got)
	}
	if !s.Equal(NewSnapshot("c", "b", "a")) {
		t.Error("expected order-insensitive equality")
	}
	var zero Snapshot
	if zero.Contains("a") || zero.Len() != 0 {
		t.Error("zero snapshot should be empty")
	}
}

func TestPathIsPrefixOf(t *testing.T) {
	tests := []struct {
		p, other Path
		want     bool
	}{
		{Path{"A"}, Path{"A", "D"}, true},
		{Path{"A", "D"}, Path{"A", "D"}, true},
		{Path{"A", "D"}, Path{"A"}, false},
		{Path{"B"}, Path{"A", "D"}, false},
		{Path{}, Path{"A"}, false},
	}
	for _, tt := range tests {
		if got := tt.p.IsPrefixOf(tt.other); got != tt.want {
			t.Errorf("%v.IsPrefixOf(%v) = %v, want %v", tt.p, tt.other, got, tt.want)
		}
	}
}

func TestCaptureOnceWhileFiltering(t *testing.T) {
	c := NewController()
	calls := 0
	expanded := func() Snapshot {
		calls++
		return NewSnapshot("A", "B")
	}

	for i := 0; i < 5; i++ {
		plan := c.OnFilterTextChanged(true, expanded)
		if plan.Armed() {
			t.Fatalf("keystroke %d armed a restore while filtering", i)
		}
	}
	if calls != 1 {
		t.Errorf("expected the accessor to run once, ran %d times", calls)
	}
	snap, ok := c.Pending()
	if !ok || !snap.Equal(NewSnapshot("A", "B")) {
		t.Errorf("expected pending {A,B}, got %v (ok=%v)", snap.IDs(), ok)
	}
}

func TestAccessorNotCalledWhenNotNeeded(t *testing.T) {
	c := NewController()
	c.OnFilterTextChanged(false, func() Snapshot {
		t.Fatal("accessor must not run without a filter activation")
		return Snapshot{}
	})
}

func TestDeactivationArmsPlanAndRestoreClearsPending(t *testing.T) {
	tree := scenarioTree()
	c := NewController()
	c.OnFilterTextChanged(true, func() Snapshot { return NewSnapshot("A") })
	plan := c.OnFilterTextChanged(false, nil)

	if !plan.Armed() {
		t.Fatal("expected an armed plan after clearing the filter")
	}
	if !plan.ToExpand.Equal(NewSnapshot("A")) {
		t.Errorf("plan should carry the captured snapshot, got %v", plan.ToExpand.IDs())
	}
	if _, ok := c.Pending(); !ok {
		t.Error("snapshot should stay pending until the restore runs")
	}
	if again := c.OnFilterTextChanged(false, nil); again.Armed() {
		t.Error("a second empty-filter change must not arm another restore")
	}

	c.RestoreView(plan, tree)
	if _, ok := c.Pending(); ok {
		t.Error("pending snapshot should be cleared once the restore completed")
	}
}

func TestUserToggleDuringFilterKeepsSnapshot(t *testing.T) {
	tree := scenarioTree()
	c := NewController()
	c.OnFilterTextChanged(true, func() Snapshot { return NewSnapshot("A") })
	c.RestoreView(c.OnFilterTextChanged(false, nil), tree)

	c.OnFilterTextChanged(true, func() Snapshot { return NewSnapshot("B") })
	snap, ok := c.Pending()
	if !ok || !snap.Equal(NewSnapshot("B")) {
		t.Fatalf("expected fresh snapshot {B} for the new episode, got %v", snap.IDs())
	}
	c.OnUserExpansionChange() // filtering: ignored
	if _, ok := c.Pending(); !ok {
		t.Fatal("toggle during filtering must not drop the snapshot")
	}
}

func TestInvalidationThenFreshCapture(t *testing.T) {
	c := NewController()
	// Force a pending snapshot without a filter held, then invalidate.
	c.pending = &Snapshot{}
	c.OnUserExpansionChange()
	if _, ok := c.Pending(); ok {
		t.Fatal("manual toggle outside a filter should clear the snapshot")
	}

	c.OnFilterTextChanged(true, func() Snapshot { return NewSnapshot("Z") })
	snap, ok := c.Pending()
	if !ok || !snap.Equal(NewSnapshot("Z")) {
		t.Errorf("expected fresh capture {Z}, got %v", snap.IDs())
	}
}

func TestScenarioRestoreKeepsSelectionAncestors(t *testing.T) {
	tree := scenarioTree()
	c := NewController()
	tree.ctrl = c

	tree.expand("A", "B", "C")
	tree.selected = []NodeID{"D"}

	c.OnFilterTextChanged(true, tree.ExpandedNodes)
	// The filter auto-expands everything it needs; the user also opens E.
	tree.expandAll()
	tree.userToggle("E")
	tree.userToggle("E")

	snap, _ := c.Pending()
	if !snap.Equal(NewSnapshot("A", "B", "C")) {
		t.Fatalf("snapshot changed during filtering: %v", snap.IDs())
	}

	plan := c.OnFilterTextChanged(false, nil)
	collapsed := c.RestoreView(plan, tree)

	// D is expanded but it is the selected node itself, so it stays.
	if got := sortedIDs(collapsed); !reflect.DeepEqual(got, []NodeID{"E", "X"}) {
		t.Errorf("expected E and X collapsed, got %v", got)
	}
	if got := sortedIDs(tree.ExpandedNodes().IDs()); !reflect.DeepEqual(got, []NodeID{"A", "B", "C", "D"}) {
		t.Errorf("expected {A,B,C,D} expanded after restore, got %v", got)
	}
	if c.Restoring() {
		t.Error("restoring guard left set")
	}
}

func TestRestoreNeverCollapsesSelectionAncestorOutsideSnapshot(t *testing.T) {
	tree := scenarioTree()
	c := NewController()
	tree.ctrl = c
	tree.expand("A")
	tree.selected = []NodeID{"G"}

	c.OnFilterTextChanged(true, tree.ExpandedNodes)
	tree.expandAll()
	plan := c.OnFilterTextChanged(false, nil)
	c.RestoreView(plan, tree)

	for _, id := range []NodeID{"X", "E"} {
		if !tree.expanded[id] {
			t.Errorf("%s leads to the selection and must stay expanded", id)
		}
	}
	for _, id := range []NodeID{"B", "C", "D"} {
		if tree.expanded[id] {
			t.Errorf("%s is neither in the snapshot nor a selection ancestor", id)
		}
	}
}

func TestRestoreEmptySelectionCollapsesEverythingElse(t *testing.T) {
	tree := scenarioTree()
	tree.expandAll()
	c := NewController()
	c.RestoreSnapshot(NewSnapshot("B"), nil, tree.Rows(), tree)

	if got := sortedIDs(tree.ExpandedNodes().IDs()); !reflect.DeepEqual(got, []NodeID{"B"}) {
		t.Errorf("expected only B expanded, got %v", got)
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	tree := scenarioTree()
	tree.expandAll()
	tree.selected = []NodeID{"D1"}
	c := NewController()

	c.RestoreSnapshot(NewSnapshot("C"), tree.SelectionPaths(), tree.Rows(), tree)
	first := tree.ExpandedNodes()
	second := c.RestoreSnapshot(NewSnapshot("C"), tree.SelectionPaths(), tree.Rows(), tree)

	if len(second) != 0 {
		t.Errorf("second restore should collapse nothing, collapsed %v", second)
	}
	if !tree.ExpandedNodes().Equal(first) {
		t.Errorf("expanded set changed: %v -> %v", first.IDs(), tree.ExpandedNodes().IDs())
	}
}

func TestRestoreDoesNotInvalidatePending(t *testing.T) {
	tree := scenarioTree()
	c := NewController()
	tree.ctrl = c
	tree.expandAll()

	snap := NewSnapshot("Q")
	c.pending = &snap
	c.RestoreSnapshot(NewSnapshot("A"), nil, tree.Rows(), tree)

	got, ok := c.Pending()
	if !ok || !got.Equal(snap) {
		t.Errorf("collapses inside restore must not clear the snapshot, got %v ok=%v", got.IDs(), ok)
	}
}

func TestRestoreDeepestFirst(t *testing.T) {
	tree := scenarioTree()
	tree.expandAll()
	c := NewController()
	c.RestoreSnapshot(Snapshot{}, nil, tree.Rows(), tree)

	pos := make(map[NodeID]int)
	for i, id := range tree.calls {
		pos[id] = i
	}
	if pos["E"] > pos["X"] {
		t.Errorf("expected E collapsed before its parent X, calls=%v", tree.calls)
	}
	if pos["D"] > pos["A"] {
		t.Errorf("expected D collapsed before its parent A, calls=%v", tree.calls)
	}
}

func TestRestoreSwallowsCollaboratorFailures(t *testing.T) {
	tree := scenarioTree()
	tree.expandAll()
	tree.failOn = map[NodeID]error{"B": errors.New("toolkit refused")}
	tree.panicOn = "C"
	c := NewController()

	collapsed := c.RestoreSnapshot(Snapshot{}, nil, tree.Rows(), tree)

	if c.Restoring() {
		t.Fatal("guard must be released after collaborator failures")
	}
	for _, id := range collapsed {
		if id == "B" || id == "C" {
			t.Errorf("%s failed and must not be reported as collapsed", id)
		}
	}
	if tree.expanded["X"] {
		t.Error("failures on other nodes must not stop the remaining collapses")
	}

	// Invalidation works again once the guard is released.
	c.pending = &Snapshot{}
	c.OnUserExpansionChange()
	if _, ok := c.Pending(); ok {
		t.Error("invalidation stayed suppressed after a failed restore")
	}
}

func TestStalePlanIgnored(t *testing.T) {
	tree := scenarioTree()
	tree.expandAll()
	c := NewController()

	c.OnFilterTextChanged(true, func() Snapshot { return NewSnapshot("A") })
	plan := c.OnFilterTextChanged(false, nil)
	// A new episode starts before the old restore runs.
	c.OnFilterTextChanged(true, func() Snapshot { return NewSnapshot("B") })

	if got := c.RestoreView(plan, tree); got != nil {
		t.Errorf("stale plan should be ignored, collapsed %v", got)
	}
	if !tree.expanded["X"] {
		t.Error("stale plan touched the tree")
	}
	snap, ok := c.Pending()
	if !ok || !snap.Equal(NewSnapshot("A")) {
		t.Errorf("the new episode should keep the pre-filter snapshot {A}, got %v (ok=%v)", snap.IDs(), ok)
	}
}

// Clearing and retyping before the restore lands must not capture the
// still-filtered view; the restore of the latest episode goes back to the
// state from before the first filter.
func TestRetypeBeforeRestoreKeepsPreFilterSnapshot(t *testing.T) {
	tree := scenarioTree()
	c := NewController()
	tree.ctrl = c
	tree.expand("A")

	c.OnFilterTextChanged(true, tree.ExpandedNodes)
	tree.expandAll() // the filter auto-expands

	stale := c.OnFilterTextChanged(false, nil)
	captured := false
	c.OnFilterTextChanged(true, func() Snapshot {
		captured = true
		return tree.ExpandedNodes()
	})
	if captured {
		t.Fatal("retyping before the restore must not capture the filtered view")
	}
	if got := c.RestoreView(stale, tree); got != nil {
		t.Fatalf("stale restore collapsed %v", got)
	}

	plan := c.OnFilterTextChanged(false, nil)
	if !plan.Armed() || plan.Episode != 2 {
		t.Fatalf("expected an armed plan for episode 2, got armed=%v episode=%d", plan.Armed(), plan.Episode)
	}
	if !plan.ToExpand.Equal(NewSnapshot("A")) {
		t.Errorf("plan restores %v, want {A}", plan.ToExpand.IDs())
	}
	c.RestoreView(plan, tree)
	if got := sortedIDs(tree.ExpandedNodes().IDs()); !reflect.DeepEqual(got, []NodeID{"A"}) {
		t.Errorf("expected only A expanded after restore, got %v", got)
	}
	if _, ok := c.Pending(); ok {
		t.Error("pending snapshot left after the restore")
	}
}

func TestUnarmedPlanIsNoop(t *testing.T) {
	tree := scenarioTree()
	tree.expandAll()
	c := NewController()
	if got := c.RestoreView(RestorePlan{}, tree); got != nil {
		t.Errorf("unarmed plan collapsed %v", got)
	}
}

func TestCollapseFuncAdapter(t *testing.T) {
	var got NodeID
	var col Collapser = CollapseFunc(func(id NodeID) error {
		got = id
		return nil
	})
	if err := col.Collapse("n1"); err != nil || got != "n1" {
		t.Errorf("adapter did not forward: got %q err %v", got, err)
	}
}
