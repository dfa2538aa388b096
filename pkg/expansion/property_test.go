package expansion

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// genTree draws a random forest of up to 24 nodes where every node's parent
// has a lower index, plus a random expanded set and selection.
func genTree(t *rapid.T) *fakeTree {
	n := rapid.IntRange(1, 24).Draw(t, "nodes")
	edges := make(map[NodeID][]NodeID)
	var roots []NodeID
	ids := make([]NodeID, n)
	for i := 0; i < n; i++ {
		ids[i] = NodeID(fmt.Sprintf("n%d", i))
		parent := rapid.IntRange(-1, i-1).Draw(t, fmt.Sprintf("parent%d", i))
		if parent < 0 {
			roots = append(roots, ids[i])
			continue
		}
		edges[ids[parent]] = append(edges[ids[parent]], ids[i])
	}
	tree := newFakeTree(edges, roots...)
	for _, id := range ids {
		if len(edges[id]) > 0 && rapid.Bool().Draw(t, "expanded-"+string(id)) {
			tree.expanded[id] = true
		}
	}
	nsel := rapid.IntRange(0, 2).Draw(t, "selected")
	for i := 0; i < nsel; i++ {
		tree.selected = append(tree.selected, rapid.SampledFrom(ids).Draw(t, "sel"))
	}
	return tree
}

func genSnapshot(t *rapid.T, tree *fakeTree) Snapshot {
	var s Snapshot
	for _, row := range tree.Rows() {
		if rapid.Bool().Draw(t, "snap-"+string(row.Node)) {
			s.Add(row.Node)
		}
	}
	return s
}

func TestPropertyRestoreKeepsSnapshotAndSelection(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree := genTree(t)
		snap := genSnapshot(t, tree)
		selection := tree.SelectionPaths()
		before := tree.Rows()

		c := NewController()
		c.RestoreSnapshot(snap, selection, before, tree)

		for _, row := range before {
			if !row.Expanded {
				if tree.expanded[row.Node] {
					t.Fatalf("restore expanded %s", row.Node)
				}
				continue
			}
			keep := snap.Contains(row.Node) || leadsToSelection(row.Path, selection)
			if keep != tree.expanded[row.Node] {
				t.Fatalf("node %s: expected expanded=%v, got %v", row.Node, keep, tree.expanded[row.Node])
			}
		}
	})
}

func TestPropertyRestoreIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree := genTree(t)
		snap := genSnapshot(t, tree)
		c := NewController()

		c.RestoreSnapshot(snap, tree.SelectionPaths(), tree.Rows(), tree)
		first := tree.ExpandedNodes()
		if again := c.RestoreSnapshot(snap, tree.SelectionPaths(), tree.Rows(), tree); len(again) != 0 {
			t.Fatalf("second restore collapsed %v", again)
		}
		if !tree.ExpandedNodes().Equal(first) {
			t.Fatalf("expanded set changed on second restore")
		}
	})
}

// TestPropertyEventSequence drives the controller with random filter and
// toggle events and checks it against a simple model of when a snapshot
// should be held. Restores may land late, after further filter changes.
func TestPropertyEventSequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree := genTree(t)
		c := NewController()
		tree.ctrl = c

		var (
			modelPending  bool
			modelSnap     Snapshot
			modelFiltered bool
			modelEpisode  uint64
			captures      int
			held          RestorePlan
		)
		deliver := func() {
			if !held.Armed() {
				return
			}
			c.RestoreView(held, tree)
			if held.Episode == modelEpisode && !modelFiltered {
				modelPending = false
			}
			held = RestorePlan{}
			if c.Restoring() {
				t.Fatal("guard left set")
			}
		}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "event") {
			case 0: // keystroke that leaves a non-empty filter
				plan := c.OnFilterTextChanged(true, func() Snapshot {
					captures++
					return tree.ExpandedNodes()
				})
				if plan.Armed() {
					t.Fatal("plan armed while filtering")
				}
				if !modelFiltered {
					modelEpisode++
					if !modelPending {
						modelPending = true
						modelSnap = tree.ExpandedNodes()
					}
				}
				modelFiltered = true
				tree.expandAll()
			case 1: // filter cleared
				plan := c.OnFilterTextChanged(false, nil)
				wantArmed := modelFiltered && modelPending
				if plan.Armed() != wantArmed {
					t.Fatalf("armed=%v, want %v", plan.Armed(), wantArmed)
				}
				if wantArmed {
					if !plan.ToExpand.Equal(modelSnap) {
						t.Fatalf("plan carried %v, want %v", plan.ToExpand.IDs(), modelSnap.IDs())
					}
					held = plan
				}
				modelFiltered = false
				if rapid.Bool().Draw(t, "restore-now") {
					deliver()
				}
			case 2: // manual toggle
				rows := tree.Rows()
				row := rapid.SampledFrom(rows).Draw(t, "toggle")
				tree.userToggle(row.Node)
				if !modelFiltered {
					modelPending = false
				}
			case 3: // a late structure-settled notification
				deliver()
			}

			_, ok := c.Pending()
			if ok != modelPending {
				t.Fatalf("step %d: pending=%v, want %v", i, ok, modelPending)
			}
			if c.Filtering() != modelFiltered {
				t.Fatalf("step %d: filtering=%v, want %v", i, c.Filtering(), modelFiltered)
			}
			if c.Episode() != modelEpisode {
				t.Fatalf("step %d: episode=%d, want %d", i, c.Episode(), modelEpisode)
			}
		}
		if uint64(captures) > c.Episode() {
			t.Fatalf("captured %d times across %d episodes", captures, c.Episode())
		}
	})
}
