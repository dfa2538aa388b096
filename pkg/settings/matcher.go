package settings

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// FilterResult is the outcome of matching a query against a tree.
type FilterResult struct {
	Query string
	// Matches holds the IDs of nodes that matched directly.
	Matches map[string]bool
	// Context holds ancestors of matches that did not match themselves.
	// They stay visible so the matches keep their place in the hierarchy.
	Context map[string]bool
	// Ranked lists the matches best first.
	Ranked []string
	// Fuzzy is set when no substring matched and fuzzy scoring was used.
	Fuzzy bool
}

// Active reports whether a non-empty query was applied.
func (r FilterResult) Active() bool {
	return r.Query != ""
}

// Visible reports whether the node should be shown under this filter.
func (r FilterResult) Visible(id string) bool {
	if !r.Active() {
		return true
	}
	return r.Matches[id] || r.Context[id]
}

// Dimmed reports whether the node is shown only as context.
func (r FilterResult) Dimmed(id string) bool {
	return r.Active() && r.Context[id] && !r.Matches[id]
}

// Match filters tree by query. Matching is a case-insensitive substring test
// over display names, keywords and option labels. When nothing matches that
// way, display names are scored fuzzily instead.
func Match(tree *Tree, query string) FilterResult {
	q := strings.TrimSpace(query)
	res := FilterResult{Query: q}
	if q == "" || tree == nil {
		return res
	}
	res.Matches = make(map[string]bool)
	res.Context = make(map[string]bool)

	needle := strings.ToLower(q)
	tree.Walk(func(n *Node) bool {
		if nodeContains(n, needle) {
			res.add(n)
		}
		return true
	})

	if len(res.Ranked) == 0 {
		res.Fuzzy = true
		src := nameSource(tree.order)
		for _, m := range fuzzy.FindFrom(q, src) {
			res.add(tree.order[m.Index])
		}
	}
	return res
}

func (r *FilterResult) add(n *Node) {
	if r.Matches[n.ID] {
		return
	}
	r.Matches[n.ID] = true
	r.Ranked = append(r.Ranked, n.ID)
	for a := n.Parent; a != nil; a = a.Parent {
		r.Context[a.ID] = true
	}
}

func nodeContains(n *Node, needle string) bool {
	if strings.Contains(strings.ToLower(n.Name), needle) {
		return true
	}
	if n.Page == nil {
		return false
	}
	for _, kw := range n.Page.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	for _, o := range n.Page.Options {
		if strings.Contains(strings.ToLower(o.Label), needle) {
			return true
		}
	}
	return false
}

// nameSource exposes node display names to fuzzy.FindFrom.
type nameSource []*Node

func (s nameSource) String(i int) string { return s[i].Name }
func (s nameSource) Len() int            { return len(s) }
