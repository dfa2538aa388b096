package settings

import (
	"fmt"
	"strings"
)

// Node is one entry of the built tree: either a group or a page.
type Node struct {
	ID       string
	Name     string
	Group    *Group
	Page     *Page
	Parent   *Node
	Children []*Node
	Depth    int
}

// IsGroup reports whether the node is a top-level group.
func (n *Node) IsGroup() bool {
	return n.Group != nil
}

// Tree is the immutable node hierarchy built from a list of groups.
type Tree struct {
	Roots []*Node
	byID  map[string]*Node
	order []*Node
}

// NewTree builds the tree for groups. Group and page IDs share one
// namespace; a repeated ID returns ErrDuplicateID.
func NewTree(groups []*Group) (*Tree, error) {
	t := &Tree{byID: make(map[string]*Node)}
	for _, g := range groups {
		if g == nil {
			continue
		}
		node := &Node{ID: g.ID, Name: DisplayName(g.DisplayName, g.ID), Group: g}
		if err := t.register(node); err != nil {
			return nil, err
		}
		for _, p := range g.Pages {
			if err := t.addPage(node, p); err != nil {
				return nil, err
			}
		}
		t.Roots = append(t.Roots, node)
	}
	return t, nil
}

func (t *Tree) addPage(parent *Node, p *Page) error {
	if p == nil {
		return nil
	}
	node := &Node{
		ID:     p.ID,
		Name:   DisplayName(p.DisplayName, p.ID),
		Page:   p,
		Parent: parent,
		Depth:  parent.Depth + 1,
	}
	if err := t.register(node); err != nil {
		return err
	}
	parent.Children = append(parent.Children, node)
	for _, child := range p.Children {
		if err := t.addPage(node, child); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) register(n *Node) error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("node %q has an empty id", n.Name)
	}
	if _, ok := t.byID[n.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
	}
	t.byID[n.ID] = n
	t.order = append(t.order, n)
	return nil
}

// Len returns the number of nodes, groups included.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// FindByID returns the node with the given ID.
func (t *Tree) FindByID(id string) (*Node, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := t.byID[id]
	return n, ok
}

// Page returns the page with the given ID.
func (t *Tree) Page(id string) (*Page, error) {
	n, ok := t.FindByID(id)
	if !ok || n.Page == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}
	return n.Page, nil
}

// Path returns the IDs from the root down to id, inclusive. Unknown IDs
// yield nil.
func (t *Tree) Path(id string) []string {
	return t.collect(id, func(n *Node) string { return n.ID })
}

// PathNames returns the display names from the root down to id.
func (t *Tree) PathNames(id string) []string {
	return t.collect(id, func(n *Node) string { return n.Name })
}

func (t *Tree) collect(id string, field func(*Node) string) []string {
	n, ok := t.FindByID(id)
	if !ok {
		return nil
	}
	out := make([]string, n.Depth+1)
	for cur := n; cur != nil; cur = cur.Parent {
		out[cur.Depth] = field(cur)
	}
	return out
}

// ProjectOf returns the project of the nearest project-scoped page at or
// above id, or "" when the page is application-wide.
func (t *Tree) ProjectOf(id string) string {
	n, ok := t.FindByID(id)
	if !ok {
		return ""
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Page != nil && cur.Page.Scope == ScopeProject {
			return cur.Page.Project
		}
	}
	return ""
}

// GroupOf returns the group node that contains id.
func (t *Tree) GroupOf(id string) *Node {
	n, ok := t.FindByID(id)
	if !ok {
		return nil
	}
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Walk visits nodes depth-first in display order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(fn func(*Node) bool) {
	if t == nil {
		return
	}
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if fn(n) {
				walk(n.Children)
			}
		}
	}
	walk(t.Roots)
}

// FirstPage returns the first page in display order, or nil for a tree
// without pages.
func (t *Tree) FirstPage() *Node {
	var first *Node
	t.Walk(func(n *Node) bool {
		if first != nil {
			return false
		}
		if n.Page != nil {
			first = n
			return false
		}
		return true
	})
	return first
}

// Pages returns every page in display order.
func (t *Tree) Pages() []*Node {
	var out []*Node
	t.Walk(func(n *Node) bool {
		if n.Page != nil {
			out = append(out, n)
		}
		return true
	})
	return out
}
