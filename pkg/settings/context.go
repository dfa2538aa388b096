package settings

import (
	"fmt"
	"sort"
)

// Overrides maps page ID to option key to value.
type Overrides map[string]map[string]string

// Context is the edit session over a tree: the values the user changed and
// the pages whose last edit failed validation.
type Context struct {
	tree   *Tree
	values Overrides
	errs   map[string]error
}

// NewContext returns an empty edit session for tree.
func NewContext(tree *Tree) *Context {
	return &Context{
		tree:   tree,
		values: make(Overrides),
		errs:   make(map[string]error),
	}
}

// Tree returns the tree the context edits.
func (c *Context) Tree() *Tree {
	return c.tree
}

// SetValue validates raw for the option and stores it. Invalid input is
// recorded as the page's error and returned.
func (c *Context) SetValue(pageID, key, raw string) error {
	page, err := c.tree.Page(pageID)
	if err != nil {
		return err
	}
	opt, ok := page.Option(key)
	if !ok {
		err := fmt.Errorf("%w: %s.%s", ErrUnknownOption, pageID, key)
		c.errs[pageID] = err
		return err
	}
	v, err := opt.Normalize(raw)
	if err != nil {
		err = fmt.Errorf("%s.%s: %w", pageID, key, err)
		c.errs[pageID] = err
		return err
	}
	delete(c.errs, pageID)

	if v == opt.Effective() {
		c.clear(pageID, key)
		return nil
	}
	if c.values[pageID] == nil {
		c.values[pageID] = make(map[string]string)
	}
	c.values[pageID][key] = v
	return nil
}

func (c *Context) clear(pageID, key string) {
	vals := c.values[pageID]
	delete(vals, key)
	if len(vals) == 0 {
		delete(c.values, pageID)
	}
}

// Value returns the edited value if any, otherwise the option's own value.
func (c *Context) Value(pageID, key string) (string, error) {
	page, err := c.tree.Page(pageID)
	if err != nil {
		return "", err
	}
	opt, ok := page.Option(key)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownOption, pageID, key)
	}
	if v, ok := c.values[pageID][key]; ok {
		return v, nil
	}
	return opt.Effective(), nil
}

// Modified reports whether the page has unsaved edits.
func (c *Context) Modified(pageID string) bool {
	return len(c.values[pageID]) > 0
}

// Error returns the page's last validation error, if any.
func (c *Context) Error(pageID string) error {
	return c.errs[pageID]
}

// ModifiedPages returns the IDs of pages with edits, sorted.
func (c *Context) ModifiedPages() []string {
	out := make([]string, 0, len(c.values))
	for id := range c.values {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset drops every edit and error for the page.
func (c *Context) Reset(pageID string) {
	delete(c.values, pageID)
	delete(c.errs, pageID)
}

// Apply loads saved overrides. Entries that no longer fit the tree are
// skipped and returned as errors; valid entries are applied regardless.
func (c *Context) Apply(ov Overrides) []error {
	var errs []error
	ids := make([]string, 0, len(ov))
	for id := range ov {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		keys := make([]string, 0, len(ov[id]))
		for k := range ov[id] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := c.SetValue(id, k, ov[id][k]); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// Overrides returns a copy of the current edits.
func (c *Context) Overrides() Overrides {
	out := make(Overrides, len(c.values))
	for id, vals := range c.values {
		cp := make(map[string]string, len(vals))
		for k, v := range vals {
			cp[k] = v
		}
		out[id] = cp
	}
	return out
}

// Rebind moves the session onto a rebuilt tree, keeping edits that still
// apply. It returns the edits that were dropped.
func (c *Context) Rebind(tree *Tree) []error {
	old := c.Overrides()
	c.tree = tree
	c.values = make(Overrides)
	c.errs = make(map[string]error)
	return c.Apply(old)
}
