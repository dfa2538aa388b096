package main

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/settree/pkg/settings"
)

// treeEntry is the JSON form of one node.
type treeEntry struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	Project  string       `json:"project,omitempty"`
	Match    bool         `json:"match,omitempty"`
	Children []*treeEntry `json:"children,omitempty"`
}

func newTreeCmd(opts *globalOptions) *cobra.Command {
	var (
		filter   string
		jsonOut  bool
		showDims bool
	)

	cmd := &cobra.Command{
		Use:   "tree [files...]",
		Short: "Print the settings tree",
		Long: `Print the settings tree without starting the interface.

With --filter only matching pages and their ancestors are printed, the
same way the interactive filter shows them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			tree, _, err := loadTree(cmd.Context(), cfg, args, func(msg string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", msg)
			})
			if err != nil {
				return err
			}

			result := settings.Match(tree, filter)
			if result.Active() && len(result.Matches) == 0 {
				return fmt.Errorf("no pages match %q", filter)
			}

			if jsonOut {
				return writeTreeJSON(cmd.OutOrStdout(), tree, result)
			}
			writeTreeText(cmd.OutOrStdout(), tree, result, showDims)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only show pages matching this query")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showDims, "context", true, "Mark ancestors kept for context with parentheses")
	return cmd
}

func nodeKind(n *settings.Node) string {
	if n.IsGroup() {
		return "group"
	}
	return "page"
}

func buildEntries(tree *settings.Tree, nodes []*settings.Node, result settings.FilterResult) []*treeEntry {
	var out []*treeEntry
	for _, n := range nodes {
		if !result.Visible(n.ID) {
			continue
		}
		out = append(out, &treeEntry{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     nodeKind(n),
			Project:  tree.ProjectOf(n.ID),
			Match:    result.Matches[n.ID],
			Children: buildEntries(tree, n.Children, result),
		})
	}
	return out
}

func writeTreeJSON(w io.Writer, tree *settings.Tree, result settings.FilterResult) error {
	entries := buildEntries(tree, tree.Roots, result)
	if entries == nil {
		entries = []*treeEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func writeTreeText(w io.Writer, tree *settings.Tree, result settings.FilterResult, markDimmed bool) {
	tree.Walk(func(n *settings.Node) bool {
		if !result.Visible(n.ID) {
			return false
		}
		name := n.Name
		if n.Page != nil && n.Page.Project != "" {
			name += " [" + n.Page.Project + "]"
		}
		if markDimmed && result.Dimmed(n.ID) {
			name = "(" + name + ")"
		}
		fmt.Fprintf(w, "%s%s  %s\n", strings.Repeat("  ", n.Depth), name, n.ID)
		return true
	})
}
