package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/settree/pkg/config"
	"github.com/vanderheijden86/settree/pkg/history"
	"github.com/vanderheijden86/settree/pkg/ui"
)

func newRecentCmd(opts *globalOptions) *cobra.Command {
	var (
		changedOnly bool
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "recent [files...]",
		Short: "List recently visited settings pages",
		Long: `List recently visited settings pages, newest first.

Pages that no longer exist in the loaded definitions are skipped. A "*"
marks visits that changed a value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			if !cfg.HistoryEnabled() {
				return errors.New("history is disabled in the config")
			}

			path := config.HistoryPath(opts.state())
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent locations.")
				return nil
			}

			tree, _, err := loadTree(cmd.Context(), cfg, args, nil)
			if err != nil {
				return err
			}

			store, err := history.Open(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer store.Close()

			if limit <= 0 {
				limit = cfg.History.Limit
			}
			// Fetch extra rows so skipped pages do not shorten the list.
			places, err := store.Places(cmd.Context(), changedOnly, limit*2)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			shown := 0
			for _, p := range places {
				if shown >= limit {
					break
				}
				if _, ok := tree.FindByID(p.PageID); !ok {
					continue
				}
				mark := " "
				if p.Changed {
					mark = "*"
				}
				fmt.Fprintf(out, "%-8s %s %s\n", ui.FormatTimeRel(p.At), mark,
					history.Breadcrumbs(tree.PathNames(p.PageID), p.PageID))
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(out, "No recent locations.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&changedOnly, "changed", false, "Only list visits that changed a value")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of entries (default from config)")
	return cmd
}
