package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/settree/pkg/config"
	"github.com/vanderheijden86/settree/pkg/hooks"
	"github.com/vanderheijden86/settree/pkg/loader"
	"github.com/vanderheijden86/settree/pkg/settings"
)

func newValidateCmd(opts *globalOptions) *cobra.Command {
	var (
		overridesPath string
		strict        bool
	)

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Check definition files and the overrides file",
		Long: `Load the definition files, build the tree and apply the overrides file,
reporting every problem found. hooks.yaml in the config directory is
checked too. Exits non-zero when anything fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			errOut := cmd.ErrOrStderr()
			cfg, err := opts.config()
			if err != nil {
				return err
			}

			var warnings int
			tree, files, err := loadTree(cmd.Context(), cfg, args, func(msg string) {
				warnings++
				fmt.Fprintf(errOut, "Warning: %s\n", msg)
			})
			if err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
				return fmt.Errorf("definitions are invalid")
			}

			if overridesPath == "" {
				overridesPath = cfg.OverridesPath()
			}
			var problems int
			if overridesPath != "" {
				ov, err := loader.LoadOverrides(overridesPath)
				if err != nil {
					fmt.Fprintf(errOut, "Error: %v\n", err)
					problems++
				} else {
					for _, e := range settings.NewContext(tree).Apply(ov) {
						fmt.Fprintf(errOut, "Error: %s: %v\n", overridesPath, e)
						problems++
					}
				}
			}

			if hl, err := hooks.LoadDir(config.ConfigDir()); err != nil {
				fmt.Fprintf(errOut, "Error: %v\n", err)
				problems++
			} else {
				for _, w := range hl.Warnings() {
					warnings++
					fmt.Fprintf(errOut, "Warning: %s: %s\n", hl.Path(), w)
				}
			}

			if problems > 0 {
				return fmt.Errorf("%d problem(s) in overrides or hooks", problems)
			}
			if strict && warnings > 0 {
				return fmt.Errorf("%d warning(s) with --strict", warnings)
			}

			source := fmt.Sprintf("%d files", len(files))
			if len(files) == 0 {
				source = "built-in definitions"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d groups, %d pages from %s\n",
				len(tree.Roots), len(tree.Pages()), source)
			return nil
		},
	}

	cmd.Flags().StringVar(&overridesPath, "overrides", "", "Overrides file to check (default from config)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")
	return cmd
}
