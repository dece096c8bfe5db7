package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/dedupe/internal/api"
	"github.com/cleared-dev/dedupe/internal/duplicates"
	"github.com/cleared-dev/dedupe/internal/id"
	"github.com/cleared-dev/dedupe/internal/resolve"
)

func newScanCommand(root *rootOptions) *cobra.Command {
	var asJSON bool
	var expand []int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find duplicate transaction groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close()

			groups, err := p.scan(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(api.NewScanResponse(groups))
			}

			sel := resolve.NewSelection()
			for i := range groups {
				sel.SetExpanded(i, !cmd.Flags().Changed("expand"))
			}
			for _, n := range expand {
				if n < 1 || n > len(groups) {
					return fmt.Errorf("--expand %d: there are %d groups", n, len(groups))
				}
				sel.SetExpanded(n-1, true)
			}
			return printGroups(out, groups, sel)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print groups as JSON")
	cmd.Flags().IntSliceVar(&expand, "expand", nil, "group numbers to list in full (default all)")

	return cmd
}

// printGroups writes one summary line per group and the member table of
// every group sel has expanded.
func printGroups(out io.Writer, groups []duplicates.Group, sel *resolve.Selection) error {
	if len(groups) == 0 {
		fmt.Fprintln(out, "No duplicates found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d duplicate group(s)\n", len(groups))
	for i, g := range groups {
		anchor := g.Anchor()
		fmt.Fprintf(out, "\nGroup %d: %s, %d transactions, %s extra (keep %s)\n",
			i+1, anchor.BusinessName, len(g.Transactions), g.Excess().StringFixed(2), id.Short(anchor.ID))
		if !sel.IsExpanded(i) {
			continue
		}
		if err := printTransactions(out, g.Transactions, "  "); err != nil {
			return err
		}
	}
	return nil
}
