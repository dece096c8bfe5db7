package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/dedupe/internal/id"
	"github.com/cleared-dev/dedupe/internal/resolve"
)

func newResolveCommand(root *rootOptions) *cobra.Command {
	var deleteIDs, keepIDs []string
	var keepFirst bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Delete selected duplicates and mark the rest of their groups reviewed",
		Long: "Delete the selected duplicate transactions. Every other member of a group\n" +
			"that lost a transaction is marked as a reviewed duplicate. IDs may be\n" +
			"given as the short prefixes printed by scan.",
		Example: "  dedupe resolve --delete 0b6f3c1e,9a2d41f7\n  dedupe resolve --keep-first\n  dedupe resolve --keep-first --keep 9a2d41f7",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keepFirst && len(deleteIDs) > 0 {
				return errors.New("--delete and --keep-first are mutually exclusive")
			}

			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close()

			ctx := cmd.Context()
			groups, err := p.scan(ctx)
			if err != nil {
				return err
			}

			sel := resolve.NewSelection()
			if keepFirst {
				for _, g := range groups {
					sel.SelectAllButAnchor(g)
				}
			} else {
				for _, txID := range expandIDs(groups, id.Split(deleteIDs)) {
					sel.Select(txID)
				}
			}
			for _, txID := range expandIDs(groups, id.Split(keepIDs)) {
				sel.Deselect(txID)
			}

			out := cmd.OutOrStdout()
			if sel.Len() > 0 {
				fmt.Fprintf(out, "Deleting %d transaction(s)\n", sel.Len())
			}
			res, err := p.resolver().DeleteSelected(ctx, groups, sel.IDs(), printProgress(out))
			printResult(out, res)
			if len(res.Deleted)+len(res.Marked) > 0 {
				p.commit(ctx, fmt.Sprintf("resolve: delete %d duplicates, mark %d reviewed", len(res.Deleted), len(res.Marked)))
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&deleteIDs, "delete", nil, "transaction IDs to delete")
	cmd.Flags().BoolVar(&keepFirst, "keep-first", false, "delete every group member except the first")
	cmd.Flags().StringSliceVar(&keepIDs, "keep", nil, "transaction IDs to leave out of the deletion")

	return cmd
}

func newIgnoreCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ignore <id>...",
		Short: "Mark a duplicate group as reviewed without deleting anything",
		Long: "Mark every member of the duplicate group containing the given IDs as a\n" +
			"reviewed duplicate so it no longer shows up in scan.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close()

			ctx := cmd.Context()
			groups, err := p.scan(ctx)
			if err != nil {
				return err
			}

			g, err := resolve.MatchGroup(groups, expandIDs(groups, id.Split(args)))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			res, err := p.resolver().Ignore(ctx, g, printProgress(out))
			printResult(out, res)
			if len(res.Marked) > 0 {
				p.commit(ctx, fmt.Sprintf("ignore: mark %d reviewed", len(res.Marked)))
			}
			return err
		},
	}

	return cmd
}

func printProgress(out io.Writer) resolve.ProgressFunc {
	return func(p resolve.Progress) {
		switch p.Phase {
		case resolve.PhaseDelete:
			fmt.Fprintf(out, "[%3.0f%%] deleted %s\n", p.Fraction*100, id.Short(p.TransactionID))
		case resolve.PhaseMark:
			fmt.Fprintf(out, "[%3.0f%%] marked %s reviewed\n", p.Fraction*100, id.Short(p.TransactionID))
		}
	}
}

func printResult(out io.Writer, res resolve.Result) {
	fmt.Fprintf(out, "Deleted %d, marked %d reviewed.\n", len(res.Deleted), len(res.Marked))
}
