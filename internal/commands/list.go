package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/dedupe/internal/id"
	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/store"
)

func newListCommand(root *rootOptions) *cobra.Command {
	var limit int
	var sort string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := store.ParseSort(sort)
			if err != nil {
				return err
			}

			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close()

			txs, err := p.store.List(cmd.Context(), store.ListOptions{Sort: order, Limit: limit})
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transactions.")
				return nil
			}
			return printTransactions(cmd.OutOrStdout(), txs, "")
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of transactions")
	cmd.Flags().StringVar(&sort, "sort", string(store.SortDateDesc), "sort order: -date or date")

	return cmd
}

// printTransactions writes an aligned table. indent prefixes every line.
func printTransactions(out io.Writer, txs []model.Transaction, indent string) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, tx := range txs {
		reviewed := ""
		if tx.IsReviewedDuplicate {
			reviewed = "reviewed"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\t\n",
			indent,
			id.Short(tx.ID),
			tx.Date.Format(time.DateTime),
			tx.BusinessName,
			tx.BillingAmount.StringFixed(2),
			reviewed,
		)
	}
	return tw.Flush()
}
