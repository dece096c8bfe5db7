package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/dedupe/internal/importer"
)

func newImportCommand(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import bank CSV exports",
		Long: "Import bank CSV exports as transactions. Without arguments every CSV in\n" +
			"import/ is imported and then moved to import/processed/.",
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := importer.DefaultRegistry().Get(format)
			if parser == nil {
				return fmt.Errorf("unknown format %q (known: %s)", format,
					strings.Join(importer.DefaultRegistry().Formats(), ", "))
			}

			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close()

			fromInbox := len(args) == 0
			files := args
			if fromInbox {
				found, err := importer.Scan(p.root)
				if err != nil {
					return err
				}
				for _, f := range found {
					files = append(files, f.Path)
				}
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files to import.")
				return nil
			}

			out := cmd.OutOrStdout()
			total := 0
			for _, path := range files {
				res, err := importFile(cmd, p, parser, path)
				n := len(res.Created)
				total += n
				if err != nil {
					if total > 0 {
						p.commit(cmd.Context(), fmt.Sprintf("import: %d transactions (partial)", total))
					}
					return fmt.Errorf("importing %s: %w", filepath.Base(path), err)
				}
				fmt.Fprintf(out, "Imported %d transactions from %s", n, filepath.Base(path))
				if len(res.Skipped) > 0 {
					fmt.Fprintf(out, " (skipped %d credits)", len(res.Skipped))
				}
				fmt.Fprintln(out)

				if fromInbox {
					if _, err := importer.MarkProcessed(p.root, filepath.Base(path)); err != nil {
						return err
					}
				}
			}

			p.commit(cmd.Context(), fmt.Sprintf("import: %d transactions", total))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "chase", "CSV format: chase or generic")

	return cmd
}

func importFile(cmd *cobra.Command, p *project, parser importer.Parser, path string) (importer.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return importer.Result{}, err
	}
	defer f.Close()

	return importer.Load(cmd.Context(), p.store, parser, f)
}
