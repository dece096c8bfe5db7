package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/dedupe/internal/config"
	"github.com/cleared-dev/dedupe/internal/gitops"
	"github.com/cleared-dev/dedupe/internal/logging"
	"github.com/cleared-dev/dedupe/internal/store/csvstore"
	"github.com/cleared-dev/dedupe/internal/store/sqlstore"
)

type initOptions struct {
	driver string
	noGit  bool
}

func newInitCommand() *cobra.Command {
	opts := initOptions{}

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new dedupe project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.driver, "driver", config.DriverCSV, "store driver: csv or sqlite")
	cmd.Flags().BoolVar(&opts.noGit, "no-git", false, "do not create a git repository")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir string, opts initOptions) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	for _, d := range []string{"logs", "import", filepath.Join("import", "processed")} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default()
	storePath := filepath.Join(dir, cfg.Store.Path)
	switch opts.driver {
	case config.DriverCSV:
		s := csvstore.New(storePath)
		if err := s.Init(); err != nil {
			return fmt.Errorf("creating store: %w", err)
		}
		storePath = s.Path()
	case config.DriverSQLite:
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.Path = "dedupe.db"
		storePath = filepath.Join(dir, cfg.Store.Path)
		s, err := sqlstore.Open(sqlstore.DriverSQLite, storePath, logging.Discard())
		if err != nil {
			return fmt.Errorf("creating store: %w", err)
		}
		if err := s.Close(); err != nil {
			return fmt.Errorf("closing store: %w", err)
		}
	default:
		return fmt.Errorf("init supports the csv and sqlite drivers, got %q", opts.driver)
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignore := ".env\n*.db\n*.db-journal\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	for _, keep := range []string{filepath.Join("import", "processed", ".gitkeep"), filepath.Join("logs", ".gitkeep")} {
		if err := os.WriteFile(filepath.Join(dir, keep), []byte{}, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", keep, err)
		}
	}

	fmt.Fprintf(out, "Created %s store %s\n", cfg.Store.Driver, storePath)
	if opts.noGit {
		fmt.Fprintf(out, "Initialized dedupe project at %s\n", dir)
		return nil
	}

	if err := gitops.Init(ctx, dir); err != nil {
		return err
	}
	author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
	hash, err := gitops.CommitAll(ctx, dir, "init: initialize dedupe project", author)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(out, "Initialized dedupe project at %s (%s)\n", dir, hash)
	return nil
}
