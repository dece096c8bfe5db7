package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/dedupe/internal/auditlog"
	"github.com/cleared-dev/dedupe/internal/config"
	"github.com/cleared-dev/dedupe/internal/duplicates"
	"github.com/cleared-dev/dedupe/internal/gitops"
	"github.com/cleared-dev/dedupe/internal/logging"
	"github.com/cleared-dev/dedupe/internal/resolve"
	"github.com/cleared-dev/dedupe/internal/store"
	"github.com/cleared-dev/dedupe/internal/store/csvstore"
	"github.com/cleared-dev/dedupe/internal/store/remote"
	"github.com/cleared-dev/dedupe/internal/store/sqlstore"
)

// project is an opened dedupe project: its config, logger and store.
type project struct {
	root  string
	cfg   *config.Config
	log   *logrus.Logger
	store store.Store
	close func() error
}

// openProject loads the config named by --config and opens its store. The
// project root is the directory holding the config file.
func openProject(cmd *cobra.Command, opts *rootOptions) (*project, error) {
	path, err := filepath.Abs(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	root := filepath.Dir(path)
	s, closeFn, err := openStore(root, cfg.Store, log)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"root": root, "driver": cfg.Store.Driver}).Debug("project opened")
	cmd.SetContext(logging.WithLogger(cmd.Context(), log))

	return &project{root: root, cfg: cfg, log: log, store: s, close: closeFn}, nil
}

// openStore builds the backend selected by cfg.Driver. Relative paths are
// resolved against root.
func openStore(root string, cfg config.StoreConfig, log *logrus.Logger) (store.Store, func() error, error) {
	noop := func() error { return nil }
	path := cfg.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	switch cfg.Driver {
	case config.DriverCSV:
		return csvstore.New(path), noop, nil
	case config.DriverSQLite, config.DriverPostgres:
		dsn := path
		if cfg.Driver == config.DriverPostgres {
			dsn = cfg.DSN
		}
		s, err := sqlstore.Open(cfg.Driver, dsn, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverRemote:
		return remote.New(cfg.URL, cfg.Token, cfg.Timeout), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// detector builds the detector configured in scan.
func (p *project) detector() (*duplicates.Detector, error) {
	tol, err := p.cfg.Scan.Tolerance()
	if err != nil {
		return nil, err
	}
	strategy, err := duplicates.ParseStrategy(p.cfg.Scan.Strategy)
	if err != nil {
		return nil, err
	}
	return &duplicates.Detector{
		Rule:     duplicates.Rule{AmountTolerance: tol, Window: p.cfg.Scan.Window},
		Strategy: strategy,
	}, nil
}

func (p *project) scan(ctx context.Context) ([]duplicates.Group, error) {
	d, err := p.detector()
	if err != nil {
		return nil, err
	}
	return d.Scan(ctx, p.store, p.cfg.Scan.Limit)
}

// resolver builds a Resolver that logs through the project logger and, when
// enabled, writes the audit log.
func (p *project) resolver() *resolve.Resolver {
	opts := []resolve.Option{resolve.WithLogger(p.log)}
	if p.cfg.Audit.Enabled {
		opts = append(opts, resolve.WithAudit(auditlog.New(p.root), p.cfg.Audit.Actor))
	}
	return resolve.New(p.store, opts...)
}

// commit records a mutation in git for CSV projects. Failures are logged,
// not returned, since the mutation itself already succeeded.
func (p *project) commit(ctx context.Context, message string) {
	if !p.cfg.Git.AutoCommit || p.cfg.Store.Driver != config.DriverCSV || !gitops.IsRepo(p.root) {
		return
	}
	author := gitops.Author{Name: p.cfg.Git.AuthorName, Email: p.cfg.Git.AuthorEmail}
	hash, err := gitops.CommitIfChanged(ctx, p.root, message, author)
	if err != nil {
		p.log.WithError(err).Warn("auto-commit failed")
		return
	}
	if hash != "" {
		p.log.WithField("commit", hash).Info(message)
	}
}

// expandIDs replaces short ID prefixes with the full ID of the single group
// member they match. Anything else is passed through unchanged.
func expandIDs(groups []duplicates.Group, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		var match string
		n := 0
		for _, g := range groups {
			for _, tx := range g.Transactions {
				if tx.ID == raw {
					match, n = raw, 1
					break
				}
				if strings.HasPrefix(tx.ID, raw) {
					match = tx.ID
					n++
				}
			}
			if match == raw {
				break
			}
		}
		if n == 1 {
			out = append(out, match)
		} else {
			out = append(out, raw)
		}
	}
	return out
}
