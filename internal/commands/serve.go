package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/dedupe/internal/api"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transaction and duplicate API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd, root)
			if err != nil {
				return err
			}
			defer p.close()

			d, err := p.detector()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = p.cfg.Server.Addr
			}

			srv := api.New(p.store, d, p.resolver(), p.log, api.Options{
				AllowedOrigins: p.cfg.Server.AllowedOrigins,
				Token:          p.cfg.Server.Token,
				ScanLimit:      p.cfg.Scan.Limit,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p.log.WithField("addr", addr).Info("listening")
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")

	return cmd
}
