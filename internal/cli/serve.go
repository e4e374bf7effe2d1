package cli

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/dbjoin/internal/server"
)

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the join resolver over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			s := server.New(p, a.cfg.JoinOptions(), server.Options{
				Addr:            a.cfg.Server.Addr,
				ReadTimeout:     a.cfg.Server.ReadTimeout,
				WriteTimeout:    a.cfg.Server.WriteTimeout,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
			}, a.log)
			return s.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	a.bind(cmd.Flags().Lookup("addr"), "server.addr")
	return cmd
}
