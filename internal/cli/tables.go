package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) tablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the configured schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			refs, err := p.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range refs {
				fmt.Fprintln(a.out, r.Key())
			}
			return nil
		},
	}
}
