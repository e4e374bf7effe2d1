package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/joinpath"
	"github.com/koustreak/dbjoin/internal/schema"
)

func (a *app) joinCommand() *cobra.Command {
	var (
		tables   string
		output   string
		maxDepth int
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "join --tables a,b[,c]",
		Short: "Find how to join tables and print the path or its SQL",
		Example: `  dbjoin join --dsn postgres://localhost/shop --tables customers,products
  dbjoin join --snapshot shop.yaml --tables sales.orders,public.customers --output sql
  dbjoin join --snapshot shop.yaml --tables orders,products --all --max-depth 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "sql" {
				return errs.Newf(errs.ErrKindInvalidInput, "--output must be json or sql, got %q", output)
			}
			if maxDepth < 0 {
				return errs.New(errs.ErrKindInvalidInput, "--max-depth must not be negative")
			}

			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			refs, err := schema.ParseTableList(tables, p.DefaultSchema())
			if err != nil {
				return err
			}

			r := joinpath.NewResolver(p, p, a.cfg.JoinOptions(), a.log)
			plans, err := r.Join(cmd.Context(), joinpath.JoinRequest{Tables: refs, MaxDepth: maxDepth, All: all})
			if err != nil {
				return err
			}
			if len(plans) == 0 {
				fmt.Fprintln(a.errOut, joinpath.NoPathMessage)
				return errReported
			}

			if output == "sql" {
				for i, plan := range plans {
					if all {
						if i > 0 {
							fmt.Fprintln(a.out)
						}
						fmt.Fprintf(a.out, "-- plan %d: %d join(s)\n", i+1, plan.Path.TotalJoins)
					}
					fmt.Fprintln(a.out, plan.SQL)
				}
				return nil
			}

			if !all {
				return writeJSON(a.out, plans[0].Path)
			}
			paths := make([]*joinpath.Path, len(plans))
			for i, plan := range plans {
				paths[i] = plan.Path
			}
			return writeJSON(a.out, paths)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&tables, "tables", "t", "", "comma-separated [schema.]table list")
	f.StringVarP(&output, "output", "o", "json", "output format: json or sql")
	f.IntVar(&maxDepth, "max-depth", 0, fmt.Sprintf("maximum joins in a path (default from config, at most %d)", joinpath.MaxDepthLimit))
	f.BoolVar(&all, "all", false, "list every path within the depth bound, cheapest first")
	_ = cmd.MarkFlagRequired("tables")
	return cmd
}
