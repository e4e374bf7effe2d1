package cli

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/dbjoin/internal/snapshot"
)

func (a *app) snapshotCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "snapshot --out file.{json,yaml}",
		Short: "Save the schema metadata for offline use with --snapshot",
		Long: `Capture the tables, keys and indexes of the configured schemas into a JSON
or YAML document. The destination may be a local path or an s3://bucket/key
location when a filestore is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := snapshot.FormatFromPath(out); err != nil {
				return err
			}

			p, err := a.openProvider(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			doc, err := snapshot.Capture(ctx, p)
			if err != nil {
				return err
			}

			l, err := a.loader(ctx, out)
			if err != nil {
				return err
			}
			if err := l.Save(ctx, doc, out); err != nil {
				return err
			}

			a.log.With().
				Str("out", out).
				Str("driver", string(doc.Driver)).
				Int("tables", len(doc.Tables)).
				Logger().
				Info("snapshot written")
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "destination file or s3:// location; the extension picks the format")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
