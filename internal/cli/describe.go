package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
)

func (a *app) describeCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "describe [schema.]table",
		Short: "Show the columns, keys and indexes of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return errs.Newf(errs.ErrKindInvalidInput, "--output must be text or json, got %q", output)
			}

			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			ref, err := schema.ParseTableReference(args[0], p.DefaultSchema())
			if err != nil {
				return err
			}
			t, err := p.DescribeTable(cmd.Context(), ref)
			if err != nil {
				return err
			}

			if output == "json" {
				return writeJSON(a.out, t)
			}
			return writeTable(a.out, t)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTable renders t for a terminal.
func writeTable(w io.Writer, t *schema.TableSchema) error {
	fmt.Fprintf(w, "Table: %s\n", t.Key())
	if t.Comment != nil {
		fmt.Fprintf(w, "Comment: %s\n", *t.Comment)
	}

	fmt.Fprintln(w, "\nColumns:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range t.Columns {
		typ := c.DataType
		if c.UDTName != "" && c.UDTName != c.DataType {
			typ += " (" + c.UDTName + ")"
		}
		null := "NOT NULL"
		if c.IsNullable {
			null = "NULL"
		}
		var notes []string
		if t.IsPrimaryKeyColumn(c.Name) {
			notes = append(notes, "PK")
		}
		if t.IsUniqueColumn(c.Name) {
			notes = append(notes, "UNIQUE")
		}
		if c.DefaultValue != nil {
			notes = append(notes, "DEFAULT "+*c.DefaultValue)
		}
		if c.Comment != nil {
			notes = append(notes, "-- "+*c.Comment)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", c.Name, typ, null, strings.Join(notes, " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if t.PrimaryKey != nil {
		fmt.Fprintf(w, "\nPrimary key: %s (%s)\n", t.PrimaryKey.Name, strings.Join(t.PrimaryKey.Columns, ", "))
	}

	if len(t.ForeignKeys) > 0 {
		fmt.Fprintln(w, "\nForeign keys:")
		for _, fk := range t.ForeignKeys {
			line := "  " + fk.Name + ": " + fk.Describe(t.Table)
			if fk.OnUpdate != "" {
				line += " ON UPDATE " + fk.OnUpdate
			}
			if fk.OnDelete != "" {
				line += " ON DELETE " + fk.OnDelete
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(t.Indexes) > 0 {
		fmt.Fprintln(w, "\nIndexes:")
		for _, idx := range t.Indexes {
			fmt.Fprintf(w, "  %s: %s\n", idx.Name, idx.Definition)
		}
	}
	return nil
}
