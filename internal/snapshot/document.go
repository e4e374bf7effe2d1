// Package snapshot stores a database's relationship metadata in a JSON or
// YAML document so that join paths can be resolved without a live
// connection.
//
// A snapshot is captured once from a live database.Provider:
//
//	doc, err := snapshot.Capture(ctx, provider)
//	err = snapshot.Encode(f, doc, snapshot.FormatYAML)
//
// and later opened from a local file or an object store location:
//
//	src, err := snapshot.Open(ctx, "s3://snapshots/prod/shop.yaml", store)
//
// The returned Source implements database.Provider, so everything that works
// against a live database works against a snapshot.
package snapshot

import (
	"time"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
)

// Version is the document layout this package writes. Older or equal
// versions are readable.
const Version = 1

// Document is the serialized form of a schema snapshot.
type Document struct {
	Version       int                   `json:"version" yaml:"version"`
	Driver        database.Driver       `json:"driver" yaml:"driver"`
	DefaultSchema string                `json:"defaultSchema" yaml:"defaultSchema"`
	Schemas       []string              `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	CapturedAt    time.Time             `json:"capturedAt" yaml:"capturedAt"`
	Tables        []*schema.TableSchema `json:"tables" yaml:"tables"`
}

// Validate checks the document is structurally usable: a known version and
// driver, a default schema, and uniquely named tables.
func (d *Document) Validate() error {
	if d.Version < 1 || d.Version > Version {
		return errs.Newf(errs.ErrKindMalformedSchema, "unsupported snapshot version %d", d.Version)
	}
	if _, err := database.ParseDriver(string(d.Driver)); err != nil {
		return errs.Wrap(errs.ErrKindMalformedSchema, "snapshot driver", err)
	}
	if d.DefaultSchema == "" {
		return errs.New(errs.ErrKindMalformedSchema, "snapshot has no default schema")
	}

	seen := make(map[string]bool, len(d.Tables))
	for i, t := range d.Tables {
		if t == nil || t.Schema == "" || t.Table == "" {
			return errs.Newf(errs.ErrKindMalformedSchema, "snapshot table #%d has no schema or name", i+1)
		}
		if seen[t.Key()] {
			return errs.Newf(errs.ErrKindMalformedSchema, "snapshot lists table %s twice", t.Key())
		}
		seen[t.Key()] = true
		for _, fk := range t.ForeignKeys {
			if err := fk.Validate(); err != nil {
				return errs.Wrap(errs.ErrKindMalformedSchema, "snapshot table "+t.Key(), err)
			}
		}
	}
	return nil
}

// schemasOf returns the distinct schemas of tables in first-seen order.
func schemasOf(tables []*schema.TableSchema) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tables {
		if !seen[t.Schema] {
			seen[t.Schema] = true
			out = append(out, t.Schema)
		}
	}
	return out
}
