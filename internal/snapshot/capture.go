package snapshot

import (
	"context"
	"time"

	"github.com/koustreak/dbjoin/internal/database"
)

// Capture fetches the full schema from p into a new Document.
func Capture(ctx context.Context, p database.Provider) (*Document, error) {
	tables, err := p.FetchSchemas(ctx)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Version:       Version,
		Driver:        p.Driver(),
		DefaultSchema: p.DefaultSchema(),
		Schemas:       schemasOf(tables),
		CapturedAt:    time.Now().UTC().Truncate(time.Second),
		Tables:        tables,
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}
