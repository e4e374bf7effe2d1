package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/filestore"
)

// Loader reads and writes documents at a location: a local path or
// "s3://bucket/key" served by Store.
type Loader struct {
	// Store serves object locations. Nil restricts the loader to local files.
	Store filestore.Store
	// Bucket is used for "s3:///key" locations.
	Bucket string
}

// Open loads a document from location and wraps it in a Source.
func Open(ctx context.Context, location string, store filestore.Store) (*Source, error) {
	return (&Loader{Store: store}).Open(ctx, location)
}

// Open loads location and wraps it in a Source.
func (l *Loader) Open(ctx context.Context, location string) (*Source, error) {
	doc, err := l.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	return NewSource(doc)
}

// Load reads and decodes the document at location. The format follows the
// file extension.
func (l *Loader) Load(ctx context.Context, location string) (*Document, error) {
	format, err := FormatFromPath(location)
	if err != nil {
		return nil, err
	}

	if !filestore.IsLocation(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, fileError(err, "open snapshot "+location)
		}
		defer f.Close()
		return Decode(f, format)
	}

	loc, err := l.object(location)
	if err != nil {
		return nil, err
	}
	obj, err := l.Store.GetObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return Decode(obj, format)
}

// Save encodes doc to location, creating or replacing it.
func (l *Loader) Save(ctx context.Context, doc *Document, location string) error {
	format, err := FormatFromPath(location)
	if err != nil {
		return err
	}

	if !filestore.IsLocation(location) {
		f, err := os.Create(location)
		if err != nil {
			return fileError(err, "create snapshot "+location)
		}
		if err := Encode(f, doc, format); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fileError(err, "write snapshot "+location)
		}
		return nil
	}

	loc, err := l.object(location)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, format); err != nil {
		return err
	}
	_, err = l.Store.PutObject(ctx, loc.Bucket, loc.Key, &buf, int64(buf.Len()), format.ContentType())
	return err
}

func (l *Loader) object(location string) (filestore.Location, error) {
	if l.Store == nil {
		return filestore.Location{}, errs.Newf(errs.ErrKindInvalidInput,
			"snapshot location %s needs an object store; configure filestore.endpoint", location)
	}
	return filestore.ParseLocation(location, l.Bucket)
}

func fileError(err error, msg string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	default:
		return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
	}
}
