package snapshot

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/dbjoin/internal/errs"
)

// Format is a snapshot serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ContentType is the MIME type used when uploading a document.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// ParseFormat accepts "json", "yaml" and "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", errs.Newf(errs.ErrKindInvalidInput, "unknown snapshot format %q (want json or yaml)", s)
	}
}

// FormatFromPath picks the format from a file or object key extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", errs.Newf(errs.ErrKindInvalidInput, "cannot tell snapshot format of %q: no extension", path)
	}
	return ParseFormat(ext)
}

// Encode writes doc to w.
func Encode(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return errs.Wrap(errs.ErrKindInternal, "encode snapshot", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errs.Wrap(errs.ErrKindInternal, "encode snapshot", err)
		}
		if err := enc.Close(); err != nil {
			return errs.Wrap(errs.ErrKindInternal, "encode snapshot", err)
		}
		return nil
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown snapshot format %q", format)
	}
}

// Decode reads and validates one document from r. Unknown fields are
// rejected so that typos in hand-edited snapshots surface early.
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, errs.Wrap(errs.ErrKindMalformedSchema, "decode snapshot", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, errs.Wrap(errs.ErrKindMalformedSchema, "decode snapshot", err)
		}
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown snapshot format %q", format)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}
