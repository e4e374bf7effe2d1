package filestore

import (
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/koustreak/dbjoin/internal/errs"
)

// Scheme prefixes object locations, e.g. "s3://snapshots/prod/shop.json".
const Scheme = "s3://"

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "prod/shop.yaml").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	ContentType  string
	ETag         string
	LastModified time.Time
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// Location addresses one object.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return Scheme + l.Bucket + "/" + l.Key
}

// IsLocation reports whether s uses the object store scheme rather than
// naming a local file.
func IsLocation(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// ParseLocation splits "s3://bucket/key" into its parts. An empty bucket
// ("s3:///key") falls back to defaultBucket.
func ParseLocation(s, defaultBucket string) (Location, error) {
	if !IsLocation(s) {
		return Location{}, errs.Newf(errs.ErrKindInvalidInput, "location %q must start with %s", s, Scheme)
	}
	u, err := url.Parse(s)
	if err != nil {
		return Location{}, errs.Wrap(errs.ErrKindInvalidInput, "invalid object location", err)
	}

	loc := Location{Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}
	if loc.Bucket == "" {
		loc.Bucket = defaultBucket
	}
	if loc.Bucket == "" {
		return Location{}, errs.Newf(errs.ErrKindInvalidInput, "location %q names no bucket and no default bucket is configured", s)
	}
	if loc.Key == "" || strings.HasSuffix(loc.Key, "/") {
		return Location{}, errs.Newf(errs.ErrKindInvalidInput, "location %q names no object", s)
	}
	return loc, nil
}
