package store

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/csimplestring/asynciter/errno"
	"github.com/csimplestring/asynciter/iter"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rotisserie/eris"
)

// Store gives access to the files kept under one directory of a blob bucket.
//
// Every read operation hands out an iter.Source that owns an open blob reader.
// The source releases the reader when it is exhausted or when its Return is
// called, so callers wrapping it with iter.Map get the reader released on
// abrupt close as well.
type Store interface {
	Root() string

	// Read the given file and return a source of lines, with line breaks removed from
	// each line. Callers are responsible to return the source if they stop early.
	Read(ctx context.Context, path string) (iter.Source[string], error)

	// ReadRows reads the given parquet file row by row.
	ReadRows(ctx context.Context, path string) (iter.Source[map[string]any], error)

	// List the paths in the same directory that are lexicographically greater or equal to
	// (UTF-8 sorting) the given `path`. The result is sorted by the file name.
	ListFrom(ctx context.Context, path string) (iter.Source[*FileMeta], error)

	// Write drains lines into the given `path`, one line per value.
	// When overwrite is false and the file already exists, errno.ErrFileAlreadyExists is returned.
	// Lines are returned (closed) once the write has finished or failed.
	Write(ctx context.Context, path string, lines iter.Source[string], overwrite bool) error

	// WriteRows drains rows into a parquet file using the given schema definition.
	WriteRows(ctx context.Context, path string, schema string, rows iter.Source[map[string]any], overwrite bool) error

	Exists(ctx context.Context, path string) (bool, error)

	Create(ctx context.Context, path string) error

	Close() error
}

type FileMeta struct {
	path         string
	timeModified time.Time
	size         uint64
}

func (f *FileMeta) Path() string {
	return f.path
}

func (f *FileMeta) TimeModified() time.Time {
	return f.timeModified
}

func (f *FileMeta) Size() uint64 {
	return f.size
}

var supportedSchemes = mapset.NewSet("file", "mem", "azblob", "gs", "s3")

// Supports reports whether New can open a store for path.
func Supports(path string) bool {
	p, err := url.Parse(path)
	if err != nil {
		return false
	}
	return supportedSchemes.Contains(p.Scheme)
}

// New opens the store rooted at the directory url path, picking the backend by scheme.
func New(path string) (Store, error) {
	p, err := url.Parse(path)
	if err != nil {
		return nil, eris.Wrapf(err, "error in parsing %s for Store", path)
	}

	var s *BlobStore
	switch p.Scheme {
	case "file":
		s, err = NewLocalStore(path)
	case "mem":
		s, err = NewMemStore()
	case "azblob":
		s, err = NewAzureBlobStore(path)
	case "gs":
		s, err = NewGCSStore(path)
	case "s3":
		s, err = NewS3Store(path)
	default:
		return nil, errno.UnsupportedFileSystem("unsupported schema " + path + " to create store")
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func relativePath(scheme string, basePath string, path string) (string, error) {
	rel := func(base string, path string) (string, error) {
		relativePath, err := filepath.Rel(basePath, path)
		if err != nil {
			return "", eris.Wrap(err, "fail to resolve the relative path for "+path)
		}
		// path is not in the basePath
		if strings.HasPrefix(relativePath, "../") {
			return "", eris.Errorf("the path %s is not in the base path %s", path, basePath)
		}
		return relativePath, nil
	}

	// absolute path: "file:///path/to/file"
	if strings.HasPrefix(path, scheme+"://") {
		path = strings.TrimPrefix(path, scheme+"://")
		return rel(basePath, path)
	}

	// absolute path without scheme "/path/to/a"
	if filepath.IsAbs(path) {
		return rel(basePath, path)
	}

	// relative path
	return path, nil
}
