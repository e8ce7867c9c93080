package store

import (
	"context"
	"strings"

	"github.com/csimplestring/asynciter/internal/util/path"
	"github.com/rotisserie/eris"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
)

// NewLocalStore opens the local directory dir, given as "file:///path/to/dir/".
// fileblob writes into a temporary file and renames it on close, so a file
// only becomes visible once it is completely written.
func NewLocalStore(dir string) (*BlobStore, error) {
	dir, err := path.Canonicalize(dir, "file")
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}

	blobURL, err := path.ConvertToBlobURL(dir)
	if err != nil {
		return nil, err
	}

	bucket, err := blob.OpenBucket(context.Background(), blobURL)
	if err != nil {
		return nil, eris.Wrap(err, "open local bucket "+dir)
	}

	base := strings.TrimPrefix(dir, "file://")
	return &BlobStore{
		root:   dir,
		bucket: bucket,
		resolve: func(p string) (string, error) {
			return relativePath("file", base, p)
		},
	}, nil
}
