package store

import (
	"context"

	"github.com/rotisserie/eris"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"
)

// NewMemStore opens an empty in-memory store. Every call gets its own bucket.
func NewMemStore() (*BlobStore, error) {
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		return nil, eris.Wrap(err, "open memory bucket")
	}

	return &BlobStore{
		root:   "mem://",
		bucket: bucket,
		resolve: func(p string) (string, error) {
			return relativePath("mem", ".", p)
		},
	}, nil
}
