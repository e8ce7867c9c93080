package store

import (
	"context"
	"strings"

	"github.com/csimplestring/asynciter/internal/util/path"
	"github.com/rotisserie/eris"

	goblob "gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
)

// NewAzureBlobStore opens dir, given as "azblob://container/path/to/dir/".
// The account is taken from AZURE_STORAGE_ACCOUNT and its credentials from the environment.
func NewAzureBlobStore(dir string) (*BlobStore, error) {
	blobURL, err := path.ConvertToBlobURL(dir)
	if err != nil {
		return nil, err
	}

	bucket, err := goblob.OpenBucket(context.Background(), blobURL)
	if err != nil {
		return nil, eris.Wrap(err, "open azure container "+dir)
	}

	base := strings.TrimPrefix(dir, "azblob://")
	return &BlobStore{
		root:   dir,
		bucket: bucket,
		resolve: func(p string) (string, error) {
			return relativePath("azblob", base, p)
		},
	}, nil
}
