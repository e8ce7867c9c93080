package store

import (
	"context"
	"strings"

	"github.com/csimplestring/asynciter/internal/util/path"
	"github.com/rotisserie/eris"

	goblob "gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob"
)

// NewS3Store opens dir, given as "s3://bucket/path/to/dir/". It must end with "/".
// AWS_ENDPOINT_URL, AWS_DISABLE_SSL and AWS_S3_FORCE_PATH_STYLE are honoured
// so the store can run against localstack.
//
// S3 has no create-only precondition, so create-only writes are serialized
// by the store and checked with Exists first.
func NewS3Store(dir string) (*BlobStore, error) {
	blobURL, err := path.ConvertToBlobURL(dir)
	if err != nil {
		return nil, err
	}

	bucket, err := goblob.OpenBucket(context.Background(), blobURL)
	if err != nil {
		return nil, eris.Wrap(err, "open s3 bucket "+dir)
	}

	base := strings.TrimPrefix(dir, "s3://")
	return &BlobStore{
		root:   dir,
		bucket: bucket,
		resolve: func(p string) (string, error) {
			return relativePath("s3", base, p)
		},
	}, nil
}
