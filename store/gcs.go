package store

import (
	"context"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/csimplestring/asynciter/errno"
	"github.com/csimplestring/asynciter/internal/util/path"
	"github.com/rotisserie/eris"

	goblob "gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob"
	"gocloud.dev/gcerrors"
)

// NewGCSStore opens dir, given as "gs://bucket/path/to/dir/". It must end with "/".
// Create-only writes are guarded by a DoesNotExist precondition on the object.
func NewGCSStore(dir string) (*BlobStore, error) {
	blobURL, err := path.ConvertToBlobURL(dir)
	if err != nil {
		return nil, err
	}

	bucket, err := goblob.OpenBucket(context.Background(), blobURL)
	if err != nil {
		return nil, eris.Wrap(err, "open gcs bucket "+dir)
	}

	base := strings.TrimPrefix(dir, "gs://")
	return &BlobStore{
		root:   dir,
		bucket: bucket,
		resolve: func(p string) (string, error) {
			return relativePath("gs", base, p)
		},
		beforeWriteFn: func(asFunc func(interface{}) bool) error {
			var handle **storage.ObjectHandle
			if asFunc(&handle) {
				(*handle) = (*handle).If(storage.Conditions{DoesNotExist: true})
			}
			return nil
		},
		writeErrorFn: func(err error, path string) error {
			if gcerrors.Code(err) == gcerrors.FailedPrecondition {
				return errno.FileAlreadyExists(path)
			}
			return eris.Wrap(err, "close writer for "+path)
		},
	}, nil
}
