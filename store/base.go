package store

import (
	"context"
	"io"
	"sync"

	"github.com/csimplestring/asynciter/errno"
	"github.com/csimplestring/asynciter/iter"
	"github.com/rotisserie/eris"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// BlobStore is the Store implementation shared by every backend.
// Backends differ in how paths are resolved and how create-only writes are guarded.
type BlobStore struct {
	root   string
	bucket *blob.Bucket

	resolve func(path string) (string, error)
	// beforeWriteFn, when set, guards create-only writes on the backend side.
	// Otherwise an Exists check is done under mu before writing.
	beforeWriteFn func(asFunc func(interface{}) bool) error
	writeErrorFn  func(err error, path string) error
	mu            sync.Mutex
}

var _ Store = &BlobStore{}

func (b *BlobStore) Root() string {
	return b.root
}

func (b *BlobStore) Read(ctx context.Context, path string) (iter.Source[string], error) {
	r, err := b.newReader(ctx, path)
	if err != nil {
		return nil, err
	}
	return iter.FromReadCloser(r), nil
}

func (b *BlobStore) newReader(ctx context.Context, path string) (*blob.Reader, error) {
	name, err := b.resolve(path)
	if err != nil {
		return nil, err
	}

	r, err := b.bucket.NewReader(ctx, name, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, errno.FileNotFound(path)
		}
		return nil, eris.Wrap(err, "open reader for "+path)
	}
	return r, nil
}

func (b *BlobStore) Write(ctx context.Context, path string, lines iter.Source[string], overwrite bool) error {
	r := iter.AsReadCloser(ctx, lines, true)
	err := b.write(ctx, path, overwrite, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		_ = r.Close()
		return err
	}
	return r.Close()
}

// write opens a writer for path and runs fill with it. The object is only
// published when fill succeeds.
func (b *BlobStore) write(ctx context.Context, path string, overwrite bool, fill func(w io.Writer) error) error {
	name, err := b.resolve(path)
	if err != nil {
		return err
	}

	var writeOpt *blob.WriterOptions
	if !overwrite {
		if b.beforeWriteFn != nil {
			writeOpt = &blob.WriterOptions{BeforeWrite: b.beforeWriteFn}
		} else {
			b.mu.Lock()
			defer b.mu.Unlock()

			exists, err := b.bucket.Exists(ctx, name)
			if err != nil {
				return eris.Wrap(err, "failed to check existing file "+path)
			}
			if exists {
				return errno.FileAlreadyExists(path)
			}
		}
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := b.bucket.NewWriter(wctx, name, writeOpt)
	if err != nil {
		return eris.Wrap(err, "open writer for "+path)
	}

	if err := fill(w); err != nil {
		// cancelling before Close aborts the upload
		cancel()
		_ = w.Close()
		return err
	}

	if err := w.Close(); err != nil {
		return b.writeError(err, path)
	}
	return nil
}

func (b *BlobStore) writeError(err error, path string) error {
	if b.writeErrorFn == nil {
		return eris.Wrap(err, "close writer for "+path)
	}
	return b.writeErrorFn(err, path)
}

func (b *BlobStore) ListFrom(ctx context.Context, path string) (iter.Source[*FileMeta], error) {
	name, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	return newListingIter(name, b.bucket), nil
}

func (b *BlobStore) Exists(ctx context.Context, path string) (bool, error) {
	name, err := b.resolve(path)
	if err != nil {
		return false, err
	}
	return b.bucket.Exists(ctx, name)
}

func (b *BlobStore) Create(ctx context.Context, path string) error {
	name, err := b.resolve(path)
	if err != nil {
		return err
	}
	return b.bucket.WriteAll(ctx, name, []byte{}, nil)
}

func (b *BlobStore) Close() error {
	return b.bucket.Close()
}

type listingIter struct {
	startPath string
	bucket    *blob.Bucket
	pageToken []byte
	buffer    []*blob.ListObject
	exhausted bool
}

func newListingIter(startPath string, bucket *blob.Bucket) *listingIter {
	return &listingIter{
		startPath: startPath,
		bucket:    bucket,
		pageToken: blob.FirstPageToken,
	}
}

var _ iter.Source[*FileMeta] = &listingIter{}
var _ iter.Returner[*FileMeta] = &listingIter{}

func (l *listingIter) Next(ctx context.Context) (iter.Result[*FileMeta], error) {
	for {
		for len(l.buffer) == 0 {
			if l.exhausted {
				return iter.Done[*FileMeta](), nil
			}

			ret, nextPageToken, err := l.bucket.ListPage(ctx, l.pageToken, 500, nil)
			if err != nil {
				return iter.Result[*FileMeta]{}, eris.Wrap(err, "list page")
			}

			l.pageToken = nextPageToken
			l.buffer = ret
			l.exhausted = len(nextPageToken) == 0
		}

		v := l.buffer[0]
		l.buffer = l.buffer[1:]

		if v.IsDir || v.Key < l.startPath {
			continue
		}

		return iter.Value(&FileMeta{
			path:         v.Key,
			size:         uint64(v.Size),
			timeModified: v.ModTime,
		}), nil
	}
}

func (l *listingIter) Return(ctx context.Context) (iter.Result[*FileMeta], error) {
	l.exhausted = true
	l.buffer = nil
	return iter.Done[*FileMeta](), nil
}
