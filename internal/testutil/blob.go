package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
)

// LocalDir returns a fresh temporary directory as a file:// url ending with "/".
func LocalDir(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("file://%s/", t.TempDir())
}

// WriteLines stores lines, joined by "\n", under key in the bucket at urlstr.
func WriteLines(t *testing.T, urlstr string, key string, lines ...string) {
	t.Helper()
	ctx := context.Background()

	b, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		t.Fatalf("open bucket %s: %v", urlstr, err)
	}
	defer b.Close()

	if err := b.WriteAll(ctx, key, []byte(strings.Join(lines, "\n")), nil); err != nil {
		t.Fatalf("write %s: %v", key, err)
	}
}

// ReadAll returns the content stored under key in the bucket at urlstr.
func ReadAll(t *testing.T, urlstr string, key string) string {
	t.Helper()
	ctx := context.Background()

	b, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		t.Fatalf("open bucket %s: %v", urlstr, err)
	}
	defer b.Close()

	data, err := b.ReadAll(ctx, key)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return string(data)
}

// RandomName returns prefix followed by a random suffix, for objects in shared buckets.
func RandomName(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
