package path

import (
	"path/filepath"
	"strings"

	"github.com/csimplestring/asynciter/errno"
)

// Canonicalize turns the spellings of a local path ("/a", "file:/a") into "file:///a".
// Relative paths are returned unchanged.
func Canonicalize(path string, schema string) (string, error) {
	if schema == "file" {
		return unixCanonicalize(path)
	}

	return "", errno.UnsupportedFileSystem(schema)
}

func unixCanonicalize(p string) (string, error) {
	if strings.HasPrefix(p, "file:///") {
		return p, nil
	}
	if strings.HasPrefix(p, "file:/") {
		return "file:///" + strings.TrimPrefix(p, "file:/"), nil
	}
	if filepath.IsAbs(p) {
		return "file://" + p, nil
	}

	return p, nil
}
