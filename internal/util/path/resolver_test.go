package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		schema  string
		want    string
		wantErr bool
	}{
		{"local file path with schema", "file:///a/b/c", "file", "file:///a/b/c", false},
		{"local file path without schema", "/a/b/c", "file", "file:///a/b/c", false},
		{"local file path with non-standard schema", "file:/a/b/c", "file", "file:///a/b/c", false},
		{"local file relative path", "./a/b/c", "file", "./a/b/c", false},
		{"other schema", "gs://bucket/a", "gs", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.path, tt.schema)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
