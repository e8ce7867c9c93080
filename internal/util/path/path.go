package path

import (
	"net/url"
	"os"
	"strings"

	"github.com/barweiss/go-tuple"
	"github.com/csimplestring/asynciter/errno"
	"github.com/rotisserie/eris"
)

type blobURLBuilder func(u *url.URL) (string, error)

var blobURLBuilders = map[string]blobURLBuilder{
	"file":   fileBlobURL,
	"mem":    memBlobURL,
	"azblob": bucketBlobURL(nil),
	"gs":     bucketBlobURL(nil),
	"s3":     bucketBlobURL(s3EnvOptions),
}

// s3EnvOptions maps environment variables to s3blob url parameters, so
// localstack can stand in for S3.
var s3EnvOptions = []tuple.T2[string, string]{
	tuple.New2("AWS_ENDPOINT_URL", "endpoint"),
	tuple.New2("AWS_DISABLE_SSL", "disableSSL"),
	tuple.New2("AWS_S3_FORCE_PATH_STYLE", "s3ForcePathStyle"),
}

// ConvertToBlobURL turns a store directory into the url gocloud opens its bucket from:
//
//	file:///path/to/            -> file:///path/to/?create_dir=true&metadata=skip
//	gs://my-bucket/path/to/     -> gs://my-bucket?prefix=path/to/
//	azblob://my-bucket/path/to/ -> azblob://my-bucket?prefix=path/to/
//	s3://my-bucket/path/to/     -> s3://my-bucket?prefix=path/to/ plus the AWS_* overrides
//	mem://                      -> mem://
func ConvertToBlobURL(urlstr string) (string, error) {
	u, err := url.Parse(urlstr)
	if err != nil {
		return "", eris.Wrap(err, urlstr)
	}

	build, ok := blobURLBuilders[u.Scheme]
	if !ok {
		return "", errno.UnsupportedFileSystem("not supported scheme " + u.Scheme)
	}
	if len(u.Query()) > 0 {
		return "", errno.IllegalArgument("path url cannot have query parameters: " + urlstr)
	}
	return build(u)
}

func fileBlobURL(u *url.URL) (string, error) {
	v := url.Values{}
	v.Set("metadata", "skip")
	v.Set("create_dir", "true")
	u.RawQuery = v.Encode()
	return u.String(), nil
}

func memBlobURL(u *url.URL) (string, error) {
	return "mem://", nil
}

// bucketBlobURL keeps the bucket as host and moves the directory into the prefix parameter.
func bucketBlobURL(env []tuple.T2[string, string]) blobURLBuilder {
	return func(u *url.URL) (string, error) {
		v := url.Values{}
		if prefix := strings.TrimPrefix(u.Path, "/"); prefix != "" {
			v.Set("prefix", prefix)
		}
		for _, e := range env {
			if val, ok := os.LookupEnv(e.V1); ok {
				v.Set(e.V2, val)
			}
		}

		q, err := url.QueryUnescape(v.Encode())
		if err != nil {
			return "", eris.Wrap(err, "unescape query")
		}
		u.Path = ""
		u.RawQuery = q
		return u.String(), nil
	}
}
