package store

import (
	"context"
	"io"

	"github.com/csimplestring/asynciter/iter"
	goparquet "github.com/fraugster/parquet-go"
	parq "github.com/fraugster/parquet-go/parquet"
	"github.com/fraugster/parquet-go/parquetschema"
	"github.com/rotisserie/eris"
	"gocloud.dev/blob"
)

func (b *BlobStore) ReadRows(ctx context.Context, path string) (iter.Source[map[string]any], error) {
	r, err := b.newReader(ctx, path)
	if err != nil {
		return nil, err
	}

	fr, err := goparquet.NewFileReader(r)
	if err != nil {
		_ = r.Close()
		return nil, eris.Wrap(err, "open parquet reader for "+path)
	}

	return iter.FromIter[map[string]any](&parquetRowIter{br: r, reader: fr}), nil
}

func (b *BlobStore) WriteRows(ctx context.Context, path string, schemaDef string, rows iter.Source[map[string]any], overwrite bool) error {
	schema, err := parquetschema.ParseSchemaDefinition(schemaDef)
	if err != nil {
		closeSource(ctx, rows)
		return eris.Wrap(err, "parsing schema definition")
	}

	err = b.write(ctx, path, overwrite, func(w io.Writer) error {
		fw := goparquet.NewFileWriter(w,
			goparquet.WithSchemaDefinition(schema),
			goparquet.WithCompressionCodec(parq.CompressionCodec_SNAPPY))

		if err := iter.ForEach(ctx, rows, fw.AddData); err != nil {
			return eris.Wrap(err, "parquet writer writing")
		}
		if err := fw.Close(); err != nil {
			return eris.Wrap(err, "parquet file writer close error")
		}
		return nil
	})
	if err != nil {
		closeSource(ctx, rows)
	}
	return err
}

// closeSource returns src when writing stopped before it was drained.
func closeSource[T any](ctx context.Context, src iter.Source[T]) {
	if r, ok := src.(iter.Returner[T]); ok {
		_, _ = r.Return(context.WithoutCancel(ctx))
	}
}

type parquetRowIter struct {
	br     *blob.Reader
	reader *goparquet.FileReader
}

func (p *parquetRowIter) Next() (map[string]any, error) {
	data, err := p.reader.NextRow()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to read row")
	}
	return data, nil
}

func (p *parquetRowIter) Close() error {
	return p.br.Close()
}
