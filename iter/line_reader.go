package iter

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

var _ Source[string] = &LineReader{}
var _ Returner[string] = &LineReader{}

// FromReadCloser returns a source producing lines from the given reader.
// The reader is closed when the lines are exhausted or when Return is called.
func FromReadCloser(r io.ReadCloser) *LineReader {
	return &LineReader{
		reader:  r,
		scanner: bufio.NewScanner(r),
	}
}

type LineReader struct {
	reader    io.ReadCloser
	scanner   *bufio.Scanner
	closeOnce sync.Once
	closeErr  error
	done      bool
}

// Next implements Source[string].Next by returning the next line from the reader.
func (it *LineReader) Next(ctx context.Context) (Result[string], error) {
	if it.done {
		return Done[string](), nil
	}
	if err := ctx.Err(); err != nil {
		return Result[string]{}, err
	}

	if it.scanner.Scan() {
		return Value(it.scanner.Text()), nil
	}
	if err := it.scanner.Err(); err != nil {
		// a bufio.Scanner cannot resume after an error
		it.done = true
		_ = it.close()
		return Result[string]{}, eris.Wrap(err, "scanner scan error")
	}

	it.done = true
	return Done[string](), it.close()
}

func (it *LineReader) Return(ctx context.Context) (Result[string], error) {
	it.done = true
	return Done[string](), it.close()
}

func (it *LineReader) close() error {
	it.closeOnce.Do(func() {
		it.closeErr = it.reader.Close()
	})
	return it.closeErr
}

// AsReadCloser exposes a line source as an io.ReadCloser.
// Closing it returns the source when it has that capability.
func AsReadCloser(ctx context.Context, src Source[string], appendNewline bool) io.ReadCloser {
	return &readCloser{
		ctx:           ctx,
		src:           src,
		buf:           strings.NewReader(""),
		appendNewline: appendNewline,
	}
}

type readCloser struct {
	ctx           context.Context
	src           Source[string]
	buf           *strings.Reader
	appendNewline bool
	eof           bool
}

func (l *readCloser) Read(p []byte) (n int, err error) {
	// empty lines without a newline produce no bytes, keep pulling
	for l.buf.Len() == 0 {
		if l.eof {
			return 0, io.EOF
		}

		res, err := l.src.Next(l.ctx)
		if err != nil {
			return 0, err
		}
		if res.Done {
			l.eof = true
			return 0, io.EOF
		}

		str := res.Value
		if l.appendNewline {
			str = str + "\n"
		}
		l.buf.Reset(str)
	}

	return l.buf.Read(p)
}

func (l *readCloser) Close() error {
	r, ok := l.src.(Returner[string])
	if !ok {
		return nil
	}
	_, err := r.Return(l.ctx)
	return err
}
