package errno

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

var ErrIllegalState = errors.New("illegal state")
var ErrIllegalArgument = errors.New("illegal argument")
var ErrNullPointer = errors.New("null pointer")
var ErrFileAlreadyExists = errors.New("file already exists")
var ErrFileNotFound = errors.New("file not found")

// ErrProtocolViolation is returned when an iterator operation is issued
// while a previous one on the same iterator has not settled yet.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrCloseFailure marks a failure of a source's close capability that was
// suppressed during an abrupt close.
var ErrCloseFailure = errors.New("close failure")

// ErrNotAsyncIterable is returned by higher layers that expected a value
// exposing the async iteration capability.
var ErrNotAsyncIterable = errors.New("not async iterable")

func ProtocolViolation(op string) error {
	return eris.Wrapf(ErrProtocolViolation, "%s called while another operation is in flight", op)
}

// CloseFailure marks err as a suppressed close failure. Both ErrCloseFailure
// and err stay reachable with errors.Is and errors.As.
func CloseFailure(err error) error {
	return eris.Wrap(errors.Join(ErrCloseFailure, err), "source close failed")
}

func NotAsyncIterable(v any) error {
	return eris.Wrapf(ErrNotAsyncIterable, "subscription stream must be async iterable, received: %T", v)
}

func UnsupportedFileSystem(msg string) error {
	return eris.Wrap(ErrIllegalArgument, msg)
}

func IllegalArgument(msg string) error {
	return eris.Wrap(ErrIllegalArgument, msg)
}

func IllegalStateError(msg string) error {
	return eris.Wrap(ErrIllegalState, msg)
}

func NullPointer(name string) error {
	return eris.Wrap(ErrNullPointer, name+" must not be nil")
}

func FileAlreadyExists(path string) error {
	return eris.Wrap(ErrFileAlreadyExists, fmt.Sprintf("%s already exists", path))
}

func FileNotFound(path string) error {
	return eris.Wrap(ErrFileNotFound, fmt.Sprintf("%s not found", path))
}
