package utils

import (
	"errors"
)

// Sentinels for errors.Is matching. Only the code is compared, so an error
// carrying an engine message still matches its class sentinel.
var (
	ErrStoreOpen = New(StoreOpenErrorCode, "store open failed")

	ErrStoreClosed = New(StoreClosedErrorCode, "store closed")

	ErrStoreIO = New(StoreIOErrorCode, "store io error")

	ErrBatchDestroyed = New(BatchDestroyedErrorCode, "batch destroyed")

	ErrIteratorInvalidPosition = New(IteratorInvalidPositionErrorCode, "iterator not positioned at an entry")

	ErrIteratorDestroyed = New(IteratorDestroyedErrorCode, "iterator destroyed")

	ErrSnapshotReleased = New(SnapshotReleasedErrorCode, "snapshot released")

	ErrForeignSnapshot = New(ForeignSnapshotErrorCode, "snapshot belongs to another store handle")

	ErrUnknownEngine = New(UnknownEngineErrorCode, "unknown engine")

	ErrUnknownOperation = New(UnknownOperationErrorCode, "unknown operation")

	ErrInvalidArgument = New(InvalidArgumentErrorCode, "invalid argument")
)

const (
	UnknownErrorCode                 = -1
	StoreOpenErrorCode               = 1000
	StoreClosedErrorCode             = 1001
	StoreIOErrorCode                 = 1002
	BatchDestroyedErrorCode          = 1003
	IteratorInvalidPositionErrorCode = 1004
	IteratorDestroyedErrorCode       = 1005
	SnapshotReleasedErrorCode        = 1006
	ForeignSnapshotErrorCode         = 1007
	UnknownEngineErrorCode           = 1008
	UnknownOperationErrorCode        = 1009
	InvalidArgumentErrorCode         = 1010
)

func New(code int, text string) error {
	return &ErrorCode{code: code, s: text}
}

// Wrap classifies err under code. The message is err's own message, byte for
// byte, so engine diagnostics reach the caller unmodified.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ErrorCode{code: code, s: err.Error(), cause: err}
}

// Errorf builds a classified error with its own text.
func Errorf(code int, text string) error {
	return &ErrorCode{code: code, s: text}
}

type ErrorCode struct {
	code  int
	s     string
	cause error
}

func (e *ErrorCode) Error() string {
	return e.s
}

func (e *ErrorCode) Code() int {
	return e.code
}

func (e *ErrorCode) Unwrap() error {
	return e.cause
}

func (e *ErrorCode) Is(target error) bool {
	t, ok := target.(*ErrorCode)
	if !ok {
		return false
	}
	return t.code == e.code
}

func ErrorToErrorCode(err error) *ErrorCode {
	if err == nil {
		return nil
	}

	var errorCode *ErrorCode
	if errors.As(err, &errorCode) {
		return errorCode
	}

	return New(UnknownErrorCode, err.Error()).(*ErrorCode)
}
