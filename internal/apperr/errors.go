// Package apperr defines coded application errors and their gRPC status mapping.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeInternal         Code = "INTERNAL"
)

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error with the same code and message, so package-level
// sentinels keep working after Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error      { return New(CodeInvalidArgument, msg) }
func NotFound(msg string) error        { return New(CodeNotFound, msg) }
func AlreadyExists(msg string) error   { return New(CodeAlreadyExists, msg) }
func Forbidden(msg string) error       { return New(CodePermissionDenied, msg) }
func Unauthenticated(msg string) error { return New(CodeUnauthenticated, msg) }

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

var grpcCodes = map[Code]codes.Code{
	CodeInvalidArgument:  codes.InvalidArgument,
	CodeNotFound:         codes.NotFound,
	CodeAlreadyExists:    codes.AlreadyExists,
	CodePermissionDenied: codes.PermissionDenied,
	CodeUnauthenticated:  codes.Unauthenticated,
	CodeInternal:         codes.Internal,
}

// ToStatus converts err into a gRPC status error. Internal causes are not leaked to the
// caller, only the message of the application error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var ae *Error
	if !errors.As(err, &ae) {
		return status.Error(codes.Internal, "internal error")
	}
	c, ok := grpcCodes[ae.Code]
	if !ok {
		c = codes.Unknown
	}
	return status.Error(c, ae.Message)
}
