// Package errors provides the service's structured error type.
// Codes are stable strings shared with the estimator service and API clients.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies an AppError.
type Code string

const (
	CodeUnknown              Code = "UNKNOWN"
	CodeInternal             Code = "INTERNAL"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeUnavailable          Code = "UNAVAILABLE"
	CodeTimeout              Code = "TIMEOUT"
	CodeCancelled            Code = "CANCELLED"
	CodeCameraOpenFailed     Code = "CAMERA_OPEN_FAILED"
	CodeCameraReadFailed     Code = "CAMERA_READ_FAILED"
	CodeEstimatorUnavailable Code = "ESTIMATOR_UNAVAILABLE"
	CodeEstimatorFailed      Code = "ESTIMATOR_FAILED"
	CodeEstimatorBadResponse Code = "ESTIMATOR_BAD_RESPONSE"
	CodeStorageWriteFailed   Code = "STORAGE_WRITE_FAILED"
	CodeStorageQueryFailed   Code = "STORAGE_QUERY_FAILED"
	CodeConfigInvalid        Code = "CONFIG_INVALID"
	CodeConfigMissing        Code = "CONFIG_MISSING"
	CodeAlreadyRunning       Code = "ALREADY_RUNNING"
)

// grpcCodeMap maps error codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:              codes.Unknown,
	CodeInternal:             codes.Internal,
	CodeInvalidArgument:      codes.InvalidArgument,
	CodeUnavailable:          codes.Unavailable,
	CodeTimeout:              codes.DeadlineExceeded,
	CodeCancelled:            codes.Canceled,
	CodeCameraOpenFailed:     codes.Unavailable,
	CodeCameraReadFailed:     codes.Unavailable,
	CodeEstimatorUnavailable: codes.Unavailable,
	CodeEstimatorFailed:      codes.Internal,
	CodeEstimatorBadResponse: codes.Internal,
	CodeStorageWriteFailed:   codes.Internal,
	CodeStorageQueryFailed:   codes.Internal,
	CodeConfigInvalid:        codes.InvalidArgument,
	CodeConfigMissing:        codes.FailedPrecondition,
	CodeAlreadyRunning:       codes.FailedPrecondition,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus lets status.FromError recognise an AppError.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Error())
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError converts an error returned by the estimator into an AppError.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}
	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message(), Cause: err}
}

// grpcToCode maps gRPC codes back to our error codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.Unavailable:
		return CodeEstimatorUnavailable
	case codes.DeadlineExceeded:
		return CodeTimeout
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal, codes.Unknown:
		return CodeEstimatorFailed
	case codes.FailedPrecondition:
		return CodeConfigMissing
	default:
		return CodeUnknown
	}
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeCameraOpenFailed, CodeCameraReadFailed,
		CodeEstimatorUnavailable, CodeStorageWriteFailed:
		return true
	default:
		return false
	}
}
