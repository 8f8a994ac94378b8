package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorString(t *testing.T) {
	err := Wrap(stderrors.New("device busy"), CodeCameraOpenFailed, "open camera").
		WithMetadata("index", "0")

	want := "[CAMERA_OPEN_FAILED] open camera map[index:0] caused by: device busy"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	base := New(CodeConfigInvalid, "window_seconds must be positive")
	wrapped := fmt.Errorf("update settings: %w", base)

	if !IsCode(wrapped, CodeConfigInvalid) {
		t.Error("IsCode should see through fmt.Errorf wrapping")
	}
	if IsCode(wrapped, CodeInternal) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(stderrors.New("plain"), CodeInternal) {
		t.Error("IsCode matched a plain error")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeCameraOpenFailed, codes.Unavailable},
		{CodeConfigInvalid, codes.InvalidArgument},
		{CodeEstimatorFailed, codes.Internal},
		{Code("SOMETHING_NEW"), codes.Unknown},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x").GRPCCode(); got != tt.want {
			t.Errorf("GRPCCode(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestFromGRPCError(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{status.Error(codes.Unavailable, "down"), CodeEstimatorUnavailable},
		{status.Error(codes.DeadlineExceeded, "slow"), CodeTimeout},
		{status.Error(codes.Internal, "boom"), CodeEstimatorFailed},
		{stderrors.New("not grpc"), CodeUnknown},
		{New(CodeStorageWriteFailed, "redis"), CodeStorageWriteFailed},
	}
	for _, tt := range tests {
		if got := FromGRPCError(tt.err); got.Code != tt.want {
			t.Errorf("FromGRPCError(%v).Code = %s, want %s", tt.err, got.Code, tt.want)
		}
	}
	if FromGRPCError(nil) != nil {
		t.Error("FromGRPCError(nil) should be nil")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CodeEstimatorUnavailable, "x")) {
		t.Error("estimator unavailable should be retryable")
	}
	if IsRetryable(New(CodeConfigInvalid, "x")) {
		t.Error("invalid config should not be retryable")
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestGRPCStatusRoundTrip(t *testing.T) {
	err := New(CodeConfigMissing, "no settings")
	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("status.FromError should recognise AppError")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Errorf("status code = %v, want FailedPrecondition", st.Code())
	}
}
