package errors

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorInfoDomain identifies this runtime in ErrorInfo details.
const ErrorInfoDomain = "deadline.castlebay.dev"

// HandleError converts domain errors to a gRPC status for client responses.
// Domain codes map through Code.GRPCCode and the machine-readable code plus
// metadata travel in an ErrorInfo detail.
func HandleError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.ToGRPCStatus()
	}

	// Unknown error - return internal with generic message
	return status.Error(codes.Internal, "an unexpected error occurred")
}

// ToGRPCStatus converts the error to a gRPC status with ErrorInfo details.
func (e *Error) ToGRPCStatus() error {
	if e == nil {
		return nil
	}
	st := status.New(e.Code.GRPCCode(), e.Message)
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Code),
		Domain:   ErrorInfoDomain,
		Metadata: e.Metadata,
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}
