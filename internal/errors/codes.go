// Package errors provides structured, coded error handling for the deadline
// runtime.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Schedule errors
	CodeScheduleUnknown      Code = "SCHEDULE_UNKNOWN"
	CodeScheduleNameEmpty    Code = "SCHEDULE_NAME_EMPTY"
	CodeScheduleScopeMissing Code = "SCHEDULE_SCOPE_MISSING"
	CodeScheduleInPast       Code = "SCHEDULE_IN_PAST"
	CodeScheduleDuplicateID  Code = "SCHEDULE_DUPLICATE_ID"

	// Handler registration/resolution errors
	CodeHandlerAmbiguous Code = "HANDLER_AMBIGUOUS"
	CodeHandlerNotFound  Code = "HANDLER_NOT_FOUND"
	CodeHandlerInvalid   Code = "HANDLER_INVALID"

	// Dispatch errors
	CodeTargetUnavailable Code = "TARGET_UNAVAILABLE"
	CodeDispatchFailed    Code = "DISPATCH_FAILED"

	// Entity runtime errors
	CodeEntityTypeUnknown    Code = "ENTITY_TYPE_UNKNOWN"
	CodeEntityScopeInvalid   Code = "ENTITY_SCOPE_INVALID"
	CodeCommandTypeUnknown   Code = "COMMAND_TYPE_UNKNOWN"
	CodeCommandInvalid       Code = "COMMAND_INVALID"
	CodeEventTypeUnknown     Code = "EVENT_TYPE_UNKNOWN"
	CodeEventInvalid         Code = "EVENT_INVALID"
	CodeInstanceEnded        Code = "INSTANCE_ENDED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeScheduleNameEmpty,
		CodeScheduleScopeMissing,
		CodeScheduleInPast,
		CodeEntityScopeInvalid,
		CodeCommandInvalid,
		CodeEventInvalid,
		CodeHandlerInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeScheduleDuplicateID,
		CodeHandlerAmbiguous,
		CodeInstanceEnded:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeScheduleUnknown,
		CodeTargetUnavailable,
		CodeHandlerNotFound,
		CodeEntityTypeUnknown,
		CodeCommandTypeUnknown,
		CodeEventTypeUnknown:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
