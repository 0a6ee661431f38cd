package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorStringIncludesCodeAndMetadata(t *testing.T) {
	err := New(CodeScheduleUnknown, "schedule not found").WithMetadata(map[string]string{
		"schedule_id": "sched-1",
	})

	got := err.Error()
	if !strings.Contains(got, "SCHEDULE_UNKNOWN") {
		t.Fatalf("error string %q missing code", got)
	}
	if !strings.Contains(got, "schedule_id=sched-1") {
		t.Fatalf("error string %q missing metadata", got)
	}
}

func TestIsMatchesByCode(t *testing.T) {
	base := New(CodeHandlerAmbiguous, "two handlers match")
	derived := base.WithMetadata(map[string]string{"deadline_name": "expire"})

	if !stderrors.Is(derived, base) {
		t.Fatal("expected derived error to match base by code")
	}
	if stderrors.Is(derived, New(CodeHandlerNotFound, "no handler")) {
		t.Fatal("expected different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, CodeDispatchFailed, "handler invocation failed")

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found")
	}
	if GetCode(err) != CodeDispatchFailed {
		t.Fatalf("code = %s, want %s", GetCode(err), CodeDispatchFailed)
	}
}

func TestGetCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeTargetUnavailable, "entity ended"))
	if GetCode(err) != CodeTargetUnavailable {
		t.Fatalf("code = %s, want %s", GetCode(err), CodeTargetUnavailable)
	}
	if GetCode(stderrors.New("plain")) != CodeUnknown {
		t.Fatal("expected CodeUnknown for non-domain error")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	cases := []struct {
		code Code
		want codes.Code
	}{
		{CodeScheduleNameEmpty, codes.InvalidArgument},
		{CodeHandlerAmbiguous, codes.FailedPrecondition},
		{CodeScheduleUnknown, codes.NotFound},
		{CodeTargetUnavailable, codes.NotFound},
		{CodeDispatchFailed, codes.Internal},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range cases {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("GRPCCode(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestHandleErrorAttachesErrorInfo(t *testing.T) {
	err := HandleError(New(CodeHandlerNotFound, "no handler for deadline").WithMetadata(map[string]string{
		"deadline_name": "expire",
	}))

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected grpc status, got %v", err)
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("status code = %v, want %v", st.Code(), codes.NotFound)
	}

	var info *errdetails.ErrorInfo
	for _, detail := range st.Details() {
		if ei, isInfo := detail.(*errdetails.ErrorInfo); isInfo {
			info = ei
		}
	}
	if info == nil {
		t.Fatal("expected ErrorInfo detail")
	}
	if info.GetReason() != string(CodeHandlerNotFound) {
		t.Fatalf("reason = %q, want %q", info.GetReason(), CodeHandlerNotFound)
	}
	if info.GetMetadata()["deadline_name"] != "expire" {
		t.Fatalf("metadata = %v, want deadline_name=expire", info.GetMetadata())
	}
}

func TestHandleErrorUnknown(t *testing.T) {
	err := HandleError(stderrors.New("boom"))
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected grpc status, got %v", err)
	}
	if st.Code() != codes.Internal {
		t.Fatalf("status code = %v, want %v", st.Code(), codes.Internal)
	}
}

func TestHandleErrorNil(t *testing.T) {
	if err := HandleError(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
