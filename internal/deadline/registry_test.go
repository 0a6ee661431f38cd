package deadline

import (
	"context"
	"encoding/json"
	"testing"

	apperrors "github.com/castlebay/deadline/internal/errors"
)

func noopHandler(context.Context, Invocation) error { return nil }

func register(t *testing.T, r *Registry, h Handler) {
	t.Helper()
	if h.Handle == nil {
		h.Handle = noopHandler
	}
	if err := r.Register(h); err != nil {
		t.Fatalf("register %+v: %v", h, err)
	}
}

func payloadOf(typeTag string) *Payload {
	return &Payload{Type: typeTag, JSON: json.RawMessage(`{"id":"x"}`)}
}

func TestRegisterRejectsDuplicateFilter(t *testing.T) {
	r := NewRegistry()
	register(t, r, Handler{EntityType: "timer", Name: "expire", PayloadType: PayloadTypeAny})

	err := r.Register(Handler{EntityType: "timer", Name: "expire", PayloadType: PayloadTypeAny, Handle: noopHandler})
	if !apperrors.IsCode(err, apperrors.CodeHandlerAmbiguous) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeHandlerAmbiguous)
	}
}

func TestRegisterRequiresEntityTypeAndFunc(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Handler{Name: "expire", Handle: noopHandler}); !apperrors.IsCode(err, apperrors.CodeHandlerInvalid) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeHandlerInvalid)
	}
	if err := r.Register(Handler{EntityType: "timer", Name: "expire"}); !apperrors.IsCode(err, apperrors.CodeHandlerInvalid) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeHandlerInvalid)
	}
}

func TestResolvePrefersExactNameOverWildcard(t *testing.T) {
	r := NewRegistry()
	register(t, r, Handler{EntityType: "timer", Name: "", PayloadType: PayloadTypeAny})
	register(t, r, Handler{EntityType: "timer", Name: "expire", PayloadType: PayloadTypeAny})

	h, err := r.Resolve("timer", "", "expire", payloadOf("notice"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if h.Name != "expire" {
		t.Fatalf("resolved name filter %q, want %q", h.Name, "expire")
	}
}

func TestResolveMostSpecificPayloadType(t *testing.T) {
	r := NewRegistry()
	register(t, r, Handler{EntityType: "timer", PayloadType: PayloadTypeAny})
	register(t, r, Handler{EntityType: "timer", PayloadType: "notice"})
	register(t, r, Handler{EntityType: "timer", PayloadType: "notice.email"})

	h, err := r.Resolve("timer", "", "expire", payloadOf("notice.email.digest"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if h.PayloadType != "notice.email" {
		t.Fatalf("resolved payload filter %q, want %q", h.PayloadType, "notice.email")
	}

	h, err = r.Resolve("timer", "", "expire", payloadOf("notice.email"))
	if err != nil {
		t.Fatalf("resolve exact: %v", err)
	}
	if h.PayloadType != "notice.email" {
		t.Fatalf("resolved payload filter %q, want exact %q", h.PayloadType, "notice.email")
	}

	h, err = r.Resolve("timer", "", "expire", payloadOf("other"))
	if err != nil {
		t.Fatalf("resolve fallback: %v", err)
	}
	if h.PayloadType != PayloadTypeAny {
		t.Fatalf("resolved payload filter %q, want %q", h.PayloadType, PayloadTypeAny)
	}
}

func TestResolvePayloadlessDistinctFromNullPayload(t *testing.T) {
	r := NewRegistry()
	register(t, r, Handler{EntityType: "timer", PayloadType: ""})
	register(t, r, Handler{EntityType: "timer", PayloadType: PayloadTypeAny})

	h, err := r.Resolve("timer", "", "expire", nil)
	if err != nil {
		t.Fatalf("resolve payloadless: %v", err)
	}
	if h.PayloadType != "" {
		t.Fatalf("payloadless deadline resolved to %q, want payloadless handler", h.PayloadType)
	}

	// A declared payload whose JSON value is null is still payload-bearing.
	h, err = r.Resolve("timer", "", "expire", &Payload{Type: "notice", JSON: json.RawMessage("null")})
	if err != nil {
		t.Fatalf("resolve null payload: %v", err)
	}
	if h.PayloadType != PayloadTypeAny {
		t.Fatalf("null payload resolved to %q, want %q", h.PayloadType, PayloadTypeAny)
	}
}

func TestResolveMemberHandlersSeparateFromRoot(t *testing.T) {
	r := NewRegistry()
	register(t, r, Handler{EntityType: "timer", PayloadType: PayloadTypeAny})
	register(t, r, Handler{EntityType: "timer", Member: "members", PayloadType: PayloadTypeAny})

	h, err := r.Resolve("timer", "members", "expire", payloadOf("notice"))
	if err != nil {
		t.Fatalf("resolve member: %v", err)
	}
	if h.Member != "members" {
		t.Fatalf("resolved member %q, want %q", h.Member, "members")
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := NewRegistry()
	register(t, r, Handler{EntityType: "timer", PayloadType: ""})

	_, err := r.Resolve("timer", "", "expire", payloadOf("notice"))
	if !apperrors.IsCode(err, apperrors.CodeHandlerNotFound) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeHandlerNotFound)
	}

	_, err = r.Resolve("other", "", "expire", nil)
	if !apperrors.IsCode(err, apperrors.CodeHandlerNotFound) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeHandlerNotFound)
	}
}

func TestResolvePayloadlessIgnoresAnyHandler(t *testing.T) {
	r := NewRegistry()
	register(t, r, Handler{EntityType: "timer", PayloadType: PayloadTypeAny})

	_, err := r.Resolve("timer", "", "expire", nil)
	if !apperrors.IsCode(err, apperrors.CodeHandlerNotFound) {
		t.Fatalf("err = %v, want %s: payloadless deadlines match payloadless handlers only", err, apperrors.CodeHandlerNotFound)
	}
}
