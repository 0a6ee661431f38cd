package deadline

import (
	"strings"

	apperrors "github.com/castlebay/deadline/internal/errors"
)

// PayloadTypeAny matches any payload-bearing deadline. An empty PayloadType
// matches payloadless deadlines only.
const PayloadTypeAny = "*"

// Handler declares an invokable capability for fired deadlines. The table of
// handlers is built once at configuration time and read-only afterwards.
type Handler struct {
	// EntityType is the target entity type the handler is registered on.
	EntityType string
	// Member optionally names the member collection the handler belongs to;
	// empty means the handler receives root-scoped deadlines.
	Member string
	// Name filters by deadline name; empty matches any name.
	Name string
	// PayloadType filters by payload type tag: empty matches payloadless
	// deadlines only, PayloadTypeAny matches any payload, and a dotted tag
	// matches that tag or any more specific subtype of it.
	PayloadType string
	// Handle is invoked with the fired deadline.
	Handle HandlerFunc
}

func (h Handler) key() string {
	return h.EntityType + "\x00" + h.Member + "\x00" + h.Name + "\x00" + h.PayloadType
}

// Registry stores deadline handlers and resolves fired deadlines to the
// single best-matching handler.
type Registry struct {
	handlers map[string][]Handler // entityType\x00member -> handlers
	keys     map[string]struct{}
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string][]Handler),
		keys:     make(map[string]struct{}),
	}
}

// Register adds a handler. Registering a second handler with the same target,
// name filter, and payload filter is an ambiguity configuration error so that
// misconfiguration halts startup instead of surfacing at fire time.
func (r *Registry) Register(h Handler) error {
	h.EntityType = strings.TrimSpace(h.EntityType)
	h.Member = strings.TrimSpace(h.Member)
	h.Name = strings.TrimSpace(h.Name)
	h.PayloadType = strings.TrimSpace(h.PayloadType)
	if h.EntityType == "" {
		return apperrors.New(apperrors.CodeHandlerInvalid, "handler entity type is required")
	}
	if h.Handle == nil {
		return apperrors.New(apperrors.CodeHandlerInvalid, "handler func is required")
	}
	key := h.key()
	if _, exists := r.keys[key]; exists {
		return apperrors.New(apperrors.CodeHandlerAmbiguous, "handler already registered for this target, name, and payload filter").WithMetadata(map[string]string{
			"entity_type":   h.EntityType,
			"member":        h.Member,
			"deadline_name": h.Name,
			"payload_type":  h.PayloadType,
		})
	}
	r.keys[key] = struct{}{}
	target := h.EntityType + "\x00" + h.Member
	r.handlers[target] = append(r.handlers[target], h)
	return nil
}

// Resolve selects the handler for a fired deadline. Priority: a handler
// filtered to the exact deadline name wins over wildcard-name handlers; among
// payload filters an exact tag beats a subtype prefix, a longer prefix beats
// a shorter one, and PayloadTypeAny ranks last. Payloadless deadlines resolve
// only to payloadless handlers.
func (r *Registry) Resolve(entityType, member, name string, payload *Payload) (Handler, error) {
	var (
		best      Handler
		bestRank  int
		tied      bool
		foundBest bool
	)
	for _, h := range r.handlers[entityType+"\x00"+member] {
		if h.Name != "" && h.Name != name {
			continue
		}
		payloadRank, ok := payloadRank(h.PayloadType, payload)
		if !ok {
			continue
		}
		rank := payloadRank
		if h.Name == name {
			rank += nameFilterRank
		}
		switch {
		case !foundBest || rank > bestRank:
			best, bestRank, tied, foundBest = h, rank, false, true
		case rank == bestRank:
			tied = true
		}
	}
	if !foundBest {
		return Handler{}, apperrors.New(apperrors.CodeHandlerNotFound, "no handler matches deadline").WithMetadata(map[string]string{
			"entity_type":   entityType,
			"member":        member,
			"deadline_name": name,
		})
	}
	if tied {
		return Handler{}, apperrors.New(apperrors.CodeHandlerAmbiguous, "multiple equally-specific handlers match deadline").WithMetadata(map[string]string{
			"entity_type":   entityType,
			"member":        member,
			"deadline_name": name,
		})
	}
	return best, nil
}

// nameFilterRank dominates any payload specificity so an exact name filter
// always wins.
const nameFilterRank = 1 << 16

// payloadRank scores how specifically a handler payload filter matches the
// deadline payload. Exact tag > longer subtype prefix > any.
func payloadRank(filter string, payload *Payload) (int, bool) {
	if payload == nil {
		if filter == "" {
			return 1, true
		}
		return 0, false
	}
	switch {
	case filter == "":
		return 0, false
	case filter == PayloadTypeAny:
		return 1, true
	case filter == payload.Type:
		return nameFilterRank - 1, true
	case strings.HasPrefix(payload.Type, filter+"."):
		return 1 + strings.Count(filter, ".") + 1, true
	default:
		return 0, false
	}
}
