// Package entity hosts the event-sourced entity runtime: type definitions,
// the command execution pipeline, and the single-writer section that
// deadline dispatch shares with commands.
package entity

import (
	"strings"
	"time"

	"github.com/castlebay/deadline/internal/entity/command"
	"github.com/castlebay/deadline/internal/entity/event"
	apperrors "github.com/castlebay/deadline/internal/errors"
)

// Kind distinguishes long-lived aggregates from processes that end.
type Kind string

const (
	// KindAggregate is a root entity with no terminal state.
	KindAggregate Kind = "aggregate"
	// KindProcess is a root entity that can end; once ended it no longer
	// accepts commands and absorbs late deadline fires.
	KindProcess Kind = "process"
)

// MemberIndex reports whether a member id exists in the given root state.
type MemberIndex func(state any, memberID string) bool

// DecideFunc returns a decision for a command against current state.
type DecideFunc func(state any, cmd command.Command, now func() time.Time) command.Decision

// FoldFunc applies one event to state and returns the updated state.
type FoldFunc func(state any, evt event.Event) (any, error)

// Type describes one entity type known to the runtime.
type Type struct {
	// Name is the entity type identifier used in scopes and commands.
	Name string
	// Kind selects aggregate or process semantics.
	Kind Kind
	// New returns the zero state for a fresh instance.
	New func() any
	// Decide handles validated commands for this type.
	Decide DecideFunc
	// Fold applies appended events to state.
	Fold FoldFunc
	// Members maps a member collection name to its index function. Scopes
	// addressing a collection absent from this map are invalid.
	Members map[string]MemberIndex
	// Ended reports whether a process instance has reached its terminal
	// state. Nil means the instance never ends.
	Ended func(state any) bool
}

// Types is the registry of entity types.
type Types struct {
	types map[string]Type
}

// NewTypes creates an empty type registry.
func NewTypes() *Types {
	return &Types{types: make(map[string]Type)}
}

// Register adds an entity type definition.
func (t *Types) Register(typ Type) error {
	typ.Name = strings.TrimSpace(typ.Name)
	if typ.Name == "" {
		return apperrors.New(apperrors.CodeEntityTypeUnknown, "entity type name is required")
	}
	if typ.Kind != KindAggregate && typ.Kind != KindProcess {
		return apperrors.Newf(apperrors.CodeEntityTypeUnknown, "entity type %s has invalid kind %q", typ.Name, typ.Kind)
	}
	if typ.New == nil {
		return apperrors.Newf(apperrors.CodeEntityTypeUnknown, "entity type %s requires a state constructor", typ.Name)
	}
	if typ.Fold == nil {
		return apperrors.Newf(apperrors.CodeEntityTypeUnknown, "entity type %s requires a fold function", typ.Name)
	}
	if _, exists := t.types[typ.Name]; exists {
		return apperrors.Newf(apperrors.CodeEntityTypeUnknown, "entity type already registered: %s", typ.Name)
	}
	t.types[typ.Name] = typ
	return nil
}

// Get returns the entity type definition for a name.
func (t *Types) Get(name string) (Type, bool) {
	typ, ok := t.types[strings.TrimSpace(name)]
	return typ, ok
}
