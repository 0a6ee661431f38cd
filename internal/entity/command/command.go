// Package command defines the command envelope, decision outcome, and the
// registry that validates commands before they reach a decider.
package command

import (
	"encoding/json"
	"strings"

	"github.com/castlebay/deadline/internal/entity/event"
	apperrors "github.com/castlebay/deadline/internal/errors"
)

// Type identifies the command type string.
type Type string

// Command captures the canonical command envelope targeting a root instance.
type Command struct {
	Type        Type
	EntityType  string
	RootID      string
	PayloadJSON []byte
}

// PayloadValidator validates a payload JSON document.
type PayloadValidator func(json.RawMessage) error

// Definition registers metadata for a command type.
type Definition struct {
	Type            Type
	EntityType      string
	ValidatePayload PayloadValidator
}

// Rejection captures a domain-level reason a command was declined.
type Rejection struct {
	Code    string
	Message string
}

// Decision represents the pure outcome of handling a command.
type Decision struct {
	Events     []event.Event
	Rejections []Rejection
}

// Accept returns a decision that emits the provided events.
func Accept(events ...event.Event) Decision {
	return Decision{Events: append([]event.Event(nil), events...)}
}

// Reject returns a decision that carries the provided rejections.
func Reject(rejections ...Rejection) Decision {
	return Decision{Rejections: append([]Rejection(nil), rejections...)}
}

// Registry stores command definitions and validates commands.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new command type definition to the registry.
func (r *Registry) Register(def Definition) error {
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return apperrors.New(apperrors.CodeCommandInvalid, "command type is required")
	}
	def.EntityType = strings.TrimSpace(def.EntityType)
	if def.EntityType == "" {
		return apperrors.New(apperrors.CodeCommandInvalid, "command entity type is required")
	}
	if _, exists := r.definitions[def.Type]; exists {
		return apperrors.Newf(apperrors.CodeCommandInvalid, "command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ValidateForDecision validates and normalizes a command before decision
// handling.
func (r *Registry) ValidateForDecision(cmd Command) (Command, error) {
	cmd.Type = Type(strings.TrimSpace(string(cmd.Type)))
	if cmd.Type == "" {
		return Command{}, apperrors.New(apperrors.CodeCommandInvalid, "command type is required")
	}
	def, ok := r.definitions[cmd.Type]
	if !ok {
		return Command{}, apperrors.Newf(apperrors.CodeCommandTypeUnknown, "command type is not registered: %s", cmd.Type)
	}

	cmd.EntityType = strings.TrimSpace(cmd.EntityType)
	if cmd.EntityType == "" {
		cmd.EntityType = def.EntityType
	}
	if cmd.EntityType != def.EntityType {
		return Command{}, apperrors.Newf(apperrors.CodeCommandInvalid, "command %s targets %s, not %s", cmd.Type, def.EntityType, cmd.EntityType)
	}
	cmd.RootID = strings.TrimSpace(cmd.RootID)
	if cmd.RootID == "" {
		return Command{}, apperrors.New(apperrors.CodeCommandInvalid, "root id is required")
	}

	if len(cmd.PayloadJSON) == 0 {
		cmd.PayloadJSON = []byte("{}")
	}
	if !json.Valid(cmd.PayloadJSON) {
		return Command{}, apperrors.New(apperrors.CodeCommandInvalid, "payload json must be valid")
	}
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(json.RawMessage(cmd.PayloadJSON)); err != nil {
			return Command{}, apperrors.Wrap(err, apperrors.CodeCommandInvalid, "payload invalid")
		}
	}
	return cmd, nil
}

// Definition returns the command definition for a given type.
func (r *Registry) Definition(cmdType Type) (Definition, bool) {
	def, ok := r.definitions[Type(strings.TrimSpace(string(cmdType)))]
	return def, ok
}
