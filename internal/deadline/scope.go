package deadline

import (
	"context"
	"strings"

	apperrors "github.com/castlebay/deadline/internal/errors"
)

// Scope identifies the logical entity that owns a deadline: an entity type
// plus an identifier path. The path is either [rootID] for a root-level
// scope or [rootID, member, memberID] for a member of a root instance.
type Scope struct {
	EntityType string
	Path       []string
}

// ErrScopeInvalid indicates a scope that cannot identify an entity.
var ErrScopeInvalid = apperrors.New(apperrors.CodeEntityScopeInvalid, "scope must name an entity type and identifier path")

// NewScope returns a root-level scope for the given entity type and id.
func NewScope(entityType, rootID string) Scope {
	return Scope{EntityType: entityType, Path: []string{rootID}}
}

// WithMember returns a copy of the scope narrowed to a member of the root
// instance. The member collection names the index used to resolve memberID.
func (s Scope) WithMember(collection, memberID string) Scope {
	return Scope{EntityType: s.EntityType, Path: []string{s.RootID(), collection, memberID}}
}

// Root returns the root-level scope, dropping any member segments.
func (s Scope) Root() Scope {
	return NewScope(s.EntityType, s.RootID())
}

// RootID returns the root instance identifier.
func (s Scope) RootID() string {
	if len(s.Path) == 0 {
		return ""
	}
	return s.Path[0]
}

// Member returns the member collection and identifier, if the scope names one.
func (s Scope) Member() (collection, memberID string, ok bool) {
	if len(s.Path) != 3 {
		return "", "", false
	}
	return s.Path[1], s.Path[2], true
}

// IsZero reports whether the scope is unset.
func (s Scope) IsZero() bool {
	return s.EntityType == "" && len(s.Path) == 0
}

// Equal reports whether two scopes identify the same target.
func (s Scope) Equal(other Scope) bool {
	if s.EntityType != other.EntityType || len(s.Path) != len(other.Path) {
		return false
	}
	for i := range s.Path {
		if s.Path[i] != other.Path[i] {
			return false
		}
	}
	return true
}

// Validate checks that the scope names a resolvable target.
func (s Scope) Validate() error {
	if strings.TrimSpace(s.EntityType) == "" {
		return ErrScopeInvalid
	}
	if len(s.Path) != 1 && len(s.Path) != 3 {
		return ErrScopeInvalid
	}
	for _, segment := range s.Path {
		if strings.TrimSpace(segment) == "" {
			return ErrScopeInvalid
		}
	}
	return nil
}

// String renders the scope as a slash-separated path.
func (s Scope) String() string {
	if s.IsZero() {
		return ""
	}
	return s.EntityType + "/" + strings.Join(s.Path, "/")
}

// ParseScope parses the string form produced by String.
func ParseScope(value string) (Scope, error) {
	segments := strings.Split(value, "/")
	var scope Scope
	switch len(segments) {
	case 2:
		scope = Scope{EntityType: segments[0], Path: []string{segments[1]}}
	case 4:
		scope = Scope{EntityType: segments[0], Path: []string{segments[1], segments[2], segments[3]}}
	default:
		return Scope{}, ErrScopeInvalid
	}
	if err := scope.Validate(); err != nil {
		return Scope{}, err
	}
	return scope, nil
}

// scopeContextKey is the context key for the ambient deadline scope.
type scopeContextKey struct{}

// WithScope stores the current entity scope in context. The entity execution
// pipeline sets this before invoking handlers so that schedules are always
// attributed to the entity that created them.
func WithScope(ctx context.Context, scope Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext returns the entity scope stored in context, if any.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	scope, ok := ctx.Value(scopeContextKey{}).(Scope)
	if !ok || scope.IsZero() {
		return Scope{}, false
	}
	return scope, true
}
