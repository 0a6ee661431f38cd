package entity

import (
	"context"
	"errors"
	"sync"

	"github.com/castlebay/deadline/internal/deadline"
	"github.com/castlebay/deadline/internal/entity/command"
	"github.com/castlebay/deadline/internal/entity/event"
	apperrors "github.com/castlebay/deadline/internal/errors"
	"github.com/castlebay/deadline/internal/journal"
	"github.com/castlebay/deadline/internal/platform/clock"
)

var (
	// ErrTypesRequired indicates a missing type registry.
	ErrTypesRequired = errors.New("entity type registry is required")
	// ErrJournalRequired indicates a missing journal.
	ErrJournalRequired = errors.New("journal is required")
	// ErrCommandsRequired indicates a missing command registry.
	ErrCommandsRequired = errors.New("command registry is required")
)

// Runtime executes commands and deadline effects against entity instances.
// All mutations to one instance serialize through a per-instance mutex, so
// a deadline firing and a command targeting the same root never interleave.
type Runtime struct {
	types    *Types
	commands *command.Registry
	journal  journal.Journal
	clock    clock.Clock

	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	instances map[string]*instance
}

// instance caches folded state alongside the last applied sequence.
type instance struct {
	state   any
	lastSeq uint64
}

// NewRuntime wires a runtime. The clock may be nil and defaults to the
// system clock.
func NewRuntime(types *Types, commands *command.Registry, jnl journal.Journal, clk clock.Clock) (*Runtime, error) {
	if types == nil {
		return nil, ErrTypesRequired
	}
	if commands == nil {
		return nil, ErrCommandsRequired
	}
	if jnl == nil {
		return nil, ErrJournalRequired
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Runtime{
		types:     types,
		commands:  commands,
		journal:   jnl,
		clock:     clk,
		locks:     make(map[string]*sync.Mutex),
		instances: make(map[string]*instance),
	}, nil
}

// Result captures command execution outcomes.
type Result struct {
	Decision command.Decision
	State    any
}

// Execute validates a command, loads the target instance, decides, and
// appends plus folds any resulting events. Deciders run with the target
// scope on the context so they can schedule deadlines against it.
func (r *Runtime) Execute(ctx context.Context, cmd command.Command) (Result, error) {
	validated, err := r.commands.ValidateForDecision(cmd)
	if err != nil {
		return Result{}, err
	}
	cmd = validated

	typ, ok := r.types.Get(cmd.EntityType)
	if !ok {
		return Result{}, apperrors.Newf(apperrors.CodeEntityTypeUnknown, "entity type is not registered: %s", cmd.EntityType)
	}
	if typ.Decide == nil {
		return Result{}, apperrors.Newf(apperrors.CodeCommandInvalid, "entity type %s has no decider", typ.Name)
	}

	key := instanceKey(typ.Name, cmd.RootID)
	lock := r.instanceLock(key)
	lock.Lock()
	defer lock.Unlock()

	inst, err := r.load(ctx, typ, cmd.RootID, key)
	if err != nil {
		return Result{}, err
	}
	if typ.Kind == KindProcess && typ.Ended != nil && inst.lastSeq > 0 && typ.Ended(inst.state) {
		return Result{}, apperrors.Newf(apperrors.CodeInstanceEnded, "%s/%s has ended", typ.Name, cmd.RootID)
	}

	ctx = deadline.WithScope(ctx, deadline.NewScope(typ.Name, cmd.RootID))
	decision := typ.Decide(inst.state, cmd, r.clock.Now)
	if len(decision.Rejections) > 0 {
		return Result{Decision: decision, State: inst.state}, nil
	}

	appended := make([]event.Event, 0, len(decision.Events))
	for _, evt := range decision.Events {
		evt.StreamID = cmd.RootID
		evt.EntityType = typ.Name
		if evt.Timestamp.IsZero() {
			evt.Timestamp = r.clock.Now()
		}
		stored, err := r.journal.Append(ctx, evt)
		if err != nil {
			return Result{}, err
		}
		appended = append(appended, stored)
		if err := r.fold(inst, typ, stored); err != nil {
			return Result{}, err
		}
	}
	decision.Events = appended
	return Result{Decision: decision, State: inst.state}, nil
}

// Tx is the handle handed to a dispatch section. Appends go through the
// journal and fold into the locked instance.
type Tx struct {
	runtime *Runtime
	typ     Type
	rootID  string
	inst    *instance
}

// State returns the current folded state of the locked instance.
func (tx *Tx) State() any {
	return tx.inst.state
}

// Apply appends an event to the instance's stream and folds it into state.
func (tx *Tx) Apply(ctx context.Context, evt event.Event) error {
	evt.StreamID = tx.rootID
	evt.EntityType = tx.typ.Name
	if evt.Timestamp.IsZero() {
		evt.Timestamp = tx.runtime.clock.Now()
	}
	stored, err := tx.runtime.journal.Append(ctx, evt)
	if err != nil {
		return err
	}
	return tx.runtime.fold(tx.inst, tx.typ, stored)
}

// Enter runs fn inside the single-writer section for the instance the scope
// addresses. A scope whose root never emitted events, whose process has
// ended, or whose member id is absent from the member index resolves to
// TargetUnavailable.
func (r *Runtime) Enter(ctx context.Context, scope deadline.Scope, fn func(*Tx) error) error {
	if err := scope.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeEntityScopeInvalid, "invalid scope")
	}
	typ, ok := r.types.Get(scope.EntityType)
	if !ok {
		return apperrors.Newf(apperrors.CodeEntityTypeUnknown, "entity type is not registered: %s", scope.EntityType)
	}
	collection, memberID, hasMember := scope.Member()
	if hasMember {
		if _, ok := typ.Members[collection]; !ok {
			return apperrors.Newf(apperrors.CodeEntityScopeInvalid, "entity type %s has no member collection %q", typ.Name, collection)
		}
	}

	key := instanceKey(typ.Name, scope.RootID())
	lock := r.instanceLock(key)
	lock.Lock()
	defer lock.Unlock()

	inst, err := r.load(ctx, typ, scope.RootID(), key)
	if err != nil {
		return err
	}
	if inst.lastSeq == 0 {
		return apperrors.Newf(apperrors.CodeTargetUnavailable, "%s does not exist", scope)
	}
	if typ.Kind == KindProcess && typ.Ended != nil && typ.Ended(inst.state) {
		return apperrors.Newf(apperrors.CodeTargetUnavailable, "%s has ended", scope)
	}
	if hasMember {
		index := typ.Members[collection]
		if index == nil || !index(inst.state, memberID) {
			return apperrors.Newf(apperrors.CodeTargetUnavailable, "%s not found", scope)
		}
	}

	return fn(&Tx{runtime: r, typ: typ, rootID: scope.RootID(), inst: inst})
}

// load returns the cached instance or rebuilds it from the journal.
func (r *Runtime) load(ctx context.Context, typ Type, rootID, key string) (*instance, error) {
	r.mu.Lock()
	inst, ok := r.instances[key]
	r.mu.Unlock()
	if ok {
		return inst, nil
	}

	inst = &instance{state: typ.New()}
	const pageSize = 200
	for {
		page, err := r.journal.ListEvents(ctx, rootID, inst.lastSeq, pageSize)
		if err != nil {
			return nil, err
		}
		for _, evt := range page {
			state, err := typ.Fold(inst.state, evt)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeEventInvalid, "fold during replay")
			}
			inst.state = state
			inst.lastSeq = evt.Seq
		}
		if len(page) < pageSize {
			break
		}
	}

	r.mu.Lock()
	r.instances[key] = inst
	r.mu.Unlock()
	return inst, nil
}

// fold applies one stored event to a locked instance.
func (r *Runtime) fold(inst *instance, typ Type, evt event.Event) error {
	state, err := typ.Fold(inst.state, evt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeEventInvalid, "fold")
	}
	inst.state = state
	inst.lastSeq = evt.Seq
	return nil
}

func (r *Runtime) instanceLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

func instanceKey(entityType, rootID string) string {
	return entityType + "\x00" + rootID
}
