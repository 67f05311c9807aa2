package class

import (
	"github.com/kittclouds/scrollforge/internal/rng"
	"github.com/kittclouds/scrollforge/internal/store"
)

// Runtime is the narrow slice of the generation engine that attribute
// and injector commands need in order to apply or revert themselves.
// It is declared here, at the consumer, rather than in pkg/engine, so
// that pkg/engine can depend on pkg/class without pkg/class ever
// depending back on pkg/engine — the Go answer to the original's
// freely-circular single-crate module graph.
type Runtime interface {
	Tx() *store.WriteTx
	Randomizer() *rng.Randomizer
	Class(name string) (*Class, bool)
	Global(name string) (interface{}, bool)
	Hierarchy(class string) []string

	// RenderTemplate evaluates a Jinja-style template body against ctx.
	RenderTemplate(src string, ctx map[string]interface{}) (string, error)
	// RenderEntity produces the JSON-shaped projection of an
	// entity, used by the Prerendered command to render the entity it
	// is applied to from the attributes it holds so far.
	RenderEntity(uid string, isRoot bool) (map[string]interface{}, error)

	// Roll generates a brand new entity of class under parentUID,
	// recording parentAttr as the attribute name on parentUID's own
	// entity that owns this child ("" if none, e.g. the sandbox root),
	// and returns its uid.
	Roll(className, parentUID, parentAttr string, gctx GenContext) (string, error)
	// Unroll tears down a previously rolled entity, replaying its
	// commands' Revert methods.
	Unroll(uid string) error
}

// GenContextKind tags which generation phase is in effect, controlling
// how AttrCommand/InjectCommand implementations apply and revert
// themselves.
type GenContextKind int

const (
	Rolling GenContextKind = iota
	Appending
	Rerolling
	Unrolling
	Restoring
)

// AppendPayload carries the detail needed when GenContextKind is
// Appending: which concrete class was chosen for the appended entity
// and, once rolled, its uid.
type AppendPayload struct {
	ClassOverride string
	AppendedUID   string
}

// RerollPayload carries the detail needed when GenContextKind is
// Rerolling: the uid being replaced, its concrete class override, and
// the freshly rolled replacement's uid.
type RerollPayload struct {
	ExistingUID   string
	ClassOverride string
	NewUID        string
}

// GenContext is the generation-context tag threaded through every
// Apply/Inject call so a command can tell a first roll from a reroll,
// append, or restore.
type GenContext struct {
	Kind   GenContextKind
	Append AppendPayload
	Reroll RerollPayload
}

// AttrCommand is the closed set of attribute-producing command kinds:
// ValueAssign, WeakAssign, DiceRoll, Prerendered, RollFromList,
// RollFromVariable, ContextRef, RollEntity, UseEntity, PickEntity.
// uid is the owning entity's uid, needed by the three commands that
// roll, use, or pick a child entity of their own.
type AttrCommand interface {
	Kind() string
	Apply(rt Runtime, gctx GenContext, uid string, entity map[string]interface{}, attrName string) error
	Revert(rt Runtime, uid string, entity map[string]interface{}, attrName string) error
}

// InjectCommand is the closed set of injector command kinds: SetValue,
// DiceRoll, RollFromList, CopyValue, Pointer.
type InjectCommand interface {
	Kind() string
	Inject(rt Runtime, gctx GenContext, entity map[string]interface{}, attrName string) error
	Eject(rt Runtime, entity map[string]interface{}, attrName string) error
}

// Valuer is implemented by the string-valued AttrCommand kinds
// (ValueAssign, WeakAssign) so the renderer can recall the source
// literal recorded at parse time — needed when WeakAssign has stored
// a null placeholder on the entity itself.
type Valuer interface {
	Value() interface{}
}
