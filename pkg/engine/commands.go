// Package engine implements the generation engine: the concrete
// attribute/injector commands from the scroll class model, and the
// roll/unroll/reroll/append operations that drive them against the
// store and frame subsystem.
package engine

import (
	"github.com/kittclouds/scrollforge/internal/rng"
	"github.com/kittclouds/scrollforge/internal/store"
	"github.com/kittclouds/scrollforge/pkg/class"
	"github.com/kittclouds/scrollforge/pkg/helpers"
	"github.com/kittclouds/scrollforge/pkg/scrollerr"
)

// Assigner is the ValueAssign command: sets attrName to a fixed
// literal value every time it is applied.
type Assigner struct {
	Literal interface{}
}

func (c *Assigner) Kind() string { return "ValueAssign" }

func (c *Assigner) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	entity[attrName] = c.Literal
	return nil
}

func (c *Assigner) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	store.Clear(entity, attrName)
	return nil
}

// Value recalls the literal recorded at parse time, letting the
// renderer re-expand a template body without re-parsing the scroll.
func (c *Assigner) Value() interface{} { return c.Literal }

// WeakAssigner is the WeakAssign command: at apply time it always
// stores a null placeholder on the entity, deferring to the renderer
// to recall the source literal via Value() — the stored attribute
// only ever records "this was weak-assigned", not the value itself.
type WeakAssigner struct {
	Literal interface{}
}

func (c *WeakAssigner) Kind() string { return "WeakAssign" }

func (c *WeakAssigner) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	entity[attrName] = nil
	return nil
}

func (c *WeakAssigner) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	store.Clear(entity, attrName)
	return nil
}

// Value recalls the literal recorded at parse time, rendered in place
// of the stored null whenever the renderer encounters this attribute.
func (c *WeakAssigner) Value() interface{} { return c.Literal }

// DiceRoller is the DiceRoll command: rolls dice notation (e.g.
// "2d6+1") and stores the sum.
type DiceRoller struct {
	Spec string
}

func (c *DiceRoller) Kind() string { return "DiceRoll" }

func (c *DiceRoller) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	val, err := helpers.RollDice(rt.Randomizer(), c.Spec)
	if err != nil {
		return err
	}
	entity[attrName] = val
	return nil
}

func (c *DiceRoller) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	store.Clear(entity, attrName)
	return nil
}

// Prerenderer is the Prerendered command: renders a template against
// the entity's own attributes collected so far and stores the result
// as a plain string, letting later attributes reference earlier
// rendered text.
type Prerenderer struct {
	Template string
}

func (c *Prerenderer) Kind() string { return "Prerendered" }

func (c *Prerenderer) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	view, err := rt.RenderEntity(uid, true)
	if err != nil {
		return err
	}
	out, err := rt.RenderTemplate(c.Template, view)
	if err != nil {
		return err
	}
	entity[attrName] = out
	return nil
}

func (c *Prerenderer) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	store.Clear(entity, attrName)
	return nil
}

// ListRoller is the RollFromList command: uniformly picks one of
// Values, which has already had any `(xN)` multiplier expansion
// applied at parse time (see DESIGN.md's supplemented-features note).
type ListRoller struct {
	Values []interface{}
}

func (c *ListRoller) Kind() string { return "RollFromList" }

func (c *ListRoller) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	if len(c.Values) == 0 {
		return &scrollerr.MissingAttribute{Class: "", Attr: attrName}
	}
	entity[attrName] = rng.Choose(rt.Randomizer(), c.Values)
	return nil
}

func (c *ListRoller) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	store.Clear(entity, attrName)
	return nil
}

// VariableRoller is the RollFromVariable command: picks a random
// element from a top-level scroll variable holding a list.
type VariableRoller struct {
	VarName string
}

func (c *VariableRoller) Kind() string { return "RollFromVariable" }

func (c *VariableRoller) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	v, ok := rt.Global(c.VarName)
	if !ok {
		return &scrollerr.MissingVariable{Name: c.VarName}
	}
	list, ok := v.([]interface{})
	if !ok || len(list) == 0 {
		return &scrollerr.MissingVariable{Name: c.VarName}
	}
	entity[attrName] = rng.Choose(rt.Randomizer(), list)
	return nil
}

func (c *VariableRoller) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	store.Clear(entity, attrName)
	return nil
}

// ContextRef is the ContextRef command: marks attrName as a "context"
// indirection resolved at render time by walking the ancestor chain
// for SourceAttr.
type ContextRef struct {
	SourceAttr string
}

func (c *ContextRef) Kind() string { return "ContextRef" }

func (c *ContextRef) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	entity[attrName] = map[string]interface{}{"$indirection": "context", "attr": c.SourceAttr}
	return nil
}

func (c *ContextRef) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	store.Clear(entity, attrName)
	return nil
}

// RollEntity is the RollEntity command: rolls Min..Max (inclusive,
// default 1-and-scalar when neither bound is set) brand new
// sub-entities, each of a class chosen uniformly from ChildClasses,
// under uid. A scalar result stores a single {"$ref": uid} marker; an
// array result (both bounds set) stores a list of such markers.
// Injectors, if any, are applied to each freshly rolled child, never
// to uid itself.
type RollEntity struct {
	ChildClasses []string
	Min, Max     class.CardinalityValue
	IsArray      bool
	Injectors    class.Injectors
}

func (c *RollEntity) Kind() string { return "RollEntity" }

func (c *RollEntity) AddPrepender(attr string, cmd class.InjectCommand) {
	c.Injectors.Prependers = append(c.Injectors.Prependers, class.InjectorEntry{Attr: attr, Cmd: cmd})
}

func (c *RollEntity) AddAppender(attr string, cmd class.InjectCommand) {
	c.Injectors.Appenders = append(c.Injectors.Appenders, class.InjectorEntry{Attr: attr, Cmd: cmd})
}

func (c *RollEntity) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	// Appending into an existing attribute rolls exactly one new child
	// and adds it alongside whatever is already stored, rather than
	// re-rolling the whole set from scratch.
	if gctx.Kind == class.Appending {
		childUID, err := c.rollChild(rt, gctx, uid, attrName)
		if err != nil {
			return err
		}
		if err := injectIntoChild(rt, gctx, childUID, c.Injectors); err != nil {
			return err
		}
		ref := map[string]interface{}{"$ref": childUID}
		if c.IsArray {
			existing, _ := entity[attrName].([]interface{})
			entity[attrName] = append(existing, ref)
		} else {
			entity[attrName] = ref
		}
		return nil
	}

	n := c.count(rt)
	if !c.IsArray {
		childUID, err := c.rollChild(rt, gctx, uid, attrName)
		if err != nil {
			return err
		}
		if err := injectIntoChild(rt, gctx, childUID, c.Injectors); err != nil {
			return err
		}
		entity[attrName] = map[string]interface{}{"$ref": childUID}
		return nil
	}
	refs := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		childUID, err := c.rollChild(rt, gctx, uid, attrName)
		if err != nil {
			return err
		}
		if err := injectIntoChild(rt, gctx, childUID, c.Injectors); err != nil {
			return err
		}
		refs = append(refs, map[string]interface{}{"$ref": childUID})
	}
	entity[attrName] = refs
	return nil
}

func (c *RollEntity) count(rt class.Runtime) int {
	if !c.IsArray {
		return 1
	}
	minV, maxV := c.Min.Resolve(rt), c.Max.Resolve(rt)
	if maxV > minV {
		return rt.Randomizer().InRange(minV, maxV)
	}
	return minV
}

// rollChild rolls one new child of a class chosen uniformly from
// ChildClasses, unless gctx carries an Appending override naming the
// concrete class to roll instead. The child itself is always rolled
// under a plain Rolling context — Appending/Rerolling describe what is
// happening to uid's own attribute, not to the child's own generation.
func (c *RollEntity) rollChild(rt class.Runtime, gctx class.GenContext, uid, attrName string) (string, error) {
	chosen := c.ChildClasses[0]
	if len(c.ChildClasses) > 1 {
		chosen = rng.Choose(rt.Randomizer(), c.ChildClasses)
	}
	if gctx.Kind == class.Appending && gctx.Append.ClassOverride != "" {
		chosen = gctx.Append.ClassOverride
	}
	childUID, err := rt.Roll(chosen, uid, attrName, class.GenContext{Kind: class.Rolling})
	if err != nil {
		return "", err
	}
	if err := addUserToEntity(rt.Tx(), childUID, uid, attrName); err != nil {
		return "", err
	}
	return childUID, nil
}

func (c *RollEntity) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	switch v := entity[attrName].(type) {
	case map[string]interface{}:
		if childUID, ok := v["$ref"].(string); ok {
			if err := rt.Unroll(childUID); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range v {
			ref, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			childUID, ok := ref["$ref"].(string)
			if !ok {
				continue
			}
			if err := rt.Unroll(childUID); err != nil {
				return err
			}
		}
	}
	store.Clear(entity, attrName)
	return nil
}

// UseEntity is the UseEntity command: withdraws Min..Max entities of
// ChildClass from the nearest ancestor frame's collected pool.
// Injectors, if any, are applied to each withdrawn child and ejected
// again when it is recycled back to the pool on Revert.
type UseEntity struct {
	ChildClass string
	Min, Max   class.CardinalityValue
	IsArray    bool
	Injectors  class.Injectors
}

func (c *UseEntity) Kind() string { return "UseEntity" }

func (c *UseEntity) AddPrepender(attr string, cmd class.InjectCommand) {
	c.Injectors.Prependers = append(c.Injectors.Prependers, class.InjectorEntry{Attr: attr, Cmd: cmd})
}

func (c *UseEntity) AddAppender(attr string, cmd class.InjectCommand) {
	c.Injectors.Appenders = append(c.Injectors.Appenders, class.InjectorEntry{Attr: attr, Cmd: cmd})
}

func (c *UseEntity) hierarchy(rt class.Runtime) map[string][]string {
	hierarchy := map[string][]string{}
	if cls, ok := rt.Class(c.ChildClass); ok {
		hierarchy[c.ChildClass] = cls.Hierarchy
	}
	return hierarchy
}

func (c *UseEntity) count(rt class.Runtime) int {
	if !c.IsArray {
		return 1
	}
	minV, maxV := c.Min.Resolve(rt), c.Max.Resolve(rt)
	if maxV > minV {
		return rt.Randomizer().InRange(minV, maxV)
	}
	return minV
}

func (c *UseEntity) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	hierarchy := c.hierarchy(rt)
	n := c.count(rt)
	refs := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		picked, ok, err := useCollected(rt, uid, c.ChildClass, hierarchy)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := addUserToEntity(rt.Tx(), picked, uid, attrName); err != nil {
			return err
		}
		if err := injectIntoChild(rt, gctx, picked, c.Injectors); err != nil {
			return err
		}
		refs = append(refs, map[string]interface{}{"$ref": picked})
	}
	if !c.IsArray {
		if len(refs) == 0 {
			return &scrollerr.MissingEntity{UID: c.ChildClass}
		}
		entity[attrName] = refs[0]
		return nil
	}
	entity[attrName] = refs
	return nil
}

func (c *UseEntity) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	hierarchy := c.hierarchy(rt)
	eject := func(childUID string) {
		_ = ejectFromChild(rt, childUID, c.Injectors)
		_ = recycleCollected(rt, uid, c.ChildClass, childUID, hierarchy)
	}
	switch v := entity[attrName].(type) {
	case map[string]interface{}:
		if childUID, ok := v["$ref"].(string); ok {
			eject(childUID)
		}
	case []interface{}:
		for _, item := range v {
			if ref, ok := item.(map[string]interface{}); ok {
				if childUID, ok := ref["$ref"].(string); ok {
					eject(childUID)
				}
			}
		}
	}
	store.Clear(entity, attrName)
	return nil
}

// PickEntity is the PickEntity command: picks (without consuming)
// Min..Max entities of ChildClass from the nearest ancestor frame's
// pool, never picking the same uid twice within one Apply call.
// Injectors, if any, are applied to each picked child; since picking
// never consumes, Revert leaves them in place.
type PickEntity struct {
	ChildClass string
	Min, Max   class.CardinalityValue
	IsArray    bool
	Injectors  class.Injectors
}

func (c *PickEntity) Kind() string { return "PickEntity" }

func (c *PickEntity) AddPrepender(attr string, cmd class.InjectCommand) {
	c.Injectors.Prependers = append(c.Injectors.Prependers, class.InjectorEntry{Attr: attr, Cmd: cmd})
}

func (c *PickEntity) AddAppender(attr string, cmd class.InjectCommand) {
	c.Injectors.Appenders = append(c.Injectors.Appenders, class.InjectorEntry{Attr: attr, Cmd: cmd})
}

func (c *PickEntity) hierarchy(rt class.Runtime) map[string][]string {
	hierarchy := map[string][]string{}
	if cls, ok := rt.Class(c.ChildClass); ok {
		hierarchy[c.ChildClass] = cls.Hierarchy
	}
	return hierarchy
}

func (c *PickEntity) count(rt class.Runtime) int {
	if !c.IsArray {
		return 1
	}
	minV, maxV := c.Min.Resolve(rt), c.Max.Resolve(rt)
	if maxV > minV {
		return rt.Randomizer().InRange(minV, maxV)
	}
	return minV
}

func (c *PickEntity) Apply(rt class.Runtime, gctx class.GenContext, uid string, entity map[string]interface{}, attrName string) error {
	hierarchy := c.hierarchy(rt)
	n := c.count(rt)
	seen := map[string]bool{}
	refs := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		picked, ok, err := pickCollected(rt, uid, c.ChildClass, hierarchy)
		if err != nil {
			return err
		}
		if !ok || seen[picked] {
			continue
		}
		seen[picked] = true
		if err := injectIntoChild(rt, gctx, picked, c.Injectors); err != nil {
			return err
		}
		refs = append(refs, map[string]interface{}{"$ref": picked})
	}
	if !c.IsArray {
		if len(refs) == 0 {
			return &scrollerr.MissingEntity{UID: c.ChildClass}
		}
		entity[attrName] = refs[0]
		return nil
	}
	entity[attrName] = refs
	return nil
}

func (c *PickEntity) Revert(rt class.Runtime, uid string, entity map[string]interface{}, attrName string) error {
	store.Clear(entity, attrName)
	return nil
}

// --- injector commands ---

// SetValue is the injector SetValue command: writes a fixed literal
// onto the target entity when injected, clearing it to false on
// eject.
type SetValue struct {
	Value interface{}
}

func (c *SetValue) Kind() string { return "SetValue" }

func (c *SetValue) Inject(rt class.Runtime, gctx class.GenContext, entity map[string]interface{}, attrName string) error {
	entity[attrName] = c.Value
	return nil
}

func (c *SetValue) Eject(rt class.Runtime, entity map[string]interface{}, attrName string) error {
	entity[attrName] = false
	return nil
}

// InjectDiceRoll is the injector DiceRoll command.
type InjectDiceRoll struct {
	Spec string
}

func (c *InjectDiceRoll) Kind() string { return "DiceRoll" }

func (c *InjectDiceRoll) Inject(rt class.Runtime, gctx class.GenContext, entity map[string]interface{}, attrName string) error {
	val, err := helpers.RollDice(rt.Randomizer(), c.Spec)
	if err != nil {
		return err
	}
	entity[attrName] = val
	return nil
}

func (c *InjectDiceRoll) Eject(rt class.Runtime, entity map[string]interface{}, attrName string) error {
	entity[attrName] = false
	return nil
}

// InjectListRoller is the injector RollFromList command. Its eject
// sets the attribute to false rather than clearing it, matching the
// other ejecting injectors (see DESIGN.md's resolution of the
// original's clear/false inconsistency).
type InjectListRoller struct {
	Values []interface{}
}

func (c *InjectListRoller) Kind() string { return "RollFromList" }

func (c *InjectListRoller) Inject(rt class.Runtime, gctx class.GenContext, entity map[string]interface{}, attrName string) error {
	if len(c.Values) == 0 {
		return &scrollerr.MissingAttribute{Attr: attrName}
	}
	entity[attrName] = rng.Choose(rt.Randomizer(), c.Values)
	return nil
}

func (c *InjectListRoller) Eject(rt class.Runtime, entity map[string]interface{}, attrName string) error {
	entity[attrName] = false
	return nil
}

// CopyValue is the injector CopyValue command: copies the value of
// SourceAttr from the injecting entity itself.
type CopyValue struct {
	SourceAttr string
}

func (c *CopyValue) Kind() string { return "CopyValue" }

func (c *CopyValue) Inject(rt class.Runtime, gctx class.GenContext, entity map[string]interface{}, attrName string) error {
	entity[attrName] = entity[c.SourceAttr]
	return nil
}

func (c *CopyValue) Eject(rt class.Runtime, entity map[string]interface{}, attrName string) error {
	entity[attrName] = false
	return nil
}

// InjectPtr is the injector Pointer command: writes a pointer
// indirection marker resolved at render time via walk_path-style dot
// paths.
type InjectPtr struct {
	Path string
}

func (c *InjectPtr) Kind() string { return "Pointer" }

func (c *InjectPtr) Inject(rt class.Runtime, gctx class.GenContext, entity map[string]interface{}, attrName string) error {
	entity[attrName] = map[string]interface{}{"$indirection": "pointer", "attr": c.Path}
	return nil
}

func (c *InjectPtr) Eject(rt class.Runtime, entity map[string]interface{}, attrName string) error {
	entity[attrName] = false
	return nil
}

// injectIntoChild applies inj's prependers then appenders against
// childUID, the entity an attribute command just rolled, used, or
// picked — never against the owning entity itself.
func injectIntoChild(rt class.Runtime, gctx class.GenContext, childUID string, inj class.Injectors) error {
	if len(inj.Prependers) == 0 && len(inj.Appenders) == 0 {
		return nil
	}
	child, ok, err := rt.Tx().Load(childUID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, entry := range inj.Prependers {
		if err := entry.Cmd.Inject(rt, gctx, child, entry.Attr); err != nil {
			return err
		}
	}
	for _, entry := range inj.Appenders {
		if err := entry.Cmd.Inject(rt, gctx, child, entry.Attr); err != nil {
			return err
		}
	}
	return rt.Tx().Save(childUID)
}

// ejectFromChild is injectIntoChild's inverse, run against a child
// being released back to its collected pool rather than deleted
// outright.
func ejectFromChild(rt class.Runtime, childUID string, inj class.Injectors) error {
	if len(inj.Prependers) == 0 && len(inj.Appenders) == 0 {
		return nil
	}
	child, ok, err := rt.Tx().Load(childUID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, entry := range inj.Prependers {
		if err := entry.Cmd.Eject(rt, child, entry.Attr); err != nil {
			return err
		}
	}
	for _, entry := range inj.Appenders {
		if err := entry.Cmd.Eject(rt, child, entry.Attr); err != nil {
			return err
		}
	}
	return rt.Tx().Save(childUID)
}

// addUserToEntity records that owner's attribute ownerAttr holds a
// reference to childUID, so a later reroll of childUID can find and
// update every entity pointing at it. Matches commands.rs's
// add_user_to_entity.
func addUserToEntity(tx *store.WriteTx, childUID, ownerUID, ownerAttr string) error {
	child, ok, err := tx.Load(childUID)
	if err != nil {
		return err
	}
	if !ok {
		return &scrollerr.MissingEntity{UID: childUID}
	}
	users, _ := child["$users"].([]interface{})
	users = append(users, map[string]interface{}{"uid": ownerUID, "attr": ownerAttr})
	child["$users"] = users
	return tx.Save(childUID)
}
