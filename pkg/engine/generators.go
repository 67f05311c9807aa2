package engine

import (
	"github.com/kittclouds/scrollforge/internal/frame"
	"github.com/kittclouds/scrollforge/internal/rng"
	"github.com/kittclouds/scrollforge/internal/store"
	"github.com/kittclouds/scrollforge/pkg/class"
	"github.com/kittclouds/scrollforge/pkg/scrollerr"
)

// resolveActualClassToRoll picks the concrete class name to
// instantiate: an explicit override (from a reroll/append payload)
// wins outright; otherwise the class's own subclass specifier is
// resolved and, when it names more than one candidate, one is chosen
// uniformly at random.
func resolveActualClassToRoll(b *Builder, className, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cls, ok := b.Class(className)
	if !ok {
		return "", &scrollerr.MissingClass{Name: className}
	}
	names := cls.NamesToRoll(b)
	if len(names) == 1 {
		return names[0], nil
	}
	return rng.Choose(b.Randomizer(), names), nil
}

// roll instantiates a brand new entity of className (or its resolved
// subclass) under parentUID, recording parentAttr as the attribute on
// parentUID's own entity that owns this child ("" if none). It applies
// every declared attribute command, registers the new entity with the
// parent's frame, and subscribes its own collectible classes. Injector
// blocks are no longer handled here: each attribute command applies
// its own against the child it produces (see commands.go's
// injectIntoChild).
func roll(b *Builder, className, parentUID, parentAttr string, gctx class.GenContext) (string, error) {
	actual, err := resolveActualClassToRoll(b, className, gctx.Append.ClassOverride)
	if err != nil {
		return "", err
	}
	if gctx.Kind == class.Rerolling && gctx.Reroll.ClassOverride != "" {
		actual = gctx.Reroll.ClassOverride
	}

	cls, ok := b.Class(actual)
	if !ok {
		return "", &scrollerr.MissingClass{Name: actual}
	}

	uid := b.Randomizer().UID()
	switch gctx.Kind {
	case class.Appending:
		if gctx.Append.AppendedUID != "" {
			uid = gctx.Append.AppendedUID
		}
	case class.Rerolling:
		if gctx.Reroll.NewUID != "" {
			uid = gctx.Reroll.NewUID
		}
	}

	entity := map[string]interface{}{
		"$class":  actual,
		"$parent": map[string]interface{}{"uid": parentUID, "attr": parentAttr},
	}
	if err := b.Tx().Create(uid, entity); err != nil {
		return "", err
	}

	for _, attrName := range cls.AttrOrder {
		attr := cls.Attrs[attrName]
		if err := attr.Cmd.Apply(b, gctx, uid, entity, attrName); err != nil {
			return "", err
		}
	}
	if err := b.Tx().Save(uid); err != nil {
		return "", err
	}

	if err := frame.CreateEntityFrame(b.Tx(), uid); err != nil {
		return "", err
	}
	for _, spec := range cls.Collects {
		if err := frame.Subscribe(b.Tx(), uid, spec.ClassName); err != nil {
			return "", err
		}
	}

	hierarchy := map[string][]string{actual: cls.Hierarchy}
	if parentUID != "" {
		if err := frame.Collect(b.Tx(), parentUID, actual, uid, hierarchy); err != nil {
			return "", err
		}
	}

	return uid, nil
}

// removeFromParentAttr drops uid from parentUID's parentAttr: if the
// attribute holds an array of {"$ref": uid} markers, the matching
// marker is removed in place; if it holds a single such marker, the
// attribute is cleared. A missing or already-disjoint parent/attr is
// not an error — unroll must still succeed for a parent that has
// itself already been torn down.
func removeFromParentAttr(b *Builder, parentUID, parentAttr, uid string) error {
	if parentUID == "" || parentAttr == "" {
		return nil
	}
	parent, ok, err := b.Tx().Load(parentUID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	switch v := parent[parentAttr].(type) {
	case []interface{}:
		out := v[:0]
		for _, item := range v {
			if ref, ok := item.(map[string]interface{}); ok {
				if childUID, _ := ref["$ref"].(string); childUID == uid {
					continue
				}
			}
			out = append(out, item)
		}
		parent[parentAttr] = out
	case map[string]interface{}:
		if childUID, _ := v["$ref"].(string); childUID == uid {
			store.Clear(parent, parentAttr)
		} else {
			return nil
		}
	default:
		return nil
	}
	return b.Tx().Save(parentUID)
}

// unroll tears down uid: reverts every attribute command (removing any
// sub-entities it rolled), removes uid from its parent's owning
// attribute, withdraws it from the parent's frame, removes its own
// frame, and finally deletes it from the store.
func unroll(b *Builder, uid string) error {
	entity, ok, err := b.Tx().Load(uid)
	if err != nil {
		return err
	}
	if !ok {
		return &scrollerr.MissingEntity{UID: uid}
	}
	clsName, _ := entity["$class"].(string)
	cls, ok := b.Class(clsName)
	if !ok {
		return &scrollerr.MissingClass{Name: clsName}
	}
	parentUID, parentAttr := parentRef(entity)

	for i := len(cls.AttrOrder) - 1; i >= 0; i-- {
		attrName := cls.AttrOrder[i]
		attr := cls.Attrs[attrName]
		if err := attr.Cmd.Revert(b, uid, entity, attrName); err != nil {
			return err
		}
	}
	if err := b.Tx().Save(uid); err != nil {
		return err
	}

	if err := removeFromParentAttr(b, parentUID, parentAttr, uid); err != nil {
		return err
	}

	if parentUID != "" {
		hierarchy := map[string][]string{clsName: cls.Hierarchy}
		if err := frame.Withdraw(b.Tx(), parentUID, clsName, uid, hierarchy); err != nil {
			return err
		}
	}
	if err := frame.RemoveEntityFrame(b.Tx(), uid); err != nil {
		return err
	}
	return b.Tx().Remove(uid)
}

// parentRef extracts the {"uid", "attr"} pair entity's "$parent" was
// recorded with by roll.
func parentRef(entity map[string]interface{}) (uid, attr string) {
	p, ok := entity["$parent"].(map[string]interface{})
	if !ok {
		return "", ""
	}
	uid, _ = p["uid"].(string)
	attr, _ = p["attr"].(string)
	return uid, attr
}

// reroll replaces existingUID with a freshly rolled entity of the same
// class under the same parent, then replays every recorded user
// back-reference to point at the new uid: an array-typed owner
// attribute has its matching {"$ref": existingUID} member replaced in
// place (every sibling member is preserved; the parent's own array,
// from which unroll has already dropped existingUID, gets the new uid
// inserted at the old slot); a scalar one is
// overwritten outright. A back-reference whose owner no longer exists
// is skipped rather than erroring — a class migration safety net
// carried from the original's unroll/reroll user replay (see
// DESIGN.md's supplemented-features note) — but replay no longer
// requires the attribute to still be declared on the owner's class,
// since attributes introduced dynamically via append never are.
func reroll(b *Builder, existingUID string) (string, error) {
	entity, ok, err := b.Tx().Load(existingUID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &scrollerr.MissingEntity{UID: existingUID}
	}
	clsName, _ := entity["$class"].(string)
	parentUID, parentAttr := parentRef(entity)
	users, _ := entity["$users"].([]interface{})

	// unroll drops existingUID from its parent's owning array, so note
	// its slot first to put the replacement back in the same place.
	slot := -1
	if parentAttr != "" {
		if parent, ok, _ := b.Tx().Load(parentUID); ok {
			arr, _ := parent[parentAttr].([]interface{})
			for i, item := range arr {
				if ref, _ := item.(map[string]interface{}); ref != nil && ref["$ref"] == existingUID {
					slot = i
				}
			}
		}
	}

	if err := unroll(b, existingUID); err != nil {
		return "", err
	}

	newUID, err := roll(b, clsName, parentUID, parentAttr, class.GenContext{
		Kind: class.Rerolling,
		Reroll: class.RerollPayload{
			ExistingUID:   existingUID,
			ClassOverride: clsName,
		},
	})
	if err != nil {
		return "", err
	}

	for _, raw := range users {
		u, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		ownerUID, _ := u["uid"].(string)
		ownerAttr, _ := u["attr"].(string)
		owner, ok, err := b.Tx().Load(ownerUID)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}

		switch v := owner[ownerAttr].(type) {
		case []interface{}:
			replaced := false
			for i, item := range v {
				ref, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				if childUID, _ := ref["$ref"].(string); childUID == existingUID {
					v[i] = map[string]interface{}{"$ref": newUID}
					replaced = true
				}
			}
			if !replaced && ownerUID == parentUID && ownerAttr == parentAttr && slot >= 0 {
				v = append(v[:slot], append([]interface{}{map[string]interface{}{"$ref": newUID}}, v[slot:]...)...)
				replaced = true
			}
			if !replaced {
				continue
			}
			owner[ownerAttr] = v
		default:
			owner[ownerAttr] = map[string]interface{}{"$ref": newUID}
		}

		if err := b.Tx().Save(ownerUID); err != nil {
			return "", err
		}
		if err := addUserToEntity(b.Tx(), newUID, ownerUID, ownerAttr); err != nil {
			return "", err
		}
	}

	return newUID, nil
}

// append rolls a new entity of className (or its resolved subclass)
// under parentUID by dispatching through parentAttr's own declared
// command under an Appending context, so the attribute's own roll and
// injector logic (commands.go's RollEntity.Apply) drives it rather
// than generators.go splicing a {"$ref": uid} in by hand.
func appendEntity(b *Builder, parentUID, parentAttr, className string) (string, error) {
	parent, ok, err := b.Tx().Load(parentUID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &scrollerr.MissingEntity{UID: parentUID}
	}
	parentClsName, _ := parent["$class"].(string)
	parentCls, ok := b.Class(parentClsName)
	if !ok {
		return "", &scrollerr.MissingClass{Name: parentClsName}
	}
	attr, ok := parentCls.Attrs[parentAttr]
	if !ok {
		return "", &scrollerr.MissingAttribute{Class: parentClsName, Attr: parentAttr}
	}

	gctx := class.GenContext{
		Kind:   class.Appending,
		Append: class.AppendPayload{ClassOverride: className},
	}
	if err := attr.Cmd.Apply(b, gctx, parentUID, parent, parentAttr); err != nil {
		return "", err
	}
	if err := b.Tx().Save(parentUID); err != nil {
		return "", err
	}

	newUID := ""
	switch v := parent[parentAttr].(type) {
	case []interface{}:
		if len(v) > 0 {
			if ref, ok := v[len(v)-1].(map[string]interface{}); ok {
				newUID, _ = ref["$ref"].(string)
			}
		}
	case map[string]interface{}:
		newUID, _ = v["$ref"].(string)
	}
	if newUID == "" {
		return "", &scrollerr.MissingEntity{UID: className}
	}
	// RollEntity.Apply's rollChild already recorded the $users
	// back-reference for newUID against parentUID/parentAttr.
	return newUID, nil
}
