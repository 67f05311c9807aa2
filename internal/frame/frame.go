// Package frame implements the collection subsystem: per-entity frame
// objects tracking which child entities of a subscribed class are
// still unused versus already claimed, walked up an entity's ancestor
// chain to the root. It depends only on the store and the randomizer,
// never on the engine, so the engine can depend on it instead of the
// other way around.
package frame

import (
	"github.com/kittclouds/scrollforge/internal/rng"
	"github.com/kittclouds/scrollforge/internal/store"
)

// RootUID is the reserved uid of the sandbox root entity; ancestor
// walks stop here.
const RootUID = "root"

const (
	collectionsKey = "$collections"
	unusedKey      = "$unused"
	usedKey        = "$used"
	parentKey      = "$parent"
)

// FrameKey returns the store key for uid's frame object, per the
// persisted-state layout's "<uid>_frame" convention.
func FrameKey(uid string) string {
	return uid + "_frame"
}

func emptyFrame() map[string]interface{} {
	return map[string]interface{}{
		collectionsKey: map[string]interface{}{
			unusedKey: map[string]interface{}{},
			usedKey:   map[string]interface{}{},
		},
	}
}

// CreateEntityFrame initializes an empty frame for uid if one does not
// already exist.
func CreateEntityFrame(tx *store.WriteTx, uid string) error {
	key := FrameKey(uid)
	if _, ok, err := tx.Load(key); err != nil {
		return err
	} else if ok {
		return nil
	}
	return tx.EmplaceAndSave(key, emptyFrame())
}

// RemoveEntityFrame deletes uid's frame object entirely.
func RemoveEntityFrame(tx *store.WriteTx, uid string) error {
	return tx.Remove(FrameKey(uid))
}

// Subscribe registers class as a collectible kind on uid's frame,
// initializing empty $unused/$used buckets for it.
func Subscribe(tx *store.WriteTx, uid, class string) error {
	key := FrameKey(uid)
	fr, ok, err := tx.Load(key)
	if err != nil {
		return err
	}
	if !ok {
		fr = emptyFrame()
	}
	unused := bucket(fr, unusedKey)
	used := bucket(fr, usedKey)
	if _, ok := unused[class]; !ok {
		unused[class] = []interface{}{}
	}
	if _, ok := used[class]; !ok {
		used[class] = []interface{}{}
	}
	return tx.EmplaceAndSave(key, fr)
}

func bucket(fr map[string]interface{}, which string) map[string]interface{} {
	collections, _ := fr[collectionsKey].(map[string]interface{})
	if collections == nil {
		collections = map[string]interface{}{}
		fr[collectionsKey] = collections
	}
	b, _ := collections[which].(map[string]interface{})
	if b == nil {
		b = map[string]interface{}{}
		collections[which] = b
	}
	return b
}

func parentOf(entity map[string]interface{}) (string, bool) {
	p, ok := entity[parentKey].(map[string]interface{})
	if !ok {
		return "", false
	}
	uid, _ := p["uid"].(string)
	return uid, uid != ""
}

// ancestors returns, deepest first, the chain of uids from parentUID
// up to and including "root".
func ancestors(tx *store.WriteTx, parentUID string) ([]string, error) {
	var chain []string
	cur := parentUID
	for {
		chain = append(chain, cur)
		if cur == RootUID {
			break
		}
		ent, ok, err := tx.Load(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		next, has := parentOf(ent)
		if !has {
			break
		}
		cur = next
	}
	return chain, nil
}

// hierarchyNames returns class plus every ancestor class name (most
// specific first), as supplied by the caller's class-hierarchy
// snapshot (pkg/class.Class.Hierarchy, which is already self-first).
// Falls back to just class itself when the snapshot carries nothing
// for it.
func hierarchyNames(class string, hierarchy map[string][]string) []string {
	if names, ok := hierarchy[class]; ok && len(names) > 0 {
		return names
	}
	return []string{class}
}

// Collect walks from parentUID up to root. At the first frame level
// subscribed to class (or one of its ancestor classes), it appends uid
// to that frame's $unused bucket for the matching class and stops.
func Collect(tx *store.WriteTx, parentUID, class, uid string, hierarchy map[string][]string) error {
	chain, err := ancestors(tx, parentUID)
	if err != nil {
		return err
	}
	names := hierarchyNames(class, hierarchy)
	for _, frameUID := range chain {
		fr, ok, err := tx.Load(FrameKey(frameUID))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		unused := bucket(fr, unusedKey)
		for _, name := range names {
			if list, ok := unused[name]; ok {
				arr, _ := list.([]interface{})
				unused[name] = append(arr, uid)
				return tx.Save(FrameKey(frameUID))
			}
		}
	}
	return nil
}

// Withdraw removes uid from both the $unused and $used buckets of
// every frame level between parentUID and root, for class or any of
// its ancestor classes. The original implementation's second loop
// mistakenly re-filtered $unused a second time instead of $used; here
// both buckets are correctly filtered.
func Withdraw(tx *store.WriteTx, parentUID, class, uid string, hierarchy map[string][]string) error {
	chain, err := ancestors(tx, parentUID)
	if err != nil {
		return err
	}
	names := hierarchyNames(class, hierarchy)
	for _, frameUID := range chain {
		key := FrameKey(frameUID)
		fr, ok, err := tx.Load(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		changed := false
		unused := bucket(fr, unusedKey)
		for _, name := range names {
			if list, ok := unused[name]; ok {
				unused[name] = retain(list.([]interface{}), uid)
				changed = true
			}
		}
		used := bucket(fr, usedKey)
		for _, name := range names {
			if list, ok := used[name]; ok {
				used[name] = retain(list.([]interface{}), uid)
				changed = true
			}
		}
		if changed {
			if err := tx.Save(key); err != nil {
				return err
			}
		}
	}
	return nil
}

func retain(list []interface{}, uid string) []interface{} {
	out := list[:0]
	for _, v := range list {
		if s, _ := v.(string); s != uid {
			out = append(out, v)
		}
	}
	return out
}

// UseCollected finds the first ancestor frame (deepest first) with a
// non-empty $unused bucket for class, picks one member at random,
// moves it to $used, and returns it.
func UseCollected(tx *store.WriteTx, parentUID, class string, hierarchy map[string][]string, z *rng.Randomizer) (string, bool, error) {
	chain, err := ancestors(tx, parentUID)
	if err != nil {
		return "", false, err
	}
	names := hierarchyNames(class, hierarchy)
	for _, frameUID := range chain {
		key := FrameKey(frameUID)
		fr, ok, err := tx.Load(key)
		if err != nil {
			return "", false, err
		}
		if !ok {
			continue
		}
		unused := bucket(fr, unusedKey)
		for _, name := range names {
			list, ok := unused[name]
			if !ok {
				continue
			}
			arr := list.([]interface{})
			if len(arr) == 0 {
				continue
			}
			idx := z.InRange(0, len(arr)-1)
			picked, _ := arr[idx].(string)
			unused[name] = append(arr[:idx], arr[idx+1:]...)
			used := bucket(fr, usedKey)
			usedArr, _ := used[name].([]interface{})
			used[name] = append(usedArr, picked)
			if err := tx.Save(key); err != nil {
				return "", false, err
			}
			return picked, true, nil
		}
	}
	return "", false, nil
}

// Recycle is the inverse of UseCollected: it finds uid in a $used
// bucket along the ancestor chain and moves it back to $unused.
func Recycle(tx *store.WriteTx, parentUID, class, uid string, hierarchy map[string][]string) error {
	chain, err := ancestors(tx, parentUID)
	if err != nil {
		return err
	}
	names := hierarchyNames(class, hierarchy)
	for _, frameUID := range chain {
		key := FrameKey(frameUID)
		fr, ok, err := tx.Load(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		used := bucket(fr, usedKey)
		for _, name := range names {
			list, ok := used[name]
			if !ok {
				continue
			}
			arr := list.([]interface{})
			if !contains(arr, uid) {
				continue
			}
			used[name] = retain(arr, uid)
			unused := bucket(fr, unusedKey)
			unusedArr, _ := unused[name].([]interface{})
			unused[name] = append(unusedArr, uid)
			return tx.Save(key)
		}
	}
	return nil
}

// PickCollected returns a random member of the first non-empty
// $unused bucket for class along the ancestor chain, without mutating
// any frame: picking never consumes.
func PickCollected(tx *store.WriteTx, parentUID, class string, hierarchy map[string][]string, z *rng.Randomizer) (string, bool, error) {
	chain, err := ancestors(tx, parentUID)
	if err != nil {
		return "", false, err
	}
	names := hierarchyNames(class, hierarchy)
	for _, frameUID := range chain {
		fr, ok, err := tx.Load(FrameKey(frameUID))
		if err != nil {
			return "", false, err
		}
		if !ok {
			continue
		}
		unused := bucket(fr, unusedKey)
		for _, name := range names {
			list, ok := unused[name]
			if !ok {
				continue
			}
			arr := list.([]interface{})
			if len(arr) == 0 {
				continue
			}
			picked, _ := arr[z.InRange(0, len(arr)-1)].(string)
			return picked, true, nil
		}
	}
	return "", false, nil
}

func contains(list []interface{}, uid string) bool {
	for _, v := range list {
		if s, _ := v.(string); s == uid {
			return true
		}
	}
	return false
}
