// Package sandbox is the facade (C8) binding the scroll parser, class
// model, store, generation engine, and renderer into the small surface
// a consuming shell needs: with_scroll/open/create plus
// roll/unroll/reroll/append/render_entity/render_entity_html, matching
// instance.rs's SandboxInstance/SandboxBuilder split.
package sandbox

import (
	"context"
	"fmt"

	"github.com/kittclouds/scrollforge/internal/rng"
	"github.com/kittclouds/scrollforge/internal/store"
	"github.com/kittclouds/scrollforge/pkg/class"
	"github.com/kittclouds/scrollforge/pkg/engine"
	"github.com/kittclouds/scrollforge/pkg/helpers"
	"github.com/kittclouds/scrollforge/pkg/render"
	"github.com/kittclouds/scrollforge/pkg/scroll"
	"github.com/kittclouds/scrollforge/pkg/scrollerr"
	"github.com/kittclouds/scrollforge/pkg/tmpl"
)

// Instance holds everything needed to read and render generated
// content as well as the model driving generation, mirroring
// SandboxInstance's fields (sid, classes, repo, globals).
type Instance struct {
	Sid      string
	Classes  map[string]*class.Class
	Globals  map[string]interface{}
	Warnings []scroll.Warning

	store    *store.Store
	tmplEnv  *tmpl.Environment
	renderer *render.Renderer

	// activeLoad is swapped in for the duration of a single store
	// transaction so the long-lived Renderer can read through
	// whatever transaction (write or read-only) is presently open,
	// without the render package ever depending on internal/store's
	// transaction types directly.
	activeLoad render.Loader
}

// New builds an Instance with no scroll loaded and no backing store
// open yet. Call WithScroll then Open or Create before any generation
// or render call.
func New() *Instance {
	env := tmpl.New()
	helpers.RegisterAll(env, "")
	inst := &Instance{Globals: map[string]interface{}{}, tmplEnv: env}
	inst.renderer = render.New(inst.load, inst.classOf, env)
	return inst
}

func (inst *Instance) load(uid string) (map[string]interface{}, bool, error) {
	if inst.activeLoad == nil {
		return nil, false, fmt.Errorf("sandbox: no transaction open for load of %q", uid)
	}
	return inst.activeLoad(uid)
}

func (inst *Instance) classOf(name string) (*class.Class, bool) {
	c, ok := inst.Classes[name]
	return c, ok
}

// WithScroll parses the scroll file at path (and every file it
// transitively @includes) into the instance's class map and globals.
func (inst *Instance) WithScroll(path string) error {
	classes, globals, warnings, err := scroll.Load(path)
	if err != nil {
		return err
	}
	inst.Classes = classes
	inst.Globals = globals
	inst.Warnings = warnings
	return nil
}

// Open opens an existing sandbox store at filepath and reads its root
// key to recover the sandbox id.
func (inst *Instance) Open(filepath string) error {
	s, err := store.Open(filepath)
	if err != nil {
		return err
	}
	var sid string
	err = s.Inspect(context.Background(), func(tx *store.ReadTx) error {
		root, ok, err := tx.Retrieve(store.RootKey)
		if err != nil {
			return err
		}
		if !ok {
			return &scrollerr.MissingEntity{UID: store.RootKey}
		}
		v, _ := root["uid"].(string)
		sid = v
		return nil
	})
	if err != nil {
		s.Close()
		return err
	}
	if sid == "" {
		s.Close()
		return fmt.Errorf("sandbox: unable to find root entity in %s", filepath)
	}
	inst.store = s
	inst.Sid = sid
	return nil
}

// Create creates a brand new sandbox store at filepath, rolls the
// class named "main" under the reserved parent "root", and records the
// new root entity's uid under the store's "root" key.
func (inst *Instance) Create(filepath string) error {
	s, err := store.Open(filepath)
	if err != nil {
		return err
	}
	var sid string
	err = s.Mutate(context.Background(), func(tx *store.WriteTx) error {
		inst.activeLoad = tx.Load
		defer func() { inst.activeLoad = nil }()

		b := engine.NewBuilder(tx, inst.Classes, inst.Globals, rng.New(), inst.tmplEnv, inst.renderer)
		uid, err := b.Roll("main", store.RootKey, "", class.GenContext{Kind: class.Rolling})
		if err != nil {
			return err
		}
		if err := tx.EmplaceAndSave(store.RootKey, map[string]interface{}{"uid": uid}); err != nil {
			return err
		}
		sid = uid
		return nil
	})
	if err != nil {
		s.Close()
		return err
	}
	inst.store = s
	inst.Sid = sid
	return nil
}

// Close releases the backing store's handle.
func (inst *Instance) Close() error {
	if inst.store == nil {
		return nil
	}
	return inst.store.Close()
}

func (inst *Instance) withWriter(fn func(b *engine.Builder) error) error {
	return inst.store.Mutate(context.Background(), func(tx *store.WriteTx) error {
		inst.activeLoad = tx.Load
		defer func() { inst.activeLoad = nil }()
		b := engine.NewBuilder(tx, inst.Classes, inst.Globals, rng.New(), inst.tmplEnv, inst.renderer)
		return fn(b)
	})
}

// Roll generates a brand new entity of className under parentUID and
// returns its uid.
func (inst *Instance) Roll(className, parentUID string) (string, error) {
	var uid string
	err := inst.withWriter(func(b *engine.Builder) error {
		var err error
		uid, err = b.Roll(className, parentUID, "", class.GenContext{Kind: class.Rolling})
		return err
	})
	return uid, err
}

// Unroll tears down uid and returns its former parent's uid.
func (inst *Instance) Unroll(uid string) (string, error) {
	var parentUID string
	err := inst.withWriter(func(b *engine.Builder) error {
		entity, ok, err := b.Tx().Load(uid)
		if err != nil {
			return err
		}
		if !ok {
			return &scrollerr.MissingEntity{UID: uid}
		}
		if p, ok := entity["$parent"].(map[string]interface{}); ok {
			parentUID, _ = p["uid"].(string)
		}
		return b.Unroll(uid)
	})
	return parentUID, err
}

// Reroll replaces existingUID with a freshly rolled replacement of the
// same class and returns the new uid.
func (inst *Instance) Reroll(existingUID string) (string, error) {
	var newUID string
	err := inst.withWriter(func(b *engine.Builder) error {
		var err error
		newUID, err = b.Reroll(existingUID)
		return err
	})
	return newUID, err
}

// Append rolls a new entity of className under parentUID through
// parentAttr's own declared command: an array attribute gains it as a
// new member, a single-valued one is overwritten with it.
func (inst *Instance) Append(parentUID, parentAttr, className string) (string, error) {
	var newUID string
	err := inst.withWriter(func(b *engine.Builder) error {
		var err error
		newUID, err = b.Append(parentUID, parentAttr, className)
		return err
	})
	return newUID, err
}

// RenderEntity produces uid's JSON-shaped projection against a
// read-only snapshot of the store.
func (inst *Instance) RenderEntity(uid string, isRoot bool) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := inst.store.Inspect(context.Background(), func(tx *store.ReadTx) error {
		inst.activeLoad = tx.Retrieve
		defer func() { inst.activeLoad = nil }()
		var err error
		out, err = inst.renderer.RenderEntity(uid, isRoot)
		return err
	})
	return out, err
}

// RenderEntityHTML renders uid's header and body templates against a
// read-only snapshot of the store.
func (inst *Instance) RenderEntityHTML(uid string) (header, body string, err error) {
	err = inst.store.Inspect(context.Background(), func(tx *store.ReadTx) error {
		inst.activeLoad = tx.Retrieve
		defer func() { inst.activeLoad = nil }()
		var rerr error
		header, body, rerr = inst.renderer.RenderEntityHTML(uid)
		return rerr
	})
	return header, body, err
}
