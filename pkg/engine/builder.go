package engine

import (
	"github.com/kittclouds/scrollforge/internal/rng"
	"github.com/kittclouds/scrollforge/internal/store"
	"github.com/kittclouds/scrollforge/pkg/class"
	"github.com/kittclouds/scrollforge/pkg/render"
	"github.com/kittclouds/scrollforge/pkg/tmpl"
)

// Builder drives one generation operation (roll/unroll/reroll/append)
// against a single write transaction. It implements class.Runtime so
// the command implementations in this package can reach the store,
// randomizer, class table, and renderer through the narrow interface
// class.Runtime declares.
type Builder struct {
	tx       *store.WriteTx
	classes  map[string]*class.Class
	globals  map[string]interface{}
	z        *rng.Randomizer
	tmplEnv  *tmpl.Environment
	renderer *render.Renderer
}

// NewBuilder constructs a Builder bound to tx for the duration of one
// generation operation.
func NewBuilder(tx *store.WriteTx, classes map[string]*class.Class, globals map[string]interface{}, z *rng.Randomizer, tmplEnv *tmpl.Environment, renderer *render.Renderer) *Builder {
	return &Builder{tx: tx, classes: classes, globals: globals, z: z, tmplEnv: tmplEnv, renderer: renderer}
}

func (b *Builder) Tx() *store.WriteTx           { return b.tx }
func (b *Builder) Randomizer() *rng.Randomizer  { return b.z }
func (b *Builder) Class(name string) (*class.Class, bool) {
	c, ok := b.classes[name]
	return c, ok
}
func (b *Builder) Global(name string) (interface{}, bool) {
	v, ok := b.globals[name]
	return v, ok
}
func (b *Builder) Hierarchy(name string) []string {
	if c, ok := b.classes[name]; ok {
		return c.Hierarchy
	}
	return nil
}
func (b *Builder) RenderTemplate(src string, ctx map[string]interface{}) (string, error) {
	return b.tmplEnv.Render(src, ctx)
}
func (b *Builder) RenderEntity(uid string, isRoot bool) (map[string]interface{}, error) {
	return b.renderer.RenderEntity(uid, isRoot)
}
func (b *Builder) Roll(className, parentUID, parentAttr string, gctx class.GenContext) (string, error) {
	return roll(b, className, parentUID, parentAttr, gctx)
}
func (b *Builder) Unroll(uid string) error {
	return unroll(b, uid)
}

// Reroll replaces existingUID with a freshly rolled replacement of the
// same class, repointing every recorded user reference at the new
// uid, and returns the new uid.
func (b *Builder) Reroll(existingUID string) (string, error) {
	return reroll(b, existingUID)
}

// Append rolls a new entity of className under parentUID through
// parentAttr's own declared command: an array attribute gains it as a
// new member, a single-valued one is overwritten with it.
func (b *Builder) Append(parentUID, parentAttr, className string) (string, error) {
	return appendEntity(b, parentUID, parentAttr, className)
}

var _ class.Runtime = (*Builder)(nil)
