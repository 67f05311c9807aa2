// Package render projects persisted entities into plain JSON-shaped
// values and into rendered HTML, resolving "context" and "pointer"
// indirections along the way. It never depends on pkg/engine, so
// pkg/engine's Prerendered command
// can call back into this package without creating an import cycle.
package render

import (
	"github.com/kittclouds/scrollforge/internal/frame"
	"github.com/kittclouds/scrollforge/internal/pool"
	"github.com/kittclouds/scrollforge/pkg/class"
	"github.com/kittclouds/scrollforge/pkg/scrollerr"
	"github.com/kittclouds/scrollforge/pkg/tmpl"
)

// maxIndirectionDepth bounds the upward parent-chain walk performed
// while resolving a "context" indirection, matching the original's
// explicit loop (rather than unbounded recursion) in repository.rs.
const maxIndirectionDepth = 64

// Loader fetches a persisted entity by uid.
type Loader func(uid string) (map[string]interface{}, bool, error)

// ClassLookup resolves a class name to its concluded definition.
type ClassLookup func(name string) (*class.Class, bool)

// Renderer produces JSON and HTML projections of persisted entities.
type Renderer struct {
	Load    Loader
	ClassOf ClassLookup
	Tmpl    *tmpl.Environment
}

// New builds a Renderer over the given entity loader and class table.
func New(load Loader, classOf ClassLookup, env *tmpl.Environment) *Renderer {
	return &Renderer{Load: load, ClassOf: classOf, Tmpl: env}
}

// renderCtx tracks the per-call uid -> rendered value cache. It is
// only populated when no stopper attribute is active for a given
// recursive call, matching the original recursive_entity_renderer's
// caching behavior: a call made with a stopper set never populates the
// cache for that call.
type renderCtx struct {
	cache map[string]map[string]interface{}
}

// RenderEntity produces uid's JSON-shaped projection. isRoot controls
// whether non-public attributes are included (the root entity always
// exposes every attribute; descendants expose only public ones).
func (r *Renderer) RenderEntity(uid string, isRoot bool) (map[string]interface{}, error) {
	rc := &renderCtx{cache: make(map[string]map[string]interface{})}
	return r.recursive(rc, uid, isRoot, "")
}

// RenderEntityHTML renders uid's header and body templates against its
// JSON projection. Header and body are independently optional: a
// class may declare a body with no header or vice versa.
func (r *Renderer) RenderEntityHTML(uid string) (header, body string, err error) {
	proj, err := r.RenderEntity(uid, true)
	if err != nil {
		return "", "", err
	}
	entity, ok, err := r.Load(uid)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", &scrollerr.MissingEntity{UID: uid}
	}
	clsName, _ := entity["$class"].(string)
	cls, ok := r.ClassOf(clsName)
	if !ok {
		return "", "", &scrollerr.MissingClass{Name: clsName}
	}
	ctx := proj
	if cls.HTMLHeader != nil {
		header, err = r.Tmpl.Render(*cls.HTMLHeader, ctx)
		if err != nil {
			return "", "", err
		}
	}
	if cls.HTMLBody != nil {
		body, err = r.Tmpl.Render(*cls.HTMLBody, ctx)
		if err != nil {
			return "", "", err
		}
	}
	return header, body, nil
}

func (r *Renderer) recursive(rc *renderCtx, uid string, isRoot bool, stopper string) (map[string]interface{}, error) {
	if stopper == "" {
		if cached, ok := rc.cache[uid]; ok {
			return cached, nil
		}
	}

	entity, ok, err := r.Load(uid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &scrollerr.MissingEntity{UID: uid}
	}
	clsName, _ := entity["$class"].(string)
	cls, ok := r.ClassOf(clsName)
	if !ok {
		return nil, &scrollerr.MissingClass{Name: clsName}
	}

	ret := pool.GetMap()
	ret["uuid"] = uid
	ret["$class"] = clsName

	// ctx accumulates every attribute rendered so far (public or not),
	// giving later templated attributes left-to-right access to
	// earlier ones; ret only ever receives the public-or-root subset.
	ctx := map[string]interface{}{"uuid": uid}

	for _, spec := range cls.Collects {
		if spec.Virtual == nil {
			continue
		}
		rendered, err := r.renderVirtualCollection(rc, uid, spec.ClassName)
		if err != nil {
			return nil, err
		}
		ctx[spec.Virtual.AttrName] = rendered
		if spec.Virtual.IsPublic || isRoot {
			ret[spec.Virtual.AttrName] = rendered
		}
	}

	for _, attrName := range cls.AttrOrder {
		attr := cls.Attrs[attrName]
		raw, present := entity[attrName]
		if !present {
			continue
		}

		value, err := r.renderValue(rc, uid, attr, raw, stopper, ctx)
		if err != nil {
			return nil, err
		}

		ctx[attrName] = value
		if attr.IsPublic || isRoot {
			ret[attrName] = value
		}
	}

	if stopper == "" {
		rc.cache[uid] = ret
	}
	return ret, nil
}

// renderValue projects one stored attribute value per §4.6's value-kind
// dispatch: indirections and child references recurse, arrays render
// element-wise (or collapse to their first child for a singular
// slot), strings expand as templates against ctx, a stored null
// recalls its WeakAssign source literal and renders that instead, and
// everything else passes through unchanged.
func (r *Renderer) renderValue(rc *renderCtx, uid string, attr class.Attr, raw interface{}, stopper string, ctx map[string]interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		if kind, ok := v["$indirection"].(string); ok {
			return r.renderIndirection(rc, uid, kind, v, stopper)
		}
		if childUID, ok := v["$ref"].(string); ok {
			return r.recursive(rc, childUID, false, "")
		}
		return v, nil
	case []interface{}:
		if attr.IsArray {
			rendered := pool.GetSlice()
			for _, item := range v {
				if ref, ok := item.(map[string]interface{}); ok {
					if childUID, ok := ref["$ref"].(string); ok {
						child, err := r.recursive(rc, childUID, false, "")
						if err != nil {
							return nil, err
						}
						rendered = append(rendered, child)
						continue
					}
				}
				rendered = append(rendered, item)
			}
			return rendered, nil
		}
		if len(v) == 0 {
			return map[string]interface{}{}, nil
		}
		if ref, ok := v[0].(map[string]interface{}); ok {
			if childUID, ok := ref["$ref"].(string); ok {
				return r.recursive(rc, childUID, false, "")
			}
		}
		return v[0], nil
	case string:
		return r.Tmpl.Render(v, ctx)
	case nil:
		if valuer, ok := attr.Cmd.(class.Valuer); ok {
			if src, ok := valuer.Value().(string); ok {
				return r.Tmpl.Render(src, ctx)
			}
		}
		return nil, nil
	default:
		return v, nil
	}
}

// renderVirtualCollection renders the still-unused collected children
// of className for uid's frame, used by a `<<`-declared virtual
// attribute. Rendering never consults a frame otherwise (§3's "Frames
// are never consulted during rendering" carve-out).
func (r *Renderer) renderVirtualCollection(rc *renderCtx, uid, className string) ([]interface{}, error) {
	fr, ok, err := r.Load(frame.FrameKey(uid))
	if err != nil {
		return nil, err
	}
	if !ok {
		return []interface{}{}, nil
	}
	collections, _ := fr["$collections"].(map[string]interface{})
	unused, _ := collections["$unused"].(map[string]interface{})
	list, _ := unused[className].([]interface{})
	out := make([]interface{}, 0, len(list))
	for _, item := range list {
		childUID, ok := item.(string)
		if !ok {
			continue
		}
		child, err := r.recursive(rc, childUID, false, "")
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// renderIndirection dispatches a "context" or "pointer" indirection
// spec, matching render_indirections.
func (r *Renderer) renderIndirection(rc *renderCtx, uid, kind string, spec map[string]interface{}, stopper string) (interface{}, error) {
	attrPath, _ := spec["attr"].(string)
	switch kind {
	case "context":
		return r.renderParentAttribute(rc, uid, attrPath, stopper)
	case "pointer":
		return r.renderPointerAttribute(uid, attrPath)
	default:
		return nil, &scrollerr.IndirectionFailure{UID: uid, Attr: attrPath}
	}
}

// renderParentAttribute walks from uid itself up the "$parent" chain
// looking for attr and returns the first stored value found as is,
// without rendering it (so the shared cache is never touched), and
// gives up with IndirectionFailure once root is reached or the depth
// bound is hit.
func (r *Renderer) renderParentAttribute(rc *renderCtx, uid, attr, stopper string) (interface{}, error) {
	cur := uid
	for depth := 0; depth < maxIndirectionDepth; depth++ {
		entity, ok, err := r.Load(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if v, present := entity[attr]; present {
			return v, nil
		}
		parentRef, ok := entity["$parent"].(map[string]interface{})
		if !ok {
			break
		}
		parent, _ := parentRef["uid"].(string)
		if parent == "" || parent == cur {
			break
		}
		if parent == "root" {
			if rootEntity, ok, err := r.Load(parent); err == nil && ok {
				if v, present := rootEntity[attr]; present {
					return v, nil
				}
			}
			break
		}
		cur = parent
	}
	return nil, &scrollerr.IndirectionFailure{UID: uid, Attr: attr}
}

// renderPointerAttribute resolves a dot-separated attribute path
// starting from uid, descending into the first element of any array
// attribute encountered along the way, matching commands.rs's
// walk_path helper.
func (r *Renderer) renderPointerAttribute(uid, path string) (interface{}, error) {
	segments := splitPath(path)
	cur := uid
	for i, seg := range segments {
		entity, ok, err := r.Load(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &scrollerr.IndirectionFailure{UID: uid, Attr: path}
		}
		v, present := entity[seg]
		if !present {
			return nil, &scrollerr.IndirectionFailure{UID: uid, Attr: path}
		}
		if i == len(segments)-1 {
			return v, nil
		}
		arr, isArr := v.([]interface{})
		if !isArr || len(arr) == 0 {
			return nil, &scrollerr.IndirectionFailure{UID: uid, Attr: path}
		}
		ref, _ := arr[0].(map[string]interface{})
		childUID, _ := ref["$ref"].(string)
		if childUID == "" {
			return nil, &scrollerr.IndirectionFailure{UID: uid, Attr: path}
		}
		cur = childUID
	}
	return nil, &scrollerr.IndirectionFailure{UID: uid, Attr: path}
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}
