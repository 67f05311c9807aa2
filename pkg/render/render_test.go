package render_test

import (
	"testing"

	"github.com/kittclouds/scrollforge/pkg/class"
	"github.com/kittclouds/scrollforge/pkg/helpers"
	"github.com/kittclouds/scrollforge/pkg/render"
	"github.com/kittclouds/scrollforge/pkg/tmpl"
)

func newRenderer(t *testing.T, entities map[string]map[string]interface{}, classes map[string]*class.Class) *render.Renderer {
	t.Helper()
	env := tmpl.New()
	helpers.RegisterAll(env, "")
	load := func(uid string) (map[string]interface{}, bool, error) {
		v, ok := entities[uid]
		return v, ok, nil
	}
	classOf := func(name string) (*class.Class, bool) {
		c, ok := classes[name]
		return c, ok
	}
	return render.New(load, classOf, env)
}

func TestRenderEntityHidesPrivateAttrsForNonRoot(t *testing.T) {
	classes := map[string]*class.Class{
		"Goblin": {
			Name:      "Goblin",
			AttrOrder: []string{"name", "secretNote"},
			Attrs: map[string]class.Attr{
				"name":       {Name: "name", IsPublic: true},
				"secretNote": {Name: "secretNote", IsPublic: false},
			},
		},
	}
	entities := map[string]map[string]interface{}{
		"g1": {"$class": "Goblin", "name": "Orc Captain", "secretNote": "weak to fire"},
	}
	r := newRenderer(t, entities, classes)

	proj, err := r.RenderEntity("g1", false)
	if err != nil {
		t.Fatalf("render entity: %v", err)
	}
	if proj["name"] != "Orc Captain" {
		t.Errorf("expected name to be public, got %v", proj["name"])
	}
	if _, ok := proj["secretNote"]; ok {
		t.Errorf("expected secretNote hidden for non-root render, got %v", proj["secretNote"])
	}

	rootProj, err := r.RenderEntity("g1", true)
	if err != nil {
		t.Fatalf("render entity (root): %v", err)
	}
	if rootProj["secretNote"] != "weak to fire" {
		t.Errorf("expected secretNote visible on root render, got %v", rootProj["secretNote"])
	}
}

func TestRenderEntityResolvesChildRef(t *testing.T) {
	classes := map[string]*class.Class{
		"Main": {
			Name:      "Main",
			AttrOrder: []string{"champion"},
			Attrs: map[string]class.Attr{
				"champion": {Name: "champion", IsPublic: true},
			},
		},
		"Goblin": {
			Name:      "Goblin",
			AttrOrder: []string{"name"},
			Attrs: map[string]class.Attr{
				"name": {Name: "name", IsPublic: true},
			},
		},
	}
	entities := map[string]map[string]interface{}{
		"main1": {"$class": "Main", "champion": map[string]interface{}{"$ref": "g1"}},
		"g1":    {"$class": "Goblin", "name": "Orc Captain"},
	}
	r := newRenderer(t, entities, classes)

	proj, err := r.RenderEntity("main1", true)
	if err != nil {
		t.Fatalf("render entity: %v", err)
	}
	child, ok := proj["champion"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected champion to resolve to a rendered map, got %T", proj["champion"])
	}
	if child["name"] != "Orc Captain" {
		t.Errorf("expected resolved child's name, got %v", child["name"])
	}
}

func TestRenderContextIndirectionWalksParentChain(t *testing.T) {
	classes := map[string]*class.Class{
		"Outpost": {
			Name:      "Outpost",
			AttrOrder: []string{"region"},
			Attrs: map[string]class.Attr{
				"region": {Name: "region", IsPublic: true},
			},
		},
		"Scout": {
			Name:      "Scout",
			AttrOrder: []string{"locale"},
			Attrs: map[string]class.Attr{
				"locale": {Name: "locale", IsPublic: true},
			},
		},
	}
	entities := map[string]map[string]interface{}{
		"outpost1": {"$class": "Outpost", "region": "Forest"},
		"scout1": {
			"$class":  "Scout",
			"$parent": map[string]interface{}{"uid": "outpost1", "attr": "scout"},
			"locale":  map[string]interface{}{"$indirection": "context", "attr": "region"},
		},
	}
	r := newRenderer(t, entities, classes)

	proj, err := r.RenderEntity("scout1", true)
	if err != nil {
		t.Fatalf("render entity: %v", err)
	}
	if proj["locale"] != "Forest" {
		t.Errorf("expected locale to resolve to the parent's region, got %v", proj["locale"])
	}
}

func TestRenderContextIndirectionFailsPastRoot(t *testing.T) {
	classes := map[string]*class.Class{
		"Scout": {
			Name:      "Scout",
			AttrOrder: []string{"locale"},
			Attrs: map[string]class.Attr{
				"locale": {Name: "locale", IsPublic: true},
			},
		},
	}
	entities := map[string]map[string]interface{}{
		"scout1": {
			"$class":  "Scout",
			"$parent": map[string]interface{}{"uid": "root", "attr": ""},
			"locale":  map[string]interface{}{"$indirection": "context", "attr": "region"},
		},
	}
	r := newRenderer(t, entities, classes)

	if _, err := r.RenderEntity("scout1", true); err == nil {
		t.Fatal("expected an indirection failure when no ancestor declares the attribute")
	}
}

func TestRenderVirtualCollectionAttribute(t *testing.T) {
	classes := map[string]*class.Class{
		"Warren": {
			Name: "Warren",
			Collects: []class.CollectionSpecifier{
				{ClassName: "Goblin", Virtual: &class.CollectionAttribute{AttrName: "roster", IsPublic: true}},
			},
		},
		"Goblin": {
			Name:      "Goblin",
			AttrOrder: []string{"name"},
			Attrs: map[string]class.Attr{
				"name": {Name: "name", IsPublic: true},
			},
		},
	}
	entities := map[string]map[string]interface{}{
		"warren1": {"$class": "Warren"},
		"warren1_frame": {
			"$collections": map[string]interface{}{
				"$unused": map[string]interface{}{
					"Goblin": []interface{}{"g1", "g2"},
				},
				"$used": map[string]interface{}{},
			},
		},
		"g1": {"$class": "Goblin", "name": "Grubnik"},
		"g2": {"$class": "Goblin", "name": "Skarg"},
	}
	r := newRenderer(t, entities, classes)

	proj, err := r.RenderEntity("warren1", true)
	if err != nil {
		t.Fatalf("render entity: %v", err)
	}
	roster, ok := proj["roster"].([]interface{})
	if !ok || len(roster) != 2 {
		t.Fatalf("expected a 2-element roster, got %v", proj["roster"])
	}
}

type literalValuer struct{ s string }

func (v literalValuer) Kind() string                                                            { return "WeakAssign" }
func (v literalValuer) Apply(class.Runtime, class.GenContext, string, map[string]interface{}, string) error { return nil }
func (v literalValuer) Revert(class.Runtime, string, map[string]interface{}, string) error       { return nil }
func (v literalValuer) Value() interface{}                                                       { return v.s }

func TestRenderRecallsWeakAssignLiteralOnNil(t *testing.T) {
	classes := map[string]*class.Class{
		"Keep": {
			Name:      "Keep",
			AttrOrder: []string{"title"},
			Attrs: map[string]class.Attr{
				"title": {Name: "title", IsPublic: true, Cmd: literalValuer{s: "The Sunken Keep"}},
			},
		},
	}
	entities := map[string]map[string]interface{}{
		"keep1": {"$class": "Keep", "title": nil},
	}
	r := newRenderer(t, entities, classes)

	proj, err := r.RenderEntity("keep1", true)
	if err != nil {
		t.Fatalf("render entity: %v", err)
	}
	if proj["title"] != "The Sunken Keep" {
		t.Errorf("expected recalled weak-assign literal, got %v", proj["title"])
	}
}

func TestRenderStringAttributeExpandsAsTemplate(t *testing.T) {
	classes := map[string]*class.Class{
		"Goblin": {
			Name:      "Goblin",
			AttrOrder: []string{"name", "greeting"},
			Attrs: map[string]class.Attr{
				"name":     {Name: "name", IsPublic: true},
				"greeting": {Name: "greeting", IsPublic: true},
			},
		},
	}
	entities := map[string]map[string]interface{}{
		"g1": {"$class": "Goblin", "name": "Grix", "greeting": "Hail, {{ name }}!"},
	}
	r := newRenderer(t, entities, classes)

	proj, err := r.RenderEntity("g1", true)
	if err != nil {
		t.Fatalf("render entity: %v", err)
	}
	if proj["greeting"] != "Hail, Grix!" {
		t.Errorf("expected templated greeting, got %v", proj["greeting"])
	}
}
