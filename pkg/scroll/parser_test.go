package scroll

import (
	"testing"

	"github.com/kittclouds/scrollforge/pkg/class"
	"github.com/kittclouds/scrollforge/pkg/engine"
)

// noIncludes is an IncludeResolver that fails any @include, for tests
// whose source carries none.
func noIncludes(dir, name string) (string, string, error) {
	return "", "", &scrollerrStub{name: name}
}

type scrollerrStub struct{ name string }

func (e *scrollerrStub) Error() string { return "unexpected include: " + e.name }

func parse(t *testing.T, src string) (map[string]*class.Class, map[string]interface{}) {
	t.Helper()
	classes, globals, _, err := LoadString("", "test.scroll", src, noIncludes)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return classes, globals
}

func TestParseBasicClassAttributes(t *testing.T) {
	src := `
Goblin {
	name! = "Grix"
	hp @2d6
}
`
	classes, _ := parse(t, src)
	g, ok := classes["Goblin"]
	if !ok {
		t.Fatal("expected a Goblin class")
	}
	name, ok := g.Attrs["name"]
	if !ok {
		t.Fatal("expected a name attribute")
	}
	if !name.IsPublic {
		t.Error("expected name to be public")
	}
	a, ok := name.Cmd.(*engine.Assigner)
	if !ok {
		t.Fatalf("expected name's command to be an Assigner, got %T", name.Cmd)
	}
	if a.Literal != "Grix" {
		t.Errorf("expected literal %q, got %q", "Grix", a.Literal)
	}

	hp, ok := g.Attrs["hp"]
	if !ok {
		t.Fatal("expected an hp attribute")
	}
	d, ok := hp.Cmd.(*engine.DiceRoller)
	if !ok {
		t.Fatalf("expected hp's command to be a DiceRoller, got %T", hp.Cmd)
	}
	if d.Spec != "2d6" {
		t.Errorf("expected dice spec %q, got %q", "2d6", d.Spec)
	}
}

func TestParseWeakAssignAndOptionalFlag(t *testing.T) {
	src := `
Keep {
	title!? ~ "The Sunken Keep"
}
`
	classes, _ := parse(t, src)
	attr := classes["Keep"].Attrs["title"]
	if !attr.IsPublic || !attr.IsOptional {
		t.Fatalf("expected title to be public and optional, got %+v", attr)
	}
	w, ok := attr.Cmd.(*engine.WeakAssigner)
	if !ok {
		t.Fatalf("expected a WeakAssigner, got %T", attr.Cmd)
	}
	if w.Literal != "The Sunken Keep" {
		t.Errorf("unexpected literal %q", w.Literal)
	}
}

func TestParseExpandInheritsAttrs(t *testing.T) {
	src := `
Item {
	name! = "Unnamed"
}
Weapon {
	~Item
	damage! @1d8
}
`
	classes, _ := parse(t, src)
	w := classes["Weapon"]
	if _, ok := w.Attrs["name"]; !ok {
		t.Fatal("expected Weapon to inherit name via expand")
	}
	if _, ok := w.Attrs["damage"]; !ok {
		t.Fatal("expected Weapon to declare its own damage attribute")
	}
}

func TestParseSubclassSpecListWithMultiplier(t *testing.T) {
	src := `
Goblin {
	^ [Runt (x2), Brute]
}
`
	classes, _ := parse(t, src)
	spec := classes["Goblin"].Subclasses
	if spec.Kind != class.SubclassList {
		t.Fatalf("expected a list subclass spec, got kind %v", spec.Kind)
	}
	want := []string{"Runt", "Runt", "Brute"}
	if len(spec.List) != len(want) {
		t.Fatalf("expected %v, got %v", want, spec.List)
	}
	for i, n := range want {
		if spec.List[i] != n {
			t.Errorf("subclass[%d] = %q, want %q", i, spec.List[i], n)
		}
	}
}

func TestParseSubclassSpecVariable(t *testing.T) {
	src := `
Goblin {
	^ $goblinKinds
}
`
	classes, _ := parse(t, src)
	spec := classes["Goblin"].Subclasses
	if spec.Kind != class.SubclassVar || spec.Var != "goblinKinds" {
		t.Fatalf("expected a variable subclass spec on goblinKinds, got %+v", spec)
	}
}

func TestParseCollectionSubscription(t *testing.T) {
	src := `
Warren {
	<<Goblin
}
`
	classes, _ := parse(t, src)
	collects := classes["Warren"].Collects
	if len(collects) != 1 || collects[0].ClassName != "Goblin" || collects[0].Virtual != nil {
		t.Fatalf("expected a plain Goblin collection subscription, got %+v", collects)
	}
}

func TestParseVirtualCollectionAttribute(t *testing.T) {
	src := `
Warren {
	roster! << Goblin
}
`
	classes, _ := parse(t, src)
	collects := classes["Warren"].Collects
	if len(collects) != 1 {
		t.Fatalf("expected one collection subscription, got %v", collects)
	}
	v := collects[0].Virtual
	if v == nil || v.AttrName != "roster" || !v.IsPublic {
		t.Fatalf("expected a public virtual roster attribute, got %+v", v)
	}
}

func TestParseRollEntitySingleClass(t *testing.T) {
	src := `
Main {
	champion! @Goblin
}
`
	classes, _ := parse(t, src)
	attr := classes["Main"].Attrs["champion"]
	r, ok := attr.Cmd.(*engine.RollEntity)
	if !ok {
		t.Fatalf("expected a RollEntity, got %T", attr.Cmd)
	}
	if len(r.ChildClasses) != 1 || r.ChildClasses[0] != "Goblin" {
		t.Fatalf("expected a single Goblin child class, got %v", r.ChildClasses)
	}
	if r.IsArray {
		t.Error("expected a scalar roll without a cardinality prefix")
	}
}

func TestParseRollEntityMultiClassWithCardinality(t *testing.T) {
	src := `
Main {
	[2..4 pack!] @(Goblin, Orc)
}
`
	classes, _ := parse(t, src)
	attr := classes["Main"].Attrs["pack"]
	r, ok := attr.Cmd.(*engine.RollEntity)
	if !ok {
		t.Fatalf("expected a RollEntity, got %T", attr.Cmd)
	}
	if len(r.ChildClasses) != 2 || r.ChildClasses[0] != "Goblin" || r.ChildClasses[1] != "Orc" {
		t.Fatalf("expected [Goblin Orc], got %v", r.ChildClasses)
	}
	if !r.IsArray {
		t.Error("expected the cardinality prefix to mark this roll as an array")
	}
	if r.Min.Number != 2 || r.Max.Number != 4 {
		t.Errorf("expected min=2 max=4, got min=%d max=%d", r.Min.Number, r.Max.Number)
	}
}

func TestParseRollFromVariable(t *testing.T) {
	src := `
Main {
	champion! @$championKind
}
`
	classes, _ := parse(t, src)
	attr := classes["Main"].Attrs["champion"]
	v, ok := attr.Cmd.(*engine.VariableRoller)
	if !ok {
		t.Fatalf("expected a VariableRoller, got %T", attr.Cmd)
	}
	if v.VarName != "championKind" {
		t.Errorf("expected var name %q, got %q", "championKind", v.VarName)
	}
}

func TestParseRollFromProbabilityList(t *testing.T) {
	src := `
Main {
	loot! @[ * "sword" (x2) * "shield" ]
}
`
	classes, _ := parse(t, src)
	attr := classes["Main"].Attrs["loot"]
	l, ok := attr.Cmd.(*engine.ListRoller)
	if !ok {
		t.Fatalf("expected a ListRoller, got %T", attr.Cmd)
	}
	want := []interface{}{"sword", "sword", "shield"}
	if len(l.Values) != len(want) {
		t.Fatalf("expected %v, got %v", want, l.Values)
	}
	for i, v := range want {
		if l.Values[i] != v {
			t.Errorf("values[%d] = %v, want %v", i, l.Values[i], v)
		}
	}
}

func TestParseUseEntityAndPickEntity(t *testing.T) {
	src := `
Leader {
	champion! ?Goblin
	scout % Goblin
}
`
	classes, _ := parse(t, src)
	champion := classes["Leader"].Attrs["champion"]
	if _, ok := champion.Cmd.(*engine.UseEntity); !ok {
		t.Fatalf("expected a UseEntity, got %T", champion.Cmd)
	}
	scout := classes["Leader"].Attrs["scout"]
	if _, ok := scout.Cmd.(*engine.PickEntity); !ok {
		t.Fatalf("expected a PickEntity, got %T", scout.Cmd)
	}
}

func TestParseContextRef(t *testing.T) {
	src := `
Scout {
	locale! = :region
}
`
	classes, _ := parse(t, src)
	attr := classes["Scout"].Attrs["locale"]
	c, ok := attr.Cmd.(*engine.ContextRef)
	if !ok {
		t.Fatalf("expected a ContextRef, got %T", attr.Cmd)
	}
	if c.SourceAttr != "region" {
		t.Errorf("expected source attr %q, got %q", "region", c.SourceAttr)
	}
}

func TestParsePrerenderedTemplate(t *testing.T) {
	src := "Goblin {\n\tgreeting! `Hail, {{ name }}!`\n}\n"
	classes, _ := parse(t, src)
	attr := classes["Goblin"].Attrs["greeting"]
	p, ok := attr.Cmd.(*engine.Prerenderer)
	if !ok {
		t.Fatalf("expected a Prerenderer, got %T", attr.Cmd)
	}
	if p.Template != "Hail, {{ name }}!" {
		t.Errorf("unexpected template %q", p.Template)
	}
}

func TestParseHTMLHeaderAndBody(t *testing.T) {
	src := "Goblin {\n\thtml_header = `<h1>{{ name }}</h1>`\n\thtml_body = `<p>hp {{ hp }}</p>`\n}\n"
	classes, _ := parse(t, src)
	g := classes["Goblin"]
	if g.HTMLHeader == nil || *g.HTMLHeader != "<h1>{{ name }}</h1>" {
		t.Fatalf("unexpected html header %v", g.HTMLHeader)
	}
	if g.HTMLBody == nil || *g.HTMLBody != "<p>hp {{ hp }}</p>" {
		t.Fatalf("unexpected html body %v", g.HTMLBody)
	}
}

func TestParseInjectorBlock(t *testing.T) {
	src := `
Main {
	champion! @Goblin {
		name = "Grix"
		^ title @1d4
		loot * otherLoot
		owner & $parent
	}
}
`
	classes, _ := parse(t, src)
	champion := classes["Main"].Attrs["champion"].Cmd.(*engine.RollEntity)
	inj := champion.Injectors
	if len(inj.Appenders) != 3 {
		t.Fatalf("expected 3 appenders, got %d: %+v", len(inj.Appenders), inj.Appenders)
	}
	if len(inj.Prependers) != 1 {
		t.Fatalf("expected 1 prepender, got %d", len(inj.Prependers))
	}
	if _, ok := inj.Prependers[0].Cmd.(*engine.InjectDiceRoll); !ok {
		t.Fatalf("expected the prepended title injector to be an InjectDiceRoll, got %T", inj.Prependers[0].Cmd)
	}

	var sawSetValue, sawCopyValue, sawInjectPtr bool
	for _, e := range inj.Appenders {
		switch e.Cmd.(type) {
		case *engine.SetValue:
			sawSetValue = true
		case *engine.CopyValue:
			sawCopyValue = true
		case *engine.InjectPtr:
			sawInjectPtr = true
		}
	}
	if !sawSetValue || !sawCopyValue || !sawInjectPtr {
		t.Fatalf("expected SetValue, CopyValue and InjectPtr appenders, got %+v", inj.Appenders)
	}
}

func TestParseGlobalScalarAndList(t *testing.T) {
	src := `
$maxHP = 12
$goblinKinds = [ * "Runt" (x2) * "Brute" ]
Goblin {
	name! = "Grix"
}
`
	_, globals := parse(t, src)
	if globals["maxHP"] != 12 {
		t.Fatalf("expected maxHP = 12, got %v", globals["maxHP"])
	}
	list, ok := globals["goblinKinds"].([]interface{})
	if !ok || len(list) != 3 {
		t.Fatalf("expected a 3-element goblinKinds list, got %v", globals["goblinKinds"])
	}
}

func TestParseIncludeResolvesSiblingFile(t *testing.T) {
	resolver := func(dir, name string) (string, string, error) {
		if name != "shared" {
			t.Fatalf("unexpected include name %q", name)
		}
		return "shared.scroll", "Item {\n\tname! = \"Unnamed\"\n}\n", nil
	}
	src := `
@include "shared"
Weapon {
	~Item
	damage! @1d8
}
`
	classes, _, _, err := LoadString("", "main.scroll", src, resolver)
	if err != nil {
		t.Fatalf("parse with include: %v", err)
	}
	if _, ok := classes["Item"]; !ok {
		t.Fatal("expected the included Item class to be registered")
	}
	if _, ok := classes["Weapon"].Attrs["name"]; !ok {
		t.Fatal("expected Weapon to inherit name from the included Item")
	}
}

func TestLoadStringWarnsOnStopwordClassName(t *testing.T) {
	src := `
the {
	name! = "oops"
}
`
	_, _, warnings, err := LoadString("", "test.scroll", src, noIncludes)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	found := false
	for _, w := range warnings {
		if w.Kind == "class-name-is-stopword" && w.Subject == "the" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a class-name-is-stopword warning, got %+v", warnings)
	}
}
