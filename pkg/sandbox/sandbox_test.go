package sandbox

import (
	"path/filepath"
	"testing"

	"github.com/kittclouds/scrollforge/pkg/class"
	"github.com/kittclouds/scrollforge/pkg/engine"
)

func fixtureClasses() map[string]*class.Class {
	header := "<h1>{{ name }}</h1>"
	body := "<p>hp {{ hp }}</p>"
	return map[string]*class.Class{
		"main": {
			Name:      "main",
			AttrOrder: []string{"champion"},
			Attrs: map[string]class.Attr{
				"champion": {Name: "champion", Cmd: &engine.RollEntity{ChildClasses: []string{"Goblin"}}, IsPublic: true},
			},
		},
		"Goblin": {
			Name:       "Goblin",
			AttrOrder:  []string{"name", "hp"},
			HTMLHeader: &header,
			HTMLBody:   &body,
			Attrs: map[string]class.Attr{
				"name": {Name: "name", Cmd: &engine.Assigner{Literal: "Goblin"}, IsPublic: true},
				"hp":   {Name: "hp", Cmd: &engine.DiceRoller{Spec: "2d6"}, IsPublic: true},
			},
		},
		"Warren": {
			Name:      "Warren",
			AttrOrder: []string{"members"},
			Attrs: map[string]class.Attr{
				"members": {Name: "members", Cmd: &engine.RollEntity{ChildClasses: []string{"Goblin"}, Min: class.CardinalityValue{Defined: true, Number: 0}, Max: class.CardinalityValue{Defined: true, Number: 0}, IsArray: true}, IsPublic: true, IsArray: true},
			},
			Collects: []class.CollectionSpecifier{{ClassName: "Goblin"}},
		},
	}
}

func TestCreateRollsMainAndRecordsRoot(t *testing.T) {
	inst := New()
	inst.Classes = fixtureClasses()
	path := filepath.Join(t.TempDir(), "sandbox.db")

	if err := inst.Create(path); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer inst.Close()

	if inst.Sid == "" {
		t.Fatal("expected a non-empty sandbox id after create")
	}

	proj, err := inst.RenderEntity(inst.Sid, true)
	if err != nil {
		t.Fatalf("render entity: %v", err)
	}
	champion, ok := proj["champion"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected champion to render as a resolved map, got %T", proj["champion"])
	}
	if champion["name"] != "Goblin" {
		t.Errorf("expected the rolled champion's name, got %v", champion["name"])
	}
}

func TestOpenRecoversSidFromExistingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandbox.db")

	first := New()
	first.Classes = fixtureClasses()
	if err := first.Create(path); err != nil {
		t.Fatalf("create: %v", err)
	}
	wantSid := first.Sid
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := New()
	second.Classes = fixtureClasses()
	if err := second.Open(path); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer second.Close()

	if second.Sid != wantSid {
		t.Fatalf("expected recovered sid %q, got %q", wantSid, second.Sid)
	}
}

func TestRollUnrollRerollAppendRoundTrip(t *testing.T) {
	inst := New()
	inst.Classes = fixtureClasses()
	path := filepath.Join(t.TempDir(), "sandbox.db")
	if err := inst.Create(path); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer inst.Close()

	warrenUID, err := inst.Roll("Warren", inst.Sid)
	if err != nil {
		t.Fatalf("roll warren: %v", err)
	}

	g1, err := inst.Append(warrenUID, "members", "Goblin")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	newG1, err := inst.Reroll(g1)
	if err != nil {
		t.Fatalf("reroll: %v", err)
	}
	if newG1 == g1 {
		t.Fatal("expected reroll to produce a different uid")
	}

	parentUID, err := inst.Unroll(warrenUID)
	if err != nil {
		t.Fatalf("unroll: %v", err)
	}
	if parentUID != inst.Sid {
		t.Fatalf("expected unroll to report the warren's parent %q, got %q", inst.Sid, parentUID)
	}

	if _, err := inst.RenderEntity(warrenUID, true); err == nil {
		t.Fatal("expected rendering an unrolled entity to fail")
	}
}

func TestRenderEntityHTML(t *testing.T) {
	inst := New()
	inst.Classes = fixtureClasses()
	path := filepath.Join(t.TempDir(), "sandbox.db")
	if err := inst.Create(path); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer inst.Close()

	goblinUID, err := inst.Roll("Goblin", inst.Sid)
	if err != nil {
		t.Fatalf("roll goblin: %v", err)
	}
	header, body, err := inst.RenderEntityHTML(goblinUID)
	if err != nil {
		t.Fatalf("render entity html: %v", err)
	}
	if header == "" || body == "" {
		t.Fatalf("expected non-empty header/body, got header=%q body=%q", header, body)
	}
}
