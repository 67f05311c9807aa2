// Package class holds the scroll schema's class/semantic model: the
// parsed attribute commands, subclass specifiers, collection
// subscriptions, and the builder that expands a class against its
// parent chain.
package class

import "github.com/kittclouds/scrollforge/pkg/scrollerr"

// Attr is one declared attribute slot on a class: the command that
// produces its value, plus the visibility/cardinality flags carried
// in the scroll syntax (`!` public, `?` optional, `[min..max name]`
// array).
type Attr struct {
	Name       string
	Cmd        AttrCommand
	IsPublic   bool
	IsOptional bool
	IsArray    bool
}

// InjectorEntry pairs an injector command with the attribute name it
// targets on the owning entity.
type InjectorEntry struct {
	Attr string
	Cmd  InjectCommand
}

// Injectors holds one attribute command's prepending and appending
// injector blocks, applied to the *child* entity that command just
// rolled, used, or picked.
type Injectors struct {
	Prependers []InjectorEntry
	Appenders  []InjectorEntry
}

// Injectable is implemented by the AttrCommand kinds that produce a
// child entity (RollEntity, UseEntity, PickEntity) so a trailing `{
// … }` injector block in the scroll source can be attached to the
// specific command that declared it, rather than to the class as a
// whole.
type Injectable interface {
	AddPrepender(attr string, cmd InjectCommand)
	AddAppender(attr string, cmd InjectCommand)
}

// SubclassKind distinguishes the three subclass specifier shapes a
// class declaration may carry.
type SubclassKind int

const (
	SubclassEmpty SubclassKind = iota
	SubclassList
	SubclassVar
)

// SubclassesSpecifier names the concrete classes a `^`-subclassed
// class may resolve to at roll time: a literal list, a named
// variable holding a list, or none (roll the class itself).
type SubclassesSpecifier struct {
	Kind SubclassKind
	List []string
	Var  string
}

// CollectionAttribute names the virtual attribute a `<<` subscription
// exposes on the collecting entity (e.g. `rooms<<Room`).
type CollectionAttribute struct {
	AttrName   string
	IsPublic   bool
	IsOptional bool
	IsArray    bool
}

// CollectionSpecifier is one `<<` subscription a class declares: the
// child class it collects, and optionally the virtual attribute name
// exposing the collected uids.
type CollectionSpecifier struct {
	ClassName string
	Virtual   *CollectionAttribute
}

// Class is the concluded, immutable form of a class declaration, with
// all inherited attributes and metadata resolved.
type Class struct {
	Name       string
	AttrOrder  []string
	Attrs      map[string]Attr
	Subclasses SubclassesSpecifier
	Hierarchy  []string
	Collects   []CollectionSpecifier
	HTMLBody   *string
	HTMLHeader *string
}

// NamesToRoll resolves this class's subclass specifier into the set
// of concrete class names a roll may pick from.
func (c *Class) NamesToRoll(rt Runtime) []string {
	switch c.Subclasses.Kind {
	case SubclassList:
		if len(c.Subclasses.List) > 0 {
			return c.Subclasses.List
		}
	case SubclassVar:
		if v, ok := rt.Global(c.Subclasses.Var); ok {
			switch list := v.(type) {
			case []string:
				if len(list) > 0 {
					return list
				}
			case []interface{}:
				names := make([]string, 0, len(list))
				for _, item := range list {
					if s, ok := item.(string); ok {
						names = append(names, s)
					}
				}
				if len(names) > 0 {
					return names
				}
			}
		}
	}
	return []string{c.Name}
}

// ClassBuilder accumulates a class declaration's own attributes and
// metadata before being expanded against its parent chain and
// concluded into an immutable Class.
type ClassBuilder struct {
	name       string
	parent     string
	attrOrder  []string
	attrs      map[string]Attr
	subclasses SubclassesSpecifier
	hierarchy  []string
	collects   []CollectionSpecifier
	htmlBody   *string
	htmlHeader *string
	expanded   bool
}

// NewClassBuilder starts a class declaration named name, optionally
// inheriting from parent ("" for no parent).
func NewClassBuilder(name, parent string) *ClassBuilder {
	return &ClassBuilder{
		name:   name,
		parent: parent,
		attrs:  make(map[string]Attr),
	}
}

// Name returns the class name under construction.
func (b *ClassBuilder) Name() string { return b.name }

// Parent returns the declared parent class name, or "" if none.
func (b *ClassBuilder) Parent() string { return b.parent }

// AddAttr registers attr under name, overwriting any attribute of the
// same name inherited from a parent (child attributes win).
func (b *ClassBuilder) AddAttr(name string, attr Attr) {
	if _, exists := b.attrs[name]; !exists {
		b.attrOrder = append(b.attrOrder, name)
	}
	attr.Name = name
	b.attrs[name] = attr
}

// SetHTMLBody sets this class's own body template, independent of any
// header.
func (b *ClassBuilder) SetHTMLBody(tpl string) { b.htmlBody = &tpl }

// SetHTMLHeader sets this class's own header template, independent of
// any body.
func (b *ClassBuilder) SetHTMLHeader(tpl string) { b.htmlHeader = &tpl }

// SetSubclasses records this class's subclass specifier.
func (b *ClassBuilder) SetSubclasses(spec SubclassesSpecifier) { b.subclasses = spec }

// AddCollect registers a `<<` subscription.
func (b *ClassBuilder) AddCollect(spec CollectionSpecifier) {
	b.collects = append(b.collects, spec)
}

// AddPrepender registers a prepending injector targeting targetAttr on
// the child entity that ownerAttr's own command produces, by
// delegating to that command's Injectable implementation. A no-op if
// ownerAttr isn't declared or its command doesn't roll a child.
func (b *ClassBuilder) AddPrepender(ownerAttr, targetAttr string, cmd InjectCommand) {
	if a, ok := b.attrs[ownerAttr]; ok {
		if inj, ok := a.Cmd.(Injectable); ok {
			inj.AddPrepender(targetAttr, cmd)
		}
	}
}

// AddAppender registers an appending injector targeting targetAttr on
// the child entity that ownerAttr's own command produces.
func (b *ClassBuilder) AddAppender(ownerAttr, targetAttr string, cmd InjectCommand) {
	if a, ok := b.attrs[ownerAttr]; ok {
		if inj, ok := a.Cmd.(Injectable); ok {
			inj.AddAppender(targetAttr, cmd)
		}
	}
}

// Expand copies every attribute of parent into b that b does not
// already declare itself, and marks b as expanded so Conclude will not
// re-expand it.
func (b *ClassBuilder) Expand(parent *ClassBuilder) {
	for _, name := range parent.attrOrder {
		if _, exists := b.attrs[name]; exists {
			continue
		}
		b.attrOrder = append(b.attrOrder, name)
		b.attrs[name] = parent.attrs[name]
	}
	b.expanded = true
}

// Extends pushes b's own name onto its hierarchy first, then walks the
// ancestor chain via registry, pushing every visited class name after
// it (deepest ancestor last) — so Hierarchy reads self, parent,
// grandparent, … And, at each ancestor level, overwrites b's html
// body/header/collects with that ancestor's, so the *farthest*
// ancestor that declares them wins, matching the original
// ClassBuilder::extends loop order exactly (documented as an open
// question in DESIGN.md; kept literal since no invariant depends on
// the alternative "nearest wins" reading).
func (b *ClassBuilder) Extends(registry map[string]*ClassBuilder) {
	b.hierarchy = append(b.hierarchy, b.name)
	cur := b.parent
	for cur != "" {
		ancestor, ok := registry[cur]
		if !ok {
			break
		}
		b.hierarchy = append(b.hierarchy, cur)
		if ancestor.htmlBody != nil {
			b.htmlBody = ancestor.htmlBody
		}
		if ancestor.htmlHeader != nil {
			b.htmlHeader = ancestor.htmlHeader
		}
		if len(ancestor.collects) > 0 {
			b.collects = ancestor.collects
		}
		cur = ancestor.parent
	}
}

// Conclude expands b from its parent (if not already expanded) and
// re-overlays b's own attributes on top so child attributes always
// win, then walks the ancestor chain via Extends. A builder that is
// already concluded is left as it is.
func (b *ClassBuilder) Conclude(registry map[string]*ClassBuilder) error {
	if len(b.hierarchy) > 0 {
		return nil
	}
	if !b.expanded && b.parent != "" {
		parent, ok := registry[b.parent]
		if !ok {
			return &scrollerr.MissingClass{Name: b.parent}
		}
		if err := parent.Conclude(registry); err != nil {
			return err
		}
		own := b.attrs
		ownOrder := b.attrOrder
		b.attrs = make(map[string]Attr)
		b.attrOrder = nil
		b.Expand(parent)
		for _, name := range ownOrder {
			b.attrs[name] = own[name]
			found := false
			for _, existing := range b.attrOrder {
				if existing == name {
					found = true
					break
				}
			}
			if !found {
				b.attrOrder = append(b.attrOrder, name)
			}
		}
	}
	b.Extends(registry)
	return nil
}

// Build finalizes b into an immutable Class.
func (b *ClassBuilder) Build() *Class {
	return &Class{
		Name:       b.name,
		AttrOrder:  b.attrOrder,
		Attrs:      b.attrs,
		Subclasses: b.subclasses,
		Hierarchy:  b.hierarchy,
		Collects:   b.collects,
		HTMLBody:   b.htmlBody,
		HTMLHeader: b.htmlHeader,
	}
}
