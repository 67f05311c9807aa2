// Package helpers is the catalogue of template-facing functions
// scroll bodies and headers call, ported from the original's
// renderer_env.rs: text shaping, collection utilities, deterministic
// dice, and the URL builders the inspector UI's links depend on.
package helpers

import "github.com/kittclouds/scrollforge/pkg/tmpl"

// RegisterAll wires the full catalogue into env, binding the
// sandbox-scoped URL helpers (sandbox, html_link) to sid.
func RegisterAll(env *tmpl.Environment, sid string) {
	env.Register("trim", Trim)
	env.Register("capitalize", Capitalize)
	env.Register("title", Title)
	env.Register("articlize", Articlize)
	env.Register("currency", Currency)
	env.Register("plural", Plural)
	env.Register("plural_with_count", PluralWithCount)
	env.Register("if_plural_else", IfPluralElse)
	env.Register("count_identical", CountIdentical)
	env.Register("bulletize", Bulletize)
	env.Register("sortby", SortBy)
	env.Register("unique", Unique)

	env.Register("first", First)
	env.Register("length", Length)
	env.Register("max", Max)
	env.Register("sum", Sum)
	env.Register("round", Round)
	env.Register("int", Int)
	env.Register("float", Float)
	env.Register("maybe", Maybe)
	env.Register("list_to_obj", ListToObj)
	env.Register("hex_coords", HexCoords)

	env.Register("reroller", Reroller)
	env.Register("html_link", HTMLLink(sid))
	env.Register("sandbox", Sandbox(sid))

	env.Register("begin_spoiler", BeginSpoiler)
	env.Register("end_spoiler", EndSpoiler)
	env.Register("toc_breadcrumb", TOCBreadcrumb)
	env.Register("sandbox_breadcrumb", SandboxBreadcrumb)
	env.Register("note_button", NoteButton)
	env.Register("note_container", NoteContainer)

	env.Register("stable_dice", func(args ...interface{}) (interface{}, error) {
		if len(args) < 3 {
			return 0, nil
		}
		seedKey := toString(args[0])
		idx, _ := toFloat(args[1])
		spec := toString(args[2])
		return StableDice(seedKey, int(idx), spec)
	})
}
