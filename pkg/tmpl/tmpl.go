// Package tmpl adapts github.com/nikolalohinski/gonja/v2 for scroll
// template bodies and headers: Jinja2-compatible syntax with
// chainable-undefined access, so `{{ a.b.c }}` on a missing `a`
// renders empty instead of raising, matching the original's
// minijinja::UndefinedBehavior::Chainable.
package tmpl

import (
	"fmt"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"

	"github.com/kittclouds/scrollforge/pkg/scrollerr"
)

// Func is a helper catalogue entry: a variadic function over plain Go
// values, registered as both a gonja filter (first positional
// argument is the piped value) and a gonja global function (all
// arguments positional).
type Func func(args ...interface{}) (interface{}, error)

// Environment wraps a configured gonja environment and the catalogue
// of helper functions registered against it.
type Environment struct {
	env *exec.Environment
}

// New builds an Environment with chainable-undefined semantics.
func New() *Environment {
	cfg := gonja.NewConfig()
	cfg.Undefined = exec.NewChainableUndefined
	env := gonja.NewEnvironment(cfg, gonja.DefaultLoader)
	return &Environment{env: env}
}

// Register adds fn under name, usable in templates both as a filter
// (`{{ value | name(args) }}`) and as a global function
// (`{{ name(value, args) }}`), matching spec §4.6.3's dual exposure of
// the helper catalogue.
func (e *Environment) Register(name string, fn Func) {
	e.env.Filters.Register(name, func(ev *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
		args := make([]interface{}, 0, len(params.Args)+1)
		args = append(args, in.Interface())
		for _, p := range params.Args {
			args = append(args, p.Interface())
		}
		out, err := fn(args...)
		if err != nil {
			return exec.AsValue(fmt.Errorf("tmpl: filter %s: %w", name, err))
		}
		return exec.AsValue(out)
	})
	e.env.Context.Set(name, func(args ...interface{}) interface{} {
		out, err := fn(args...)
		if err != nil {
			return nil
		}
		return out
	})
}

// Render evaluates src against ctx and returns the resulting string.
func (e *Environment) Render(src string, ctx map[string]interface{}) (string, error) {
	tpl, err := e.env.FromString(src)
	if err != nil {
		return "", &scrollerr.TemplateError{Err: err}
	}
	out, err := tpl.ExecuteToString(exec.NewContext(ctx))
	if err != nil {
		return "", &scrollerr.TemplateError{Err: err}
	}
	return out, nil
}
