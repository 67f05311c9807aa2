// Package scrollerr defines the closed set of error kinds produced by
// scrollforge's parser, class model, engine, store, and renderer.
package scrollerr

import "fmt"

// ParseError reports a malformed scroll source file.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("scroll: parse error in %s:%d: %s", e.File, e.Line, e.Msg)
}

// MissingEntity reports a lookup for a uid that has no entry in the store.
type MissingEntity struct {
	UID string
}

func (e *MissingEntity) Error() string {
	return fmt.Sprintf("scroll: missing entity %q", e.UID)
}

// MissingClass reports a reference to a class name not present in the
// parsed class map.
type MissingClass struct {
	Name string
}

func (e *MissingClass) Error() string {
	return fmt.Sprintf("scroll: missing class %q", e.Name)
}

// MissingAttribute reports a reference to an attribute not declared on
// a class, or a list-rolling attribute with no values to choose from.
type MissingAttribute struct {
	Class, Attr string
}

func (e *MissingAttribute) Error() string {
	return fmt.Sprintf("scroll: missing attribute %q on class %q", e.Attr, e.Class)
}

// MissingVariable reports a reference to an undeclared top-level
// scroll variable.
type MissingVariable struct {
	Name string
}

func (e *MissingVariable) Error() string {
	return fmt.Sprintf("scroll: missing variable %q", e.Name)
}

// InvalidContext reports a generation-context tag used where the
// command kind does not support it (e.g. a reroll payload applied to
// a plain roll).
type InvalidContext struct {
	Op, Reason string
}

func (e *InvalidContext) Error() string {
	return fmt.Sprintf("scroll: invalid context for %s: %s", e.Op, e.Reason)
}

// IndirectionFailure reports a context/pointer indirection that could
// not be resolved before reaching the root of the hierarchy.
type IndirectionFailure struct {
	UID, Attr string
}

func (e *IndirectionFailure) Error() string {
	return fmt.Sprintf("scroll: indirection failure resolving %q from %q", e.Attr, e.UID)
}

// TemplateError wraps an error raised by the template engine while
// rendering a body, header, or helper-produced string.
type TemplateError struct {
	Err error
}

func (e *TemplateError) Error() string { return fmt.Sprintf("scroll: template error: %v", e.Err) }
func (e *TemplateError) Unwrap() error { return e.Err }

// StoreError wraps an underlying sql/driver error from the backing
// store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("scroll: store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }
