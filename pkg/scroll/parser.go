package scroll

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kittclouds/scrollforge/pkg/class"
	"github.com/kittclouds/scrollforge/pkg/engine"
	"github.com/kittclouds/scrollforge/pkg/scrollerr"
)

// IncludeResolver loads the contents of a sibling scroll file named by
// a `@include "name"` statement, given the directory of the including
// file.
type IncludeResolver func(dir, name string) (path, contents string, err error)

// Parser accumulates class builders and global variables across one
// scroll file and its transitive includes.
type Parser struct {
	registry map[string]*class.ClassBuilder
	order    []string
	globals  map[string]interface{}
	resolve  IncludeResolver
	seen     map[string]bool
}

// NewParser constructs an empty Parser using resolve to follow
// @include statements.
func NewParser(resolve IncludeResolver) *Parser {
	return &Parser{
		registry: map[string]*class.ClassBuilder{},
		globals:  map[string]interface{}{},
		resolve:  resolve,
		seen:     map[string]bool{},
	}
}

// ParseFile parses the named file (and anything it transitively
// includes) into the Parser's registry and globals.
func (p *Parser) ParseFile(dir, name, src string) error {
	key := dir + "/" + name
	if p.seen[key] {
		return nil
	}
	p.seen[key] = true

	toks, err := lex(name, src)
	if err != nil {
		return &scrollerr.ParseError{File: name, Msg: err.Error()}
	}
	ps := &fileParser{Parser: p, toks: toks, file: name, dir: dir}
	return ps.parseTopLevel()
}

// Finish concludes every registered class builder (resolving
// extends/expand) and returns the finished class map plus globals.
func (p *Parser) Finish() (map[string]*class.Class, map[string]interface{}, error) {
	classes := map[string]*class.Class{}
	for _, name := range p.order {
		b := p.registry[name]
		if err := b.Conclude(p.registry); err != nil {
			return nil, nil, &scrollerr.ParseError{Msg: fmt.Sprintf("concluding class %q: %v", name, err)}
		}
		classes[name] = b.Build()
	}
	return classes, p.globals, nil
}

type fileParser struct {
	*Parser
	toks []token
	pos  int
	file string
	dir  string
}

func (fp *fileParser) peek() token  { return fp.toks[fp.pos] }
func (fp *fileParser) at(i int) token {
	if fp.pos+i >= len(fp.toks) {
		return fp.toks[len(fp.toks)-1]
	}
	return fp.toks[fp.pos+i]
}
func (fp *fileParser) advance() token {
	t := fp.toks[fp.pos]
	if fp.pos < len(fp.toks)-1 {
		fp.pos++
	}
	return t
}
func (fp *fileParser) errf(format string, args ...interface{}) error {
	return &scrollerr.ParseError{File: fp.file, Line: fp.peek().line, Msg: fmt.Sprintf(format, args...)}
}
func (fp *fileParser) expectOp(op string) error {
	t := fp.peek()
	if t.kind != tokOp || t.text != op {
		return fp.errf("expected %q, found %q", op, t.text)
	}
	fp.advance()
	return nil
}
func (fp *fileParser) isOp(op string) bool {
	t := fp.peek()
	return t.kind == tokOp && t.text == op
}

func (fp *fileParser) parseTopLevel() error {
	for fp.peek().kind != tokEOF {
		t := fp.peek()
		switch {
		case t.kind == tokOp && t.text == "@" && fp.at(1).kind == tokIdent && fp.at(1).text == "include":
			fp.advance()
			fp.advance()
			if err := fp.parseInclude(); err != nil {
				return err
			}
		case t.kind == tokGlobal:
			if err := fp.parseGlobalDef(); err != nil {
				return err
			}
		case t.kind == tokIdent:
			if err := fp.parseClassDef(); err != nil {
				return err
			}
		default:
			return fp.errf("unexpected token %q at top level", t.text)
		}
	}
	return nil
}

func (fp *fileParser) parseInclude() error {
	t := fp.advance()
	if t.kind != tokString {
		return fp.errf("expected quoted include name, found %q", t.text)
	}
	path, contents, err := fp.resolve(fp.dir, t.text)
	if err != nil {
		return &scrollerr.ParseError{File: fp.file, Line: t.line, Msg: err.Error()}
	}
	return fp.Parser.ParseFile(fp.dir, path, contents)
}

func (fp *fileParser) parseGlobalDef() error {
	name := fp.advance().text // consumes the $name token's text (without $)
	if err := fp.expectOp("="); err != nil {
		return err
	}
	if fp.isOp("[") {
		list, err := fp.parseProbabilityList()
		if err != nil {
			return err
		}
		fp.globals[name] = list
		return nil
	}
	fp.globals[name] = tokenLiteral(fp.advance())
	return nil
}

func tokenLiteral(t token) interface{} {
	switch t.kind {
	case tokNumber:
		if n, err := strconv.Atoi(t.text); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(t.text, 64)
		return f
	case tokString, tokIdent:
		if t.text == "true" {
			return true
		}
		if t.text == "false" {
			return false
		}
		return t.text
	default:
		return t.text
	}
}

func (fp *fileParser) parseClassDef() error {
	nameTok := fp.advance()
	name := nameTok.text
	parent := ""
	if fp.isOp("(") {
		fp.advance()
		parent = fp.advance().text
		if err := fp.expectOp(")"); err != nil {
			return err
		}
	}
	b := class.NewClassBuilder(name, parent)
	fp.registry[name] = b
	fp.order = append(fp.order, name)

	if err := fp.expectOp("{"); err != nil {
		return err
	}
	for !fp.isOp("}") {
		if err := fp.parseClassStatement(b); err != nil {
			return err
		}
	}
	fp.advance() // "}"
	return nil
}

// parseClassStatement dispatches on the leading token of one
// statement inside a class body. See DESIGN.md's pkg/scroll entry for
// the concrete grammar decisions this reconstructs.
func (fp *fileParser) parseClassStatement(b *class.ClassBuilder) error {
	t := fp.peek()
	switch {
	case t.kind == tokOp && t.text == "~":
		fp.advance()
		other := fp.advance().text
		if ob, ok := fp.registry[other]; ok {
			b.Expand(ob)
		}
		return nil
	case t.kind == tokOp && t.text == "^":
		fp.advance()
		return fp.parseSubclassSpec(b)
	case t.kind == tokOp && t.text == "<<":
		fp.advance()
		cls := fp.advance().text
		b.AddCollect(class.CollectionSpecifier{ClassName: cls})
		return nil
	case t.kind == tokOp && t.text == "[":
		return fp.parseCardinalAttr(b)
	case t.kind == tokIdent && (t.text == "html_header" || t.text == "html_body"):
		return fp.parseHTML(b)
	case t.kind == tokIdent:
		return fp.parseAttrOrCollect(b)
	default:
		return fp.errf("unexpected token %q in class body", t.text)
	}
}

func (fp *fileParser) parseHTML(b *class.ClassBuilder) error {
	which := fp.advance().text
	if err := fp.expectOp("="); err != nil {
		return err
	}
	body := fp.advance()
	if body.kind != tokBacktick {
		return fp.errf("%s expects a backtick template", which)
	}
	if which == "html_header" {
		b.SetHTMLHeader(body.text)
	} else {
		b.SetHTMLBody(body.text)
	}
	return nil
}

func (fp *fileParser) parseSubclassSpec(b *class.ClassBuilder) error {
	if fp.peek().kind == tokGlobal {
		v := fp.advance().text
		b.SetSubclasses(class.SubclassesSpecifier{Kind: class.SubclassVar, Var: v})
		return nil
	}
	if err := fp.expectOp("["); err != nil {
		return err
	}
	var names []string
	for !fp.isOp("]") {
		n := fp.advance()
		if fp.isOp("(") { // probability multiplier "(xN)"
			fp.advance()
			multTok := fp.advance() // single "xN" identifier token
			if err := fp.expectOp(")"); err != nil {
				return err
			}
			mult := parseMultiplier(multTok.text)
			for i := 0; i < mult; i++ {
				names = append(names, n.text)
			}
		} else {
			names = append(names, n.text)
		}
		if fp.isOp(",") {
			fp.advance()
		}
	}
	fp.advance() // "]"
	b.SetSubclasses(class.SubclassesSpecifier{Kind: class.SubclassList, List: names})
	return nil
}

// attrSpec is the parsed `name!?` flag suffix form.
type attrSpec struct {
	name              string
	isPublic, isOptional bool
}

func (fp *fileParser) parseAttrSpec() attrSpec {
	spec := attrSpec{name: fp.advance().text}
	for fp.isOp("!") || fp.isOp("?") {
		if fp.isOp("!") {
			spec.isPublic = true
		} else if fp.at(1).kind == tokIdent {
			// "? Class" is a UseEntity command, not an optional flag.
			break
		} else {
			spec.isOptional = true
		}
		fp.advance()
	}
	return spec
}

func (fp *fileParser) parseCardinalAttr(b *class.ClassBuilder) error {
	if err := fp.expectOp("["); err != nil {
		return err
	}
	min, err := fp.parseCardinalityValue()
	if err != nil {
		return err
	}
	if err := fp.expectOp(".."); err != nil {
		return err
	}
	max, err := fp.parseCardinalityValue()
	if err != nil {
		return err
	}
	spec := fp.parseAttrSpec()
	if err := fp.expectOp("]"); err != nil {
		return err
	}
	return fp.parseEntityCommand(b, spec, min, max)
}

func (fp *fileParser) parseCardinalityValue() (class.CardinalityValue, error) {
	if fp.peek().kind == tokGlobal {
		v := fp.advance().text
		return class.CardinalityValue{Defined: true, IsVariable: true, Variable: v}, nil
	}
	t := fp.advance()
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return class.CardinalityValue{}, fp.errf("expected cardinality number, found %q", t.text)
	}
	return class.CardinalityValue{Defined: true, Number: n}, nil
}

func (fp *fileParser) parseAttrOrCollect(b *class.ClassBuilder) error {
	spec := fp.parseAttrSpec()
	if fp.isOp("<<") {
		fp.advance()
		cls := fp.advance().text
		b.AddCollect(class.CollectionSpecifier{
			ClassName: cls,
			Virtual:   &class.CollectionAttribute{AttrName: spec.name, IsPublic: spec.isPublic, IsOptional: spec.isOptional},
		})
		return nil
	}
	return fp.parseEntityCommand(b, spec, class.CardinalityValue{}, class.CardinalityValue{})
}

// parseEntityCommand parses the operator-driven command body following
// an attribute name (and, for RollEntity/UseEntity/PickEntity, an
// optional cardinality prefix already parsed into min/max).
func (fp *fileParser) parseEntityCommand(b *class.ClassBuilder, spec attrSpec, min, max class.CardinalityValue) error {
	t := fp.peek()
	switch {
	case t.kind == tokOp && t.text == "=":
		fp.advance()
		return fp.parseAssign(b, spec)
	case t.kind == tokOp && t.text == "~":
		fp.advance()
		val := tokenLiteral(fp.advance())
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.WeakAssigner{Literal: val}, IsPublic: spec.isPublic, IsOptional: spec.isOptional})
		return nil
	case t.kind == tokBacktick:
		fp.advance()
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.Prerenderer{Template: t.text}, IsPublic: spec.isPublic, IsOptional: spec.isOptional})
		return nil
	case t.kind == tokOp && t.text == "@":
		fp.advance()
		return fp.parseAtCommand(b, spec, min, max)
	case t.kind == tokOp && t.text == "%":
		fp.advance()
		cls := fp.advance().text
		isArray := min.Defined && max.Defined
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.PickEntity{ChildClass: cls, Min: min, Max: max, IsArray: isArray}, IsPublic: spec.isPublic, IsOptional: spec.isOptional, IsArray: isArray})
		return fp.maybeInjectorBlock(b, spec.name)
	case t.kind == tokOp && t.text == "?":
		fp.advance()
		cls := fp.advance().text
		isArray := min.Defined && max.Defined
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.UseEntity{ChildClass: cls, Min: min, Max: max, IsArray: isArray}, IsPublic: spec.isPublic, IsOptional: spec.isOptional, IsArray: isArray})
		return fp.maybeInjectorBlock(b, spec.name)
	default:
		return fp.errf("unexpected token %q after attribute %q", t.text, spec.name)
	}
}

func (fp *fileParser) parseAssign(b *class.ClassBuilder, spec attrSpec) error {
	t := fp.peek()
	switch {
	case t.kind == tokOp && (t.text == ":" || t.text == "*"):
		fp.advance()
		path := fp.advance().text
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.ContextRef{SourceAttr: path}, IsPublic: spec.isPublic, IsOptional: spec.isOptional})
		return nil
	default:
		v := fp.advance()
		value := tokenLiteral(v)
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.Assigner{Literal: value}, IsPublic: spec.isPublic, IsOptional: spec.isOptional})
		return nil
	}
}

func (fp *fileParser) parseAtCommand(b *class.ClassBuilder, spec attrSpec, min, max class.CardinalityValue) error {
	t := fp.peek()
	switch {
	case t.kind == tokGlobal:
		v := fp.advance().text
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.VariableRoller{VarName: v}, IsPublic: spec.isPublic, IsOptional: spec.isOptional})
		return nil
	case t.kind == tokOp && t.text == "[":
		values, err := fp.parseProbabilityList()
		if err != nil {
			return err
		}
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.ListRoller{Values: values}, IsPublic: spec.isPublic, IsOptional: spec.isOptional})
		return nil
	case t.kind == tokOp && t.text == "(":
		fp.advance()
		var classes []string
		for !fp.isOp(")") {
			classes = append(classes, fp.advance().text)
			if fp.isOp(",") {
				fp.advance()
			}
		}
		fp.advance() // ")"
		isArray := min.Defined && max.Defined
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.RollEntity{ChildClasses: classes, Min: min, Max: max, IsArray: isArray}, IsPublic: spec.isPublic, IsOptional: spec.isOptional, IsArray: isArray})
		return fp.maybeInjectorBlock(b, spec.name)
	case t.kind == tokIdent && isDiceNotation(t.text):
		diceSpec := fp.readDiceSpec()
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.DiceRoller{Spec: diceSpec}, IsPublic: spec.isPublic, IsOptional: spec.isOptional})
		return nil
	case t.kind == tokIdent:
		cls := fp.advance().text
		isArray := min.Defined && max.Defined
		b.AddAttr(spec.name, class.Attr{Name: spec.name, Cmd: &engine.RollEntity{ChildClasses: []string{cls}, Min: min, Max: max, IsArray: isArray}, IsPublic: spec.isPublic, IsOptional: spec.isOptional, IsArray: isArray})
		return fp.maybeInjectorBlock(b, spec.name)
	default:
		return fp.errf("unexpected token %q after @", t.text)
	}
}

// maybeInjectorBlock parses a trailing `{ … }` injector block, if
// present, immediately after an entity-rolling attribute named
// ownerAttr. Each injector targets the child entity that ownerAttr's
// own command rolls, uses, or picks — never the entity declaring
// ownerAttr itself — so the block is attached to that command
// instance via class.ClassBuilder.AddPrepender/AddAppender.
func (fp *fileParser) maybeInjectorBlock(b *class.ClassBuilder, ownerAttr string) error {
	if !fp.isOp("{") {
		return nil
	}
	fp.advance()
	for !fp.isOp("}") {
		prepend := false
		if fp.isOp("^") {
			prepend = true
			fp.advance()
		}
		spec := fp.parseAttrSpec()
		cmd, err := fp.parseInjectCommand(spec)
		if err != nil {
			return err
		}
		if prepend {
			b.AddPrepender(ownerAttr, spec.name, cmd)
		} else {
			b.AddAppender(ownerAttr, spec.name, cmd)
		}
	}
	fp.advance() // "}"
	return nil
}

func (fp *fileParser) parseInjectCommand(spec attrSpec) (class.InjectCommand, error) {
	t := fp.peek()
	switch {
	case t.kind == tokOp && t.text == "=":
		fp.advance()
		val := tokenLiteral(fp.advance())
		return &engine.SetValue{Value: val}, nil
	case t.kind == tokOp && t.text == "@":
		fp.advance()
		n := fp.peek()
		if n.kind == tokOp && n.text == "[" {
			values, err := fp.parseProbabilityList()
			if err != nil {
				return nil, err
			}
			return &engine.InjectListRoller{Values: values}, nil
		}
		dice := fp.readDiceSpec()
		return &engine.InjectDiceRoll{Spec: dice}, nil
	case t.kind == tokOp && t.text == "*":
		fp.advance()
		path := fp.advance().text
		return &engine.CopyValue{SourceAttr: path}, nil
	case t.kind == tokOp && t.text == "&":
		fp.advance()
		path := fp.advance().text
		return &engine.InjectPtr{Path: path}, nil
	default:
		return nil, fp.errf("unexpected token %q in injector block", t.text)
	}
}

// parseProbabilityList parses `[ * a (xN) * b … ]`, expanding each
// bullet's `(xN)` multiplier into N duplicate entries at parse time
// rather than at roll time.
func (fp *fileParser) parseProbabilityList() ([]interface{}, error) {
	if err := fp.expectOp("["); err != nil {
		return nil, err
	}
	var out []interface{}
	for !fp.isOp("]") {
		if fp.isOp("*") {
			fp.advance()
		}
		item := fp.advance()
		mult := 1
		if fp.isOp("(") {
			fp.advance()
			multTok := fp.advance()
			if err := fp.expectOp(")"); err != nil {
				return nil, err
			}
			mult = parseMultiplier(multTok.text)
		}
		for i := 0; i < mult; i++ {
			out = append(out, tokenLiteral(item))
		}
	}
	fp.advance() // "]"
	return out, nil
}

func isDiceNotation(s string) bool {
	i := strings.IndexByte(s, 'd')
	if i <= 0 {
		return false
	}
	if _, err := strconv.Atoi(s[:i]); err != nil {
		return false
	}
	return true
}

// parseMultiplier reads the N out of a "(xN)" probability specifier's
// single "xN" identifier token.
func parseMultiplier(s string) int {
	if n, err := strconv.Atoi(strings.TrimPrefix(s, "x")); err == nil {
		return n
	}
	return 1
}

// readDiceSpec consumes a "NdM" identifier token followed by an
// optional "+K"/"-K" modifier (two further tokens, since "+"/"-" and
// the number lex separately) and reassembles the full dice-notation
// string expected by pkg/helpers.ParseDice.
func (fp *fileParser) readDiceSpec() string {
	spec := fp.advance().text
	if fp.isOp("+") || fp.isOp("-") {
		sign := fp.advance().text
		num := fp.advance().text
		spec += sign + num
	}
	return spec
}
