// Package scroll implements the scroll-file lexer, parser, and
// class-builder wiring: the text format classes, attributes, subclass
// specifiers, injector blocks, and includes are authored in.
package scroll

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString       // "…"
	tokTemplate     // <%…%>
	tokBacktick     // `…`
	tokOp           // operator/punctuation, literal text in Text
	tokGlobal       // $name
	tokIndirectAttr // &attr or &attr.attr
)

type token struct {
	kind tokenKind
	text string
	line int
}

// operators is the fixed punctuation/operator set recognized at each
// scan position. Longest-match-wins so that "<<" is never split into
// two "<" tokens; coregx/ahocorasick's LeftmostLongest match kind gives
// this for free the same way the teacher's dictionary scanner in the
// now-folded implicit-matcher package classified entity names: one
// automaton, reused here for operator tokens instead of words.
var operators = []string{
	"<<", "..", "~", "@", "%", "?", "^", "!", "=", ":", "*", "&",
	"(", ")", "{", "}", "[", "]", ",", "+", "-",
}

var operatorAutomaton *ahocorasick.Automaton

func init() {
	a, err := ahocorasick.NewBuilder().
		AddStrings(operators).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		panic(fmt.Sprintf("scroll: building operator automaton: %v", err))
	}
	operatorAutomaton = a
}

type lexer struct {
	src   string
	file  string
	pos   int
	line  int
	toks  []token
}

func lex(file, src string) ([]token, error) {
	l := &lexer{src: src, file: file, line: 1}
	for {
		l.skipTrivia()
		if l.pos >= len(l.src) {
			l.toks = append(l.toks, token{kind: tokEOF, line: l.line})
			return l.toks, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipTrivia() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case unicode.IsSpace(rune(c)):
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() error {
	c := l.src[l.pos]
	switch {
	case c == '"':
		return l.scanDelimited('"', '"', tokString)
	case c == '`':
		return l.scanDelimited('`', '`', tokBacktick)
	case strings.HasPrefix(l.src[l.pos:], "<%"):
		return l.scanTemplate()
	case c == '$':
		return l.scanGlobal()
	case unicode.IsDigit(rune(c)):
		return l.scanNumber()
	case unicode.IsLetter(rune(c)) || c == '_':
		return l.scanIdent()
	default:
		return l.scanOperator()
	}
}

func (l *lexer) scanDelimited(open, close byte, kind tokenKind) error {
	start := l.pos
	l.pos++ // consume opening
	for l.pos < len(l.src) && l.src[l.pos] != close {
		if l.src[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}
	if l.pos >= len(l.src) {
		return fmt.Errorf("scroll: %s:%d: unterminated literal starting %q", l.file, l.line, string(open))
	}
	text := l.src[start+1 : l.pos]
	l.pos++ // consume closing
	l.toks = append(l.toks, token{kind: kind, text: text, line: l.line})
	return nil
}

func (l *lexer) scanTemplate() error {
	start := l.pos
	l.pos += 2
	end := strings.Index(l.src[l.pos:], "%>")
	if end < 0 {
		return fmt.Errorf("scroll: %s:%d: unterminated <%% template", l.file, l.line)
	}
	text := l.src[l.pos : l.pos+end]
	l.pos += end + 2
	l.line += strings.Count(l.src[start:l.pos], "\n")
	l.toks = append(l.toks, token{kind: tokTemplate, text: text, line: l.line})
	return nil
}

func (l *lexer) scanGlobal() error {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) && isIdentByte(l.src[l.pos]) {
		l.pos++
	}
	l.toks = append(l.toks, token{kind: tokGlobal, text: l.src[start+1 : l.pos], line: l.line})
	return nil
}

func (l *lexer) scanNumber() error {
	start := l.pos
	// A ".." ends the number, so "2..4" lexes as 2, "..", 4.
	for l.pos < len(l.src) && (unicode.IsDigit(rune(l.src[l.pos])) || (l.src[l.pos] == '.' && !strings.HasPrefix(l.src[l.pos:], ".."))) {
		l.pos++
	}
	// "NdM" dice notation (e.g. "2d6") reads as one ident token rather
	// than splitting into a number and a trailing "dM" identifier, so
	// isDiceNotation/readDiceSpec see it whole.
	if l.pos < len(l.src) && l.src[l.pos] == 'd' && l.pos+1 < len(l.src) && unicode.IsDigit(rune(l.src[l.pos+1])) {
		l.pos++
		for l.pos < len(l.src) && unicode.IsDigit(rune(l.src[l.pos])) {
			l.pos++
		}
		l.toks = append(l.toks, token{kind: tokIdent, text: l.src[start:l.pos], line: l.line})
		return nil
	}
	l.toks = append(l.toks, token{kind: tokNumber, text: l.src[start:l.pos], line: l.line})
	return nil
}

func (l *lexer) scanIdent() error {
	start := l.pos
	for l.pos < len(l.src) && (isIdentByte(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	l.toks = append(l.toks, token{kind: tokIdent, text: l.src[start:l.pos], line: l.line})
	return nil
}

func isIdentByte(c byte) bool {
	return unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) || c == '_' || c == '-'
}

func (l *lexer) scanOperator() error {
	matches := operatorAutomaton.FindAllOverlapping([]byte(l.src[l.pos:]))
	best := -1
	bestLen := 0
	for _, m := range matches {
		if m.Start != 0 {
			continue
		}
		if m.End-m.Start > bestLen {
			bestLen = m.End - m.Start
			best = m.PatternID
		}
	}
	if best < 0 {
		return fmt.Errorf("scroll: %s:%d: unexpected character %q", l.file, l.line, string(l.src[l.pos]))
	}
	text := l.src[l.pos : l.pos+bestLen]
	l.pos += bestLen
	l.toks = append(l.toks, token{kind: tokOp, text: text, line: l.line})
	return nil
}
