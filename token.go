package weave

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnterminatedTag is returned when a tag opener has no matching closer
// before the end of the template text.
var ErrUnterminatedTag = errors.New("unterminated tag")

type tokenKind int

const (
	tokenLiteral tokenKind = iota // verbatim text between tags
	tokenEval                     // {{ expr }}
	tokenExec                     // {# stmt #}
	tokenControl                  // {% ... %}
)

func (k tokenKind) String() string {
	switch k {
	case tokenEval:
		return "eval"
	case tokenExec:
		return "exec"
	case tokenControl:
		return "control"
	}
	return "literal"
}

// token is one classified span of template source. text is the raw span,
// delimiters included, so that literal tokens reproduce the input exactly.
type token struct {
	kind tokenKind
	text string
}

var delimiters = []struct {
	open, close string
	kind        tokenKind
}{
	{"{{", "}}", tokenEval},
	{"{%", "%}", tokenControl},
	{"{#", "#}", tokenExec},
}

// lexer walks template text and hands out tokens in source order. The
// tokens cover the whole input with no gaps; empty literal runs between
// adjacent tags are skipped rather than emitted.
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

// next returns the next token. The second return is false once the input
// is exhausted. Tag delimiters do not nest; a tag's span ends at the first
// matching closer.
func (l *lexer) next() (token, bool, error) {
	if l.pos >= len(l.input) {
		return token{}, false, nil
	}
	rest := l.input[l.pos:]
	at, which := -1, 0
	for i, d := range delimiters {
		if idx := strings.Index(rest, d.open); idx >= 0 && (at < 0 || idx < at) {
			at, which = idx, i
		}
	}
	if at < 0 {
		l.pos = len(l.input)
		return token{kind: tokenLiteral, text: rest}, true, nil
	}
	if at > 0 {
		l.pos += at
		return token{kind: tokenLiteral, text: rest[:at]}, true, nil
	}
	d := delimiters[which]
	end := strings.Index(rest[len(d.open):], d.close)
	if end < 0 {
		return token{}, false, fmt.Errorf("%w: %s opened at offset %d", ErrUnterminatedTag, d.open, l.pos)
	}
	text := rest[:len(d.open)+end+len(d.close)]
	l.pos += len(text)
	return token{kind: d.kind, text: text}, true, nil
}

// unwrap reduces a raw tag to its inner source: outer whitespace goes,
// then the delimiter pair, then any - trim markers sitting immediately
// inside the delimiters, then whatever whitespace is left. Text that isn't
// wrapped in a delimiter pair comes back with outer space trimmed only, so
// unwrapping an already-unwrapped tag changes nothing.
func unwrap(raw string) string {
	s := strings.TrimSpace(raw)
	for _, d := range delimiters {
		if len(s) >= len(d.open)+len(d.close) && strings.HasPrefix(s, d.open) && strings.HasSuffix(s, d.close) {
			inner := s[len(d.open) : len(s)-len(d.close)]
			inner = strings.Trim(inner, "-")
			return strings.TrimSpace(inner)
		}
	}
	return s
}
