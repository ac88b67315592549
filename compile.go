package weave

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnexpectedEnd is returned when an end tag appears with no block
	// open.
	ErrUnexpectedEnd = errors.New("unexpected end tag")

	// ErrMismatchedEnd is returned when an end tag names a different
	// keyword than the block it would close.
	ErrMismatchedEnd = errors.New("mismatched end tag")

	// ErrUnclosedBlock is returned when template text ends with one or
	// more blocks still open.
	ErrUnclosedBlock = errors.New("unclosed block")
)

// compiler turns template text into a routine for one mode. It consumes the
// lexer's tokens in order, batching output-producing instructions in buffer
// until a structural boundary flushes them into the builder, and tracks
// block nesting in ops so mismatched or unclosed blocks fail the compile.
type compiler struct {
	name    string
	text    string
	buffer  []string
	ops     []string
	builder *codeBuilder
}

func newCompiler(name, text string) *compiler {
	return &compiler{name: name, text: text}
}

func (c *compiler) compile(mode Mode) (*routine, error) {
	c.builder = newCodeBuilder(c.name, mode)
	c.buffer = c.buffer[:0]
	c.ops = c.ops[:0]

	lex := newLexer(c.text)
	for {
		tok, ok, err := lex.next()
		if err != nil {
			return nil, fmt.Errorf("compiling template %q: %w", c.name, err)
		}
		if !ok {
			break
		}
		switch tok.kind {
		case tokenLiteral:
			c.emit("__parts.push(" + quoteJS(tok.text) + ");")
		case tokenEval:
			c.emit("__parts.push((" + unwrap(tok.text) + "));")
		case tokenExec:
			c.emit(unwrap(tok.text) + ";")
		case tokenControl:
			if err := c.control(unwrap(tok.text), mode); err != nil {
				return nil, fmt.Errorf("compiling template %q: %w", c.name, err)
			}
		}
	}

	if len(c.ops) > 0 {
		return nil, fmt.Errorf("compiling template %q: %w: %s", c.name, ErrUnclosedBlock, strings.Join(c.ops, ", "))
	}
	c.flush()
	c.builder.addLine(`return __parts.map(String).join("");`)
	if err := c.builder.dedent(); err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", c.name, err)
	}
	return c.builder.build()
}

func (c *compiler) emit(line string) {
	c.buffer = append(c.buffer, line)
}

func (c *compiler) flush() {
	for _, line := range c.buffer {
		c.builder.addLine(line)
	}
	c.buffer = c.buffer[:0]
}

// control handles one {% ... %} tag. end<kw> closes the innermost block;
// if/for/while open one; else/elif continue the enclosing block without
// touching the nesting stack. Anything else is a component invocation.
func (c *compiler) control(inner string, mode Mode) error {
	if kw, ok := strings.CutPrefix(inner, "end"); ok {
		if len(c.ops) == 0 {
			return fmt.Errorf("%w: end%s with no open block", ErrUnexpectedEnd, kw)
		}
		last := c.ops[len(c.ops)-1]
		c.ops = c.ops[:len(c.ops)-1]
		if last != kw {
			return fmt.Errorf("%w: end%s closes %s block", ErrMismatchedEnd, kw, last)
		}
		c.flush()
		if err := c.builder.dedent(); err != nil {
			return err
		}
		c.builder.addLine("}")
		return nil
	}

	op, rest, _ := strings.Cut(inner, " ")
	rest = strings.TrimSpace(rest)
	switch op {
	case "if", "for", "while":
		c.ops = append(c.ops, op)
		c.flush()
		c.builder.addLine(op + " (" + rest + ") {")
		c.builder.indent()
	case "else":
		c.flush()
		if err := c.builder.dedent(); err != nil {
			return err
		}
		c.builder.addLine("} else {")
		c.builder.indent()
	case "elif":
		c.flush()
		if err := c.builder.dedent(); err != nil {
			return err
		}
		c.builder.addLine("} else if (" + rest + ") {")
		c.builder.indent()
	default:
		call := "__include(" + quoteJS(op)
		if rest != "" {
			call += ", {" + rewriteKeywordArgs(rest) + "}"
		}
		call += ")"
		if mode == Async {
			call = "await " + call
		}
		c.emit("__parts.push(" + call + ");")
	}
	return nil
}

// quoteJS renders s as a source-level string literal. JSON string syntax is
// a subset of the expression language's, and encoding/json escapes the
// U+2028/U+2029 separators that raw source must not contain.
func quoteJS(s string) string {
	quoted, err := json.Marshal(s)
	if err != nil {
		// strings always marshal
		panic(err)
	}
	return string(quoted)
}

// rewriteKeywordArgs converts name=value component arguments into object
// literal form by turning each top-level single = into a :. Equality and
// arrow operators, and anything nested in brackets or strings, are left
// alone, so native name: value arguments pass through unchanged.
func rewriteKeywordArgs(args string) string {
	var out strings.Builder
	out.Grow(len(args))
	depth := 0
	var quote byte
	for i := 0; i < len(args); i++ {
		ch := args[i]
		if quote != 0 {
			out.WriteByte(ch)
			if ch == '\\' && i+1 < len(args) {
				i++
				out.WriteByte(args[i])
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
			out.WriteByte(ch)
		case '(', '[', '{':
			depth++
			out.WriteByte(ch)
		case ')', ']', '}':
			depth--
			out.WriteByte(ch)
		case '=':
			var prev, next byte
			if i > 0 {
				prev = args[i-1]
			}
			if i+1 < len(args) {
				next = args[i+1]
			}
			if depth == 0 && next != '=' && next != '>' &&
				prev != '=' && prev != '!' && prev != '<' && prev != '>' {
				out.WriteByte(':')
			} else {
				out.WriteByte(ch)
			}
		default:
			out.WriteByte(ch)
		}
	}
	return out.String()
}
