package weave

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// Mode selects which of the two render routines a template compiles to.
type Mode bool

const (
	// Sync compiles an ordinary routine; component invocations call
	// Render on the embedded component.
	Sync Mode = false

	// Async compiles a suspend-capable routine; component invocations
	// are await points that call RenderContext on the embedded component.
	Async Mode = true
)

func (m Mode) String() string {
	if m == Async {
		return "async"
	}
	return "sync"
}

var errDedentUnderflow = errors.New("dedent below zero")

// codeBuilder accumulates the generated source for one routine: an ordered
// line list and an indentation cursor. Each template compile uses a fresh
// builder; build may only be called once.
type codeBuilder struct {
	name  string
	mode  Mode
	lines []string
	depth int
	built bool
}

func newCodeBuilder(name string, mode Mode) *codeBuilder {
	b := &codeBuilder{name: name, mode: mode}
	if mode == Async {
		b.addLine("(async function () {")
	} else {
		b.addLine("(function () {")
	}
	b.indent()
	b.addLine("var __parts = [];")
	return b
}

func (b *codeBuilder) addLine(line string) {
	b.lines = append(b.lines, strings.Repeat("\t", b.depth)+line)
}

func (b *codeBuilder) indent() {
	b.depth++
}

func (b *codeBuilder) dedent() error {
	if b.depth == 0 {
		return errDedentUnderflow
	}
	b.depth--
	return nil
}

// build closes the routine wrapper and compiles the collected source. The
// source text is kept alongside the program so callers can inspect what a
// template compiled to.
func (b *codeBuilder) build() (*routine, error) {
	if b.built {
		return nil, errors.New("code builder already used")
	}
	b.built = true
	b.addLine("})()")
	src := strings.Join(b.lines, "\n") + "\n"
	prog, err := goja.Compile(b.name, src, false)
	if err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", b.name, err)
	}
	return &routine{prog: prog, src: src, mode: b.mode}, nil
}

// routine is a compiled render routine, bound to the mode it was built for.
type routine struct {
	prog *goja.Program
	src  string
	mode Mode
}
