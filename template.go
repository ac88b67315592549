package weave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/promptweave/weave")

// ErrUndefinedComponent is returned when a component invocation names a
// binding that exists in neither the environment nor the routine's own
// scope.
var ErrUndefinedComponent = errors.New("component not defined")

// Component is anything a template can embed with a {% name %} tag: it
// renders a binding set to a string, in a direct form and a suspend-capable
// form. A Template is itself a Component, so templates nest.
type Component interface {
	Render(data Context) (string, error)
	RenderContext(ctx context.Context, data Context) (string, error)
}

var _ Component = &Template{}

// Template owns a piece of template text and renders it against caller
// bindings. Construction just stores the text; each mode's routine is
// compiled on its first render and reused for every render after, so
// structural errors in the text surface at first render, not at New.
type Template struct {
	// Name identifies the template in errors, logs, and generated
	// source. Loaders set it from the file or URL stem; it is otherwise
	// optional.
	Name string

	// Text is the template source. Changing it after a mode has rendered
	// has no effect on that mode; the compiled routine is kept.
	Text string

	// Context holds the template's default bindings. It persists across
	// renders and may be mutated between them; caller data shadows it.
	Context Context

	direct  routineCell
	suspend routineCell
}

// New returns a Template for the given text with empty default bindings.
func New(text string) *Template {
	return &Template{Text: text, Context: Context{}}
}

// routineCell lazily holds one mode's compiled routine. The once guard
// makes racing first renders compile exactly once and share the result —
// including a result that is an error.
type routineCell struct {
	once sync.Once
	r    *routine
	err  error
}

func (t *Template) routine(mode Mode) (*routine, error) {
	cell := &t.direct
	if mode == Async {
		cell = &t.suspend
	}
	cell.once.Do(func() {
		cell.r, cell.err = newCompiler(t.displayName(), t.Text).compile(mode)
	})
	return cell.r, cell.err
}

func (t *Template) displayName() string {
	if t.Name == "" {
		return "template"
	}
	return t.Name
}

// Script compiles the template for the given mode and returns the
// generated source. It bypasses the routine cache, so it always reflects
// the current Text; it is meant for inspection and debugging.
func (t *Template) Script(mode Mode) (string, error) {
	r, err := newCompiler(t.displayName(), t.Text).compile(mode)
	if err != nil {
		return "", err
	}
	return r.src, nil
}

// Render renders the template against data layered over the template's
// defaults and the shared baseline. Embedded components are rendered with
// their direct Render method.
func (t *Template) Render(data Context) (string, error) {
	return t.execute(context.Background(), Sync, data)
}

// RenderContext is the suspend-capable form of Render: embedded components
// are rendered through RenderContext with the passed ctx, and each
// invocation is a suspension point in the routine. Output is identical to
// Render for any template that embeds no components.
func (t *Template) RenderContext(ctx context.Context, data Context) (string, error) {
	ctx, span := tracer.Start(ctx, "weave.Template.RenderContext",
		trace.WithAttributes(attribute.String("weave.template", t.displayName())))
	defer span.End()

	logger(ctx).Debug("rendering template", "template", t.displayName(), "mode", Async.String())
	out, err := t.execute(ctx, Async, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger(ctx).Error("error rendering template", "template", t.displayName(), "error", err)
		return "", err
	}
	return out, nil
}

func (t *Template) execute(ctx context.Context, mode Mode, data Context) (string, error) {
	r, err := t.routine(mode)
	if err != nil {
		return "", err
	}

	env := NewEnvironment(data, t.Context, Builtins())
	vm := goja.New()
	for name, value := range env.Snapshot() {
		if err := vm.Set(name, value); err != nil {
			return "", fmt.Errorf("binding %q for template %q: %w", name, t.displayName(), err)
		}
	}
	if err := vm.Set("__include", includeFunc(ctx, vm, env, mode)); err != nil {
		return "", fmt.Errorf("binding include helper for template %q: %w", t.displayName(), err)
	}

	value, err := vm.RunProgram(r.prog)
	if err != nil {
		return "", fmt.Errorf("rendering template %q: %w", t.displayName(), evalError(err))
	}
	if mode == Sync {
		return value.String(), nil
	}

	promise, ok := value.Export().(*goja.Promise)
	if !ok {
		return "", fmt.Errorf("rendering template %q: routine did not produce a promise", t.displayName())
	}
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result().String(), nil
	case goja.PromiseStateRejected:
		return "", fmt.Errorf("rendering template %q: %w", t.displayName(), rejectionError(promise.Result()))
	default:
		return "", fmt.Errorf("rendering template %q: render suspended without completing", t.displayName())
	}
}

// includeFunc is the component-invocation hook the generated code calls.
// It resolves the named component, builds its sub-environment — the tag's
// keyword arguments if it had any, a frozen snapshot of the routine's
// current bindings otherwise — and renders it with the method matching the
// routine's mode. The sub-environment is a fresh mapping, never a view of
// the caller's, so a component's writes stay its own.
func includeFunc(ctx context.Context, vm *goja.Runtime, env *Environment, mode Mode) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		component, err := lookupComponent(vm, env, name)
		if err != nil {
			panic(vm.NewGoError(err))
		}

		var data Context
		if arg := call.Argument(1); goja.IsUndefined(arg) {
			data = bindingsSnapshot(vm)
		} else {
			exported, ok := arg.Export().(map[string]any)
			if !ok {
				panic(vm.NewTypeError("arguments for component %q must be an object", name))
			}
			data = Context(exported)
		}

		var out string
		if mode == Async {
			out, err = component.RenderContext(ctx, data)
		} else {
			out, err = component.Render(data)
		}
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("rendering component %q: %w", name, err)))
		}
		return vm.ToValue(out)
	}
}

func lookupComponent(vm *goja.Runtime, env *Environment, name string) (Component, error) {
	value, ok := env.Resolve(name)
	if !ok {
		// components bound by exec statements live only in the
		// routine's scope
		if v := vm.GlobalObject().Get(name); v != nil {
			value, ok = v.Export(), true
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUndefinedComponent, name)
	}
	component, ok := value.(Component)
	if !ok {
		return nil, fmt.Errorf("binding %q is a %T, which cannot be rendered as a component", name, value)
	}
	return component, nil
}

// bindingsSnapshot copies the routine's current bindings, seeded ones and
// ones written by exec statements alike, skipping the generated code's own
// helpers.
func bindingsSnapshot(vm *goja.Runtime) Context {
	global := vm.GlobalObject()
	data := Context{}
	for _, key := range global.Keys() {
		if strings.HasPrefix(key, "__") {
			continue
		}
		data[key] = global.Get(key).Export()
	}
	return data
}

// evalError digs the original Go error back out of an exception when the
// failure started on our side of the boundary, so callers can match on it.
func evalError(err error) error {
	var exception *goja.Exception
	if errors.As(err, &exception) {
		if cause, ok := exception.Value().Export().(error); ok {
			return cause
		}
	}
	return err
}

func rejectionError(value goja.Value) error {
	if cause, ok := value.Export().(error); ok {
		return cause
	}
	return errors.New(value.String())
}
