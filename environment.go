package weave

import (
	"strings"
	"sync"
)

// Context is a name-to-value binding set. Templates render against one,
// and a Template carries one as its persistent defaults.
type Context map[string]any

// Environment is the layered binding set a render call executes against.
// Reads search the layers front to back; writes land in the front layer
// only. A render builds one from, front to back: the caller's data (if
// any), the template's own defaults, and the shared baseline returned by
// Builtins.
type Environment struct {
	layers []Context
}

// NewEnvironment stacks the passed layers, front first. Nil layers are
// skipped; an environment always has at least one (possibly empty) layer
// so that Assign has somewhere to write.
func NewEnvironment(layers ...Context) *Environment {
	env := &Environment{}
	for _, layer := range layers {
		if layer != nil {
			env.layers = append(env.layers, layer)
		}
	}
	if len(env.layers) == 0 {
		env.layers = append(env.layers, Context{})
	}
	return env
}

// Resolve looks name up in each layer in turn and returns the first hit.
func (e *Environment) Resolve(name string) (any, bool) {
	for _, layer := range e.layers {
		if value, ok := layer[name]; ok {
			return value, true
		}
	}
	return nil, false
}

// Assign binds name in the front layer, shadowing any binding for the same
// name further back.
func (e *Environment) Assign(name string, value any) {
	e.layers[0][name] = value
}

// Snapshot flattens the environment into a single fresh Context. Front
// layers win, matching Resolve.
func (e *Environment) Snapshot() Context {
	merged := Context{}
	for i := len(e.layers) - 1; i >= 0; i-- {
		for name, value := range e.layers[i] {
			merged[name] = value
		}
	}
	return merged
}

var baseline = sync.OnceValue(func() Context {
	return Context{
		"strip": strings.TrimSpace,
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
	}
})

// Builtins returns the baseline binding layer shared by every render in
// the process. It is built once, on first use, and callers must treat it
// as read-only; it sits behind every environment, so mutating it would
// leak bindings into unrelated templates.
func Builtins() Context {
	return baseline()
}
