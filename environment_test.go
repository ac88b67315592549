package weave

import (
	"reflect"
	"testing"
)

func TestEnvironmentResolveOrder(t *testing.T) {
	env := NewEnvironment(
		Context{"a": 1},
		Context{"a": 2, "b": 2},
		Context{"a": 3, "b": 3, "c": 3},
	)
	cases := map[string]any{"a": 1, "b": 2, "c": 3}
	for name, want := range cases {
		got, ok := env.Resolve(name)
		if !ok {
			t.Errorf("Resolve(%q) missed", name)
			continue
		}
		if got != want {
			t.Errorf("Resolve(%q) = %v, expected %v", name, got, want)
		}
	}
	if _, ok := env.Resolve("missing"); ok {
		t.Error("Resolve should miss on a name absent from every layer")
	}
}

func TestEnvironmentAssignFrontLayer(t *testing.T) {
	front := Context{}
	back := Context{"a": "back"}
	env := NewEnvironment(front, back)
	env.Assign("a", "front")
	if got, _ := env.Resolve("a"); got != "front" {
		t.Errorf("Resolve after Assign = %v, expected front", got)
	}
	if front["a"] != "front" {
		t.Error("Assign should write the front layer")
	}
	if back["a"] != "back" {
		t.Error("Assign must not touch layers behind the front")
	}
}

func TestEnvironmentSkipsNilLayers(t *testing.T) {
	env := NewEnvironment(nil, Context{"a": 1}, nil)
	if got, ok := env.Resolve("a"); !ok || got != 1 {
		t.Errorf("Resolve(a) = %v, %v; expected 1, true", got, ok)
	}
	// with every layer nil there is still somewhere to write
	env = NewEnvironment(nil, nil)
	env.Assign("x", 1)
	if got, ok := env.Resolve("x"); !ok || got != 1 {
		t.Errorf("Resolve(x) = %v, %v; expected 1, true", got, ok)
	}
}

func TestEnvironmentSnapshot(t *testing.T) {
	env := NewEnvironment(Context{"a": 1}, Context{"a": 2, "b": 2})
	snap := env.Snapshot()
	if snap["a"] != 1 || snap["b"] != 2 {
		t.Errorf("Snapshot = %v, expected front layers to win", snap)
	}
	// a snapshot is a copy, not a view
	snap["a"] = 99
	if got, _ := env.Resolve("a"); got != 1 {
		t.Error("mutating a snapshot must not affect the environment")
	}
}

func TestBuiltinsShared(t *testing.T) {
	first := reflect.ValueOf(Builtins()).Pointer()
	second := reflect.ValueOf(Builtins()).Pointer()
	if first != second {
		t.Error("Builtins should return the same shared map every time")
	}
	if _, ok := Builtins()["strip"]; !ok {
		t.Error("baseline layer should carry the strip helper")
	}
}
