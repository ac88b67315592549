// Package weave compiles prompt templates into executable render routines.
//
// A template interleaves literal prose with three kinds of tags. {{ expr }}
// evaluates expr and emits its text. {# stmt #} executes stmt for its side
// effects and emits nothing, which is how a template binds names for later
// tags to use. {% ... %} carries structure: if/elif/else blocks, for and
// while loops (each closed by the matching endif, endfor or endwhile), and
// component invocations. A - immediately inside any delimiter is a
// whitespace-trim marker and is stripped. Expressions and statements are
// JavaScript, evaluated against the bindings supplied at render time with
// no sandboxing; template text is trusted code.
//
// weave is organized around Components and Templates. A Component is
// anything that renders a binding set to a string; a Template is the
// concrete Component this package provides, compiled from template text.
// {% name %} looks name up in the render bindings and embeds that
// component's output, passing it either the tag's keyword arguments
// ({% header title="hi" %}) or, with no arguments, a snapshot of the
// current bindings. Because a Template is a Component, templates compose
// into larger prompts by binding sub-templates into the render data.
//
// Every template renders in one of two modes. Render executes an ordinary
// routine; RenderContext executes a suspend-capable one in which each
// component invocation is an await point carrying the caller's context into
// the embedded component. Both compile lazily on first use, cache the
// compiled routine per mode for the life of the Template, and produce
// identical output for any template that embeds no components.
//
// Render bindings are layered: caller data in front, then the Template's
// persistent Context defaults, then a small process-wide baseline. Reads
// take the frontmost binding; an unresolved name is a render-time error.
//
// Templates come from template text directly (New), from files (Read,
// ReadContext) or over HTTP (Fetch, FetchContext); the loaders derive the
// template's display name from the file or URL path stem.
package weave
