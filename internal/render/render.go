// Package render defines the two external rendering collaborators the
// core consumes only through an interface: a templating engine and a
// Markdown renderer. Both ship with a default concrete adapter so the
// module is runnable end-to-end, but the orchestrator never depends on
// the concrete types.
package render

// EngineSchemaVersion is folded into the fingerprint store's schema
// version (store.CurrentSchemaVersion) by the orchestrator. Bumping it
// forces every item to rebuild on the next run, which is how a change
// to the bundled template or Markdown engine's output format gets
// propagated without the Change Detector needing to know anything about
// rendering internals.
const EngineSchemaVersion = 1

// TemplateEngine compiles a named set of templates and renders one of
// them against a data value. The core treats this as an opaque
// collaborator: it never inspects template syntax.
type TemplateEngine interface {
	// Compile (re)builds the engine's internal template set from the
	// given name → source mapping. It must be called before Render and
	// again whenever any template's source changes.
	Compile(templates map[string][]byte) error
	// Render executes the named template against data and returns the
	// resulting bytes.
	Render(name string, data any) ([]byte, error)
}

// MarkdownRenderer transforms a content-page body into rendered HTML.
// It is a pure transformation: same bytes in, same bytes out, no
// access to the item graph or globals.
type MarkdownRenderer interface {
	Render(src []byte) ([]byte, error)
}
