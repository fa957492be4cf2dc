package orchestrator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kilnbuild/kiln/internal/depgraph"
	"github.com/kilnbuild/kiln/internal/item"
)

const templatesPrefix = "templates/"
const defaultLayoutName = "layout"

// templateRefPattern matches the template-inclusion directives
// (`{{template "name" ...}}`) the dependency graph statically parses
// out of every compiled template's body.
var templateRefPattern = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)

// templateName strips the `templates/` prefix and source extension from
// a KindTemplate item's key, yielding the name it is registered under in
// the template engine and the name other items use in `{{template "name"}}`.
// The configured templating extension is stripped whole, so a compound
// extension like ".tmpl.html" yields "layout", not "layout.tmpl".
func templateName(key, templateExt string) string {
	name := strings.TrimPrefix(key, templatesPrefix)
	if templateExt != "" && strings.HasSuffix(strings.ToLower(name), strings.ToLower(templateExt)) {
		return name[:len(name)-len(templateExt)]
	}
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// layoutName returns the template name a content-page wraps its
// rendered body in (template-pages are not wrapped in a layout): the
// front-matter `layout` field if set,
// else the default "layout". explicit reports whether the page named it
// explicitly (an explicit name that doesn't resolve is a structural
// error; an unresolved default is not — a page is allowed to have no
// layout at all).
func layoutName(it *item.Item) (name string, explicit bool) {
	if it.Metadata != nil {
		if s, ok := it.Metadata["layout"].(string); ok && s != "" {
			return s, true
		}
	}
	return defaultLayoutName, false
}

// buildGraph constructs the dependency graph from declared globals,
// pagination sources, and statically-parsed template inclusion, then
// checks it for cycles among item→item edges.
func buildGraph(items []*item.Item, templatesByName map[string]string) (*depgraph.Graph, error) {
	g := depgraph.New()

	for _, it := range items {
		g.AddNode(it.Key)

		for _, dep := range it.DeclaredDeps {
			g.AddEdge(it.Key, "global:"+dep, depgraph.EdgeGlobal)
		}
		if it.Pagination != nil {
			g.AddEdge(it.Key, "global:"+it.Pagination.From, depgraph.EdgeGlobal)
		}

		if it.Kind == item.KindTemplate || it.Kind == item.KindTemplatePage {
			for _, m := range templateRefPattern.FindAllSubmatch(it.RawBytes, -1) {
				name := string(m[1])
				target, ok := templatesByName[name]
				if !ok {
					return nil, &StructuralError{Err: fmt.Errorf("%s: references unknown template %q", it.Key, name)}
				}
				if target == it.Key {
					continue
				}
				g.AddEdge(it.Key, target, depgraph.EdgeItem)
			}
		}

		// Only content pages wrap in a layout; template-pages render as
		// themselves, so a layout edge there would be a false dependency.
		if it.Kind == item.KindContentPage {
			name, explicit := layoutName(it)
			target, ok := templatesByName[name]
			if ok {
				g.AddEdge(it.Key, target, depgraph.EdgeItem)
			} else if explicit {
				return nil, &StructuralError{Err: fmt.Errorf("%s: references unknown layout template %q", it.Key, name)}
			}
		}
	}

	if err := g.CheckCycles(); err != nil {
		return nil, &StructuralError{Err: err}
	}
	return g, nil
}

// templatesByNameOf indexes every KindTemplate item by its registered
// template name, failing on a name collision between two template files.
func templatesByNameOf(items []*item.Item, templateExt string) (map[string]string, error) {
	out := make(map[string]string)
	for _, it := range items {
		if it.Kind != item.KindTemplate {
			continue
		}
		name := templateName(it.Key, templateExt)
		if prior, ok := out[name]; ok {
			return nil, &StructuralError{Err: fmt.Errorf("templates %q and %q both register name %q", prior, it.Key, name)}
		}
		out[name] = it.Key
	}
	return out, nil
}

// compiledTemplateSet builds the name → source map passed to the
// TemplateEngine: every KindTemplate item under its registered name,
// plus every KindTemplatePage item under its own item-key (a
// template-page is both a page and, for rendering purposes, a
// single-use template executed once per pagination expansion).
func compiledTemplateSet(items []*item.Item, templatesByName map[string]string) map[string][]byte {
	byKey := make(map[string]*item.Item, len(items))
	for _, it := range items {
		byKey[it.Key] = it
	}

	out := make(map[string][]byte, len(items))
	for name, key := range templatesByName {
		out[name] = byKey[key].RawBytes
	}
	for _, it := range items {
		if it.Kind == item.KindTemplatePage {
			// Only the body compiles; the front-matter fence is metadata,
			// not template source.
			out[it.Key] = it.Body()
		}
	}
	return out
}
