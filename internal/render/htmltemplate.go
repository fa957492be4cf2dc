package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// HTMLTemplateEngine is the default TemplateEngine adapter, built on the
// standard library's html/template.
//
// Compiled template sets are cached in a small LRU keyed by the sha256
// of the concatenated, name-sorted template sources, so that repeated
// Compile calls on the same engine against an unchanged template set
// skip re-parsing.
type HTMLTemplateEngine struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *template.Template]
	current *template.Template
}

// NewHTMLTemplateEngine returns an engine with an LRU cache sized for a
// handful of distinct template-set generations (a single build run
// compiles exactly one).
func NewHTMLTemplateEngine() *HTMLTemplateEngine {
	cache, err := lru.New[string, *template.Template](8)
	if err != nil {
		// Only returns an error for a non-positive size, which is a
		// programmer error, not a runtime condition.
		panic(fmt.Sprintf("render: building template cache: %v", err))
	}
	return &HTMLTemplateEngine{cache: cache}
}

// Compile parses every template in templates into one shared
// *template.Template, so `{{template "name" .}}` inclusion works across
// files the way the Dependency Graph's item→item edges expect.
func (e *HTMLTemplateEngine) Compile(templates map[string][]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := fingerprintTemplateSet(templates)
	if cached, ok := e.cache.Get(key); ok {
		e.current = cached
		return nil
	}

	root := template.New("root")
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := root.New(name)
		if _, err := t.Parse(string(templates[name])); err != nil {
			return fmt.Errorf("render: parse template %q: %w", name, err)
		}
	}

	e.cache.Add(key, root)
	e.current = root
	return nil
}

// Render executes the named template against data. Compile must have
// been called first.
func (e *HTMLTemplateEngine) Render(name string, data any) ([]byte, error) {
	e.mu.Lock()
	root := e.current
	e.mu.Unlock()

	if root == nil {
		return nil, fmt.Errorf("render: Render called before Compile")
	}

	var buf bytes.Buffer
	if err := root.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render: execute template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

func fingerprintTemplateSet(templates map[string][]byte) string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(templates[name])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
