// Package pageexpand implements the Template-page Expander: it turns a
// single template-page item into one or more concrete outputs, fanning
// out a paginated page into fixed-size chunks of its source sequence.
package pageexpand

import (
	"fmt"
	"strings"

	"github.com/kilnbuild/kiln/internal/item"
)

// FatalError reports a malformed pagination source: missing global,
// wrong shape, or a non-positive chunk size.
type FatalError struct {
	ItemKey string
	Reason  string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: pagination: %s", e.ItemKey, e.Reason)
}

// PageContext is the synthesized `pagination` value injected into a
// single expansion's rendering context.
type PageContext struct {
	Items any
	Index int
	Count int
	Prev  *string
	Next  *string
}

// Expansion is one concrete output produced from a template-page.
type Expansion struct {
	// OutputPath is this expansion's destination, relative to the
	// output root.
	OutputPath string
	// Page is nil for an unpaginated template-page's single expansion.
	Page *PageContext
}

// basePath computes a template-page's natural output base: the item-key
// with its source extension stripped, directory structure kept. The
// `/index.html` suffix is appended by the caller.
func basePath(it *item.Item) string {
	key := it.Key
	if ext := extOf(key); ext != "" {
		key = strings.TrimSuffix(key, ext)
	}
	return strings.TrimSuffix(key, "/")
}

func extOf(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 && strings.LastIndexByte(key, '/') < i {
		return key[i:]
	}
	return ""
}

// Expand produces every concrete output an item.Item with Kind
// KindTemplatePage fans out into. An item with no Pagination expands
// to exactly one Expansion at its natural path.
func Expand(it *item.Item, globals item.Globals) ([]*Expansion, error) {
	base := basePath(it)

	if it.Pagination == nil {
		return []*Expansion{{OutputPath: base + "/index.html"}}, nil
	}

	pg := it.Pagination
	if pg.Every <= 0 {
		return nil, &FatalError{ItemKey: it.Key, Reason: fmt.Sprintf("pagination.every must be > 0, got %d", pg.Every)}
	}

	raw, ok := globals[pg.From]
	if !ok {
		return nil, &FatalError{ItemKey: it.Key, Reason: fmt.Sprintf("pagination.from %q is not a known global", pg.From)}
	}
	seq, ok := asSequence(raw)
	if !ok {
		return nil, &FatalError{ItemKey: it.Key, Reason: fmt.Sprintf("pagination.from %q is not a sequence", pg.From)}
	}

	chunks := chunk(seq, pg.Every)
	count := len(chunks)

	expansions := make([]*Expansion, 0, count)
	for i, c := range chunks {
		path := base + "/index.html"
		if i > 0 {
			path = fmt.Sprintf("%s/%d/index.html", base, i)
		}

		var prev, next *string
		if i > 0 {
			p := pageURL(base, i-1)
			prev = &p
		}
		if i+1 < count {
			n := pageURL(base, i+1)
			next = &n
		}

		expansions = append(expansions, &Expansion{
			OutputPath: path,
			Page: &PageContext{
				Items: c,
				Index: i,
				Count: count,
				Prev:  prev,
				Next:  next,
			},
		})
	}
	return expansions, nil
}

func pageURL(base string, i int) string {
	if i == 0 {
		return base + "/index.html"
	}
	return fmt.Sprintf("%s/%d/index.html", base, i)
}

// chunk splits seq into contiguous groups of size n, with the final
// group possibly shorter.
func chunk(seq []any, n int) [][]any {
	if len(seq) == 0 {
		return [][]any{{}}
	}
	var out [][]any
	for i := 0; i < len(seq); i += n {
		end := i + n
		if end > len(seq) {
			end = len(seq)
		}
		out = append(out, seq[i:end])
	}
	return out
}

// asSequence normalizes a global's value into a []any, accepting both
// the canonical []any shape and the common []string/[]map[string]any
// shapes a collector might produce directly.
func asSequence(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}
