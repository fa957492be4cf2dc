// Package frontmatter splits an item's raw bytes into a front-matter
// metadata block and a body, and extracts the handful of recognized
// metadata keys (title, dependencies, pagination) the rest of the
// pipeline reasons about directly.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

const fence = "---"

// FatalError reports an unterminated fence or malformed TOML inside a
// front-matter block, with the 1-based line number (within the source
// file) where the problem was detected.
type FatalError struct {
	Path string
	Line int
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s:%d: front-matter: %v", e.Path, e.Line, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Result is the parsed front-matter of a single item.
type Result struct {
	// Metadata is the full decoded TOML mapping, preserved verbatim for
	// the renderer beyond the handful of keys this package interprets.
	Metadata map[string]any
	// BodyOffset is the byte offset into the original raw bytes where
	// the body begins (0 when there was no fence).
	BodyOffset int
	// Title is Metadata["title"] if present and a string.
	Title string
	// DeclaredDeps is Metadata["dependencies"], normalized to []string.
	DeclaredDeps []string
	// Pagination is Metadata["pagination"] if present and well-formed.
	Pagination *Pagination
}

// Pagination mirrors the front-matter `pagination` block: `{from, every}`.
type Pagination struct {
	From  string
	Every int
}

// HasFence reports whether raw begins with a `---` fence line, without
// doing any TOML decoding. The Source Discoverer uses this cheap check
// to decide whether an item is even a candidate for page/template-page
// classification.
func HasFence(raw []byte) bool {
	return firstLineIsFence(raw)
}

func firstLineIsFence(raw []byte) bool {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	return bytes.Equal(bytes.TrimRight(line, "\r"), []byte(fence))
}

// Parse splits raw into front-matter metadata and a body offset. path is
// used only to annotate FatalError. Items without a leading fence are
// passed through unchanged: empty metadata, BodyOffset 0.
func Parse(path string, raw []byte) (*Result, error) {
	if !firstLineIsFence(raw) {
		return &Result{Metadata: map[string]any{}}, nil
	}

	firstNL := bytes.IndexByte(raw, '\n')
	rest := raw[firstNL+1:]

	closeRel := findFenceLine(rest)
	if closeRel < 0 {
		// The opening fence is by definition the file's first line.
		return nil, &FatalError{
			Path: path,
			Line: 1,
			Err:  fmt.Errorf("unterminated front-matter fence (expected closing %q)", fence),
		}
	}

	block := rest[:closeRel]
	closeLineEnd := closeRel + len(fence)
	if i := bytes.IndexByte(rest[closeLineEnd:], '\n'); i >= 0 {
		closeLineEnd += i + 1
	} else {
		closeLineEnd = len(rest)
	}
	bodyOffset := (firstNL + 1) + closeLineEnd

	var meta map[string]any
	if err := toml.Unmarshal(block, &meta); err != nil {
		// The TOML region starts on line 2, right after the opening
		// fence; offset go-toml's own row by that to get the file line.
		line := 2
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, _ := derr.Position()
			line = 1 + row
		}
		return nil, &FatalError{
			Path: path,
			Line: line,
			Err:  fmt.Errorf("malformed TOML front-matter: %w", err),
		}
	}
	if meta == nil {
		meta = map[string]any{}
	}

	r := &Result{
		Metadata:   meta,
		BodyOffset: bodyOffset,
	}
	if title, ok := meta["title"].(string); ok {
		r.Title = title
	}
	r.DeclaredDeps = stringSlice(meta["dependencies"])
	r.Pagination = parsePagination(meta["pagination"])

	return r, nil
}

// findFenceLine returns the byte offset, relative to b, of a line
// consisting of exactly "---", or -1 if none is found.
func findFenceLine(b []byte) int {
	offset := 0
	for {
		nl := bytes.IndexByte(b[offset:], '\n')
		var line []byte
		var lineStart = offset
		if nl < 0 {
			line = b[offset:]
		} else {
			line = b[offset : offset+nl]
		}
		if bytes.Equal(bytes.TrimRight(line, "\r"), []byte(fence)) {
			return lineStart
		}
		if nl < 0 {
			return -1
		}
		offset += nl + 1
	}
}

func stringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func parsePagination(v any) *Pagination {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	from, _ := m["from"].(string)
	p := &Pagination{From: from}
	switch every := m["every"].(type) {
	case int64:
		p.Every = int(every)
	case int:
		p.Every = every
	case float64:
		p.Every = int(every)
	}
	return p
}
