// Package discover implements the Source Discoverer: it walks a site
// root, skips the output tree, the store file, dotfiles and any
// ignore-listed paths, and classifies every remaining regular file into
// an item.Item with its Kind already decided.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/internal/frontmatter"
	"github.com/kilnbuild/kiln/internal/item"
)

const templatesPrefix = "templates/"

// Options configures a single discovery walk.
type Options struct {
	// Root is the site source root.
	Root string
	// OutputPath is the build output directory; it is skipped entirely
	// if it falls inside Root.
	OutputPath string
	// StorePath is the fingerprint database file; skipped if it falls
	// inside Root.
	StorePath string
	// IgnorePatterns are doublestar glob patterns, matched against the
	// item-key (source-relative, forward-slash path).
	IgnorePatterns []string
	// TemplateExtension is the templating engine's recognized file
	// extension (including the leading dot), e.g. ".html". It is matched
	// case-insensitively as a suffix of the item-key, so a compound
	// extension such as ".tmpl.html" is recognized whole.
	TemplateExtension string
}

// Walk discovers every eligible item under opts.Root and returns them
// sorted by item-key: deterministic order makes rebuilds reproducible
// and test snapshots stable.
func Walk(opts Options) ([]*item.Item, error) {
	absRoot, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("discover: resolve root %s: %w", opts.Root, err)
	}
	skipAbs := map[string]bool{}
	for _, p := range []string{opts.OutputPath, opts.StorePath} {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			skipAbs[abs] = true
		}
	}

	var items []*item.Item

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("discover: walk %s: %w", path, err)
		}
		if path != absRoot && skipAbs[path] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		base := d.Name()
		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("discover: relativize %s: %w", path, err)
		}
		key := normalizeKey(rel)

		matched, err := matchesAny(opts.IgnorePatterns, key)
		if err != nil {
			return err
		}
		if matched {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("discover: read %s: %w", path, err)
		}

		kind, err := classify(key, raw, opts.TemplateExtension)
		if err != nil {
			return err
		}

		items = append(items, &item.Item{
			Key:        key,
			Kind:       kind,
			SourcePath: path,
			RawBytes:   raw,
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	log.Debug().Int("count", len(items)).Str("root", opts.Root).Msg("discover: walk complete")
	return items, nil
}

// classify decides an item's Kind from its path and front-matter.
func classify(key string, raw []byte, templateExt string) (item.Kind, error) {
	if strings.HasPrefix(key, templatesPrefix) {
		return item.KindTemplate, nil
	}

	if !frontmatter.HasFence(raw) {
		return item.KindStaticAsset, nil
	}

	fm, err := frontmatter.Parse(key, raw)
	if err != nil {
		return 0, err
	}

	kindField, _ := fm.Metadata["kind"].(string)
	if kindField == "static" {
		return item.KindStaticAsset, nil
	}

	hasTemplateExt := templateExt != "" && strings.HasSuffix(strings.ToLower(key), strings.ToLower(templateExt))
	if kindField == "template" || hasTemplateExt || fm.Pagination != nil || len(fm.DeclaredDeps) > 0 {
		return item.KindTemplatePage, nil
	}

	return item.KindContentPage, nil
}

func matchesAny(patterns []string, key string) (bool, error) {
	for _, pat := range patterns {
		ok, err := doublestar.Match(pat, key)
		if err != nil {
			return false, fmt.Errorf("discover: invalid ignore pattern %q: %w", pat, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// normalizeKey converts an OS-relative path into a stable item-key:
// forward slashes always, lowercased only on platforms with
// case-insensitive filesystems (so Linux preserves case; macOS and
// Windows do not, matching the underlying filesystem's own identity
// rules).
func normalizeKey(rel string) string {
	key := filepath.ToSlash(rel)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		key = strings.ToLower(key)
	}
	return key
}
