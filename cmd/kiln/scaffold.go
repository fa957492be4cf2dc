package main

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// scaffoldFiles holds the starter site `kiln new` writes into a fresh
// directory: a default kiln.toml, one layout template, one
// dependency-bearing template-page, one content page, and a static
// asset, bundled into the binary with a single //go:embed directive.
//
//go:embed scaffoldfiles
var scaffoldFiles embed.FS

const scaffoldRoot = "scaffoldfiles"

// writeScaffold copies every embedded scaffold file into dir, creating
// parent directories as needed. It refuses to overwrite a file that
// already exists, so running `kiln new` twice against the same
// directory never clobbers edits.
func writeScaffold(dir string) error {
	return fs.WalkDir(scaffoldFiles, scaffoldRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(scaffoldRoot, path)
		if err != nil {
			return fmt.Errorf("scaffold: relativize %s: %w", path, err)
		}
		dest := filepath.Join(dir, rel)

		if _, statErr := os.Stat(dest); statErr == nil {
			fmt.Printf("skipping %s (already exists)\n", rel)
			return nil
		}

		data, err := scaffoldFiles.ReadFile(path)
		if err != nil {
			return fmt.Errorf("scaffold: read %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("scaffold: create directory for %s: %w", dest, err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("scaffold: write %s: %w", dest, err)
		}
		fmt.Printf("wrote %s\n", rel)
		return nil
	})
}
