package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteScaffold_WritesExpectedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeScaffold(dir); err != nil {
		t.Fatalf("writeScaffold: %v", err)
	}

	for _, rel := range []string{
		"kiln.toml",
		"templates/layout.tmpl.html",
		"posts/hello.md",
		"style.css",
		"tags.tmpl.html",
	} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("expected scaffold file %s: %v", rel, err)
		}
	}
}

func TestWriteScaffold_DoesNotOverwriteExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeScaffold(dir); err != nil {
		t.Fatalf("writeScaffold (first): %v", err)
	}

	customized := []byte("custom content")
	target := filepath.Join(dir, "posts", "hello.md")
	if err := os.WriteFile(target, customized, 0o644); err != nil {
		t.Fatalf("overwrite fixture: %v", err)
	}

	if err := writeScaffold(dir); err != nil {
		t.Fatalf("writeScaffold (second): %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read %s: %v", target, err)
	}
	if string(data) != "custom content" {
		t.Fatal("writeScaffold overwrote an existing edited file")
	}
}
