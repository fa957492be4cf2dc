package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// runNew implements `kiln new <dir>`: scaffold a fresh site from the
// embedded starter templates, prompting interactively for a site URL
// only when stdin is a terminal.
func runNew(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kiln new <dir>")
		os.Exit(1)
	}
	dir := args[0]

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating directory %s: %v\n", dir, err)
		os.Exit(1)
	}

	if err := writeScaffold(dir); err != nil {
		fmt.Fprintf(os.Stderr, "error scaffolding site: %v\n", err)
		os.Exit(1)
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		promptSiteURL(dir)
	}

	fmt.Printf("\nSite scaffolded in %s\nRun `kiln build` (from inside %s) to build it, or `kiln serve` to preview it.\n", dir, dir)
}

// promptSiteURL interactively asks for the site's canonical URL and
// rewrites kiln.toml's `site.url` line in place. A blank answer keeps
// the scaffold's placeholder value.
func promptSiteURL(dir string) {
	fmt.Print("Site URL (blank to keep the placeholder): ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	url := strings.TrimSpace(line)
	if url == "" {
		return
	}

	configPath := filepath.Join(dir, "kiln.toml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not read %s to set site.url: %v\n", configPath, err)
		return
	}

	updated := replaceSiteURL(string(data), url)
	if err := os.WriteFile(configPath, []byte(updated), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not write %s: %v\n", configPath, err)
	}
}

// replaceSiteURL rewrites the first `url = "..."` line found in a
// kiln.toml's [site] table. It is a narrow, line-oriented edit rather
// than a full TOML round-trip, since the scaffold's own file layout is
// fixed and known.
func replaceSiteURL(toml, newURL string) string {
	lines := strings.Split(toml, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "url = ") {
			lines[i] = fmt.Sprintf("url = %q", newURL)
			break
		}
	}
	return strings.Join(lines, "\n")
}
