package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kilnbuild/kiln/internal/config"
	"github.com/kilnbuild/kiln/internal/render"
	"github.com/kilnbuild/kiln/internal/runstats"
)

// fakeEngine is a deterministic, dependency-free TemplateEngine stand-in
// so orchestrator tests don't need html/template parsing semantics to
// assert on rebuild counts.
type fakeEngine struct {
	templates map[string][]byte
}

func (f *fakeEngine) Compile(templates map[string][]byte) error {
	f.templates = templates
	return nil
}

func (f *fakeEngine) Render(name string, data any) ([]byte, error) {
	return []byte("rendered:" + name), nil
}

type passthroughMarkdown struct{}

func (passthroughMarkdown) Render(src []byte) ([]byte, error) {
	return src, nil
}

func newTestSite(t *testing.T) (root, output string, cfg *config.Config) {
	t.Helper()
	root = t.TempDir()
	output = filepath.Join(root, "dist")

	cfg = config.DefaultConfig()
	cfg.Site.Root = root
	cfg.Site.OutputPath = output
	cfg.Site.DataDir = root
	cfg.Site.TemplateExtension = ".tmpl.html"
	return root, output, cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func testDeps(counters *runstats.Counters) Deps {
	return Deps{
		Engine:   &fakeEngine{},
		Markdown: passthroughMarkdown{},
		Counters: counters,
	}
}

// A single content page builds once, then an unchanged second run is a
// no-op: zero renders, zero writes.
func TestRun_NoOpSecondRun(t *testing.T) {
	root, output, cfg := newTestSite(t)
	writeFile(t, filepath.Join(root, "posts", "hello.md"), "---\ntitle = \"Hi\"\n---\nhello")

	counters := runstats.New()
	if _, err := Run(context.Background(), cfg, false, testDeps(counters)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(output, "posts", "hello", "index.html")); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if counters.TotalWrites() != 1 {
		t.Fatalf("first run writes = %d, want 1", counters.TotalWrites())
	}

	counters2 := runstats.New()
	result, err := Run(context.Background(), cfg, false, testDeps(counters2))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if counters2.TotalRenders() != 0 || counters2.TotalWrites() != 0 {
		t.Fatalf("second run should be a no-op, got renders=%d writes=%d", counters2.TotalRenders(), counters2.TotalWrites())
	}
	if len(result.EffectiveSet) != 0 {
		t.Fatalf("second run effective set = %v, want empty", result.EffectiveSet)
	}
}

// Editing one page's bytes rebuilds exactly that page.
func TestRun_DirectDirtinessRebuildsOnlyChangedPage(t *testing.T) {
	root, output, cfg := newTestSite(t)
	writeFile(t, filepath.Join(root, "posts", "hello.md"), "---\ntitle = \"Hi\"\n---\nhello")
	writeFile(t, filepath.Join(root, "posts", "other.md"), "---\ntitle = \"Other\"\n---\nuntouched")

	if _, err := Run(context.Background(), cfg, false, testDeps(runstats.New())); err != nil {
		t.Fatalf("first run: %v", err)
	}

	otherPath := filepath.Join(output, "posts", "other", "index.html")
	infoBefore, err := os.Stat(otherPath)
	if err != nil {
		t.Fatalf("stat other output: %v", err)
	}

	writeFile(t, filepath.Join(root, "posts", "hello.md"), "---\ntitle = \"Hi\"\n---\nhello!")

	counters := runstats.New()
	result, err := Run(context.Background(), cfg, false, testDeps(counters))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(result.EffectiveSet) != 1 || result.EffectiveSet[0] != "posts/hello.md" {
		t.Fatalf("effective set = %v, want [posts/hello.md]", result.EffectiveSet)
	}

	infoAfter, err := os.Stat(otherPath)
	if err != nil {
		t.Fatalf("stat other output after rebuild: %v", err)
	}
	if infoAfter.ModTime().Before(infoBefore.ModTime()) {
		t.Fatal("untouched page's output was rewritten")
	}
}

// A template-page declaring dependencies on "tags"
// rebuilds when the tags global changes, even with unchanged source bytes.
func TestRun_GlobalDependentRebuild(t *testing.T) {
	root, _, cfg := newTestSite(t)
	writeFile(t, filepath.Join(root, "tags.html"), "---\ndependencies = [\"tags\"]\n---\nall tags")
	writeFile(t, filepath.Join(root, "posts", "a.md"), "---\ntitle = \"A\"\ntags = [\"x\"]\n---\nbody")

	if _, err := Run(context.Background(), cfg, false, testDeps(runstats.New())); err != nil {
		t.Fatalf("first run: %v", err)
	}

	counters := runstats.New()
	result, err := Run(context.Background(), cfg, false, testDeps(counters))
	if err != nil {
		t.Fatalf("second run (no change): %v", err)
	}
	if len(result.EffectiveSet) != 0 {
		t.Fatalf("expected no-op before tags change, got %v", result.EffectiveSet)
	}

	writeFile(t, filepath.Join(root, "posts", "b.md"), "---\ntitle = \"B\"\ntags = [\"y\"]\n---\nbody")

	counters3 := runstats.New()
	result, err = Run(context.Background(), cfg, false, testDeps(counters3))
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	found := false
	for _, k := range result.EffectiveSet {
		if k == "tags.html" {
			found = true
		}
		if k == "posts/a.md" {
			t.Fatal("unrelated content page posts/a.md should not rebuild")
		}
	}
	if !found {
		t.Fatalf("expected tags.html to rebuild after tags global changed, got %v", result.EffectiveSet)
	}
}

// Modifying a template rebuilds every page that includes it.
func TestRun_TemplateCascade(t *testing.T) {
	root, _, cfg := newTestSite(t)
	writeFile(t, filepath.Join(root, "templates", "layout.tmpl.html"), `<html>{{.Content}}</html>`)
	writeFile(t, filepath.Join(root, "posts", "a.md"), "---\ntitle = \"A\"\nlayout = \"layout\"\n---\nbody-a")
	writeFile(t, filepath.Join(root, "posts", "b.md"), "---\ntitle = \"B\"\nlayout = \"layout\"\n---\nbody-b")

	if _, err := Run(context.Background(), cfg, false, testDeps(runstats.New())); err != nil {
		t.Fatalf("first run: %v", err)
	}

	writeFile(t, filepath.Join(root, "templates", "layout.tmpl.html"), `<html class="v2">{{.Content}}</html>`)

	result, err := Run(context.Background(), cfg, false, testDeps(runstats.New()))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	rebuilt := map[string]bool{}
	for _, k := range result.EffectiveSet {
		rebuilt[k] = true
	}
	if !rebuilt["posts/a.md"] || !rebuilt["posts/b.md"] {
		t.Fatalf("expected both pages to rebuild on template change, got %v", result.EffectiveSet)
	}
}

// Deleting a source removes its output and fingerprint row.
func TestRun_DeletionRemovesOutputAndFingerprint(t *testing.T) {
	root, output, cfg := newTestSite(t)
	helloPath := filepath.Join(root, "posts", "hello.md")
	writeFile(t, helloPath, "---\ntitle = \"Hi\"\n---\nhello")

	if _, err := Run(context.Background(), cfg, false, testDeps(runstats.New())); err != nil {
		t.Fatalf("first run: %v", err)
	}
	outPath := filepath.Join(output, "posts", "hello", "index.html")
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output before deletion: %v", err)
	}

	if err := os.Remove(helloPath); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	if _, err := Run(context.Background(), cfg, false, testDeps(runstats.New())); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Fatalf("expected output to be removed after source deletion, stat err = %v", err)
	}
}

// A template inclusion cycle is a fatal structural error,
// and the store remains untouched (no fingerprint rows committed).
func TestRun_TemplateCycleIsFatal(t *testing.T) {
	root, _, cfg := newTestSite(t)
	writeFile(t, filepath.Join(root, "templates", "a.tmpl.html"), `{{template "b" .}}`)
	writeFile(t, filepath.Join(root, "templates", "b.tmpl.html"), `{{template "a" .}}`)

	_, err := Run(context.Background(), cfg, false, testDeps(runstats.New()))
	if err == nil {
		t.Fatal("expected a fatal structural error for a template cycle")
	}
	var structErr *StructuralError
	if !asStructuralError(err, &structErr) {
		t.Fatalf("expected *StructuralError, got %T: %v", err, err)
	}
}

func asStructuralError(err error, target **StructuralError) bool {
	se, ok := err.(*StructuralError)
	if ok {
		*target = se
	}
	return ok
}

// A template-page paginating a 5-element global in
// chunks of 2 produces exactly three outputs, the first unsuffixed.
func TestRun_PaginationFanOut(t *testing.T) {
	root, output, cfg := newTestSite(t)
	writeFile(t, filepath.Join(root, "tags.html"), "---\npagination = {from = \"tags\", every = 2}\n---\npage")
	for i, tag := range []string{"a", "b", "c", "d", "e"} {
		writeFile(t, filepath.Join(root, "posts", fmt.Sprintf("p%d.md", i)),
			fmt.Sprintf("---\ntitle = \"P%d\"\ntags = [%q]\n---\nbody", i, tag))
	}

	if _, err := Run(context.Background(), cfg, false, testDeps(runstats.New())); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, rel := range []string{"tags/index.html", "tags/1/index.html", "tags/2/index.html"} {
		if _, err := os.Stat(filepath.Join(output, rel)); err != nil {
			t.Errorf("expected pagination output %s: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(output, "tags", "3")); !os.IsNotExist(err) {
		t.Fatalf("unexpected fourth pagination page, stat err = %v", err)
	}
}

// A pagination source that is not a known global aborts the run as a
// structural failure rather than being swallowed as an item error.
func TestRun_MissingPaginationSourceIsStructural(t *testing.T) {
	root, _, cfg := newTestSite(t)
	writeFile(t, filepath.Join(root, "list.html"), "---\npagination = {from = \"nope\", every = 2}\n---\npage")

	_, err := Run(context.Background(), cfg, false, testDeps(runstats.New()))
	if err == nil {
		t.Fatal("expected a structural error for a missing pagination source")
	}
	var structErr *StructuralError
	if !asStructuralError(err, &structErr) {
		t.Fatalf("expected *StructuralError, got %T: %v", err, err)
	}
}

// --clean wipes the output tree and store before the build,
// so the subsequent build is a full build.
func TestRun_CleanFlagForcesFullRebuild(t *testing.T) {
	root, output, cfg := newTestSite(t)
	writeFile(t, filepath.Join(root, "posts", "hello.md"), "---\ntitle = \"Hi\"\n---\nhello")

	if _, err := Run(context.Background(), cfg, false, testDeps(runstats.New())); err != nil {
		t.Fatalf("first run: %v", err)
	}

	counters := runstats.New()
	result, err := Run(context.Background(), cfg, true, testDeps(counters))
	if err != nil {
		t.Fatalf("clean run: %v", err)
	}
	if len(result.EffectiveSet) != 1 {
		t.Fatalf("clean run effective set = %v, want one rebuilt item", result.EffectiveSet)
	}
	if _, err := os.Stat(filepath.Join(output, "posts", "hello", "index.html")); err != nil {
		t.Fatalf("expected output after clean rebuild: %v", err)
	}
}

// Determinism: two consecutive clean runs over an unchanged tree
// rebuild effective dirty sets of the same size.
func TestRun_DeterminismAcrossRuns(t *testing.T) {
	root, _, cfg := newTestSite(t)
	writeFile(t, filepath.Join(root, "posts", "hello.md"), "---\ntitle = \"Hi\"\n---\nhello")

	r1, err := Run(context.Background(), cfg, true, testDeps(runstats.New()))
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	r2, err := Run(context.Background(), cfg, true, testDeps(runstats.New()))
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if len(r1.EffectiveSet) != len(r2.EffectiveSet) {
		t.Fatalf("clean runs produced different effective sets: %v vs %v", r1.EffectiveSet, r2.EffectiveSet)
	}
}

func TestEffectiveSchemaVersion_FoldsStoreAndEngine(t *testing.T) {
	got := effectiveSchemaVersion()
	want := 1*1000 + render.EngineSchemaVersion
	if got != want {
		t.Fatalf("effectiveSchemaVersion() = %d, want %d", got, want)
	}
}
