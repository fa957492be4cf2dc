// Package orchestrator implements the Pipeline Orchestrator: the
// fixed-phase driver that discovers sources, collects globals, computes
// the dirty set, renders and writes every dirty item, and commits
// fingerprints — twelve phases, run strictly in order with structured
// zerolog logging at each phase boundary.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/internal/buildtrace"
	"github.com/kilnbuild/kiln/internal/changedetect"
	"github.com/kilnbuild/kiln/internal/config"
	"github.com/kilnbuild/kiln/internal/discover"
	"github.com/kilnbuild/kiln/internal/frontmatter"
	"github.com/kilnbuild/kiln/internal/globals"
	"github.com/kilnbuild/kiln/internal/hooks"
	"github.com/kilnbuild/kiln/internal/item"
	"github.com/kilnbuild/kiln/internal/pageexpand"
	"github.com/kilnbuild/kiln/internal/render"
	"github.com/kilnbuild/kiln/internal/runstats"
	"github.com/kilnbuild/kiln/internal/store"
	"github.com/kilnbuild/kiln/internal/writer"
)

// defaultConcurrency bounds the render/write worker pool when Deps
// leaves Concurrency unset.
const defaultConcurrency = 8

// Deps bundles every collaborator the orchestrator needs but does not
// own the lifecycle of: the renderer adapters, the globals registry,
// the hook runner, and the render/write counters. Tests substitute
// fakes here instead of standing up a real site tree.
type Deps struct {
	Engine      render.TemplateEngine
	Markdown    render.MarkdownRenderer
	Globals     *globals.Registry
	Hooks       *hooks.Runner
	Counters    *runstats.Counters
	Concurrency int
}

// Result summarizes one completed (or partially completed) run.
type Result struct {
	RunID        string
	DirectDirty  []string
	EffectiveSet []string
	Errors       []*ItemError
}

// effectiveSchemaVersion folds the fingerprint table's own schema
// version together with the bundled template/Markdown engine's
// version, so upgrading either one forces a full rebuild.
func effectiveSchemaVersion() int {
	return store.CurrentSchemaVersion*1000 + render.EngineSchemaVersion
}

// Run executes one complete build: open (or clean) the store, discover
// and classify every source item, parse front-matter, reconcile
// deletions, collect globals, build the dependency graph, compute the
// dirty set, render and write every dirty item, and commit
// fingerprints. A fatal error aborts the run and leaves the store
// untouched; item-local failures are collected into Result.Errors and
// do not stop the run.
func Run(ctx context.Context, cfg *config.Config, clean bool, deps Deps) (*Result, error) {
	if deps.Counters == nil {
		deps.Counters = runstats.New()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultConcurrency
	}

	ctx, span := buildtrace.StartPhase(ctx, "run")
	defer span.End()

	if clean {
		log.Info().Str("output", cfg.Site.OutputPath).Msg("orchestrator: --clean, wiping output tree")
		if err := os.RemoveAll(cfg.Site.OutputPath); err != nil {
			return nil, fmt.Errorf("orchestrator: clean output tree: %w", err)
		}
	}

	// Phase 1: open store.
	st, err := store.Open(cfg.StorePath(), effectiveSchemaVersion())
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open store: %w", err)
	}
	defer st.Close()

	if clean {
		if err := st.Clean(); err != nil {
			return nil, fmt.Errorf("orchestrator: clean store: %w", err)
		}
	}

	txn, err := st.Begin()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if abortErr := txn.Abort(); abortErr != nil {
				log.Error().Err(abortErr).Msg("orchestrator: abort transaction")
			}
		}
	}()

	result := &Result{RunID: txn.RunID()}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 2: discover.
	_, discSpan := buildtrace.StartPhase(ctx, "discover")
	items, err := discover.Walk(discover.Options{
		Root:              cfg.Site.Root,
		OutputPath:        cfg.Site.OutputPath,
		StorePath:         cfg.StorePath(),
		IgnorePatterns:    cfg.Site.IgnorePatterns,
		TemplateExtension: cfg.Site.TemplateExtension,
	})
	discSpan.End()
	if err != nil {
		var fmErr *frontmatter.FatalError
		if errors.As(err, &fmErr) {
			return nil, &StructuralError{Err: err}
		}
		return nil, fmt.Errorf("orchestrator: discover: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 3: parse front-matter for pages and template-pages.
	for _, it := range items {
		if it.Kind != item.KindContentPage && it.Kind != item.KindTemplatePage {
			continue
		}
		fm, err := frontmatter.Parse(it.Key, it.RawBytes)
		if err != nil {
			return nil, &StructuralError{Err: err}
		}
		it.Metadata = fm.Metadata
		it.BodyOffset = fm.BodyOffset
		it.DeclaredDeps = fm.DeclaredDeps
		if fm.Pagination != nil {
			it.Pagination = &item.Pagination{From: fm.Pagination.From, Every: fm.Pagination.Every}
		}
	}

	byKey := make(map[string]*item.Item, len(items))
	for _, it := range items {
		byKey[it.Key] = it
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 4: reconcile deletions.
	wtr := writer.New(cfg.Site.OutputPath)
	priorKeys, err := txn.Keys()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list fingerprint keys: %w", err)
	}
	for _, key := range priorKeys {
		if _, ok := byKey[key]; ok {
			continue
		}
		paths, err := txn.OutputPaths(key)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: read output paths for deleted item %s: %w", key, err)
		}
		for _, p := range paths {
			if err := wtr.Remove(p); err != nil {
				log.Warn().Err(err).Str("item_key", key).Str("path", p).Msg("orchestrator: failed to remove output of deleted item")
			}
		}
		if err := txn.Delete(key); err != nil {
			return nil, fmt.Errorf("orchestrator: delete fingerprint %s: %w", key, err)
		}
		log.Info().Str("item_key", key).Msg("orchestrator: source deleted, output and fingerprint removed")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 5: collect globals.
	reg := deps.Globals
	if reg == nil {
		reg = globals.NewRegistry()
	}
	globalsTable, err := reg.Collect(items)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: collect globals: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 6: build dependency graph.
	templatesByName, err := templatesByNameOf(items, cfg.Site.TemplateExtension)
	if err != nil {
		return nil, err
	}
	graph, err := buildGraph(items, templatesByName)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 7: compute direct dirty set.
	newHashes := make(map[string]string, len(items))
	var directDirty []string
	for _, it := range items {
		dirty, hash, err := changedetect.IsDirectlyDirty(txn, it, changedetect.Globals(globalsTable))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: change detect %s: %w", it.Key, err)
		}
		newHashes[it.Key] = hash
		if dirty {
			directDirty = append(directDirty, it.Key)
		}
	}
	sort.Strings(directDirty)
	result.DirectDirty = directDirty

	// Phase 8: close over dependents.
	effective := graph.TransitiveDirty(directDirty)
	result.EffectiveSet = effective

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phases 9-10: render and write every dirty item.
	engine := deps.Engine
	if engine == nil {
		engine = render.NewHTMLTemplateEngine()
	}
	if err := engine.Compile(compiledTemplateSet(items, templatesByName)); err != nil {
		return nil, &StructuralError{Err: err}
	}

	markdown := deps.Markdown
	if markdown == nil {
		markdown, err = render.NewGoldmarkRenderer(cfg.Site.SyntaxTheme, cfg.Site.SyntaxThemePath)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: build default markdown renderer: %w", err)
		}
	}

	type renderOutcome struct {
		key      string
		hash     string
		outPaths []string
	}

	var mu sync.Mutex
	var errs []*ItemError
	var outcomes []renderOutcome

	renderCtx, renderSpan := buildtrace.StartPhase(ctx, "render")
	group, gctx := errgroup.WithContext(renderCtx)
	group.SetLimit(deps.Concurrency)

	for _, key := range effective {
		it, ok := byKey[key]
		if !ok {
			// A dirty global-only node (e.g. "global:tags") with no
			// backing item; nothing to render.
			continue
		}
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			_, itemSpan := buildtrace.StartItem(gctx, "render", it.Key)
			defer itemSpan.End()

			if it.Kind == item.KindTemplate {
				mu.Lock()
				outcomes = append(outcomes, renderOutcome{key: it.Key, hash: newHashes[it.Key]})
				mu.Unlock()
				return nil
			}

			deps.Counters.RecordRender(it.Kind.String())
			outPaths, renderErr := renderItem(it, globalsTable, &cfg.Site, engine, markdown, templatesByName, wtr)
			if renderErr != nil {
				// A malformed pagination source is structural, not
				// item-local: it aborts the whole run.
				var pagErr *pageexpand.FatalError
				if errors.As(renderErr, &pagErr) {
					return &StructuralError{Err: renderErr}
				}
				mu.Lock()
				errs = append(errs, &ItemError{Key: it.Key, Phase: "render", Err: renderErr})
				mu.Unlock()
				return nil
			}
			deps.Counters.RecordWrite(it.Kind.String())

			mu.Lock()
			outcomes = append(outcomes, renderOutcome{key: it.Key, hash: newHashes[it.Key], outPaths: outPaths})
			mu.Unlock()
			return nil
		})
	}

	groupErr := group.Wait()
	renderSpan.End()
	if groupErr != nil {
		return nil, groupErr
	}

	// Phase 11: commit fingerprints, strictly on this goroutine, after
	// every worker has quiesced.
	for _, oc := range outcomes {
		if err := txn.Upsert(oc.key, oc.hash, effectiveSchemaVersion()); err != nil {
			return nil, fmt.Errorf("orchestrator: upsert fingerprint %s: %w", oc.key, err)
		}
		if err := txn.SetOutputPaths(oc.key, oc.outPaths); err != nil {
			return nil, fmt.Errorf("orchestrator: set output paths %s: %w", oc.key, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("orchestrator: commit transaction: %w", err)
	}
	committed = true

	sort.Slice(errs, func(i, j int) bool { return errs[i].Key < errs[j].Key })
	result.Errors = errs

	log.Info().
		Str("run_id", result.RunID).
		Int("discovered", len(items)).
		Int("direct_dirty", len(directDirty)).
		Int("effective_dirty", len(effective)).
		Int64("renders", deps.Counters.TotalRenders()).
		Int64("writes", deps.Counters.TotalWrites()).
		Int("errors", len(errs)).
		Msg("orchestrator: run complete")

	// Phase 12: finalize — run post-hooks only on a fully successful
	// commit. Item-local errors still block hooks: a partial build is
	// not a successful one from the hook's point of view.
	if len(errs) == 0 && deps.Hooks != nil {
		hookCtx, hookSpan := buildtrace.StartPhase(ctx, "hooks")
		hookErr := deps.Hooks.Run(hookCtx, cfg.Hooks.Post)
		hookSpan.End()
		if hookErr != nil {
			log.Error().Err(hookErr).Msg("orchestrator: post-run hook failed")
		}
	}

	return result, nil
}
