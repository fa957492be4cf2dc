package orchestrator

import (
	"fmt"
	"html/template"

	"github.com/kilnbuild/kiln/internal/config"
	"github.com/kilnbuild/kiln/internal/item"
	"github.com/kilnbuild/kiln/internal/pageexpand"
	"github.com/kilnbuild/kiln/internal/render"
	"github.com/kilnbuild/kiln/internal/writer"
)

// templateData is the value passed to the templating engine for every
// rendered content-page, template-page expansion, and layout wrap: the
// general "site/page/content" context shape a static-site generator
// exposes to its templates.
type templateData struct {
	Site    *config.SiteConfig
	Title   string
	Meta    map[string]any
	Content template.HTML
	Globals item.Globals
	Page    *pageexpand.PageContext
}

// renderItem renders and writes one dirty item, returning every output
// path it produced. A non-nil error is an Item-local failure that the
// caller records before moving on, except a *pageexpand.FatalError
// (malformed pagination source), which the caller escalates to a
// run-aborting StructuralError.
func renderItem(
	it *item.Item,
	globalsTable item.Globals,
	site *config.SiteConfig,
	engine render.TemplateEngine,
	markdown render.MarkdownRenderer,
	templatesByName map[string]string,
	wtr *writer.Writer,
) ([]string, error) {
	switch it.Kind {
	case item.KindStaticAsset:
		return renderStaticAsset(it, wtr)
	case item.KindContentPage:
		return renderContentPage(it, globalsTable, site, engine, markdown, templatesByName, wtr)
	case item.KindTemplatePage:
		return renderTemplatePage(it, globalsTable, site, engine, wtr)
	default:
		return nil, fmt.Errorf("render: item %s has non-renderable kind %s", it.Key, it.Kind)
	}
}

func renderStaticAsset(it *item.Item, wtr *writer.Writer) ([]string, error) {
	outPath := writer.OutputPath(it.Key, false)
	if err := wtr.Write(outPath, it.RawBytes); err != nil {
		return nil, err
	}
	return []string{outPath}, nil
}

func renderContentPage(
	it *item.Item,
	globalsTable item.Globals,
	site *config.SiteConfig,
	engine render.TemplateEngine,
	markdown render.MarkdownRenderer,
	templatesByName map[string]string,
	wtr *writer.Writer,
) ([]string, error) {
	body, err := markdown.Render(it.Body())
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	out := body
	name, _ := layoutName(it)
	if _, ok := templatesByName[name]; ok {
		data := templateData{
			Site:    site,
			Title:   it.Title(),
			Meta:    it.Metadata,
			Content: template.HTML(body),
			Globals: globalsTable,
		}
		out, err = engine.Render(name, data)
		if err != nil {
			return nil, fmt.Errorf("render layout %q: %w", name, err)
		}
	}

	outPath := writer.OutputPath(it.Key, true)
	if err := wtr.Write(outPath, out); err != nil {
		return nil, err
	}
	return []string{outPath}, nil
}

func renderTemplatePage(
	it *item.Item,
	globalsTable item.Globals,
	site *config.SiteConfig,
	engine render.TemplateEngine,
	wtr *writer.Writer,
) ([]string, error) {
	expansions, err := pageexpand.Expand(it, globalsTable)
	if err != nil {
		return nil, err
	}

	outPaths := make([]string, 0, len(expansions))
	for _, exp := range expansions {
		data := templateData{
			Site:    site,
			Title:   it.Title(),
			Meta:    it.Metadata,
			Globals: globalsTable,
			Page:    exp.Page,
		}
		out, err := engine.Render(it.Key, data)
		if err != nil {
			return outPaths, fmt.Errorf("render template-page: %w", err)
		}
		if err := wtr.Write(exp.OutputPath, out); err != nil {
			return outPaths, err
		}
		outPaths = append(outPaths, exp.OutputPath)
	}

	return outPaths, nil
}
