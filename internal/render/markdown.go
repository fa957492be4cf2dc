package render

import (
	"bytes"
	"fmt"
	"os"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// GoldmarkRenderer is the default MarkdownRenderer adapter. It renders
// GitHub-flavored Markdown and highlights fenced code blocks with
// chroma, honoring the `site.syntax_theme` / `site.syntax_theme_path`
// configuration values.
type GoldmarkRenderer struct {
	md goldmark.Markdown
}

// NewGoldmarkRenderer builds a renderer using the named chroma style
// (e.g. "monokai"), or a style loaded from themePath if non-empty.
func NewGoldmarkRenderer(theme string, themePath string) (*GoldmarkRenderer, error) {
	style, err := resolveStyle(theme, themePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(&highlightRenderer{style: style}, 100),
			),
		),
	)

	return &GoldmarkRenderer{md: md}, nil
}

// Render converts Markdown src into HTML.
func (r *GoldmarkRenderer) Render(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("render: markdown convert: %w", err)
	}
	return buf.Bytes(), nil
}

func resolveStyle(theme, themePath string) (*chroma.Style, error) {
	if themePath != "" {
		f, err := os.Open(themePath)
		if err != nil {
			return nil, fmt.Errorf("render: open syntax theme file %s: %w", themePath, err)
		}
		defer f.Close()
		s, err := chroma.NewXMLStyle(f)
		if err != nil {
			return nil, fmt.Errorf("render: parse syntax theme file %s: %w", themePath, err)
		}
		return s, nil
	}

	name := theme
	if name == "" {
		name = "github"
	}
	s := styles.Get(name)
	if s == nil {
		s = styles.Fallback
	}
	return s, nil
}

// highlightRenderer is a goldmark NodeRenderer that replaces the
// default fenced-code-block rendering with chroma-highlighted HTML.
type highlightRenderer struct {
	style *chroma.Style
}

func (r *highlightRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *highlightRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	node := n.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	for i := 0; i < node.Lines().Len(); i++ {
		line := node.Lines().At(i)
		code.Write(line.Value(source))
	}

	lang := ""
	if node.Info != nil {
		lang = string(node.Info.Segment.Value(source))
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code.String())
	if err != nil {
		return ast.WalkStop, fmt.Errorf("render: tokenize code block: %w", err)
	}

	formatter := chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4))
	if err := formatter.Format(w, r.style, iterator); err != nil {
		return ast.WalkStop, fmt.Errorf("render: format code block: %w", err)
	}
	return ast.WalkSkipChildren, nil
}
