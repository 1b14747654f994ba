// Package markdown renders chat messages to HTML with highlighted code blocks.
package markdown

import (
	"bytes"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Renderer converts markdown into HTML. Raw HTML in the source is escaped.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer(style string) *Renderer {
	if style == "" {
		style = "github"
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			renderer.WithNodeRenderers(util.Prioritized(inlineCodeRenderer{}, 100)),
		),
	)
	return &Renderer{md: md}
}

// Render returns the HTML for text, or an empty string if it cannot be rendered.
func (r *Renderer) Render(text string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// inlineCodeRenderer tags code spans so they style apart from fenced blocks.
type inlineCodeRenderer struct{}

func (r inlineCodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
}

func (r inlineCodeRenderer) renderCodeSpan(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code>")
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(`<code class="inline-code">`)
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		var value []byte
		switch node := c.(type) {
		case *ast.Text:
			value = node.Segment.Value(source)
		case *ast.String:
			value = node.Value
		default:
			continue
		}
		if bytes.HasSuffix(value, []byte("\n")) {
			value = append(value[:len(value)-1:len(value)-1], ' ')
		}
		html.DefaultWriter.RawWrite(w, value)
	}
	return ast.WalkSkipChildren, nil
}
