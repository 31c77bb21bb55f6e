// Package markup converts Markdown message text into sanitized HTML.
package markup

import (
	"bytes"
	"fmt"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

const imageAltText = "image"

// Renderer turns raw Markdown into HTML that is safe to inject into the chat view.
// It is safe for concurrent use.
type Renderer struct {
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	logger   *zap.Logger
}

// NewRenderer builds a renderer with tables, fenced code, footnotes, definition
// lists and hard line breaks enabled.
func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")

	return &Renderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Footnote,
				extension.DefinitionList,
			),
			goldmark.WithParserOptions(
				parser.WithAttribute(),
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				goldmarkhtml.WithHardWraps(),
			),
		),
		policy: policy,
		logger: logger,
	}
}

// Render converts raw text to sanitized HTML. It never fails: when conversion
// breaks, the escaped source is returned inside a paragraph.
func (r *Renderer) Render(raw string) (rendered string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("markdown render panicked", zap.String("panic", fmt.Sprint(recovered)))
			rendered = escapedParagraph(raw)
		}
	}()

	var buffer bytes.Buffer
	if err := r.markdown.Convert([]byte(raw), &buffer); err != nil {
		r.logger.Warn("markdown render failed", zap.Error(err))
		return escapedParagraph(raw)
	}
	return r.policy.Sanitize(buffer.String())
}

// ImageEmbed returns the Markdown source that embeds the image at url.
func ImageEmbed(url string) string {
	return fmt.Sprintf("![%s](%s)", imageAltText, url)
}

func escapedParagraph(raw string) string {
	return "<p>" + html.EscapeString(raw) + "</p>"
}
