// Package render converts raw page source into sanitized HTML. It is a
// pure collaborator: rendering never fails, malformed input degrades to
// escaped text.
package render

import (
	"bytes"
	"html"
	"strings"

	"slatewiki/internal/data"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// HTMLRenderer renders markdown through goldmark and anything else as
// escaped paragraphs, then strips dangerous markup with bluemonday.
type HTMLRenderer struct {
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// New creates an HTMLRenderer with GFM extensions enabled.
func New() *HTMLRenderer {
	return &HTMLRenderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps(), goldmarkhtml.WithXHTML()),
		),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// Render converts text under the given format into sanitized HTML.
func (r *HTMLRenderer) Render(text string, format data.Format) string {
	var rendered string
	switch format {
	case data.FormatMarkdown:
		var buf bytes.Buffer
		if err := r.markdown.Convert([]byte(text), &buf); err != nil {
			rendered = escapeParagraphs(text)
		} else {
			rendered = buf.String()
		}
	default:
		// No native reStructuredText renderer is wired in; emit the
		// source as escaped paragraphs so the page is still readable.
		rendered = escapeParagraphs(text)
	}
	return r.sanitizer.Sanitize(rendered)
}

// escapeParagraphs wraps blank-line separated blocks of escaped text in
// paragraph tags.
func escapeParagraphs(text string) string {
	blocks := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	var sb strings.Builder
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(block))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}
