package services

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"
)

// ContentPolicy cleans user supplied text. Complaint fields and comments are
// stored as plain text; announcement bodies are markdown rendered for e-mail.
type ContentPolicy struct {
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
	md     goldmark.Markdown
}

func NewContentPolicy() *ContentPolicy {
	return &ContentPolicy{
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Linkify,
			),
			goldmark.WithRendererOptions(
				goldhtml.WithHardWraps(),
			),
		),
	}
}

// PlainText strips markup and surrounding whitespace.
func (p *ContentPolicy) PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(p.strict.Sanitize(s)))
}

// MarkdownHTML renders markdown to sanitized HTML.
func (p *ContentPolicy) MarkdownHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return p.ugc.Sanitize(buf.String()), nil
}
