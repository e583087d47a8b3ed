package utils

import (
	"bytes"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

// goldmark.Markdown is safe for concurrent use once configured.
func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownInstance
}

// RenderMarkdown converts a post body to HTML and runs it through the UGC sanitizer.
// On a conversion error the sanitized source is returned instead.
func RenderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := markdown().Convert([]byte(source), &buf); err != nil {
		return Sanitize(source)
	}
	return Sanitize(buf.String())
}
