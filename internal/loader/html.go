package loader

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kailas-cloud/kbase/internal/domain/knowledge"
)

// contentSelectors are tried in order; body is the fallback.
var contentSelectors = []string{"main", "article", ".content", "#content"}

// HTML extracts the main content of a page and chunks it. The page title,
// when present, names the chunks and is kept in metadata.
func (l *Loader) HTML(source string, r io.Reader) (*knowledge.KnowledgeBase, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", source, err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	name := source
	var meta map[string]any
	if title := clean(doc.Find("title").First().Text()); title != "" {
		name = title
		meta = map[string]any{MetaTitle: title}
	}

	kb := knowledge.New(nil)
	if err := l.chunk(kb, source, name, mainContent(doc), meta); err != nil {
		return nil, err
	}
	return kb, nil
}

func mainContent(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			if text := clean(sel.Text()); text != "" {
				return text
			}
		}
	}
	return clean(doc.Find("body").Text())
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
