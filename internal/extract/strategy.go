package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// SelectorStrategy reads the first element matching a CSS selector.
type SelectorStrategy struct {
	Selector string
}

// Name implements Strategy.
func (s SelectorStrategy) Name() string { return "selector:" + s.Selector }

// Extract implements Strategy.
func (s SelectorStrategy) Extract(page *Page) string {
	if page == nil || page.Doc == nil {
		return ""
	}
	return textOf(page.Doc.Find(s.Selector).First())
}

// ReadabilityStrategy scores the raw document with go-readability.
type ReadabilityStrategy struct{}

// Name implements Strategy.
func (ReadabilityStrategy) Name() string { return "readability" }

// Extract implements Strategy.
func (ReadabilityStrategy) Extract(page *Page) string {
	if page == nil || len(page.HTML) == 0 {
		return ""
	}
	pageURL := page.URL
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(page.HTML), pageURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	doc.Find(boilerplate).Remove()
	return textOf(doc.Selection)
}

// textOf joins the trimmed, non-empty text nodes under sel with single spaces.
func textOf(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
