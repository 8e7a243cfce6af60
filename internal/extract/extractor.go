// Package extract pulls readable article text out of fetched HTML.
//
// Extraction runs a ranked list of strategies over the page after removing
// boilerplate elements. The first strategy producing more than MinLength
// characters wins; otherwise the page body is used, and failing that the
// last non-empty strategy result.
package extract

import (
	"bytes"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// MinLength is the character count a strategy must exceed to be accepted.
const MinLength = 100

// boilerplate elements are removed before any strategy runs.
const boilerplate = "script, style, nav, header, footer, aside"

// DefaultSelectors is the ranked list of article containers.
var DefaultSelectors = []string{
	"article",
	`[role="article"]`,
	".article-content",
	".article-body",
	".entry-content",
	".post-content",
	".content",
	"main",
	".main-content",
}

// Page is the input handed to each Strategy.
type Page struct {
	URL *url.URL
	// HTML is the raw document as fetched.
	HTML []byte
	// Doc is the parsed document with boilerplate removed.
	Doc *goquery.Document
}

// Strategy produces candidate article text for a page.
type Strategy interface {
	Name() string
	Extract(page *Page) string
}

// Options configures an Extractor.
type Options struct {
	ReadabilityFirst bool
	Logger           *zap.Logger
}

// Extractor runs strategies in order.
type Extractor struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New builds an Extractor using DefaultSelectors, optionally preceded by the
// readability strategy.
func New(opts Options) *Extractor {
	strategies := make([]Strategy, 0, len(DefaultSelectors)+1)
	if opts.ReadabilityFirst {
		strategies = append(strategies, ReadabilityStrategy{})
	}
	for _, sel := range DefaultSelectors {
		strategies = append(strategies, SelectorStrategy{Selector: sel})
	}
	return NewWithStrategies(opts.Logger, strategies...)
}

// NewWithStrategies builds an Extractor with a custom strategy chain.
func NewWithStrategies(logger *zap.Logger, strategies ...Strategy) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{strategies: strategies, logger: logger}
}

// Extract returns the article text of rawHTML. The boolean is false when no
// text could be obtained. Extract never fails; malformed input yields false.
func (e *Extractor) Extract(rawHTML []byte, pageURL string) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extraction panicked", zap.String("url", pageURL), zap.Any("panic", r))
			text, ok = "", false
		}
	}()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		e.logger.Debug("html parse failed", zap.String("url", pageURL), zap.Error(err))
		return "", false
	}
	doc.Find(boilerplate).Remove()

	page := &Page{HTML: rawHTML, Doc: doc}
	if u, err := url.Parse(pageURL); err == nil {
		page.URL = u
	}

	var lastNonEmpty string
	for _, s := range e.strategies {
		candidate := s.Extract(page)
		if candidate == "" {
			continue
		}
		lastNonEmpty = candidate
		if utf8.RuneCountInString(candidate) > MinLength {
			e.logger.Debug("extraction strategy matched",
				zap.String("url", pageURL), zap.String("strategy", s.Name()))
			return finish(candidate)
		}
	}

	if body := textOf(doc.Find("body").First()); body != "" {
		return finish(body)
	}
	return finish(lastNonEmpty)
}

func finish(text string) (string, bool) {
	cleaned := Clean(text)
	return cleaned, cleaned != ""
}

// Clean trims every line, drops empty ones and joins the rest with "\n".
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
