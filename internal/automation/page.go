// Package automation abstracts the browser page so that extraction code
// runs unchanged against a live Rod page or a static HTML snapshot.
package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StoreScope/internal/config"
)

// Element is one DOM element.
type Element interface {
	// Text returns the element's visible text.
	Text() string
	Attr(name string) (string, bool)
	Tag() string
	HTML() string
	Query(selector string) (Element, bool)
	QueryAll(selector string) []Element
	Children() []Element
	Parent() (Element, bool)
	Click(ctx context.Context) error
}

// Page is a navigable document.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	URL() string
	Title() string
	HTML() (string, error)
	Query(selector string) (Element, bool)
	QueryAll(selector string) []Element
	QueryXPath(expr string) []Element
	Eval(ctx context.Context, js string) (string, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	ScrollBy(ctx context.Context, y int) error
	ScrollTo(ctx context.Context, y int) error
}

// snapshotter is implemented by pages that already hold a parsed document.
type snapshotter interface {
	Document() *goquery.Document
}

// Snapshot parses the current page HTML into a goquery document.
func Snapshot(page Page) (*goquery.Document, error) {
	if s, ok := page.(snapshotter); ok {
		return s.Document(), nil
	}
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	return doc, nil
}

// Select resolves one selector candidate, routing "xpath:" candidates
// through the page's XPath engine. Text patterns select no elements.
func Select(page Page, candidate string) []Element {
	if strings.HasPrefix(candidate, config.RegexPrefix) {
		return nil
	}
	if expr, ok := strings.CutPrefix(candidate, config.XPathPrefix); ok {
		return page.QueryXPath(expr)
	}
	return page.QueryAll(candidate)
}

// FirstMatch returns the elements of the first candidate that matches
// anything.
func FirstMatch(page Page, candidates []string) []Element {
	for _, c := range candidates {
		if els := Select(page, c); len(els) > 0 {
			return els
		}
	}
	return nil
}

// ClickFirst clicks the first element matched by any candidate.
func ClickFirst(ctx context.Context, page Page, candidates []string) error {
	for _, c := range candidates {
		for _, el := range Select(page, c) {
			if err := el.Click(ctx); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("click %v: no clickable match", candidates)
}

// ClickText clicks the first element matched by selector whose trimmed
// text contains label.
func ClickText(ctx context.Context, page Page, selector, label string) bool {
	for _, el := range page.QueryAll(selector) {
		text := strings.TrimSpace(el.Text())
		if text == "" || !strings.Contains(text, label) {
			continue
		}
		if err := el.Click(ctx); err == nil {
			return true
		}
	}
	return false
}
