package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/StoreScope/internal/config"
)

// regexes backs "regex:" candidates from selector tables.
var regexes = NewRegexCache()

// XPath evaluates expr with htmlquery against the document root.
func XPath(doc *goquery.Document, expr string) *goquery.Selection {
	return xpathIn(doc.Selection, expr)
}

func xpathIn(sel *goquery.Selection, expr string) *goquery.Selection {
	var elems []*html.Node
	for _, n := range sel.Nodes {
		nodes, err := htmlquery.QueryAll(n, expr)
		if err != nil {
			return sel.FindNodes()
		}
		for _, m := range nodes {
			if m.Type == html.ElementNode {
				elems = append(elems, m)
			}
		}
	}
	return sel.FindNodes(elems...)
}

// Select evaluates one candidate under sel. Bare candidates are CSS;
// "xpath:" candidates go through htmlquery; "regex:" candidates select
// nothing and only apply to text lookups.
func Select(sel *goquery.Selection, candidate string) *goquery.Selection {
	if strings.HasPrefix(candidate, config.RegexPrefix) {
		return sel.FindNodes()
	}
	if expr, ok := strings.CutPrefix(candidate, config.XPathPrefix); ok {
		return xpathIn(sel, expr)
	}
	return sel.Find(candidate)
}

// FirstMatch returns the selection of the first candidate that matches.
func FirstMatch(sel *goquery.Selection, candidates []string) *goquery.Selection {
	for _, c := range candidates {
		if m := Select(sel, c); m.Length() > 0 {
			return m
		}
	}
	return sel.FindNodes()
}

// FirstText returns the first non-empty text produced by any candidate.
// A "regex:" candidate is matched against the text of sel itself and
// yields its first capture group.
func FirstText(sel *goquery.Selection, candidates []string) (string, bool) {
	for _, c := range candidates {
		if pattern, ok := strings.CutPrefix(c, config.RegexPrefix); ok {
			if v, ok := regexes.Find(pattern, sel.Text()); ok {
				return strings.TrimSpace(v), true
			}
			continue
		}
		if t := strings.TrimSpace(Select(sel, c).First().Text()); t != "" {
			return t, true
		}
	}
	return "", false
}

// FirstAttr returns the first non-empty attribute value produced by any
// candidate.
func FirstAttr(sel *goquery.Selection, candidates []string, attr string) (string, bool) {
	for _, c := range candidates {
		if v, ok := Select(sel, c).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Texts returns the trimmed, non-empty texts of every element the first
// matching candidate selects.
func Texts(sel *goquery.Selection, candidates []string) []string {
	var out []string
	FirstMatch(sel, candidates).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}
