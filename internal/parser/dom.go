package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// DirectChildren returns the element children of sel matching tag.
func DirectChildren(sel *goquery.Selection, tag string) *goquery.Selection {
	return sel.ChildrenFiltered(tag)
}

// ElementCount returns the number of element children of sel.
func ElementCount(sel *goquery.Selection) int {
	return sel.Children().Length()
}

// Descendants returns every descendant of sel matching one of tags.
func Descendants(sel *goquery.Selection, tags ...string) *goquery.Selection {
	return sel.Find(strings.Join(tags, ", "))
}

// LongestText returns the longest trimmed text among the descendants of
// sel matching tags for which keep reports true.
func LongestText(sel *goquery.Selection, tags []string, keep func(s *goquery.Selection, text string) bool) string {
	best := ""
	bestLen := 0
	Descendants(sel, tags...).Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		n := utf8.RuneCountInString(t)
		if n <= bestLen {
			return
		}
		if keep != nil && !keep(s, t) {
			return
		}
		best, bestLen = t, n
	})
	return best
}

// ExtractTable parses the first table in sel into rows of cell text.
func ExtractTable(sel *goquery.Selection) [][]string {
	var table [][]string

	sel.Find("tr").Each(func(i int, row *goquery.Selection) {
		var cells []string
		row.Find("td, th").Each(func(j int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) > 0 {
			table = append(table, cells)
		}
	})

	return table
}
