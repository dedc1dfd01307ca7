package extract

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/StoreScope/internal/automation"
	"github.com/IshaanNene/StoreScope/internal/engine"
)

// tabSelectors are searched in order for a tab label.
var tabSelectors = []string{"[role=tab]", "a", "button", "li"}

// openTab brings a content tab into view. Labels are matched against
// element text first, then the selector candidates under key are clicked.
// The page is scrolled and the search retried once before giving up.
func openTab(ctx context.Context, run *engine.Run, key string, labels ...string) bool {
	page := run.Page()
	if page == nil {
		return false
	}
	_ = page.ScrollBy(ctx, 500)
	_ = run.Pacer.Wait(ctx, run.Config.Delays.Short)

	for try := 0; try < 2; try++ {
		if clickTabOnce(ctx, run, page, key, labels) {
			_ = run.Pacer.Sleep(ctx, run.Platform.TabClickWait)
			_ = page.ScrollBy(ctx, 300)
			return true
		}
		if try == 0 {
			_ = page.ScrollTo(ctx, 800)
			_ = run.Pacer.Wait(ctx, run.Config.Delays.Short)
		}
	}
	run.Logger.Info("tab not found", "labels", labels)
	return false
}

func clickTabOnce(ctx context.Context, run *engine.Run, page automation.Page, key string, labels []string) bool {
	for _, label := range labels {
		for _, sel := range tabSelectors {
			if automation.ClickText(ctx, page, sel, label) {
				run.Logger.Debug("tab clicked", "label", label, "selector", sel)
				return true
			}
		}
	}
	if candidates := run.Platform.Selectors.Get(key); len(candidates) > 0 {
		if err := automation.ClickFirst(ctx, page, candidates); err == nil {
			run.Logger.Debug("tab clicked", "key", key)
			return true
		}
	}
	return false
}

// pageNumberAdvance clicks the numeric pagination link for each next page.
// A link counts as pagination when its parent holds at least two numeric
// links.
func pageNumberAdvance(page automation.Page) engine.AdvanceFunc {
	return func(ctx context.Context, n int) (bool, error) {
		label := strconv.Itoa(n)
		for _, a := range page.QueryAll("a") {
			if strings.TrimSpace(a.Text()) != label {
				continue
			}
			parent, ok := a.Parent()
			if !ok || numericLinks(parent) < 2 {
				continue
			}
			if err := a.Click(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
		return false, nil
	}
}

func numericLinks(el automation.Element) int {
	n := 0
	for _, s := range el.QueryAll("a") {
		if isDigits(strings.TrimSpace(s.Text())) {
			n++
		}
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// buttonAdvance clicks the button labelled with the next page number
// inside the first container matched by candidates.
func buttonAdvance(page automation.Page, candidates []string) engine.AdvanceFunc {
	return func(ctx context.Context, n int) (bool, error) {
		containers := automation.FirstMatch(page, candidates)
		if len(containers) == 0 {
			return false, nil
		}
		label := strconv.Itoa(n)
		for _, b := range containers[0].QueryAll("button") {
			if strings.TrimSpace(b.Text()) == label {
				if err := b.Click(ctx); err != nil {
					return false, err
				}
				return true, nil
			}
		}
		return false, nil
	}
}

// linkAdvance clicks the element labelled with the next page number among
// those matched by candidates.
func linkAdvance(page automation.Page, candidates []string) engine.AdvanceFunc {
	return func(ctx context.Context, n int) (bool, error) {
		label := strconv.Itoa(n)
		for _, el := range automation.FirstMatch(page, candidates) {
			if strings.TrimSpace(el.Text()) == label {
				if err := el.Click(ctx); err != nil {
					return false, err
				}
				return true, nil
			}
		}
		return false, nil
	}
}

// domWalk is the page walk shared by the live-page strategies.
func domWalk[T any](run *engine.Run, maxPages int, advance engine.AdvanceFunc) engine.PageWalk[T] {
	return engine.PageWalk[T]{
		MaxPages:   maxPages,
		Delay:      run.Config.Delays.DOMPage,
		EmptyLimit: run.Config.Cascade.EmptyPageLimit,
		Retry:      run.Config.Delays.Short,
		Advance:    advance,
		OnPage: func(page, records int) {
			run.Metrics.DOMPagesScanned.Add(1)
			run.Logger.Debug("page scanned", "page", page, "records", records)
		},
	}
}

// walkDone logs the end of a live-page walk.
func walkDone(run *engine.Run, strategy string, st engine.WalkStats, err error) error {
	if err != nil {
		return err
	}
	run.Logger.Info("page walk finished", "strategy", strategy, "pages", st.Pages, "added", st.Added, "stop", st.Stop)
	return nil
}

// textLines returns the trimmed non-empty text nodes under sel in
// document order, approximating the rendered lines of an element.
func textLines(sel *goquery.Selection) []string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return lines
}
