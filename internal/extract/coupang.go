package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

var (
	parenCountRe = regexp.MustCompile(`\((\d[\d,]*)\)`)
	slashDateRe  = regexp.MustCompile(`\d{4}/\d{2}/\d{2}`)
)

// reviewAreaScroll brings the review section into view before a scan.
const reviewAreaScroll = `(() => { const el = document.querySelector(%q); if (el) el.scrollIntoView({block: "start"}); return ""; })()`

func coupangProduct(ctx context.Context, run *engine.Run) (*types.ProductRecord, error) {
	doc := run.Snapshot()
	if doc == nil {
		return nil, errors.New("no page snapshot")
	}
	return CoupangProduct(doc, run.Platform.Selectors), nil
}

// CoupangProduct reads product fields from a Coupang product page.
func CoupangProduct(doc *goquery.Document, table config.SelectorTable) *types.ProductRecord {
	rec := &types.ProductRecord{}
	root := doc.Selection

	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		rec.Title, _, _ = strings.Cut(t, " | ")
		rec.Title = strings.TrimSpace(rec.Title)
	}
	if t, ok := parser.FirstText(root, table.Get(config.SelProductTitle)); ok {
		rec.Title = parser.OneLine(t)
	}
	if p, ok := parser.FirstText(root, table.Get(config.SelProductPrice)); ok {
		rec.Price = parser.OneLine(p)
	}
	if t, ok := parser.FirstText(root, table.Get(config.SelProductReviewCount)); ok {
		if m := parenCountRe.FindStringSubmatch(t); m != nil {
			if n, ok := parser.ParseCount(m[1]); ok {
				rec.ReviewCount = types.Int(n)
			}
		} else if n, ok := parser.ParseCount(t); ok {
			rec.ReviewCount = types.Int(n)
		}
	}

	parser.FirstMatch(root, []string{table.Joined(config.SelProductImage)}).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if strings.TrimSpace(src) == "" {
			src, _ = img.Attr("data-img-src")
		}
		if strings.Contains(src, "vendor_inventory") || strings.Contains(src, "product") {
			rec.AddImages(parser.HTTPSURL(src))
		}
	})
	for _, spec := range parser.Texts(root, table.Get(config.SelProductSpec)) {
		rec.Specifications = append(rec.Specifications, parser.OneLine(spec))
	}
	return rec
}

// ParseCoupangUIReviews reads the review articles rendered on the product
// page.
func ParseCoupangUIReviews(sel *goquery.Selection, table config.SelectorTable) []types.ReviewRecord {
	var out []types.ReviewRecord
	parser.FirstMatch(sel, table.Get(config.SelReviewItem)).Each(func(_ int, art *goquery.Selection) {
		var r types.ReviewRecord

		stars := float64(parser.FirstMatch(art, table.Get(config.SelReviewStar)).Length()) +
			float64(parser.FirstMatch(art, table.Get(config.SelReviewHalf)).Length())*0.5
		if stars > 0 {
			r.Rating = types.Float(stars)
		}

		meta := parser.FirstMatch(art, table.Get(config.SelReviewMeta)).First().Children()
		if meta.Length() >= 1 {
			r.Author = strings.TrimSpace(meta.Eq(0).Text())
		}
		if meta.Length() >= 2 {
			r.Date = strings.TrimSpace(meta.Eq(1).Text())
		}

		// Several content containers exist; the first holding real text wins.
		for _, c := range table.Get(config.SelReviewContent) {
			t := strings.TrimSpace(parser.Select(art, c).First().Text())
			if runeLen(t) > 4 && t != r.Author {
				r.Content = t
				break
			}
		}
		if help, ok := parser.FirstText(art, table.Get(config.SelReviewHelpful)); ok {
			r.Helpful = firstCount(help)
		}

		if r.Author != "" || r.Content != "" {
			out = append(out, r)
		}
	})
	return out
}

// coupangUIReviews pages the rendered reviews when the API produced
// nothing. The page count is bounded by ui_page_limit.
func coupangUIReviews(ctx context.Context, run *engine.Run, sink engine.Sink[types.ReviewRecord]) error {
	page := run.Page()
	if page == nil {
		return errors.New("no live page")
	}
	table := run.Platform.Selectors
	openTab(ctx, run, config.SelTabReview, "상품평")

	limit := run.Platform.UIPageLimit
	if run.Platform.MaxReviewPages > 0 && (limit <= 0 || run.Platform.MaxReviewPages < limit) {
		limit = run.Platform.MaxReviewPages
	}
	w := domWalk[types.ReviewRecord](run, limit, buttonAdvance(page, table.Get(config.SelPager)))
	w.Delay = run.Platform.PageDelay
	w.Target = run.ExpectedReviews()

	area := table.First(config.SelReviewArea)
	st, err := w.Walk(ctx, run.Pacer, sink, func(ctx context.Context, n int) ([]types.ReviewRecord, error) {
		if area != "" {
			_, _ = page.Eval(ctx, scrollIntoView(area))
		}
		if err := run.Pacer.Wait(ctx, run.Config.Delays.Short); err != nil {
			return nil, err
		}
		doc, err := run.Rescan()
		if err != nil {
			return nil, err
		}
		return ParseCoupangUIReviews(doc.Selection, table), nil
	})
	return walkDone(run, engine.StrategyLegacy, st, err)
}

func scrollIntoView(selector string) string {
	return fmt.Sprintf(reviewAreaScroll, selector)
}

// ParseCoupangQnA pairs the question and answer entries of a Q&A page.
// An answer attaches to the open question; a question left open is kept
// unanswered.
func ParseCoupangQnA(sel *goquery.Selection, table config.SelectorTable) []types.QnAPair {
	var out []types.QnAPair
	var open *types.QnAPair

	parser.FirstMatch(sel, table.Get(config.SelQnAItem)).Each(func(_ int, entry *goquery.Selection) {
		lines := textLines(entry)
		badge := parser.Prefix(strings.Join(lines, " "), 10)
		content := coupangQnAContent(entry, lines, table)
		date := slashDateRe.FindString(entry.Text())

		switch {
		case strings.Contains(badge, "질문"):
			if open != nil {
				out = append(out, *open)
			}
			open = &types.QnAPair{Question: content, QDate: date}
		case strings.Contains(badge, "답변") && open != nil:
			open.Answer = content
			open.ADate = date
			open.Seller, _ = parser.FirstText(entry, table.Get(config.SelQnASeller))
			out = append(out, *open)
			open = nil
		}
	})
	if open != nil {
		out = append(out, *open)
	}
	return out
}

// coupangQnAContent reads an entry body, falling back to the lines
// between the badge and the date.
func coupangQnAContent(entry *goquery.Selection, lines []string, table config.SelectorTable) string {
	if t, ok := parser.FirstText(entry, table.Get(config.SelQnAQuestion)); ok {
		return t
	}
	switch {
	case len(lines) > 2:
		return strings.Join(lines[1:len(lines)-1], " ")
	case len(lines) > 1:
		return lines[1]
	default:
		return ""
	}
}

func coupangQnA(ctx context.Context, run *engine.Run, sink engine.Sink[types.QnAPair]) error {
	page := run.Page()
	if page == nil {
		return errors.New("no live page")
	}
	table := run.Platform.Selectors
	openTab(ctx, run, config.SelTabQnA, "상품문의")

	w := domWalk[types.QnAPair](run, run.Platform.MaxQnAPages, buttonAdvance(page, table.Get(config.SelPager)))
	w.Delay = run.Platform.PageDelay
	st, err := w.Walk(ctx, run.Pacer, sink, func(ctx context.Context, n int) ([]types.QnAPair, error) {
		doc, err := run.Rescan()
		if err != nil {
			return nil, err
		}
		return ParseCoupangQnA(doc.Selection, table), nil
	})
	return walkDone(run, engine.StrategyLegacy, st, err)
}
