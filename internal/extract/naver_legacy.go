package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// imageAttrs are read in order for lazily loaded detail images.
var imageAttrs = []string{"src", "data-src", "data-lazy-src"}

func naverProduct(ctx context.Context, run *engine.Run) (*types.ProductRecord, error) {
	doc := run.Snapshot()
	if doc == nil {
		return nil, errors.New("no page snapshot")
	}
	rec := NaverProduct(doc, run.Platform.Selectors)
	if rec.Title == "" {
		if page := run.Page(); page != nil {
			title, _, _ := strings.Cut(page.Title(), " :")
			rec.Title = strings.TrimSpace(title)
		}
	}
	return rec, nil
}

// NaverProduct reads product fields from the Naver selector table.
func NaverProduct(doc *goquery.Document, table config.SelectorTable) *types.ProductRecord {
	rec := &types.ProductRecord{}
	root := doc.Selection

	rec.Title, _ = parser.FirstText(root, table.Get(config.SelProductTitle))
	rec.Price, _ = parser.FirstText(root, table.Get(config.SelProductPrice))
	if t, ok := parser.FirstText(root, table.Get(config.SelProductRating)); ok {
		if f, ok := parser.ParseFloat(t); ok {
			rec.Rating = types.Float(f)
		}
	}
	if t, ok := parser.FirstText(root, table.Get(config.SelProductReviewCount)); ok {
		if n, ok := parser.ParseCount(t); ok {
			rec.ReviewCount = types.Int(n)
		}
	}

	// Every candidate contributes images, not only the first match.
	for _, c := range table.Get(config.SelProductImage) {
		parser.Select(root, c).Each(func(_ int, img *goquery.Selection) {
			for _, attr := range imageAttrs {
				if src, ok := img.Attr(attr); ok && strings.TrimSpace(src) != "" {
					rec.AddImages(parser.HTTPSURL(src))
					return
				}
			}
		})
	}

	// The attribute table holds one or more name/value pairs per row.
	for _, row := range parser.ExtractTable(parser.FirstMatch(root, table.Get(config.SelProductSpec))) {
		for i := 0; i+1 < len(row); i += 2 {
			if row[i] != "" && row[i+1] != "" {
				rec.Specifications = append(rec.Specifications, parser.OneLine(row[i])+": "+parser.OneLine(row[i+1]))
			}
		}
	}
	return rec
}

// ParseNaverLegacyReviews reads reviews through the Naver selector table.
func ParseNaverLegacyReviews(sel *goquery.Selection, table config.SelectorTable) []types.ReviewRecord {
	var out []types.ReviewRecord
	parser.FirstMatch(sel, table.Get(config.SelReviewItem)).Each(func(_ int, li *goquery.Selection) {
		var r types.ReviewRecord
		if t, ok := parser.FirstText(li, table.Get(config.SelReviewStar)); ok {
			if f, ok := parser.ParseFloat(t); ok {
				r.Rating = types.Float(f)
			}
		}
		r.Content, _ = parser.FirstText(li, table.Get(config.SelReviewContent))
		r.Author, _ = parser.FirstText(li, table.Get(config.SelReviewAuthor))
		r.Date, _ = parser.FirstText(li, table.Get(config.SelReviewDate))
		r.Option, _ = parser.FirstText(li, table.Get(config.SelReviewOption))
		if r.Content != "" || r.Author != "" {
			out = append(out, r)
		}
	})
	return out
}

// ParseNaverLegacyQnA reads inquiries through the Naver selector table.
func ParseNaverLegacyQnA(sel *goquery.Selection, table config.SelectorTable) []types.QnAPair {
	var out []types.QnAPair
	parser.FirstMatch(sel, table.Get(config.SelQnAItem)).Each(func(_ int, li *goquery.Selection) {
		var q types.QnAPair
		q.Question, _ = parser.FirstText(li, table.Get(config.SelQnAQuestion))
		q.Answer, _ = parser.FirstText(li, table.Get(config.SelQnAAnswer))
		q.QDate, _ = parser.FirstText(li, table.Get(config.SelQnADate))
		q.IsSecret = strings.Contains(li.Text(), secretMarker)
		if q.Question == "" && q.IsSecret {
			q.Question = types.SecretQuestion
		}
		if q.Question != "" {
			out = append(out, q)
		}
	})
	return out
}

func naverLegacyReviews(ctx context.Context, run *engine.Run, sink engine.Sink[types.ReviewRecord]) error {
	page := run.Page()
	if page == nil {
		return errors.New("no live page")
	}
	table := run.Platform.Selectors
	w := domWalk[types.ReviewRecord](run, run.Platform.MaxReviewPages, linkAdvance(page, table.Get(config.SelPager)))
	st, err := w.Walk(ctx, run.Pacer, sink, func(ctx context.Context, n int) ([]types.ReviewRecord, error) {
		doc, err := run.Rescan()
		if err != nil {
			return nil, err
		}
		return ParseNaverLegacyReviews(doc.Selection, table), nil
	})
	return walkDone(run, engine.StrategyLegacy, st, err)
}

func naverLegacyQnA(ctx context.Context, run *engine.Run, sink engine.Sink[types.QnAPair]) error {
	page := run.Page()
	if page == nil {
		return errors.New("no live page")
	}
	table := run.Platform.Selectors
	w := domWalk[types.QnAPair](run, run.Platform.MaxQnAPages, linkAdvance(page, table.Get(config.SelPager)))
	st, err := w.Walk(ctx, run.Pacer, sink, func(ctx context.Context, n int) ([]types.QnAPair, error) {
		doc, err := run.Rescan()
		if err != nil {
			return nil, err
		}
		return ParseNaverLegacyQnA(doc.Selection, table), nil
	})
	return walkDone(run, engine.StrategyLegacy, st, err)
}

// structuredProduct fills the remaining product fields from JSON-LD,
// OpenGraph and microdata.
func structuredProduct(sde *parser.StructuredDataExtractor) func(context.Context, *engine.Run) (*types.ProductRecord, error) {
	return func(ctx context.Context, run *engine.Run) (*types.ProductRecord, error) {
		doc := run.Snapshot()
		if doc == nil {
			return nil, fmt.Errorf("%w: no page snapshot", engine.ErrSkip)
		}
		rec := sde.Product(doc, run.Identity.PageURL())
		return &rec, nil
	}
}
