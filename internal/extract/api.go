package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/fetcher"
	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Naver sort orders.
const (
	sortReviewRanking = "REVIEW_RANKING"
	sortRecent        = "RECENT"
)

var (
	starWidthRe = regexp.MustCompile(`width:\s*([\d.]+)%`)
	countRe     = regexp.MustCompile(`(\d+)`)
)

// NaverAPI reads Naver's paged review and inquiry endpoints.
type NaverAPI struct {
	Client     *fetcher.Client
	Tokens     Tokens
	ReviewSize int
	QnASize    int
}

// FetchReviews returns page of the review listing.
func (a *NaverAPI) FetchReviews(ctx context.Context, id *types.ProductIdentity, page int) ([]types.ReviewRecord, error) {
	lists, err := a.fetch(ctx, id.Endpoints.Reviews, page, a.ReviewSize, sortReviewRanking)
	if err != nil {
		return nil, err
	}
	return mapAll(lists, MapReview), nil
}

// FetchQnA returns page of the inquiry listing.
func (a *NaverAPI) FetchQnA(ctx context.Context, id *types.ProductIdentity, page int) ([]types.QnAPair, error) {
	lists, err := a.fetch(ctx, id.Endpoints.QnA, page, a.QnASize, sortRecent)
	if err != nil {
		return nil, err
	}
	return mapAll(lists, MapQnA), nil
}

func (a *NaverAPI) fetch(ctx context.Context, endpoint string, page, size int, sort string) ([][]any, error) {
	params := url.Values{}
	params.Set("merchantNo", a.Tokens.MerchantNo)
	params.Set("originProductNo", a.Tokens.OriginProductNo)
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(size))
	params.Set("sortType", sort)

	resp, err := a.Client.Get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	var body any
	if err := resp.JSON(&body); err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	return ItemLists(body), nil
}

// naverAPI builds the API reader of a run. Missing tokens skip the
// strategy.
func naverAPI(ctx context.Context, run *engine.Run) (*NaverAPI, error) {
	tokens := runTokens(run)
	if !tokens.OK() {
		return nil, fmt.Errorf("%w: %w", engine.ErrSkip, types.ErrNoTokens)
	}
	client, err := run.Client(ctx)
	if err != nil {
		return nil, err
	}
	return &NaverAPI{
		Client:     client,
		Tokens:     tokens,
		ReviewSize: run.Platform.ReviewPageSize,
		QnASize:    run.Platform.QnAPageSize,
	}, nil
}

func naverAPIReviews(ctx context.Context, run *engine.Run, sink engine.Sink[types.ReviewRecord]) error {
	if run.Identity.Endpoints.Reviews == "" {
		return fmt.Errorf("%w: no review endpoint", engine.ErrSkip)
	}
	api, err := naverAPI(ctx, run)
	if err != nil {
		return err
	}
	w := apiWalk[types.ReviewRecord](run, run.Platform.MaxReviewPages)
	st, err := w.Walk(ctx, run.Pacer, sink, func(ctx context.Context, page int) ([]types.ReviewRecord, error) {
		return api.FetchReviews(ctx, run.Identity, page)
	})
	return apiResult(run, st, err)
}

func naverAPIQnA(ctx context.Context, run *engine.Run, sink engine.Sink[types.QnAPair]) error {
	if run.Identity.Endpoints.QnA == "" {
		return fmt.Errorf("%w: no inquiry endpoint", engine.ErrSkip)
	}
	api, err := naverAPI(ctx, run)
	if err != nil {
		return err
	}
	w := apiWalk[types.QnAPair](run, run.Platform.MaxQnAPages)
	st, err := w.Walk(ctx, run.Pacer, sink, func(ctx context.Context, page int) ([]types.QnAPair, error) {
		return api.FetchQnA(ctx, run.Identity, page)
	})
	return apiResult(run, st, err)
}

// apiWalk is the page walk shared by the API strategies.
func apiWalk[T any](run *engine.Run, maxPages int) engine.PageWalk[T] {
	return engine.PageWalk[T]{
		MaxPages: maxPages,
		Delay:    run.Platform.PageDelay,
		OnPage: func(page, records int) {
			run.Metrics.APIPagesFetched.Add(1)
			run.Logger.Debug("api page fetched", "page", page, "records", records)
		},
	}
}

// apiResult treats a non-200 after the first page as the end of the
// listing. A failure on the first page is reported.
func apiResult(run *engine.Run, st engine.WalkStats, err error) error {
	if err == nil {
		run.Logger.Info("api walk finished", "pages", st.Pages, "added", st.Added, "stop", st.Stop)
		return nil
	}
	var fe *types.FetchError
	if errors.As(err, &fe) {
		run.Metrics.APIPagesFailed.Add(1)
	}
	if st.Pages > 0 && fe != nil {
		run.Logger.Info("api listing ended", "pages", st.Pages, "added", st.Added, "status", fe.StatusCode)
		return nil
	}
	return err
}

// CoupangAPI reads Coupang's review fragment endpoint.
type CoupangAPI struct {
	Client    *fetcher.Client
	PageSize  int
	Selectors config.SelectorTable
}

// FetchReviews returns page of the review fragment, most helpful first.
func (a *CoupangAPI) FetchReviews(ctx context.Context, id *types.ProductIdentity, page int) ([]types.ReviewRecord, error) {
	params := url.Values{}
	params.Set("productId", id.ProductID)
	params.Set("itemId", id.ItemID)
	params.Set("vendorItemId", id.VendorItemID)
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(a.PageSize))
	params.Set("sortBy", "ORDER_SCORE_ASC")
	params.Set("ratings", "")
	params.Set("q", "")
	params.Set("viRoleCode", "3")
	params.Set("ratingSummary", "true")

	resp, err := a.Client.Get(ctx, id.Endpoints.Reviews, params)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &types.ParseError{URL: resp.URL, Selector: "html", Err: err}
	}
	return ParseCoupangReviews(doc.Selection, a.Selectors), nil
}

// ParseCoupangReviews reads the review articles of an API fragment.
// Articles with neither author nor content are skipped.
func ParseCoupangReviews(sel *goquery.Selection, table config.SelectorTable) []types.ReviewRecord {
	var out []types.ReviewRecord
	parser.FirstMatch(sel, table.Get(config.SelAPIArticle)).Each(func(_ int, art *goquery.Selection) {
		var r types.ReviewRecord
		if style, ok := parser.FirstAttr(art, table.Get(config.SelAPIStar), "style"); ok {
			if m := starWidthRe.FindStringSubmatch(style); m != nil {
				if w, err := strconv.ParseFloat(m[1], 64); err == nil {
					r.Rating = types.Float(math.Round(w/20*10) / 10)
				}
			}
		}
		r.Author, _ = parser.FirstText(art, table.Get(config.SelAPIAuthor))
		r.Date, _ = parser.FirstText(art, table.Get(config.SelAPIDate))
		r.Headline, _ = parser.FirstText(art, table.Get(config.SelAPIHeadline))
		r.Content, _ = parser.FirstText(art, table.Get(config.SelAPIContent))
		if help, ok := parser.FirstText(art, table.Get(config.SelAPIHelpful)); ok {
			r.Helpful = firstCount(help)
		}
		if r.Author != "" || r.Content != "" {
			out = append(out, r)
		}
	})
	return out
}

func firstCount(s string) int {
	m := countRe.FindString(s)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(m)
	return n
}

// coupangAPIReviews pages the fragment endpoint until the advertised
// total, an empty page or a non-200. Once any page was read the listing
// counts as exhausted and the UI fallback is not tried.
func coupangAPIReviews(ctx context.Context, run *engine.Run, sink engine.Sink[types.ReviewRecord]) error {
	if run.Identity.Endpoints.Reviews == "" {
		return fmt.Errorf("%w: no review endpoint", engine.ErrSkip)
	}
	client, err := run.Client(ctx)
	if err != nil {
		return err
	}
	api := &CoupangAPI{Client: client, PageSize: run.Platform.ReviewPageSize, Selectors: run.Platform.Selectors}

	w := apiWalk[types.ReviewRecord](run, run.Platform.MaxReviewPages)
	w.Target = run.ExpectedReviews()
	st, err := w.Walk(ctx, run.Pacer, sink, func(ctx context.Context, page int) ([]types.ReviewRecord, error) {
		return api.FetchReviews(ctx, run.Identity, page)
	})
	if st.Pages > 0 {
		if err != nil && ctx.Err() == nil {
			run.Logger.Info("api listing ended", "pages", st.Pages, "error", err)
		}
		run.Logger.Info("api walk finished", "pages", st.Pages, "added", st.Added, "stop", st.Stop, "expected", w.Target)
		return engine.ErrExhausted
	}
	if err != nil {
		var fe *types.FetchError
		if errors.As(err, &fe) {
			run.Metrics.APIPagesFailed.Add(1)
		}
		return fmt.Errorf("first api page: %w", err)
	}
	return nil
}
