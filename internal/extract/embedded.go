package extract

import (
	"context"
	"fmt"
	"regexp"

	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

var detailImageRe = regexp.MustCompile(`https?://[^\s"'<>]+\.(?:jpg|jpeg|png|gif|webp)`)

// pageProps returns the embedded page state of the run snapshot.
func pageProps(run *engine.Run) (map[string]any, error) {
	data, ok := run.NextData()
	if !ok {
		return nil, fmt.Errorf("%w: no embedded page data", engine.ErrSkip)
	}
	props, ok := parser.PageProps(data)
	if !ok {
		return nil, fmt.Errorf("%w: embedded page data has no pageProps", engine.ErrSkip)
	}
	return props, nil
}

func embeddedProduct(ctx context.Context, run *engine.Run) (*types.ProductRecord, error) {
	props, err := pageProps(run)
	if err != nil {
		return nil, err
	}
	return ProductFromPageProps(props), nil
}

// ProductFromPageProps reads product fields from embedded page state.
// Missing or mistyped fields are left empty.
func ProductFromPageProps(props map[string]any) *types.ProductRecord {
	rec := &types.ProductRecord{}
	prod, _ := parser.Map(props, "product")

	rec.Title, _ = parser.FirstString(prod, "name", "productName")
	if rec.Title == "" {
		rec.Title, _ = parser.String(props, "productName")
	}
	if rec.Title == "" {
		for _, d := range parser.DehydratedData(props) {
			if t, ok := parser.FirstString(d, "name", "productName"); ok {
				rec.Title = t
				break
			}
		}
	}

	if price, ok := parser.FirstFloat(prod, "salePrice", "discountedSalePrice"); ok {
		rec.Price = parser.FormatWon(int(price))
	}
	if amount, ok := parser.Map(prod, "reviewAmount"); ok {
		if avg, ok := parser.FirstFloat(amount, "averageReviewScore", "totalReviewScore"); ok {
			rec.Rating = types.Float(avg)
		}
		if n, ok := parser.Int(amount, "totalReviewCount"); ok && n > 0 {
			rec.ReviewCount = types.Int(n)
		}
	}

	if detail, ok := parser.String(prod, "detailContents"); ok {
		rec.AddImages(detailImageRe.FindAllString(detail, -1)...)
	}
	if len(rec.DetailImageURLs) == 0 {
		images, _ := parser.List(prod, "productImages")
		for _, img := range images {
			u, ok := parser.String(img, "url")
			if !ok {
				u, _ = parser.String(img)
			}
			rec.AddImages(parser.HTTPSURL(u))
		}
	}

	attrs, _ := parser.List(prod, "productAttributes")
	for _, a := range attrs {
		name, _ := parser.String(a, "attributeName")
		val, _ := parser.String(a, "attributeValue")
		if name != "" && val != "" {
			rec.Specifications = append(rec.Specifications, name+": "+val)
		}
	}
	return rec
}

func embeddedReviews(ctx context.Context, run *engine.Run, sink engine.Sink[types.ReviewRecord]) error {
	props, err := pageProps(run)
	if err != nil {
		return err
	}
	addAll(sink, embeddedRecords(props, []string{"reviews", "review"}, looksLikeReview, MapReview))
	return nil
}

func embeddedQnA(ctx context.Context, run *engine.Run, sink engine.Sink[types.QnAPair]) error {
	props, err := pageProps(run)
	if err != nil {
		return err
	}
	addAll(sink, embeddedRecords(props, []string{"inquiries", "qna"}, looksLikeInquiry, MapQnA))
	return nil
}

// embeddedRecords collects records from the named pageProps roots and
// from every dehydrated query whose items pass kind.
func embeddedRecords[T any](props map[string]any, roots []string, kind func(map[string]any) bool, mapFn func(any) (T, bool)) []T {
	var out []T
	for _, k := range roots {
		if v, ok := parser.Lookup(props, k); ok {
			out = append(out, mapAll(ItemLists(v), mapFn)...)
		}
	}
	for _, d := range parser.DehydratedData(props) {
		for _, l := range ItemLists(d) {
			for _, item := range l {
				m, ok := item.(map[string]any)
				if !ok || !kind(m) {
					continue
				}
				if rec, ok := mapFn(m); ok {
					out = append(out, rec)
				}
			}
		}
	}
	return out
}

// Dehydrated queries carry reviews and inquiries under the same list keys.
// Items are told apart by their fields.
var (
	reviewMarkerKeys  = []string{"reviewContent", "reviewScore", "score", "rating"}
	inquiryMarkerKeys = []string{"inquiryContent", "question", "answer", "reply", "secret", "isSecret", "secretYn"}
)

func looksLikeReview(m map[string]any) bool {
	_, ok := parser.FirstValue(m, reviewMarkerKeys...)
	return ok
}

func looksLikeInquiry(m map[string]any) bool {
	_, ok := parser.FirstValue(m, inquiryMarkerKeys...)
	return ok
}

func addAll[T any](sink engine.Sink[T], recs []T) {
	for _, r := range recs {
		if sink.Full() {
			return
		}
		sink.Add(r)
	}
}

// Tokens are the identifiers Naver's internal APIs require.
type Tokens struct {
	MerchantNo      string
	OriginProductNo string
}

// OK reports whether both tokens were found.
func (t Tokens) OK() bool { return t.MerchantNo != "" && t.OriginProductNo != "" }

// FindTokens looks the API tokens up in embedded page state.
func FindTokens(props map[string]any) Tokens {
	var t Tokens
	dehydrated := parser.DehydratedData(props)

	for _, owner := range []string{"channel", "store", "merchantInfo"} {
		if m, ok := parser.Map(props, owner); ok {
			if s, ok := parser.FirstString(m, "merchantNo", "channelNo", "id"); ok {
				t.MerchantNo = s
				break
			}
		}
	}
	if t.MerchantNo == "" {
		for _, d := range dehydrated {
			if s, ok := parser.FirstString(d, "merchantNo", "channelNo"); ok {
				t.MerchantNo = s
				break
			}
		}
	}

	t.OriginProductNo, _ = parser.FirstString(props, "originProductNo", "productNo")
	if t.OriginProductNo == "" {
		if prod, ok := parser.Map(props, "product"); ok {
			t.OriginProductNo, _ = parser.FirstString(prod, "originProductNo", "productNo", "id")
		}
	}
	if t.OriginProductNo == "" {
		for _, d := range dehydrated {
			if s, ok := parser.FirstString(d, "originProductNo", "productNo"); ok {
				t.OriginProductNo = s
				break
			}
		}
	}
	return t
}

// runTokens returns the run's API tokens, looked up once.
func runTokens(run *engine.Run) Tokens {
	v := run.Memo("naver.tokens", func() any {
		props, err := pageProps(run)
		if err != nil {
			return Tokens{}
		}
		return FindTokens(props)
	})
	t, _ := v.(Tokens)
	return t
}
