package extract

import (
	"strings"

	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Field synonyms seen across Naver page data and API payloads. The first
// key holding a usable value wins.
var (
	reviewContentKeys = []string{"reviewContent", "content", "body"}
	reviewAuthorKeys  = []string{"writerNickname", "buyerNickname", "author"}
	reviewRatingKeys  = []string{"reviewScore", "score", "rating"}
	reviewDateKeys    = []string{"createDate", "writtenDate"}
	reviewOptionKeys  = []string{"productOption", "optionText"}
	reviewTitleKeys   = []string{"headline", "title"}

	questionKeys      = []string{"inquiryContent", "content", "question", "body"}
	questionDateKeys  = []string{"createDate", "inquiryDate"}
	answerKeys        = []string{"answer", "reply"}
	answerContentKeys = []string{"answerContent", "content", "body"}
	answerDateKeys    = []string{"createDate", "answerDate"}
	answerWriterKeys  = []string{"writerNickname", "sellerName"}
	secretKeys        = []string{"secret", "isSecret", "secretYn"}

	// itemListKeys hold record arrays, directly or inside pages[].
	itemListKeys = []string{"contents", "reviews", "inquiries", "items"}
)

// MapReview normalizes one review object. It reports false when the
// object has neither content nor an author.
func MapReview(v any) (types.ReviewRecord, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return types.ReviewRecord{}, false
	}

	var r types.ReviewRecord
	r.Content, _ = parser.FirstString(m, reviewContentKeys...)
	r.Author, _ = parser.FirstString(m, reviewAuthorKeys...)
	if r.Content == "" && r.Author == "" {
		return types.ReviewRecord{}, false
	}
	if f, ok := parser.FirstFloat(m, reviewRatingKeys...); ok {
		r.Rating = types.Float(f)
	}
	if d, ok := parser.FirstString(m, reviewDateKeys...); ok {
		r.Date = parser.DatePrefix(d)
	}
	r.Option = optionText(m)
	r.Headline, _ = parser.FirstString(m, reviewTitleKeys...)
	r.Helpful, _ = parser.Int(m, "helpCount")
	return r, true
}

// optionText reads the purchased option, either a string or a list.
func optionText(m map[string]any) string {
	v, ok := parser.FirstValue(m, reviewOptionKeys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, o := range t {
			if s, ok := parser.String(o); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		s, _ := parser.String(v)
		return s
	}
}

// MapQnA normalizes one inquiry object. It reports false when there is
// no question text.
func MapQnA(v any) (types.QnAPair, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return types.QnAPair{}, false
	}

	var q types.QnAPair
	q.Question, _ = parser.FirstString(m, questionKeys...)
	if q.Question == "" {
		return types.QnAPair{}, false
	}
	if d, ok := parser.FirstString(m, questionDateKeys...); ok {
		q.QDate = parser.DatePrefix(d)
	}
	for _, k := range secretKeys {
		if b, ok := parser.Bool(m, k); ok && b {
			q.IsSecret = true
			break
		}
	}

	if raw, ok := parser.FirstValue(m, answerKeys...); ok {
		switch a := raw.(type) {
		case map[string]any:
			q.Answer, _ = parser.FirstString(a, answerContentKeys...)
			if d, ok := parser.FirstString(a, answerDateKeys...); ok {
				q.ADate = parser.DatePrefix(d)
			}
			q.Seller, _ = parser.FirstString(a, answerWriterKeys...)
		case string:
			q.Answer = strings.TrimSpace(a)
		}
	}
	return q, true
}

// ItemLists finds record arrays in a decoded payload. Both the flat
// {contents: [...]} shape and the paginated {pages: [{contents: [...]}]}
// shape are accepted; lists are returned in document order.
func ItemLists(v any) [][]any {
	m, ok := v.(map[string]any)
	if !ok {
		if l, ok := v.([]any); ok && len(l) > 0 {
			return [][]any{l}
		}
		return nil
	}
	if l, ok := parser.FirstList(m, itemListKeys...); ok {
		return [][]any{l}
	}
	pages, ok := parser.List(m, "pages")
	if !ok {
		return nil
	}
	var out [][]any
	for _, p := range pages {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if l, ok := parser.FirstList(pm, itemListKeys...); ok {
			out = append(out, l)
		}
	}
	return out
}

// mapAll maps every item of lists with fn, skipping rejects.
func mapAll[T any](lists [][]any, fn func(any) (T, bool)) []T {
	var out []T
	for _, l := range lists {
		for _, item := range l {
			if rec, ok := fn(item); ok {
				out = append(out, rec)
			}
		}
	}
	return out
}
