package pipeline

import (
	"html"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Rating bounds for a review.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

var (
	shortDateRe = regexp.MustCompile(`^\d{2}-\d{2}-\d{2}$`)
	dateSep     = strings.NewReplacer(". ", "-", ".", "-", "/", "-")
)

// NormalizeDate rewrites storefront dates ("2024.01.15.", "24.01.15",
// "2024/01/15", RFC 3339) to their YYYY-MM-DD prefix.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > 10 && s[4] == '-' {
		return parser.DatePrefix(s)
	}
	s = strings.TrimRight(dateSep.Replace(s), "- ")
	if shortDateRe.MatchString(s) {
		s = "20" + s
	}
	return parser.DatePrefix(s)
}

// --- Review middleware ---

// ReviewSanitizeMiddleware strips markup and entities from review text.
type ReviewSanitizeMiddleware struct{}

func (m *ReviewSanitizeMiddleware) Name() string { return "review_sanitize" }

func (m *ReviewSanitizeMiddleware) Process(r types.ReviewRecord) (types.ReviewRecord, bool) {
	r.Author = inline(r.Author)
	r.Headline = inline(r.Headline)
	r.Option = inline(r.Option)
	r.Content = sanitizeBody(r.Content)
	return r, true
}

// ReviewDateMiddleware truncates review dates to YYYY-MM-DD.
type ReviewDateMiddleware struct{}

func (m *ReviewDateMiddleware) Name() string { return "review_date" }

func (m *ReviewDateMiddleware) Process(r types.ReviewRecord) (types.ReviewRecord, bool) {
	r.Date = NormalizeDate(r.Date)
	return r, true
}

// RatingBoundsMiddleware clears ratings outside [MinRating, MaxRating],
// rounds the rest to one decimal and floors helpful counts at zero.
type RatingBoundsMiddleware struct{}

func (m *RatingBoundsMiddleware) Name() string { return "rating_bounds" }

func (m *RatingBoundsMiddleware) Process(r types.ReviewRecord) (types.ReviewRecord, bool) {
	if r.Helpful < 0 {
		r.Helpful = 0
	}
	if r.Rating == nil {
		return r, true
	}
	v := *r.Rating
	if math.IsNaN(v) || v < MinRating || v > MaxRating {
		r.Rating = nil
		return r, true
	}
	r.Rating = types.Float(math.Round(v*10) / 10)
	return r, true
}

// EmptyReviewMiddleware drops reviews with neither author nor content.
type EmptyReviewMiddleware struct{}

func (m *EmptyReviewMiddleware) Name() string { return "empty_review" }

func (m *EmptyReviewMiddleware) Process(r types.ReviewRecord) (types.ReviewRecord, bool) {
	return r, !r.Empty()
}

// --- Q&A middleware ---

// QnASanitizeMiddleware strips markup and entities from Q&A text.
type QnASanitizeMiddleware struct{}

func (m *QnASanitizeMiddleware) Name() string { return "qna_sanitize" }

func (m *QnASanitizeMiddleware) Process(q types.QnAPair) (types.QnAPair, bool) {
	q.Question = sanitizeBody(q.Question)
	q.Answer = sanitizeBody(q.Answer)
	q.Seller = inline(q.Seller)
	q.Author = inline(q.Author)
	return q, true
}

// QnADateMiddleware truncates question and answer dates to YYYY-MM-DD.
type QnADateMiddleware struct{}

func (m *QnADateMiddleware) Name() string { return "qna_date" }

func (m *QnADateMiddleware) Process(q types.QnAPair) (types.QnAPair, bool) {
	q.QDate = NormalizeDate(q.QDate)
	q.ADate = NormalizeDate(q.ADate)
	return q, true
}

// EmptyQuestionMiddleware drops pairs without a question. Unanswered
// questions are kept.
type EmptyQuestionMiddleware struct{}

func (m *EmptyQuestionMiddleware) Name() string { return "empty_question" }

func (m *EmptyQuestionMiddleware) Process(q types.QnAPair) (types.QnAPair, bool) {
	return q, strings.TrimSpace(q.Question) != ""
}

// inline reduces a short field to one line of plain text.
func inline(s string) string {
	return parser.OneLine(html.UnescapeString(parser.StripTags(s)))
}

// sanitizeBody turns <br> into newlines, drops remaining tags and decodes
// entities, keeping paragraph breaks.
func sanitizeBody(s string) string {
	if s == "" {
		return ""
	}
	s = brRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	return parser.CleanText(html.UnescapeString(s))
}

var (
	brRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe = regexp.MustCompile(`<[^>]*>`)
)

// Reviews returns the standard review pipeline.
func Reviews(logger *slog.Logger) *Pipeline[types.ReviewRecord] {
	return New[types.ReviewRecord](logger).
		Use(&ReviewSanitizeMiddleware{}).
		Use(&ReviewDateMiddleware{}).
		Use(&RatingBoundsMiddleware{}).
		Use(&EmptyReviewMiddleware{})
}

// QnA returns the standard Q&A pipeline.
func QnA(logger *slog.Logger) *Pipeline[types.QnAPair] {
	return New[types.QnAPair](logger).
		Use(&QnASanitizeMiddleware{}).
		Use(&QnADateMiddleware{}).
		Use(&EmptyQuestionMiddleware{})
}
