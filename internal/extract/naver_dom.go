package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StoreScope/internal/automation"
	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Naver renders hashed class names, so the structural scanners key on
// list shape and text patterns instead.
var (
	ratingTokenRe  = regexp.MustCompile(`평점([1-5])`)
	shortDateRe    = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{2})\.?`)
	authorSpanRe   = regexp.MustCompile(`평점\d([\s\S]*?)\d{2}\.\d{2}\.\d{2}`)
	optionRe       = regexp.MustCompile(`[가-힣]+\s*:\s*[가-힣A-Za-z0-9 ]+`)
	contentNoiseRe = regexp.MustCompile(`평점|리뷰|도움이|신고|더보기|접기`)

	qnaStatusRe    = regexp.MustCompile(`답변(완료|대기)`)
	qnaStatusOnly  = regexp.MustCompile(`^답변(완료|대기)$`)
	qnaDateRe      = regexp.MustCompile(`^\d{2,4}\.\d{2}\.\d{2}\.?$`)
	qnaAuthorNoise = regexp.MustCompile(`답변|비밀|신고`)
	qnaActionRe    = regexp.MustCompile(`신고|수정|삭제`)
)

const (
	secretMarker  = "비밀글"
	answeredLabel = "답변완료"
)

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// FindReviewList locates the review list of a Naver product page: the ul
// with the most direct li children in [3,25] whose first item mentions a
// rating and is longer than 80 characters. It returns the list and its
// index among all ul elements, or -1.
func FindReviewList(doc *goquery.Document) (*goquery.Selection, int) {
	best, bestIdx, bestCount := doc.FindNodes(), -1, 0
	doc.Find("ul").Each(func(i int, ul *goquery.Selection) {
		lis := parser.DirectChildren(ul, "li")
		n := lis.Length()
		if n < 3 || n > 25 || n <= bestCount {
			return
		}
		first := lis.First().Text()
		if !ratingTokenRe.MatchString(first) || runeLen(first) <= 80 {
			return
		}
		best, bestIdx, bestCount = ul, i, n
	})
	return best, bestIdx
}

// ScanNaverReviews reads every review of the current review page.
func ScanNaverReviews(doc *goquery.Document) []types.ReviewRecord {
	ul, idx := FindReviewList(doc)
	if idx < 0 {
		return nil
	}
	var out []types.ReviewRecord
	parser.DirectChildren(ul, "li").Each(func(_ int, li *goquery.Selection) {
		if r, ok := naverReviewItem(li); ok {
			out = append(out, r)
		}
	})
	return out
}

func naverReviewItem(li *goquery.Selection) (types.ReviewRecord, bool) {
	text := li.Text()
	var r types.ReviewRecord

	if m := ratingTokenRe.FindStringSubmatch(text); m != nil {
		r.Rating = types.Float(float64(m[1][0] - '0'))
	}
	if m := shortDateRe.FindStringSubmatch(text); m != nil {
		r.Date = "20" + strings.ReplaceAll(m[1], ".", "-")
	}
	if m := authorSpanRe.FindStringSubmatch(text); m != nil {
		r.Author = parser.Prefix(parser.OneLine(m[1]), 30)
	}
	if m := optionRe.FindString(text); m != "" {
		r.Option = strings.TrimSpace(m)
	}
	r.Content = parser.LongestText(li, []string{"span", "p", "div"}, func(s *goquery.Selection, t string) bool {
		return runeLen(t) > 15 &&
			parser.ElementCount(s) <= 2 &&
			!contentNoiseRe.MatchString(parser.Prefix(t, 10))
	})

	if runeLen(r.Content) > 10 || r.Author != "" {
		return r, true
	}
	return types.ReviewRecord{}, false
}

// FindQnAList locates the inquiry list: the first ul with [1,30] direct
// li children whose first item carries an answer status or the secret
// marker. It returns the list and its index among all ul elements, or -1.
func FindQnAList(doc *goquery.Document) (*goquery.Selection, int) {
	found, foundIdx := doc.FindNodes(), -1
	doc.Find("ul").EachWithBreak(func(i int, ul *goquery.Selection) bool {
		lis := parser.DirectChildren(ul, "li")
		n := lis.Length()
		if n < 1 || n > 30 {
			return true
		}
		first := lis.First().Text()
		if (qnaStatusRe.MatchString(first) || strings.Contains(first, secretMarker)) && runeLen(first) > 20 {
			found, foundIdx = ul, i
			return false
		}
		return true
	})
	return found, foundIdx
}

// ScanNaverQnA reads every inquiry of the current Q&A page. Answered
// items carry the answered marker until expanded.
func ScanNaverQnA(doc *goquery.Document) []types.QnAPair {
	ul, idx := FindQnAList(doc)
	if idx < 0 {
		return nil
	}
	var out []types.QnAPair
	parser.DirectChildren(ul, "li").Each(func(_ int, li *goquery.Selection) {
		if q, ok := naverQnAItem(li); ok {
			out = append(out, q)
		}
	})
	return out
}

func naverQnAItem(li *goquery.Selection) (types.QnAPair, bool) {
	text := li.Text()
	answered := strings.Contains(text, answeredLabel)
	secret := strings.Contains(text, secretMarker)

	var question, author, date string
	li.Find("div").Each(func(_ int, d *goquery.Selection) {
		t := strings.TrimSpace(d.Text())
		if t == "" {
			return
		}
		children := parser.ElementCount(d)
		n := runeLen(t)
		switch {
		case children == 0 && qnaDateRe.MatchString(t):
			date = t
		case children == 0 && n >= 3 && n <= 20 && strings.Contains(t, "*") && !qnaAuthorNoise.MatchString(t):
			author = t
		case children <= 1 && n > 10 &&
			!qnaStatusOnly.MatchString(t) &&
			!strings.Contains(parser.Prefix(t, 10), "비밀글입니다") &&
			!qnaActionRe.MatchString(parser.Prefix(t, 5)):
			if n > runeLen(question) {
				question = t
			}
		}
	})

	if question == "" && secret {
		question = types.SecretQuestion
	}
	if question == "" {
		return types.QnAPair{}, false
	}
	q := types.QnAPair{Question: question, Author: author, IsSecret: secret, QDate: naverQnADate(date)}
	if answered {
		q.Answer = types.AnsweredMarker
	}
	return q, true
}

// naverQnADate turns "YY.MM.DD." or "YYYY.MM.DD." into a dashed date.
func naverQnADate(s string) string {
	if s == "" {
		return ""
	}
	d := strings.TrimSuffix(strings.ReplaceAll(s, ".", "-"), "-")
	if len(d) <= 8 {
		d = "20" + d
	}
	return d
}

// AnswerText finds the answer body of an expanded inquiry item: the
// longest leaf-like text that is neither the question nor status or meta
// text.
func AnswerText(li *goquery.Selection, question string) string {
	return parser.LongestText(li, []string{"div", "p", "span"}, func(s *goquery.Selection, t string) bool {
		n := runeLen(t)
		if n <= 5 || parser.ElementCount(s) > 1 || strings.Contains(t, question) || strings.Contains(t, secretMarker) {
			return false
		}
		if qnaStatusOnly.MatchString(t) || qnaDateRe.MatchString(t) || qnaActionRe.MatchString(parser.Prefix(t, 5)) {
			return false
		}
		return !(n <= 20 && strings.Contains(t, "*"))
	})
}

func naverDOMReviews(ctx context.Context, run *engine.Run, sink engine.Sink[types.ReviewRecord]) error {
	page := run.Page()
	if page == nil {
		return errors.New("no live page")
	}
	if !openTab(ctx, run, config.SelTabReview, "리뷰") {
		return errors.New("review tab not found")
	}
	w := domWalk[types.ReviewRecord](run, run.Platform.MaxReviewPages, pageNumberAdvance(page))
	st, err := w.Walk(ctx, run.Pacer, sink, func(ctx context.Context, n int) ([]types.ReviewRecord, error) {
		doc, err := run.Rescan()
		if err != nil {
			return nil, err
		}
		return ScanNaverReviews(doc), nil
	})
	return walkDone(run, engine.StrategyDOM, st, err)
}

func naverDOMQnA(ctx context.Context, run *engine.Run, sink engine.Sink[types.QnAPair]) error {
	page := run.Page()
	if page == nil {
		return errors.New("no live page")
	}
	if !openTab(ctx, run, config.SelTabQnA, "Q&A", "문의") {
		return errors.New("qna tab not found")
	}
	w := domWalk[types.QnAPair](run, run.Platform.MaxQnAPages, pageNumberAdvance(page))
	st, err := w.Walk(ctx, run.Pacer, sink, func(ctx context.Context, n int) ([]types.QnAPair, error) {
		doc, err := run.Rescan()
		if err != nil {
			return nil, err
		}
		pairs := ScanNaverQnA(doc)
		if run.Config.Cascade.ExpandAnswers {
			expandAnswers(ctx, run, page, doc, pairs)
		}
		return pairs, nil
	})
	return walkDone(run, engine.StrategyDOM, st, err)
}

// expandAnswers clicks each answered item open and reads the revealed
// answer. Items whose answer cannot be recovered keep the marker.
func expandAnswers(ctx context.Context, run *engine.Run, page automation.Page, doc *goquery.Document, pairs []types.QnAPair) {
	_, listIdx := FindQnAList(doc)
	if listIdx < 0 {
		return
	}

	// Scanned pairs map onto the list items that produced them, in order.
	items := liveItems(page, listIdx)
	scanned := parser.DirectChildren(doc.Find("ul").Eq(listIdx), "li")
	pi := 0
	for i := 0; i < scanned.Length() && pi < len(pairs); i++ {
		li := scanned.Eq(i)
		if _, ok := naverQnAItem(li); !ok {
			continue
		}
		q := &pairs[pi]
		pi++
		if q.Answer != types.AnsweredMarker || i >= len(items) {
			continue
		}
		if err := items[i].Click(ctx); err != nil {
			run.Logger.Debug("expand click failed", "item", i, "error", err)
			continue
		}
		if err := run.Pacer.Wait(ctx, run.Config.Delays.Short); err != nil {
			return
		}
		after, err := run.Rescan()
		if err != nil {
			continue
		}
		expanded := parser.DirectChildren(after.Find("ul").Eq(listIdx), "li").Eq(i)
		if a := AnswerText(expanded, q.Question); a != "" {
			q.Answer = a
		}
	}
}

// liveItems returns the li children of the listIdx-th ul of the live page.
func liveItems(page automation.Page, listIdx int) []automation.Element {
	uls := page.QueryAll("ul")
	if listIdx >= len(uls) {
		return nil
	}
	var items []automation.Element
	for _, c := range uls[listIdx].Children() {
		if c.Tag() == "li" {
			items = append(items, c)
		}
	}
	return items
}
