package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/IshaanNene/StoreScope/internal/types"
)

// QnACounts breaks a Q&A collection down by answer state.
type QnACounts struct {
	Total      int
	Secret     int
	Answered   int // answer text recovered
	Marked     int // answered, text not recoverable
	Unanswered int
}

// CountQnA tallies pairs by answer state.
func CountQnA(pairs []types.QnAPair) QnACounts {
	c := QnACounts{Total: len(pairs)}
	for i := range pairs {
		p := &pairs[i]
		if p.Secret() {
			c.Secret++
		}
		switch {
		case p.HasAnswerText():
			c.Answered++
		case p.Answered():
			c.Marked++
		default:
			c.Unanswered++
		}
	}
	return c
}

// RatingDistribution counts reviews per rounded star value, 1 to 5.
func RatingDistribution(reviews []types.ReviewRecord) map[int]int {
	dist := make(map[int]int, 5)
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		star := int(math.Round(*r.Rating))
		if star >= 1 && star <= 5 {
			dist[star]++
		}
	}
	return dist
}

// ReviewSummary renders "리뷰 N건 수집 (5점: a건 / 4점: b건 ...)", listing
// only star values that occur.
func ReviewSummary(reviews []types.ReviewRecord) string {
	if len(reviews) == 0 {
		return "리뷰 0건 수집"
	}
	dist := RatingDistribution(reviews)
	var parts []string
	for star := 5; star >= 1; star-- {
		if n := dist[star]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d점: %d건", star, n))
		}
	}
	s := fmt.Sprintf("리뷰 %d건 수집", len(reviews))
	if len(parts) > 0 {
		s += " (" + strings.Join(parts, " / ") + ")"
	}
	return s
}

// QnASummary renders "전체 상품 문의 N건, 비밀글 s건, 확인답변 a건". The
// secret count is omitted when zero.
func QnASummary(pairs []types.QnAPair) string {
	if len(pairs) == 0 {
		return "상품 문의 0건 수집"
	}
	c := CountQnA(pairs)
	parts := []string{fmt.Sprintf("전체 상품 문의 %d건", c.Total)}
	if c.Secret > 0 {
		parts = append(parts, fmt.Sprintf("비밀글 %d건", c.Secret))
	}
	parts = append(parts, fmt.Sprintf("확인답변 %d건", c.Answered))
	return strings.Join(parts, ", ")
}

// Summaries holds the one-line collection summaries shown to users.
type Summaries struct {
	Reviews string `json:"reviews"`
	QnA     string `json:"qna"`
}

// Summarize builds the summaries of a result.
func Summarize(r *types.Result) Summaries {
	return Summaries{
		Reviews: ReviewSummary(r.Reviews),
		QnA:     QnASummary(r.QnA),
	}
}
