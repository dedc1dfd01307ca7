package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/types"
)

const (
	maxReviewRecords = 100
	reviewEdge       = 50
	maxQnARecords    = 50
)

// Analyzer turns a collection into narrative sections with one Generator.
type Analyzer struct {
	gen    Generator
	tokens config.TokenConfig
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer over gen.
func NewAnalyzer(gen Generator, tokens config.TokenConfig, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		gen:    gen,
		tokens: tokens,
		logger: logger.With("component", "analyzer", "provider", gen.Label()),
	}
}

// Story analyzes how the detail page sells the product. With detail
// images the request is multimodal.
func (a *Analyzer) Story(ctx context.Context, p *types.ProductRecord) (string, error) {
	info := productInfo(p)
	if len(p.DetailImageURLs) > 0 {
		prompt := storyPrompt + "\n\n## 상품 기본 정보\n" + info +
			"\n\n아래 상세페이지 이미지들을 분석하여 스토리 플로우를 파악해주세요."
		return a.gen.SummarizeWithImages(ctx, prompt, p.DetailImageURLs, a.tokens.Story)
	}
	return a.gen.Summarize(ctx, storyPrompt, "## 상품 정보\n"+info, a.tokens.Story)
}

// Reviews analyzes customer sentiment.
func (a *Analyzer) Reviews(ctx context.Context, reviews []types.ReviewRecord) (string, error) {
	if len(reviews) == 0 {
		return noReviewsText, nil
	}
	data, err := reviewData(reviews)
	if err != nil {
		return "", err
	}
	text := "## 별점 분포\n" + ratingStats(reviews) + "\n\n" +
		fmt.Sprintf("## 리뷰 데이터 (%d건)\n```json\n%s\n```", len(reviews), data)
	return a.gen.Summarize(ctx, reviewPrompt, text, a.tokens.Review)
}

// QnA analyzes customer questions and the seller's answers.
func (a *Analyzer) QnA(ctx context.Context, pairs []types.QnAPair) (string, error) {
	if len(pairs) == 0 {
		return noQnAText, nil
	}
	data, err := qnaData(pairs)
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf("## Q&A 데이터 (%d건)\n```json\n%s\n```", len(pairs), data)
	return a.gen.Summarize(ctx, qnaPrompt, text, a.tokens.QnA)
}

// Full combines the other sections into one report. Empty sections are
// left out.
func (a *Analyzer) Full(ctx context.Context, p *types.ProductRecord, story, review, qna string) (string, error) {
	var parts []string
	if p != nil && (p.Title != "" || p.Price != "" || p.ReviewCount != nil) {
		title := p.Title
		if title == "" {
			title = "N/A"
		}
		parts = append(parts, "## 상품 정보\n- 상품명: "+title)
		if p.Price != "" {
			parts = append(parts, "- 가격: "+p.Price)
		}
		if p.ReviewCount != nil && *p.ReviewCount > 0 {
			parts = append(parts, fmt.Sprintf("- 리뷰 수: %d건", *p.ReviewCount))
		}
	}
	if story != "" {
		parts = append(parts, "\n## 상세페이지 스토리 분석 결과\n"+story)
	}
	if review != "" {
		parts = append(parts, "\n## 리뷰 분석 결과\n"+review)
	}
	if qna != "" {
		parts = append(parts, "\n## Q&A 분석 결과\n"+qna)
	}
	if len(parts) == 0 {
		return noFullText, nil
	}
	return a.gen.Summarize(ctx, fullPrompt, strings.Join(parts, "\n"), a.tokens.Full)
}

// Analyze generates the enabled sections for r. The full report needs
// the other three, so enabling it generates them as well. A failed
// section is recorded in the result's Errors and the rest still run.
func (a *Analyzer) Analyze(ctx context.Context, r *types.Result, sections config.SectionConfig) *types.Narratives {
	n := &types.Narratives{Provider: a.gen.Label(), Model: a.gen.Model()}

	run := func(s types.Section, fn func() (string, error)) {
		if ctx.Err() != nil {
			n.Fail(s, &types.NarrativeError{Provider: n.Provider, Section: string(s), Err: ctx.Err()})
			return
		}
		text, err := fn()
		if err != nil {
			a.logger.Warn("narrative failed", "section", s, "error", err)
			n.Fail(s, &types.NarrativeError{Provider: n.Provider, Section: string(s), Err: err})
			return
		}
		a.logger.Info("narrative generated", "section", s, "chars", len(text))
		n.Set(s, text)
	}

	if sections.Story || sections.Full {
		run(types.SectionStory, func() (string, error) { return a.Story(ctx, &r.Product) })
	}
	if sections.Review || sections.Full {
		run(types.SectionReview, func() (string, error) { return a.Reviews(ctx, r.Reviews) })
	}
	if sections.QnA || sections.Full {
		run(types.SectionQnA, func() (string, error) { return a.QnA(ctx, r.QnA) })
	}
	if sections.Full {
		run(types.SectionFull, func() (string, error) {
			return a.Full(ctx, &r.Product, n.Story, n.Review, n.QnA)
		})
	}
	return n
}

func productInfo(p *types.ProductRecord) string {
	var parts []string
	if p.Title != "" {
		parts = append(parts, "- 상품명: "+p.Title)
	}
	if p.Price != "" {
		parts = append(parts, "- 가격: "+p.Price)
	}
	if p.Rating != nil && *p.Rating > 0 {
		parts = append(parts, "- 평점: "+strconv.FormatFloat(*p.Rating, 'f', -1, 64))
	}
	if p.ReviewCount != nil && *p.ReviewCount > 0 {
		parts = append(parts, fmt.Sprintf("- 리뷰 수: %d건", *p.ReviewCount))
	}
	if len(p.Specifications) > 0 {
		parts = append(parts, "- 스펙: "+strings.Join(p.Specifications, ", "))
	}
	if len(parts) == 0 {
		return noProductText
	}
	return strings.Join(parts, "\n")
}

// ratingStats renders the star distribution of rated reviews.
func ratingStats(reviews []types.ReviewRecord) string {
	dist := engine.RatingDistribution(reviews)
	total := 0
	for _, n := range dist {
		total += n
	}

	var b strings.Builder
	for star := 5; star >= 1; star-- {
		pct := 0.0
		if total > 0 {
			pct = float64(dist[star]) / float64(total) * 100
		}
		fmt.Fprintf(&b, "- %d점: %d건 (%.1f%%)\n", star, dist[star], pct)
	}
	fmt.Fprintf(&b, "- 합계: %d건", total)
	return b.String()
}

type reviewEntry struct {
	Rating  *float64 `json:"rating"`
	Date    string   `json:"date"`
	Content string   `json:"content"`
}

// reviewData keeps the first and last records of long collections.
func reviewData(reviews []types.ReviewRecord) (string, error) {
	entries := make([]reviewEntry, 0, len(reviews))
	for _, r := range reviews {
		content := r.Content
		if r.Headline != "" {
			content = strings.TrimSpace(r.Headline + " " + content)
		}
		entries = append(entries, reviewEntry{Rating: r.Rating, Date: r.Date, Content: content})
	}
	if len(entries) > maxReviewRecords {
		entries = append(entries[:reviewEdge:reviewEdge], entries[len(entries)-reviewEdge:]...)
	}
	return compactJSON(entries)
}

type qnaEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	QDate    string `json:"q_date"`
	Seller   string `json:"seller"`
}

func qnaData(pairs []types.QnAPair) (string, error) {
	if len(pairs) > maxQnARecords {
		pairs = pairs[:maxQnARecords]
	}
	entries := make([]qnaEntry, 0, len(pairs))
	for _, q := range pairs {
		entries = append(entries, qnaEntry{Question: q.Question, Answer: q.Answer, QDate: q.QDate, Seller: q.Seller})
	}
	return compactJSON(entries)
}

func compactJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode analysis data: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
