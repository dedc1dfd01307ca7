package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/types"
)

type blockKind int

const (
	blockTitle blockKind = iota
	blockSubtitle
	blockHeading
	blockParagraph
	blockBullet
	blockBold
	blockBlank
	blockTable
)

// block is one element of a rendered document. docx and Markdown are
// both written from the same block list.
type block struct {
	kind  blockKind
	level int
	text  string
	rows  [][2]string
}

// sectionTitles orders the narrative sections of a document.
var sectionTitles = []struct {
	section types.Section
	title   string
}{
	{types.SectionStory, "상세페이지 스토리 분석"},
	{types.SectionReview, "리뷰 분석"},
	{types.SectionQnA, "상품문의(Q&A) 분석"},
	{types.SectionFull, "종합 리포트"},
}

func buildDocument(r *types.Result, n *types.Narratives) []block {
	doc := []block{
		{kind: blockTitle, text: "StoreScope"},
		{kind: blockSubtitle, text: platformTitle(r)},
		{kind: blockBlank},
		{kind: blockHeading, level: 1, text: "상품 기본 정보"},
		{kind: blockTable, rows: productRows(&r.Product)},
		{kind: blockBlank},
	}

	sum := engine.Summarize(r)
	doc = append(doc,
		block{kind: blockHeading, level: 1, text: "수집 요약"},
		block{kind: blockBullet, text: sum.Reviews},
		block{kind: blockBullet, text: sum.QnA},
	)
	for _, w := range r.Warnings {
		doc = append(doc, block{kind: blockBullet, text: "경고: " + w})
	}

	if n == nil {
		return doc
	}
	for _, s := range sectionTitles {
		text := n.Get(s.section)
		if msg, failed := n.Errors[s.section]; failed && text == "" {
			doc = append(doc,
				block{kind: blockHeading, level: 1, text: s.title},
				block{kind: blockParagraph, text: "분석 실패: " + msg},
			)
			continue
		}
		if text == "" {
			continue
		}
		doc = append(doc, block{kind: blockHeading, level: 1, text: s.title})
		doc = append(doc, markdownBlocks(text)...)
	}
	return doc
}

func productRows(p *types.ProductRecord) [][2]string {
	rating, count := "", ""
	if p.Rating != nil {
		rating = strconv.FormatFloat(*p.Rating, 'f', -1, 64)
	}
	if p.ReviewCount != nil {
		count = strconv.Itoa(*p.ReviewCount)
	}
	return [][2]string{
		{"상품명", p.Title},
		{"가격", p.Price},
		{"평점", rating},
		{"리뷰 수", count},
		{"URL", p.URL},
	}
}

// markdownBlocks converts generated Markdown into blocks. Tables are kept
// as plain paragraphs.
func markdownBlocks(text string) []block {
	var out []block
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			out = append(out, block{kind: blockBlank})
		case strings.HasPrefix(line, "### "):
			out = append(out, block{kind: blockHeading, level: 3, text: line[4:]})
		case strings.HasPrefix(line, "## "):
			out = append(out, block{kind: blockHeading, level: 2, text: line[3:]})
		case strings.HasPrefix(line, "# "):
			out = append(out, block{kind: blockHeading, level: 1, text: line[2:]})
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			out = append(out, block{kind: blockBullet, text: line[2:]})
		case len(line) > 4 && strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**"):
			out = append(out, block{kind: blockBold, text: strings.Trim(line, "*")})
		default:
			out = append(out, block{kind: blockParagraph, text: line})
		}
	}
	return out
}

func ratingText(r *float64) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%g", *r)
}
