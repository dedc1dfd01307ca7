package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/IshaanNene/StoreScope/internal/types"
)

// utf8BOM lets spreadsheet tools detect the encoding of Korean text.
const utf8BOM = "\ufeff"

var (
	reviewHeaders = []string{"번호", "별점", "작성자", "날짜", "제목", "내용", "도움", "옵션"}
	qnaHeaders    = []string{"번호", "질문", "답변", "질문일", "답변일", "판매자", "비밀글"}
)

// writeCSV writes the review and Q&A tables. They hold no narrative text,
// so one pair is written per run regardless of providers.
func (r *Renderer) writeCSV(result *types.Result, platform string) []Outcome {
	tables := []struct {
		label string
		rows  func() [][]string
	}{
		{"reviews", func() [][]string { return reviewRows(result.Reviews) }},
		{"qna", func() [][]string { return qnaRows(result.QnA) }},
	}

	out := make([]Outcome, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(r.dir, fmt.Sprintf("%s_%s.csv", platform, t.label))
		err := writeFile(path, func(f *os.File) error { return writeTable(f, t.rows()) })
		if err != nil {
			err = &types.ExportError{Format: FormatCSV, Path: path, Err: err}
		}
		out = append(out, r.record(Outcome{Format: FormatCSV, Label: t.label, Path: path, Err: err}))
	}
	return out
}

func writeTable(f *os.File, rows [][]string) error {
	if _, err := f.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write CSV row: %w", err)
	}
	return nil
}

func reviewRows(reviews []types.ReviewRecord) [][]string {
	rows := [][]string{reviewHeaders}
	for i, rv := range reviews {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			ratingText(rv.Rating),
			rv.Author,
			rv.Date,
			rv.Headline,
			rv.Content,
			strconv.Itoa(rv.Helpful),
			rv.Option,
		})
	}
	return rows
}

func qnaRows(pairs []types.QnAPair) [][]string {
	rows := [][]string{qnaHeaders}
	for i, q := range pairs {
		secret := ""
		if q.Secret() {
			secret = "Y"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			q.Question,
			q.Answer,
			q.QDate,
			q.ADate,
			q.Seller,
			secret,
		})
	}
	return rows
}
