package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/IshaanNene/StoreScope/internal/types"
)

// Workbook sheet names.
const (
	SheetStory  = "스토리 분석"
	SheetReview = "리뷰 분석"
	SheetQnA    = "문의 분석"
)

type xlsxStyles struct {
	title, section, label, header, cell, wrap int
}

// sheet writes cells into one worksheet and keeps the first error.
type sheet struct {
	f    *excelize.File
	name string
	err  error
}

func (s *sheet) set(col, row int, v any, style int) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		s.err = err
		return
	}
	if err := s.f.SetCellValue(s.name, cell, v); err != nil {
		s.err = err
		return
	}
	if style != 0 {
		s.err = s.f.SetCellStyle(s.name, cell, cell, style)
	}
}

func (s *sheet) widths(widths ...float64) {
	for i, w := range widths {
		if s.err != nil {
			return
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			s.err = err
			return
		}
		s.err = s.f.SetColWidth(s.name, col, col, w)
	}
}

// lines writes text one line per row in column A and returns the next row.
func (s *sheet) lines(row int, text string) int {
	for _, line := range strings.Split(text, "\n") {
		s.set(1, row, line, 0)
		row++
	}
	return row
}

func writeXLSX(path string, r *types.Result, n *types.Narratives) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newXLSXStyles(f)
	if err != nil {
		return fmt.Errorf("create xlsx styles: %w", err)
	}
	if err := f.SetSheetName("Sheet1", SheetStory); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetReview); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetQnA); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if n == nil {
		n = &types.Narratives{}
	}
	for _, write := range []func() error{
		func() error { return storySheet(f, st, r, n) },
		func() error { return reviewSheet(f, st, r.Reviews, n) },
		func() error { return qnaSheet(f, st, r.QnA, n) },
	} {
		if err := write(); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	}
	f.SetActiveSheet(0)

	return writeFile(path, func(out *os.File) error {
		if _, err := f.WriteTo(out); err != nil {
			return fmt.Errorf("save xlsx: %w", err)
		}
		return nil
	})
}

func newXLSXStyles(f *excelize.File) (xlsxStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	defs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true, Size: 14}},
		{Font: &excelize.Font{Bold: true, Size: 12}},
		{Font: &excelize.Font{Bold: true}},
		{
			Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
			Border:    border,
		},
		{Border: border},
		{Border: border, Alignment: &excelize.Alignment{Vertical: "top", WrapText: true}},
	}
	ids := make([]int, len(defs))
	for i, d := range defs {
		id, err := f.NewStyle(d)
		if err != nil {
			return xlsxStyles{}, err
		}
		ids[i] = id
	}
	return xlsxStyles{title: ids[0], section: ids[1], label: ids[2], header: ids[3], cell: ids[4], wrap: ids[5]}, nil
}

func storySheet(f *excelize.File, st xlsxStyles, r *types.Result, n *types.Narratives) error {
	s := &sheet{f: f, name: SheetStory}
	s.set(1, 1, "상품 분석 리포트", st.title)
	if s.err == nil {
		s.err = f.MergeCell(SheetStory, "A1", "D1")
	}

	row := 3
	for _, kv := range productRows(&r.Product) {
		s.set(1, row, kv[0], st.label)
		s.set(2, row, kv[1], 0)
		row++
	}

	row++
	s.set(1, row, "스토리 플로우 분석", st.section)
	row = s.lines(row+1, sectionText(n, types.SectionStory))

	if full := sectionText(n, types.SectionFull); full != "" {
		row += 2
		s.set(1, row, "종합 리포트", st.section)
		s.lines(row+1, full)
	}
	s.widths(20, 60)
	return s.err
}

func reviewSheet(f *excelize.File, st xlsxStyles, reviews []types.ReviewRecord, n *types.Narratives) error {
	s := &sheet{f: f, name: SheetReview}
	for i, h := range []string{"번호", "별점", "작성자", "날짜", "내용", "도움"} {
		s.set(i+1, 1, h, st.header)
	}
	for i, rv := range reviews {
		row := i + 2
		content := rv.Content
		if rv.Headline != "" {
			content = "[" + rv.Headline + "] " + content
		}
		s.set(1, row, i+1, st.cell)
		if rv.Rating != nil {
			s.set(2, row, *rv.Rating, st.cell)
		} else {
			s.set(2, row, "", st.cell)
		}
		s.set(3, row, rv.Author, st.cell)
		s.set(4, row, rv.Date, st.cell)
		s.set(5, row, content, st.wrap)
		s.set(6, row, rv.Helpful, st.cell)
	}

	row := len(reviews) + 4
	s.set(1, row, "AI 리뷰 분석 결과", st.section)
	s.lines(row+1, sectionText(n, types.SectionReview))
	s.widths(8, 8, 12, 14, 60, 8)
	return s.err
}

func qnaSheet(f *excelize.File, st xlsxStyles, pairs []types.QnAPair, n *types.Narratives) error {
	s := &sheet{f: f, name: SheetQnA}
	for i, h := range []string{"번호", "질문", "답변", "질문일", "판매자"} {
		s.set(i+1, 1, h, st.header)
	}
	for i, q := range pairs {
		row := i + 2
		s.set(1, row, i+1, st.cell)
		s.set(2, row, q.Question, st.wrap)
		s.set(3, row, q.Answer, st.wrap)
		s.set(4, row, q.QDate, st.cell)
		s.set(5, row, q.Seller, st.cell)
	}

	row := len(pairs) + 4
	s.set(1, row, "AI Q&A 분석 결과", st.section)
	s.lines(row+1, sectionText(n, types.SectionQnA))
	s.widths(8, 40, 40, 14, 15)
	return s.err
}

// sectionText returns the narrative text, or the failure note when the
// section failed.
func sectionText(n *types.Narratives, s types.Section) string {
	if t := n.Get(s); t != "" {
		return t
	}
	if msg, ok := n.Errors[s]; ok {
		return "분석 실패: " + msg
	}
	return ""
}
