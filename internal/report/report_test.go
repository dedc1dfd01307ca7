package report

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/observability"
	"github.com/IshaanNene/StoreScope/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleResult() *types.Result {
	return &types.Result{
		Identity: &types.ProductIdentity{Platform: types.PlatformNaver, ProductID: "4821", StoreName: "shop"},
		Status:   types.StatusOK,
		Product: types.ProductRecord{
			ID:          "4821",
			URL:         "https://smartstore.naver.com/shop/products/4821",
			Title:       "이어폰 & 케이스",
			Price:       "129,000원",
			Rating:      types.Float(4.5),
			ReviewCount: types.Int(2),
		},
		Reviews: []types.ReviewRecord{
			{Rating: types.Float(5), Author: "kim***", Date: "2024-05-01", Headline: "최고", Content: "음질이 좋아요", Helpful: 3},
			{Rating: types.Float(3), Author: "lee***", Date: "2024-05-02", Content: "보통입니다"},
		},
		QnA: []types.QnAPair{
			{Question: "방수 되나요?", Answer: "IPX4 등급입니다.", QDate: "2024-04-01", Seller: "shop"},
		},
		StrategyYields: map[string]int{"reviews/api": 2, "qna/embedded": 1},
	}
}

func sampleNarratives() []*types.Narratives {
	claude := &types.Narratives{Provider: "claude", Story: "스토리", QnA: "문의"}
	claude.Fail(types.SectionReview, errors.New("timeout"))
	return []*types.Narratives{
		{Provider: "gpt", Model: "o4-mini", Story: "## 흐름\n- 후킹", Review: "## 강점\n**음질**", QnA: "방수 문의", Full: "종합"},
		claude,
	}
}

func newRenderer(t *testing.T, formats ...string) (*Renderer, string) {
	t.Helper()
	dir := t.TempDir()
	r := NewRenderer(&config.ReportConfig{OutputDir: dir, Formats: formats}, nil, testLogger)
	r.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return r, dir
}

func TestRenderAllFormats(t *testing.T) {
	r, dir := newRenderer(t, FormatJSON, FormatXLSX, FormatDOCX, FormatMarkdown, FormatCSV)
	m := observability.NewMetrics(testLogger)
	r.metrics = m

	out := r.Render(sampleResult(), sampleNarratives())
	require.Len(t, out, 10)
	assert.Empty(t, Failed(out))
	assert.EqualValues(t, 10, m.ExportsOK.Load())

	for _, name := range []string{
		"naver_analysis_raw_gpt.json",
		"naver_analysis_raw_claude.json",
		"naver_analysis_gpt.xlsx",
		"naver_analysis_claude.docx",
		"naver_analysis_gpt.md",
		"naver_reviews.csv",
		"naver_qna.csv",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	tmp, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmp)
}

func TestRawJSON(t *testing.T) {
	r, dir := newRenderer(t, FormatJSON)
	out := r.Render(sampleResult(), sampleNarratives())
	require.Len(t, out, 2)

	data, err := os.ReadFile(filepath.Join(dir, "naver_analysis_raw_claude.json"))
	require.NoError(t, err)

	var raw struct {
		Platform string `json:"platform"`
		Identity struct {
			ProductID string `json:"product_id"`
		} `json:"identity"`
		Product  types.ProductRecord `json:"product"`
		Reviews  []types.ReviewRecord
		QnA      []types.QnAPair `json:"qna"`
		Analysis struct {
			Provider string            `json:"provider"`
			Story    string            `json:"story"`
			Errors   map[string]string `json:"errors"`
		} `json:"analysis"`
		Summary     RawSummary `json:"summary"`
		GeneratedAt time.Time  `json:"generated_at"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "naver", raw.Platform)
	assert.Equal(t, "4821", raw.Identity.ProductID)
	assert.Equal(t, "이어폰 & 케이스", raw.Product.Title)
	assert.Len(t, raw.Reviews, 2)
	assert.Len(t, raw.QnA, 1)
	assert.Equal(t, "claude", raw.Analysis.Provider)
	assert.Equal(t, "스토리", raw.Analysis.Story)
	assert.Contains(t, raw.Analysis.Errors["review"], "timeout")
	assert.Equal(t, "리뷰 2건 수집 (5점: 1건 / 3점: 1건)", raw.Summary.Reviews)
	assert.True(t, raw.GeneratedAt.Equal(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)))
	assert.NotContains(t, string(data), `\u0026`)
}

func TestRawWithoutNarratives(t *testing.T) {
	res := sampleResult()
	res.Reviews = nil
	raw := NewRaw(res, &types.Narratives{Provider: DataLabel}, time.Now())
	assert.Nil(t, raw.Analysis)
	assert.NotNil(t, raw.Reviews)

	data, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reviews":[]`)
	assert.NotContains(t, string(data), `"analysis"`)
}

func TestXLSXSheets(t *testing.T) {
	r, dir := newRenderer(t, FormatXLSX)
	out := r.Render(sampleResult(), sampleNarratives()[:1])
	require.Len(t, out, 1)
	require.NoError(t, out[0].Err)

	f, err := excelize.OpenFile(filepath.Join(dir, "naver_analysis_gpt.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetStory, SheetReview, SheetQnA}, f.GetSheetList())

	cell := func(sheet, ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "상품 분석 리포트", cell(SheetStory, "A1"))
	assert.Equal(t, "상품명", cell(SheetStory, "A3"))
	assert.Equal(t, "이어폰 & 케이스", cell(SheetStory, "B3"))
	assert.Equal(t, "스토리 플로우 분석", cell(SheetStory, "A9"))
	assert.Equal(t, "## 흐름", cell(SheetStory, "A10"))
	assert.Equal(t, "- 후킹", cell(SheetStory, "A11"))
	assert.Equal(t, "종합 리포트", cell(SheetStory, "A14"))

	assert.Equal(t, "번호", cell(SheetReview, "A1"))
	assert.Equal(t, "도움", cell(SheetReview, "F1"))
	assert.Equal(t, "[최고] 음질이 좋아요", cell(SheetReview, "E2"))
	assert.Equal(t, "lee***", cell(SheetReview, "C3"))
	assert.Equal(t, "AI 리뷰 분석 결과", cell(SheetReview, "A6"))
	assert.Equal(t, "## 강점", cell(SheetReview, "A7"))

	assert.Equal(t, "판매자", cell(SheetQnA, "E1"))
	assert.Equal(t, "방수 되나요?", cell(SheetQnA, "B2"))
	assert.Equal(t, "AI Q&A 분석 결과", cell(SheetQnA, "A5"))
	assert.Equal(t, "방수 문의", cell(SheetQnA, "A6"))
}

func TestXLSXFailedSection(t *testing.T) {
	r, dir := newRenderer(t, FormatXLSX)
	out := r.Render(sampleResult(), sampleNarratives()[1:])
	require.NoError(t, out[0].Err)

	f, err := excelize.OpenFile(filepath.Join(dir, "naver_analysis_claude.xlsx"))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(SheetReview, "A7")
	require.NoError(t, err)
	assert.Equal(t, "분석 실패: timeout", v)
}

func TestDOCXPackage(t *testing.T) {
	r, dir := newRenderer(t, FormatDOCX)
	out := r.Render(sampleResult(), sampleNarratives()[:1])
	require.NoError(t, out[0].Err)

	zr, err := zip.OpenReader(filepath.Join(dir, "naver_analysis_gpt.docx"))
	require.NoError(t, err)
	defer zr.Close()

	parts := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		parts[f.Name] = string(b)
	}
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/styles.xml", "word/_rels/document.xml.rels"} {
		assert.Contains(t, parts, name)
	}

	doc := parts["word/document.xml"]
	assert.Contains(t, doc, "네이버 스마트스토어 상품 분석 리포트")
	assert.Contains(t, doc, "이어폰 &amp; 케이스")
	assert.Contains(t, doc, `<w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t xml:space="preserve">상세페이지 스토리 분석</w:t>`)
	assert.Contains(t, doc, `<w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t xml:space="preserve">흐름</w:t>`)
	assert.Contains(t, doc, "• 후킹")
	assert.Contains(t, doc, `<w:rPr><w:b/></w:rPr><w:t xml:space="preserve">음질</w:t>`)
	assert.Contains(t, doc, "리뷰 2건 수집")
}

func TestMarkdown(t *testing.T) {
	r, dir := newRenderer(t, FormatMarkdown)
	out := r.Render(sampleResult(), sampleNarratives())
	require.Empty(t, Failed(out))

	data, err := os.ReadFile(filepath.Join(dir, "naver_analysis_claude.md"))
	require.NoError(t, err)
	md := string(data)

	assert.True(t, strings.HasPrefix(md, "# StoreScope\n_네이버 스마트스토어 상품 분석 리포트_\n"))
	assert.Contains(t, md, "## 상품 기본 정보\n\n| 항목 | 값 |\n|---|---|\n| 상품명 | 이어폰 & 케이스 |")
	assert.Contains(t, md, "- 전체 상품 문의 1건, 확인답변 1건")
	assert.Contains(t, md, "## 리뷰 분석\n\n분석 실패: timeout")
	assert.NotContains(t, md, "## 종합 리포트")
}

func TestCSVTables(t *testing.T) {
	r, dir := newRenderer(t, FormatCSV)
	out := r.Render(sampleResult(), sampleNarratives())
	require.Len(t, out, 2, "csv tables are written once per run")

	data, err := os.ReadFile(filepath.Join(dir, "naver_reviews.csv"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), utf8BOM))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, reviewHeaders, rows[0])
	assert.Equal(t, []string{"1", "5", "kim***", "2024-05-01", "최고", "음질이 좋아요", "3", ""}, rows[1])

	data, err = os.ReadFile(filepath.Join(dir, "naver_qna.csv"))
	require.NoError(t, err)
	rows, err = csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "IPX4 등급입니다.", rows[1][2])
}

func TestRenderWithoutNarratives(t *testing.T) {
	r, dir := newRenderer(t, FormatJSON, FormatMarkdown)
	res := sampleResult()
	res.Identity.Platform = types.PlatformCoupang

	out := r.Render(res, nil)
	require.Len(t, out, 2)
	assert.Empty(t, Failed(out))
	assert.Equal(t, DataLabel, out[0].Label)
	assert.FileExists(t, filepath.Join(dir, "coupang_analysis_raw_data.json"))
	assert.FileExists(t, filepath.Join(dir, "coupang_analysis_data.md"))
}

func TestRenderFailuresArePerOutput(t *testing.T) {
	r, dir := newRenderer(t, FormatJSON, "pdf")
	out := r.Render(sampleResult(), sampleNarratives()[:1])
	require.Len(t, out, 2)
	assert.True(t, out[0].OK())
	assert.FileExists(t, filepath.Join(dir, "naver_analysis_raw_gpt.json"))

	var exportErr *types.ExportError
	require.ErrorAs(t, out[1].Err, &exportErr)
	assert.Equal(t, "pdf", exportErr.Format)
	assert.Len(t, Failed(out), 1)
}

func TestRenderUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	r := NewRenderer(&config.ReportConfig{OutputDir: filepath.Join(blocker, "out"), Formats: []string{FormatJSON, FormatXLSX}}, nil, testLogger)
	out := r.Render(sampleResult(), nil)
	require.Len(t, out, 2)
	for _, o := range out {
		var exportErr *types.ExportError
		assert.ErrorAs(t, o.Err, &exportErr)
	}
}

func TestSafeLabel(t *testing.T) {
	assert.Equal(t, "gpt-4o", SafeLabel("gpt-4o"))
	assert.Equal(t, "my_model", SafeLabel(" my model "))
	assert.Equal(t, "a_b", SafeLabel("a/../b"))
	assert.Equal(t, DataLabel, SafeLabel("혼합"))
}
