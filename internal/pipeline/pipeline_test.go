package pipeline

import (
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/StoreScope/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestPipelineOrderAndDrop(t *testing.T) {
	var order []string
	p := New[int](testLogger)
	p.Use(Func[int]{Label: "double", Fn: func(v int) (int, bool) {
		order = append(order, "double")
		return v * 2, true
	}})
	p.Use(Func[int]{Label: "odd_only", Fn: func(v int) (int, bool) {
		order = append(order, "odd_only")
		return v, v%2 == 1
	}})
	p.Use(Func[int]{Label: "never", Fn: func(v int) (int, bool) {
		order = append(order, "never")
		return v, true
	}})

	if _, ok := p.Process(3); ok {
		t.Fatal("expected the record to be dropped")
	}
	if len(order) != 2 || order[0] != "double" || order[1] != "odd_only" {
		t.Errorf("unexpected stage order %v", order)
	}
	if p.Len() != 3 {
		t.Errorf("expected 3 middleware, got %d", p.Len())
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-01-15T10:22:33.000+09:00", "2024-01-15"},
		{"2024.01.15.", "2024-01-15"},
		{"2024. 01. 15.", "2024-01-15"},
		{"24.01.15.", "2024-01-15"},
		{"2024/01/15", "2024-01-15"},
		{"2024-01-15", "2024-01-15"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReviewPipeline(t *testing.T) {
	p := Reviews(testLogger)

	rec, ok := p.Process(types.ReviewRecord{
		Rating:  types.Float(4.04),
		Author:  "  kim**  ",
		Date:    "2024-03-01T09:00:00",
		Content: "배송 빨라요<br/>포장도 &amp; 좋아요",
		Helpful: -2,
	})
	if !ok {
		t.Fatal("expected the review to pass")
	}
	if rec.Author != "kim**" {
		t.Errorf("author = %q", rec.Author)
	}
	if rec.Date != "2024-03-01" {
		t.Errorf("date = %q", rec.Date)
	}
	if rec.Content != "배송 빨라요\n포장도 & 좋아요" {
		t.Errorf("content = %q", rec.Content)
	}
	if rec.Rating == nil || *rec.Rating != 4.0 {
		t.Errorf("rating = %v", rec.Rating)
	}
	if rec.Helpful != 0 {
		t.Errorf("helpful = %d", rec.Helpful)
	}
}

func TestRatingBounds(t *testing.T) {
	m := &RatingBoundsMiddleware{}
	for _, v := range []float64{0, 0.5, 5.5, 100} {
		rec, ok := m.Process(types.ReviewRecord{Rating: types.Float(v), Author: "a"})
		if !ok {
			t.Fatalf("rating %v: record dropped", v)
		}
		if rec.Rating != nil {
			t.Errorf("rating %v should be cleared, got %v", v, *rec.Rating)
		}
	}
	rec, _ := m.Process(types.ReviewRecord{Rating: types.Float(1), Author: "a"})
	if rec.Rating == nil || *rec.Rating != 1 {
		t.Errorf("rating 1 should be kept")
	}
}

func TestEmptyReviewDropped(t *testing.T) {
	p := Reviews(testLogger)
	if _, ok := p.Process(types.ReviewRecord{Rating: types.Float(5), Date: "2024-01-01"}); ok {
		t.Error("review without author and content should be dropped")
	}
	if _, ok := p.Process(types.ReviewRecord{Author: "lee**"}); !ok {
		t.Error("review with only an author should be kept")
	}
	if _, ok := p.Process(types.ReviewRecord{Author: "<b></b>", Content: " <p> </p> "}); ok {
		t.Error("review with markup-only text should be dropped")
	}
}

func TestQnAPipeline(t *testing.T) {
	p := QnA(testLogger)

	q, ok := p.Process(types.QnAPair{
		Question: "  사이즈 문의<br>드립니다 ",
		QDate:    "2024.02.03.",
	})
	if !ok {
		t.Fatal("unanswered question should be kept")
	}
	if q.Question != "사이즈 문의\n드립니다" {
		t.Errorf("question = %q", q.Question)
	}
	if q.QDate != "2024-02-03" {
		t.Errorf("q_date = %q", q.QDate)
	}
	if q.Answered() {
		t.Error("question should be unanswered")
	}

	if _, ok := p.Process(types.QnAPair{Answer: "네"}); ok {
		t.Error("pair without a question should be dropped")
	}
}

func BenchmarkReviewPipeline(b *testing.B) {
	p := Reviews(testLogger)
	rec := types.ReviewRecord{
		Rating:  types.Float(4.5),
		Author:  "park**",
		Date:    "2024-01-15T10:00:00",
		Content: "<p>정말 좋아요</p> 재구매 의사 있습니다",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Process(rec)
	}
}
