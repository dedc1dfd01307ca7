package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/StoreScope/internal/automation"
	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/fetcher"
	"github.com/IshaanNene/StoreScope/internal/pipeline"
	"github.com/IshaanNene/StoreScope/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// --- fakes ---

type fakeSession struct {
	page     *automation.StaticPage
	outcome  types.NavOutcome
	clears   bool
	launches int
	closes   int
	visited  []string
}

func (f *fakeSession) Launch(ctx context.Context) error { f.launches++; return nil }

func (f *fakeSession) Navigate(ctx context.Context, url string) types.NavOutcome {
	f.visited = append(f.visited, url)
	return f.outcome
}

func (f *fakeSession) NavigateWithFallback(ctx context.Context, primary, secondary string) types.NavOutcome {
	f.visited = append(f.visited, primary)
	return f.outcome
}

func (f *fakeSession) WaitForChallenge(ctx context.Context) bool { return f.clears }

func (f *fakeSession) HTTPClient(ctx context.Context, referer string) (*fetcher.Client, error) {
	return nil, errors.New("no api client in tests")
}

func (f *fakeSession) Page() automation.Page { return f.page }

func (f *fakeSession) Close() error { f.closes++; return nil }

type fakeReviews struct {
	name  string
	recs  []types.ReviewRecord
	err   error
	calls int
}

func (f *fakeReviews) Name() string { return f.name }

func (f *fakeReviews) Attempt(ctx context.Context, run *Run, sink Sink[types.ReviewRecord]) error {
	f.calls++
	for _, r := range f.recs {
		sink.Add(r)
	}
	return f.err
}

type fakeProduct struct {
	name string
	rec  *types.ProductRecord
}

func (f *fakeProduct) Name() string { return f.name }

func (f *fakeProduct) Extract(ctx context.Context, run *Run) (*types.ProductRecord, error) {
	return f.rec, nil
}

func reviews(n int, author string) []types.ReviewRecord {
	out := make([]types.ReviewRecord, n)
	for i := range out {
		out[i] = types.ReviewRecord{
			Rating:  types.Float(5),
			Author:  author,
			Content: fmt.Sprintf("review body number %d from %s", i, author),
		}
	}
	return out
}

func newTestRun(t *testing.T, rawURL string) *Run {
	t.Helper()
	id := &types.ProductIdentity{Platform: types.PlatformCoupang, ProductID: "12345678", CanonicalURL: rawURL}
	return NewRun(id, config.DefaultConfig(), &fakeSession{}, NewPacer(noSleep), nil, testLogger)
}

func reviewCollection(max int) *Collection[types.ReviewRecord] {
	return NewCollection(max, ReviewFingerprint(DefaultFingerprintPrefix), pipeline.Reviews(testLogger), nil)
}

// --- Collection ---

func TestCollectionDedupIdempotent(t *testing.T) {
	c := reviewCollection(0)
	rec := types.ReviewRecord{Author: "kim**", Content: "좋아요 좋아요 좋아요"}

	if !c.Add(rec) {
		t.Fatal("first add should be accepted")
	}
	if c.Add(rec) {
		t.Error("second add of the same record should be refused")
	}
	if c.Len() != 1 {
		t.Errorf("expected size 1, got %d", c.Len())
	}
	if _, dup := c.Stats(); dup != 1 {
		t.Errorf("expected 1 duplicate, got %d", dup)
	}
}

func TestDeduplicatorAdd(t *testing.T) {
	d := NewDeduplicator(4)
	if !d.Add("a") || !d.Add("b") {
		t.Fatal("fresh keys should be accepted")
	}
	if d.Add("a") {
		t.Error("repeated key should be refused")
	}
}

func TestFingerprintPrefixCountsRunes(t *testing.T) {
	head := strings.Repeat("가", DefaultFingerprintPrefix)
	c := reviewCollection(0)
	c.Add(types.ReviewRecord{Author: "a", Content: head + " 첫번째 꼬리"})
	c.Add(types.ReviewRecord{Author: "a", Content: head + " 두번째 꼬리"})
	c.Add(types.ReviewRecord{Author: "b", Content: head + " 첫번째 꼬리"})

	if c.Len() != 2 {
		t.Errorf("expected 2 records (same author and 50-rune prefix collapse), got %d", c.Len())
	}
}

func TestQnAFingerprint(t *testing.T) {
	c := NewCollection(0, QnAFingerprint(0), pipeline.QnA(testLogger), nil)
	c.Add(types.QnAPair{Question: "재입고 언제 되나요?"})
	c.Add(types.QnAPair{Question: "재입고 언제 되나요?", Answer: "다음주 예정입니다"})
	c.Add(types.QnAPair{Question: ""})

	items := c.Freeze()
	if len(items) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(items))
	}
	if items[0].Answered() {
		t.Error("first writer should win, leaving the question unanswered")
	}
	if c.Add(types.QnAPair{Question: "새 질문"}) {
		t.Error("frozen collection should refuse additions")
	}
}

func TestCollectionCap(t *testing.T) {
	c := reviewCollection(3)
	for _, r := range reviews(5, "a") {
		c.Add(r)
	}
	if c.Len() != 3 || !c.Full() {
		t.Errorf("expected a full collection of 3, got %d (full=%v)", c.Len(), c.Full())
	}
}

// --- Collect ---

func TestCollectShortCircuit(t *testing.T) {
	run := newTestRun(t, "https://www.coupang.com/vp/products/12345678")
	embedded := &fakeReviews{name: StrategyEmbedded, recs: reviews(6, "e")}
	api := &fakeReviews{name: StrategyAPI, recs: reviews(10, "api")}
	dom := &fakeReviews{name: StrategyDOM, recs: reviews(10, "dom")}

	coll := Collect(context.Background(), run, types.ContentReviews,
		[]Strategy[types.ReviewRecord]{embedded, api, dom}, reviewCollection(500), 5)

	if api.calls != 0 || dom.calls != 0 {
		t.Errorf("expected later strategies to be skipped, api=%d dom=%d", api.calls, dom.calls)
	}
	if coll.Len() != 6 {
		t.Errorf("expected 6 reviews, got %d", coll.Len())
	}
	if got := run.Yields()[types.YieldKey(types.ContentReviews, StrategyEmbedded)]; got != 6 {
		t.Errorf("expected embedded yield 6, got %d", got)
	}
}

func TestCollectContinuesBelowThreshold(t *testing.T) {
	run := newTestRun(t, "https://www.coupang.com/vp/products/12345678")
	embedded := &fakeReviews{name: StrategyEmbedded, recs: reviews(2, "e")}
	api := &fakeReviews{name: StrategyAPI, err: errors.New("HTTP 429")}
	dom := &fakeReviews{name: StrategyDOM, recs: append(reviews(2, "e"), reviews(3, "dom")...)}

	coll := Collect(context.Background(), run, types.ContentReviews,
		[]Strategy[types.ReviewRecord]{embedded, api, dom}, reviewCollection(500), 5)

	if api.calls != 1 || dom.calls != 1 {
		t.Fatalf("expected api and dom to run once, api=%d dom=%d", api.calls, dom.calls)
	}
	if coll.Len() != 5 {
		t.Errorf("expected 5 deduplicated reviews, got %d", coll.Len())
	}
	warnings := run.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "reviews/api") {
		t.Errorf("expected one api warning, got %v", warnings)
	}
	if run.Metrics.StrategyErrors.Load() != 1 {
		t.Errorf("expected 1 strategy error, got %d", run.Metrics.StrategyErrors.Load())
	}
}

func TestCollectExhaustedAndSkip(t *testing.T) {
	run := newTestRun(t, "https://www.coupang.com/vp/products/12345678")
	embedded := &fakeReviews{name: StrategyEmbedded, err: fmt.Errorf("%w: no page data", ErrSkip)}
	api := &fakeReviews{name: StrategyAPI, recs: reviews(2, "api"), err: ErrExhausted}
	legacy := &fakeReviews{name: StrategyLegacy, recs: reviews(10, "ui")}

	coll := Collect(context.Background(), run, types.ContentReviews,
		[]Strategy[types.ReviewRecord]{embedded, api, legacy}, reviewCollection(500), 5)

	if legacy.calls != 0 {
		t.Error("an exhausted source should end the cascade")
	}
	if coll.Len() != 2 {
		t.Errorf("expected 2 reviews, got %d", coll.Len())
	}
	if len(run.Warnings()) != 0 {
		t.Errorf("skips and exhaustion are not warnings, got %v", run.Warnings())
	}
}

func TestCollectProductFirstWriterWins(t *testing.T) {
	run := newTestRun(t, "https://www.coupang.com/vp/products/12345678")
	first := &fakeProduct{name: "embedded", rec: &types.ProductRecord{Title: "정식 상품명", Rating: types.Float(4.5)}}
	second := &fakeProduct{name: "legacy", rec: &types.ProductRecord{Title: "다른 이름", Price: "9,900원", ReviewCount: types.Int(120)}}

	rec := CollectProduct(context.Background(), run, []ProductStrategy{first, second})

	if rec.Title != "정식 상품명" || rec.Price != "9,900원" {
		t.Errorf("unexpected merge result %+v", rec)
	}
	if rec.ID != "12345678" {
		t.Errorf("expected the product id to default from the identity, got %q", rec.ID)
	}
	if run.ExpectedReviews() != 120 {
		t.Errorf("expected 120 expected reviews, got %d", run.ExpectedReviews())
	}
}

// --- PageWalk ---

func fullPage(size int) PageFunc[types.ReviewRecord] {
	return func(ctx context.Context, page int) ([]types.ReviewRecord, error) {
		return reviews(size, fmt.Sprintf("p%d", page)), nil
	}
}

func TestWalkPageCap(t *testing.T) {
	coll := reviewCollection(500)
	w := PageWalk[types.ReviewRecord]{MaxPages: 3}

	st, err := w.Walk(context.Background(), NewPacer(noSleep), coll, fullPage(10))
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if st.Pages != 3 || coll.Len() != 30 || st.Stop != StopPageCap {
		t.Errorf("expected 3 pages / 30 records / page cap, got %+v len=%d", st, coll.Len())
	}
}

func TestWalkResultCap(t *testing.T) {
	coll := reviewCollection(25)
	w := PageWalk[types.ReviewRecord]{MaxPages: 50}

	st, _ := w.Walk(context.Background(), NewPacer(noSleep), coll, fullPage(10))
	if coll.Len() != 25 || st.Stop != StopResultCap || st.Pages != 3 {
		t.Errorf("expected 25 records after 3 pages, got %+v len=%d", st, coll.Len())
	}
}

func TestWalkStopsOnEmptyAndError(t *testing.T) {
	sizes := []int{10, 10, 0, 10}
	fetch := func(ctx context.Context, page int) ([]types.ReviewRecord, error) {
		return reviews(sizes[page-1], fmt.Sprintf("p%d", page)), nil
	}
	coll := reviewCollection(500)
	st, err := PageWalk[types.ReviewRecord]{MaxPages: 50}.Walk(context.Background(), NewPacer(noSleep), coll, fetch)
	if err != nil || coll.Len() != 20 || st.Stop != StopEmpty {
		t.Errorf("expected 20 records and an empty-page stop, got %+v len=%d err=%v", st, coll.Len(), err)
	}

	failing := func(ctx context.Context, page int) ([]types.ReviewRecord, error) {
		if page == 2 {
			return nil, &types.FetchError{URL: "x", StatusCode: 403, Err: errors.New("forbidden")}
		}
		return reviews(10, "f"), nil
	}
	st, err = PageWalk[types.ReviewRecord]{MaxPages: 50}.Walk(context.Background(), NewPacer(noSleep), reviewCollection(500), failing)
	var fe *types.FetchError
	if !errors.As(err, &fe) || st.Pages != 1 || st.Stop != StopError {
		t.Errorf("expected a fetch error after 1 page, got %+v err=%v", st, err)
	}
}

func TestWalkEmptyLimit(t *testing.T) {
	// The second scan of page 2 races the render and comes back empty.
	scans := 0
	scan := func(ctx context.Context, page int) ([]types.ReviewRecord, error) {
		scans++
		if scans == 2 {
			return nil, nil
		}
		if page > 3 {
			return nil, nil
		}
		return reviews(5, fmt.Sprintf("p%d", page)), nil
	}
	advance := func(ctx context.Context, page int) (bool, error) { return true, nil }

	coll := reviewCollection(500)
	w := PageWalk[types.ReviewRecord]{MaxPages: 10, EmptyLimit: 3, Advance: advance}
	st, err := w.Walk(context.Background(), NewPacer(noSleep), coll, scan)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if coll.Len() != 15 || st.Pages != 3 || st.Stop != StopEmpty {
		t.Errorf("expected 3 pages of 5 despite one empty read, got %+v len=%d", st, coll.Len())
	}

	scans = 0
	coll = reviewCollection(500)
	w.EmptyLimit = 1
	st, _ = w.Walk(context.Background(), NewPacer(noSleep), coll, scan)
	if coll.Len() != 5 || st.Stop != StopEmpty {
		t.Errorf("limit 1 should stop at the first empty read, got %+v len=%d", st, coll.Len())
	}
}

func TestWalkNoNextPageAndTarget(t *testing.T) {
	advance := func(ctx context.Context, page int) (bool, error) { return page <= 2, nil }
	coll := reviewCollection(500)
	st, _ := PageWalk[types.ReviewRecord]{MaxPages: 10, Advance: advance}.Walk(context.Background(), NewPacer(noSleep), coll, fullPage(4))
	if st.Stop != StopNoNext || st.Pages != 2 {
		t.Errorf("expected to stop when page 3 is missing, got %+v", st)
	}

	coll = reviewCollection(500)
	st, _ = PageWalk[types.ReviewRecord]{MaxPages: 10, Target: 15}.Walk(context.Background(), NewPacer(noSleep), coll, fullPage(10))
	if st.Stop != StopTarget || coll.Len() != 20 {
		t.Errorf("expected to stop once 15 were reached, got %+v len=%d", st, coll.Len())
	}
}

func TestWalkHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := PageWalk[types.ReviewRecord]{MaxPages: 10}.Walk(ctx, NewPacer(fetcher.Sleep), reviewCollection(500), fullPage(10))
	if !errors.Is(err, context.Canceled) || st.Pages != 1 {
		t.Errorf("expected cancellation after the first page, got %+v err=%v", st, err)
	}
}

func TestPacerDrawsWithinRange(t *testing.T) {
	var got []time.Duration
	p := NewPacer(func(ctx context.Context, d time.Duration) error {
		got = append(got, d)
		return nil
	})
	r := config.DelayRange{Min: 1800 * time.Millisecond, Max: 2500 * time.Millisecond}
	for i := 0; i < 50; i++ {
		p.Wait(context.Background(), r)
	}
	for _, d := range got {
		if d < r.Min || d > r.Max {
			t.Fatalf("delay %v outside [%v, %v]", d, r.Min, r.Max)
		}
	}
}

// --- Registry ---

func TestRegistryPlanOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(types.PlatformNaver, StrategyEmbedded, StrategySet{
		Product: []ProductStrategy{&fakeProduct{name: "embedded"}},
		Reviews: &fakeReviews{name: StrategyEmbedded},
	})
	reg.Register(types.PlatformNaver, StrategyDOM, StrategySet{Reviews: &fakeReviews{name: StrategyDOM}})

	plan, unknown := reg.Plan(types.PlatformNaver, []string{StrategyDOM, "bogus", StrategyEmbedded, StrategyDOM})
	if len(plan.Reviews) != 2 || plan.Reviews[0].Name() != StrategyDOM || plan.Reviews[1].Name() != StrategyEmbedded {
		t.Errorf("unexpected review plan %v", plan.Reviews)
	}
	if len(plan.Product) != 1 || len(plan.QnA) != 0 {
		t.Errorf("unexpected plan %+v", plan)
	}
	if len(unknown) != 1 || unknown[0] != "bogus" {
		t.Errorf("expected bogus to be unknown, got %v", unknown)
	}
	if names := reg.Names(types.PlatformNaver); len(names) != 2 || names[0] != StrategyDOM {
		t.Errorf("unexpected names %v", names)
	}
}

// --- Engine ---

func newTestEngine(t *testing.T, sess *fakeSession, reg *Registry) (*Engine, *int) {
	t.Helper()
	opened := 0
	factory := func(ctx context.Context, platform types.Platform) (fetcher.Navigable, error) {
		opened++
		return sess, nil
	}
	if reg == nil {
		reg = NewRegistry()
	}
	return New(config.DefaultConfig(), reg, factory, testLogger, WithSleep(noSleep)), &opened
}

func TestRunInvalidURLNeverLaunches(t *testing.T) {
	sess := &fakeSession{outcome: types.NavSuccess}
	e, opened := newTestEngine(t, sess, nil)

	_, err := e.Run(context.Background(), "https://www.coupang.com/np/search?q=shoes")
	var invalid *types.InvalidURLError
	if !errors.As(err, &invalid) || !errors.Is(err, types.ErrInvalidURL) {
		t.Fatalf("expected InvalidURLError, got %v", err)
	}
	if *opened != 0 || sess.launches != 0 {
		t.Errorf("expected no session, opened=%d launches=%d", *opened, sess.launches)
	}
}

func TestRunChallengeReturnsStatus(t *testing.T) {
	page, _ := automation.NewStaticPage("https://smartstore.naver.com/shop/products/1", "<html><title>보안 확인</title></html>")
	sess := &fakeSession{page: page, outcome: types.NavChallenge}
	reviewsStrategy := &fakeReviews{name: StrategyDOM, recs: reviews(3, "x")}
	reg := NewRegistry()
	reg.Register(types.PlatformNaver, StrategyDOM, StrategySet{Reviews: reviewsStrategy})
	e, _ := newTestEngine(t, sess, reg)

	res, err := e.Run(context.Background(), "https://smartstore.naver.com/shop/products/1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Status != types.StatusChallenge {
		t.Errorf("expected status challenge, got %s", res.Status)
	}
	if len(res.Reviews) != 0 || len(res.QnA) != 0 || reviewsStrategy.calls != 0 {
		t.Errorf("expected no collection, got %d reviews", len(res.Reviews))
	}
	if sess.closes != 1 {
		t.Errorf("expected the session to be closed once, got %d", sess.closes)
	}
	if e.Metrics().RunsChallenge.Load() != 1 {
		t.Error("expected the challenge to be counted")
	}
}

func TestRunChallengeClearedContinues(t *testing.T) {
	page, _ := automation.NewStaticPage("https://smartstore.naver.com/shop/products/1", "<html><body>ok</body></html>")
	sess := &fakeSession{page: page, outcome: types.NavChallenge, clears: true}
	reg := NewRegistry()
	reg.Register(types.PlatformNaver, StrategyDOM, StrategySet{Reviews: &fakeReviews{name: StrategyDOM, recs: reviews(3, "x")}})
	e, _ := newTestEngine(t, sess, reg)

	res, err := e.Run(context.Background(), "https://smartstore.naver.com/shop/products/1")
	if err != nil || res.Status != types.StatusOK || len(res.Reviews) != 3 {
		t.Fatalf("expected an ok run with 3 reviews, got %+v err=%v", res, err)
	}
}

func TestRunCoupangNavigatesPageURL(t *testing.T) {
	page, _ := automation.NewStaticPage("about:blank", "<html><body></body></html>")
	sess := &fakeSession{page: page, outcome: types.NavBlocked}
	e, _ := newTestEngine(t, sess, nil)

	res, err := e.Run(context.Background(), "https://www.coupang.com/vp/products/12345678?itemId=111&vendorItemId=222&q=x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != types.StatusBlocked {
		t.Errorf("expected blocked, got %s", res.Status)
	}
	if res.Reviews == nil || res.QnA == nil {
		t.Errorf("blocked runs should carry empty collections, got reviews=%v qna=%v", res.Reviews, res.QnA)
	}
	want := "https://www.coupang.com/vp/products/12345678?itemId=111&vendorItemId=222"
	if len(sess.visited) != 1 || sess.visited[0] != want {
		t.Errorf("expected a visit to %s, got %v", want, sess.visited)
	}
}

func TestScopeFor(t *testing.T) {
	if s := ScopeFor(config.SectionConfig{Story: true}); s.Reviews || s.QnA {
		t.Errorf("story alone needs no reviews or Q&A, got %+v", s)
	}
	if s := ScopeFor(config.SectionConfig{Full: true}); s != FullScope {
		t.Errorf("full should collect everything, got %+v", s)
	}
}

// --- Summaries ---

func TestSummaries(t *testing.T) {
	rs := []types.ReviewRecord{
		{Rating: types.Float(5), Author: "a"},
		{Rating: types.Float(4.6), Author: "b"},
		{Rating: types.Float(3), Author: "c"},
		{Author: "d"},
	}
	if got, want := ReviewSummary(rs), "리뷰 4건 수집 (5점: 2건 / 3점: 1건)"; got != want {
		t.Errorf("ReviewSummary = %q, want %q", got, want)
	}
	if got := ReviewSummary(nil); got != "리뷰 0건 수집" {
		t.Errorf("empty summary = %q", got)
	}

	qs := []types.QnAPair{
		{Question: "배송 언제 되나요", Answer: "내일 출고됩니다"},
		{Question: "사이즈 문의", Answer: ""},
		{Question: types.SecretQuestion, Answer: types.AnsweredMarker, IsSecret: true},
	}
	c := CountQnA(qs)
	if c.Total != 3 || c.Answered != 1 || c.Marked != 1 || c.Unanswered != 1 || c.Secret != 1 {
		t.Errorf("unexpected counts %+v", c)
	}
	if got, want := QnASummary(qs), "전체 상품 문의 3건, 비밀글 1건, 확인답변 1건"; got != want {
		t.Errorf("QnASummary = %q, want %q", got, want)
	}
}
