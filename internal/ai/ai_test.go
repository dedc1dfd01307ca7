package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/observability"
	"github.com/IshaanNene/StoreScope/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
	return m
}

// imageServer serves /ok.png and 404s everything else over TLS so the
// URLs survive https sanitizing.
func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, pc config.ProviderConfig, images *httptest.Server) *LLMClient {
	t.Helper()
	var opts []ClientOption
	if images != nil {
		opts = append(opts, WithImageFetcher(NewImageFetcher(images.Client(), 0, testLogger)))
	}
	c, err := NewLLMClient(pc, testLogger, opts...)
	require.NoError(t, err)
	return c
}

func TestParseProvider(t *testing.T) {
	for in, want := range map[string]Provider{
		"openai": ProviderOpenAI, "Claude": ProviderAnthropic, "anthropic": ProviderAnthropic,
		" ollama ": ProviderOllama, "custom": ProviderCustom,
	} {
		p, err := ParseProvider(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, p, in)
	}
	_, err := ParseProvider("gemini")
	assert.Error(t, err)
}

func TestValidateAPIKey(t *testing.T) {
	assert.ErrorIs(t, ValidateAPIKey(ProviderOpenAI, ""), ErrNoAPIKey)
	assert.Error(t, ValidateAPIKey(ProviderOpenAI, "pk-123"))
	assert.NoError(t, ValidateAPIKey(ProviderOpenAI, "sk-123"))

	assert.ErrorIs(t, ValidateAPIKey(ProviderAnthropic, "  "), ErrNoAPIKey)
	assert.Error(t, ValidateAPIKey(ProviderAnthropic, "sk-123"))
	assert.NoError(t, ValidateAPIKey(ProviderAnthropic, "sk-ant-123"))

	assert.NoError(t, ValidateAPIKey(ProviderOllama, ""))
	assert.NoError(t, ValidateAPIKey(ProviderCustom, ""))
}

func TestNewLLMClientErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewLLMClient(config.ProviderConfig{Provider: "openai"}, testLogger)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = NewLLMClient(config.ProviderConfig{Provider: "custom"}, testLogger)
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewLLMClient(config.ProviderConfig{Provider: "palm"}, testLogger)
	assert.Error(t, err)
}

func TestNewLLMClientDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	c, err := NewLLMClient(config.ProviderConfig{Provider: "claude"}, testLogger)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Label())
	assert.Equal(t, defaultAnthropicModel, c.Model())
	assert.Equal(t, "sk-ant-env", c.cfg.APIKey)
}

func TestSanitizeImageURLs(t *testing.T) {
	got := SanitizeImageURLs([]string{
		"//img.example.com/a.jpg",
		"http://img.example.com/b.jpg",
		"https://img.example.com/a.jpg",
		"data:image/png;base64,AAAA",
		"ftp://img.example.com/c.jpg",
		"",
	}, 10)
	assert.Equal(t, []string{"https://img.example.com/a.jpg", "https://img.example.com/b.jpg"}, got)

	many := make([]string, 15)
	for i := range many {
		many[i] = fmt.Sprintf("https://img.example.com/%d.jpg", i)
	}
	assert.Len(t, SanitizeImageURLs(many, 0), DefaultMaxImages)
	assert.Len(t, SanitizeImageURLs(many, 3), 3)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "image/png", mediaType("image/png; charset=binary", "https://x/a.jpg"))
	assert.Equal(t, "image/webp", mediaType("application/octet-stream", "https://x/a.WEBP?w=100"))
	assert.Equal(t, "image/gif", mediaType("", "https://x/a.gif"))
	assert.Equal(t, "image/jpeg", mediaType("image/jpg", "https://x/a"))
	assert.Equal(t, "image/jpeg", mediaType("", "https://x/a"))
}

func TestImageFetcher(t *testing.T) {
	srv := imageServer(t)
	f := NewImageFetcher(srv.Client(), 100, testLogger)

	imgs := f.FetchAll(context.Background(), []string{srv.URL + "/ok.png", srv.URL + "/missing.jpg"})
	require.Len(t, imgs, 2)
	require.NotNil(t, imgs[0])
	assert.Nil(t, imgs[1])
	assert.Equal(t, "image/png", imgs[0].MediaType)
	assert.True(t, strings.HasPrefix(imgs[0].DataURI(), "data:image/png;base64,"))
}

func TestOpenAISummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body := decodeBody(t, r)
		assert.Equal(t, "o4-mini", body["model"])
		assert.EqualValues(t, 1500, body["max_completion_tokens"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "developer", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "시스템", msgs[0].(map[string]any)["content"])
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"  분석 결과  "}}]}`)
	}))
	defer srv.Close()

	c := newClient(t, config.ProviderConfig{Provider: "openai", APIKey: "sk-test", Endpoint: srv.URL + "/v1"}, nil)
	out, err := c.Summarize(context.Background(), "시스템", "본문", 1500)
	require.NoError(t, err)
	assert.Equal(t, "분석 결과", out)
}

func TestOpenAIHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newClient(t, config.ProviderConfig{Provider: "openai", APIKey: "sk-test", Endpoint: srv.URL}, nil)
	_, err := c.Summarize(context.Background(), "s", "t", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
}

func TestOpenAIImagesFallBackToURL(t *testing.T) {
	images := imageServer(t)
	okURL, missingURL := images.URL+"/ok.png", images.URL+"/missing.jpg"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 1)
		parts := msgs[0].(map[string]any)["content"].([]any)
		require.Len(t, parts, 3)
		assert.Equal(t, "프롬프트", parts[0].(map[string]any)["text"])
		first := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		second := parts[2].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		assert.True(t, strings.HasPrefix(first, "data:image/png;base64,"))
		assert.Equal(t, missingURL, second)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := newClient(t, config.ProviderConfig{Provider: "openai", APIKey: "sk-test", Endpoint: srv.URL}, images)
	out, err := c.SummarizeWithImages(context.Background(), "프롬프트", []string{okURL, missingURL}, 100)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestOpenAINoUsableURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msgs := decodeBody(t, r)["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, analystSystemPrompt, msgs[0].(map[string]any)["content"])
		assert.Equal(t, "프롬프트", msgs[1].(map[string]any)["content"])
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"text only"}}]}`)
	}))
	defer srv.Close()

	c := newClient(t, config.ProviderConfig{Provider: "openai", APIKey: "sk-test", Endpoint: srv.URL}, nil)
	out, err := c.SummarizeWithImages(context.Background(), "프롬프트", []string{"ftp://x/a.jpg"}, 100)
	require.NoError(t, err)
	assert.Equal(t, "text only", out)
}

func TestAnthropicWithImages(t *testing.T) {
	images := imageServer(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		body := decodeBody(t, r)
		assert.NotContains(t, body, "system")
		parts := body["messages"].([]any)[0].(map[string]any)["content"].([]any)
		require.Len(t, parts, 2)
		src := parts[1].(map[string]any)["source"].(map[string]any)
		assert.Equal(t, "base64", src["type"])
		assert.Equal(t, "image/png", src["media_type"])
		assert.NotEmpty(t, src["data"])
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"스토리"}]}`)
	}))
	defer srv.Close()

	c := newClient(t, config.ProviderConfig{Provider: "anthropic", APIKey: "sk-ant-test", Endpoint: srv.URL}, images)
	out, err := c.SummarizeWithImages(context.Background(), "프롬프트", []string{images.URL + "/ok.png", images.URL + "/gone.png"}, 100)
	require.NoError(t, err)
	assert.Equal(t, "스토리", out)
}

func TestAnthropicAllDownloadsFail(t *testing.T) {
	images := imageServer(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "프롬프트", body["system"])
		msg := body["messages"].([]any)[0].(map[string]any)
		assert.Equal(t, downloadFailedNote, msg["content"])
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"텍스트 분석"}]}`)
	}))
	defer srv.Close()

	c := newClient(t, config.ProviderConfig{Provider: "anthropic", APIKey: "sk-ant-test", Endpoint: srv.URL}, images)
	out, err := c.SummarizeWithImages(context.Background(), "프롬프트", []string{images.URL + "/gone.png"}, 100)
	require.NoError(t, err)
	assert.Equal(t, "텍스트 분석", out)
}

func TestOllamaSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, "llama3", body["model"])
		assert.Equal(t, "sys", body["system"])
		assert.EqualValues(t, 300, body["options"].(map[string]any)["num_predict"])
		_, _ = io.WriteString(w, `{"response":"로컬 결과","done":true}`)
	}))
	defer srv.Close()

	c := newClient(t, config.ProviderConfig{Provider: "ollama", Model: "llama3", Endpoint: srv.URL}, nil)
	out, err := c.Summarize(context.Background(), "sys", "text", 300)
	require.NoError(t, err)
	assert.Equal(t, "로컬 결과", out)
}

func TestCustomSummarize(t *testing.T) {
	var mu sync.Mutex
	replies := []string{`{"text":"wrapped"}`, "plain reply"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "text", body["prompt"])
		mu.Lock()
		reply := replies[0]
		replies = replies[1:]
		mu.Unlock()
		_, _ = io.WriteString(w, reply)
	}))
	defer srv.Close()

	c := newClient(t, config.ProviderConfig{Provider: "custom", Label: "inhouse", Endpoint: srv.URL}, nil)
	assert.Equal(t, "inhouse", c.Label())

	out, err := c.Summarize(context.Background(), "sys", "text", 10)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", out)

	out, err = c.Summarize(context.Background(), "sys", "text", 10)
	require.NoError(t, err)
	assert.Equal(t, "plain reply", out)
}

type genCall struct {
	system    string
	text      string
	images    []string
	maxTokens int
}

// fakeGen answers "<label>:<maxTokens>" and fails calls whose system
// prompt equals failOn.
type fakeGen struct {
	label  string
	failOn string

	mu    sync.Mutex
	calls []genCall
}

func (f *fakeGen) Label() string { return f.label }
func (f *fakeGen) Model() string { return "fake-1" }

func (f *fakeGen) Summarize(ctx context.Context, system, text string, maxTokens int) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, genCall{system: system, text: text, maxTokens: maxTokens})
	f.mu.Unlock()
	if f.failOn != "" && system == f.failOn {
		return "", errors.New("upstream unavailable")
	}
	return fmt.Sprintf("%s:%d", f.label, maxTokens), nil
}

func (f *fakeGen) SummarizeWithImages(ctx context.Context, prompt string, urls []string, maxTokens int) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, genCall{text: prompt, images: urls, maxTokens: maxTokens})
	f.mu.Unlock()
	return fmt.Sprintf("%s:%d", f.label, maxTokens), nil
}

var testTokens = config.TokenConfig{Story: 1, Review: 2, QnA: 3, Full: 4}

func reviewsN(n int) []types.ReviewRecord {
	out := make([]types.ReviewRecord, n)
	for i := range out {
		out[i] = types.ReviewRecord{Rating: types.Float(float64(5 - i%2)), Date: "2024-05-01", Content: fmt.Sprintf("리뷰-%03d", i)}
	}
	return out
}

func TestStoryTextOnly(t *testing.T) {
	g := &fakeGen{label: "a"}
	a := NewAnalyzer(g, testTokens, testLogger)

	_, err := a.Story(context.Background(), &types.ProductRecord{Title: "이어폰", Price: "129,000원", Rating: types.Float(4.5), ReviewCount: types.Int(12), Specifications: []string{"색상: 화이트", "무게: 5g"}})
	require.NoError(t, err)
	require.Len(t, g.calls, 1)
	assert.Equal(t, storyPrompt, g.calls[0].system)
	assert.Equal(t, "## 상품 정보\n- 상품명: 이어폰\n- 가격: 129,000원\n- 평점: 4.5\n- 리뷰 수: 12건\n- 스펙: 색상: 화이트, 무게: 5g", g.calls[0].text)

	g.calls = nil
	_, err = a.Story(context.Background(), &types.ProductRecord{})
	require.NoError(t, err)
	assert.Equal(t, "## 상품 정보\n"+noProductText, g.calls[0].text)
}

func TestStoryWithImages(t *testing.T) {
	g := &fakeGen{label: "a"}
	a := NewAnalyzer(g, testTokens, testLogger)

	_, err := a.Story(context.Background(), &types.ProductRecord{Title: "이어폰", DetailImageURLs: []string{"https://img/1.jpg"}})
	require.NoError(t, err)
	require.Len(t, g.calls, 1)
	assert.Equal(t, []string{"https://img/1.jpg"}, g.calls[0].images)
	assert.True(t, strings.HasPrefix(g.calls[0].text, storyPrompt))
	assert.Contains(t, g.calls[0].text, "## 상품 기본 정보\n- 상품명: 이어폰\n\n아래 상세페이지 이미지들을")
	assert.Equal(t, 1, g.calls[0].maxTokens)
}

func TestReviewsEmpty(t *testing.T) {
	g := &fakeGen{label: "a"}
	out, err := NewAnalyzer(g, testTokens, testLogger).Reviews(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, noReviewsText, out)
	assert.Empty(t, g.calls)
}

func TestReviewsStatsAndSampling(t *testing.T) {
	g := &fakeGen{label: "a"}
	reviews := reviewsN(120)
	reviews[0].Headline = "최고"
	reviews[1].Rating = nil

	_, err := NewAnalyzer(g, testTokens, testLogger).Reviews(context.Background(), reviews)
	require.NoError(t, err)
	require.Len(t, g.calls, 1)
	text := g.calls[0].text

	assert.Contains(t, text, "## 별점 분포\n- 5점: 60건 (50.4%)\n- 4점: 59건 (49.6%)\n- 3점: 0건 (0.0%)")
	assert.Contains(t, text, "- 합계: 119건")
	assert.Contains(t, text, "## 리뷰 데이터 (120건)\n```json\n")
	assert.Contains(t, text, `"content": "최고 리뷰-000"`)
	assert.Contains(t, text, "리뷰-049")
	assert.NotContains(t, text, "리뷰-050")
	assert.NotContains(t, text, "리뷰-069")
	assert.Contains(t, text, "리뷰-070")
	assert.Contains(t, text, "리뷰-119")
	assert.Equal(t, 2, g.calls[0].maxTokens)
}

func TestQnAFirstFifty(t *testing.T) {
	g := &fakeGen{label: "a"}
	pairs := make([]types.QnAPair, 60)
	for i := range pairs {
		pairs[i] = types.QnAPair{Question: fmt.Sprintf("질문-%02d", i), Answer: "<b>네</b>", Seller: "스토어"}
	}

	_, err := NewAnalyzer(g, testTokens, testLogger).QnA(context.Background(), pairs)
	require.NoError(t, err)
	text := g.calls[0].text
	assert.True(t, strings.HasPrefix(text, "## Q&A 데이터 (60건)\n```json\n"))
	assert.Contains(t, text, "질문-49")
	assert.NotContains(t, text, "질문-50")
	assert.Contains(t, text, `"answer": "<b>네</b>"`)
	assert.Contains(t, text, `"seller": "스토어"`)

	out, err := NewAnalyzer(g, testTokens, testLogger).QnA(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, noQnAText, out)
}

func TestFullCombinesSections(t *testing.T) {
	g := &fakeGen{label: "a"}
	a := NewAnalyzer(g, testTokens, testLogger)

	_, err := a.Full(context.Background(), &types.ProductRecord{Price: "9,900원", ReviewCount: types.Int(3)}, "S", "", "Q")
	require.NoError(t, err)
	assert.Equal(t, fullPrompt, g.calls[0].system)
	assert.Equal(t, "## 상품 정보\n- 상품명: N/A\n- 가격: 9,900원\n- 리뷰 수: 3건\n\n## 상세페이지 스토리 분석 결과\nS\n\n## Q&A 분석 결과\nQ", g.calls[0].text)

	out, err := a.Full(context.Background(), &types.ProductRecord{}, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, noFullText, out)
	assert.Len(t, g.calls, 1)
}

func TestAnalyzeRecordsSectionFailure(t *testing.T) {
	g := &fakeGen{label: "a", failOn: reviewPrompt}
	r := &types.Result{Product: types.ProductRecord{Title: "상품"}, Reviews: reviewsN(3)}

	n := NewAnalyzer(g, testTokens, testLogger).Analyze(context.Background(), r, config.SectionConfig{Full: true})
	assert.Equal(t, "a", n.Provider)
	assert.Equal(t, "fake-1", n.Model)
	assert.Equal(t, "a:1", n.Story)
	assert.Empty(t, n.Review)
	assert.Equal(t, noQnAText, n.QnA)
	assert.Equal(t, "a:4", n.Full)
	require.Contains(t, n.Errors, types.SectionReview)
	assert.Contains(t, n.Errors[types.SectionReview], "narrative a/review: upstream unavailable")

	full := g.calls[len(g.calls)-1]
	assert.NotContains(t, full.text, "## 리뷰 분석 결과")
}

func TestAnalyzeHonorsSections(t *testing.T) {
	g := &fakeGen{label: "a"}
	r := &types.Result{Reviews: reviewsN(2)}

	n := NewAnalyzer(g, testTokens, testLogger).Analyze(context.Background(), r, config.SectionConfig{Review: true})
	assert.Equal(t, "a:2", n.Review)
	assert.Empty(t, n.Story)
	assert.Empty(t, n.Full)
	assert.Len(t, g.calls, 1)
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &fakeGen{label: "a"}

	n := NewAnalyzer(g, testTokens, testLogger).Analyze(ctx, &types.Result{}, config.SectionConfig{Story: true, QnA: true})
	assert.Empty(t, g.calls)
	assert.Len(t, n.Errors, 2)
}

func TestRunnerPerProvider(t *testing.T) {
	gens := []Generator{&fakeGen{label: "first"}, &fakeGen{label: "second", failOn: storyPrompt}}
	cfg := &config.AIConfig{Tokens: testTokens, Sections: config.SectionConfig{Story: true, Review: true}}
	m := observability.NewMetrics(testLogger)

	out := NewRunner(cfg, gens, m, testLogger).Run(context.Background(), &types.Result{Reviews: reviewsN(4)})
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Provider)
	assert.Equal(t, "first:1", out[0].Story)
	assert.Equal(t, "second", out[1].Provider)
	assert.Empty(t, out[1].Story)
	assert.Equal(t, "second:2", out[1].Review)

	assert.EqualValues(t, 3, m.NarrativesOK.Load())
	assert.EqualValues(t, 1, m.NarrativesFailed.Load())
}

func TestNewGenerators(t *testing.T) {
	cfg := &config.AIConfig{Providers: []config.ProviderConfig{
		{Label: "gpt", Provider: "openai", APIKey: "sk-1"},
		{Label: "claude", Provider: "anthropic", APIKey: "sk-ant-1"},
	}}
	gens, err := NewGenerators(cfg, testLogger)
	require.NoError(t, err)
	require.Len(t, gens, 2)
	assert.Equal(t, "claude", gens[1].Label())

	cfg.Providers = append(cfg.Providers, config.ProviderConfig{Label: "gpt", Provider: "ollama"})
	_, err = NewGenerators(cfg, testLogger)
	assert.ErrorContains(t, err, "duplicate label")
}
