package relation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/metrics"
	"github.com/jackzampolin/vbpl/internal/prompts"
	"github.com/jackzampolin/vbpl/internal/providers"
)

type overrideStore map[string]string

func (s overrideStore) SyncPrompt(ctx context.Context, p prompts.EmbeddedPrompt) error { return nil }

func (s overrideStore) GetOverride(ctx context.Context, documentID, key string) (*prompts.Override, error) {
	text, ok := s[documentID+"/"+key]
	if !ok {
		return nil, nil
	}
	return &prompts.Override{DocumentID: documentID, PromptKey: key, Text: text}, nil
}

// classifierFunc adapts a function to Classifier.
type classifierFunc func(ctx context.Context, req Request) (*Classification, error)

func (f classifierFunc) Classify(ctx context.Context, req Request) (*Classification, error) {
	return f(ctx, req)
}

func testInfo() legal.DocumentInfo {
	return legal.DocumentInfo{
		DocumentID:    "100",
		DocumentTitle: "Nghị định 100/2024/NĐ-CP",
		Relationship: map[string][]legal.RelatedDocument{
			"Văn bản được sửa đổi (2)": {{Title: "Nghị định 15/2020/NĐ-CP (hết hiệu lực một phần)", ID: "15"}},
		},
	}
}

func testArticle(n int) legal.Article {
	return legal.Article{
		DocumentID: "100",
		ID:         legal.ArticleID("100", n),
		Ordinal:    n,
		Label:      fmt.Sprintf("Điều %d", n),
		Content:    fmt.Sprintf("Điều %d. Nội dung.", n),
	}
}

func testConfig() Config {
	return Config{Concurrency: 5, MaxAttempts: 3, CallTimeout: time.Second, RetryDelay: time.Millisecond}
}

const validOutput = `{
  "Sửa đổi, bổ sung": ["15_5", "15_7a"],
  "Thay thế": [],
  "Bãi bỏ": ["15_9"],
  "Đình chỉ việc thi hành": [],
  "Hướng dẫn, quy định": ["100_3"],
  "external": [
    {"100_1": {"Sửa đổi, bổ sung": ["15_5"], "Thay thế": [], "Bãi bỏ": ["15_9"],
      "Đình chỉ việc thi hành": [], "Hướng dẫn, quy định": []}}
  ]
}`

func TestMetadata(t *testing.T) {
	got := Metadata(testInfo().Relationship)
	if strings.Contains(got, "(") || strings.Contains(got, ")") {
		t.Errorf("Metadata() kept parentheticals: %s", got)
	}
	if !strings.Contains(got, `"Văn bản được sửa đổi"`) || !strings.Contains(got, `"Nghị định 15/2020/NĐ-CP"`) {
		t.Errorf("Metadata() = %s", got)
	}
	if Metadata(nil) != "{}" {
		t.Errorf("Metadata(nil) = %q", Metadata(nil))
	}
}

func TestStripParentheticals(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Luật Đất đai (2013)", "Luật Đất đai"},
		{"A (b (c)) d", "A d"},
		{"no parens", "no parens"},
	}
	for _, tt := range tests {
		if got := StripParentheticals(tt.in); got != tt.want {
			t.Errorf("StripParentheticals(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSchema(t *testing.T) {
	parsed, err := providers.ParseStructuredJSON(validOutput)
	if err != nil {
		t.Fatalf("ParseStructuredJSON() error = %v", err)
	}
	if err := providers.ValidateStructuredJSON(Schema, parsed); err != nil {
		t.Errorf("valid output rejected: %v", err)
	}

	missing := []byte(`{"Sửa đổi, bổ sung": [], "external": []}`)
	if err := providers.ValidateStructuredJSON(Schema, missing); err == nil {
		t.Error("output missing keys should fail validation")
	}

	badNested := []byte(`{"Sửa đổi, bổ sung": [], "Thay thế": [], "Bãi bỏ": [], "Đình chỉ việc thi hành": [],
		"Hướng dẫn, quy định": [], "external": [{"100_1": {"unknown": []}}]}`)
	if err := providers.ValidateStructuredJSON(Schema, badNested); err == nil {
		t.Error("unknown nested relation key should fail validation")
	}

	partialNested := []byte(`{"Sửa đổi, bổ sung": [], "Thay thế": [], "Bãi bỏ": [], "Đình chỉ việc thi hành": [],
		"Hướng dẫn, quy định": [], "external": [{"100_1": {"Sửa đổi, bổ sung": ["15_5"]}}]}`)
	if err := providers.ValidateStructuredJSON(Schema, partialNested); err == nil {
		t.Error("nested relations missing keys should fail validation")
	}
}

func TestLLMClassifier(t *testing.T) {
	ctx := context.Background()
	req := Request{Info: testInfo(), Article: testArticle(1)}

	t.Run("parses fenced output", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ResponseText = "<think>checking</think>\n```json\n" + validOutput + "\n```"
		c := NewLLMClassifier(mock, ClassifierConfig{})

		cls, err := c.Classify(ctx, req)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got := cls.Relations.Get(legal.Amends); len(got) != 2 {
			t.Errorf("Amends = %v", got)
		}
		if len(cls.External) != 1 || cls.External[0].SourceArticleID != "100_1" {
			t.Errorf("External = %+v", cls.External)
		}

		sent := mock.Requests()[0]
		if sent.Temperature != DefaultTemperature {
			t.Errorf("Temperature = %v", sent.Temperature)
		}
		if sent.ResponseFormat == nil || sent.ResponseFormat.Type != "json_object" {
			t.Errorf("ResponseFormat = %+v", sent.ResponseFormat)
		}
		user := sent.Messages[1].Content
		for _, want := range []string{
			"<current_document_id>100</current_document_id>",
			"<article_content>\nĐiều 1. Nội dung.\n</article_content>",
			"Nghị định 15/2020/NĐ-CP",
		} {
			if !strings.Contains(user, want) {
				t.Errorf("user message missing %q:\n%s", want, user)
			}
		}
	})

	t.Run("malformed output", func(t *testing.T) {
		for _, text := range []string{"not json", `{"Sửa đổi, bổ sung": []}`, ""} {
			mock := providers.NewMockClient()
			mock.ResponseText = text
			_, err := NewLLMClassifier(mock, ClassifierConfig{}).Classify(ctx, req)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Classify(%q) error = %v, want ErrMalformed", text, err)
			}
		}
	})

	t.Run("transport error", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ShouldFail = true
		_, err := NewLLMClassifier(mock, ClassifierConfig{}).Classify(ctx, req)
		if err == nil || errors.Is(err, ErrMalformed) {
			t.Errorf("Classify() error = %v, want transport error", err)
		}
	})

	t.Run("document prompt override", func(t *testing.T) {
		store := overrideStore{"100/" + SystemPromptKey: "custom rubric"}
		resolver := prompts.NewResolver(store, nil)
		for _, p := range Prompts() {
			resolver.Register(p)
		}
		mock := providers.NewMockClient()
		mock.ResponseText = validOutput
		c := NewLLMClassifier(mock, ClassifierConfig{Prompts: resolver, Model: "test-model"})

		if _, err := c.Classify(ctx, req); err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		other := Request{Info: legal.DocumentInfo{DocumentID: "200"}, Article: testArticle(1)}
		if _, err := c.Classify(ctx, other); err != nil {
			t.Fatalf("Classify() error = %v", err)
		}

		sent := mock.Requests()
		if sent[0].Messages[0].Content != "custom rubric" || sent[0].Model != "test-model" {
			t.Errorf("override not applied: %q", sent[0].Messages[0].Content)
		}
		if sent[1].Messages[0].Content != systemPrompt {
			t.Error("other documents should use the embedded rubric")
		}
	})
}

func TestResolve_SelfReferenceRelocated(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cls := classifierFunc(func(ctx context.Context, req Request) (*Classification, error) {
		return &Classification{
			External: []ExternalEntry{{
				SourceArticleID: "100_2",
				Relations: legal.Relations{
					Guides: []string{"100_4"}, // self-reference leaked into external
					Amends: []string{"15_3b"}, // genuine external effect
				},
			}},
		}, nil
	})
	res := New(cls, testConfig(), WithMetrics(m)).Resolve(context.Background(), testInfo(), testArticle(2))

	if res.State != Resolved {
		t.Fatalf("State = %s, want RESOLVED", res.State)
	}
	if got := res.Relations.Get(legal.Guides); len(got) != 1 || got[0] != "100_4" {
		t.Errorf("Guides = %v, want [100_4]", got)
	}
	if res.Corrections.SelfReferences != 1 {
		t.Errorf("SelfReferences = %d, want 1", res.Corrections.SelfReferences)
	}
	if len(res.External) != 1 || len(res.External[0].Relations.Guides) != 0 {
		t.Errorf("External = %+v", res.External)
	}
	if got := res.External[0].Relations.Amends; len(got) != 1 || got[0] != "15_3" {
		t.Errorf("external Amends = %v, want [15_3]", got)
	}

	for _, e := range res.ExternalEffects() {
		if strings.HasPrefix(e.TargetArticleID, "100_") {
			t.Errorf("external effect targets current document: %+v", e)
		}
	}
	var self int
	for _, e := range res.Edges() {
		if e.Scope == legal.Self {
			self++
			if e.TargetArticleID != "100_4" || e.Type != legal.Guides {
				t.Errorf("self edge = %+v", e)
			}
		}
	}
	if self != 1 {
		t.Errorf("self edges = %d, want 1", self)
	}

	if got := testutil.ToFloat64(m.ResolverCorrections.WithLabelValues("self_reference")); got != 1 {
		t.Errorf("self_reference corrections = %v, want 1", got)
	}
}

func TestResolve_DocumentLevelReferenceDropped(t *testing.T) {
	cls := classifierFunc(func(ctx context.Context, req Request) (*Classification, error) {
		// "theo quy định của Nghị định số 78/2020/ND-BNV" carries no article.
		return &Classification{
			Relations: legal.Relations{Guides: []string{"78/2020/ND-BNV", "78_", "78"}},
			External: []ExternalEntry{
				{SourceArticleID: "100_1", Relations: legal.Relations{Repeals: []string{"78"}}},
			},
		}, nil
	})
	res := New(cls, testConfig()).Resolve(context.Background(), testInfo(), testArticle(1))

	if res.State != Resolved {
		t.Fatalf("State = %s", res.State)
	}
	if edges := res.Edges(); len(edges) != 0 {
		t.Errorf("Edges() = %+v, want none", edges)
	}
	if res.Corrections.DroppedTargets != 4 {
		t.Errorf("DroppedTargets = %d, want 4", res.Corrections.DroppedTargets)
	}
	if res.External != nil {
		t.Errorf("External = %+v, want nil", res.External)
	}
}

func TestResolve_Postconditions(t *testing.T) {
	cls := classifierFunc(func(ctx context.Context, req Request) (*Classification, error) {
		return &Classification{
			Relations: legal.Relations{
				Amends:  []string{"15_5", "15_5a", " 15_5 "},
				Repeals: []string{"100_1"}, // the article itself
			},
			External: []ExternalEntry{
				{SourceArticleID: "999_1", Relations: legal.Relations{Amends: []string{"15_1"}}},
				{SourceArticleID: "100_1", Relations: legal.Relations{Amends: []string{"15_2"}}},
				{SourceArticleID: "100_1", Relations: legal.Relations{Replaces: []string{"15_3"}}},
				{SourceArticleID: "100_3", Relations: legal.Relations{}},
			},
		}, nil
	})
	res := New(cls, testConfig()).Resolve(context.Background(), testInfo(), testArticle(1))

	if got := res.Relations.Get(legal.Amends); len(got) != 1 || got[0] != "15_5" {
		t.Errorf("Amends = %v, want [15_5]", got)
	}
	if got := res.Relations.Get(legal.Repeals); len(got) != 0 {
		t.Errorf("Repeals = %v, want self-loop dropped", got)
	}
	if res.Corrections.DroppedEntries != 1 {
		t.Errorf("DroppedEntries = %d, want 1", res.Corrections.DroppedEntries)
	}
	if len(res.External) != 1 {
		t.Fatalf("External = %+v, want one merged entry", res.External)
	}
	merged := res.External[0]
	if len(merged.Relations.Amends) != 1 || len(merged.Relations.Replaces) != 1 {
		t.Errorf("merged entry = %+v", merged)
	}
}

func TestResolve_RetryBound(t *testing.T) {
	var calls atomic.Int32
	cls := classifierFunc(func(ctx context.Context, req Request) (*Classification, error) {
		calls.Add(1)
		return nil, fmt.Errorf("%w: not json", ErrMalformed)
	})
	res := New(cls, testConfig()).Resolve(context.Background(), testInfo(), testArticle(1))

	if got := calls.Load(); got != 3 {
		t.Errorf("classifier called %d times, want 3", got)
	}
	if res.State != FailedEmpty || res.Attempts != 3 {
		t.Errorf("State = %s, Attempts = %d", res.State, res.Attempts)
	}
	if res.Relations.Len() != 0 || res.Relations.Amends == nil {
		t.Errorf("Relations = %+v, want empty non-nil lists", res.Relations)
	}
	if !errors.Is(res.Err, ErrMalformed) {
		t.Errorf("Err = %v", res.Err)
	}

	want := []State{Pending, InFlight, Retry, InFlight, Retry, InFlight, FailedEmpty}
	if fmt.Sprint(res.History) != fmt.Sprint(want) {
		t.Errorf("History = %v, want %v", res.History, want)
	}
}

func TestResolve_RetryThenResolve(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Responses = []providers.MockResponse{{Content: "{oops"}, {Content: validOutput}}
	r := New(NewLLMClassifier(mock, ClassifierConfig{}), testConfig())

	res := r.Resolve(context.Background(), testInfo(), testArticle(1))
	if res.State != Resolved || res.Attempts != 2 {
		t.Fatalf("State = %s, Attempts = %d", res.State, res.Attempts)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount() = %d", mock.RequestCount())
	}
	// 100_3 stays in the main list as a SELF target; external 15_5/15_9 stay external.
	if got := res.Relations.Get(legal.Guides); len(got) != 1 || got[0] != "100_3" {
		t.Errorf("Guides = %v", got)
	}
	if got := res.Relations.Get(legal.Amends); len(got) != 2 || got[1] != "15_7" {
		t.Errorf("Amends = %v", got)
	}
}

func TestResolve_CallTimeout(t *testing.T) {
	cls := classifierFunc(func(ctx context.Context, req Request) (*Classification, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cfg := testConfig()
	cfg.CallTimeout = 5 * time.Millisecond
	cfg.MaxAttempts = 2
	res := New(cls, cfg).Resolve(context.Background(), testInfo(), testArticle(1))
	if res.State != FailedEmpty || res.Attempts != 2 {
		t.Errorf("State = %s, Attempts = %d", res.State, res.Attempts)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v", res.Err)
	}
}

func TestResolveAll(t *testing.T) {
	info := testInfo()
	articles := []legal.Article{testArticle(1), testArticle(2), testArticle(3), testArticle(4)}

	t.Run("results by article identity", func(t *testing.T) {
		cls := classifierFunc(func(ctx context.Context, req Request) (*Classification, error) {
			// Later articles finish first.
			time.Sleep(time.Duration(10-req.Article.Ordinal) * time.Millisecond)
			return &Classification{Relations: legal.Relations{Amends: []string{"15_" + fmt.Sprint(req.Article.Ordinal)}}}, nil
		})
		results, err := New(cls, testConfig()).ResolveAll(context.Background(), info, articles)
		if err != nil {
			t.Fatalf("ResolveAll() error = %v", err)
		}
		for i, res := range results {
			if res.Article.ID != articles[i].ID {
				t.Errorf("results[%d] = %s, want %s", i, res.Article.ID, articles[i].ID)
			}
			if got := res.Relations.Amends; len(got) != 1 || got[0] != fmt.Sprintf("15_%d", i+1) {
				t.Errorf("results[%d].Amends = %v", i, got)
			}
		}
	})

	t.Run("one failure does not fail the batch", func(t *testing.T) {
		cls := classifierFunc(func(ctx context.Context, req Request) (*Classification, error) {
			if req.Article.Ordinal == 2 {
				return nil, errors.New("connection reset")
			}
			return &Classification{}, nil
		})
		results, err := New(cls, testConfig()).ResolveAll(context.Background(), info, articles)
		if err != nil {
			t.Fatalf("ResolveAll() error = %v", err)
		}
		counts := Summary(results)
		if counts[Resolved] != 3 || counts[FailedEmpty] != 1 {
			t.Errorf("Summary() = %v", counts)
		}
	})

	t.Run("transport down for every article", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ShouldFail = true
		results, err := New(NewLLMClassifier(mock, ClassifierConfig{}), testConfig()).ResolveAll(context.Background(), info, articles)
		if !errors.Is(err, ErrClassifierUnavailable) {
			t.Fatalf("ResolveAll() error = %v, want ErrClassifierUnavailable", err)
		}
		if len(results) != len(articles) {
			t.Fatalf("got %d results", len(results))
		}
		for _, res := range results {
			if res.State != FailedEmpty {
				t.Errorf("%s: State = %s", res.Article.ID, res.State)
			}
		}
		if mock.RequestCount() != int64(3*len(articles)) {
			t.Errorf("RequestCount() = %d, want %d", mock.RequestCount(), 3*len(articles))
		}
	})

	t.Run("malformed everywhere is not a batch failure", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ResponseText = "nope"
		results, err := New(NewLLMClassifier(mock, ClassifierConfig{}), testConfig()).ResolveAll(context.Background(), info, articles)
		if err != nil {
			t.Fatalf("ResolveAll() error = %v", err)
		}
		if Summary(results)[FailedEmpty] != len(articles) {
			t.Errorf("Summary() = %v", Summary(results))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		results, err := New(classifierFunc(nil), testConfig()).ResolveAll(context.Background(), info, nil)
		if err != nil || len(results) != 0 {
			t.Errorf("ResolveAll(nil) = %v, %v", results, err)
		}
	})
}

func TestResolveAll_ConcurrencyLimit(t *testing.T) {
	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	cls := classifierFunc(func(ctx context.Context, req Request) (*Classification, error) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
		return &Classification{}, nil
	})

	var articles []legal.Article
	for i := 1; i <= 12; i++ {
		articles = append(articles, testArticle(i))
	}
	cfg := testConfig()
	cfg.Concurrency = 3
	if _, err := New(cls, cfg).ResolveAll(context.Background(), testInfo(), articles); err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestResolveAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	cls := classifierFunc(func(ctx context.Context, req Request) (*Classification, error) {
		calls.Add(1)
		return &Classification{}, nil
	})
	results, err := New(cls, testConfig()).ResolveAll(ctx, testInfo(), []legal.Article{testArticle(1), testArticle(2)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ResolveAll() error = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("classifier called %d times after cancellation", calls.Load())
	}
	for _, res := range results {
		if res.State != Pending {
			t.Errorf("%s: State = %s, want PENDING", res.Article.ID, res.State)
		}
	}
}

func TestResultJSON(t *testing.T) {
	res := newResult(testArticle(1))
	res.transition(InFlight)
	res.transition(FailedEmpty)
	res.Err = errors.New("boom")

	b, err := res.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	s := string(b)
	for _, want := range []string{`"state":"FAILED_EMPTY"`, `"error":"boom"`, `"amends":[]`, `"external":[]`} {
		if !strings.Contains(s, want) {
			t.Errorf("MarshalJSON() missing %s: %s", want, s)
		}
	}
}
