package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jackzampolin/vbpl/internal/index"
	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/metrics"
	"github.com/jackzampolin/vbpl/internal/providers"
	"github.com/jackzampolin/vbpl/internal/relation"
	"github.com/jackzampolin/vbpl/internal/segment"
	"github.com/jackzampolin/vbpl/internal/store"
)

const testText = `QUỐC HỘI
LUẬT
SỬA ĐỔI MỘT SỐ ĐIỀU

Chương I
QUY ĐỊNH CHUNG
Điều 1. Phạm vi điều chỉnh
Luật này sửa đổi Điều 5 Nghị định 15/2020/NĐ-CP.
Điều 2. Đối tượng áp dụng
1. Cơ quan nhà nước.
2. Tổ chức, cá nhân có liên quan.

Chương II
ĐIỀU KHOẢN THI HÀNH
Điều 3. Hiệu lực thi hành
Luật này có hiệu lực từ ngày 01 tháng 01 năm 2025.
`

func testDocument() legal.CrawledDocument {
	return legal.CrawledDocument{
		TextContent: testText,
		DocumentInfo: legal.DocumentInfo{
			DocumentID:    "100",
			DocumentTitle: "Luật sửa đổi",
			Relationship: map[string][]legal.RelatedDocument{
				"Văn bản được sửa đổi": {{Title: "Nghị định 15/2020/NĐ-CP", ID: "15"}},
			},
		},
	}
}

type classifierFunc func(ctx context.Context, req relation.Request) (*relation.Classification, error)

func (f classifierFunc) Classify(ctx context.Context, req relation.Request) (*relation.Classification, error) {
	return f(ctx, req)
}

func testResolver(t *testing.T) *relation.Resolver {
	t.Helper()
	cls := classifierFunc(func(ctx context.Context, req relation.Request) (*relation.Classification, error) {
		switch req.Article.Ordinal {
		case 1:
			return &relation.Classification{Relations: legal.Relations{Amends: []string{"15_5"}}}, nil
		case 2:
			return &relation.Classification{Relations: legal.Relations{Guides: []string{"100_3"}}}, nil
		}
		return &relation.Classification{}, nil
	})
	return relation.New(cls, relation.Config{
		Concurrency: 2,
		MaxAttempts: 3,
		CallTimeout: time.Second,
		RetryDelay:  time.Millisecond,
	})
}

type memSaver struct {
	doc      store.DocumentRecord
	articles []store.ArticleRecord
	edges    []legal.Edge
	calls    int
	err      error
}

func (m *memSaver) SaveDocument(ctx context.Context, doc store.DocumentRecord, articles []store.ArticleRecord, edges []legal.Edge) error {
	m.calls++
	m.doc, m.articles, m.edges = doc, articles, edges
	return m.err
}

type memIndex map[string][]float32

func (m memIndex) InsertEmbedding(ctx context.Context, id string, v []float32) error {
	m[id] = v
	return nil
}

type chunkerFunc func(ctx context.Context, documentID, text string) (segment.Document, error)

func (f chunkerFunc) Chunk(ctx context.Context, documentID, text string) (segment.Document, error) {
	return f(ctx, documentID, text)
}

func TestProcess(t *testing.T) {
	saver := &memSaver{}
	vectors := memIndex{}
	p := New(Options{
		Resolver: testResolver(t),
		Saver:    saver,
		Indexer:  index.NewIndexer(&providers.MockEmbedder{Dims: 4}, vectors, 2, nil),
	})

	st, err := p.Process(context.Background(), testDocument(), RunOptions{})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := []string{StageNormalize, StageSegment, StageAssignIDs, StageFlatten, StageResolve, StageStore, StageEmbed}
	if len(st.Completed) != len(want) {
		t.Fatalf("Completed = %v, want %v", st.Completed, want)
	}
	for i := range want {
		if st.Completed[i] != want[i] {
			t.Errorf("Completed[%d] = %q, want %q", i, st.Completed[i], want[i])
		}
	}
	if len(st.Skipped) != 0 {
		t.Errorf("Skipped = %v", st.Skipped)
	}
	if st.ChunkMode != ModePrefix {
		t.Errorf("ChunkMode = %q", st.ChunkMode)
	}

	if len(st.Articles) != 3 {
		t.Fatalf("got %d articles, want 3", len(st.Articles))
	}
	for i, a := range st.Articles {
		if want := legal.ArticleID("100", i+1); a.ID != want {
			t.Errorf("Articles[%d].ID = %q, want %q", i, a.ID, want)
		}
		if a.NodeID == "" {
			t.Errorf("Articles[%d] has no node id", i)
		}
	}
	if a := st.Articles[2]; a.Chapter == nil || *a.Chapter == "" {
		t.Errorf("article 3 chapter = %v", a.Chapter)
	}

	t.Run("edges", func(t *testing.T) {
		if len(st.Edges) != 2 {
			t.Fatalf("Edges = %+v", st.Edges)
		}
		scopes := map[string]legal.Scope{}
		for _, e := range st.Edges {
			scopes[e.SourceArticleID+">"+e.TargetArticleID] = e.Scope
		}
		if scopes["100_1>15_5"] != legal.External {
			t.Errorf("100_1>15_5 scope = %v", scopes["100_1>15_5"])
		}
		if scopes["100_2>100_3"] != legal.Self {
			t.Errorf("100_2>100_3 scope = %v", scopes["100_2>100_3"])
		}
	})

	t.Run("saved", func(t *testing.T) {
		if saver.calls != 1 {
			t.Fatalf("SaveDocument called %d times", saver.calls)
		}
		if saver.doc.Info.DocumentID != "100" || saver.doc.ChunkMode != ModePrefix {
			t.Errorf("doc = %+v", saver.doc.Info)
		}
		if saver.doc.Preamble == "" {
			t.Error("preamble not saved")
		}
		if len(saver.articles) != 3 || len(saver.edges) != 2 {
			t.Fatalf("saved %d articles, %d edges", len(saver.articles), len(saver.edges))
		}
		first := saver.articles[0]
		if first.State != relation.Resolved.String() || first.Attempts != 1 {
			t.Errorf("article state = %s after %d attempts", first.State, first.Attempts)
		}
		amends, ok := first.Payload[legal.Amends.PayloadKey()].([]string)
		if !ok || len(amends) != 1 || amends[0] != "15_5" {
			t.Errorf("payload %s = %v", legal.Amends.PayloadKey(), first.Payload[legal.Amends.PayloadKey()])
		}
		if first.Payload[index.KeyDocumentID] != "100" {
			t.Errorf("payload document id = %v", first.Payload[index.KeyDocumentID])
		}
	})

	t.Run("embedded", func(t *testing.T) {
		if st.Embedded != 3 || len(vectors) != 3 {
			t.Errorf("Embedded = %d, vectors = %d", st.Embedded, len(vectors))
		}
		if _, ok := vectors["100_2"]; !ok {
			t.Error("100_2 not embedded")
		}
	})
}

func TestProcess_Until(t *testing.T) {
	saver := &memSaver{}
	p := New(Options{Resolver: testResolver(t), Saver: saver})

	st, err := p.Process(context.Background(), testDocument(), RunOptions{Until: StageFlatten})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := st.Completed[len(st.Completed)-1]; got != StageFlatten {
		t.Errorf("last stage = %q", got)
	}
	if len(st.Results) != 0 || saver.calls != 0 {
		t.Errorf("stages after flatten ran: %d results, %d saves", len(st.Results), saver.calls)
	}
	if len(st.Articles) != 3 {
		t.Errorf("got %d articles", len(st.Articles))
	}

	if _, err := p.Process(context.Background(), testDocument(), RunOptions{Until: "bogus"}); !errors.Is(err, ErrStageNotFound) {
		t.Errorf("Process(Until: bogus) error = %v, want ErrStageNotFound", err)
	}
}

func TestProcess_SkipsUnconfiguredStages(t *testing.T) {
	st, err := New(Options{}).Process(context.Background(), testDocument(), RunOptions{})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := []string{StageResolve, StageStore, StageEmbed}
	if len(st.Skipped) != len(want) {
		t.Fatalf("Skipped = %v, want %v", st.Skipped, want)
	}
	for i := range want {
		if st.Skipped[i] != want[i] {
			t.Errorf("Skipped[%d] = %q, want %q", i, st.Skipped[i], want[i])
		}
	}
}

func TestProcess_ChunkModes(t *testing.T) {
	llmDoc := segment.New(segment.Options{}).SegmentDocument("Điều 1. Chỉ một điều\nNội dung.")

	t.Run("llm", func(t *testing.T) {
		var gotID string
		p := New(Options{
			ChunkMode: ModeLLM,
			Chunker: chunkerFunc(func(ctx context.Context, id, text string) (segment.Document, error) {
				gotID = id
				return llmDoc, nil
			}),
		})
		st, err := p.Process(context.Background(), testDocument(), RunOptions{Until: StageFlatten})
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if st.ChunkMode != ModeLLM || gotID != "100" {
			t.Errorf("ChunkMode = %q, chunked id = %q", st.ChunkMode, gotID)
		}
		if len(st.Articles) != 1 {
			t.Errorf("got %d articles, want 1", len(st.Articles))
		}
	})

	t.Run("fallback to prefix", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		p := New(Options{
			ChunkMode: ModeLLM,
			Metrics:   m,
			Chunker: chunkerFunc(func(ctx context.Context, id, text string) (segment.Document, error) {
				return segment.Document{}, errors.New("malformed output")
			}),
		})
		st, err := p.Process(context.Background(), testDocument(), RunOptions{Until: StageFlatten})
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if st.ChunkMode != ModePrefix || len(st.Articles) != 3 {
			t.Errorf("ChunkMode = %q, articles = %d", st.ChunkMode, len(st.Articles))
		}
		if got := testutil.ToFloat64(m.ChunkFallbacks); got != 1 {
			t.Errorf("chunk fallbacks = %v", got)
		}
		if got := testutil.ToFloat64(m.DocumentsTotal.WithLabelValues(ModePrefix)); got != 1 {
			t.Errorf("prefix documents = %v", got)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := New(Options{
			ChunkMode: ModeLLM,
			Chunker: chunkerFunc(func(ctx context.Context, id, text string) (segment.Document, error) {
				cancel()
				return segment.Document{}, ctx.Err()
			}),
		})
		if _, err := p.Process(ctx, testDocument(), RunOptions{}); !errors.Is(err, context.Canceled) {
			t.Errorf("Process() error = %v, want context.Canceled", err)
		}
	})
}

func TestProcess_Errors(t *testing.T) {
	t.Run("missing document id", func(t *testing.T) {
		_, err := New(Options{}).Process(context.Background(), legal.CrawledDocument{TextContent: testText}, RunOptions{})
		if !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("Process() error = %v, want ErrInvalidDocument", err)
		}
	})

	t.Run("classifier unavailable", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ShouldFail = true
		saver := &memSaver{}
		p := New(Options{
			Resolver: relation.New(relation.NewLLMClassifier(mock, relation.ClassifierConfig{}), relation.Config{
				Concurrency: 5, MaxAttempts: 3, CallTimeout: time.Second, RetryDelay: time.Millisecond,
			}),
			Saver: saver,
		})
		st, err := p.Process(context.Background(), testDocument(), RunOptions{})
		if !errors.Is(err, relation.ErrClassifierUnavailable) {
			t.Fatalf("Process() error = %v, want ErrClassifierUnavailable", err)
		}
		if saver.calls != 0 {
			t.Error("document saved after classifier failure")
		}
		if len(st.Results) != 3 {
			t.Errorf("got %d partial results", len(st.Results))
		}
	})

	t.Run("save failure", func(t *testing.T) {
		saver := &memSaver{err: errors.New("disk full")}
		_, err := New(Options{Saver: saver}).Process(context.Background(), testDocument(), RunOptions{})
		if err == nil || saver.calls != 1 {
			t.Errorf("Process() error = %v after %d saves", err, saver.calls)
		}
	})

	t.Run("stage error stops the run", func(t *testing.T) {
		var ran []string
		r := NewRegistry()
		r.Register(&mockStage{name: "a", ran: &ran})
		r.Register(&mockStage{name: "b", deps: []string{"a"}, ran: &ran, err: errors.New("boom")})
		r.Register(&mockStage{name: "c", deps: []string{"b"}, ran: &ran})
		p := New(Options{})
		p.registry = r

		st, err := p.Process(context.Background(), testDocument(), RunOptions{})
		if err == nil {
			t.Fatal("expected error")
		}
		if len(ran) != 2 || len(st.Completed) != 1 || st.Completed[0] != "a" {
			t.Errorf("ran = %v, completed = %v", ran, st.Completed)
		}
	})
}

func TestRecords_PendingWithoutResults(t *testing.T) {
	st := &State{Document: testDocument()}
	st.Articles = []legal.Article{{DocumentID: "100", ID: "100_1", Ordinal: 1}}
	recs := st.records()
	if len(recs) != 1 || recs[0].State != relation.Pending.String() {
		t.Fatalf("records() = %+v", recs)
	}
	if recs[0].Relations.Amends == nil {
		t.Error("relations not normalized to empty lists")
	}
}

func TestState_Summary(t *testing.T) {
	st, err := New(Options{Resolver: testResolver(t)}).Process(context.Background(), testDocument(), RunOptions{})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := st.Summary(); got[relation.Resolved.String()] != 3 || len(got) != 1 {
		t.Errorf("Summary() = %v", got)
	}

	st, err = New(Options{}).Process(context.Background(), testDocument(), RunOptions{Until: StageFlatten})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := st.Summary(); got[relation.Pending.String()] != 3 {
		t.Errorf("Summary() = %v", got)
	}
}
