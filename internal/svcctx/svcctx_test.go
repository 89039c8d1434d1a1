package svcctx

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jackzampolin/vbpl/internal/config"
	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/metrics"
	"github.com/jackzampolin/vbpl/internal/pipeline"
	"github.com/jackzampolin/vbpl/internal/providers"
)

const emptyClassification = `{"Sửa đổi, bổ sung": [], "Thay thế": [], "Bãi bỏ": [],
 "Đình chỉ việc thi hành": [], "Hướng dẫn, quy định": [], "external": []}`

func testServices(t *testing.T) (*Services, *providers.MockClient) {
	t.Helper()
	t.Chdir(t.TempDir())

	mgr, err := config.NewManager(config.Options{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	mock := providers.NewMockClient()
	mock.ResponseText = emptyClassification
	reg := providers.NewRegistry()
	reg.RegisterLLM("openai", mock)

	return &Services{
		Config:   mgr,
		Registry: reg,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Logger:   slog.Default(),
	}, mock
}

func TestContextExtractors(t *testing.T) {
	ctx := context.Background()
	if ServicesFrom(ctx) != nil || StoreFrom(ctx) != nil || LoggerFrom(ctx) != slog.Default() || ConfigFrom(ctx) != nil {
		t.Fatal("extractors returned services from a bare context")
	}

	s, _ := testServices(t)
	ctx = WithServices(ctx, s)
	if ServicesFrom(ctx) != s {
		t.Error("ServicesFrom() did not return attached services")
	}
	if RegistryFrom(ctx) != s.Registry || ConfigFrom(ctx) != s.Config || LoggerFrom(ctx) != s.Logger {
		t.Error("extractors returned the wrong services")
	}
}

func TestNewPipeline(t *testing.T) {
	doc := legal.CrawledDocument{
		TextContent:  "Điều 1. Phạm vi\nNội dung.\nĐiều 2. Hiệu lực\nCó hiệu lực.",
		DocumentInfo: legal.DocumentInfo{DocumentID: "7"},
	}

	t.Run("prefix only", func(t *testing.T) {
		s, mock := testServices(t)
		p, err := s.NewPipeline(PipelineOptions{})
		if err != nil {
			t.Fatalf("NewPipeline() error = %v", err)
		}
		st, err := p.Process(context.Background(), doc, pipeline.RunOptions{})
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if len(st.Articles) != 2 || len(st.Skipped) != 3 {
			t.Errorf("articles = %d, skipped = %v", len(st.Articles), st.Skipped)
		}
		if mock.RequestCount() != 0 {
			t.Errorf("RequestCount() = %d, want 0", mock.RequestCount())
		}
	})

	t.Run("resolve", func(t *testing.T) {
		s, mock := testServices(t)
		p, err := s.NewPipeline(PipelineOptions{Resolve: true})
		if err != nil {
			t.Fatalf("NewPipeline() error = %v", err)
		}
		st, err := p.Process(context.Background(), doc, pipeline.RunOptions{})
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if len(st.Results) != 2 || mock.RequestCount() != 2 {
			t.Errorf("results = %d, requests = %d", len(st.Results), mock.RequestCount())
		}
	})

	t.Run("missing providers", func(t *testing.T) {
		s, _ := testServices(t)
		s.Registry = providers.NewRegistry()
		if _, err := s.NewPipeline(PipelineOptions{Resolve: true}); !errors.Is(err, providers.ErrNotFound) {
			t.Errorf("NewPipeline(Resolve) error = %v, want ErrNotFound", err)
		}
		if _, err := s.NewPipeline(PipelineOptions{ChunkMode: config.ChunkModeLLM}); !errors.Is(err, providers.ErrNotFound) {
			t.Errorf("NewPipeline(llm) error = %v, want ErrNotFound", err)
		}
		if _, err := s.NewPipeline(PipelineOptions{Embed: true}); !errors.Is(err, providers.ErrNotFound) {
			t.Errorf("NewPipeline(Embed) error = %v, want ErrNotFound", err)
		}
	})
}
