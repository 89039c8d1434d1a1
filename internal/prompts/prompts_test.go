package prompts

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type mockStore struct {
	overrides map[string]*Override
	synced    []string
	err       error
}

func (m *mockStore) SyncPrompt(ctx context.Context, p EmbeddedPrompt) error {
	m.synced = append(m.synced, p.Key)
	return m.err
}

func (m *mockStore) GetOverride(ctx context.Context, documentID, key string) (*Override, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.overrides[documentID+"/"+key], nil
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("{{.DocumentID}} {{ .Metadata }} {{.DocumentID}} {{.Article.Content}}")
	want := []string{"Article.Content", "DocumentID", "Metadata"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractVariables() = %v, want %v", got, want)
	}
}

func TestRender(t *testing.T) {
	got, err := Render("<id>{{.ID}}</id>", struct{ ID string }{"123"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "<id>123</id>" {
		t.Errorf("Render() = %q", got)
	}

	if _, err := Render("{{.Missing}}", map[string]string{}); err == nil {
		t.Error("Render() with missing key should fail")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("Điều {{.Article.ID}}"); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := Validate("{{.Article"); err == nil {
		t.Error("Validate() should reject an unclosed action")
	}
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{overrides: map[string]*Override{
		"doc-1/relation.system": {Text: "custom rubric"},
	}}
	r := NewResolver(store, nil)
	r.Register(EmbeddedPrompt{Key: "relation.system", Text: "default rubric"})

	t.Run("embedded default", func(t *testing.T) {
		p, err := r.Resolve(ctx, "relation.system", "doc-2")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.Text != "default rubric" || p.IsOverride {
			t.Errorf("Resolve() = %+v", p)
		}
		if p.Hash != HashText("default rubric") {
			t.Errorf("Hash = %q", p.Hash)
		}
	})

	t.Run("document override", func(t *testing.T) {
		p, err := r.Resolve(ctx, "relation.system", "doc-1")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.Text != "custom rubric" || !p.IsOverride {
			t.Errorf("Resolve() = %+v", p)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if _, err := r.Resolve(ctx, "nope", ""); err == nil {
			t.Error("Resolve() should fail for unknown key")
		}
	})

	t.Run("store error falls back", func(t *testing.T) {
		bad := NewResolver(&mockStore{err: errors.New("db down")}, nil)
		bad.Register(EmbeddedPrompt{Key: "k", Text: "v"})
		p, err := bad.Resolve(ctx, "k", "doc-1")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.Text != "v" {
			t.Errorf("Text = %q", p.Text)
		}
	})
}

func TestResolver_SyncAll(t *testing.T) {
	if err := NewResolver(nil, nil).SyncAll(context.Background()); err == nil {
		t.Error("SyncAll() without store should fail")
	}

	store := &mockStore{}
	r := NewResolver(store, nil)
	r.Register(EmbeddedPrompt{Key: "b", Text: "2"})
	r.Register(EmbeddedPrompt{Key: "a", Text: "1"})
	if err := r.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if !reflect.DeepEqual(store.synced, []string{"a", "b"}) {
		t.Errorf("synced = %v", store.synced)
	}
}
