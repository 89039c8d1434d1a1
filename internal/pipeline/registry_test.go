package pipeline

import (
	"context"
	"errors"
	"testing"
)

// mockStage implements Stage and records that it ran.
type mockStage struct {
	name string
	deps []string
	err  error
	ran  *[]string
}

func newMockStage(name string, deps ...string) *mockStage {
	return &mockStage{name: name, deps: deps}
}

func (m *mockStage) Name() string           { return m.name }
func (m *mockStage) Dependencies() []string { return m.deps }
func (m *mockStage) Description() string    { return "test stage" }

func (m *mockStage) Run(ctx context.Context, p *Pipeline, st *State) error {
	if m.ran != nil {
		*m.ran = append(*m.ran, m.name)
	}
	return m.err
}

type stageDef struct {
	name string
	deps []string
}

func names(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.Name()
	}
	return out
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	stage := newMockStage("normalize")
	if err := r.Register(stage); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := r.Register(stage)
	if !errors.Is(err, ErrStageAlreadyRegistered) {
		t.Fatalf("Register() duplicate error = %v, want ErrStageAlreadyRegistered", err)
	}

	got, ok := r.Get("normalize")
	if !ok || got.Name() != "normalize" {
		t.Errorf("Get() = %v, %v", got, ok)
	}
	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get() returned true for unregistered stage")
	}
}

func TestRegistry_ListAndNames(t *testing.T) {
	r := NewRegistry()
	r.Register(newMockStage("segment"))
	r.Register(newMockStage("flatten"))
	r.Register(newMockStage("resolve"))

	want := []string{"segment", "flatten", "resolve"}
	got := names(r.List())
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	n := r.Names()
	if len(n) != 3 || n[0] != "segment" || n[2] != "resolve" {
		t.Errorf("Names() = %v", n)
	}
}

func TestRegistry_GetOrdered(t *testing.T) {
	tests := []struct {
		name      string
		stages    []stageDef
		wantOrder []string
		wantErr   error
	}{
		{
			name:      "no dependencies",
			stages:    []stageDef{{"a", nil}, {"b", nil}, {"c", nil}},
			wantOrder: []string{"a", "b", "c"},
		},
		{
			name:      "linear dependencies",
			stages:    []stageDef{{"c", []string{"b"}}, {"b", []string{"a"}}, {"a", nil}},
			wantOrder: []string{"a", "b", "c"},
		},
		{
			name: "diamond dependencies",
			stages: []stageDef{
				{"d", []string{"b", "c"}},
				{"b", []string{"a"}},
				{"c", []string{"a"}},
				{"a", nil},
			},
		},
		{
			name:    "cycle detection",
			stages:  []stageDef{{"a", []string{"b"}}, {"b", []string{"a"}}},
			wantErr: ErrDependencyCycle,
		},
		{
			name:    "unknown dependency",
			stages:  []stageDef{{"a", []string{"nonexistent"}}},
			wantErr: ErrStageNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, s := range tt.stages {
				r.Register(newMockStage(s.name, s.deps...))
			}

			ordered, err := r.GetOrdered()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GetOrdered() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetOrdered() error = %v", err)
			}
			if len(ordered) != len(tt.stages) {
				t.Fatalf("got %d stages, want %d", len(ordered), len(tt.stages))
			}
			for i, want := range tt.wantOrder {
				if ordered[i].Name() != want {
					t.Errorf("position %d: got %q, want %q", i, ordered[i].Name(), want)
				}
			}

			pos := map[string]int{}
			for i, s := range ordered {
				pos[s.Name()] = i
			}
			for _, s := range tt.stages {
				for _, d := range s.deps {
					if pos[d] > pos[s.name] {
						t.Errorf("%s ordered before its dependency %s", s.name, d)
					}
				}
			}
		})
	}
}

func TestRegistry_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := NewRegistry()
		r.Register(newMockStage("a"))
		r.Register(newMockStage("b", "a"))
		if err := r.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	})

	t.Run("unknown dependency", func(t *testing.T) {
		r := NewRegistry()
		r.Register(newMockStage("a", "missing"))
		if err := r.Validate(); err == nil {
			t.Fatal("expected error for unknown dependency")
		}
	})
}

func TestRegistry_DependentsAndDependencies(t *testing.T) {
	r := NewRegistry()
	r.Register(newMockStage("a"))
	r.Register(newMockStage("b", "a"))
	r.Register(newMockStage("c", "a"))
	r.Register(newMockStage("d", "b", "c"))

	dependents := map[string]bool{}
	for _, s := range r.DependentsOf("a") {
		dependents[s.Name()] = true
	}
	if len(dependents) != 2 || !dependents["b"] || !dependents["c"] {
		t.Errorf("DependentsOf(a) = %v, want b and c", dependents)
	}

	deps := map[string]bool{}
	for _, s := range r.DependenciesOf("d") {
		deps[s.Name()] = true
	}
	if len(deps) != 2 || !deps["b"] || !deps["c"] {
		t.Errorf("DependenciesOf(d) = %v, want b and c", deps)
	}

	if got := r.DependenciesOf("nonexistent"); got != nil {
		t.Errorf("DependenciesOf(nonexistent) = %v, want nil", got)
	}
}

func TestRegistry_Through(t *testing.T) {
	r := NewRegistry()
	r.Register(newMockStage("normalize"))
	r.Register(newMockStage("segment", "normalize"))
	r.Register(newMockStage("flatten", "segment"))
	r.Register(newMockStage("lint"))
	r.Register(newMockStage("resolve", "flatten"))

	got, err := r.Through("flatten")
	if err != nil {
		t.Fatalf("Through() error = %v", err)
	}
	want := []string{"normalize", "segment", "flatten"}
	gotNames := names(got)
	if len(gotNames) != len(want) {
		t.Fatalf("Through(flatten) = %v, want %v", gotNames, want)
	}
	for i := range want {
		if gotNames[i] != want[i] {
			t.Errorf("Through(flatten)[%d] = %q, want %q", i, gotNames[i], want[i])
		}
	}

	if _, err := r.Through("missing"); !errors.Is(err, ErrStageNotFound) {
		t.Errorf("Through(missing) error = %v, want ErrStageNotFound", err)
	}
}
