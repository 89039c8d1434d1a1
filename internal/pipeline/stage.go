package pipeline

import (
	"context"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/relation"
	"github.com/jackzampolin/vbpl/internal/segment"
)

// Stage is one step of document processing. Stages read and extend the
// shared State; dependencies fix their order.
type Stage interface {
	// Identity
	Name() string           // e.g., "segment", "resolve"
	Dependencies() []string // Stages that must run first

	// Metadata
	Description() string

	// Run executes the stage. A stage whose component is not configured
	// records itself in State.Skipped and returns nil.
	Run(ctx context.Context, p *Pipeline, st *State) error
}

// State is the document as it moves through the stages.
type State struct {
	Document legal.CrawledDocument `json:"-"`

	Text      string            `json:"-"`          // normalized text
	ChunkMode string            `json:"chunk_mode"` // mode that produced Segmented
	Segmented segment.Document  `json:"segmented"`
	Articles  []legal.Article   `json:"articles"`
	Results   []relation.Result `json:"results,omitempty"`
	Edges     []legal.Edge      `json:"edges,omitempty"`
	Embedded  int               `json:"embedded"`

	Completed []string `json:"completed"`
	Skipped   []string `json:"skipped,omitempty"`
}

// Info is shorthand for the document metadata.
func (st *State) Info() legal.DocumentInfo { return st.Document.DocumentInfo }

// stageFunc adapts a function to Stage.
type stageFunc struct {
	name        string
	deps        []string
	description string
	run         func(p *Pipeline, ctx context.Context, st *State) error
}

func (s stageFunc) Name() string           { return s.name }
func (s stageFunc) Dependencies() []string { return s.deps }
func (s stageFunc) Description() string    { return s.description }

func (s stageFunc) Run(ctx context.Context, p *Pipeline, st *State) error {
	return s.run(p, ctx, st)
}

// Summary counts articles by resolution state. Articles the resolver
// never saw count as PENDING.
func (st *State) Summary() map[string]int {
	out := make(map[string]int)
	for _, r := range st.records() {
		out[r.State]++
	}
	return out
}
