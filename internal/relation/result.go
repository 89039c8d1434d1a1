package relation

import (
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/vbpl/internal/legal"
)

// State is the classification state of one article.
type State int

const (
	Pending State = iota
	InFlight
	Retry
	Resolved
	FailedEmpty
)

var stateNames = [...]string{"PENDING", "IN_FLIGHT", "RETRY", "RESOLVED", "FAILED_EMPTY"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == Resolved || s == FailedEmpty }

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Corrections counts the post-processing fixes applied to a classification.
type Corrections struct {
	SelfReferences int `json:"self_references"` // external targets moved to the main lists
	DroppedTargets int `json:"dropped_targets"` // targets without an article number, or self-loops
	DroppedEntries int `json:"dropped_entries"` // external keys outside the current document
}

// Result is the outcome of resolving one article.
type Result struct {
	Article     legal.Article   `json:"article"`
	State       State           `json:"state"`
	Attempts    int             `json:"attempts"`
	History     []State         `json:"history"`
	Relations   legal.Relations `json:"relations"`
	External    []ExternalEntry `json:"external"`
	Corrections Corrections     `json:"corrections"`
	Err         error           `json:"-"`

	// set when every failed attempt was a transport error
	transportFailure bool
}

func newResult(a legal.Article) Result {
	r := Result{Article: a, State: Pending, History: []State{Pending}}
	r.Relations.Normalize()
	return r
}

func (r *Result) transition(s State) {
	r.State = s
	r.History = append(r.History, s)
}

// MarshalJSON adds the error message and keeps empty lists as arrays.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	out.Relations.Normalize()
	if out.External == nil {
		out.External = []ExternalEntry{}
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Edges returns the relationship edges for graph ingestion. Targets in the
// article's own document are SELF; everything else is EXTERNAL.
func (r *Result) Edges() []legal.Edge {
	type key struct {
		src string
		t   legal.RelationType
		tgt string
	}
	seen := make(map[key]bool)
	var edges []legal.Edge
	add := func(src string, t legal.RelationType, tgt string) {
		k := key{src, t, tgt}
		if seen[k] {
			return
		}
		seen[k] = true
		scope := legal.External
		if doc, _, ok := legal.SplitArticleID(tgt); ok && doc == r.Article.DocumentID {
			scope = legal.Self
		}
		edges = append(edges, legal.Edge{SourceArticleID: src, Type: t, TargetArticleID: tgt, Scope: scope})
	}

	for _, t := range legal.RelationTypes {
		for _, tgt := range r.Relations.Get(t) {
			add(r.Article.ID, t, tgt)
		}
	}
	for _, e := range r.External {
		for _, t := range legal.RelationTypes {
			for _, tgt := range e.Relations.Get(t) {
				add(e.SourceArticleID, t, tgt)
			}
		}
	}
	return edges
}

// ExternalEffects returns only the edges that leave the document.
func (r *Result) ExternalEffects() []legal.Edge {
	var out []legal.Edge
	for _, e := range r.Edges() {
		if e.Scope == legal.External {
			out = append(out, e)
		}
	}
	return out
}
