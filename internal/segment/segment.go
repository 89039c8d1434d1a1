// Package segment turns normalized legal text into a Chương/Mục/Điều/Khoản
// tree.
//
// Every level is split by the same continuity-checked scan: a marker opens a
// new node only when it is the first of its kind in scope or continues the
// previous ordinal by exactly one. Anything else is body text of the open
// node, which keeps in-text references such as "Điều 12 Nghị định này" from
// splitting an article.
package segment

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/textnorm"
)

// root is the pseudo-kind of the document scope.
const root legal.Kind = 0

// childKinds lists the kinds that may open children in each scope. The
// first kind actually found fixes the level; the others fold into content.
var childKinds = map[legal.Kind][]legal.Kind{
	root:              {legal.KindChapter, legal.KindSection, legal.KindArticle},
	legal.KindChapter: {legal.KindSection, legal.KindArticle},
	legal.KindSection: {legal.KindArticle},
}

// Options configures a Segmenter.
type Options struct {
	Logger *slog.Logger
}

// Document is a segmented document together with the header text that
// precedes the first structural marker.
type Document struct {
	Preamble string       `json:"preamble,omitempty"`
	Forest   legal.Forest `json:"forest"`
}

// Segmenter splits normalized text into a forest of structural nodes.
// It is stateless and safe for concurrent use.
type Segmenter struct {
	logger *slog.Logger
}

// New creates a Segmenter.
func New(opts Options) *Segmenter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{logger: logger}
}

// Segment returns the structural forest of text. Text without any
// recognized marker yields an empty forest.
func (s *Segmenter) Segment(text string) legal.Forest {
	return s.SegmentDocument(text).Forest
}

// SegmentDocument is Segment that also keeps the preamble.
func (s *Segmenter) SegmentDocument(text string) Document {
	lines := textnorm.Lines(textnorm.Normalize(text))
	if len(lines) == 0 {
		return Document{}
	}
	sc := newScanner(lines)
	leadEnd, nodes := sc.nodes(root, 0, len(lines))
	doc := Document{
		Preamble: textnorm.JoinText(lines[:leadEnd]),
		Forest:   legal.Forest(nodes),
	}
	s.logger.Debug("segmented document",
		"lines", len(lines),
		"chapters", doc.Forest.Count(legal.KindChapter),
		"sections", doc.Forest.Count(legal.KindSection),
		"articles", doc.Forest.Count(legal.KindArticle),
		"clauses", doc.Forest.Count(legal.KindClause))
	return doc
}

// Segment runs a default Segmenter.
func Segment(text string) legal.Forest {
	return New(Options{}).Segment(text)
}

type span struct {
	marker     textnorm.Marker
	start, end int // line indexes, end exclusive
}

type scanner struct {
	lines   []textnorm.Line
	markers []*textnorm.Marker

	// Article numbers run across the whole document, so the last accepted
	// ordinal is shared by every scope.
	lastArticle int
}

func newScanner(lines []textnorm.Line) *scanner {
	sc := &scanner{lines: lines, markers: make([]*textnorm.Marker, len(lines))}
	for i, l := range lines {
		if m, ok := textnorm.DetectMarker(l); ok && m.Kind != legal.KindClause {
			sc.markers[i] = &m
		}
	}
	return sc
}

// nodes builds the children of a scope covering lines [lo, hi). It returns
// the end of the scope's lead text and the child nodes.
func (sc *scanner) nodes(parent legal.Kind, lo, hi int) (int, []*legal.Node) {
	spans := sc.split(parent, lo, hi)
	if len(spans) == 0 {
		return hi, nil
	}
	out := make([]*legal.Node, 0, len(spans))
	for _, sp := range spans {
		if sp.marker.Kind == legal.KindArticle {
			out = append(out, sc.article(sp))
		} else {
			out = append(out, sc.container(sp))
		}
	}
	return spans[0].start, out
}

// split runs the continuity scan for the first allowed kind found in scope.
func (sc *scanner) split(parent legal.Kind, lo, hi int) []span {
	level := legal.Kind(-1)
	for i := lo; i < hi && level < 0; i++ {
		if m := sc.markers[i]; m != nil && allowed(parent, m.Kind) {
			level = m.Kind
		}
	}
	if level < 0 {
		return nil
	}

	var spans []span
	prev := 0
	for i := lo; i < hi; i++ {
		m := sc.markers[i]
		if m == nil || m.Kind != level || !sc.accept(level, len(spans) == 0, prev, m.Ordinal) {
			continue
		}
		if n := len(spans); n > 0 {
			spans[n-1].end = i
		}
		spans = append(spans, span{marker: *m, start: i, end: hi})
		prev = m.Ordinal
		if level == legal.KindArticle {
			sc.lastArticle = m.Ordinal
		}
	}
	return spans
}

func (sc *scanner) accept(kind legal.Kind, first bool, prev, ordinal int) bool {
	if kind == legal.KindArticle && first {
		return ordinal > sc.lastArticle
	}
	return first || ordinal == prev+1
}

func allowed(parent, k legal.Kind) bool {
	for _, c := range childKinds[parent] {
		if c == k {
			return true
		}
	}
	return false
}

// container builds a CHAPTER or SECTION node.
func (sc *scanner) container(sp span) *legal.Node {
	leadEnd, children := sc.nodes(sp.marker.Kind, sp.start+1, sp.end)
	lead := sc.lines[sp.start+1 : leadEnd]
	return &legal.Node{
		Kind:     sp.marker.Kind,
		Label:    sp.marker.Label,
		Ordinal:  sp.marker.Ordinal,
		Title:    containerTitle(sp.marker.Rest, lead, len(children) > 0),
		Content:  textnorm.JoinText(sc.lines[sp.start:leadEnd]),
		Children: children,
	}
}

// article builds an ARTICLE node and its clauses.
func (sc *scanner) article(sp span) *legal.Node {
	return ArticleNode(sp.marker, sc.lines[sp.start:sp.end])
}

// ArticleNode builds an ARTICLE node from its marker and its lines, label
// line first. The title is the text after the label, or the first sentence
// of the body when the label line carries none.
func ArticleNode(m textnorm.Marker, lines []textnorm.Line) *legal.Node {
	var body []textnorm.Line
	if len(lines) > 1 {
		body = lines[1:]
	}
	title := m.Rest
	if title == "" {
		for _, l := range body {
			if !l.Blank() {
				title = textnorm.FirstSentence(l.Text)
				break
			}
		}
	}
	return &legal.Node{
		Kind:     legal.KindArticle,
		Label:    m.Label,
		Ordinal:  m.Ordinal,
		Title:    CleanTitle(title),
		Content:  textnorm.JoinText(lines),
		Children: Clauses(body),
	}
}

var titleNoise = regexp.MustCompile(`[#*_\[\]()]|(?:^|\s)[-–—•]+(?:\s|$)`)

// CleanTitle strips markdown decoration and bullets from a heading.
func CleanTitle(s string) string {
	return textnorm.CollapseSpace(titleNoise.ReplaceAllString(s, " "))
}

// containerTitle joins the label remainder with the lead lines before the
// first child. Without children only the first line of text is used, since
// the rest is body.
func containerTitle(rest string, lead []textnorm.Line, hasChildren bool) string {
	parts := []string{}
	if rest != "" {
		parts = append(parts, rest)
	}
	for _, l := range lead {
		if l.Blank() {
			continue
		}
		if !hasChildren && len(parts) > 0 {
			break
		}
		parts = append(parts, l.Text)
	}
	return CleanTitle(strings.Join(parts, " "))
}

// Clauses splits an article body into numbered clauses. A "N." marker opens
// a clause only outside quotations and only when it continues the previous
// number. A body without any clause marker falls back to one clause per
// non-blank line.
func Clauses(body []textnorm.Line) []*legal.Node {
	type clauseSpan struct {
		marker     textnorm.Marker
		start, end int
	}
	var spans []clauseSpan
	quotes, prev := 0, 0
	for i, l := range body {
		if quotes%2 == 0 {
			if m, ok := textnorm.DetectClause(l); ok && (len(spans) == 0 || m.Ordinal == prev+1) {
				if n := len(spans); n > 0 {
					spans[n-1].end = i
				}
				spans = append(spans, clauseSpan{marker: m, start: i, end: len(body)})
				prev = m.Ordinal
			}
		}
		quotes += textnorm.QuoteDelta(l.Text)
	}

	if len(spans) == 0 {
		return fallbackClauses(body)
	}
	out := make([]*legal.Node, 0, len(spans))
	for _, sp := range spans {
		content := textnorm.JoinText(body[sp.start:sp.end])
		title := sp.marker.Rest
		if title == "" {
			title = content
		}
		out = append(out, &legal.Node{
			Kind:    legal.KindClause,
			Label:   sp.marker.Label,
			Ordinal: sp.marker.Ordinal,
			Title:   textnorm.FirstSentence(title),
			Content: content,
		})
	}
	return out
}

func fallbackClauses(body []textnorm.Line) []*legal.Node {
	var out []*legal.Node
	for _, l := range body {
		if l.Blank() {
			continue
		}
		n := len(out) + 1
		out = append(out, &legal.Node{
			Kind:    legal.KindClause,
			Label:   strconv.Itoa(n),
			Ordinal: n,
			Title:   textnorm.FirstSentence(l.Text),
			Content: l.Text,
		})
	}
	return out
}
