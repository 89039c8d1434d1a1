package llmchunk

import (
	"fmt"
	"log/slog"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/segment"
	"github.com/jackzampolin/vbpl/internal/textnorm"
)

// root is the pseudo-kind of the document scope.
const root legal.Kind = 0

// allowedChildren mirrors the nesting the deterministic segmenter accepts.
var allowedChildren = map[legal.Kind]map[legal.Kind]bool{
	root:              {legal.KindChapter: true, legal.KindSection: true, legal.KindArticle: true},
	legal.KindChapter: {legal.KindSection: true, legal.KindArticle: true},
	legal.KindSection: {legal.KindArticle: true},
}

// parseLabel turns a container's id_text into a marker of kind.
func parseLabel(kind legal.Kind, idText string) (textnorm.Marker, error) {
	m, ok := textnorm.DetectMarker(textnorm.Line{Text: textnorm.Clean(idText)})
	if !ok || m.Kind != kind {
		return textnorm.Marker{}, fmt.Errorf("id_text %q is not a %s label", idText, kind)
	}
	return m, nil
}

// assembler resolves the model's line spans against the document and
// applies the same article continuity rule as the deterministic segmenter.
type assembler struct {
	lines  []textnorm.Line
	logger *slog.Logger

	last    int // last accepted article ordinal, document-wide
	folded  int
	dropped int
}

type pendingArticle struct {
	idx        int
	marker     textnorm.Marker
	start, end int // 1-based, inclusive
}

func assemble(lines []textnorm.Line, nodes []rawNode, logger *slog.Logger) (segment.Document, error) {
	a := &assembler{lines: lines, logger: logger}
	if err := a.prepare(nodes); err != nil {
		return segment.Document{}, err
	}
	forest, err := a.build(nodes, root)
	if err != nil {
		return segment.Document{}, err
	}
	if len(forest) == 0 {
		return segment.Document{}, ErrNoStructure
	}
	if a.folded > 0 || a.dropped > 0 {
		logger.Debug("reconciled article continuity", "folded", a.folded, "dropped", a.dropped)
	}
	return segment.Document{
		Preamble: textnorm.JoinText(lines[:a.preambleEnd(nodes)]),
		Forest:   legal.Forest(forest),
	}, nil
}

// prepare checks every article span and trims overlapping ends so that
// consecutive articles never share a line.
func (a *assembler) prepare(nodes []rawNode) error {
	var arts []*rawNode
	collectArticles(nodes, &arts)
	for i, n := range arts {
		if n.StartLine < 1 || n.StartLine > len(a.lines) {
			return fmt.Errorf("article start_line %d outside 1..%d", n.StartLine, len(a.lines))
		}
		if n.EndLine < n.StartLine {
			return fmt.Errorf("article end_line %d before start_line %d", n.EndLine, n.StartLine)
		}
		if n.EndLine > len(a.lines) {
			n.EndLine = len(a.lines)
		}
		if i > 0 && n.StartLine <= arts[i-1].StartLine {
			return fmt.Errorf("article at line %d listed after line %d", n.StartLine, arts[i-1].StartLine)
		}
	}
	for i := 0; i+1 < len(arts); i++ {
		if next := arts[i+1].StartLine; arts[i].EndLine >= next {
			arts[i].EndLine = next - 1
		}
	}
	return nil
}

func collectArticles(nodes []rawNode, out *[]*rawNode) {
	for i := range nodes {
		if nodes[i].Type == legal.KindArticle.String() {
			*out = append(*out, &nodes[i])
			continue
		}
		collectArticles(nodes[i].Children, out)
	}
}

// build converts one scope. An article whose label line does not continue
// the numbering is folded into the previous article of the same scope.
func (a *assembler) build(nodes []rawNode, parent legal.Kind) ([]*legal.Node, error) {
	var (
		out     []*legal.Node
		pending []*pendingArticle
		prev    *pendingArticle
	)
	for _, n := range nodes {
		kind, err := legal.ParseKind(n.Type)
		if err != nil {
			return nil, err
		}
		if !allowedChildren[parent][kind] {
			return nil, fmt.Errorf("%s not allowed under %s", kind, scopeName(parent))
		}

		if kind == legal.KindArticle {
			m, ok := textnorm.DetectMarker(a.lines[n.StartLine-1])
			if ok && m.Kind == legal.KindArticle && a.accept(prev, m.Ordinal) {
				p := &pendingArticle{idx: len(out), marker: m, start: n.StartLine, end: n.EndLine}
				out = append(out, nil)
				pending = append(pending, p)
				prev = p
				a.last = m.Ordinal
				continue
			}
			if prev != nil {
				a.logger.Debug("folding out-of-sequence article",
					"line", n.StartLine, "into", prev.marker.Label)
				prev.end = n.EndLine
				a.folded++
				continue
			}
			a.logger.Warn("dropping article span without a preceding article",
				"line", n.StartLine, "text", a.lines[n.StartLine-1].Text)
			a.dropped++
			continue
		}

		m, err := parseLabel(kind, n.IDText)
		if err != nil {
			return nil, err
		}
		children, err := a.build(n.Children, kind)
		if err != nil {
			return nil, err
		}
		title := segment.CleanTitle(n.Title)
		if title == "" {
			title = segment.CleanTitle(m.Rest)
		}
		content := m.Label
		if title != "" {
			content += "\n" + title
		}
		out = append(out, &legal.Node{
			Kind:     kind,
			Label:    m.Label,
			Ordinal:  m.Ordinal,
			Title:    title,
			Content:  content,
			Children: children,
		})
		prev = nil
	}

	for _, p := range pending {
		out[p.idx] = segment.ArticleNode(p.marker, a.lines[p.start-1:p.end])
	}
	return out, nil
}

func (a *assembler) accept(prev *pendingArticle, ordinal int) bool {
	if prev == nil {
		return ordinal > a.last
	}
	return ordinal == prev.marker.Ordinal+1
}

// preambleEnd is the index of the first structural label line at or before
// the first article.
func (a *assembler) preambleEnd(nodes []rawNode) int {
	var arts []*rawNode
	collectArticles(nodes, &arts)
	end := len(a.lines)
	if len(arts) > 0 {
		end = arts[0].StartLine - 1
	}
	for i := 0; i < end; i++ {
		if m, ok := textnorm.DetectMarker(a.lines[i]); ok && m.Kind != legal.KindClause {
			return i
		}
	}
	return end
}

func scopeName(k legal.Kind) string {
	if k == root {
		return "document"
	}
	return k.String()
}
