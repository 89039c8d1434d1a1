// Package flatten turns a structural forest into one record per article.
package flatten

import (
	"github.com/jackzampolin/vbpl/internal/legal"
)

// Flatten emits an Article for every ARTICLE node in document order,
// annotated with its nearest chapter and section. Clauses stay nested on
// the article.
func Flatten(info legal.DocumentInfo, forest legal.Forest) []legal.Article {
	var out []legal.Article
	forest.Walk(func(n *legal.Node, parents []*legal.Node) bool {
		if n.Kind != legal.KindArticle {
			return true
		}
		out = append(out, legal.Article{
			DocumentID: info.DocumentID,
			ID:         legal.ArticleID(info.DocumentID, n.Ordinal),
			NodeID:     n.ID,
			Ordinal:    n.Ordinal,
			Label:      n.Label,
			Title:      n.Title,
			Chapter:    nearest(parents, legal.KindChapter),
			Section:    nearest(parents, legal.KindSection),
			Content:    n.Content,
			Clauses:    n.Children,
		})
		return false
	})
	return out
}

// nearest renders the closest ancestor of kind k as "label: title".
func nearest(parents []*legal.Node, k legal.Kind) *string {
	for i := len(parents) - 1; i >= 0; i-- {
		p := parents[i]
		if p.Kind != k {
			continue
		}
		s := Heading(p)
		return &s
	}
	return nil
}

// Heading renders a node as "label: title", or just the label when the
// node has no title.
func Heading(n *legal.Node) string {
	if n.Title == "" {
		return n.Label
	}
	return n.Label + ": " + n.Title
}
