// Package legal holds the data model shared by the chunking and
// relationship stages: structural nodes, flattened articles, crawled
// document metadata and relationship edges.
package legal

import (
	"encoding/json"
	"fmt"
)

// Kind is the structural level of a node.
type Kind int

const (
	KindChapter Kind = iota + 1 // Chương
	KindSection                 // Mục
	KindArticle                 // Điều
	KindClause                  // Khoản
)

var kindNames = map[Kind]string{
	KindChapter: "CHAPTER",
	KindSection: "SECTION",
	KindArticle: "ARTICLE",
	KindClause:  "CLAUSE",
}

var kindPrefixes = map[Kind]string{
	KindChapter: "Chương",
	KindSection: "Mục",
	KindArticle: "Điều",
	KindClause:  "Khoản",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Prefix returns the Vietnamese label word for the kind.
func (k Kind) Prefix() string {
	return kindPrefixes[k]
}

// ParseKind accepts the upper-case names produced by String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown node kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Node is one element of the document tree.
//
// Content is the text owned by the node: for chapters and sections it is
// the label line plus any lead text before the first child; for articles it
// is the whole article, clauses included; for clauses it is the clause span.
type Node struct {
	Kind     Kind    `json:"kind"`
	Label    string  `json:"label"`
	Ordinal  int     `json:"ordinal"`
	Title    string  `json:"title,omitempty"`
	Content  string  `json:"content,omitempty"`
	ID       string  `json:"id,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Forest is the ordered list of top-level nodes of one document.
type Forest []*Node

// Walk visits every node in pre-order. Returning false from fn skips the
// node's children.
func (f Forest) Walk(fn func(n *Node, parents []*Node) bool) {
	var visit func(n *Node, parents []*Node)
	visit = func(n *Node, parents []*Node) {
		if !fn(n, parents) {
			return
		}
		next := append(parents[:len(parents):len(parents)], n)
		for _, c := range n.Children {
			visit(c, next)
		}
	}
	for _, n := range f {
		visit(n, nil)
	}
}

// Count returns how many nodes of kind k the forest holds at any depth.
func (f Forest) Count(k Kind) int {
	n := 0
	f.Walk(func(node *Node, _ []*Node) bool {
		if node.Kind == k {
			n++
		}
		return true
	})
	return n
}

// MarshalJSON keeps an empty forest as [] rather than null.
func (f Forest) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]*Node(f))
}
