// Package index prepares articles for the vector store: the flat metadata
// payload stored beside each article and the batched embedding writes.
package index

import (
	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/relation"
)

// Payload keys.
const (
	KeyID             = "id"
	KeyTitle          = "title"
	KeyDocumentID     = "document_id"
	KeyDocumentTitle  = "document_title"
	KeyDocumentStatus = "document_status"
	KeyEffectiveDate  = "effective_date"
	KeyExpiredDate    = "expired_date"
	KeyChapter        = "chapter"
	KeySection        = "section"
)

// Payload flattens a resolved article and its document metadata into the
// key/value map stored with the embedding. Every relation type gets a key
// (sua_doi_bo_sung, thay_the, ...) holding its target ids, empty when the
// article has none. Chapter and section are nil outside a container.
func Payload(info legal.DocumentInfo, res relation.Result) map[string]any {
	a := res.Article
	rels := res.Relations

	p := map[string]any{
		KeyID:             a.ID,
		KeyTitle:          a.Title,
		KeyDocumentID:     info.DocumentID,
		KeyDocumentTitle:  info.DocumentTitle,
		KeyDocumentStatus: info.DocumentStatus,
		KeyEffectiveDate:  info.EffectiveDate,
		KeyExpiredDate:    info.ExpiredDate,
		KeyChapter:        deref(a.Chapter),
		KeySection:        deref(a.Section),
	}
	for _, t := range legal.RelationTypes {
		p[t.PayloadKey()] = append([]string{}, rels.Get(t)...)
	}
	return p
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
