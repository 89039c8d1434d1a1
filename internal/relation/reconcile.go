package relation

import (
	"log/slog"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/metrics"
)

// reconcile applies the deterministic post-conditions to a classifier
// answer for article a:
//   - targets are canonicalized to {doc}_{number}; targets without an
//     article number and self-loops are dropped
//   - external entries keyed outside the current document are dropped
//   - external targets inside the current document move to a's main lists
//   - entries sharing a key are merged and empty entries removed
func reconcile(a legal.Article, cls *Classification, logger *slog.Logger, m *metrics.Metrics) (legal.Relations, []ExternalEntry, Corrections) {
	var (
		rel legal.Relations
		fix Corrections
	)
	log := logger.With("document_id", a.DocumentID, "article_id", a.ID)

	canonical := func(id string) (string, string, bool) {
		c, ok := legal.CanonicalArticleID(id)
		if !ok {
			fix.DroppedTargets++
			m.Correction("dropped_target")
			log.Debug("dropping reference without article number", "target", id)
			return "", "", false
		}
		doc, _, _ := legal.SplitArticleID(c)
		return c, doc, true
	}
	addMain := func(t legal.RelationType, id string) {
		if id == a.ID {
			fix.DroppedTargets++
			m.Correction("self_loop")
			return
		}
		rel.Add(t, id)
	}

	for _, t := range legal.RelationTypes {
		for _, id := range cls.Relations.Get(t) {
			if c, _, ok := canonical(id); ok {
				addMain(t, c)
			}
		}
	}

	var (
		order   []string
		entries = make(map[string]*legal.Relations)
	)
	for _, e := range cls.External {
		src, ok := legal.CanonicalArticleID(e.SourceArticleID)
		if ok {
			doc, _, _ := legal.SplitArticleID(src)
			ok = doc == a.DocumentID
		}
		if !ok {
			fix.DroppedEntries++
			m.Correction("dropped_entry")
			log.Debug("dropping external entry outside current document", "key", e.SourceArticleID)
			continue
		}

		for _, t := range legal.RelationTypes {
			for _, id := range e.Relations.Get(t) {
				tgt, tgtDoc, ok := canonical(id)
				if !ok {
					continue
				}
				if tgtDoc == a.DocumentID {
					fix.SelfReferences++
					m.Correction("self_reference")
					log.Warn("moving self-reference out of external effects",
						"source", src, "target", tgt, "relation", t.String())
					addMain(t, tgt)
					continue
				}
				r, seen := entries[src]
				if !seen {
					r = &legal.Relations{}
					entries[src] = r
					order = append(order, src)
				}
				r.Add(t, tgt)
			}
		}
	}

	var external []ExternalEntry
	for _, src := range order {
		r := entries[src]
		if r.Len() == 0 {
			continue
		}
		r.Normalize()
		external = append(external, ExternalEntry{SourceArticleID: src, Relations: *r})
	}
	rel.Normalize()
	return rel, external, fix
}
