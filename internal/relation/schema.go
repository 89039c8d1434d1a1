package relation

import (
	"encoding/json"

	"github.com/jackzampolin/vbpl/internal/legal"
)

// ExternalKey is the classifier output key holding per-article effects on
// other documents.
const ExternalKey = "external"

// Schema is the JSON schema classifier output is validated against. It is
// built from the relation labels so the wire keys have one source.
var Schema = buildSchema()

func buildSchema() json.RawMessage {
	ids := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	lists := make(map[string]any, len(legal.RelationTypes))
	required := make([]string, 0, len(legal.RelationTypes)+1)
	for _, t := range legal.RelationTypes {
		lists[t.Label()] = map[string]any{"$ref": "#/$defs/ids"}
		required = append(required, t.Label())
	}
	required = append(required, ExternalKey)

	top := make(map[string]any, len(lists)+1)
	for k, v := range lists {
		top[k] = v
	}
	top[ExternalKey] = map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"$ref": "#/$defs/relations"},
		},
	}

	schema := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"required":   required,
		"properties": top,
		"$defs": map[string]any{
			"ids": ids,
			"relations": map[string]any{
				"type":                 "object",
				"required":             required[:len(legal.RelationTypes)],
				"properties":           lists,
				"additionalProperties": false,
			},
		},
	}
	b, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return b
}

// wireOutput mirrors the classifier JSON. Relation keys are decoded by
// label, so the Vietnamese strings stop here.
type wireOutput map[string]json.RawMessage

func decodeRelations(raw map[string]json.RawMessage) (legal.Relations, error) {
	var rel legal.Relations
	for k, v := range raw {
		t, ok := legal.ParseRelationLabel(k)
		if !ok {
			continue
		}
		var ids []string
		if err := json.Unmarshal(v, &ids); err != nil {
			return rel, err
		}
		for _, id := range ids {
			rel.Add(t, id)
		}
	}
	return rel, nil
}

func decodeOutput(parsed json.RawMessage) (*Classification, error) {
	var out wireOutput
	if err := json.Unmarshal(parsed, &out); err != nil {
		return nil, err
	}
	rel, err := decodeRelations(out)
	if err != nil {
		return nil, err
	}
	c := &Classification{Relations: rel}

	if raw, ok := out[ExternalKey]; ok {
		var entries []map[string]map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, err
		}
		for _, entry := range entries {
			for source, lists := range entry {
				r, err := decodeRelations(lists)
				if err != nil {
					return nil, err
				}
				c.External = append(c.External, ExternalEntry{SourceArticleID: source, Relations: r})
			}
		}
	}
	return c, nil
}
