package llmchunk

import (
	"encoding/json"
	"errors"
)

var (
	// ErrMalformed marks model output that could not be turned into a
	// structure, even after repair attempts.
	ErrMalformed = errors.New("malformed structure")

	// ErrNoStructure is returned when the model reports no structural
	// element at all.
	ErrNoStructure = errors.New("no structural elements")
)

// Schema validates the model's answer: an array of CHAPTER, SECTION and
// ARTICLE elements, articles carrying line spans.
var Schema = json.RawMessage(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {"$ref": "#/$defs/node"},
  "$defs": {
    "node": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["CHAPTER", "SECTION", "ARTICLE"]},
        "id_text": {"type": "string"},
        "title": {"type": "string"},
        "start_line": {"type": "integer", "minimum": 1},
        "end_line": {"type": "integer", "minimum": 1},
        "children": {"type": "array", "items": {"$ref": "#/$defs/node"}}
      },
      "if": {"properties": {"type": {"const": "ARTICLE"}}},
      "then": {"required": ["start_line", "end_line"]},
      "else": {"required": ["id_text"]}
    }
  }
}`)

// rawNode is one element of the model's answer.
type rawNode struct {
	Type      string    `json:"type"`
	IDText    string    `json:"id_text"`
	Title     string    `json:"title"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Children  []rawNode `json:"children"`
}
