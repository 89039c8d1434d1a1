package relation

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/prompts"
)

// Prompt keys.
const (
	SystemPromptKey = "relation.system"
	UserPromptKey   = "relation.user"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPrompt string

// Prompts returns the embedded classification prompts for registration
// with a prompts.Resolver.
func Prompts() []prompts.EmbeddedPrompt {
	return []prompts.EmbeddedPrompt{
		{Key: SystemPromptKey, Text: systemPrompt, Description: "Relationship classification rubric"},
		{Key: UserPromptKey, Text: userPrompt, Description: "Per-article classification input"},
	}
}

// PromptData fills the user template.
type PromptData struct {
	DocumentID string
	Metadata   string
	Content    string
}

var parentheticalRe = regexp.MustCompile(`\s*\([^()]*\)`)

// StripParentheticals removes "(...)" groups, which on the portal carry
// dates and issuing bodies that only confuse the classifier.
func StripParentheticals(s string) string {
	for {
		out := parentheticalRe.ReplaceAllString(s, "")
		if out == s {
			return strings.TrimSpace(out)
		}
		s = out
	}
}

// Metadata renders a document's relationship panel for the prompt: an
// indented JSON object with parentheticals stripped from keys and titles.
func Metadata(rel map[string][]legal.RelatedDocument) string {
	clean := make(map[string][]legal.RelatedDocument, len(rel))
	for k, docs := range rel {
		key := StripParentheticals(k)
		for _, d := range docs {
			clean[key] = append(clean[key], legal.RelatedDocument{
				Title: StripParentheticals(d.Title),
				ID:    d.ID,
			})
		}
		if _, ok := clean[key]; !ok {
			clean[key] = []legal.RelatedDocument{}
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(clean); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}

type renderedPrompt struct {
	system, user string
	key, hash    string
}

// render resolves both templates for the document (applying overrides when
// a resolver is configured) and fills the user template.
func render(ctx context.Context, resolver *prompts.Resolver, req Request) (*renderedPrompt, error) {
	sys, usr := systemPrompt, userPrompt
	hash := prompts.HashText(systemPrompt)
	if resolver != nil {
		p, err := resolver.Resolve(ctx, SystemPromptKey, req.Info.DocumentID)
		if err != nil {
			return nil, err
		}
		sys, hash = p.Text, p.Hash
		u, err := resolver.Resolve(ctx, UserPromptKey, req.Info.DocumentID)
		if err != nil {
			return nil, err
		}
		usr = u.Text
	}

	user, err := prompts.Render(usr, PromptData{
		DocumentID: req.Info.DocumentID,
		Metadata:   Metadata(req.Info.Relationship),
		Content:    req.Article.Content,
	})
	if err != nil {
		return nil, err
	}
	return &renderedPrompt{system: sys, user: user, key: SystemPromptKey, hash: hash}, nil
}
