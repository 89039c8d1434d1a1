package llmchunk

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackzampolin/vbpl/internal/prompts"
	"github.com/jackzampolin/vbpl/internal/textnorm"
)

// PromptKey identifies the structure rubric.
const PromptKey = "chunk.structure"

//go:embed structure.tmpl
var structurePrompt string

// Prompts returns the embedded chunking prompt for registration with a
// prompts.Resolver.
func Prompts() []prompts.EmbeddedPrompt {
	return []prompts.EmbeddedPrompt{
		{Key: PromptKey, Text: structurePrompt, Description: "Structural chunking rubric"},
	}
}

// NumberLines renders lines as "N | text", the form the rubric expects.
func NumberLines(lines []textnorm.Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d | %s", l.Num, strings.TrimSpace(l.Raw))
	}
	return b.String()
}

func (c *Chunker) systemPrompt(ctx context.Context, documentID string) (text, hash string, err error) {
	if c.cfg.Prompts == nil {
		return structurePrompt, prompts.HashText(structurePrompt), nil
	}
	p, err := c.cfg.Prompts.Resolve(ctx, PromptKey, documentID)
	if err != nil {
		return "", "", err
	}
	return p.Text, p.Hash, nil
}
