package executor

import (
	"strings"
	"unicode/utf8"

	"github.com/alucardeht/triad/internal/types"
)

const (
	maxDomainPrompts  = 2
	maxMemoryExcerpts = 3
	maxExcerptRunes   = 400
)

// BuildPrompt prefixes the user prompt with the routed context: the selected
// path, up to two domain system prompts and up to three memory excerpts. The
// user prompt is always the final block. With nothing routed the prompt is
// returned unchanged.
func BuildPrompt(routing *types.RoutingResult, prompt string) string {
	if routing == nil || (len(routing.Domains) == 0 && len(routing.Memories) == 0) {
		return prompt
	}

	var b strings.Builder

	if paths := routing.Path(); len(paths) > 0 {
		b.WriteString("Context: ")
		b.WriteString(strings.Join(paths, "; "))
		b.WriteString("\n")
	}

	n := 0
	for _, d := range routing.Domains {
		if n == maxDomainPrompts {
			break
		}
		sp := strings.TrimSpace(d.SystemPrompt)
		if sp == "" {
			continue
		}
		if n == 0 {
			b.WriteString("\nGuidance:\n")
		}
		b.WriteString(sp)
		b.WriteString("\n")
		n++
	}

	if len(routing.Memories) > 0 {
		b.WriteString("\nRelevant knowledge:\n")
		for i, m := range routing.Memories {
			if i == maxMemoryExcerpts {
				break
			}
			b.WriteString("- ")
			b.WriteString(excerpt(m.Content, maxExcerptRunes))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(prompt)
	return b.String()
}

func excerpt(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
