package fusion

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	codeFenceBonus     = 0.15
	identifierBonus    = 0.05
	consensusBonus     = 0.1
	consensusThreshold = 0.3
	numericBonus       = 0.05
	severityBonus      = 0.1
	disagreementCost   = 0.1
)

// brainVariant averages the primary's quality with ensemble coherence.
type brainVariant struct{}

func (brainVariant) bonus(string) float64 { return 0 }

func (brainVariant) finalize(primary, coherence float64, _ []string, reasoning []string) (float64, []string) {
	reasoning = append(reasoning, fmt.Sprintf("brain score averages quality %.2f with coherence %.2f", primary, coherence))
	return (primary + coherence) / 2, reasoning
}

// heartVariant favours concrete, code-bearing answers and rewards agreement.
type heartVariant struct{}

var identifierPattern = regexp.MustCompile(`\b[a-z]+[A-Z][A-Za-z0-9]*\b|\b[a-z0-9]+_[a-z0-9_]+\b|\b[A-Za-z_][A-Za-z0-9_]*\(\)`)

func (heartVariant) bonus(text string) float64 {
	b := 0.0
	if hasCodeFence(text) {
		b += codeFenceBonus
	}
	if identifierPattern.MatchString(text) {
		b += identifierBonus
	}
	return b
}

func (heartVariant) finalize(primary, coherence float64, _ []string, reasoning []string) (float64, []string) {
	if coherence > consensusThreshold {
		reasoning = append(reasoning, fmt.Sprintf("consensus bonus, coherence %.2f", coherence))
		return primary + consensusBonus, reasoning
	}
	return primary, reasoning
}

// systemVariant favours quantified answers that name a severity and
// penalises responses that disagree on it.
type systemVariant struct{}

var severityLevels = []string{"critical", "high", "medium", "low"}

func (systemVariant) bonus(text string) float64 {
	b := 0.0
	if strings.IndexFunc(text, unicode.IsDigit) >= 0 {
		b += numericBonus
	}
	if severityOf(text) != "" {
		b += severityBonus
	}
	return b
}

func (systemVariant) finalize(primary, _ float64, texts []string, reasoning []string) (float64, []string) {
	seen := map[string]bool{}
	for _, t := range texts {
		if s := severityOf(t); s != "" {
			seen[s] = true
		}
	}
	if len(seen) > 1 {
		reasoning = append(reasoning, fmt.Sprintf("responses disagree on severity (%d levels)", len(seen)))
		return primary - disagreementCost, reasoning
	}
	return primary, reasoning
}

var severityWord = regexp.MustCompile(`(?i)\b(critical|high|medium|low)\b`)

// severityOf returns the most severe level named in text.
func severityOf(text string) string {
	found := map[string]bool{}
	for _, m := range severityWord.FindAllString(text, -1) {
		found[strings.ToLower(m)] = true
	}
	for _, level := range severityLevels {
		if found[level] {
			return level
		}
	}
	return ""
}
