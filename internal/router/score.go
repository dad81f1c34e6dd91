package router

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	labelHit        = 5
	keywordHit      = 2
	partialTokenHit = 1
	minTokenLen     = 3
)

// lower folds with a fresh Caser per call; Casers keep state and are not
// safe for concurrent use.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Tokenize lower-cases text, splits it on anything that is not a letter,
// digit or underscore and drops tokens shorter than three runes.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(lower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Score rates how well text matches a candidate label and keyword list.
// The label earns 5 when it occurs in the text. Each keyword earns 2 when it
// occurs in the text, otherwise 1 when a text token and the keyword contain
// one another. Scores are unbounded and never negative.
func Score(text, label string, keywords []string) int {
	return scoreTokens(lower(text), Tokenize(text), label, keywords)
}

func scoreTokens(text string, tokens []string, label string, keywords []string) int {
	score := 0
	if l := lower(label); l != "" && strings.Contains(text, l) {
		score += labelHit
	}

	for _, kw := range keywords {
		k := lower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if strings.Contains(text, k) {
			score += keywordHit
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(k, tok) || strings.Contains(tok, k) {
				score += partialTokenHit
				break
			}
		}
	}
	return score
}
