package fusion

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/alucardeht/triad/internal/types"
)

// Quality heuristic weights. Uncalibrated.
const (
	baseQuality       = 0.5
	lengthBonus       = 0.2
	sentenceBonus     = 0.1
	confidentBonus    = 0.1
	latencyBonus      = 0.1
	minAnswerRunes    = 50
	maxAnswerRunes    = 5000
	minSentences      = 2
	maxHealthyLatency = 30 * time.Second
	minWordRunes      = 4
)

var failureMarkers = []string{"error", "cannot", "unable"}

// Quality scores one response on a 0..1 scale. Failed or empty responses
// score 0; anything else starts at 0.5.
func Quality(resp types.ModelResponse) float64 {
	if !valid(resp) {
		return 0
	}
	text := strings.TrimSpace(resp.Text)
	q := baseQuality

	if n := utf8.RuneCountInString(text); n >= minAnswerRunes && n <= maxAnswerRunes {
		q += lengthBonus
	}
	if countSentences(text) >= minSentences {
		q += sentenceBonus
	}
	if !hasFailureMarker(text) {
		q += confidentBonus
	}
	if resp.Latency > 0 && resp.Latency <= maxHealthyLatency {
		q += latencyBonus
	}
	return clamp(q)
}

func valid(resp types.ModelResponse) bool {
	return resp.Success && strings.TrimSpace(resp.Text) != ""
}

func countSentences(text string) int {
	n := 0
	inTerminator := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inTerminator {
				n++
			}
			inTerminator = true
		default:
			inTerminator = false
		}
	}
	// A trailing clause without punctuation still counts.
	if trimmed := strings.TrimRightFunc(text, unicode.IsSpace); trimmed != "" && !strings.ContainsAny(trimmed[len(trimmed)-1:], ".!?") {
		n++
	}
	return n
}

func hasFailureMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range failureMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// words returns the distinct lower-cased words of at least four runes.
func words(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(w) >= minWordRunes {
			set[w] = struct{}{}
		}
	}
	return set
}

// Similarity is the Jaccard overlap of the two texts' long words.
func Similarity(a, b string) float64 {
	wa, wb := words(a), words(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

// Coherence is the mean pairwise Similarity. Fewer than two texts have no
// pair to agree and give 0.
func Coherence(texts []string) float64 {
	if len(texts) < 2 {
		return 0
	}
	var total float64
	pairs := 0
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			total += Similarity(texts[i], texts[j])
			pairs++
		}
	}
	return total / float64(pairs)
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
