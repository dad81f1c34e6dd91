// Package fusion turns the ensemble's responses into one answer. It selects
// the best response rather than blending texts, and reports how much each
// slot contributed.
package fusion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alucardeht/triad/internal/logger"
	"github.com/alucardeht/triad/internal/types"
)

var log = logger.ForComponent("fusion")

// CannedFailure is the answer returned when no slot produced usable text.
const CannedFailure = "I could not get an answer from any model right now. Please try again in a moment."

// Fuse selects the primary response and scores the ensemble. It never
// fails: with no usable response it returns CannedFailure at quality 0.
func Fuse(aiType types.AIType, responses []types.ModelResponse) types.FusionResult {
	result := types.FusionResult{
		Variant:             aiType,
		ResponseQualities:   map[int]float64{},
		ContributionWeights: map[int]float64{},
		Reasoning:           []string{},
	}

	var usable []types.ModelResponse
	for _, r := range responses {
		if valid(r) {
			usable = append(usable, r)
		} else {
			result.Reasoning = append(result.Reasoning, fmt.Sprintf("slot %d discarded: %s", r.Slot, discardReason(r)))
		}
	}
	sort.SliceStable(usable, func(i, j int) bool { return usable[i].Slot < usable[j].Slot })

	if len(usable) == 0 {
		result.FusedResponse = CannedFailure
		result.Degraded = true
		result.Reasoning = append(result.Reasoning, "no usable responses, returning fallback answer")
		record(aiType, result)
		log.Warn("all slots failed", "ai_type", aiType, "responses", len(responses))
		return result
	}

	v := variantFor(aiType)
	texts := make([]string, len(usable))
	total := 0.0
	best := -1
	for i, r := range usable {
		texts[i] = r.Text
		q := clamp(Quality(r) + v.bonus(r.Text))
		result.ResponseQualities[r.Slot] = q
		total += q
		if best < 0 || q > result.ResponseQualities[usable[best].Slot] {
			best = i
		}
	}
	for _, r := range usable {
		result.ContributionWeights[r.Slot] = result.ResponseQualities[r.Slot] / total
	}

	primary := usable[best]
	result.SelectedPrimary = primary.Slot
	result.FusedResponse = primary.Text
	result.Coherence = Coherence(texts)
	if len(usable) == 1 {
		result.Reasoning = append(result.Reasoning, "single usable response, no peer agreement")
	}

	primaryQuality := result.ResponseQualities[primary.Slot]
	result.QualityScore, result.Reasoning = v.finalize(primaryQuality, result.Coherence, texts, result.Reasoning)
	result.QualityScore = clamp(result.QualityScore)
	result.Reasoning = append(result.Reasoning,
		fmt.Sprintf("slot %d selected with quality %.2f of %d usable responses", primary.Slot, primaryQuality, len(usable)))

	record(aiType, result)
	return result
}

func discardReason(r types.ModelResponse) string {
	if !r.Success {
		if r.Error != "" {
			return r.Error
		}
		return "failed"
	}
	return "empty text"
}

// variant adjusts the shared quality heuristic for one ai type.
type variant interface {
	// bonus is added to a single response's quality before selection.
	bonus(text string) float64
	// finalize derives the ensemble score from the primary's quality.
	finalize(primary, coherence float64, texts []string, reasoning []string) (float64, []string)
}

func variantFor(aiType types.AIType) variant {
	switch aiType {
	case types.AITypeHeart:
		return heartVariant{}
	case types.AITypeSystem:
		return systemVariant{}
	default:
		return brainVariant{}
	}
}

func hasCodeFence(text string) bool {
	return strings.Contains(text, "```")
}
