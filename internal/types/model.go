package types

import "time"

// ModelConfig is one (aiType, slot) row of the ensemble configuration.
type ModelConfig struct {
	ID           string        `json:"id" yaml:"id"`
	AIType       AIType        `json:"ai_type" yaml:"ai_type"`
	Slot         int           `json:"slot" yaml:"slot"`
	Provider     string        `json:"provider" yaml:"provider"`
	Model        string        `json:"model" yaml:"model"`
	Temperature  float32       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	SystemPrompt string        `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Active       bool          `json:"active" yaml:"active"`
}

type ModelResponse struct {
	Slot      int           `json:"slot"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	Text      string        `json:"text"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"-"`
	LatencyMS int64         `json:"latency_ms"`
	Routing   RoutingResult `json:"routing"`
}

// SetLatency keeps the duration and its millisecond rendering in sync.
func (r *ModelResponse) SetLatency(d time.Duration) {
	r.Latency = d
	r.LatencyMS = d.Milliseconds()
}

type FusionResult struct {
	Variant             AIType          `json:"variant"`
	FusedResponse       string          `json:"fused_response"`
	SelectedPrimary     int             `json:"selected_primary"`
	QualityScore        float64         `json:"quality_score"`
	Coherence           float64         `json:"coherence"`
	ResponseQualities   map[int]float64 `json:"response_qualities"`
	ContributionWeights map[int]float64 `json:"contribution_weights"`
	Degraded            bool            `json:"degraded"`
	Reasoning           []string        `json:"reasoning"`
}

type AISystemResult struct {
	RequestID    string          `json:"request_id"`
	AIType       AIType          `json:"ai_type"`
	Mode         Mode            `json:"mode"`
	Response     string          `json:"response"`
	QualityScore float64         `json:"quality_score"`
	Confidence   float64         `json:"confidence"`
	Fusion       FusionResult    `json:"fusion"`
	Models       []ModelResponse `json:"models"`
	Latency      time.Duration   `json:"-"`
	LatencyMS    int64           `json:"latency_ms"`
}
