package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownAIType = errors.New("unknown ai type")
	ErrUnknownMode   = errors.New("unknown mode")
)

// AIType selects which model configuration rows and which fusion variant apply.
type AIType string

const (
	AITypeBrain  AIType = "brain"
	AITypeHeart  AIType = "heart"
	AITypeSystem AIType = "system"
)

var AITypes = []AIType{AITypeBrain, AITypeHeart, AITypeSystem}

func ParseAIType(s string) (AIType, error) {
	t := AIType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case AITypeBrain, AITypeHeart, AITypeSystem:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAIType, s)
}

// Mode bounds how many nodes, stacks and domains are selected per request.
type Mode string

const (
	ModeStandard     Mode = "standard"
	ModeProfessional Mode = "professional"
	ModeAdvanced     Mode = "advanced"
)

const DefaultMode = ModeProfessional

// ParseMode accepts an empty string as the default mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return DefaultMode, nil
	case ModeStandard, ModeProfessional, ModeAdvanced:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

type ModeLimits struct {
	Nodes   int `json:"nodes"`
	Stacks  int `json:"stacks"`
	Domains int `json:"domains"`
}

// LimitsFor returns the fixed selection breadth for a mode. Unknown modes get
// the default mode's limits.
func LimitsFor(m Mode) ModeLimits {
	switch m {
	case ModeStandard:
		return ModeLimits{Nodes: 2, Stacks: 1, Domains: 1}
	case ModeAdvanced:
		return ModeLimits{Nodes: 3, Stacks: 3, Domains: 3}
	default:
		return ModeLimits{Nodes: 2, Stacks: 2, Domains: 2}
	}
}

// Slots are the three ensemble positions.
var Slots = []int{1, 2, 3}

func ValidSlot(slot int) bool {
	return slot >= 1 && slot <= 3
}
