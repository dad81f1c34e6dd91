// Package seed reads catalog bundles (models, node/stack/domain trees and
// memories) from YAML files so administrators can manage the routing catalog
// as files instead of SQL.
package seed

import (
	"errors"
	"fmt"
	"time"

	"github.com/alucardeht/triad/internal/types"
)

type Bundle struct {
	Models   []ModelEntry  `yaml:"models"`
	Nodes    []NodeEntry   `yaml:"nodes"`
	Memories []MemoryEntry `yaml:"memories"`
}

type ModelEntry struct {
	ID           string        `yaml:"id"`
	AIType       string        `yaml:"ai_type"`
	Slot         int           `yaml:"slot"`
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	Temperature  float32       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
	Active       *bool         `yaml:"active"`
}

type NodeEntry struct {
	ID        string       `yaml:"id"`
	AIType    string       `yaml:"ai_type"`
	ModelSlot *int         `yaml:"model_slot"`
	Label     string       `yaml:"label"`
	Keywords  []string     `yaml:"keywords"`
	Priority  int          `yaml:"priority"`
	Active    *bool        `yaml:"active"`
	Stacks    []StackEntry `yaml:"stacks"`
}

type StackEntry struct {
	ID       string        `yaml:"id"`
	Label    string        `yaml:"label"`
	Keywords []string      `yaml:"keywords"`
	Priority int           `yaml:"priority"`
	Active   *bool         `yaml:"active"`
	Domains  []DomainEntry `yaml:"domains"`
}

type DomainEntry struct {
	ID           string   `yaml:"id"`
	Label        string   `yaml:"label"`
	Keywords     []string `yaml:"keywords"`
	Priority     int      `yaml:"priority"`
	SystemPrompt string   `yaml:"system_prompt"`
	Active       *bool    `yaml:"active"`
}

type MemoryEntry struct {
	ID         string     `yaml:"id"`
	Domain     string     `yaml:"domain"`
	Content    string     `yaml:"content"`
	Relevance  float64    `yaml:"relevance"`
	UsageCount int        `yaml:"usage_count"`
	ExpiresAt  *time.Time `yaml:"expires_at"`
}

func (b *Bundle) Merge(other *Bundle) {
	if other == nil {
		return
	}
	b.Models = append(b.Models, other.Models...)
	b.Nodes = append(b.Nodes, other.Nodes...)
	b.Memories = append(b.Memories, other.Memories...)
}

func (b *Bundle) Empty() bool {
	return len(b.Models) == 0 && len(b.Nodes) == 0 && len(b.Memories) == 0
}

// Validate checks identifiers, enum values and parent references. All
// problems are reported together.
func (b *Bundle) Validate() error {
	var errs []error
	seen := make(map[string]string)
	claim := func(kind, id string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s without id", kind))
			return
		}
		key := kind + ":" + id
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("duplicate %s id %q", kind, id))
		}
		seen[key] = id
	}

	slots := make(map[string]bool)
	for _, m := range b.Models {
		aiType, err := types.ParseAIType(m.AIType)
		if err != nil {
			errs = append(errs, fmt.Errorf("model %q: %w", m.ID, err))
			continue
		}
		if !types.ValidSlot(m.Slot) {
			errs = append(errs, fmt.Errorf("model %q: slot %d out of range 1..3", m.ID, m.Slot))
		}
		if m.Provider == "" || m.Model == "" {
			errs = append(errs, fmt.Errorf("model %s/%d: provider and model are required", aiType, m.Slot))
		}
		key := fmt.Sprintf("%s/%d", aiType, m.Slot)
		if slots[key] {
			errs = append(errs, fmt.Errorf("duplicate model for %s", key))
		}
		slots[key] = true
	}

	for _, n := range b.Nodes {
		claim("node", n.ID)
		if _, err := types.ParseAIType(n.AIType); err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", n.ID, err))
		}
		if n.ModelSlot != nil && !types.ValidSlot(*n.ModelSlot) {
			errs = append(errs, fmt.Errorf("node %q: model_slot %d out of range 1..3", n.ID, *n.ModelSlot))
		}
		if n.Label == "" {
			errs = append(errs, fmt.Errorf("node %q: label is required", n.ID))
		}
		for _, s := range n.Stacks {
			claim("stack", s.ID)
			for _, d := range s.Domains {
				claim("domain", d.ID)
			}
		}
	}

	for _, m := range b.Memories {
		claim("memory", m.ID)
		if m.Content == "" {
			errs = append(errs, fmt.Errorf("memory %q: content is required", m.ID))
		}
		if m.Domain != "" {
			if _, ok := seen["domain:"+m.Domain]; !ok {
				errs = append(errs, fmt.Errorf("memory %q: unknown domain %q", m.ID, m.Domain))
			}
		}
	}

	return errors.Join(errs...)
}

func activeOr(v *bool) bool {
	return v == nil || *v
}

func (b *Bundle) ModelConfigs() []types.ModelConfig {
	out := make([]types.ModelConfig, 0, len(b.Models))
	for _, m := range b.Models {
		aiType, _ := types.ParseAIType(m.AIType)
		id := m.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", aiType, m.Slot)
		}
		out = append(out, types.ModelConfig{
			ID:           id,
			AIType:       aiType,
			Slot:         m.Slot,
			Provider:     m.Provider,
			Model:        m.Model,
			Temperature:  m.Temperature,
			MaxTokens:    m.MaxTokens,
			Timeout:      m.Timeout,
			SystemPrompt: m.SystemPrompt,
			Active:       activeOr(m.Active),
		})
	}
	return out
}

// Catalog flattens the nested node tree into the three catalog tables.
func (b *Bundle) Catalog() *types.CatalogData {
	data := &types.CatalogData{}
	for _, n := range b.Nodes {
		aiType, _ := types.ParseAIType(n.AIType)
		data.Nodes = append(data.Nodes, types.Node{
			ID:        n.ID,
			AIType:    aiType,
			ModelSlot: n.ModelSlot,
			Label:     n.Label,
			Keywords:  nonNil(n.Keywords),
			Priority:  n.Priority,
			Active:    activeOr(n.Active),
		})
		for _, s := range n.Stacks {
			data.Stacks = append(data.Stacks, types.Stack{
				ID:       s.ID,
				NodeID:   n.ID,
				Label:    s.Label,
				Keywords: nonNil(s.Keywords),
				Priority: s.Priority,
				Active:   activeOr(s.Active),
			})
			for _, d := range s.Domains {
				data.Domains = append(data.Domains, types.Domain{
					ID:           d.ID,
					StackID:      s.ID,
					Label:        d.Label,
					Keywords:     nonNil(d.Keywords),
					Priority:     d.Priority,
					SystemPrompt: d.SystemPrompt,
					Active:       activeOr(d.Active),
				})
			}
		}
	}
	return data
}

func (b *Bundle) MemoryRows() []types.Memory {
	out := make([]types.Memory, 0, len(b.Memories))
	for _, m := range b.Memories {
		mem := types.Memory{
			ID:         m.ID,
			Content:    m.Content,
			Relevance:  m.Relevance,
			UsageCount: m.UsageCount,
			ExpiresAt:  m.ExpiresAt,
		}
		if m.Domain != "" {
			domain := m.Domain
			mem.DomainID = &domain
		}
		out = append(out, mem)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
