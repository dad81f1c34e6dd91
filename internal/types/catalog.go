package types

import "time"

type Node struct {
	ID        string   `json:"id" yaml:"id"`
	AIType    AIType   `json:"ai_type" yaml:"ai_type"`
	ModelSlot *int     `json:"model_slot,omitempty" yaml:"model_slot,omitempty"`
	Label     string   `json:"label" yaml:"label"`
	Keywords  []string `json:"keywords" yaml:"keywords"`
	Priority  int      `json:"priority" yaml:"priority"`
	Active    bool     `json:"active" yaml:"active"`
}

type Stack struct {
	ID       string   `json:"id" yaml:"id"`
	NodeID   string   `json:"node_id" yaml:"node_id"`
	Label    string   `json:"label" yaml:"label"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Priority int      `json:"priority" yaml:"priority"`
	Active   bool     `json:"active" yaml:"active"`
}

type Domain struct {
	ID           string   `json:"id" yaml:"id"`
	StackID      string   `json:"stack_id" yaml:"stack_id"`
	Label        string   `json:"label" yaml:"label"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
	Priority     int      `json:"priority" yaml:"priority"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Active       bool     `json:"active" yaml:"active"`
}

// Memory is free-form text attached to a domain, or shared when DomainID is nil.
type Memory struct {
	ID         string     `json:"id"`
	DomainID   *string    `json:"domain_id,omitempty"`
	Content    string     `json:"content"`
	Relevance  float64    `json:"relevance"`
	UsageCount int        `json:"usage_count"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// CatalogData is one full read of the active routing catalog.
type CatalogData struct {
	Nodes   []Node
	Stacks  []Stack
	Domains []Domain
}
