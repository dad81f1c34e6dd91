package types

type ScoredNode struct {
	Node
	Score float64 `json:"score"`
}

type ScoredStack struct {
	Stack
	Score     float64 `json:"score"`
	NodeLabel string  `json:"node_label"`
}

// ScoredDomain carries its resolved parent labels for prompt construction.
type ScoredDomain struct {
	Domain
	Score      float64 `json:"score"`
	StackLabel string  `json:"stack_label"`
	NodeID     string  `json:"node_id"`
	NodeLabel  string  `json:"node_label"`
}

// RoutingResult is produced once per model call and never shared between requests.
type RoutingResult struct {
	AIType     AIType         `json:"ai_type"`
	Slot       int            `json:"slot"`
	Mode       Mode           `json:"mode"`
	Nodes      []ScoredNode   `json:"nodes"`
	Stacks     []ScoredStack  `json:"stacks"`
	Domains    []ScoredDomain `json:"domains"`
	Memories   []Memory       `json:"memories"`
	Confidence float64        `json:"confidence"`
	Reasoning  []string       `json:"reasoning"`
}

// Path renders the selected hierarchy as "node > stack > domain" entries.
func (r *RoutingResult) Path() []string {
	paths := make([]string, 0, len(r.Domains))
	for _, d := range r.Domains {
		paths = append(paths, d.NodeLabel+" > "+d.StackLabel+" > "+d.Label)
	}
	return paths
}

func (r *RoutingResult) DomainIDs() []string {
	ids := make([]string, 0, len(r.Domains))
	for _, d := range r.Domains {
		ids = append(ids, d.ID)
	}
	return ids
}

func (r *RoutingResult) MemoryIDs() []string {
	ids := make([]string, 0, len(r.Memories))
	for _, m := range r.Memories {
		ids = append(ids, m.ID)
	}
	return ids
}
