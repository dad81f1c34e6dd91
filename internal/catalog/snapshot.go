package catalog

import (
	"strings"
	"time"

	"github.com/alucardeht/triad/internal/types"
)

// Snapshot is an immutable view of the active catalog with lookup indices.
// Callers must not modify the slices it returns.
type Snapshot struct {
	Nodes    []types.Node
	Stacks   []types.Stack
	Domains  []types.Domain
	LoadedAt time.Time

	byLabel        map[string]*types.Node
	nodeByID       map[string]*types.Node
	stackByID      map[string]*types.Stack
	stacksByNode   map[string][]types.Stack
	domainsByStack map[string][]types.Domain
	nodesBySlot    map[int][]types.Node
	nodesByType    map[types.AIType][]types.Node
}

func NewSnapshot(data *types.CatalogData, loadedAt time.Time) *Snapshot {
	if data == nil {
		data = &types.CatalogData{}
	}

	s := &Snapshot{
		Nodes:          data.Nodes,
		Stacks:         data.Stacks,
		Domains:        data.Domains,
		LoadedAt:       loadedAt,
		byLabel:        make(map[string]*types.Node, len(data.Nodes)),
		nodeByID:       make(map[string]*types.Node, len(data.Nodes)),
		stackByID:      make(map[string]*types.Stack, len(data.Stacks)),
		stacksByNode:   make(map[string][]types.Stack),
		domainsByStack: make(map[string][]types.Domain),
		nodesBySlot:    make(map[int][]types.Node),
		nodesByType:    make(map[types.AIType][]types.Node),
	}

	for i := range s.Nodes {
		n := &s.Nodes[i]
		s.nodeByID[n.ID] = n
		label := strings.ToLower(n.Label)
		if _, dup := s.byLabel[label]; !dup {
			s.byLabel[label] = n
		}
		if n.ModelSlot != nil {
			s.nodesBySlot[*n.ModelSlot] = append(s.nodesBySlot[*n.ModelSlot], *n)
		}
		s.nodesByType[n.AIType] = append(s.nodesByType[n.AIType], *n)
	}
	for i := range s.Stacks {
		st := &s.Stacks[i]
		s.stackByID[st.ID] = st
		s.stacksByNode[st.NodeID] = append(s.stacksByNode[st.NodeID], *st)
	}
	for _, d := range s.Domains {
		s.domainsByStack[d.StackID] = append(s.domainsByStack[d.StackID], d)
	}

	return s
}

func (s *Snapshot) Empty() bool {
	return len(s.Nodes) == 0
}

// NodeByLabel matches labels case-insensitively. The first node loaded wins
// when two share a label.
func (s *Snapshot) NodeByLabel(label string) (types.Node, bool) {
	n, ok := s.byLabel[strings.ToLower(label)]
	if !ok {
		return types.Node{}, false
	}
	return *n, true
}

func (s *Snapshot) Node(id string) (types.Node, bool) {
	n, ok := s.nodeByID[id]
	if !ok {
		return types.Node{}, false
	}
	return *n, true
}

func (s *Snapshot) Stack(id string) (types.Stack, bool) {
	st, ok := s.stackByID[id]
	if !ok {
		return types.Stack{}, false
	}
	return *st, true
}

func (s *Snapshot) StacksForNode(nodeID string) []types.Stack {
	return s.stacksByNode[nodeID]
}

func (s *Snapshot) DomainsForStack(stackID string) []types.Domain {
	return s.domainsByStack[stackID]
}

func (s *Snapshot) NodesForSlot(slot int) []types.Node {
	return s.nodesBySlot[slot]
}

func (s *Snapshot) NodesForAIType(aiType types.AIType) []types.Node {
	return s.nodesByType[aiType]
}

type Counts struct {
	Nodes    int       `json:"nodes"`
	Stacks   int       `json:"stacks"`
	Domains  int       `json:"domains"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (s *Snapshot) Counts() Counts {
	return Counts{
		Nodes:    len(s.Nodes),
		Stacks:   len(s.Stacks),
		Domains:  len(s.Domains),
		LoadedAt: s.LoadedAt,
	}
}
