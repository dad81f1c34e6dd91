package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type RoutingLog struct {
	RequestID  string
	AIType     string
	Mode       string
	Slot       int
	NodeIDs    []string
	StackIDs   []string
	DomainIDs  []string
	MemoryIDs  []string
	Confidence float64
	Reasoning  []string
	CreatedAt  time.Time
}

type SlotOutcome struct {
	Slot      int    `json:"slot"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type ResponseLog struct {
	RequestID   string
	AIType      string
	Mode        string
	Prompt      string
	Response    string
	Quality     float64
	Coherence   float64
	PrimarySlot int
	Degraded    bool
	LatencyMS   int64
	Slots       []SlotOutcome
	CreatedAt   time.Time
}

func (s *Store) InsertRoutingLog(ctx context.Context, l *RoutingLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO routing_logs (request_id, ai_type, mode, slot, node_ids, stack_ids, domain_ids, memory_ids, confidence, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.RequestID, l.AIType, l.Mode, l.Slot,
		jsonText(l.NodeIDs), jsonText(l.StackIDs), jsonText(l.DomainIDs), jsonText(l.MemoryIDs),
		l.Confidence, jsonText(l.Reasoning), unixOrNow(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert routing log: %w", err)
	}
	return nil
}

func (s *Store) InsertResponseLog(ctx context.Context, l *ResponseLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_logs (request_id, ai_type, mode, prompt, response, quality, coherence, primary_slot, degraded, latency_ms, slots, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO NOTHING
	`, l.RequestID, l.AIType, l.Mode, l.Prompt, l.Response, l.Quality, l.Coherence,
		l.PrimarySlot, boolInt(l.Degraded), l.LatencyMS, jsonText(l.Slots), unixOrNow(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert response log: %w", err)
	}
	return nil
}

// RoutingLogs returns the routing rows recorded for one request, by slot.
func (s *Store) RoutingLogs(ctx context.Context, requestID string) ([]RoutingLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, ai_type, mode, slot, node_ids, stack_ids, domain_ids, memory_ids, confidence, reasoning, created_at
		FROM routing_logs WHERE request_id = ? ORDER BY slot
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query routing logs: %w", err)
	}
	defer rows.Close()

	var logs []RoutingLog
	for rows.Next() {
		var l RoutingLog
		var nodes, stacks, domains, memories, reasoning string
		var created int64
		if err := rows.Scan(&l.RequestID, &l.AIType, &l.Mode, &l.Slot,
			&nodes, &stacks, &domains, &memories, &l.Confidence, &reasoning, &created); err != nil {
			return nil, fmt.Errorf("scan routing log: %w", err)
		}
		_ = json.Unmarshal([]byte(nodes), &l.NodeIDs)
		_ = json.Unmarshal([]byte(stacks), &l.StackIDs)
		_ = json.Unmarshal([]byte(domains), &l.DomainIDs)
		_ = json.Unmarshal([]byte(memories), &l.MemoryIDs)
		_ = json.Unmarshal([]byte(reasoning), &l.Reasoning)
		l.CreatedAt = time.Unix(created, 0).UTC()
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}

func unixOrNow(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}
