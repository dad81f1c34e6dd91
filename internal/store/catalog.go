package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alucardeht/triad/internal/seed"
	"github.com/alucardeht/triad/internal/types"
)

// LoadCatalog reads every active node, stack and domain. Inactive parents
// hide their children.
func (s *Store) LoadCatalog(ctx context.Context) (*types.CatalogData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := &types.CatalogData{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ai_type, model_slot, label, keywords, priority
		FROM nodes WHERE active = 1 ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	for rows.Next() {
		var n types.Node
		var slot sql.NullInt64
		var keywords string
		if err := rows.Scan(&n.ID, &n.AIType, &slot, &n.Label, &keywords, &n.Priority); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if slot.Valid {
			v := int(slot.Int64)
			n.ModelSlot = &v
		}
		n.Keywords = decodeKeywords(keywords)
		n.Active = true
		data.Nodes = append(data.Nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT s.id, s.node_id, s.label, s.keywords, s.priority
		FROM stacks s JOIN nodes n ON n.id = s.node_id
		WHERE s.active = 1 AND n.active = 1 ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load stacks: %w", err)
	}
	for rows.Next() {
		var st types.Stack
		var keywords string
		if err := rows.Scan(&st.ID, &st.NodeID, &st.Label, &keywords, &st.Priority); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stack: %w", err)
		}
		st.Keywords = decodeKeywords(keywords)
		st.Active = true
		data.Stacks = append(data.Stacks, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load stacks: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT d.id, d.stack_id, d.label, d.keywords, d.priority, d.system_prompt
		FROM domains d
		JOIN stacks s ON s.id = d.stack_id
		JOIN nodes n ON n.id = s.node_id
		WHERE d.active = 1 AND s.active = 1 AND n.active = 1 ORDER BY d.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load domains: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d types.Domain
		var keywords string
		if err := rows.Scan(&d.ID, &d.StackID, &d.Label, &keywords, &d.Priority, &d.SystemPrompt); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		d.Keywords = decodeKeywords(keywords)
		d.Active = true
		data.Domains = append(data.Domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load domains: %w", err)
	}

	return data, nil
}

type ImportResult struct {
	Nodes    int `json:"nodes"`
	Stacks   int `json:"stacks"`
	Domains  int `json:"domains"`
	Memories int `json:"memories"`
	Models   int `json:"models"`
	Retired  int `json:"retired"`
}

// Import upserts a seed bundle in one transaction. With prune set, catalog
// and model rows absent from the bundle are marked inactive rather than
// deleted so audit rows keep resolving.
func (s *Store) Import(ctx context.Context, b *seed.Bundle, prune bool) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res := &ImportResult{}
	cat := b.Catalog()
	keep := map[string][]string{}

	for _, n := range cat.Nodes {
		var slot any
		if n.ModelSlot != nil {
			slot = *n.ModelSlot
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (id, ai_type, model_slot, label, keywords, priority, active)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				ai_type = excluded.ai_type,
				model_slot = excluded.model_slot,
				label = excluded.label,
				keywords = excluded.keywords,
				priority = excluded.priority,
				active = excluded.active
		`, n.ID, string(n.AIType), slot, n.Label, encodeKeywords(n.Keywords), n.Priority, boolInt(n.Active))
		if err != nil {
			return nil, fmt.Errorf("upsert node %s: %w", n.ID, err)
		}
		keep["nodes"] = append(keep["nodes"], n.ID)
		res.Nodes++
	}

	for _, st := range cat.Stacks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stacks (id, node_id, label, keywords, priority, active)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				node_id = excluded.node_id,
				label = excluded.label,
				keywords = excluded.keywords,
				priority = excluded.priority,
				active = excluded.active
		`, st.ID, st.NodeID, st.Label, encodeKeywords(st.Keywords), st.Priority, boolInt(st.Active))
		if err != nil {
			return nil, fmt.Errorf("upsert stack %s: %w", st.ID, err)
		}
		keep["stacks"] = append(keep["stacks"], st.ID)
		res.Stacks++
	}

	for _, d := range cat.Domains {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO domains (id, stack_id, label, keywords, priority, system_prompt, active)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				stack_id = excluded.stack_id,
				label = excluded.label,
				keywords = excluded.keywords,
				priority = excluded.priority,
				system_prompt = excluded.system_prompt,
				active = excluded.active
		`, d.ID, d.StackID, d.Label, encodeKeywords(d.Keywords), d.Priority, d.SystemPrompt, boolInt(d.Active))
		if err != nil {
			return nil, fmt.Errorf("upsert domain %s: %w", d.ID, err)
		}
		keep["domains"] = append(keep["domains"], d.ID)
		res.Domains++
	}

	for _, m := range b.ModelConfigs() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO model_configs (id, ai_type, slot, provider, model, temperature, max_tokens, timeout_ms, system_prompt, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				ai_type = excluded.ai_type,
				slot = excluded.slot,
				provider = excluded.provider,
				model = excluded.model,
				temperature = excluded.temperature,
				max_tokens = excluded.max_tokens,
				timeout_ms = excluded.timeout_ms,
				system_prompt = excluded.system_prompt,
				active = excluded.active
		`, m.ID, string(m.AIType), m.Slot, m.Provider, m.Model, m.Temperature, m.MaxTokens,
			m.Timeout.Milliseconds(), m.SystemPrompt, boolInt(m.Active))
		if err != nil {
			return nil, fmt.Errorf("upsert model %s: %w", m.ID, err)
		}
		keep["model_configs"] = append(keep["model_configs"], m.ID)
		res.Models++
	}

	now := time.Now().Unix()
	for _, m := range b.MemoryRows() {
		var domain, expires any
		if m.DomainID != nil {
			domain = *m.DomainID
		}
		if m.ExpiresAt != nil {
			expires = m.ExpiresAt.Unix()
		}
		// usage_count is owned by the audit trail once a memory exists.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO memories (id, domain_id, content, relevance, usage_count, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				domain_id = excluded.domain_id,
				content = excluded.content,
				relevance = excluded.relevance,
				expires_at = excluded.expires_at
		`, m.ID, domain, m.Content, m.Relevance, m.UsageCount, expires, now)
		if err != nil {
			return nil, fmt.Errorf("upsert memory %s: %w", m.ID, err)
		}
		res.Memories++
	}

	if prune {
		for _, table := range []string{"nodes", "stacks", "domains", "model_configs"} {
			n, err := retireMissing(ctx, tx, table, keep[table])
			if err != nil {
				return nil, fmt.Errorf("prune %s: %w", table, err)
			}
			res.Retired += n
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info("catalog imported",
		"nodes", res.Nodes, "stacks", res.Stacks, "domains", res.Domains,
		"models", res.Models, "memories", res.Memories, "retired", res.Retired)
	return res, nil
}

func retireMissing(ctx context.Context, tx *sql.Tx, table string, ids []string) (int, error) {
	query := "UPDATE " + table + " SET active = 0 WHERE active = 1"
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += " AND id NOT IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func encodeKeywords(keywords []string) string {
	if len(keywords) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(keywords)
	return string(data)
}

// decodeKeywords tolerates hand-edited rows: anything that is not a JSON
// array is read as a comma separated list.
func decodeKeywords(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		if out == nil {
			out = []string{}
		}
		return out
	}
	out = []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
