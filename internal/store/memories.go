package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alucardeht/triad/internal/types"
)

// FetchMemories returns at most limit memories attached to one of domainIDs
// or shared (no domain), skipping expired rows, best relevance first.
func (s *Store) FetchMemories(ctx context.Context, domainIDs []string, limit int, now time.Time) ([]types.Memory, error) {
	if limit <= 0 {
		return []types.Memory{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := "domain_id IS NULL"
	args := make([]any, 0, len(domainIDs)+2)
	if len(domainIDs) > 0 {
		filter = "(domain_id IN (" + placeholders(len(domainIDs)) + ") OR domain_id IS NULL)"
		for _, id := range domainIDs {
			args = append(args, id)
		}
	}
	args = append(args, now.Unix(), limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain_id, content, relevance, usage_count, expires_at
		FROM memories
		WHERE `+filter+` AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY relevance DESC, usage_count DESC, id ASC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch memories: %w", err)
	}
	defer rows.Close()

	memories := []types.Memory{}
	for rows.Next() {
		var m types.Memory
		var domain sql.NullString
		var expires sql.NullInt64
		if err := rows.Scan(&m.ID, &domain, &m.Content, &m.Relevance, &m.UsageCount, &expires); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if domain.Valid {
			d := domain.String
			m.DomainID = &d
		}
		if expires.Valid {
			t := time.Unix(expires.Int64, 0).UTC()
			m.ExpiresAt = &t
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// IncrementMemoryUsage bumps usage_count once per id occurrence.
func (s *Store) IncrementMemoryUsage(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE memories SET usage_count = usage_count + 1 WHERE id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("increment usage %s: %w", id, err)
		}
	}
	return tx.Commit()
}
