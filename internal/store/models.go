package store

import (
	"context"
	"fmt"
	"time"

	"github.com/alucardeht/triad/internal/types"
)

// LoadModelConfigs returns active model configuration rows ordered by ai type
// and slot.
func (s *Store) LoadModelConfigs(ctx context.Context) ([]types.ModelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ai_type, slot, provider, model, temperature, max_tokens, timeout_ms, system_prompt
		FROM model_configs WHERE active = 1
		ORDER BY ai_type, slot, id
	`)
	if err != nil {
		return nil, fmt.Errorf("load model configs: %w", err)
	}
	defer rows.Close()

	var configs []types.ModelConfig
	for rows.Next() {
		var c types.ModelConfig
		var timeoutMS int64
		if err := rows.Scan(&c.ID, &c.AIType, &c.Slot, &c.Provider, &c.Model,
			&c.Temperature, &c.MaxTokens, &timeoutMS, &c.SystemPrompt); err != nil {
			return nil, fmt.Errorf("scan model config: %w", err)
		}
		c.Timeout = time.Duration(timeoutMS) * time.Millisecond
		c.Active = true
		configs = append(configs, c)
	}
	return configs, rows.Err()
}
