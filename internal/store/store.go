package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/alucardeht/triad/internal/logger"
)

var log = logger.ForComponent("store")

const SchemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	ai_type TEXT NOT NULL,
	model_slot INTEGER,
	label TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	priority INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_nodes_ai_type ON nodes(ai_type, active);

CREATE TABLE IF NOT EXISTS stacks (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL REFERENCES nodes(id),
	label TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	priority INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_stacks_node ON stacks(node_id, active);

CREATE TABLE IF NOT EXISTS domains (
	id TEXT PRIMARY KEY,
	stack_id TEXT NOT NULL REFERENCES stacks(id),
	label TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	priority INTEGER NOT NULL DEFAULT 0,
	system_prompt TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_domains_stack ON domains(stack_id, active);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	domain_id TEXT,
	content TEXT NOT NULL,
	relevance REAL NOT NULL DEFAULT 0,
	usage_count INTEGER NOT NULL DEFAULT 0,
	expires_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_domain ON memories(domain_id);
CREATE INDEX IF NOT EXISTS idx_memories_rank ON memories(relevance DESC, usage_count DESC);

CREATE TABLE IF NOT EXISTS model_configs (
	id TEXT PRIMARY KEY,
	ai_type TEXT NOT NULL,
	slot INTEGER NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	temperature REAL NOT NULL DEFAULT 0,
	max_tokens INTEGER NOT NULL DEFAULT 0,
	timeout_ms INTEGER NOT NULL DEFAULT 0,
	system_prompt TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_model_configs_type ON model_configs(ai_type, slot, active);

CREATE TABLE IF NOT EXISTS routing_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	ai_type TEXT NOT NULL,
	mode TEXT NOT NULL,
	slot INTEGER NOT NULL,
	node_ids TEXT NOT NULL,
	stack_ids TEXT NOT NULL,
	domain_ids TEXT NOT NULL,
	memory_ids TEXT NOT NULL,
	confidence REAL NOT NULL,
	reasoning TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_routing_logs_request ON routing_logs(request_id);

CREATE TABLE IF NOT EXISTS response_logs (
	request_id TEXT PRIMARY KEY,
	ai_type TEXT NOT NULL,
	mode TEXT NOT NULL,
	prompt TEXT NOT NULL,
	response TEXT NOT NULL,
	quality REAL NOT NULL,
	coherence REAL NOT NULL,
	primary_slot INTEGER NOT NULL,
	degraded INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	slots TEXT NOT NULL,
	created_at INTEGER NOT NULL
)
`

// Store is the relational backing store for the routing catalog, model
// configuration, memories and the audit trail.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

func Open(dbPath string) (*Store, error) {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	dsn := dbPath + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Debug("store opened", "path", dbPath)
	return s, nil
}

func (s *Store) initSchema() error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	_, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion)
	return err
}

type Stats struct {
	Nodes        int `json:"nodes"`
	Stacks       int `json:"stacks"`
	Domains      int `json:"domains"`
	Memories     int `json:"memories"`
	ModelConfigs int `json:"model_configs"`
	RoutingLogs  int `json:"routing_logs"`
	ResponseLogs int `json:"response_logs"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{}
	counts := []struct {
		table string
		dst   *int
	}{
		{"nodes", &st.Nodes},
		{"stacks", &st.Stacks},
		{"domains", &st.Domains},
		{"memories", &st.Memories},
		{"model_configs", &st.ModelConfigs},
		{"routing_logs", &st.RoutingLogs},
		{"response_logs", &st.ResponseLogs},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return st, nil
}

func (s *Store) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Debug("wal checkpoint failed", "error", err)
	}
	return s.db.Close()
}
