package watcher

import "time"

type Config struct {
	DebounceWindow time.Duration
	MaxBatchSize   int
	Include        []string
	Ignore         []string
	WatchHidden    bool
}

func DefaultConfig() Config {
	return Config{
		DebounceWindow: 300 * time.Millisecond,
		MaxBatchSize:   100,
		Include:        []string{"**/*.yaml", "**/*.yml"},
		Ignore:         []string{"**/.git/**", "**/*.swp", "**/*~"},
	}
}
