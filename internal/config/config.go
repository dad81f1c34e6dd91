package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" validate:"required"`
	PIDPath    string `yaml:"pid_path" validate:"required"`
}

type HTTPConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Addr        string   `yaml:"addr" validate:"required_if=Enabled true"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type CatalogConfig struct {
	TTL            time.Duration `yaml:"ttl" validate:"gt=0"`
	MemoryLimit    int           `yaml:"memory_limit" validate:"gte=0,lte=50"`
	MemoryTimeout  time.Duration `yaml:"memory_timeout" validate:"gte=0"`
	SeedDir        string        `yaml:"seed_dir"`
	SeedPatterns   []string      `yaml:"seed_patterns"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
	Watch          bool          `yaml:"watch"`
	DebounceWindow time.Duration `yaml:"debounce_window" validate:"gte=0"`
}

type ExecutorConfig struct {
	SlotTimeout time.Duration `yaml:"slot_timeout" validate:"gt=0"`
	DefaultMode string        `yaml:"default_mode" validate:"omitempty,oneof=standard professional advanced"`
}

type AuditConfig struct {
	Enabled   bool `yaml:"enabled"`
	QueueSize int  `yaml:"queue_size" validate:"gte=1"`
}

// ProviderConfig holds credentials and guard settings for one backend family.
type ProviderConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int           `yaml:"burst" validate:"gte=0"`
	FailureThreshold  uint32        `yaml:"failure_threshold"`
	OpenTimeout       time.Duration `yaml:"open_timeout" validate:"gte=0"`
	StaticText        string        `yaml:"static_text"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type Config struct {
	DataDir   string                    `yaml:"data_dir" validate:"required"`
	Daemon    DaemonConfig              `yaml:"daemon"`
	HTTP      HTTPConfig                `yaml:"http"`
	Database  DatabaseConfig            `yaml:"database"`
	Catalog   CatalogConfig             `yaml:"catalog"`
	Executor  ExecutorConfig            `yaml:"executor"`
	Audit     AuditConfig               `yaml:"audit"`
	Providers map[string]ProviderConfig `yaml:"providers" validate:"dive"`
	Log       LogConfig                 `yaml:"log"`
	Tracing   TracingConfig             `yaml:"tracing"`
}

// Path is the config file location: $TRIAD_CONFIG, else config.yaml in the
// default data directory.
func Path() string {
	if p := os.Getenv("TRIAD_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Default().DataDir, "config.yaml")
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".triad")

	return &Config{
		DataDir: dataDir,
		Daemon: DaemonConfig{
			SocketPath: filepath.Join(dataDir, "daemon.sock"),
			PIDPath:    filepath.Join(dataDir, "daemon.pid"),
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8787",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "triad.db"),
		},
		Catalog: CatalogConfig{
			TTL:           60 * time.Second,
			MemoryLimit:   5,
			MemoryTimeout: 2 * time.Second,
			SeedDir:       filepath.Join(dataDir, "catalog"),
			SeedPatterns: []string{
				"**/*.yaml",
				"**/*.yml",
			},
			IgnorePatterns: []string{
				"**/.git/**",
				"**/*.swp",
				"**/*~",
			},
			Watch:          true,
			DebounceWindow: 300 * time.Millisecond,
		},
		Executor: ExecutorConfig{
			SlotTimeout: 60 * time.Second,
			DefaultMode: "professional",
		},
		Audit: AuditConfig{
			Enabled:   true,
			QueueSize: 256,
		},
		Providers: map[string]ProviderConfig{
			"openai":    {RequestsPerSecond: 5, Burst: 5, FailureThreshold: 5, OpenTimeout: 30 * time.Second},
			"anthropic": {RequestsPerSecond: 5, Burst: 5, FailureThreshold: 5, OpenTimeout: 30 * time.Second},
			"gemini":    {RequestsPerSecond: 5, Burst: 5, FailureThreshold: 5, OpenTimeout: 30 * time.Second},
			"ollama":    {BaseURL: "http://localhost:11434", FailureThreshold: 5, OpenTimeout: 30 * time.Second},
			"static":    {},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "triad",
		},
	}
}

// Load reads defaults, then the optional YAML file at path, then environment
// overrides, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("TRIAD_DATA_DIR", c.DataDir)
	c.Daemon.SocketPath = getEnv("TRIAD_SOCKET", c.Daemon.SocketPath)
	c.Database.Path = getEnv("TRIAD_DB", c.Database.Path)
	c.Catalog.SeedDir = getEnv("TRIAD_CATALOG_DIR", c.Catalog.SeedDir)
	c.HTTP.Addr = getEnv("TRIAD_HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.Enabled = getEnvBool("TRIAD_HTTP_ENABLED", c.HTTP.Enabled)
	c.Log.Level = getEnv("TRIAD_LOG_LEVEL", c.Log.Level)
	c.Tracing.Enabled = getEnvBool("TRIAD_TRACING", c.Tracing.Enabled)
	if ttl := os.Getenv("TRIAD_CATALOG_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.Catalog.TTL = d
		}
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	c.setProviderKey("openai", "OPENAI_API_KEY", "OPENAI_BASE_URL")
	c.setProviderKey("anthropic", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL")
	c.setProviderKey("gemini", "GEMINI_API_KEY", "")
	c.setProviderKey("ollama", "", "OLLAMA_BASE_URL")
}

func (c *Config) setProviderKey(name, keyEnv, urlEnv string) {
	p := c.Providers[name]
	if keyEnv != "" {
		p.APIKey = getEnv(keyEnv, p.APIKey)
	}
	if urlEnv != "" {
		p.BaseURL = getEnv(urlEnv, p.BaseURL)
	}
	c.Providers[name] = p
}

func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return err
	}
	for _, p := range []string{c.Daemon.SocketPath, c.Database.Path} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
