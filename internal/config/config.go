// Package config loads, validates, and watches ollama-chain configuration.
// Configuration lives in a single YAML file (default ~/.ollama-chain/config.yaml)
// with environment-variable overrides for the settings that change per host.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all ollama-chain configuration.
type Config struct {
	// StateDir is where sessions, memory, logs, and the archive live.
	StateDir string `yaml:"state_dir"`

	// Models is the chain ladder, ordered fastest/weakest first,
	// strongest last. Position in this list is meaningful.
	Models []ModelConfig `yaml:"models"`

	Ollama  OllamaConfig  `yaml:"ollama"`
	Router  RouterConfig  `yaml:"router"`
	Agent   AgentConfig   `yaml:"agent"`
	Tools   ToolsConfig   `yaml:"tools"`
	Memory  MemoryConfig  `yaml:"memory"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// OllamaConfig configures the model backend connection.
type OllamaConfig struct {
	Host string `yaml:"host"`

	// Timeout bounds a single completion call.
	Timeout string `yaml:"timeout"`

	// MaxRetries is the transient-failure retry count per call.
	// Backoff between attempts is exponential starting at RetryBackoff.
	MaxRetries   int    `yaml:"max_retries"`
	RetryBackoff string `yaml:"retry_backoff"`
}

// RouterConfig configures complexity classification.
type RouterConfig struct {
	// Mode selects the classifier: "heuristic" (lexical scoring) or
	// "llm" (one cheap model call, heuristic fallback).
	Mode string `yaml:"mode"`

	// WebSearch is the session default; simple-complexity routing
	// still skips search regardless.
	WebSearch bool `yaml:"web_search"`
}

// AgentConfig configures the execution loop.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
	MaxReplans    int `yaml:"max_replans"`

	// GroupWorkers caps the worker pool inside one parallel group.
	// Effective pool size is min(group size, GroupWorkers).
	GroupWorkers int `yaml:"group_workers"`

	// ExecuteAllReadyGroups releases every dependency-satisfied group
	// per iteration instead of only the first. Off by default: executing
	// one group at a time lets replanning see each group's results.
	ExecuteAllReadyGroups bool `yaml:"execute_all_ready_groups"`
}

// ToolsConfig configures tool execution.
type ToolsConfig struct {
	ShellTimeout string `yaml:"shell_timeout"`

	// RetryDelay is the fixed pause between tool retry attempts.
	// Tool retries never back off exponentially; that policy belongs
	// to the model-call layer.
	RetryDelay string `yaml:"retry_delay"`

	// MaxOutputBytes truncates tool output before it reaches memory.
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// DenyPatterns extends the built-in shell safety denylist.
	DenyPatterns []string `yaml:"deny_patterns"`

	SearchBackend string `yaml:"search_backend"`
	SearchResults int    `yaml:"search_results"`
}

// MemoryConfig configures session and persistent memory.
type MemoryConfig struct {
	// MaxFacts bounds the persistent fact store.
	MaxFacts int `yaml:"max_facts"`

	// SessionRing is how many archived sessions are retained.
	SessionRing int `yaml:"session_ring"`
}

// ServerConfig configures the HTTP job-queue front-end.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// MaxConcurrentJobs bounds simultaneously-running sessions. Local
	// models contend for the same GPU, so the default is one at a time.
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
	QueueSize         int    `yaml:"queue_size"`
	JobTimeout        string `yaml:"job_timeout"`

	// MinFreeMemMB rejects new jobs while available memory is below the
	// threshold. Zero disables the gate.
	MinFreeMemMB int `yaml:"min_free_mem_mb"`
}

// LoggingConfig configures category file logging.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Level      string          `yaml:"level"`
	Console    bool            `yaml:"console"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StateDir: DefaultStateDir(),

		Models: []ModelConfig{
			{Name: "llama3.2:3b", ContextWindow: 8192, SupportsThinking: false},
			{Name: "qwen3:14b", ContextWindow: 32768, SupportsThinking: true},
			{Name: "qwen3:32b", ContextWindow: 32768, SupportsThinking: true},
		},

		Ollama: OllamaConfig{
			Host:         "http://localhost:11434",
			Timeout:      "120s",
			MaxRetries:   3,
			RetryBackoff: "1s",
		},

		Router: RouterConfig{
			Mode:      "heuristic",
			WebSearch: true,
		},

		Agent: AgentConfig{
			MaxIterations:         15,
			MaxReplans:            2,
			GroupWorkers:          3,
			ExecuteAllReadyGroups: false,
		},

		Tools: ToolsConfig{
			ShellTimeout:   "30s",
			RetryDelay:     "2s",
			MaxOutputBytes: 50000,
			SearchBackend:  "duckduckgo",
			SearchResults:  5,
		},

		Memory: MemoryConfig{
			MaxFacts:    200,
			SessionRing: 50,
		},

		Server: ServerConfig{
			Addr:              ":8420",
			MaxConcurrentJobs: 1,
			QueueSize:         16,
			JobTimeout:        "15m",
			MinFreeMemMB:      512,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultStateDir resolves the state directory: OLLAMA_CHAIN_HOME if set,
// else ~/.ollama-chain, else ./.ollama-chain when home is unavailable.
func DefaultStateDir() string {
	if dir := os.Getenv("OLLAMA_CHAIN_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ollama-chain"
	}
	return filepath.Join(home, ".ollama-chain")
}

// DefaultConfigPath returns <state-dir>/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultStateDir(), "config.yaml")
}

// Load reads configuration from a YAML file. A missing file is not an
// error: defaults (plus env overrides) are returned so first runs work
// without any setup.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// OLLAMA_HOST is the upstream convention; our own var wins when both set.
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Ollama.Host = normalizeHost(host)
	}
	if host := os.Getenv("OLLAMA_CHAIN_HOST"); host != "" {
		c.Ollama.Host = normalizeHost(host)
	}

	if dir := os.Getenv("OLLAMA_CHAIN_HOME"); dir != "" {
		c.StateDir = dir
	}

	// Comma-separated ladder override, fastest first. Context window and
	// thinking support fall back to conservative defaults.
	if models := os.Getenv("OLLAMA_CHAIN_MODELS"); models != "" {
		var ladder []ModelConfig
		for _, name := range strings.Split(models, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			ladder = append(ladder, ModelConfig{Name: name, ContextWindow: 8192})
		}
		if len(ladder) > 0 {
			c.Models = ladder
		}
	}

	if addr := os.Getenv("OLLAMA_CHAIN_ADDR"); addr != "" {
		c.Server.Addr = addr
	}

	if debug := os.Getenv("OLLAMA_CHAIN_DEBUG"); debug != "" {
		c.Logging.Debug = debug == "1" || strings.EqualFold(debug, "true")
	}
}

// normalizeHost accepts "host:port" shorthand and returns a full URL.
func normalizeHost(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "http://" + strings.TrimRight(host, "/")
}

// ValidRouterModes lists supported router classification modes.
var ValidRouterModes = []string{"heuristic", "llm"}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("no models configured (set models in config or OLLAMA_CHAIN_MODELS)")
	}

	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("model with empty name in ladder")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate model in ladder: %s", m.Name)
		}
		seen[m.Name] = true
	}

	validMode := false
	for _, m := range ValidRouterModes {
		if c.Router.Mode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("invalid router mode: %s (valid: %v)", c.Router.Mode, ValidRouterModes)
	}

	if c.Agent.GroupWorkers < 1 {
		return fmt.Errorf("agent.group_workers must be >= 1, got %d", c.Agent.GroupWorkers)
	}
	if c.Server.MaxConcurrentJobs < 1 {
		return fmt.Errorf("server.max_concurrent_jobs must be >= 1, got %d", c.Server.MaxConcurrentJobs)
	}
	if c.Server.MinFreeMemMB < 0 {
		return fmt.Errorf("server.min_free_mem_mb must be >= 0, got %d", c.Server.MinFreeMemMB)
	}
	return nil
}

// GetOllamaTimeout returns the per-call model timeout.
func (c *Config) GetOllamaTimeout() time.Duration {
	d, err := time.ParseDuration(c.Ollama.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetRetryBackoff returns the initial model-call retry backoff.
func (c *Config) GetRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.Ollama.RetryBackoff)
	if err != nil {
		return time.Second
	}
	return d
}

// GetShellTimeout returns the shell command timeout.
func (c *Config) GetShellTimeout() time.Duration {
	d, err := time.ParseDuration(c.Tools.ShellTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetToolRetryDelay returns the fixed pause between tool retries.
func (c *Config) GetToolRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.Tools.RetryDelay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetJobTimeout returns the server-side whole-session timeout.
func (c *Config) GetJobTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.JobTimeout)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}
