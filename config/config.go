// Package config loads goalagent settings from defaults, an optional YAML
// file, and GOALAGENT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/martinemde/goalagent/agent"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "GOALAGENT_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Oracle    OracleConfig    `koanf:"oracle"`
	Agent     AgentConfig     `koanf:"agent"`
	Workspace WorkspaceConfig `koanf:"workspace"`
	Goals     []agent.Goal    `koanf:"goals"`
	RunLog    RunLogConfig    `koanf:"runlog"`
	Tracing   TracingConfig   `koanf:"tracing"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type OracleConfig struct {
	Provider    string        `koanf:"provider"` // openai, anthropic, ollama
	Model       string        `koanf:"model"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	RateLimit   float64       `koanf:"rate_limit"` // requests per second; 0 disables
	Burst       int           `koanf:"burst"`
}

type AgentConfig struct {
	MaxIterations int      `koanf:"max_iterations"`
	LoopWindow    int      `koanf:"loop_window"`
	OutputLimit   int      `koanf:"output_limit"`
	ActionTags    []string `koanf:"action_tags"`
}

type WorkspaceConfig struct {
	Root       string   `koanf:"root"`
	Extensions []string `koanf:"extensions"`
}

type RunLogConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// DefaultGoals are used when the configuration names none.
var DefaultGoals = []agent.Goal{
	{
		Priority:    1,
		Name:        "Gather Information",
		Description: "Read each file in the project in order to build a deep understanding of the project in order to write a README",
	},
	{
		Priority:    1,
		Name:        "Write README",
		Description: "Write a comprehensive README for the project based on the information gathered from the files",
	},
	{
		Priority:    1,
		Name:        "Terminate",
		Description: "Call terminate when done and provide a short summary of what was done",
	},
}

func setDefaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("oracle.provider", "ollama")
	k.Set("oracle.model", "")
	k.Set("oracle.temperature", 0.2)
	k.Set("oracle.max_tokens", 1024)
	k.Set("oracle.timeout", "2m")
	k.Set("oracle.max_retries", 2)
	k.Set("oracle.rate_limit", 0.0)
	k.Set("oracle.burst", 1)

	k.Set("agent.max_iterations", agent.DefaultMaxIterations)
	k.Set("agent.loop_window", agent.DefaultLoopDetectionWindow)
	k.Set("agent.output_limit", agent.DefaultOutputLimit)
	k.Set("agent.action_tags", []string{"file_operations", "system"})

	k.Set("workspace.root", ".")
	k.Set("workspace.extensions", []string{".py"})

	k.Set("runlog.enabled", false)
	k.Set("runlog.path", "goalagent.db")

	k.Set("tracing.enabled", false)
	k.Set("tracing.service_name", "goalagent")
}

// envKey maps GOALAGENT_ORACLE_API_KEY to oracle.api_key. Only the first
// underscore separates section from key.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

// Load reads configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Goals) == 0 {
		cfg.Goals = append([]agent.Goal(nil), DefaultGoals...)
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Oracle.Provider == "" {
		errs = append(errs, errors.New("oracle.provider is required"))
	}
	if c.Oracle.MaxRetries < 0 {
		errs = append(errs, errors.New("oracle.max_retries must not be negative"))
	}
	if c.Oracle.RateLimit < 0 {
		errs = append(errs, errors.New("oracle.rate_limit must not be negative"))
	}
	if c.Oracle.RateLimit > 0 && c.Oracle.Burst < 1 {
		errs = append(errs, errors.New("oracle.burst must be at least 1 when rate limiting"))
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, errors.New("agent.max_iterations must be at least 1"))
	}
	if c.Agent.LoopWindow < 0 {
		errs = append(errs, errors.New("agent.loop_window must not be negative"))
	}
	if c.Agent.OutputLimit < 0 {
		errs = append(errs, errors.New("agent.output_limit must not be negative"))
	}
	if c.Workspace.Root == "" {
		errs = append(errs, errors.New("workspace.root is required"))
	}
	if c.RunLog.Enabled && c.RunLog.Path == "" {
		errs = append(errs, errors.New("runlog.path is required when the run log is enabled"))
	}
	for i, g := range c.Goals {
		if g.Name == "" {
			errs = append(errs, fmt.Errorf("goals[%d]: name is required", i))
		}
	}
	return errors.Join(errs...)
}
