// Package config loads service configuration from defaults, an optional YAML
// file, an optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads "300ms"/"45s" strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Addr    string  `yaml:"addr"`
	Log     Log     `yaml:"log"`
	LLM     LLM     `yaml:"llm"`
	Search  Search  `yaml:"search"`
	Browser Browser `yaml:"browser"`
	Agent   Agent   `yaml:"agent"`
	Access  Access  `yaml:"access"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

type LLM struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	OpenAIKey    string   `yaml:"openai_api_key"`
	OpenAIBase   string   `yaml:"openai_api_base"`
	AnthropicKey string   `yaml:"anthropic_api_key"`
	GoogleKey    string   `yaml:"google_api_key"`
	Timeout      Duration `yaml:"timeout"`
}

type Search struct {
	TavilyKey  string `yaml:"tavily_api_key"`
	TavilyURL  string `yaml:"tavily_api_url"`
	MaxResults int    `yaml:"max_results"`
}

const (
	BrowserRod  = "rod"
	BrowserHTTP = "http"
	BrowserOff  = "off"
)

type Browser struct {
	Mode              string   `yaml:"mode"`
	ControlURL        string   `yaml:"control_url"`
	Headless          bool     `yaml:"headless"`
	ReadyTimeout      Duration `yaml:"ready_timeout"`
	NavigationTimeout Duration `yaml:"navigation_timeout"`
}

type Agent struct {
	StepCount int      `yaml:"step_count"`
	Routing   string   `yaml:"routing"` // loose, strict
	LogDelay  Duration `yaml:"log_delay"`
	StepPause Duration `yaml:"step_pause"`
}

type Access struct {
	Enabled    bool `yaml:"enabled"`
	GuestLimit int  `yaml:"guest_limit"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Addr: ":8080",
		Log:  Log{Level: "info", Format: "json"},
		LLM:  LLM{Timeout: Duration(45 * time.Second)},
		Search: Search{
			TavilyURL:  "https://api.tavily.com/search",
			MaxResults: 5,
		},
		Browser: Browser{
			Mode:              BrowserHTTP,
			Headless:          true,
			ReadyTimeout:      Duration(15 * time.Second),
			NavigationTimeout: Duration(20 * time.Second),
		},
		Agent: Agent{
			StepCount: 4,
			Routing:   "loose",
			LogDelay:  Duration(300 * time.Millisecond),
			StepPause: Duration(500 * time.Millisecond),
		},
		Access: Access{GuestLimit: 3},
	}
}

// Load builds the configuration. yamlPath and envFile are optional; a missing
// envFile is ignored.
func Load(yamlPath, envFile string) (Config, error) {
	cfg := Defaults()

	if yamlPath != "" {
		b, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load env file: %w", err)
		}
	}

	applyEnv(&cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks enumerated fields and bounds.
func (c Config) Validate() error {
	switch c.Browser.Mode {
	case BrowserRod, BrowserHTTP, BrowserOff:
	default:
		return fmt.Errorf("unknown browser mode %q", c.Browser.Mode)
	}
	switch c.Agent.Routing {
	case "loose", "strict":
	default:
		return fmt.Errorf("unknown routing mode %q", c.Agent.Routing)
	}
	if c.Agent.StepCount < 1 {
		return errors.New("agent step count must be positive")
	}
	if c.Agent.LogDelay < 0 || c.Agent.StepPause < 0 {
		return errors.New("agent pacing delays must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		cfg.Addr = ":" + v
	}
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("LLM_MODEL", &cfg.LLM.Model)
	str("OPENAI_API_KEY", &cfg.LLM.OpenAIKey)
	str("OPENAI_API_BASE", &cfg.LLM.OpenAIBase)
	str("ANTHROPIC_API_KEY", &cfg.LLM.AnthropicKey)
	str("GEMINI_API_KEY", &cfg.LLM.GoogleKey)
	str("GOOGLE_API_KEY", &cfg.LLM.GoogleKey)
	if v := strings.TrimSpace(getenv("LLM_HTTP_TIMEOUT_MS")); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.LLM.Timeout = Duration(time.Duration(ms) * time.Millisecond)
		}
	}

	str("TAVILY_API_KEY", &cfg.Search.TavilyKey)
	str("TAVILY_API_URL", &cfg.Search.TavilyURL)

	str("BROWSER_MODE", &cfg.Browser.Mode)
	str("BROWSER_CONTROL_URL", &cfg.Browser.ControlURL)
	if v := strings.TrimSpace(getenv("BROWSER_HEADLESS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}

	num("AGENT_STEP_COUNT", &cfg.Agent.StepCount)
	str("AGENT_ROUTING", &cfg.Agent.Routing)
	if v := strings.TrimSpace(getenv("ACCESS_GATE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Access.Enabled = b
		}
	}
	num("ACCESS_GUEST_LIMIT", &cfg.Access.GuestLimit)
}
