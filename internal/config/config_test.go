package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		yaml   string
		env    string
		vars   map[string]string
		expCfg func(c *Config)
		expErr bool
	}{
		"Without sources the defaults should be used": {
			expCfg: func(c *Config) {},
		},

		"YAML values should override defaults": {
			yaml: `
addr: ":9000"
agent:
  step_count: 6
  log_delay: 10ms
browser:
  mode: "off"
`,
			expCfg: func(c *Config) {
				c.Addr = ":9000"
				c.Agent.StepCount = 6
				c.Agent.LogDelay = Duration(10 * time.Millisecond)
				c.Browser.Mode = BrowserOff
			},
		},

		"Environment should override YAML": {
			yaml: `
llm:
  provider: openai
  model: from-yaml
`,
			vars: map[string]string{
				"LLM_MODEL":           "from-env",
				"PORT":                "7070",
				"LLM_HTTP_TIMEOUT_MS": "1500",
			},
			expCfg: func(c *Config) {
				c.Addr = ":7070"
				c.LLM.Provider = "openai"
				c.LLM.Model = "from-env"
				c.LLM.Timeout = Duration(1500 * time.Millisecond)
			},
		},

		"Env file values should be loaded": {
			env: "TAVILY_API_KEY=tvly-test\nAGENT_ROUTING=strict\n",
			expCfg: func(c *Config) {
				c.Search.TavilyKey = "tvly-test"
				c.Agent.Routing = "strict"
			},
		},

		"An invalid browser mode should fail": {
			yaml:   `browser: {mode: "chrome"}`,
			expErr: true,
		},

		"An invalid duration should fail": {
			yaml:   `agent: {step_pause: "soon"}`,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			var yamlPath, envPath string
			if test.yaml != "" {
				yamlPath = filepath.Join(dir, "config.yaml")
				require.NoError(t, os.WriteFile(yamlPath, []byte(test.yaml), 0o600))
			}
			envPath = filepath.Join(dir, ".env")
			if test.env != "" {
				require.NoError(t, os.WriteFile(envPath, []byte(test.env), 0o600))
				t.Cleanup(func() {
					os.Unsetenv("TAVILY_API_KEY")
					os.Unsetenv("AGENT_ROUTING")
				})
			}
			for k, v := range test.vars {
				t.Setenv(k, v)
			}

			cfg, err := Load(yamlPath, envPath)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			exp := Defaults()
			test.expCfg(&exp)
			assert.Equal(t, exp, cfg)
		})
	}
}
