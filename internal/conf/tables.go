package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
)

// TablesConfig contains the reply tables loaded from YAML
type TablesConfig struct {
	// Keyword table, matched in order; the first entry with a matching keyword wins
	Keywords []usecase.KeywordReply `yaml:"keywords"`

	// Welcome template for new members; {name} is replaced by their name
	Welcome string `yaml:"welcome"`

	Chatbot ChatbotPrompts `yaml:"chatbot"`
}

// ChatbotPrompts contains conversational fallback prompts
type ChatbotPrompts struct {
	SystemPrompt string `yaml:"system_prompt"`
}

// LoadTablesConfig loads the reply tables from a YAML file.
// Defaults are used when no file is found.
func LoadTablesConfig(configPath string) (*TablesConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/tables.yaml",
			"/etc/groupbot/tables.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "tables.yaml"))
		}
	}

	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
		}
		return DefaultTablesConfig(), nil
	}

	var config TablesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse tables.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *TablesConfig) fillDefaults() {
	defaults := DefaultTablesConfig()

	if c.Welcome == "" {
		c.Welcome = defaults.Welcome
	}
	if c.Chatbot.SystemPrompt == "" {
		c.Chatbot.SystemPrompt = defaults.Chatbot.SystemPrompt
	}
}

// DefaultTablesConfig returns the default tables: no keywords and the stock welcome
func DefaultTablesConfig() *TablesConfig {
	return &TablesConfig{
		Welcome: usecase.DefaultWelcome,
		Chatbot: ChatbotPrompts{
			SystemPrompt: "You are a friendly assistant in a WeChat group. Answer briefly, in the language of the question.",
		},
	}
}
