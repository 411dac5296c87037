package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
	"github.com/groupbot-dev/groupbot/internal/infra/openai"
)

// Supported platforms
const (
	PlatformWeChat = "wechat"
	PlatformFeishu = "feishu"
)

const defaultAPIPort = 9876

// Config represents application configuration
type Config struct {
	// Platform to connect to: wechat or feishu
	Platform string

	// Bot identity and the chats it manages
	Bot BotConfig

	// Join flow configuration
	Invite InviteConfig

	// Rate limit configuration
	RateLimit RateLimitConfig

	// Admin shell and heartbeat
	Admin AdminConfig

	// Login session persistence
	Session SessionConfig

	// Conversational fallback (optional)
	Chatbot ChatbotConfig

	// Feishu configuration
	Feishu FeishuConfig

	// Local HTTP API
	API APIConfig

	// Logging
	Log LogConfig

	// Keyword table and welcome text (loaded from YAML)
	Tables *TablesConfig
}

// BotConfig contains bot identity configuration. Admins and groups are given
// by ID or display name and resolved after login.
type BotConfig struct {
	Name          string
	AdminIDs      []string // The first entry is the primary admin
	AdminGroup    string
	ManagedGroups []string
}

// InviteConfig contains join flow configuration
type InviteConfig struct {
	Code     string
	Capacity int
}

// RateLimitConfig contains rate limit configuration
type RateLimitConfig struct {
	PeriodSeconds int
	MaxMessages   int
}

// AdminConfig contains admin command configuration
type AdminConfig struct {
	HeartbeatInterval time.Duration
	ShellTimeout      time.Duration
}

// SessionConfig contains login session configuration
type SessionConfig struct {
	DBPath     string
	MaxAgeDays int
}

// ChatbotConfig contains chatbot configuration
type ChatbotConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// APIConfig contains local API configuration
type APIConfig struct {
	Port int
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string
	File  string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	// Session DB path
	sessionDBPath := os.Getenv("SESSION_DB_PATH")
	if sessionDBPath == "" {
		homeDir, _ := os.UserHomeDir()
		sessionDBPath = filepath.Join(homeDir, ".groupbot", "sessions.db")
	}

	platform := strings.ToLower(os.Getenv("PLATFORM"))
	if platform == "" {
		platform = PlatformWeChat
	}

	tables, err := LoadTablesConfig(os.Getenv("TABLES_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Platform: platform,
		Bot: BotConfig{
			Name:          os.Getenv("BOT_NAME"),
			AdminIDs:      splitList(os.Getenv("ADMIN_IDS")),
			AdminGroup:    strings.TrimSpace(os.Getenv("ADMIN_GROUP")),
			ManagedGroups: splitList(os.Getenv("MANAGED_GROUPS")),
		},
		Invite: InviteConfig{
			Code:     strings.TrimSpace(os.Getenv("GROUP_CODE")),
			Capacity: envInt("GROUP_CAPACITY", usecase.DefaultGroupCapacity),
		},
		RateLimit: RateLimitConfig{
			PeriodSeconds: envInt("RATE_PERIOD_SECONDS", 10),
			MaxMessages:   envInt("RATE_MAX_MESSAGES", 3),
		},
		Admin: AdminConfig{
			HeartbeatInterval: time.Duration(envInt("HEARTBEAT_INTERVAL", 600)) * time.Second,
			ShellTimeout:      time.Duration(envInt("SHELL_TIMEOUT", 30)) * time.Second,
		},
		Session: SessionConfig{
			DBPath:     sessionDBPath,
			MaxAgeDays: envInt("SESSION_MAX_AGE_DAYS", 0),
		},
		Chatbot: ChatbotConfig{
			APIKey:  os.Getenv("CHATBOT_API_KEY"),
			BaseURL: os.Getenv("CHATBOT_BASE_URL"),
			Model:   os.Getenv("CHATBOT_MODEL"),
		},
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		API: APIConfig{
			Port: envInt("API_PORT", defaultAPIPort),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Tables: tables,
	}, nil
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envInt parses an integer variable, falling back on absence or parse failure
func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

// splitList splits a comma separated list, dropping blanks
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ToSessionConfig converts to domain session configuration
func (c *SessionConfig) ToSessionConfig() domain.SessionConfig {
	return domain.SessionConfig{
		MaxAge: time.Duration(c.MaxAgeDays) * 24 * time.Hour,
	}
}

// ToRateLimitConfig converts to rate limit configuration
func (c *Config) ToRateLimitConfig() usecase.RateLimitConfig {
	return usecase.RateLimitConfig{
		Period:      time.Duration(c.RateLimit.PeriodSeconds) * time.Second,
		MaxMessages: c.RateLimit.MaxMessages,
	}
}

// ToInviteConfig converts to join flow configuration
func (c *Config) ToInviteConfig() usecase.InviteConfig {
	return usecase.InviteConfig{
		Code:     c.Invite.Code,
		Capacity: c.Invite.Capacity,
	}
}

// ToShellConfig converts to admin shell configuration
func (c *Config) ToShellConfig() usecase.ShellConfig {
	cfg := usecase.DefaultShellConfig()
	if c.Admin.ShellTimeout > 0 {
		cfg.Timeout = c.Admin.ShellTimeout
	}
	return cfg
}

// ToChatbotConfig converts to chatbot client configuration
func (c *Config) ToChatbotConfig() openai.Config {
	cfg := openai.Config{
		APIKey:  c.Chatbot.APIKey,
		BaseURL: c.Chatbot.BaseURL,
		Model:   c.Chatbot.Model,
	}
	if c.Tables != nil {
		cfg.SystemPrompt = c.Tables.Chatbot.SystemPrompt
	}
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformWeChat:
	case PlatformFeishu:
		if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required for the feishu platform"}
		}
	default:
		return &ConfigError{Field: "PLATFORM", Message: "must be wechat or feishu, got " + c.Platform}
	}

	if len(c.Bot.AdminIDs) == 0 {
		return &ConfigError{Field: "ADMIN_IDS", Message: "at least one admin is required"}
	}
	if len(c.Bot.ManagedGroups) == 0 {
		return &ConfigError{Field: "MANAGED_GROUPS", Message: "at least one managed group is required"}
	}
	if c.RateLimit.PeriodSeconds <= 0 || c.RateLimit.MaxMessages <= 0 {
		return &ConfigError{Field: "RATE_PERIOD_SECONDS/RATE_MAX_MESSAGES", Message: "must be positive"}
	}
	if c.Invite.Capacity <= 0 {
		return &ConfigError{Field: "GROUP_CAPACITY", Message: "must be positive"}
	}
	if c.Admin.HeartbeatInterval <= 0 {
		return &ConfigError{Field: "HEARTBEAT_INTERVAL", Message: "must be positive"}
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "out of range"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
