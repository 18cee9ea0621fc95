package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// OpenAI-compatible completion provider configuration (optional)
	OpenAI OpenAIConfig

	// Moderation policy
	Moderation ModerationConfig

	// Bot behavior
	Bot BotConfig

	// Audit log configuration
	Audit AuditConfig

	// HTTP admin API port
	APIPort int

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu app credentials
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// OpenAIConfig contains completion provider configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ModerationConfig contains the moderation policy knobs
type ModerationConfig struct {
	BannedWords          []string
	AllowedLinkDomains   []string
	MaxMessagesPerMinute int
	MaxWarnings          int
}

// BotConfig contains command-dispatch behavior
type BotConfig struct {
	CommandPrefix   string
	AIPrefix        string
	Admins          []string
	UserDomain      string // default domain suffix appended to bare user ids
	WelcomeTemplate string
	GoodbyeTemplate string
}

// AuditConfig contains audit log configuration
type AuditConfig struct {
	DBPath string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	auditDBPath := os.Getenv("GUARD_AUDIT_DB_PATH")
	if auditDBPath == "" {
		home, _ := os.UserHomeDir()
		auditDBPath = filepath.Join(home, ".feishu-guard", "audit.db")
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Moderation: ModerationConfig{
			BannedWords:          splitList(os.Getenv("GUARD_BANNED_WORDS")),
			AllowedLinkDomains:   splitList(os.Getenv("GUARD_ALLOWED_DOMAINS")),
			MaxMessagesPerMinute: getEnvIntOrDefault("GUARD_MAX_MESSAGES_PER_MINUTE", 10),
			MaxWarnings:          getEnvIntOrDefault("GUARD_MAX_WARNINGS", 3),
		},
		Bot: BotConfig{
			CommandPrefix:   getEnvOrDefault("GUARD_COMMAND_PREFIX", "!"),
			AIPrefix:        getEnvOrDefault("GUARD_AI_PREFIX", "."),
			Admins:          splitList(os.Getenv("GUARD_ADMINS")),
			UserDomain:      getEnvOrDefault("GUARD_USER_DOMAIN", "open.feishu.cn"),
			WelcomeTemplate: getEnvOrDefault("GUARD_WELCOME", "Welcome to the group, {user}!"),
			GoodbyeTemplate: getEnvOrDefault("GUARD_GOODBYE", "Goodbye, {user}."),
		},
		Audit: AuditConfig{
			DBPath: auditDBPath,
		},
		APIPort: getEnvIntOrDefault("GUARD_API_PORT", 9876),
		Debug:   os.Getenv("DEBUG") == "true",
	}
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" {
		return fmt.Errorf("FEISHU_APP_ID is required")
	}
	if c.Feishu.AppSecret == "" {
		return fmt.Errorf("FEISHU_APP_SECRET is required")
	}
	if c.Bot.CommandPrefix == "" {
		return fmt.Errorf("command prefix must not be empty")
	}
	if c.Moderation.MaxMessagesPerMinute <= 0 {
		return fmt.Errorf("max messages per minute must be positive")
	}
	if c.Moderation.MaxWarnings <= 0 {
		return fmt.Errorf("max warnings must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// splitList splits a comma-separated env value into trimmed entries
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
