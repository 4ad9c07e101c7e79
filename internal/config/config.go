package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	GitHub        GitHubConfig        `toml:"github"`
	Labels        LabelsConfig        `toml:"labels"`
	Classifier    ClassifierConfig    `toml:"classifier"`
	Checks        ChecksConfig        `toml:"checks"`
	Jobs          JobsConfig          `toml:"jobs"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	DatabasePath string `toml:"database_path"`
}

// GitHubConfig holds GitHub access settings
type GitHubConfig struct {
	// BotUsernames are the aliases the Jules agent comments under.
	// Matching is case-insensitive and ignores the "[bot]" suffix.
	BotUsernames []string `toml:"bot_usernames"`
	GhPath       string   `toml:"gh_path"`
}

// LabelsConfig names the three labels that drive the queue state machine
type LabelsConfig struct {
	Active string `toml:"active"`
	Queued string `toml:"queued"`
	Human  string `toml:"human"`
}

// ClassifierConfig holds the comment classifier's patterns and weights.
// The weights have no documented derivation; they are tunable, not
// load-bearing.
type ClassifierConfig struct {
	TaskLimitPatterns []string `toml:"task_limit_patterns"`
	WorkingPatterns   []string `toml:"working_patterns"`

	TaskLimitBase     float64 `toml:"task_limit_base"`
	TaskLimitPerMatch float64 `toml:"task_limit_per_match"`
	WorkingBase       float64 `toml:"working_base"`
	WorkingPerMatch   float64 `toml:"working_per_match"`

	MinConfidence         float64 `toml:"min_confidence"`
	StaleAfterMinutes     float64 `toml:"stale_after_minutes"`
	FallbackWindowMinutes float64 `toml:"fallback_window_minutes"`
	MaxFetchRetries       int     `toml:"max_fetch_retries"`
}

// ChecksConfig controls how comment checks are scheduled
type ChecksConfig struct {
	DelaySeconds       int `toml:"delay_seconds"`
	BatchOffsetMinutes int `toml:"batch_offset_minutes"`
	BatchSize          int `toml:"batch_size"`
}

// JobsConfig holds cron expressions for the background jobs
type JobsConfig struct {
	SweepCron        string `toml:"sweep_cron"`
	CheckCron        string `toml:"check_cron"`
	ScheduleCron     string `toml:"schedule_cron"`
	CleanupCron      string `toml:"cleanup_cron"`
	CleanupAfterDays int    `toml:"cleanup_after_days"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds HTTP API settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`

	// WebhookSecret validates GitHub webhook signatures. Empty disables
	// verification, which is only sensible behind a trusted proxy.
	WebhookSecret string `toml:"webhook_secret"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			DatabasePath: filepath.Join(home, ".julesq", "julesq.db"),
		},
		GitHub: GitHubConfig{
			BotUsernames: []string{
				"google-labs-jules[bot]",
				"google-labs-jules",
				"jules[bot]",
				"jules-bot",
			},
			GhPath: "gh",
		},
		Labels: LabelsConfig{
			Active: "jules",
			Queued: "jules-queue",
			Human:  "human",
		},
		Classifier: ClassifierConfig{
			TaskLimitPatterns: []string{
				"You are currently at your concurrent task limit",
				"concurrent task limit",
				"task limit reached",
				"too many tasks",
			},
			WorkingPatterns: []string{
				"When finished, you will see another comment",
				"I'll get started on this",
				"Working on this now",
				"Starting work on",
			},
			TaskLimitBase:         0.4,
			TaskLimitPerMatch:     0.4,
			WorkingBase:           0.5,
			WorkingPerMatch:       0.3,
			MinConfidence:         0.6,
			StaleAfterMinutes:     120,
			FallbackWindowMinutes: 30,
			MaxFetchRetries:       3,
		},
		Checks: ChecksConfig{
			DelaySeconds:       60,
			BatchOffsetMinutes: 60,
			BatchSize:          100,
		},
		Jobs: JobsConfig{
			SweepCron:        "*/30 * * * *",
			CheckCron:        "* * * * *",
			ScheduleCron:     "0 * * * *",
			CleanupCron:      "0 4 * * *",
			CleanupAfterDays: 7,
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the core cannot operate with
func (c *Config) Validate() error {
	if c.Labels.Active == "" || c.Labels.Queued == "" {
		return fmt.Errorf("labels.active and labels.queued are required")
	}
	if strings.EqualFold(c.Labels.Active, c.Labels.Queued) {
		return fmt.Errorf("labels.active and labels.queued must differ")
	}
	if c.Classifier.MinConfidence < 0 || c.Classifier.MinConfidence > 1 {
		return fmt.Errorf("classifier.min_confidence must be in [0,1]")
	}
	if c.Classifier.MaxFetchRetries < 1 {
		c.Classifier.MaxFetchRetries = 1
	}
	if c.Checks.BatchSize <= 0 {
		c.Checks.BatchSize = 100
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "julesq", "config.toml")
}
