// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		LockPath          string `yaml:"lock_path"`
		RunTimeoutSeconds int    `yaml:"run_timeout_seconds"`
		DryRun            bool   `yaml:"dry_run"`
	} `yaml:"app"`

	Mail struct {
		IMAPHost    string `yaml:"imap_host"`
		IMAPPort    int    `yaml:"imap_port"`
		SMTPHost    string `yaml:"smtp_host"`
		SMTPPort    int    `yaml:"smtp_port"`
		Username    string `yaml:"username"`
		Password    string `yaml:"-"` // env or keychain only
		From        string `yaml:"from"`
		Mailbox     string `yaml:"mailbox"`
		MaxMessages int    `yaml:"max_messages"`
		SinceDays   int    `yaml:"since_days"`
		LeaveUnseen bool   `yaml:"leave_unseen"`
	} `yaml:"mail"`

	Trello struct {
		BaseURL           string  `yaml:"base_url"`
		APIKey            string  `yaml:"api_key"`
		Token             string  `yaml:"-"` // env or keychain only
		ListID            string  `yaml:"list_id"`
		BoardID           string  `yaml:"board_id"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"trello"`

	Notify struct {
		Instructor        string  `yaml:"instructor"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"notify"`

	Extract struct {
		Selection string `yaml:"selection"` // first | last
	} `yaml:"extract"`

	Polling struct {
		EverySeconds int `yaml:"every_seconds"` // 0 = run once
	} `yaml:"polling"`

	Store struct {
		Path string `yaml:"path"` // empty disables the run journal
	} `yaml:"store"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

func Default() Config {
	var cfg Config
	cfg.App.RunTimeoutSeconds = 300
	cfg.Mail.IMAPHost = "imap.gmail.com"
	cfg.Mail.IMAPPort = 993
	cfg.Mail.SMTPHost = "smtp.gmail.com"
	cfg.Mail.SMTPPort = 587
	cfg.Mail.Mailbox = "INBOX"
	cfg.Mail.MaxMessages = 200
	cfg.Trello.BaseURL = "https://api.trello.com/1"
	cfg.Trello.TimeoutSeconds = 20
	cfg.Trello.RequestsPerSecond = 5
	cfg.Notify.RequestsPerSecond = 1
	cfg.Extract.Selection = "last"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvFile loads a dotenv file without overriding variables already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overlays the recognized environment variables onto cfg and fills
// the instructor from the mailbox username when neither file nor env set it.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Mail.Username, "EMAIL")
	set(&cfg.Mail.Password, "PASSWORD")
	set(&cfg.Trello.APIKey, "TRELLO_API_KEY")
	set(&cfg.Trello.Token, "TRELLO_TOKEN")
	set(&cfg.Trello.ListID, "TRELLO_LIST_ID")
	set(&cfg.Trello.BoardID, "BOARD_ID")
	set(&cfg.Notify.Instructor, "INSTRUCTOR_EMAIL")

	// Without an explicit instructor, notices go to the intake mailbox itself.
	if cfg.Notify.Instructor == "" {
		cfg.Notify.Instructor = cfg.Mail.Username
	}
}

func (c Config) IMAPAddr() string { return fmt.Sprintf("%s:%d", c.Mail.IMAPHost, c.Mail.IMAPPort) }
func (c Config) SMTPAddr() string { return fmt.Sprintf("%s:%d", c.Mail.SMTPHost, c.Mail.SMTPPort) }

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.App.RunTimeoutSeconds) * time.Second
}

func (c Config) TrelloTimeout() time.Duration {
	return time.Duration(c.Trello.TimeoutSeconds) * time.Second
}

func (c Config) PollEvery() time.Duration {
	return time.Duration(c.Polling.EverySeconds) * time.Second
}
