package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	CRM      CRMConfig
	Database DatabaseConfig
	Scraper  ScraperConfig
	Batch    BatchConfig
	LogLevel string
}

type CRMConfig struct {
	APIKey   string
	Company  string
	UserID   string
	UserName string
	// EventCalendarID pins the hearings calendar; 0 means resolve by name.
	EventCalendarID int64
}

type DatabaseConfig struct {
	Path      string
	LogTiming bool
}

type ScraperConfig struct {
	Timeout time.Duration
	Retries int
}

type BatchConfig struct {
	Size  int
	Pause time.Duration
}

// Load reads configuration from the environment and fails fast when the
// CRM credentials the sync and parse commands depend on are missing.
func Load() (Config, error) {
	return load(true)
}

// LoadForTool loads config for commands that can run without CRM credentials.
func LoadForTool() (Config, error) {
	return load(false)
}

func load(requireCRM bool) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("aspro_api_key", "")
	v.SetDefault("aspro_company", "")
	v.SetDefault("userid", "")
	v.SetDefault("user_name", "")
	v.SetDefault("aspro_event_calendar_id", 0)
	v.SetDefault("kadsync_db_path", "data/kad_cases")
	v.SetDefault("kadsync_db_timing", false)
	v.SetDefault("kadsync_log_level", "info")
	v.SetDefault("kadsync_batch_size", 10)
	v.SetDefault("kadsync_batch_pause_seconds", 5)
	v.SetDefault("kadsync_scrape_timeout_seconds", 30)
	v.SetDefault("kadsync_scrape_retries", 3)

	batchSize := v.GetInt("kadsync_batch_size")
	if batchSize <= 0 {
		batchSize = 10
	}

	pauseSeconds := v.GetInt("kadsync_batch_pause_seconds")
	if pauseSeconds < 0 {
		pauseSeconds = 0
	}

	scrapeTimeout := v.GetInt("kadsync_scrape_timeout_seconds")
	if scrapeTimeout <= 0 {
		scrapeTimeout = 30
	}

	scrapeRetries := v.GetInt("kadsync_scrape_retries")
	if scrapeRetries <= 0 {
		scrapeRetries = 3
	}

	cfg := Config{
		CRM: CRMConfig{
			APIKey:          strings.TrimSpace(v.GetString("aspro_api_key")),
			Company:         strings.TrimSpace(v.GetString("aspro_company")),
			UserID:          strings.TrimSpace(v.GetString("userid")),
			UserName:        unquote(v.GetString("user_name")),
			EventCalendarID: v.GetInt64("aspro_event_calendar_id"),
		},
		Database: DatabaseConfig{
			Path:      strings.TrimSpace(v.GetString("kadsync_db_path")),
			LogTiming: v.GetBool("kadsync_db_timing"),
		},
		Scraper: ScraperConfig{
			Timeout: time.Duration(scrapeTimeout) * time.Second,
			Retries: scrapeRetries,
		},
		Batch: BatchConfig{
			Size:  batchSize,
			Pause: time.Duration(pauseSeconds) * time.Second,
		},
		LogLevel: strings.ToLower(strings.TrimSpace(v.GetString("kadsync_log_level"))),
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/kad_cases"
	}

	if requireCRM {
		if err := cfg.CRM.validate(); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func (c CRMConfig) validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "ASPRO_API_KEY")
	}
	if c.Company == "" {
		missing = append(missing, "ASPRO_COMPANY")
	}
	if c.UserID == "" {
		missing = append(missing, "USERID")
	}
	if c.UserName == "" {
		missing = append(missing, "USER_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// unquote strips one matching pair of surrounding quotes. USER_NAME often
// arrives quoted from .env files because display names contain spaces.
func unquote(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
