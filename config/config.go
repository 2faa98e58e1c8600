package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Telegram  TelegramConfig
	Scheduler SchedulerConfig
	Browser   BrowserConfig
	Proxy     ProxyConfig
	S3        S3Config
	Database  DatabaseConfig
	DataDir   string
	LogLevel  string
	Profiles  []*SearchProfile
}

type TelegramConfig struct {
	BotToken    string
	AdminChatID string
}

type SchedulerConfig struct {
	CheckInterval  time.Duration
	JitterMin      time.Duration
	JitterMax      time.Duration
	HeartbeatCron  string
}

type BrowserConfig struct {
	Headless    bool
	SlowMo      int
	RecordVideo bool
	StateFile   string
}

type ProxyConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Configured() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

type DatabaseConfig struct {
	// URL selects Postgres when set to a postgres:// connection string;
	// otherwise the SQLite file at Path is used.
	URL  string
	Path string
}

func (c DatabaseConfig) UsePostgres() bool {
	return strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://")
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		Telegram: TelegramConfig{
			BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
			AdminChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		},
		Scheduler: SchedulerConfig{
			CheckInterval: time.Duration(getEnvInt("CHECK_INTERVAL_MINUTES", 2)) * time.Minute,
			JitterMin:     time.Duration(getEnvInt("RANDOM_DELAY_MIN_SECONDS", 0)) * time.Second,
			JitterMax:     time.Duration(getEnvInt("RANDOM_DELAY_MAX_SECONDS", 60)) * time.Second,
			HeartbeatCron: getEnv("HEARTBEAT_CRON", "0 0,6,12,18 * * *"),
		},
		Browser: BrowserConfig{
			Headless:    os.Getenv("HEADLESS") != "false",
			SlowMo:      getEnvInt("SLOW_MO", 0),
			RecordVideo: os.Getenv("RECORD_VIDEO") == "true",
			StateFile:   filepath.Join(dataDir, "browser-state.json"),
		},
		Proxy: ProxyConfig{
			Enabled:  os.Getenv("USE_PROXY") == "true",
			URL:      os.Getenv("PROXY_URL"),
			Username: os.Getenv("PROXY_USER"),
			Password: os.Getenv("PROXY_PASS"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Database: DatabaseConfig{
			URL:  os.Getenv("DATABASE_URL"),
			Path: getEnv("DB_PATH", filepath.Join(dataDir, "apartments.db")),
		},
		DataDir:  dataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	profiles, err := loadProfiles(getEnv("PROFILES_DIR", "config/profiles"))
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	cfg.Profiles = profiles

	return cfg, nil
}

// Validate collects every missing required setting so operators see the full
// list at once. A non-nil error is fatal at startup.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.BotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.Scheduler.CheckInterval <= 0 {
		errs = append(errs, "CHECK_INTERVAL_MINUTES must be positive")
	}
	if c.Scheduler.JitterMax < c.Scheduler.JitterMin {
		errs = append(errs, "RANDOM_DELAY_MAX_SECONDS must be >= RANDOM_DELAY_MIN_SECONDS")
	}
	if c.Proxy.Enabled && c.Proxy.URL == "" {
		errs = append(errs, "PROXY_URL is required when USE_PROXY=true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

// ParseChatIDs accepts both "id1,id2,id3" and ["id1","id2"] forms.
func ParseChatIDs(value string) []string {
	if value == "" {
		return nil
	}

	if strings.HasPrefix(value, "[") {
		var parsed []json.RawMessage
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			var ids []string
			for _, raw := range parsed {
				var s string
				if err := json.Unmarshal(raw, &s); err != nil {
					var n int64
					if err := json.Unmarshal(raw, &n); err != nil {
						continue
					}
					s = strconv.FormatInt(n, 10)
				}
				if s = strings.TrimSpace(s); s != "" {
					ids = append(ids, s)
				}
			}
			return ids
		}
	}

	var ids []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
