package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Gmail    GmailConfig    `mapstructure:"gmail"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GmailConfig holds Gmail API configuration for the ingestion mailbox and
// for sending verification mail.
type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
	PubSubTopic  string `mapstructure:"pubsub_topic"`
	UseIMAP      bool   `mapstructure:"use_imap"`
	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	IMAPUser     string `mapstructure:"imap_user"`
	IMAPPassword string `mapstructure:"imap_password"`
}

// LLMConfig holds model provider configuration for the sentinel and
// extraction calls.
type LLMConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	PrimaryModel     string        `mapstructure:"primary_model"`
	SecondaryModel   string        `mapstructure:"secondary_model"`
	SentinelModel    string        `mapstructure:"sentinel_model"`
	PrimaryTimeout   time.Duration `mapstructure:"primary_timeout"`
	SecondaryTimeout time.Duration `mapstructure:"secondary_timeout"`
	SentinelTimeout  time.Duration `mapstructure:"sentinel_timeout"`
}

// IngestConfig holds pipeline tuning: dedup window, mail quota, token TTL.
type IngestConfig struct {
	LockWindow      time.Duration `mapstructure:"lock_window"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	ConfirmationTTL time.Duration `mapstructure:"confirmation_ttl"`
	DailyMailQuota  int           `mapstructure:"daily_mail_quota"`
	BaseURL         string        `mapstructure:"base_url"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("gmail.use_imap", false)
	viper.SetDefault("gmail.imap_host", "imap.gmail.com")
	viper.SetDefault("gmail.imap_port", 993)

	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.primary_model", "gpt-4o")
	viper.SetDefault("llm.secondary_model", "gpt-4o-mini")
	viper.SetDefault("llm.sentinel_model", "gpt-4o-mini")
	viper.SetDefault("llm.primary_timeout", "5s")
	viper.SetDefault("llm.secondary_timeout", "3s")
	viper.SetDefault("llm.sentinel_timeout", "5s")

	viper.SetDefault("ingest.lock_window", "24h")
	viper.SetDefault("ingest.token_ttl", "24h")
	viper.SetDefault("ingest.confirmation_ttl", "10m")
	viper.SetDefault("ingest.daily_mail_quota", 90)
	viper.SetDefault("ingest.base_url", "http://localhost:8080")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("gmail.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("gmail.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("gmail.user_email", "GMAIL_USER_EMAIL")
	viper.BindEnv("gmail.pubsub_topic", "GMAIL_PUBSUB_TOPIC")
	viper.BindEnv("gmail.use_imap", "GMAIL_USE_IMAP")
	viper.BindEnv("gmail.imap_host", "GMAIL_IMAP_HOST")
	viper.BindEnv("gmail.imap_port", "GMAIL_IMAP_PORT")
	viper.BindEnv("gmail.imap_user", "GMAIL_IMAP_USER")
	viper.BindEnv("gmail.imap_password", "GMAIL_IMAP_PASSWORD")

	viper.BindEnv("llm.base_url", "LLM_BASE_URL")
	viper.BindEnv("llm.api_key", "LLM_API_KEY")
	viper.BindEnv("llm.primary_model", "LLM_PRIMARY_MODEL")
	viper.BindEnv("llm.secondary_model", "LLM_SECONDARY_MODEL")
	viper.BindEnv("llm.sentinel_model", "LLM_SENTINEL_MODEL")
	viper.BindEnv("llm.primary_timeout", "LLM_PRIMARY_TIMEOUT")
	viper.BindEnv("llm.secondary_timeout", "LLM_SECONDARY_TIMEOUT")
	viper.BindEnv("llm.sentinel_timeout", "LLM_SENTINEL_TIMEOUT")

	viper.BindEnv("ingest.lock_window", "INGEST_LOCK_WINDOW")
	viper.BindEnv("ingest.token_ttl", "INGEST_TOKEN_TTL")
	viper.BindEnv("ingest.confirmation_ttl", "INGEST_CONFIRMATION_TTL")
	viper.BindEnv("ingest.daily_mail_quota", "INGEST_DAILY_MAIL_QUOTA")
	viper.BindEnv("ingest.base_url", "INGEST_BASE_URL")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if !c.Gmail.UseIMAP {
		if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" || c.Gmail.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when not using IMAP")
		}
	} else {
		if c.Gmail.IMAPUser == "" || c.Gmail.IMAPPassword == "" {
			return fmt.Errorf("IMAP credentials are required when using IMAP")
		}
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}
	if c.LLM.PrimaryTimeout <= 0 || c.LLM.SecondaryTimeout <= 0 {
		return fmt.Errorf("LLM timeouts must be greater than 0")
	}

	if c.Ingest.LockWindow <= 0 {
		return fmt.Errorf("ingest lock window must be greater than 0")
	}
	if c.Ingest.DailyMailQuota <= 0 {
		return fmt.Errorf("daily mail quota must be greater than 0")
	}

	return nil
}
