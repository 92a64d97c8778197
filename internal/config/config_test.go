package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "app",
			Password: "secret",
			DBName:   "taskingest",
		},
		Gmail: GmailConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RefreshToken: "refresh-token",
			UserEmail:    "ingest@example.com",
		},
		LLM: LLMConfig{
			APIKey:           "sk-test",
			PrimaryModel:     "gpt-4o",
			SecondaryModel:   "gpt-4o-mini",
			SentinelModel:    "gpt-4o-mini",
			PrimaryTimeout:   5 * time.Second,
			SecondaryTimeout: 3 * time.Second,
			SentinelTimeout:  5 * time.Second,
		},
		Ingest: IngestConfig{
			LockWindow:      24 * time.Hour,
			TokenTTL:        24 * time.Hour,
			ConfirmationTTL: 10 * time.Minute,
			DailyMailQuota:  90,
			BaseURL:         "http://localhost:8080",
		},
	}
}

func TestValidateValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateMissingServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateMissingDatabaseFields(t *testing.T) {
	cfg := validConfig()
	cfg.Database.User = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateGmailCredentialsRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Gmail.RefreshToken = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateIMAPCredentialsRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Gmail.UseIMAP = true
	assert.Error(t, cfg.Validate())

	cfg.Gmail.IMAPUser = "ingest@example.com"
	cfg.Gmail.IMAPPassword = "app-password"
	// OAuth fields no longer matter once IMAP is selected.
	cfg.Gmail.ClientID = ""
	cfg.Gmail.ClientSecret = ""
	cfg.Gmail.RefreshToken = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidateLLMConfig(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.LLM.PrimaryTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateIngestConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Ingest.LockWindow = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Ingest.DailyMailQuota = 0
	assert.Error(t, cfg.Validate())
}

func TestGetDSN(t *testing.T) {
	cfg := validConfig()
	dsn := cfg.Database.GetDSN()
	assert.Equal(t, "app:secret@tcp(localhost:3306)/taskingest?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}
