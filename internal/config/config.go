package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"spendwise/internal/log"
)

type Config struct {
	// HTTP Server
	Port   string
	AppEnv string

	// Backend selection
	DataBackend   string
	SQLiteDBPath  string
	MongoURI      string
	MongoDatabase string

	// Sessions and Google sign-in
	SessionSecret      string
	SessionTTL         time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror (worker only)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Logging
	LogLevel  string
	LogFormat string
}

var defaults = map[string]any{
	"PORT":              "8081",
	"APP_ENV":           "development",
	"DATA_BACKEND":      "memory",
	"SQLITE_DB_PATH":    "./data/spendwise.db",
	"MONGODB_DATABASE":  "spendwise",
	"SESSION_TTL":       "720h",
	"AMQP_EXCHANGE":     "spendwise",
	"AMQP_QUEUE":        "expense_events",
	"GOOGLE_SHEET_NAME": "Expenses",
	"LOG_LEVEL":         "info",
	"LOG_FORMAT":        "text",
}

// keys lists every variable read, including those without a default, so
// that Unmarshal-free lookups still see them through AutomaticEnv.
var keys = []string{
	"MONGODB_URI",
	"SESSION_SECRET",
	"GOOGLE_CLIENT_ID",
	"GOOGLE_CLIENT_SECRET",
	"OAUTH_REDIRECT_URL",
	"AMQP_URL",
	"GOOGLE_SPREADSHEET_ID",
	"GOOGLE_SERVICE_ACCOUNT_JSON",
	"GOOGLE_SERVICE_ACCOUNT_FILE",
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real variables win.
func Load() *Config {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Port:   v.GetString("PORT"),
		AppEnv: v.GetString("APP_ENV"),

		DataBackend:   strings.ToLower(v.GetString("DATA_BACKEND")),
		SQLiteDBPath:  v.GetString("SQLITE_DB_PATH"),
		MongoURI:      v.GetString("MONGODB_URI"),
		MongoDatabase: v.GetString("MONGODB_DATABASE"),

		SessionSecret:      v.GetString("SESSION_SECRET"),
		SessionTTL:         v.GetDuration("SESSION_TTL"),
		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURL:   v.GetString("OAUTH_REDIRECT_URL"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		GoogleSpreadsheetID:      v.GetString("GOOGLE_SPREADSHEET_ID"),
		GoogleSheetName:          v.GetString("GOOGLE_SHEET_NAME"),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// GoogleSignInEnabled reports whether the OAuth client is configured.
func (c *Config) GoogleSignInEnabled() bool {
	return c.GoogleClientID != ""
}

// EnvPresence reports which of the deployment secrets are set, without their values.
func (c *Config) EnvPresence() map[string]bool {
	return map[string]bool{
		"MONGODB_URI":          c.MongoURI != "",
		"SESSION_SECRET":       c.SessionSecret != "",
		"OAUTH_REDIRECT_URL":   c.OAuthRedirectURL != "",
		"GOOGLE_CLIENT_ID":     c.GoogleClientID != "",
		"GOOGLE_CLIENT_SECRET": c.GoogleClientSecret != "",
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "mongo":
		if c.MongoURI == "" {
			errors = append(errors, "MONGODB_URI is required when using mongo backend")
		}
		if c.MongoDatabase == "" {
			errors = append(errors, "MONGODB_DATABASE cannot be empty when using mongo backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite mongo]", c.DataBackend))
	}

	// Sessions
	if c.IsProduction() && len(c.SessionSecret) < 32 {
		errors = append(errors, "SESSION_SECRET must be at least 32 characters in production")
	}
	if c.SessionTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be positive", c.SessionTTL))
	}

	// Google sign-in is all or nothing
	if c.GoogleSignInEnabled() {
		if c.GoogleClientSecret == "" {
			errors = append(errors, "GOOGLE_CLIENT_SECRET is required when GOOGLE_CLIENT_ID is set")
		}
		if c.OAuthRedirectURL == "" {
			errors = append(errors, "OAUTH_REDIRECT_URL is required when GOOGLE_CLIENT_ID is set")
		} else if u, err := url.Parse(c.OAuthRedirectURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid OAUTH_REDIRECT_URL '%s': must be an absolute URL", c.OAuthRedirectURL))
		}
	}

	errors = append(errors, c.validateAMQP()...)

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	return combine(errors)
}

// ValidateWorker checks the extra settings the sheets mirror worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.DataBackend != "sqlite" && c.DataBackend != "mongo" {
		errors = append(errors, fmt.Sprintf("worker requires a persistent data backend (sqlite or mongo), got '%s'", c.DataBackend))
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	errors = append(errors, c.validateAMQP()...)
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for the worker")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the worker")
	}

	return combine(errors)
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errors
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
