package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override
const EnvPrefix = "MAILINDEX"

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance. configFile, when set, replaces
// the search for config.yaml in the standard locations.
func New(configFile string) (*Config, error) {
	// .env only seeds variables that are not already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/mailindex/")
		v.AddConfigPath("$HOME/.mailindex")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// IMAP defaults
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.security", "implicit")
	v.SetDefault("imap.auth", "login")
	v.SetDefault("imap.account", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.password_keyring_key", "")
	v.SetDefault("imap.oauth.client_id", "")
	v.SetDefault("imap.oauth.client_secret", "")
	v.SetDefault("imap.oauth.refresh_token", "")
	v.SetDefault("imap.oauth.token_url", "")
	v.SetDefault("imap.dial_timeout", "30s")

	// Ingestion defaults
	v.SetDefault("ingest.folder", "INBOX")
	v.SetDefault("ingest.batch_size", 20)
	v.SetDefault("ingest.timeout", "2m")

	// Search engine defaults
	v.SetDefault("search.backend", "elasticsearch")
	v.SetDefault("search.index", "emails")
	v.SetDefault("search.elasticsearch.urls", []string{"http://localhost:9200"})
	v.SetDefault("search.elasticsearch.username", "")
	v.SetDefault("search.elasticsearch.password", "")
	v.SetDefault("search.elasticsearch.shards", 1)
	v.SetDefault("search.elasticsearch.replicas", 0)
	v.SetDefault("search.elasticsearch.refresh", "wait_for")
	v.SetDefault("search.elasticsearch.sniff", false)
	v.SetDefault("search.bleve.path", "")

	// Query defaults
	v.SetDefault("query.demo_query", "meeting")
	v.SetDefault("query.limit", 5)

	// Classifier defaults
	v.SetDefault("classifier.provider", "none")
	v.SetDefault("classifier.threshold", 0.7)
	v.SetDefault("classifier.trusted_domains", []string{})

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Run log defaults
	v.SetDefault("runlog.type", "memory")
	v.SetDefault("runlog.sqlite_path", "./data/mailindex.db")
	v.SetDefault("runlog.mysql_dsn", "user:password@tcp(localhost:3306)/mailindex?parseTime=true")

	// HTTP server defaults
	v.SetDefault("server.listen_address", "127.0.0.1:8080")
	v.SetDefault("server.cors_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// BindFlag lets a command-line flag override key
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag to bind for %s", key)
	}
	return c.v.BindPFlag(key, flag)
}

// Set overrides a value for the lifetime of the process
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// ConfigFileUsed returns the path of the loaded config file, if any
func (c *Config) ConfigFileUsed() string {
	return c.v.ConfigFileUsed()
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
