package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikey/mailindex/internal/core"
)

// IMAPConfig represents the mailbox connection settings
type IMAPConfig struct {
	Host               string
	Port               int
	Security           string
	Auth               string
	Account            string
	Password           string
	PasswordKeyringKey string
	OAuth              OAuthConfig
	DialTimeout        time.Duration
}

// OAuthConfig holds the OAuth2 client used for XOAUTH/OAUTHBEARER logins
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// IngestConfig represents the ingestion run settings
type IngestConfig struct {
	Folder    string
	BatchSize int
	Timeout   time.Duration
}

// SearchConfig represents the search engine settings
type SearchConfig struct {
	Backend       string
	Index         string
	Elasticsearch ElasticsearchConfig
	Bleve         BleveConfig
}

// ElasticsearchConfig represents the Elasticsearch cluster settings
type ElasticsearchConfig struct {
	URLs     []string
	Username string
	Password string
	Shards   int
	Replicas int
	Refresh  string
	Sniff    bool
}

// BleveConfig represents the embedded index settings
type BleveConfig struct {
	Path string
}

// QueryConfig represents the demo query settings
type QueryConfig struct {
	DemoQuery string
	Limit     int
}

// ClassifierConfig represents the optional spam classification stage
type ClassifierConfig struct {
	Provider       string
	Threshold      float64
	TrustedDomains []string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// RunLogConfig represents the run history storage
type RunLogConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// ServerConfig represents the HTTP query API settings
type ServerConfig struct {
	ListenAddress string
	CORSOrigins   []string
}

// LoggingConfig represents the logger settings
type LoggingConfig struct {
	Level  string
	Format string
}

// GetIMAP returns the IMAP configuration
func (c *Config) GetIMAP() IMAPConfig {
	return IMAPConfig{
		Host:               c.GetString("imap.host"),
		Port:               c.GetInt("imap.port"),
		Security:           strings.ToLower(c.GetString("imap.security")),
		Auth:               strings.ToLower(c.GetString("imap.auth")),
		Account:            c.GetString("imap.account"),
		Password:           c.GetString("imap.password"),
		PasswordKeyringKey: c.GetString("imap.password_keyring_key"),
		OAuth: OAuthConfig{
			ClientID:     c.GetString("imap.oauth.client_id"),
			ClientSecret: c.GetString("imap.oauth.client_secret"),
			RefreshToken: c.GetString("imap.oauth.refresh_token"),
			TokenURL:     c.GetString("imap.oauth.token_url"),
		},
		DialTimeout: c.v.GetDuration("imap.dial_timeout"),
	}
}

// GetIngest returns the ingestion configuration
func (c *Config) GetIngest() IngestConfig {
	return IngestConfig{
		Folder:    c.GetString("ingest.folder"),
		BatchSize: c.GetInt("ingest.batch_size"),
		Timeout:   c.v.GetDuration("ingest.timeout"),
	}
}

// GetSearch returns the search engine configuration
func (c *Config) GetSearch() SearchConfig {
	return SearchConfig{
		Backend: strings.ToLower(c.GetString("search.backend")),
		Index:   c.GetString("search.index"),
		Elasticsearch: ElasticsearchConfig{
			URLs:     c.GetStringSlice("search.elasticsearch.urls"),
			Username: c.GetString("search.elasticsearch.username"),
			Password: c.GetString("search.elasticsearch.password"),
			Shards:   c.GetInt("search.elasticsearch.shards"),
			Replicas: c.GetInt("search.elasticsearch.replicas"),
			Refresh:  c.GetString("search.elasticsearch.refresh"),
			Sniff:    c.GetBool("search.elasticsearch.sniff"),
		},
		Bleve: BleveConfig{
			Path: c.GetString("search.bleve.path"),
		},
	}
}

// GetQuery returns the query configuration
func (c *Config) GetQuery() QueryConfig {
	return QueryConfig{
		DemoQuery: c.GetString("query.demo_query"),
		Limit:     c.GetInt("query.limit"),
	}
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		Provider:       strings.ToLower(c.GetString("classifier.provider")),
		Threshold:      c.GetFloat64("classifier.threshold"),
		TrustedDomains: c.GetStringSlice("classifier.trusted_domains"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetRunLog returns the run log configuration
func (c *Config) GetRunLog() RunLogConfig {
	return RunLogConfig{
		Type:       strings.ToLower(c.GetString("runlog.type")),
		SQLitePath: c.GetString("runlog.sqlite_path"),
		MySQLDSN:   c.GetString("runlog.mysql_dsn"),
	}
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
		CORSOrigins:   c.GetStringSlice("server.cors_origins"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}

// Validate checks the settings every command depends on. The mailbox
// settings are only checked when requireMailbox is set.
func (c *Config) Validate(requireMailbox bool) error {
	var problems []string

	for _, key := range []string{"imap.dial_timeout", "ingest.timeout"} {
		if _, err := c.GetDuration(key); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
		}
	}

	if requireMailbox {
		imap := c.GetIMAP()
		if imap.Host == "" {
			problems = append(problems, "imap.host is required")
		}
		if imap.Account == "" {
			problems = append(problems, "imap.account is required")
		}
		if imap.Port <= 0 || imap.Port > 65535 {
			problems = append(problems, fmt.Sprintf("imap.port %d is out of range", imap.Port))
		}
		if !oneOf(imap.Security, "implicit", "starttls", "none") {
			problems = append(problems, fmt.Sprintf("unknown imap.security %q", imap.Security))
		}
		if !oneOf(imap.Auth, "login", "plain", "oauthbearer") {
			problems = append(problems, fmt.Sprintf("unknown imap.auth %q", imap.Auth))
		}
		if imap.Auth == "oauthbearer" && imap.OAuth.RefreshToken == "" {
			problems = append(problems, "imap.oauth.refresh_token is required for oauthbearer")
		}

		ingest := c.GetIngest()
		if ingest.Folder == "" {
			problems = append(problems, "ingest.folder is required")
		}
		if ingest.BatchSize < 1 {
			problems = append(problems, fmt.Sprintf("ingest.batch_size must be at least 1, got %d", ingest.BatchSize))
		}
	}

	search := c.GetSearch()
	if !oneOf(search.Backend, "elasticsearch", "bleve") {
		problems = append(problems, fmt.Sprintf("unknown search.backend %q", search.Backend))
	}
	if search.Backend == "elasticsearch" {
		if search.Index == "" {
			problems = append(problems, "search.index is required")
		}
		if len(search.Elasticsearch.URLs) == 0 {
			problems = append(problems, "search.elasticsearch.urls is empty")
		}
		if !oneOf(search.Elasticsearch.Refresh, "", "true", "false", "wait_for") {
			problems = append(problems, fmt.Sprintf("unknown search.elasticsearch.refresh %q", search.Elasticsearch.Refresh))
		}
	}

	classifier := c.GetClassifier()
	if !oneOf(classifier.Provider, "none", "", "bedrock", "gemini", "openai") {
		problems = append(problems, fmt.Sprintf("unknown classifier.provider %q", classifier.Provider))
	}
	if classifier.Threshold < 0 || classifier.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("classifier.threshold must be within [0,1], got %v", classifier.Threshold))
	}

	if !oneOf(c.GetRunLog().Type, "memory", "sqlite", "mysql") {
		problems = append(problems, fmt.Sprintf("unknown runlog.type %q", c.GetRunLog().Type))
	}

	if len(problems) > 0 {
		return core.Errorf(core.ErrConfig, "validating configuration", "%s", strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
