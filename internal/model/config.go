package model

import "time"

// Config holds all runtime settings for cove
type Config struct {
	Agent        AgentConfig        `yaml:"agent" mapstructure:"agent"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	CoVe         CoVeConfig         `yaml:"cove" mapstructure:"cove"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// AgentConfig locates the hosted agent
type AgentConfig struct {
	Account  string `yaml:"account" mapstructure:"account"`   // account identifier or host
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"` // overrides the account-derived URL
	Database string `yaml:"database" mapstructure:"database"`
	Schema   string `yaml:"schema" mapstructure:"schema"`
	Name     string `yaml:"name" mapstructure:"name"`

	// Token is the bearer token. Never written by config init.
	Token string `yaml:"-" mapstructure:"token"`

	// Connection selects the section of ~/.snowflake/config.toml used for credentials
	Connection string `yaml:"connection" mapstructure:"connection"`

	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	OriginApplication string        `yaml:"origin_application" mapstructure:"origin_application"`
}

// LLMConfig selects the backend that answers every pipeline query
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // cortex (default) or openai
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"-" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// CoVeConfig controls the verification pipeline
type CoVeConfig struct {
	MaxClaims           int           `yaml:"max_claims" mapstructure:"max_claims"` // 0 = unlimited
	Workers             int           `yaml:"workers" mapstructure:"workers"`       // concurrent claim verifications
	VerificationTimeout time.Duration `yaml:"verification_timeout" mapstructure:"verification_timeout"`
	TotalTimeout        time.Duration `yaml:"total_timeout" mapstructure:"total_timeout"`
}

// HTTPConfig configures the outbound transport
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// RateLimitingConfig throttles calls to the agent host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig configures the agent metadata cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// StoreConfig configures run history persistence
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// OutputConfig controls report output
type OutputConfig struct {
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
	JSONPath string `yaml:"json_path" mapstructure:"json_path"`
	MDPath   string `yaml:"md_path,omitempty" mapstructure:"md_path"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Database:          "COVE_PROJECT_DB",
			Schema:            "CORTEX_SERVICES",
			Name:              "COVE_BUSINESS_AGENT",
			Connection:        "default",
			Timeout:           300 * time.Second,
			OriginApplication: "cove",
		},
		LLM: LLMConfig{
			Provider: "cortex",
		},
		CoVe: CoVeConfig{
			MaxClaims:           10,
			Workers:             4,
			VerificationTimeout: 120 * time.Second,
			TotalTimeout:        15 * time.Minute,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.cove/cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Store: StoreConfig{
			Enabled: false,
			Path:    "~/.cove/runs.db",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Output: OutputConfig{
			JSONPath: "cove_results.json",
		},
	}
}
