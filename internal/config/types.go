package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Redaction RedactionConfig `yaml:"redaction" mapstructure:"redaction"`
	AutoBlur  AutoBlurConfig  `yaml:"auto_blur" mapstructure:"auto_blur"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `yaml:"port" mapstructure:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxUploadSize int64         `yaml:"max_upload_size" mapstructure:"max_upload_size"`
}

// OCRConfig contains text recognition configuration
type OCRConfig struct {
	Languages []string    `yaml:"languages" mapstructure:"languages"`
	Cache     CacheConfig `yaml:"cache" mapstructure:"cache"`
}

// CacheConfig contains the OCR result cache configuration
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// RedactionConfig contains blur and annotation configuration
type RedactionConfig struct {
	BlurStrength    float64 `yaml:"blur_strength" mapstructure:"blur_strength"`
	MinBlurStrength float64 `yaml:"min_blur_strength" mapstructure:"min_blur_strength"`
	MaxBlurStrength float64 `yaml:"max_blur_strength" mapstructure:"max_blur_strength"`
	FontPath        string  `yaml:"font_path" mapstructure:"font_path"`
	FontSize        float64 `yaml:"font_size" mapstructure:"font_size"`
}

// AutoBlurConfig contains the per-category auto-detect toggles
type AutoBlurConfig struct {
	Email      bool `yaml:"email" mapstructure:"email"`
	Phone      bool `yaml:"phone" mapstructure:"phone"`
	SSN        bool `yaml:"ssn" mapstructure:"ssn"`
	CreditCard bool `yaml:"credit_card" mapstructure:"credit_card"`
	Address    bool `yaml:"address" mapstructure:"address"`
	Custom     bool `yaml:"custom" mapstructure:"custom"`
}

// SecurityConfig contains security guardrails configuration
type SecurityConfig struct {
	RateLimit struct {
		Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
		Burst          int  `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AuditConfig contains the optional redaction activity log configuration
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events         struct {
		BroadcastUploads     bool `yaml:"broadcast_uploads" mapstructure:"broadcast_uploads"`
		BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
		BroadcastRedactions  bool `yaml:"broadcast_redactions" mapstructure:"broadcast_redactions"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			IdleTimeout:   60 * time.Second,
			MaxUploadSize: 20 << 20, // 20 MB
		},
		OCR: OCRConfig{
			Languages: []string{"eng"},
			Cache: CacheConfig{
				Enabled:        false,
				RedisURL:       "redis://localhost:6379/0",
				KeyPrefix:      "smartblur:ocr:",
				DefaultTTL:     24 * time.Hour,
				MaxConnections: 10,
				MinIdleConns:   2,
			},
		},
		Redaction: RedactionConfig{
			BlurStrength:    25,
			MinBlurStrength: 5,
			MaxBlurStrength: 50,
			FontPath:        "",
			FontSize:        24,
		},
		AutoBlur: AutoBlurConfig{
			Email:      true,
			Phone:      true,
			SSN:        true,
			CreditCard: true,
			Address:    true,
			Custom:     true,
		},
		Audit: AuditConfig{
			Enabled:         false,
			DatabaseURL:     "postgres://localhost:5432/smartblur?sslmode=disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			AllowedOrigins: []string{"*"},
		},
	}

	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RequestsPerMin = 30
	cfg.Security.RateLimit.Burst = 5

	cfg.WebSocket.Events.BroadcastUploads = true
	cfg.WebSocket.Events.BroadcastDetections = true
	cfg.WebSocket.Events.BroadcastRedactions = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
