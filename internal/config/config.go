package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/smartblur/")
	viper.AddConfigPath("$HOME/.smartblur/")

	viper.SetEnvPrefix("SMARTBLUR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	r := config.Redaction
	if r.MinBlurStrength <= 0 || r.MaxBlurStrength < r.MinBlurStrength {
		return fmt.Errorf("invalid blur strength bounds: [%v, %v]", r.MinBlurStrength, r.MaxBlurStrength)
	}
	if r.BlurStrength < r.MinBlurStrength || r.BlurStrength > r.MaxBlurStrength {
		return fmt.Errorf("blur strength %v outside [%v, %v]", r.BlurStrength, r.MinBlurStrength, r.MaxBlurStrength)
	}

	if len(config.OCR.Languages) == 0 {
		return fmt.Errorf("at least one OCR language is required")
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes. The callback
// receives the re-validated configuration; invalid edits are ignored.
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			return
		}

		if err := validateConfig(newConfig); err != nil {
			return
		}

		callback(newConfig)
	})

	return nil
}
