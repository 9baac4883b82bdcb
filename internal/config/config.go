package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Player   PlayerConfig   `mapstructure:"player"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProviderConfig holds narration provider configuration
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"` // Narration service endpoint
	VoiceID string `mapstructure:"voice_id"` // Fixed narration voice
	ModelID string `mapstructure:"model_id"` // Synthesis model identifier
}

// CacheConfig holds prefetch cache configuration
type CacheConfig struct {
	Dir           string `mapstructure:"dir"`            // Blob store directory, empty for default
	BucketVersion int    `mapstructure:"bucket_version"` // Bumping invalidates all prior entries
	ChunkBytes    int64  `mapstructure:"chunk_bytes"`    // Media prefetch bound, 0 for default
}

// PlayerConfig holds narration audio player configuration
type PlayerConfig struct {
	Command string   `mapstructure:"command"` // Player binary, empty for auto-detect
	Args    []string `mapstructure:"args"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL: "https://api.elevenlabs.io",
			VoiceID: "21m00Tcm4TlvDq8ikWAM",
			ModelID: "eleven_multilingual_v2",
		},
		Cache: CacheConfig{
			Dir:           defaultCachePath(),
			BucketVersion: 1,
		},
		Player: PlayerConfig{},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reelay", "reelay.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reelay", "reelay.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reelay")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "reelay")
	}
}

// defaultCachePath returns the default blob store directory for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "reelay", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reelay", "cache")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("REELAY")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	viper.Set("provider.base_url", cfg.Provider.BaseURL)
	viper.Set("provider.voice_id", cfg.Provider.VoiceID)
	viper.Set("provider.model_id", cfg.Provider.ModelID)

	viper.Set("cache.dir", cfg.Cache.Dir)
	viper.Set("cache.bucket_version", cfg.Cache.BucketVersion)
	viper.Set("cache.chunk_bytes", cfg.Cache.ChunkBytes)

	viper.Set("player.command", cfg.Player.Command)
	viper.Set("player.args", cfg.Player.Args)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
