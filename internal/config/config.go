package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/kartoza/videosnap/internal/models"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".config/videosnap"
	// ConfigFileName is the name of the configuration file
	ConfigFileName = "config.json"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "VIDEOSNAP"
)

// Config holds the application configuration
type Config struct {
	Device      string `json:"device,omitempty"`
	Size        string `json:"size"`
	NoAudio     bool   `json:"no_audio"`
	AudioDevice string `json:"audio_device,omitempty"`
	FFmpegPath  string `json:"ffmpeg_path"`
	Framerate   int    `json:"framerate"`

	FinishTimeoutSeconds int `json:"finish_timeout_seconds"`
	StartTimeoutSeconds  int `json:"start_timeout_seconds"`

	Notify bool `json:"notify"`
	Beep   bool `json:"beep"`
}

// envOverrides mirrors the settings that can be set from the environment.
// Strings keep "unset" distinguishable from false/zero. Names come from split_words
// rather than envconfig tags, which would also match the unprefixed variable.
type envOverrides struct {
	Device        string
	Size          string
	NoAudio       string        `split_words:"true"`
	AudioDevice   string        `split_words:"true"`
	Ffmpeg        string
	FinishTimeout time.Duration `split_words:"true"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Size:                 string(models.DefaultSize),
		FFmpegPath:           "ffmpeg",
		Framerate:            30,
		FinishTimeoutSeconds: 10,
		StartTimeoutSeconds:  15,
	}
}

// FinishTimeout is how long to wait for the output file to be finalized after a stop
func (c Config) FinishTimeout() time.Duration {
	return time.Duration(c.FinishTimeoutSeconds) * time.Second
}

// StartTimeout is how long to wait for the backend to confirm recording began; zero waits forever
func (c Config) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutSeconds) * time.Second
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "videosnap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigDir
	}
	return filepath.Join(home, DefaultConfigDir)
}

// GetConfigPath returns the configuration file path
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// Load loads the configuration from disk and applies environment overrides
func Load() (*Config, error) {
	cfg, err := LoadFrom(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads a configuration file, returning defaults when it does not exist.
// Missing fields keep their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

// ApplyEnv overrides cfg with VIDEOSNAP_* environment variables
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	if env.Device != "" {
		cfg.Device = env.Device
	}
	if env.Size != "" {
		cfg.Size = env.Size
	}
	if env.AudioDevice != "" {
		cfg.AudioDevice = env.AudioDevice
	}
	if env.Ffmpeg != "" {
		cfg.FFmpegPath = env.Ffmpeg
	}
	if env.NoAudio != "" {
		noAudio, err := strconv.ParseBool(env.NoAudio)
		if err != nil {
			return fmt.Errorf("invalid %s_NO_AUDIO: %w", EnvPrefix, err)
		}
		cfg.NoAudio = noAudio
	}
	if env.FinishTimeout > 0 {
		cfg.FinishTimeoutSeconds = int((env.FinishTimeout + time.Second - 1) / time.Second)
	}
	return nil
}

// Save saves the configuration to disk
func Save(cfg *Config) error {
	return SaveTo(GetConfigPath(), cfg)
}

// SaveTo writes cfg as indented JSON, creating the parent directory
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
