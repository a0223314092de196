// Package knittyconfig holds the on-host TOML configuration for a
// knitting session: which serial port to drive, where the disk JSON
// and pattern image folder live, and the session's save and display
// behavior.
package knittyconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the on-host session configuration.
type Config struct {
	Serial struct {
		Port string `toml:"port"`
	} `toml:"serial"`

	Disk struct {
		JSONPath     string `toml:"json_path"`
		SaveOnExit   bool   `toml:"save_on_exit"`
		SaveRaw      bool   `toml:"save_raw"`
		RawDumpPath  string `toml:"raw_dump_path"`
		PatternsPath string `toml:"patterns_path"` // bitmap folder
	} `toml:"disk"`

	Display struct {
		StitchChar string `toml:"stitch_char"` // filled-stitch glyph
		PlainChar  string `toml:"plain_char"`   // plain-stitch glyph
	} `toml:"display"`

	Monitor struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"monitor"`
}

// DefaultConfig returns the session configuration used when no file
// exists yet.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Serial.Port = "/dev/ttyUSB0"

	cfg.Disk.JSONPath = "disk.json"
	cfg.Disk.SaveOnExit = true
	cfg.Disk.SaveRaw = false
	cfg.Disk.RawDumpPath = "disk.raw"
	cfg.Disk.PatternsPath = "patterns"

	cfg.Display.StitchChar = "█"
	cfg.Display.PlainChar = "░"

	cfg.Monitor.Enabled = false
	cfg.Monitor.Addr = "127.0.0.1:8686"

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "knitty-gritty")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "knitty-gritty")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "knitty-gritty", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "knitty-gritty", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads the configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads the configuration from the given file. A missing file
// is not an error: DefaultConfig is returned instead.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("knittyconfig: parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes the configuration to the given file, creating its
// parent directory if necessary.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("knittyconfig: creating %s: %w", dir, err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("knittyconfig: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("knittyconfig: encoding %s: %w", path, err)
	}

	return nil
}
