package logger

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled *bool  `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   bool   `yaml:"file_compress"`
}

// fileConfig is the layout of the logging block inside the server's YAML file
type fileConfig struct {
	Logging Config `yaml:"logging"`
}

// DefaultConfig logs INFO and above as text to stdout only.
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleEnabled: boolPtr(true),
		ConsoleFormat:  "text",
		FilePath:       "logs/chaintiles.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// Console reports whether console output is on. Unset means on.
func (c Config) Console() bool {
	return c.ConsoleEnabled == nil || *c.ConsoleEnabled
}

// LoadConfig reads the logging block of a YAML file and applies
// environment variable overrides. A missing or unreadable file
// leaves the defaults in place.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err == nil {
				config.merge(fc.Logging)
			}
		}
	}

	config.applyEnv()
	return config, nil
}

// merge copies every field that was set in loaded over the receiver
func (c *Config) merge(loaded Config) {
	if loaded.Level != "" {
		c.Level = loaded.Level
	}
	if loaded.ConsoleEnabled != nil {
		c.ConsoleEnabled = loaded.ConsoleEnabled
	}
	if loaded.ConsoleFormat != "" {
		c.ConsoleFormat = loaded.ConsoleFormat
	}
	c.FileEnabled = loaded.FileEnabled
	if loaded.FilePath != "" {
		c.FilePath = loaded.FilePath
	}
	if loaded.FileFormat != "" {
		c.FileFormat = loaded.FileFormat
	}
	if loaded.FileMaxSizeMB > 0 {
		c.FileMaxSizeMB = loaded.FileMaxSizeMB
	}
	if loaded.FileMaxBackups > 0 {
		c.FileMaxBackups = loaded.FileMaxBackups
	}
	if loaded.FileMaxAgeDays > 0 {
		c.FileMaxAgeDays = loaded.FileMaxAgeDays
	}
	c.FileCompress = loaded.FileCompress
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Level = v
	}
	if v := os.Getenv("LOG_CONSOLE_FORMAT"); v != "" {
		c.ConsoleFormat = v
	}
	if v := os.Getenv("LOG_FILE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.FileEnabled = enabled
		}
	}
	if v := os.Getenv("LOG_FILE_PATH"); v != "" {
		c.FilePath = v
	}
}

func boolPtr(b bool) *bool { return &b }
