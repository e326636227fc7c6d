// Package config provides configuration management for weft projects using
// Viper for flexible configuration loading from files, environment variables,
// and command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with WEFT_ prefix, validation, and security checks. It manages
// the source tree location, the default output directory, development server
// settings, watch debouncing, and the sass compiler invocation. Per-folder
// overrides live in .weft-folder.yml files next to the sources they affect.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Source      SourceConfig  `yaml:"source"`
	Output      OutputConfig  `yaml:"output"`
	Server      ServerConfig  `yaml:"server"`
	Watch       WatchConfig   `yaml:"watch"`
	Sass        SassConfig    `yaml:"sass"`
	Logging     LoggingConfig `yaml:"logging"`
	TargetFiles []string      `yaml:"-"` // CLI arguments, not from config file
}

type SourceConfig struct {
	Root   string   `yaml:"root"`
	Ignore []string `yaml:"ignore"`
}

type OutputConfig struct {
	// Dir is the default output directory. Empty means no default exists and
	// every page must declare its own destination.
	Dir string `yaml:"dir"`
	// Profile applies to outputs that do not declare one.
	Profile string `yaml:"profile"`
	// Static mirrors files no engine claims into the output directory.
	Static bool `yaml:"static"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	Host   string `yaml:"host"`
	Open   bool   `yaml:"open"`
	NoOpen bool   `yaml:"no-open"`
}

type WatchConfig struct {
	// Debounce is the quiet period in milliseconds before a changed file is
	// reprocessed.
	Debounce int      `yaml:"debounce"`
	Ignore   []string `yaml:"ignore"`
}

type SassConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle values set only via environment or flags (workaround for viper
	// not surfacing them through Unmarshal)
	if viper.IsSet("source.root") {
		config.Source.Root = viper.GetString("source.root")
	}
	if viper.IsSet("output.dir") {
		config.Output.Dir = viper.GetString("output.dir")
	}
	if viper.IsSet("output.profile") {
		config.Output.Profile = viper.GetString("output.profile")
	}
	if viper.IsSet("server.port") {
		config.Server.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("server.host") {
		config.Server.Host = viper.GetString("server.host")
	}
	if viper.IsSet("watch.debounce") {
		config.Watch.Debounce = viper.GetInt("watch.debounce")
	}
	if viper.IsSet("sass.command") {
		config.Sass.Command = viper.GetString("sass.command")
	}
	if viper.IsSet("logging.level") {
		config.Logging.Level = viper.GetString("logging.level")
	}
	if viper.IsSet("logging.format") {
		config.Logging.Format = viper.GetString("logging.format")
	}

	// Handle slice values set via viper (workaround for viper slice handling)
	if viper.IsSet("source.ignore") && len(config.Source.Ignore) == 0 {
		if ignore := viper.GetStringSlice("source.ignore"); len(ignore) > 0 {
			config.Source.Ignore = ignore
		}
	}
	if viper.IsSet("watch.ignore") && len(config.Watch.Ignore) == 0 {
		if ignore := viper.GetStringSlice("watch.ignore"); len(ignore) > 0 {
			config.Watch.Ignore = ignore
		}
	}
	if viper.IsSet("sass.args") && len(config.Sass.Args) == 0 {
		if args := viper.GetStringSlice("sass.args"); len(args) > 0 {
			config.Sass.Args = args
		}
	}

	// Apply default values for SourceConfig if not set
	if config.Source.Root == "" {
		config.Source.Root = "."
	}
	if len(config.Source.Ignore) == 0 {
		config.Source.Ignore = []string{".git", "node_modules"}
	}

	// Apply default values for OutputConfig if not set
	if viper.IsSet("output.static") {
		config.Output.Static = viper.GetBool("output.static")
	} else {
		config.Output.Static = true
	}

	// Apply default values for ServerConfig if not set
	if config.Server.Port == 0 && !viper.IsSet("server.port") {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if viper.IsSet("server.open") {
		config.Server.Open = viper.GetBool("server.open")
	} else {
		config.Server.Open = true
	}

	// Override open if explicitly set via flag
	if viper.IsSet("server.no-open") && viper.GetBool("server.no-open") {
		config.Server.Open = false
	}

	// Apply default values for WatchConfig if not set
	if config.Watch.Debounce == 0 && !viper.IsSet("watch.debounce") {
		config.Watch.Debounce = 100
	}

	// Apply default values for SassConfig if not set
	if config.Sass.Command == "" {
		config.Sass.Command = "sass"
	}

	// Apply default values for LoggingConfig if not set
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateSourceConfig(&config.Source); err != nil {
		return fmt.Errorf("source config: %w", err)
	}

	if err := validateOutputConfig(&config.Output); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	if err := validateSassConfig(&config.Sass); err != nil {
		return fmt.Errorf("sass config: %w", err)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Validate port range (allow 0 for system-assigned ports in testing)
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	// Validate host
	if config.Host != "" {
		// Basic validation - no dangerous characters
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
		for _, r := range config.Host {
			if r < 0x20 || r == 0x7f {
				return fmt.Errorf("host contains control character")
			}
		}
	}

	return nil
}

// validateSourceConfig validates source configuration values
func validateSourceConfig(config *SourceConfig) error {
	if err := validatePath(config.Root); err != nil {
		return fmt.Errorf("invalid source root '%s': %w", config.Root, err)
	}

	return nil
}

// validateOutputConfig validates output configuration values
func validateOutputConfig(config *OutputConfig) error {
	if config.Dir == "" {
		return nil
	}

	if err := validatePath(config.Dir); err != nil {
		return fmt.Errorf("invalid output dir '%s': %w", config.Dir, err)
	}

	return nil
}

// validateWatchConfig validates watch configuration values
func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce < 0 {
		return fmt.Errorf("debounce %d must not be negative", config.Debounce)
	}

	return nil
}

// validateSassConfig validates the sass compiler invocation. The full
// allowlist check happens where the command is executed; here we reject
// values that could never be a bare executable name.
func validateSassConfig(config *SassConfig) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\n"}
	for _, char := range dangerousChars {
		if strings.Contains(config.Command, char) {
			return fmt.Errorf("sass command contains dangerous character: %s", char)
		}
	}

	for _, arg := range config.Args {
		for _, char := range dangerousChars {
			if strings.Contains(arg, char) {
				return fmt.Errorf("sass argument contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	// Clean the path
	cleanPath := filepath.Clean(path)

	// Reject path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	// Reject dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
