package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendXLSX   = "xlsx"
	BackendSQLite = "sqlite"
)

// Config holds application configuration.
type Config struct {
	Storage StorageConfig
	Exports ExportsConfig
	Log     LogConfig
	Shifts  ShiftsConfig
	Groups  map[string]GroupConfig
}

// StorageConfig selects and locates the ledger backend.
type StorageConfig struct {
	Backend string
	Path    string
}

// ExportsConfig locates the chat exports the picker lists.
type ExportsConfig struct {
	Dir string
}

// LogConfig holds logging settings. An empty file logs to stderr.
type LogConfig struct {
	File  string
	Debug bool
}

// ShiftsConfig holds the shift windows, editable between runs.
type ShiftsConfig struct {
	Morning WindowConfig
	Evening WindowConfig
}

// WindowConfig is an inclusive time-of-day window in HH:MM:SS.
type WindowConfig struct {
	Start string
	End   string
}

// GroupConfig is one group directory entry, keyed by group id.
type GroupConfig struct {
	Name   string
	Branch string
}

// Load reads configuration from file and env. Env var overrides use
// prefix CHATPAGOS_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("storage.backend", BackendXLSX)
	v.SetDefault("storage.path", "Pagos.xlsx")
	v.SetDefault("exports.dir", ".")
	v.SetDefault("log.file", "chatpagos.log")
	v.SetDefault("log.debug", false)
	v.SetDefault("shifts.morning.start", "00:00:00")
	v.SetDefault("shifts.morning.end", "11:59:59")
	v.SetDefault("shifts.evening.start", "12:00:00")
	v.SetDefault("shifts.evening.end", "23:59:59")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("CHATPAGOS_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "chatpagos"))
		v.SetConfigName("chatpagos")
	}

	v.SetEnvPrefix("CHATPAGOS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the directory if
// needed. Group directory edits land here so the next run picks them up.
func Save(cfg Config) error {
	path := os.Getenv("CHATPAGOS_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "chatpagos", "chatpagos.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("storage.backend", cfg.Storage.Backend)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("exports.dir", cfg.Exports.Dir)
	v.Set("log.file", cfg.Log.File)
	v.Set("log.debug", cfg.Log.Debug)
	v.Set("shifts.morning.start", cfg.Shifts.Morning.Start)
	v.Set("shifts.morning.end", cfg.Shifts.Morning.End)
	v.Set("shifts.evening.start", cfg.Shifts.Evening.Start)
	v.Set("shifts.evening.end", cfg.Shifts.Evening.End)
	for id, g := range cfg.Groups {
		v.Set("groups."+id+".name", g.Name)
		v.Set("groups."+id+".branch", g.Branch)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
