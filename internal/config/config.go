// Package config loads runtime settings from .swgaide.yaml, SWGAIDE_* env
// vars and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error off disabled"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// NotesConfig configures the notes artifact.
type NotesConfig struct {
	Path       string   `mapstructure:"path" validate:"required"`
	Mode       string   `mapstructure:"mode" validate:"oneof=continuous per-planet planet planets"`
	Dedup      string   `mapstructure:"dedup" validate:"oneof=skip mark"`
	Blacklist  []string `mapstructure:"blacklist"`
	Footer     bool     `mapstructure:"footer"`
	AutoDelete bool     `mapstructure:"auto_delete"`
	// DeleteOnPartial lets unattended runs erase a file that still holds
	// skipped lines.
	DeleteOnPartial bool          `mapstructure:"delete_on_partial"`
	MaxAge          time.Duration `mapstructure:"max_age" validate:"gte=0"`
}

// CatalogConfig selects and configures the catalog client.
type CatalogConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=local remote"`
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAge  time.Duration `mapstructure:"max_age" validate:"gt=0"`
	// AcceptStale lets unattended runs proceed on outdated snapshots and
	// notes documents.
	AcceptStale bool `mapstructure:"accept_stale"`
}

// SubmitConfig tunes the submission pipeline.
type SubmitConfig struct {
	MaxPasses int           `mapstructure:"max_passes" validate:"min=1,max=100"`
	PassDelay time.Duration `mapstructure:"pass_delay" validate:"gte=0"`
}

// Config holds all runtime configuration.
type Config struct {
	Character   string        `mapstructure:"character"`
	Galaxy      string        `mapstructure:"galaxy"`
	DBPath      string        `mapstructure:"db_path" validate:"required"`
	ReportsDir  string        `mapstructure:"reports_dir" validate:"required"`
	Interactive bool          `mapstructure:"interactive"`
	Log         LogConfig     `mapstructure:"log"`
	Notes       NotesConfig   `mapstructure:"notes"`
	Catalog     CatalogConfig `mapstructure:"catalog"`
	Submit      SubmitConfig  `mapstructure:"submit"`
}

// DataDir returns the default directory for local state.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".swgaide"
	}
	return filepath.Join(home, ".swgaide")
}

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	dir := DataDir()
	v.SetDefault("character", "")
	v.SetDefault("galaxy", "")
	v.SetDefault("db_path", filepath.Join(dir, "swgaide.db"))
	v.SetDefault("reports_dir", filepath.Join(dir, "reports"))
	v.SetDefault("interactive", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("notes.path", "notes.txt")
	v.SetDefault("notes.mode", "continuous")
	v.SetDefault("notes.dedup", "skip")
	v.SetDefault("notes.blacklist", []string{})
	v.SetDefault("notes.footer", true)
	v.SetDefault("notes.auto_delete", false)
	v.SetDefault("notes.delete_on_partial", false)
	v.SetDefault("notes.max_age", 2*time.Hour)
	v.SetDefault("catalog.backend", "local")
	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.token", "")
	v.SetDefault("catalog.timeout", 30*time.Second)
	v.SetDefault("catalog.max_age", 45*time.Minute)
	v.SetDefault("catalog.accept_stale", false)
	v.SetDefault("submit.max_passes", 10)
	v.SetDefault("submit.pass_delay", 2*time.Second)
}

// Init points v at the config file and environment. An empty cfgFile searches
// .swgaide.yaml in the working and home directories; a missing file is fine.
func Init(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".swgaide")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("SWGAIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load applies defaults and decodes v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate rejects unknown modes, policies and backends.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s: %q fails %s", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Catalog.Backend == "remote" && c.Catalog.URL == "" {
		return errors.New("invalid config: catalog.url is required for the remote backend")
	}
	return nil
}
