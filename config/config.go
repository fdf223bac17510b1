package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/hasher"
)

const (
	appName   = "mql-organizer"
	envPrefix = "MQLORG"
)

type Config struct {
	Search struct {
		Path            string
		Extensions      []string
		BoundExtensions []string `mapstructure:"bound_extensions"`
		Compiled        bool
		Exclude         []string
	}
	Output struct {
		Path           string
		UnorganizedDir string `mapstructure:"unorganized_dir"`
		ReportName     string `mapstructure:"report_name"`
		Excel          bool
		SQLite         bool `mapstructure:"sqlite"`
		Seed           bool
	}
	Classifier struct {
		FamilyDirs []string `mapstructure:"family_dirs"`
	}
	Hash struct {
		Algorithm string
	}
	Performance struct {
		Workers int
	}
	Logging struct {
		Level string
		File  string
	}
}

var cfg Config

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("search.path", "")
	v.SetDefault("search.extensions", internal.SourceExtensions)
	v.SetDefault("search.bound_extensions", internal.BoundExtensions)
	v.SetDefault("search.compiled", false)
	v.SetDefault("search.exclude", internal.DefaultExclude)
	v.SetDefault("output.path", internal.DefaultSavePath)
	v.SetDefault("output.unorganized_dir", internal.DefaultUnorganizedDir)
	v.SetDefault("output.report_name", internal.DefaultReportName)
	v.SetDefault("output.excel", false)
	v.SetDefault("output.sqlite", false)
	v.SetDefault("output.seed", false)
	v.SetDefault("classifier.family_dirs", internal.FamilyDirs)
	v.SetDefault("hash.algorithm", internal.DefaultHashAlgorithm)
	v.SetDefault("performance.workers", internal.DefaultWorkers)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}

// Load reads config.yaml from the usual locations and the MQLORG_ environment
// into the global viper instance. A missing config file is not an error.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	// An explicit file from --config wins over the search paths.
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))
		v.AddConfigPath("$HOME/" + internal.DefaultConfigDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %w", internal.ErrConfig, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", internal.ErrConfig, err)
	}
	cfg = c
	return &cfg, nil
}

func Get() *Config {
	return &cfg
}

// AllExtensions returns the loose extensions, plus the compiled ones when
// requested.
func (c *Config) AllExtensions() []string {
	out := append([]string{}, c.Search.Extensions...)
	if c.Search.Compiled {
		out = append(out, internal.CompiledExtensions...)
	}
	return out
}

// Validate checks the settings an organize run depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Search.Path) == "" {
		return fmt.Errorf("%w: search path is required", internal.ErrConfig)
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("%w: output path is required", internal.ErrConfig)
	}
	if len(c.Search.Extensions)+len(c.Search.BoundExtensions) == 0 && !c.Search.Compiled {
		return fmt.Errorf("%w: no extensions configured", internal.ErrConfig)
	}
	if _, err := hasher.ParseAlgorithm(c.Hash.Algorithm); err != nil {
		return err
	}
	if c.Performance.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", internal.ErrConfig)
	}
	return nil
}
