// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/Sqizeeeeee/lab7-part2/internal/fsutil"
	"github.com/Sqizeeeeee/lab7-part2/internal/hasher"
)

const (
	// FileName is the config file inside the repository directory.
	FileName = "config.json"
	// EnvPrefix prefixes environment overrides, e.g. MYVCS_AUTHOR.
	EnvPrefix = "MYVCS"

	DefaultAuthor    = "user"
	DefaultLogLevel  = "warn"
	DefaultCacheSize = 256
)

type Config struct {
	Author    string `mapstructure:"author" json:"author"`
	LogLevel  string `mapstructure:"log_level" json:"log_level"` // debug, info, warn, error
	Hash      string `mapstructure:"hash" json:"hash"`           // see hasher.Names
	CacheSize int    `mapstructure:"cache_size" json:"cache_size"`
	Workers   int    `mapstructure:"workers" json:"workers"`
}

func Default() *Config {
	return &Config{
		Author:    DefaultAuthor,
		LogLevel:  DefaultLogLevel,
		Hash:      hasher.DefaultAlgorithm,
		CacheSize: DefaultCacheSize,
		Workers:   runtime.NumCPU(),
	}
}

// Path returns the config file location for a repository directory.
func Path(repoDir string) string {
	return filepath.Join(repoDir, FileName)
}

// Load reads repoDir/config.json, layering environment overrides on top of
// the file and the file on top of the defaults. A missing file is not an
// error.
func Load(repoDir string) (*Config, error) {
	def := Default()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("author", def.Author)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("hash", def.Hash)
	v.SetDefault("cache_size", def.CacheSize)
	v.SetDefault("workers", def.Workers)

	path := Path(repoDir)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to repoDir/config.json.
func Save(repoDir string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(Path(repoDir), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := hasher.New(c.Hash); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid config: log_level %q", c.LogLevel)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("invalid config: cache_size must be >= 0, got %d", c.CacheSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid config: workers must be >= 1, got %d", c.Workers)
	}
	return nil
}

// Hasher returns the configured digest algorithm.
func (c *Config) Hasher() (hasher.Hasher, error) {
	return hasher.New(c.Hash)
}
