package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the connection and runtime settings for torm.
type Config struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	LogLevel      string `yaml:"log_level"`
	MigrationsDir string `yaml:"migrations_dir"`
	// ReadOnlyTx opens driver transactions with sql.TxOptions{ReadOnly: true}.
	ReadOnlyTx bool `yaml:"read_only_tx"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Config {
	return Config{
		Driver:        "postgres",
		LogLevel:      "info",
		MigrationsDir: "migrations",
	}
}

var datasourceURL = regexp.MustCompile(`url\s*=\s*(?:env\("([^"]+)"\)|"([^"]+)")`)

// Load reads path (a .yaml/.yml file or a prisma schema), then .env, then the
// environment. Later sources win. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	// .env is optional
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := parse(path, data, &cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parse(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".prisma":
		m := datasourceURL.FindStringSubmatch(string(data))
		if len(m) != 3 {
			return fmt.Errorf("could not parse datasource url from schema: %s", path)
		}
		if m[1] != "" {
			cfg.DSN = os.Getenv(m[1])
		} else {
			cfg.DSN = m[2]
		}
	default:
		return fmt.Errorf("unsupported config file %s", path)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TORM_DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("TORM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TORM_MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}
}

// Validate checks that the settings can open a connection.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return errors.New("config: DSN is empty (set dsn or DATABASE_URL)")
	}
	switch c.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported driver %q", c.Driver)
	}
	return nil
}
