package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Warehouse WarehouseConfig       `yaml:"warehouse"`
	Auth      AuthConfig            `yaml:"auth"`
	Views     map[string]StaticView `yaml:"views"`
	Database  DatabaseConfig        `yaml:"database"`
	Reporting ReportingConfig       `yaml:"reporting"`
	Logging   LoggingConfig         `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type WarehouseConfig struct {
	Account        string        `yaml:"account"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	Warehouse      string        `yaml:"warehouse"`
	Database       string        `yaml:"database"`
	Schema         string        `yaml:"schema"`
	Role           string        `yaml:"role"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
}

// Auth modes. Static reads users and view grants from this file,
// database reads them from the metadata database.
const (
	AuthModeStatic   = "static"
	AuthModeDatabase = "database"
)

type AuthConfig struct {
	Mode       string                `yaml:"mode"`
	SessionTTL time.Duration         `yaml:"session_ttl"`
	Users      map[string]StaticUser `yaml:"users"`
}

// StaticUser is a user entry in static auth mode. PasswordHash (bcrypt)
// takes precedence; the plaintext Password field is kept for legacy
// deployments and is compared case-insensitively.
type StaticUser struct {
	Password     string   `yaml:"password"`
	PasswordHash string   `yaml:"password_hash"`
	Views        []string `yaml:"views"`
}

type StaticView struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ReportingConfig struct {
	FloorDate     string `yaml:"floor_date"`
	PreviewRows   int    `yaml:"preview_rows"`
	ExcelRowLimit int    `yaml:"excel_row_limit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(cfg)
	normalize(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FloorTime returns the earliest selectable report date. The format is
// checked during validation.
func (r ReportingConfig) FloorTime() time.Time {
	t, err := time.Parse("2006-01-02", r.FloorDate)
	if err != nil {
		return time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8090"
	}
	if cfg.Warehouse.ConnectTimeout == 0 {
		cfg.Warehouse.ConnectTimeout = 30 * time.Second
	}
	if cfg.Warehouse.QueryTimeout == 0 {
		cfg.Warehouse.QueryTimeout = 5 * time.Minute
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthModeStatic
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 12 * time.Hour
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/snowview/meta.db"
	}
	if cfg.Reporting.FloorDate == "" {
		cfg.Reporting.FloorDate = "2019-01-01"
	}
	if cfg.Reporting.PreviewRows == 0 {
		cfg.Reporting.PreviewRows = 100
	}
	if cfg.Reporting.ExcelRowLimit == 0 {
		cfg.Reporting.ExcelRowLimit = 100000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// normalize lower-cases static user emails so lookups are
// case-insensitive regardless of how the file was written.
func normalize(cfg *Config) {
	if len(cfg.Auth.Users) == 0 {
		return
	}
	users := make(map[string]StaticUser, len(cfg.Auth.Users))
	for email, u := range cfg.Auth.Users {
		users[strings.ToLower(email)] = u
	}
	cfg.Auth.Users = users
}

func validate(cfg *Config) error {
	if cfg.Warehouse.Account == "" {
		return fmt.Errorf("warehouse.account is required")
	}
	if cfg.Warehouse.User == "" {
		return fmt.Errorf("warehouse.user is required")
	}
	if cfg.Warehouse.Database == "" {
		return fmt.Errorf("warehouse.database is required")
	}
	if cfg.Warehouse.Warehouse == "" {
		return fmt.Errorf("warehouse.warehouse is required")
	}
	if cfg.Warehouse.Password == "" && cfg.Warehouse.PrivateKeyPath == "" {
		return fmt.Errorf("one of warehouse.password or warehouse.private_key_path is required")
	}
	if cfg.Warehouse.Password != "" && cfg.Warehouse.PrivateKeyPath != "" {
		return fmt.Errorf("warehouse.password and warehouse.private_key_path are mutually exclusive")
	}

	switch cfg.Auth.Mode {
	case AuthModeStatic:
		for email, u := range cfg.Auth.Users {
			if u.Password == "" && u.PasswordHash == "" {
				return fmt.Errorf("auth.users[%s]: password or password_hash is required", email)
			}
		}
	case AuthModeDatabase:
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required in database auth mode")
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q", AuthModeStatic, AuthModeDatabase)
	}

	if _, err := time.Parse("2006-01-02", cfg.Reporting.FloorDate); err != nil {
		return fmt.Errorf("reporting.floor_date must be YYYY-MM-DD: %w", err)
	}
	if cfg.Reporting.PreviewRows < 0 {
		return fmt.Errorf("reporting.preview_rows must be positive")
	}

	return nil
}
