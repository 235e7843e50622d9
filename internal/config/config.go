// Package config loads the metaserver configuration from YAML, with
// defaults for every field so a missing file still yields a runnable
// server.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "MYTHMETA_CONFIG"

// Metaserver holds all configuration for the metaserver process.
type Metaserver struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	UserdPort   int    `yaml:"userd_port"`
	RoomPort    int    `yaml:"room_port"`
	WebPort     int    `yaml:"web_port"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Storage backend: "postgres" or "flatfile".
	Storage StorageConfig `yaml:"storage"`

	// Rooms
	RoomListPath   string `yaml:"room_list_path"`
	RoomMaxMembers int    `yaml:"room_max_members"`

	// Login
	MOTD                string        `yaml:"motd"`
	TokenLifetime       time.Duration `yaml:"token_lifetime"`
	MaxLoginAttempts    int           `yaml:"max_login_attempts"`
	AllowNewAccounts    bool          `yaml:"allow_new_accounts"`
	NoMail              bool          `yaml:"no_mail"`
	MinimumClientBuild  int           `yaml:"minimum_client_build"`
	UpdateURL           string        `yaml:"update_url"`
	GuestLoginsAllowed  bool          `yaml:"guest_logins_allowed"`
	ConnectionsPerIP    int           `yaml:"connections_per_ip"`
	ConnectionRateBurst int           `yaml:"connection_rate_burst"`

	// Stats export
	ScoreboardPath string `yaml:"scoreboard_path"`
	ScoreboardTopN int    `yaml:"scoreboard_top_n"`

	// PID file for the start/stop wrapper.
	PIDFile string `yaml:"pid_file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// SlogLevel maps the configured level name to a slog.Level. Unknown
// names fall back to info.
func (c Metaserver) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	// Backend is "postgres" or "flatfile".
	Backend string `yaml:"backend"`

	// DataDir holds the fixed-record files for the flatfile backend.
	DataDir string `yaml:"data_dir"`
}

// DefaultMetaserver returns Metaserver config with sensible defaults.
func DefaultMetaserver() Metaserver {
	return Metaserver{
		BindAddress:         "0.0.0.0",
		UserdPort:           3453,
		RoomPort:            3455,
		WebPort:             3454,
		RoomListPath:        "rooms.lst",
		RoomMaxMembers:      64,
		MOTD:                "Welcome back to the metaserver.",
		TokenLifetime:       48 * time.Hour,
		MaxLoginAttempts:    3,
		AllowNewAccounts:    true,
		NoMail:              false,
		MinimumClientBuild:  0,
		GuestLoginsAllowed:  false,
		ConnectionsPerIP:    10,
		ConnectionRateBurst: 20,
		ScoreboardPath:      "scoreboard.txt",
		ScoreboardTopN:      100,
		PIDFile:             "mythmeta.pid",
		LogLevel:            "info",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "mythmeta",
			Password: "mythmeta",
			DBName:   "mythmeta",
			SSLMode:  "disable",
		},
		Storage: StorageConfig{
			Backend: "postgres",
			DataDir: "data",
		},
	}
}

// LoadMetaserver loads metaserver config from a YAML file. If the file
// doesn't exist, returns defaults.
func LoadMetaserver(path string) (Metaserver, error) {
	cfg := DefaultMetaserver()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Path resolves the config file location: the explicit flag value wins,
// then the environment, then the default name.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return "mythmeta.yaml"
}

func (c Metaserver) validate() error {
	switch c.Storage.Backend {
	case "postgres", "flatfile":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	for _, port := range []int{c.UserdPort, c.RoomPort, c.WebPort} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("port %d out of range", port)
		}
	}
	if c.MaxLoginAttempts <= 0 {
		return fmt.Errorf("max_login_attempts must be positive")
	}
	return nil
}
