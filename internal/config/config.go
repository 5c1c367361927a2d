package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const appName = "gardener"

type Config struct {
	Catalog     CatalogConfig     `yaml:"catalog" toml:"catalog"`
	Credentials CredentialsConfig `yaml:"credentials" toml:"credentials"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Storage     StorageConfig     `yaml:"storage" toml:"storage"`
	Patterns    PatternsConfig    `yaml:"patterns" toml:"patterns"`
	Schema      SchemaConfig      `yaml:"schema" toml:"schema"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq" toml:"rabbitmq"`
	LogLevel    string            `yaml:"log_level" toml:"log_level"`
}

type CatalogConfig struct {
	BaseURL           string   `yaml:"base_url" toml:"base_url"`
	Timeout           Duration `yaml:"timeout" toml:"timeout"`
	RequestsPerSecond float64  `yaml:"requests_per_second" toml:"requests_per_second"`
	UserAgent         string   `yaml:"user_agent" toml:"user_agent"`
	CheckCode         string   `yaml:"check_code" toml:"check_code"`
	LoginFailedMarker string   `yaml:"login_failed_marker" toml:"login_failed_marker"`
	LoggedInMarker    string   `yaml:"logged_in_marker" toml:"logged_in_marker"`
}

// Duration reads "90s" or "1m30s" from both YAML and TOML. A bare number is
// taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type CredentialsConfig struct {
	File string `yaml:"file" toml:"file"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" toml:"driver"`
	Path     string `yaml:"path" toml:"path"`
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	DBName   string `yaml:"dbname" toml:"dbname"`
	SSLMode  string `yaml:"sslmode" toml:"sslmode"`
}

// DSN returns the driver specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverPostgres {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
		)
	}
	if d.Path == ":memory:" {
		return "file::memory:?cache=shared&_pragma=foreign_keys(ON)"
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", filepath.ToSlash(d.Path))
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

type PatternsConfig struct {
	File string `yaml:"file" toml:"file"`
}

// ColumnDef is one column of a table, the type is passed to the database verbatim.
type ColumnDef struct {
	Name   string `yaml:"name" toml:"name"`
	DBType string `yaml:"dbtype" toml:"dbtype"`
}

type SchemaConfig struct {
	Torrents    []ColumnDef                  `yaml:"torrents" toml:"torrents"`
	Patterns    []ColumnDef                  `yaml:"patterns" toml:"patterns"`
	ForeignKeys map[string]map[string]string `yaml:"foreign_keys" toml:"foreign_keys"`
}

type RabbitMQConfig struct {
	URL        string `yaml:"url" toml:"url"`
	Exchange   string `yaml:"exchange" toml:"exchange"`
	RoutingKey string `yaml:"routing_key" toml:"routing_key"`
	QueueName  string `yaml:"queue_name" toml:"queue_name"`
}

// Enabled reports whether events should be published at all.
func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal([]byte(expanded), &cfg)
	default:
		err = yaml.Unmarshal([]byte(expanded), &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	dataDir := DataDir()

	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = "https://pt.sjtu.edu.cn"
	}
	if c.Catalog.Timeout == 0 {
		c.Catalog.Timeout = Duration(30 * time.Second)
	}
	if c.Catalog.RequestsPerSecond == 0 {
		c.Catalog.RequestsPerSecond = 1
	}
	if c.Catalog.UserAgent == "" {
		c.Catalog.UserAgent = "Gardener/1.0"
	}
	if c.Catalog.CheckCode == "" {
		c.Catalog.CheckCode = "XxXx"
	}
	if c.Catalog.LoginFailedMarker == "" {
		c.Catalog.LoginFailedMarker = "登录失败"
	}
	if c.Catalog.LoggedInMarker == "" {
		c.Catalog.LoggedInMarker = "退出"
	}
	if c.Credentials.File == "" {
		c.Credentials.File = filepath.Join(dataDir, "credentials.yaml")
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = filepath.Join(dataDir, "gardener.db")
	}
	if c.Database.Driver == DriverPostgres {
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = filepath.Join(dataDir, "torrents")
	}
	if c.Patterns.File == "" {
		c.Patterns.File = filepath.Join(dataDir, "patterns.txt")
	}
	if len(c.Schema.Torrents) == 0 && len(c.Schema.Patterns) == 0 && c.Schema.ForeignKeys == nil {
		c.Schema.ForeignKeys = DefaultForeignKeys()
	}
	if len(c.Schema.Torrents) == 0 {
		c.Schema.Torrents = DefaultTorrentSchema()
	}
	if len(c.Schema.Patterns) == 0 {
		c.Schema.Patterns = DefaultPatternSchema()
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = appName
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "items"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "gardener_items"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Catalog.RequestsPerSecond < 0 {
		return fmt.Errorf("catalog.requests_per_second must not be negative")
	}
	return nil
}

// DataDir is the default home for the database, credentials and artifacts.
func DataDir() string {
	if explicit := os.Getenv("GARDENER_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), appName)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, appName)
}

// DefaultTorrentSchema is the SQLite layout used when the config omits one.
func DefaultTorrentSchema() []ColumnDef {
	return []ColumnDef{
		{Name: "torrent_id", DBType: "INTEGER PRIMARY KEY AUTOINCREMENT"},
		{Name: "torrent_ptid", DBType: "TEXT NOT NULL"},
		{Name: "torrent_title", DBType: "TEXT NOT NULL"},
		{Name: "torrent_file", DBType: "TEXT NOT NULL DEFAULT ''"},
		{Name: "t_add", DBType: "TIMESTAMP NOT NULL"},
		{Name: "pattern_id", DBType: "INTEGER"},
		{Name: "t_start", DBType: "TIMESTAMP"},
		{Name: "t_complete", DBType: "TIMESTAMP"},
		{Name: "t_remove", DBType: "TIMESTAMP"},
	}
}

func DefaultPatternSchema() []ColumnDef {
	return []ColumnDef{
		{Name: "pattern_id", DBType: "INTEGER PRIMARY KEY AUTOINCREMENT"},
		{Name: "value", DBType: "TEXT NOT NULL"},
		{Name: "t_add", DBType: "TIMESTAMP NOT NULL"},
		{Name: "t_remove", DBType: "TIMESTAMP"},
	}
}

func DefaultForeignKeys() map[string]map[string]string {
	return map[string]map[string]string{
		"torrents": {"pattern_id": "patterns(pattern_id)"},
	}
}
