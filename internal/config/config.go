// Package config loads dbjoin settings from dbjoin.yaml, DBJOIN_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/filestore"
	"github.com/koustreak/dbjoin/internal/joinpath"
	"github.com/koustreak/dbjoin/internal/logger"
)

const (
	// FileName is the config file looked up next to the executable and in
	// the working directory, without extension.
	FileName = "dbjoin"
	// EnvPrefix prefixes environment overrides: DBJOIN_DATABASE_DSN.
	EnvPrefix = "DBJOIN"
	// EnvFile is the dotenv file read from the working directory when no
	// other is named.
	EnvFile = ".env"
)

// Config is the complete application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	// Snapshot, when set, replaces the live database with a snapshot file
	// or s3:// location.
	Snapshot  string          `mapstructure:"snapshot"`
	Log       LogConfig       `mapstructure:"log"`
	Join      JoinConfig      `mapstructure:"join"`
	Server    ServerConfig    `mapstructure:"server"`
	Filestore FilestoreConfig `mapstructure:"filestore"`
}

type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"`
	DSN              string        `mapstructure:"dsn"`
	Schemas          []string      `mapstructure:"schemas"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout     time.Duration `mapstructure:"query_timeout"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

type JoinConfig struct {
	MaxDepth   int `mapstructure:"max_depth"`
	MaxResults int `mapstructure:"max_results"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type FilestoreConfig struct {
	Provider  string `mapstructure:"provider"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
}

// New returns a viper instance carrying every default and wired to the
// environment. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	db := database.DefaultConfig("")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.schemas", []string{})
	v.SetDefault("database.max_conns", db.MaxConns)
	v.SetDefault("database.min_conns", db.MinConns)
	v.SetDefault("database.max_conn_lifetime", db.MaxConnLifetime)
	v.SetDefault("database.max_conn_idle_time", db.MaxConnIdleTime)
	v.SetDefault("database.connect_timeout", db.ConnectTimeout)
	v.SetDefault("database.query_timeout", db.QueryTimeout)
	v.SetDefault("database.fetch_concurrency", db.FetchConcurrency)

	v.SetDefault("snapshot", "")

	lg := logger.DefaultConfig()
	v.SetDefault("log.level", lg.Level)
	v.SetDefault("log.format", lg.Format)
	v.SetDefault("log.time_format", lg.TimeFormat)

	v.SetDefault("join.max_depth", joinpath.DefaultMaxDepth)
	v.SetDefault("join.max_results", joinpath.DefaultMaxResults)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("filestore.provider", string(filestore.ProviderMinIO))
	v.SetDefault("filestore.endpoint", "")
	v.SetDefault("filestore.access_key", "")
	v.SetDefault("filestore.secret_key", "")
	v.SetDefault("filestore.use_ssl", false)
	v.SetDefault("filestore.region", "")
	v.SetDefault("filestore.bucket", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadEnvFile exports the variables of a dotenv file that are not already
// set. A missing default file is ignored; a missing named file is NotFound.
func LoadEnvFile(path string) error {
	named := path != ""
	if !named {
		path = EnvFile
	}
	if err := godotenv.Load(path); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist) && !named:
			return nil
		case errors.Is(err, fs.ErrNotExist):
			return errs.Wrap(errs.ErrKindNotFound, "env file "+path, err)
		default:
			return errs.Wrap(errs.ErrKindInvalidInput, "read env file "+path, err)
		}
	}
	return nil
}

// Load reads the config file into v and decodes the result. An explicit
// path must exist; without one, dbjoin.yaml is optional and searched next
// to the executable, then in the working directory.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(ex))
		}
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
		case errors.Is(err, fs.ErrNotExist):
			return nil, errs.Wrap(errs.ErrKindNotFound, "config file "+path, err)
		default:
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "read config", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component could work with.
func (c *Config) Validate() error {
	if c.Database.Driver != "" {
		if _, err := database.ParseDriver(c.Database.Driver); err != nil {
			return err
		}
	}
	if c.Database.MaxConns < 0 || c.Database.MinConns < 0 {
		return errs.New(errs.ErrKindInvalidInput, "database.max_conns and database.min_conns must not be negative")
	}
	if c.Database.MaxConns > 0 && c.Database.MinConns > c.Database.MaxConns {
		return errs.Newf(errs.ErrKindInvalidInput, "database.min_conns (%d) exceeds database.max_conns (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Database.FetchConcurrency < 0 {
		return errs.New(errs.ErrKindInvalidInput, "database.fetch_concurrency must not be negative")
	}
	for _, d := range []time.Duration{
		c.Database.MaxConnLifetime, c.Database.MaxConnIdleTime, c.Database.ConnectTimeout, c.Database.QueryTimeout,
		c.Server.ReadTimeout, c.Server.WriteTimeout, c.Server.ShutdownTimeout,
	} {
		if d < 0 {
			return errs.New(errs.ErrKindInvalidInput, "timeouts and lifetimes must not be negative")
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "disabled", "off":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "log.level %q is not one of debug, info, warn, error, disabled", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "log.format %q must be json or console", c.Log.Format)
	}

	if c.Join.MaxDepth < 0 || c.Join.MaxDepth > joinpath.MaxDepthLimit {
		return errs.Newf(errs.ErrKindInvalidInput, "join.max_depth must be between 0 and %d", joinpath.MaxDepthLimit)
	}
	if c.Join.MaxResults < 0 {
		return errs.New(errs.ErrKindInvalidInput, "join.max_results must not be negative")
	}

	if c.Server.Addr == "" {
		return errs.New(errs.ErrKindInvalidInput, "server.addr must not be empty")
	}

	if store := c.FilestoreConfig(); store.Enabled() {
		if err := store.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DatabaseConfig converts the database section for database.Open.
func (c *Config) DatabaseConfig() *database.Config {
	cfg := database.DefaultConfig(c.Database.DSN)
	if c.Database.Driver != "" {
		cfg.Driver, _ = database.ParseDriver(c.Database.Driver)
	}
	cfg.Schemas = c.Database.Schemas
	cfg.MaxConns = c.Database.MaxConns
	cfg.MinConns = c.Database.MinConns
	cfg.MaxConnLifetime = c.Database.MaxConnLifetime
	cfg.MaxConnIdleTime = c.Database.MaxConnIdleTime
	cfg.ConnectTimeout = c.Database.ConnectTimeout
	cfg.QueryTimeout = c.Database.QueryTimeout
	cfg.FetchConcurrency = c.Database.FetchConcurrency
	return cfg
}

// LoggerConfig converts the log section. Output stays stderr.
func (c *Config) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	cfg.TimeFormat = c.Log.TimeFormat
	return cfg
}

// JoinOptions converts the join section into search bounds.
func (c *Config) JoinOptions() joinpath.Options {
	return joinpath.Options{MaxDepth: c.Join.MaxDepth, MaxResults: c.Join.MaxResults}
}

// FilestoreConfig converts the filestore section.
func (c *Config) FilestoreConfig() *filestore.Config {
	return &filestore.Config{
		Provider:  filestore.Provider(c.Filestore.Provider),
		Endpoint:  c.Filestore.Endpoint,
		AccessKey: c.Filestore.AccessKey,
		SecretKey: c.Filestore.SecretKey,
		UseSSL:    c.Filestore.UseSSL,
		Region:    c.Filestore.Region,
		Bucket:    c.Filestore.Bucket,
	}
}
