package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sndcds/attachments/generator"
	"github.com/sndcds/attachments/logging"
)

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Schema   string `mapstructure:"schema"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString is the pgx connection URL. Empty when no host is configured.
func (c DBConfig) ConnString() string {
	if c.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type DiskConfig struct {
	Name    string `mapstructure:"name"`
	Root    string `mapstructure:"root"`
	BaseURL string `mapstructure:"base_url"`
}

type WorkerConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	QueueSize       int           `mapstructure:"queue_size"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	// InProcess runs generation jobs inside the HTTP server instead of on
	// the redis queue.
	InProcess bool `mapstructure:"in_process"`
	// GenerateOnMiss enqueues a job whenever a resolved derivative is
	// missing.
	GenerateOnMiss bool `mapstructure:"generate_on_miss"`
}

func (w WorkerConfig) Generator() generator.Config {
	return generator.Config{
		MaxAttempts:     w.MaxAttempts,
		InitialInterval: w.InitialInterval,
		MaxInterval:     w.MaxInterval,
	}
}

type HTTPConfig struct {
	Listen         string `mapstructure:"listen"`
	BasePath       string `mapstructure:"base_path"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	DefaultLocale  string `mapstructure:"default_locale"`
}

// BreakpointConfig is an alternate recipe for viewports up to MaxWidth.
type BreakpointConfig struct {
	MaxWidth int          `mapstructure:"max_width"`
	Recipe   RecipeConfig `mapstructure:",squash"`
}

// RecipeConfig describes manipulations in configuration files.
type RecipeConfig struct {
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
	Ratio   string `mapstructure:"ratio"`
	Fit     string `mapstructure:"fit"`
	Crop    string `mapstructure:"crop"`
	Format  string `mapstructure:"format"`
	Quality int    `mapstructure:"quality"`
	Filter  string `mapstructure:"filter"`
	Sharpen int    `mapstructure:"sharpen"`
}

type FormatConfig struct {
	Name        string             `mapstructure:"name"`
	EntityTypes []string           `mapstructure:"entity_types"`
	Recipe      RecipeConfig       `mapstructure:",squash"`
	Breakpoints []BreakpointConfig `mapstructure:"breakpoints"`
}

type Config struct {
	DB          DBConfig       `mapstructure:"db"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Disks       []DiskConfig   `mapstructure:"disks"`
	DefaultDisk string         `mapstructure:"default_disk"`
	Log         logging.Config `mapstructure:"log"`
	Worker      WorkerConfig   `mapstructure:"worker"`
	HTTP        HTTPConfig     `mapstructure:"http"`
	Formats     []FormatConfig `mapstructure:"formats"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.schema", "public")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.prefix", "attachments:jobs")
	v.SetDefault("disks", []map[string]any{{"name": "public", "root": "storage/public", "base_url": "/attachments/files/public"}})
	v.SetDefault("default_disk", "public")
	v.SetDefault("log.level", "info")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_size", 1024)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.initial_interval", "500ms")
	v.SetDefault("worker.max_interval", "10s")
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.base_path", "/api")
	v.SetDefault("http.max_upload_bytes", 32<<20)
	v.SetDefault("http.default_locale", "en")
}

// LoadConfig reads the JSON config file, when given, and applies
// ATTACHMENTS_* environment overrides, e.g. ATTACHMENTS_DB_HOST.
func LoadConfig(fileName string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("attachments")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"db.host", "db.port", "db.user", "db.password", "db.dbname", "db.schema", "db.sslmode",
		"redis.address", "redis.password", "redis.db",
		"log.level", "log.development", "log.file",
		"worker.concurrency", "worker.in_process", "worker.generate_on_miss",
		"http.listen", "default_disk",
	} {
		_ = v.BindEnv(key)
	}

	if fileName != "" {
		v.SetConfigFile(fileName)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", fileName, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return config, config.Validate()
}

func (config Config) Validate() error {
	if len(config.Disks) == 0 {
		return errors.New("at least one disk must be configured")
	}
	found := false
	seen := make(map[string]bool)
	for _, d := range config.Disks {
		if d.Name == "" || d.Root == "" {
			return fmt.Errorf("disk %q needs a name and a root", d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("disk %q configured twice", d.Name)
		}
		seen[d.Name] = true
		found = found || d.Name == config.DefaultDisk
	}
	if !found {
		return fmt.Errorf("default disk %q is not configured", config.DefaultDisk)
	}
	for _, f := range config.Formats {
		if _, err := f.Definition(); err != nil {
			return err
		}
	}
	return nil
}

// Print logs the effective configuration without secrets.
func (config Config) Print(logger *zap.Logger) {
	diskNames := make([]string, 0, len(config.Disks))
	for _, d := range config.Disks {
		diskNames = append(diskNames, d.Name+"="+d.Root)
	}
	formatNames := make([]string, 0, len(config.Formats))
	for _, f := range config.Formats {
		formatNames = append(formatNames, f.Name)
	}

	logger.Info("config",
		zap.String("db_host", config.DB.Host),
		zap.Int("db_port", config.DB.Port),
		zap.String("db_user", config.DB.User),
		zap.String("db_name", config.DB.DBName),
		zap.String("db_schema", config.DB.Schema),
		zap.String("sslmode", config.DB.SSLMode),
		zap.String("redis_address", config.Redis.Address),
		zap.Strings("disks", diskNames),
		zap.String("default_disk", config.DefaultDisk),
		zap.Int("worker_concurrency", config.Worker.Concurrency),
		zap.Bool("worker_in_process", config.Worker.InProcess),
		zap.String("http_listen", config.HTTP.Listen),
		zap.Strings("formats", formatNames),
	)
}
