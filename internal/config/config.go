package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DB      DBConfig
	Server  ServerConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Auth    AuthConfig
	Storage StorageConfig
	Gating  GatingConfig
	Catalog CatalogConfig
	Lock    LockConfig
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DBConfig struct {
	Driver   string // postgres, sqlite or oracle
	DSN      string // used as-is when set
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LoggerConfig struct {
	Env   string
	Level string
}

type AuthConfig struct {
	JWTSecret string
}

type StorageConfig struct {
	Driver            string // fs or gcs
	BasePath          string
	Bucket            string
	Endpoint          string // GCS emulator endpoint, optional
	AllowedExtensions []string
	MaxFileSize       int64
}

type GatingConfig struct {
	LLNDExcludedCategories []int64
	PTRExcludedCategories  []int64
	SecondaryTermMarkers   []string
}

type CatalogConfig struct {
	CacheTTL time.Duration
}

type LockConfig struct {
	TTL  time.Duration
	Wait time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 20)
	v.SetDefault("server.write_timeout", 20)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("logger.env", "development")
	v.SetDefault("logger.level", "info")
	v.SetDefault("storage.driver", "fs")
	v.SetDefault("storage.base_path", "./data/answers")
	v.SetDefault("storage.allowed_extensions", []string{"pdf", "doc", "docx", "jpg", "jpeg", "png", "xlsx", "txt"})
	v.SetDefault("storage.max_file_size", 10*1024*1024)
	v.SetDefault("gating.secondary_term_markers", []string{"semester 2", "term 2"})
	v.SetDefault("catalog.cache_ttl", 300)
	v.SetDefault("lock.ttl", 10)
	v.SetDefault("lock.wait", 5)
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Add config paths based on environment
	if os.Getenv("ENV") == "test" {
		v.AddConfigPath("../../config")
		v.AddConfigPath("../../")
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	configFile := v.ConfigFileUsed()
	if configFile != "" {
		absPath, _ := filepath.Abs(configFile)
		fmt.Printf("Using config file: %s\n", absPath)
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		DB: DBConfig{
			Driver:   v.GetString("db.driver"),
			DSN:      v.GetString("db.dsn"),
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
		},
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout") * time.Second,
			WriteTimeout: v.GetDuration("server.write_timeout") * time.Second,
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Logger: LoggerConfig{
			Env:   v.GetString("logger.env"),
			Level: v.GetString("logger.level"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Storage: StorageConfig{
			Driver:            v.GetString("storage.driver"),
			BasePath:          v.GetString("storage.base_path"),
			Bucket:            v.GetString("storage.bucket"),
			Endpoint:          v.GetString("storage.endpoint"),
			AllowedExtensions: v.GetStringSlice("storage.allowed_extensions"),
			MaxFileSize:       v.GetInt64("storage.max_file_size"),
		},
		Gating: GatingConfig{
			LLNDExcludedCategories: toInt64s(v.GetIntSlice("gating.llnd_excluded_categories")),
			PTRExcludedCategories:  toInt64s(v.GetIntSlice("gating.ptr_excluded_categories")),
			SecondaryTermMarkers:   v.GetStringSlice("gating.secondary_term_markers"),
		},
		Catalog: CatalogConfig{
			CacheTTL: v.GetDuration("catalog.cache_ttl") * time.Second,
		},
		Lock: LockConfig{
			TTL:  v.GetDuration("lock.ttl") * time.Second,
			Wait: v.GetDuration("lock.wait") * time.Second,
		},
	}
}

func toInt64s(in []int) []int64 {
	out := make([]int64, 0, len(in))
	for _, i := range in {
		out = append(out, int64(i))
	}
	return out
}

// GetDSN returns the connection string for the configured driver.
func (c *Config) GetDSN() string {
	if c.DB.DSN != "" {
		return c.DB.DSN
	}
	switch c.DB.Driver {
	case "oracle":
		return fmt.Sprintf("oracle://%s:%s@%s:%d/%s", c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.DBName)
	case "sqlite":
		return "file:assessment.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	default:
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.DBName)
	}
}
