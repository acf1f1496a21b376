package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Queue  QueueConfig  `mapstructure:"queue"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DBConfig holds the relational store configuration.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
	// MigrationsPath is the directory holding the schema migration
	// scripts, relative to the working directory unless absolute.
	MigrationsPath string `mapstructure:"migrationsPath"`
}

// CacheConfig holds the read-cache configuration.
type CacheConfig struct {
	FilePath string `mapstructure:"filePath"`
}

// QueueConfig holds the notification queue configuration.
type QueueConfig struct {
	FilePath string `mapstructure:"filePath"`
	// Name is the queue that page change events are published on.
	Name string `mapstructure:"name"`
	// LeaseSeconds is how long a reserved task stays invisible before it
	// becomes eligible for redelivery.
	LeaseSeconds int `mapstructure:"leaseSeconds"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // e.g., "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // e.g., "json", "console"
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("server.port", "8080")
	// multiStatements is required for the multi-statement migration files.
	viper.SetDefault("db.dsn", "wiki:wiki@tcp(localhost:3306)/wiki?parseTime=true&multiStatements=true")
	viper.SetDefault("db.migrationsPath", "migrations")
	viper.SetDefault("cache.filePath", "pagecache.db")
	viper.SetDefault("queue.filePath", "notify.db")
	viper.SetDefault("queue.name", "pagechange")
	viper.SetDefault("queue.leaseSeconds", 60)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")

	// Set up viper to read from config file
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/slatewiki/")
	viper.AddConfigPath("$HOME/.slatewiki")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		// Config file not found; proceed with defaults and env vars
	}

	// Set up viper to read from environment variables
	viper.SetEnvPrefix("WIKI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Unmarshal the config into the Config struct
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
