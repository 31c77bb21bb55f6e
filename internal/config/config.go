package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "CHATROOM"
	defaultHTTPAddress        = "0.0.0.0:5000"
	defaultDatabasePath       = "data/chat_history.db"
	defaultLogLevel           = "info"
	defaultNamesPath          = "data/names.txt"
	defaultUploadsDir         = "static/uploads"
	defaultUploadsMaxBytes    = 16 * 1024 * 1024
	defaultStaticDir          = "static"
	defaultHistoryLimit       = 50
	defaultPersistenceTimeout = 5 * time.Second
)

// AppConfig captures runtime configuration for the chat server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	NamesPath          string
	UploadsDir         string
	UploadsMaxBytes    int64
	StaticDir          string
	HistoryLimit       int
	PersistenceTimeout time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("names.path", defaultNamesPath)
	configViper.SetDefault("uploads.dir", defaultUploadsDir)
	configViper.SetDefault("uploads.max_bytes", defaultUploadsMaxBytes)
	configViper.SetDefault("static.dir", defaultStaticDir)
	configViper.SetDefault("history.limit", defaultHistoryLimit)
	configViper.SetDefault("persistence.timeout", defaultPersistenceTimeout)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		NamesPath:          configViper.GetString("names.path"),
		UploadsDir:         configViper.GetString("uploads.dir"),
		UploadsMaxBytes:    configViper.GetInt64("uploads.max_bytes"),
		StaticDir:          configViper.GetString("static.dir"),
		HistoryLimit:       configViper.GetInt("history.limit"),
		PersistenceTimeout: configViper.GetDuration("persistence.timeout"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.UploadsDir) == "" {
		return fmt.Errorf("uploads.dir is required")
	}
	if c.UploadsMaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive, got %d", c.UploadsMaxBytes)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history.limit must be positive, got %d", c.HistoryLimit)
	}
	if c.PersistenceTimeout <= 0 {
		return fmt.Errorf("persistence.timeout must be positive, got %s", c.PersistenceTimeout)
	}
	return nil
}
