package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type NATSConfig struct {
	URL string
}

type VerifierConfig struct {
	URL            string
	APIKey         string
	TimeoutSeconds int
}

type DocsConfig struct {
	Dir string
}

type PublicConfig struct {
	// BaseURL is the externally reachable origin embedded in handoff URLs.
	BaseURL string
}

type LogConfig struct {
	Level string
	JSON  bool
}

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Verifier VerifierConfig
	Docs     DocsConfig
	Public   PublicConfig
	Log      LogConfig
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "financing")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("verifier.url", "http://localhost:9000")
	v.SetDefault("verifier.api.key", "")
	v.SetDefault("verifier.timeout", "30")
	v.SetDefault("docs.dir", "./data/docs")
	v.SetDefault("public.base.url", "http://localhost:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", "false")

	serverPort, err := strconv.Atoi(v.GetString("server.port"))
	if err != nil {
		return nil, fmt.Errorf("invalid server port: %w", err)
	}

	dbPort, err := strconv.Atoi(v.GetString("database.port"))
	if err != nil {
		return nil, fmt.Errorf("invalid database port: %w", err)
	}

	verifierTimeout, err := strconv.Atoi(v.GetString("verifier.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid verifier timeout: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     dbPort,
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		NATS: NATSConfig{
			URL: v.GetString("nats.url"),
		},
		Verifier: VerifierConfig{
			URL:            v.GetString("verifier.url"),
			APIKey:         v.GetString("verifier.api.key"),
			TimeoutSeconds: verifierTimeout,
		},
		Docs: DocsConfig{
			Dir: v.GetString("docs.dir"),
		},
		Public: PublicConfig{
			BaseURL: v.GetString("public.base.url"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			JSON:  v.GetBool("log.json"),
		},
	}, nil
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password,
		c.Database.DBName, c.Database.SSLMode)
}
