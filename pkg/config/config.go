package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Name        string   `mapstructure:"name"`
		Port        string   `mapstructure:"port"`
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"app"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Postgres struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		DBName   string `mapstructure:"dbname"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"postgres"`

	Exchange struct {
		URL         string        `mapstructure:"url"`
		HTTPTimeout time.Duration `mapstructure:"http_timeout"`
		UserAgent   string        `mapstructure:"user_agent"`
		SymbolsFile string        `mapstructure:"symbols_file"`
	} `mapstructure:"exchange"`

	Scheduler struct {
		Enabled   bool   `mapstructure:"enabled"`
		PruneSpec string `mapstructure:"prune_spec"`
		RunOnBoot bool   `mapstructure:"run_on_boot"`
	} `mapstructure:"scheduler"`

	Migrations struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"migrations"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "autocurrency")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.cors_origins", []string{"http://localhost:8080", "http://127.0.0.1:8080"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.dbname", "cospend")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("exchange.url", "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies/{base}.json")
	v.SetDefault("exchange.http_timeout", 30*time.Second)
	v.SetDefault("exchange.user_agent", "autocurrency/1.0")
	v.SetDefault("exchange.symbols_file", "")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.prune_spec", "@daily")
	v.SetDefault("scheduler.run_on_boot", false)

	v.SetDefault("migrations.enabled", true)
	v.SetDefault("migrations.path", "file://migrations")
}

// LoadConfig reads config.yaml from the usual locations and lets
// environment variables (POSTGRES_HOST, EXCHANGE_URL, ...) override it.
// A missing file is not an error: defaults plus environment are enough.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("../../config")

	return load(v)
}

// LoadConfigFile reads exactly one config file.
func LoadConfigFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
