package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var loadConfigOnce sync.Once
var configInstance AppConfig
var extraConfigPaths []string

// AddConfigPath registers an additional directory to search for the server
// config file. Must be called before the first LoadConfig.
func AddConfigPath(path string) {
	extraConfigPaths = append(extraConfigPaths, path)
}

func LoadConfig() AppConfig {
	loadConfigOnce.Do(func() {
		viper.SetEnvPrefix("formsync_server")
		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.SetConfigName("server")
		for _, path := range extraConfigPaths {
			viper.AddConfigPath(path)
		}
		viper.AddConfigPath("config")
		viper.AddConfigPath("/config")

		viper.SetDefault("general.log_level", "info")
		viper.SetDefault("server.addr", ":3000")
		viper.SetDefault("airtable.base_url", "https://api.airtable.com")
		viper.SetDefault("cache.backend", "memory")
		viper.SetDefault("cache.key_prefix", "formsync:")
		viper.SetDefault("cache.ttl", 24*time.Hour)

		if err := viper.ReadInConfig(); err != nil {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}

		var sources []SourceConfig
		if err := viper.UnmarshalKey("sources", &sources); err != nil {
			panic(fmt.Errorf("fatal error parsing sources: %w", err))
		}

		configInstance = AppConfig{
			General: GeneralConfig{
				LogLevel: viper.GetString("general.log_level"),
			},
			Server: ServerConfig{
				Addr: viper.GetString("server.addr"),
			},
			AirTable: AirTableConfig{
				BaseURL:     viper.GetString("airtable.base_url"),
				AccessToken: viper.GetString("airtable.access_token"),
			},
			Cache: CacheConfig{
				Backend:   viper.GetString("cache.backend"),
				KeyPrefix: viper.GetString("cache.key_prefix"),
				TTL:       viper.GetDuration("cache.ttl"),
			},
			Redis: RedisConfig{
				Addr:     viper.GetString("redis.addr"),
				Password: viper.GetString("redis.password"),
				DB:       viper.GetInt("redis.db"),
			},
			Sources: sources,
		}
	})

	return configInstance
}

type AppConfig struct {
	General  GeneralConfig
	Server   ServerConfig
	AirTable AirTableConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Sources  []SourceConfig
}

type GeneralConfig struct {
	LogLevel string
}

type ServerConfig struct {
	Addr string
}

type AirTableConfig struct {
	BaseURL     string
	AccessToken string
}

// CacheConfig selects the form cache backend: "memory" keeps entries
// in-process, "redis" shares them between instances.
type CacheConfig struct {
	Backend   string
	KeyPrefix string
	TTL       time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SourceConfig provisions one form provider. Type is "airtable" or "yaml".
type SourceConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`

	// airtable sources
	BaseID        string        `mapstructure:"base_id"`
	TableID       string        `mapstructure:"table_id"`
	ViewID        string        `mapstructure:"view_id"`
	WebhookID     string        `mapstructure:"webhook_id"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	StaleTime     time.Duration `mapstructure:"stale_time"`

	// yaml sources
	Endpoint     string `mapstructure:"endpoint"`
	ResourcePath string `mapstructure:"resource_path"`
}
