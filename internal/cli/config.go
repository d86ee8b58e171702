package cli

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aporthq/aport-go/client"
)

type Config struct {
	BaseURL   string `yaml:"base_url"   mapstructure:"base_url"`
	APIKey    string `yaml:"api_key"    mapstructure:"api_key"`
	TimeoutMS int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	AgentID   string `yaml:"agent_id"   mapstructure:"agent_id"`
}

func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("base_url", "https://api.aport.io")
	v.SetDefault("api_key", "")
	v.SetDefault("timeout_ms", 800)
	v.SetDefault("agent_id", "")

	// Env overrides: APORT_BASE_URL, APORT_API_KEY, APORT_TIMEOUT_MS, APORT_AGENT_ID
	v.SetEnvPrefix("APORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Read file if it exists, otherwise return defaults without error
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// newClient builds a client from config with flag overrides applied.
func newClient() (*client.Client, *Config, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if timeoutMS > 0 {
		cfg.TimeoutMS = timeoutMS
	}
	c := client.New(client.Options{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
	})
	return c, cfg, nil
}
