package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlStorageConfig struct {
	Prefix              string          `yaml:"prefix"`
	TTLSeconds          int             `yaml:"ttl_seconds"`
	Redis               YamlRedisConfig `yaml:"redis"`
	FirestoreCollection string          `yaml:"firestore_collection"`
}

type YamlInAppConfig struct {
	Type       string `yaml:"type"`
	Position   string `yaml:"position"`
	DurationMS int    `yaml:"duration_ms"`
}

// YamlConfig mirrors the raw config.yaml file.
type YamlConfig struct {
	Provider  string                  `yaml:"provider"`
	FCM       *notify.FCMConfig       `yaml:"fcm"`
	OneSignal *notify.OneSignalConfig `yaml:"onesignal"`

	InApp   YamlInAppConfig   `yaml:"in_app"`
	Storage YamlStorageConfig `yaml:"storage"`

	Debug      bool `yaml:"debug"`
	Production bool `yaml:"production"`
	AutoInit   bool `yaml:"auto_init"`
}

// NewConfigFromYaml converts the YAML form into the clean base Config.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("mapping YAML config to base config struct")

	cfg := &Config{
		Provider: notify.ProviderConfig{
			Kind:      notify.ProviderKind(baseCfg.Provider),
			FCM:       baseCfg.FCM,
			OneSignal: baseCfg.OneSignal,
		},
		InAppDefaults: notify.InAppOptions{
			Type:     notify.InAppType(baseCfg.InApp.Type),
			Position: notify.InAppPosition(baseCfg.InApp.Position),
			Duration: time.Duration(baseCfg.InApp.DurationMS) * time.Millisecond,
		},
		Storage: StorageConfig{
			Prefix: baseCfg.Storage.Prefix,
			TTL:    time.Duration(baseCfg.Storage.TTLSeconds) * time.Second,
			Redis: RedisConfig{
				Addr:     baseCfg.Storage.Redis.Addr,
				Password: baseCfg.Storage.Redis.Password,
				DB:       baseCfg.Storage.Redis.DB,
				Enabled:  baseCfg.Storage.Redis.Enabled,
			},
			FirestoreCollection: baseCfg.Storage.FirestoreCollection,
		},
		Debug:      baseCfg.Debug,
		Production: baseCfg.Production,
		AutoInit:   baseCfg.AutoInit,
	}

	logger.Debug("YAML config mapping complete",
		"provider", string(cfg.Provider.Kind),
		"redis_enabled", cfg.Storage.Redis.Enabled,
	)
	return cfg, nil
}

// LoadFile reads and maps a config.yaml, then applies env overrides.
func LoadFile(path string, logger *slog.Logger) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var yamlCfg YamlConfig
	if err := yaml.Unmarshal(raw, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg, err := NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		return nil, err
	}
	return UpdateConfigWithEnvOverrides(cfg, logger), nil
}
