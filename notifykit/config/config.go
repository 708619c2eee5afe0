// Package config defines the kit configuration, its YAML file form, the
// provider-config validator and the non-fatal security audit.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// RedisConfig selects the redis storage backend.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// StorageConfig shapes the kit's key-value persistence.
type StorageConfig struct {
	// Prefix scopes every key the kit writes; empty uses the kit default.
	Prefix string
	// TTL expires stored values; zero means never.
	TTL time.Duration
	// Redis, when enabled, replaces the in-memory fallback backend.
	Redis RedisConfig
	// FirestoreCollection selects the firestore backend collection when a
	// firestore client module is registered.
	FirestoreCollection string
}

// Config is the single, authoritative kit configuration. It is immutable
// once accepted by Init.
type Config struct {
	Provider notify.ProviderConfig

	InAppDefaults notify.InAppOptions
	Storage       StorageConfig

	// Debug enables debug logging.
	Debug bool
	// Production arms the security audit's hard-coded-secret warnings.
	Production bool
	// AutoInit makes the kit initialize on construction instead of
	// waiting for an explicit Init call.
	AutoInit bool
}

// UpdateConfigWithEnvOverrides applies environment variables over a
// loaded config and returns it.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) *Config {
	logger.Debug("applying environment variable overrides")

	if val := os.Getenv("NOTIFYKIT_PROVIDER"); val != "" {
		logger.Debug("overriding config value", "key", "NOTIFYKIT_PROVIDER", "source", "env")
		cfg.Provider.Kind = notify.ProviderKind(val)
	}
	if val := os.Getenv("NOTIFYKIT_DEBUG"); val != "" {
		if debug, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = debug
		}
	}
	if val := os.Getenv("NOTIFYKIT_PRODUCTION"); val != "" {
		if prod, err := strconv.ParseBool(val); err == nil {
			cfg.Production = prod
		}
	}

	// FCM overrides
	if val := os.Getenv("FCM_PROJECT_ID"); val != "" {
		logger.Debug("overriding config value", "key", "FCM_PROJECT_ID", "source", "env")
		ensureFCM(cfg).ProjectID = val
	}
	if val := os.Getenv("FCM_API_KEY"); val != "" {
		logger.Debug("overriding config value", "key", "FCM_API_KEY", "source", "env")
		ensureFCM(cfg).APIKey = val
	}
	if val := os.Getenv("FCM_APP_ID"); val != "" {
		ensureFCM(cfg).AppID = val
	}
	if val := os.Getenv("FCM_SENDER_ID"); val != "" {
		ensureFCM(cfg).MessagingSenderID = val
	}
	if val := os.Getenv("FCM_VAPID_KEY"); val != "" {
		ensureFCM(cfg).VapidKey = val
	}
	if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			ensureFCM(cfg).CredentialsJSON = raw
		} else {
			logger.Warn("failed to read credentials file", "err", err)
		}
	}

	// OneSignal overrides
	if val := os.Getenv("ONESIGNAL_APP_ID"); val != "" {
		logger.Debug("overriding config value", "key", "ONESIGNAL_APP_ID", "source", "env")
		ensureOneSignal(cfg).AppID = val
	}
	if val := os.Getenv("ONESIGNAL_API_KEY"); val != "" {
		ensureOneSignal(cfg).APIKey = val
	}

	// Redis overrides (same vocabulary as the rest of the stack)
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Storage.Redis.Addr = val
		cfg.Storage.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Storage.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Storage.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Storage.Redis.Enabled = enabled
	}

	logger.Debug("configuration finalized")
	return cfg
}

func ensureFCM(cfg *Config) *notify.FCMConfig {
	if cfg.Provider.FCM == nil {
		cfg.Provider.FCM = &notify.FCMConfig{}
	}
	return cfg.Provider.FCM
}

func ensureOneSignal(cfg *Config) *notify.OneSignalConfig {
	if cfg.Provider.OneSignal == nil {
		cfg.Provider.OneSignal = &notify.OneSignalConfig{}
	}
	return cfg.Provider.OneSignal
}
