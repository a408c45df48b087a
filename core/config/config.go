package config

import (
	"reflect"
	"strings"

	"deck-sync/core/database"
	"deck-sync/core/logger"
	"deck-sync/core/server"
	"deck-sync/core/storage"
	"deck-sync/core/worker"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP control API.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the attachment blob store.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the local store.
	Database database.Config `mapstructure:"database"`
	// Pool sizes the background worker pool running sync sessions.
	Pool worker.Config `mapstructure:"pool"`
	// Sync holds remote API and session settings.
	Sync SyncConfig `mapstructure:"sync"`
}

// SyncConfig holds settings of the synchronization engine.
type SyncConfig struct {
	// TimeoutSeconds bounds every remote API request; expiry counts as offline.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// UserAgent is sent with every remote API request.
	UserAgent string `mapstructure:"user_agent" default:"deck-sync"`
	// CapabilitiesTTLSeconds is how long server capabilities are cached per account.
	CapabilitiesTTLSeconds int `mapstructure:"capabilities_ttl_seconds" default:"300"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SYNC_TIMEOUT_SECONDS -> sync.timeout_seconds)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
