// Package config loads spacepeer's runtime configuration from the
// environment, following the teacher's plain env-tag-and-default
// pattern rather than introducing a config library: the surface is
// small and flat enough that viper/koanf would be ceremony, exactly
// the kind of judgment call the teacher repo makes.
package config

import (
	"os"
	"strconv"
)

// Config holds every option named in spec.md §6 plus the ambient
// infrastructure options (store DSN, cache DSN, observability,
// service port) the teacher's Config carried.
type Config struct {
	Environment string `env:"ENVIRONMENT"`
	Port        string `env:"PORT"`
	LogLevel    string `env:"LOG_LEVEL"`

	// Relational store + content-addressable event store.
	DatabaseURL string `env:"DATABASE_URL,secret"`

	// Cache / cross-process fanout backplane.
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD,secret"`
	RedisDB       int    `env:"REDIS_DB"`

	// Log server / identity provider, spec.md §6.
	LeafURL             string `env:"LEAF_URL"`
	LeafServerDID        string `env:"LEAF_SERVER_DID"`
	PLCDirectory        string `env:"PLC_DIRECTORY"`
	StreamSchemaVersion string `env:"STREAM_SCHEMA_VERSION"`
	StreamNSID          string `env:"STREAM_NSID"`
	StreamHandleNSID    string `env:"STREAM_HANDLE_NSID"`

	// Test-credential auth fallback.
	TestingHandle       string `env:"TESTING_HANDLE"`
	TestingAppPassword  string `env:"TESTING_APP_PASSWORD,secret"`

	// Feature flags.
	ThreadsList    bool `env:"FEATURE_THREADS_LIST"`
	DiscordImport  bool `env:"FEATURE_DISCORD_IMPORT"`
	DiscordBridge  bool `env:"FEATURE_DISCORD_BRIDGE"`
	SharedWorker   bool `env:"FEATURE_SHARED_WORKER"`

	// Bridge-only options, cmd/bridged.
	DiscordBotToken       string `env:"DISCORD_BOT_TOKEN,secret"`
	DiscordSubsetGuildIDs string `env:"DISCORD_SUBSET_GUILD_IDS"`

	// Service-identity JWT signing, internal/auth.
	JWTRSAPrivateKey string `env:"JWT_RSA_PRIVATE_KEY,secret"`
	JWTRSAPublicKey  string `env:"JWT_RSA_PUBLIC_KEY,secret"`
}

// Load reads configuration from the environment, applying the same
// defaults the teacher's config.Load uses for infra options and the
// spec's defaults for the sync-specific options.
func Load() *Config {
	return &Config{
		Environment:           getEnv("ENVIRONMENT", "development"),
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		LeafURL:               getEnv("LEAF_URL", ""),
		LeafServerDID:         getEnv("LEAF_SERVER_DID", ""),
		PLCDirectory:          getEnv("PLC_DIRECTORY", "https://plc.directory"),
		StreamSchemaVersion:   getEnv("STREAM_SCHEMA_VERSION", "v0"),
		StreamNSID:            getEnv("STREAM_NSID", "space.roomy.stream"),
		StreamHandleNSID:      getEnv("STREAM_HANDLE_NSID", "space.roomy.streamHandle"),
		TestingHandle:         getEnv("TESTING_HANDLE", ""),
		TestingAppPassword:    getEnv("TESTING_APP_PASSWORD", ""),
		ThreadsList:           getEnvAsBool("FEATURE_THREADS_LIST", true),
		DiscordImport:         getEnvAsBool("FEATURE_DISCORD_IMPORT", false),
		DiscordBridge:         getEnvAsBool("FEATURE_DISCORD_BRIDGE", false),
		SharedWorker:          getEnvAsBool("FEATURE_SHARED_WORKER", false),
		DiscordBotToken:       getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordSubsetGuildIDs: getEnv("DISCORD_SUBSET_GUILD_IDS", ""),
		JWTRSAPrivateKey:      getEnv("JWT_RSA_PRIVATE_KEY", ""),
		JWTRSAPublicKey:       getEnv("JWT_RSA_PUBLIC_KEY", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
