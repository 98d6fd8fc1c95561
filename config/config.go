package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Events   EventsConfig   `mapstructure:"events"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// VaultConfig pins the program id used for address derivation and the
// assets vaults may hold. Keys are base58.
type VaultConfig struct {
	ProgramID    string        `mapstructure:"program_id"`
	DefaultAsset string        `mapstructure:"default_asset"`
	Assets       []AssetConfig `mapstructure:"assets"`
}

type AssetConfig struct {
	Mint     string `mapstructure:"mint"`
	Symbol   string `mapstructure:"symbol"`
	Decimals int32  `mapstructure:"decimals"`
}

type LedgerConfig struct {
	FaucetEnabled bool `mapstructure:"faucet_enabled"`
}

type EventsConfig struct {
	Stream string `mapstructure:"stream"`
	MaxLen int64  `mapstructure:"max_len"`
}

const (
	defaultProgramID = "CkZiutQNW4qfdauyjbRPR5sCv5G7PV2arvsFGPez58iU"
	defaultAssetMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CVS_ (Custody Vault Service).
// Nested keys use underscore: CVS_DATABASE_HOST, CVS_VAULT_PROGRAM_ID, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "custody_vault")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "1h")
	v.SetDefault("jwt.issuer", "custody-vault")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("vault.program_id", defaultProgramID)
	v.SetDefault("vault.default_asset", defaultAssetMint)
	v.SetDefault("vault.assets", []map[string]any{
		{"mint": defaultAssetMint, "symbol": "USDC", "decimals": 6},
	})
	v.SetDefault("ledger.faucet_enabled", false)
	v.SetDefault("events.stream", "vault:events")
	v.SetDefault("events.max_len", 10000)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// CVS_VAULT_PROGRAM_ID -> vault.program_id
	v.SetEnvPrefix("CVS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.Vault.ProgramID == "" {
		return fmt.Errorf("vault.program_id is required")
	}
	if c.Vault.DefaultAsset == "" {
		return fmt.Errorf("vault.default_asset is required")
	}
	if c.Events.MaxLen < 0 {
		return fmt.Errorf("events.max_len must not be negative")
	}
	for i, a := range c.Vault.Assets {
		if a.Mint == "" {
			return fmt.Errorf("vault.assets[%d].mint is required", i)
		}
		if a.Decimals < 0 || a.Decimals > 18 {
			return fmt.Errorf("vault.assets[%d].decimals out of range: %d", i, a.Decimals)
		}
	}
	return nil
}
