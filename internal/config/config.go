package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Stock    StockConfig    `mapstructure:"stock"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName,
		c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MongoDBConfig configures the audit trail. An empty URI disables it.
type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// StorageConfig configures product image uploads. An empty bucket disables them.
type StorageConfig struct {
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxImageBytes int64  `mapstructure:"max_image_bytes"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
	DraftTTL   time.Duration `mapstructure:"draft_ttl"`
}

type PricingConfig struct {
	SwapUnitPrice string `mapstructure:"swap_unit_price"`
}

func (p PricingConfig) SwapPrice() (decimal.Decimal, error) {
	price, err := decimal.NewFromString(p.SwapUnitPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid pricing.swap_unit_price %q: %w", p.SwapUnitPrice, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("pricing.swap_unit_price must be positive, got %s", price)
	}
	return price, nil
}

type StockConfig struct {
	LowThreshold int `mapstructure:"low_threshold"`
}

type RealtimeConfig struct {
	ChannelPrefix string `mapstructure:"channel_prefix"`
	BufferSize    int    `mapstructure:"buffer_size"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "app_user")
	v.SetDefault("database.password", "postgres_password")
	v.SetDefault("database.name", "lpg")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "lpg")
	v.SetDefault("mongodb.collection", "audit_logs")

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.public_base_url", "https://storage.googleapis.com")
	v.SetDefault("storage.max_image_bytes", 5<<20)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.draft_ttl", 30*time.Minute)

	v.SetDefault("pricing.swap_unit_price", "900")
	v.SetDefault("stock.low_threshold", 10)

	v.SetDefault("realtime.channel_prefix", "lpg")
	v.SetDefault("realtime.buffer_size", 64)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
}

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE
// and the environment. DATABASE_HOST overrides database.host and so on.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (AUTH_JWT_SECRET) is required")
	}
	if _, err := c.Pricing.SwapPrice(); err != nil {
		return err
	}
	if c.Stock.LowThreshold < 0 {
		return fmt.Errorf("stock.low_threshold cannot be negative, got %d", c.Stock.LowThreshold)
	}
	return nil
}
