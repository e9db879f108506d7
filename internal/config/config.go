package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/samber/oops"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Store    StoreConfig
	Cache    CacheConfig
	Identity IdentityConfig
	Auth     AuthConfig
	Catalog  CatalogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"5000"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"wildsats-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // Admin stats key
}

// StoreConfig selects and configures the player store.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // memory, sqlite, postgres, mysql, mongodb, redis

	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/wildsats.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:"postgres://postgres@localhost:5432/wildsats?sslmode=disable"`
	MySQLDSN    string `envconfig:"MYSQL_DSN" default:"root@tcp(localhost:3306)/wildsats"`

	MongoURI        string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"wildsats"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"users"`

	RedisAddr      string `envconfig:"STORE_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"STORE_REDIS_PASSWORD" default:""`
	RedisDB        int    `envconfig:"STORE_REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"STORE_REDIS_PREFIX" default:"wildsats"`

	ConnectAttempts uint64        `envconfig:"STORE_CONNECT_ATTEMPTS" default:"5"`
	ConnectBackoff  time.Duration `envconfig:"STORE_CONNECT_BACKOFF" default:"500ms"`
}

// CacheConfig holds cache settings for profiles and auth replay protection.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// IdentityConfig configures relay access.
type IdentityConfig struct {
	Relays          []string      `envconfig:"RELAYS" default:""`
	RelayTimeout    time.Duration `envconfig:"RELAY_TIMEOUT" default:"5s"`
	ProfileCacheTTL time.Duration `envconfig:"PROFILE_CACHE_TTL" default:"10m"`
	Strict          bool          `envconfig:"IDENTITY_STRICT" default:"true"`
	ResolveProfiles bool          `envconfig:"RESOLVE_PROFILES" default:"true"`
}

// AuthConfig configures NIP-98 request proofs.
type AuthConfig struct {
	Required bool          `envconfig:"AUTH_REQUIRED" default:"false"`
	Window   time.Duration `envconfig:"AUTH_WINDOW" default:"60s"`
}

// CatalogConfig configures the animal catalog.
type CatalogConfig struct {
	Path             string `envconfig:"CATALOG_PATH" default:""`
	DefaultCharacter string `envconfig:"DEFAULT_CHARACTER" default:"Dog"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// RelayURLs returns the configured relays with blanks removed.
func (i *IdentityConfig) RelayURLs() []string {
	urls := make([]string, 0, len(i.Relays))
	for _, u := range i.Relays {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory", "sqlite", "postgres", "postgresql", "mysql", "mongodb", "mongo", "redis":
	default:
		return oops.Code("CONFIG_INVALID").In("config").With("store_type", c.Store.Type).Errorf("unknown STORE_TYPE %q", c.Store.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return oops.Code("CONFIG_INVALID").In("config").With("cache_type", c.Cache.Type).Errorf("unknown CACHE_TYPE %q", c.Cache.Type)
	}
	if strings.TrimSpace(c.Catalog.DefaultCharacter) == "" {
		return oops.Code("CONFIG_INVALID").In("config").Errorf("DEFAULT_CHARACTER must not be empty")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").In("config").Wrapf(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
