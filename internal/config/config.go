package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Listen is the address the HTTP API binds to.
	Listen string `mapstructure:"listen" yaml:"listen"`

	// AdminSecret is the shared operator secret checked on every
	// request as a bearer token.
	AdminSecret string `mapstructure:"admin_secret" yaml:"admin_secret"`
}

// OAuthConfig holds the identity-provider token endpoint settings.
type OAuthConfig struct {
	// TokenURL is the OAuth2 token endpoint used for the
	// refresh-token grant.
	TokenURL string `mapstructure:"token_url" yaml:"token_url"`

	// Scope is the permission scope requested with each exchange.
	Scope string `mapstructure:"scope" yaml:"scope"`
}

// IMAPConfig holds the mailbox server settings.
type IMAPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`

	// MaxSessionsPerAccount caps concurrent protocol sessions opened
	// for a single account.
	MaxSessionsPerAccount int `mapstructure:"max_sessions_per_account" yaml:"max_sessions_per_account"`
}

// FolderConfig maps the logical folder views onto physical folder names.
type FolderConfig struct {
	Inbox string `mapstructure:"inbox" yaml:"inbox"`
	Junk  string `mapstructure:"junk" yaml:"junk"`
}

// CacheConfig holds listing-cache settings.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
}

// StoreConfig holds the credential registry settings.
type StoreConfig struct {
	// Path is the SQLite database file for stored credentials.
	Path string `mapstructure:"path" yaml:"path"`
}

// Config is the top-level service configuration.
type Config struct {
	Server  ServerConfig `mapstructure:"server" yaml:"server"`
	OAuth   OAuthConfig  `mapstructure:"oauth" yaml:"oauth"`
	IMAP    IMAPConfig   `mapstructure:"imap" yaml:"imap"`
	Folders FolderConfig `mapstructure:"folders" yaml:"folders"`
	Cache   CacheConfig  `mapstructure:"cache" yaml:"cache"`
	Store   StoreConfig  `mapstructure:"store" yaml:"store"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8000",
		},
		OAuth: OAuthConfig{
			TokenURL: "https://login.microsoftonline.com/consumers/oauth2/v2.0/token",
			Scope:    "https://outlook.office.com/IMAP.AccessAsUser.All offline_access",
		},
		IMAP: IMAPConfig{
			Host:                  "outlook.live.com",
			Port:                  "993",
			MaxSessionsPerAccount: 4,
		},
		Folders: FolderConfig{
			Inbox: "INBOX",
			Junk:  "Junk",
		},
		Cache: CacheConfig{
			TTLSeconds: 300,
		},
		Store: StoreConfig{
			Path: "mailgate.db",
		},
	}
}

// Load reads configuration from the given YAML file path using Viper.
// A missing file yields the defaults; MAILGATE_* environment variables
// override individual keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("server.listen", ":8000")
	v.SetDefault("oauth.token_url", "https://login.microsoftonline.com/consumers/oauth2/v2.0/token")
	v.SetDefault("oauth.scope", "https://outlook.office.com/IMAP.AccessAsUser.All offline_access")
	v.SetDefault("imap.host", "outlook.live.com")
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.max_sessions_per_account", 4)
	v.SetDefault("folders.inbox", "INBOX")
	v.SetDefault("folders.junk", "Junk")
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("store.path", "mailgate.db")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return applyEnv(defaultConfig()), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return applyEnv(defaultConfig()), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return applyEnv(cfg), nil
}

// applyEnv overlays the environment variables that commonly differ per
// deployment on top of the file-based configuration.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("MAILGATE_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("MAILGATE_ADMIN_SECRET"); v != "" {
		cfg.Server.AdminSecret = v
	}
	if v := os.Getenv("MAILGATE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	return cfg
}
