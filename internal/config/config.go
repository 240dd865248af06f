// internal/config/config.go
//
// Process configuration.
//
// Values come from (highest precedence first): command-line flags, environment
// variables (optionally loaded from a .env file by main), then defaults.
// Flag names are kebab-case; the matching environment variable is the
// upper-snake form (db-file ↔ DB_FILE).

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/csaldivar-astate/persistence-is-key/internal/game"
)

// Identity modes for resolving the client behind a request.
const (
	IdentityIP    = "ip"
	IdentityToken = "token"
)

// Config holds every tunable of the server and CLI.
type Config struct {
	Port      int
	DBFile    string
	LogLevel  string
	LogFormat string

	Scoring  game.Mode
	Identity string

	JWTSecret string
	TokenTTL  time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	AdminKeyHash  string
	ClientOrigin  string
	SecureCookies bool
	TrustProxy    bool
	SeedDefaults  bool
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		Port:           5175,
		DBFile:         "./data/dictionary.db",
		LogLevel:       "info",
		LogFormat:      "json",
		Scoring:        game.ModeSimple,
		Identity:       IdentityIP,
		TokenTTL:       24 * time.Hour,
		RateLimitRPS:   0,
		RateLimitBurst: 10,
		ClientOrigin:   "http://localhost:5173",
	}
}

// BindFlags registers the persistent flags shared by every command.
func BindFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.Int("port", d.Port, "port to listen on")
	fs.String("db-file", d.DBFile, "SQLite database file")
	fs.String("log-level", d.LogLevel, "log level (trace, debug, info, warn, error)")
	fs.String("log-format", d.LogFormat, "log format (json, console)")
	fs.String("scoring", string(d.Scoring), "guess scoring rule (simple, strict)")
	fs.String("identity", d.Identity, "client identity (ip, token)")
	fs.String("jwt-secret", "", "HMAC secret for client session tokens")
	fs.Duration("token-ttl", d.TokenTTL, "lifetime of client session tokens")
	fs.Int("rate-limit-rps", d.RateLimitRPS, "per-client requests per second on game routes (0 disables)")
	fs.Int("rate-limit-burst", d.RateLimitBurst, "per-client burst on game routes")
	fs.String("admin-key-hash", "", "bcrypt hash guarding dictionary mutations (empty disables)")
	fs.String("client-origin", d.ClientOrigin, "allowed CORS origin")
	fs.Bool("secure-cookies", false, "mark session cookies Secure (SameSite=None)")
	fs.Bool("trust-proxy", false, "take the client IP from X-Forwarded-For/X-Real-IP (only behind a reverse proxy)")
	fs.Bool("seed-defaults", false, "seed an empty dictionary with the bundled word list")
}

// NewViper returns a viper instance reading environment variables
// and bound to fs.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	return v, nil
}

// FromViper resolves a Config and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetInt("port"),
		DBFile:         v.GetString("db-file"),
		LogLevel:       v.GetString("log-level"),
		LogFormat:      v.GetString("log-format"),
		Scoring:        game.Mode(strings.ToLower(v.GetString("scoring"))),
		Identity:       strings.ToLower(v.GetString("identity")),
		JWTSecret:      v.GetString("jwt-secret"),
		TokenTTL:       v.GetDuration("token-ttl"),
		RateLimitRPS:   v.GetInt("rate-limit-rps"),
		RateLimitBurst: v.GetInt("rate-limit-burst"),
		AdminKeyHash:   v.GetString("admin-key-hash"),
		ClientOrigin:   v.GetString("client-origin"),
		SecureCookies:  v.GetBool("secure-cookies"),
		TrustProxy:     v.GetBool("trust-proxy"),
		SeedDefaults:   v.GetBool("seed-defaults"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges and mode combinations.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.DBFile == "" {
		return errors.New("db-file is required")
	}
	if _, err := game.ScorerFor(c.Scoring); err != nil {
		return err
	}
	switch c.Identity {
	case IdentityIP:
	case IdentityToken:
		if c.JWTSecret == "" {
			return errors.New("identity=token requires jwt-secret")
		}
	default:
		return fmt.Errorf("unknown identity mode %q", c.Identity)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token-ttl must be positive: %s", c.TokenTTL)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate-limit-rps must not be negative: %d", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate-limit-burst must be positive: %d", c.RateLimitBurst)
	}
	return nil
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
