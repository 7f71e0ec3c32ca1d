// Package config loads the bot configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/edumarques81/stellar-radiobot/internal/version"
)

// Defaults applied when a variable is unset.
const (
	DefaultLavalinkHost     = "localhost"
	DefaultLavalinkPort     = 2333
	DefaultLavalinkPassword = "youshallnotpass"
	DefaultDatabasePath     = "data/radiobot.db"
	DefaultDashboardPort    = 3001
	DefaultMaxRemoteClients = 5
	DefaultPollInterval     = 10 * time.Second
	DefaultActivity         = "📻 /radio play"
)

// ErrMissingToken is returned when DISCORD_TOKEN is not set.
var ErrMissingToken = errors.New("DISCORD_TOKEN is required")

// Lavalink holds the audio node connection settings.
type Lavalink struct {
	Host     string
	Port     int
	Password string
	Secure   bool
}

// Config is the complete runtime configuration.
type Config struct {
	Token    string
	GuildID  string
	OwnerIDs []string

	Lavalink Lavalink

	DatabasePath     string
	DashboardPort    int
	WebDashboard     bool
	MaxRemoteClients int

	// DashboardOrigins lists the browser origins allowed to call the API
	// and socket.io server. "*" allows any origin.
	DashboardOrigins []string

	PollInterval  time.Duration
	UserAgent     string
	ArtworkLookup bool

	// Activity is the bot status shown while nothing plays.
	Activity string
}

// Load reads envFile (or .env when empty) into the process environment and
// builds the configuration from it. A missing .env is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	return FromLookup(os.LookupEnv)
}

// FromLookup builds the configuration from a variable lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &Config{
		Token:   get("DISCORD_TOKEN"),
		GuildID: get("GUILD_ID"),
		Lavalink: Lavalink{
			Host:     DefaultLavalinkHost,
			Port:     DefaultLavalinkPort,
			Password: DefaultLavalinkPassword,
		},
		DatabasePath:     DefaultDatabasePath,
		DashboardPort:    DefaultDashboardPort,
		WebDashboard:     true,
		MaxRemoteClients: DefaultMaxRemoteClients,
		DashboardOrigins: []string{"*"},
		PollInterval:     DefaultPollInterval,
		UserAgent:        version.GetInfo().UserAgent(),
		ArtworkLookup:    true,
		Activity:         DefaultActivity,
	}

	cfg.OwnerIDs = listVar(get, "OWNER_IDS")
	if origins := listVar(get, "DASHBOARD_ORIGINS"); len(origins) > 0 {
		cfg.DashboardOrigins = origins
	}

	if v := get("LAVALINK_HOST"); v != "" {
		cfg.Lavalink.Host = v
	}
	if v := get("LAVALINK_PASSWORD"); v != "" {
		cfg.Lavalink.Password = v
	}
	if v := get("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := get("RADIO_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := get("BOT_ACTIVITY"); v != "" {
		cfg.Activity = v
	}

	var err error
	if cfg.Lavalink.Port, err = intVar(get, "LAVALINK_PORT", cfg.Lavalink.Port); err != nil {
		return nil, err
	}
	if cfg.DashboardPort, err = intVar(get, "DASHBOARD_PORT", cfg.DashboardPort); err != nil {
		return nil, err
	}
	if cfg.MaxRemoteClients, err = intVar(get, "DASHBOARD_MAX_CLIENTS", cfg.MaxRemoteClients); err != nil {
		return nil, err
	}
	if cfg.Lavalink.Secure, err = boolVar(get, "LAVALINK_SECURE", false); err != nil {
		return nil, err
	}
	if cfg.WebDashboard, err = boolVar(get, "WEB_DASHBOARD", true); err != nil {
		return nil, err
	}
	if cfg.ArtworkLookup, err = boolVar(get, "ARTWORK_LOOKUP", true); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = durationVar(get, "RADIO_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}

	// Snowflakes are 17 to 20 digits.
	if c.GuildID != "" && !isSnowflake(c.GuildID) {
		return fmt.Errorf("invalid GUILD_ID %q: must be a valid snowflake", c.GuildID)
	}
	for _, id := range c.OwnerIDs {
		if !isSnowflake(id) {
			return fmt.Errorf("invalid OWNER_IDS entry %q: must be a valid snowflake", id)
		}
	}

	if c.Lavalink.Port <= 0 || c.Lavalink.Port > 65535 {
		return fmt.Errorf("invalid LAVALINK_PORT %d", c.Lavalink.Port)
	}
	if c.DashboardPort <= 0 || c.DashboardPort > 65535 {
		return fmt.Errorf("invalid DASHBOARD_PORT %d", c.DashboardPort)
	}
	for _, origin := range c.DashboardOrigins {
		if !isOrigin(origin) {
			return fmt.Errorf("invalid DASHBOARD_ORIGINS entry %q: want * or scheme://host[:port]", origin)
		}
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("RADIO_POLL_INTERVAL must be at least 1s, got %s", c.PollInterval)
	}
	return nil
}

// IsOwner reports whether the user may run owner-only commands.
func (c *Config) IsOwner(userID string) bool {
	for _, id := range c.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func isSnowflake(s string) bool {
	if len(s) < 17 || len(s) > 20 {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// isOrigin accepts "*" or a bare http(s) origin without path.
func isOrigin(s string) bool {
	if s == "*" {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" &&
		(u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.User == nil
}

// listVar splits a comma-separated variable, dropping blank entries.
func listVar(get func(string) string, key string) []string {
	var out []string
	for _, item := range strings.Split(get(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func intVar(get func(string) string, key string, def int) (int, error) {
	v := get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func boolVar(get func(string) string, key string, def bool) (bool, error) {
	v := get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

// durationVar accepts Go durations ("10s") or plain seconds ("10").
func durationVar(get func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := get(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
