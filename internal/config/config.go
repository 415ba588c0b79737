// Package config loads the global and per-profile configuration files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"

	"github.com/matheus3301/pawchat/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. PAWCHAT_CHAT_PAGE_SIZE.
const EnvPrefix = "PAWCHAT_"

// ErrNoIdentity is returned when the profile has no identity configured.
var ErrNoIdentity = errors.New("no identity configured: set [identity] email in the profile config or PAWCHAT_IDENTITY_EMAIL")

// Global represents ~/.pawchat/config.toml.
type Global struct {
	DefaultProfile string `toml:"default_profile"`
}

// LoadGlobal reads the global config. Returns error if the file is missing.
func LoadGlobal(path string) (*Global, error) {
	var g Global
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// SaveGlobal writes the global config, creating parent dirs as needed.
func SaveGlobal(path string, g *Global) error {
	return save(path, g)
}

// Config is a profile's config.toml.
type Config struct {
	Identity IdentityConfig `toml:"identity" envPrefix:"IDENTITY_"`
	Chat     ChatConfig     `toml:"chat" envPrefix:"CHAT_"`
	HTTP     HTTPConfig     `toml:"http" envPrefix:"HTTP_"`
	Storage  StorageConfig  `toml:"storage" envPrefix:"STORAGE_"`
}

// IdentityConfig is the signed-in user of this profile.
type IdentityConfig struct {
	Email string `toml:"email" env:"EMAIL"`
	Name  string `toml:"name" env:"NAME"`
	Image string `toml:"image" env:"IMAGE"`
}

type ChatConfig struct {
	PageSize            int `toml:"page_size" env:"PAGE_SIZE"`
	MaxPageSize         int `toml:"max_page_size" env:"MAX_PAGE_SIZE"`
	FeedBuffer          int `toml:"feed_buffer" env:"FEED_BUFFER"`
	ResubscribeAttempts int `toml:"resubscribe_attempts" env:"RESUBSCRIBE_ATTEMPTS"`
	OutboxSize          int `toml:"outbox_size" env:"OUTBOX_SIZE"`
}

// HTTPConfig enables the HTTP gateway when Addr is set.
type HTTPConfig struct {
	Addr string `toml:"addr" env:"ADDR"`
}

// StorageConfig locates participant images: key k is served at
// PublicBaseURL/Bucket/k.
type StorageConfig struct {
	PublicBaseURL string `toml:"public_base_url" env:"PUBLIC_BASE_URL"`
	Bucket        string `toml:"bucket" env:"BUCKET"`
}

// Default returns the config used when the profile has no config file.
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			PageSize:            store.DefaultPageSize,
			MaxPageSize:         store.MaxPageSize,
			FeedBuffer:          64,
			ResubscribeAttempts: 3,
			OutboxSize:          32,
		},
	}
}

// Load reads a profile config on top of the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes a profile config.
func Save(path string, cfg *Config) error {
	return save(path, cfg)
}

// ApplyEnv overrides cfg with PAWCHAT_* environment variables. Variables
// from the given .env files (or ./.env) are loaded first; missing files are
// ignored.
func ApplyEnv(cfg *Config, dotenv ...string) error {
	_ = godotenv.Load(dotenv...)
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	ch := c.Chat
	switch {
	case ch.MaxPageSize < 1 || ch.MaxPageSize > store.MaxPageSize:
		return fmt.Errorf("chat.max_page_size must be between 1 and %d, got %d", store.MaxPageSize, ch.MaxPageSize)
	case ch.PageSize < 1 || ch.PageSize > ch.MaxPageSize:
		return fmt.Errorf("chat.page_size must be between 1 and chat.max_page_size (%d), got %d", ch.MaxPageSize, ch.PageSize)
	case ch.FeedBuffer < 1:
		return fmt.Errorf("chat.feed_buffer must be positive, got %d", ch.FeedBuffer)
	case ch.ResubscribeAttempts < 0:
		return fmt.Errorf("chat.resubscribe_attempts must not be negative, got %d", ch.ResubscribeAttempts)
	case ch.OutboxSize < 1:
		return fmt.Errorf("chat.outbox_size must be positive, got %d", ch.OutboxSize)
	}
	return nil
}

// CurrentIdentity returns the profile's user as a conversation participant.
func (c *Config) CurrentIdentity() (store.Participant, error) {
	email := strings.TrimSpace(c.Identity.Email)
	if email == "" {
		return store.Participant{}, ErrNoIdentity
	}
	return store.Participant{Identity: email, Name: c.Identity.Name, Image: c.Identity.Image}, nil
}

func save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
