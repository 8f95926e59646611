package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/mathclub/ideaboard/internal/client"
)

const defaultBaseURL = "http://localhost:8080"

// CLIConfig holds the client identity persisted to disk.
type CLIConfig struct {
	BaseURL   string    `json:"base_url"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

var errNotSignedIn = errors.New("not signed in - run 'ideaboard signin'")

func cliConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ideaboard", "credentials.json")
}

func loadCLIConfig() (CLIConfig, error) {
	data, err := os.ReadFile(cliConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CLIConfig{}, errNotSignedIn
		}
		return CLIConfig{}, err
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, err
	}
	return cfg, nil
}

func saveCLIConfig(cfg CLIConfig) error {
	path := cliConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return os.WriteFile(path, data, 0600)
}

// newClient builds a client for baseURL, or the saved server, or the
// default, carrying saved credentials when they are for the same server.
func newClient(baseURL string) *client.Client {
	cfg, _ := loadCLIConfig()
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := client.New(baseURL)
	if cfg.Token != "" && (cfg.BaseURL == "" || cfg.BaseURL == c.BaseURL) {
		c.Use(client.Credentials{UserID: cfg.UserID, Token: cfg.Token, ExpiresAt: cfg.ExpiresAt})
	}
	return c
}

func loadAuthenticatedClient(baseURL string) (*client.Client, error) {
	c := newClient(baseURL)
	if c.Token == "" {
		return nil, errNotSignedIn
	}
	if !c.IsAuthenticated() {
		return nil, errors.New("token expired - run 'ideaboard signin' to get a new identity")
	}
	return c, nil
}
