// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// config is the YAML configuration for the bot. One explicit file, no
// search paths: the deployment names the file it runs with.
type config struct {
	Zulip struct {
		// Server is the Zulip server base URL.
		Server string `yaml:"server"`
		// Email is the bot account's email address.
		Email string `yaml:"email"`
		// APIKey is the bot account's API key.
		APIKey string `yaml:"api_key"`
	} `yaml:"zulip"`

	Store struct {
		// GatewayURL is the cxdb gateway base URL.
		GatewayURL string `yaml:"gateway_url"`
		// ClientTag labels contexts and turns this bot writes.
		// Defaults to "cxdb-zulip-bot".
		ClientTag string `yaml:"client_tag"`
	} `yaml:"store"`

	Bot struct {
		// Channel is the home channel. Defaults to "cxdb".
		Channel string `yaml:"channel"`
		// EmailPrefix matches the bot's own messages so they are
		// ignored. Defaults to "cxdb-bot".
		EmailPrefix string `yaml:"email_prefix"`
		// MentionName is the bot's display name for @-mentions.
		// Defaults to "cxdb Bot".
		MentionName string `yaml:"mention_name"`
		// PIDFile, if set, is written on startup and removed on
		// shutdown.
		PIDFile string `yaml:"pid_file"`
		// CommandTimeout bounds one command's handling, in Go duration
		// syntax ("30s", "2m").
		CommandTimeout duration `yaml:"command_timeout"`
	} `yaml:"bot"`
}

// duration wraps time.Duration with YAML decoding of the "30s" form.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = duration(parsed)
	return nil
}

// loadConfig reads and validates the configuration file, applying
// defaults for optional fields.
func loadConfig(path string) (*config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Zulip.Server == "" {
		return nil, fmt.Errorf("config %s: zulip.server is required", path)
	}
	if cfg.Zulip.Email == "" {
		return nil, fmt.Errorf("config %s: zulip.email is required", path)
	}
	if cfg.Zulip.APIKey == "" {
		return nil, fmt.Errorf("config %s: zulip.api_key is required", path)
	}
	if cfg.Store.GatewayURL == "" {
		return nil, fmt.Errorf("config %s: store.gateway_url is required", path)
	}

	if cfg.Store.ClientTag == "" {
		cfg.Store.ClientTag = "cxdb-zulip-bot"
	}
	if cfg.Bot.Channel == "" {
		cfg.Bot.Channel = "cxdb"
	}
	if cfg.Bot.EmailPrefix == "" {
		cfg.Bot.EmailPrefix = "cxdb-bot"
	}
	if cfg.Bot.MentionName == "" {
		cfg.Bot.MentionName = "cxdb Bot"
	}

	return &cfg, nil
}
