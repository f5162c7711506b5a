// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

// cxdb-bot bridges a Zulip organization and a cxdb conversation store.
// It subscribes to a home channel, parses branching commands out of
// chat messages, and executes them against the store, so that forking,
// scoring, and inspecting agent sessions happens where the team
// already talks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Anansitrading/cxdb/bot"
	"github.com/Anansitrading/cxdb/cxdb"
	"github.com/Anansitrading/cxdb/zulip"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the YAML configuration file (required)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("cxdb-bot %s\n", version)
		return nil
	}

	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cxdb.NewClient(cxdb.ClientConfig{
		GatewayURL: cfg.Store.GatewayURL,
		ClientTag:  cfg.Store.ClientTag,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	chat, err := zulip.NewClient(zulip.ClientConfig{
		ServerURL: cfg.Zulip.Server,
		Email:     cfg.Zulip.Email,
		APIKey:    cfg.Zulip.APIKey,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting cxdb-bot",
		"version", version,
		"channel", cfg.Bot.Channel,
		"gateway", cfg.Store.GatewayURL,
	)

	service := bot.New(chat, store, bot.Config{
		Channel:        cfg.Bot.Channel,
		SelfPrefix:     cfg.Bot.EmailPrefix,
		MentionName:    cfg.Bot.MentionName,
		PIDFile:        cfg.Bot.PIDFile,
		CommandTimeout: time.Duration(cfg.Bot.CommandTimeout),
	}, logger)

	return service.Run(ctx)
}
