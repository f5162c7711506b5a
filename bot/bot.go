// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Anansitrading/cxdb/zulip"
)

// defaultCommandTimeout bounds the handling of one inbound message,
// including all store and chat round-trips it triggers.
const defaultCommandTimeout = 60 * time.Second

// channelDescription is used when the home channel has to be created.
const channelDescription = "cxdb - Conversation branching for agent sessions. " +
	"Fork sessions, A/B test prompts, score branches. " +
	"CTX-N links auto-resolve to cxdb contexts."

// Config holds the bot-level settings. Transport and store credentials
// live in their respective client configs.
type Config struct {
	// Channel is the home channel; the bot subscribes to it on startup
	// and handles every message posted there.
	Channel string
	// SelfPrefix matches the bot's own sender email.
	SelfPrefix string
	// MentionName is the bot's display name for @-mention addressing.
	MentionName string
	// PIDFile, if non-empty, is written on startup and removed on
	// shutdown.
	PIDFile string
	// CommandTimeout bounds one message's handling. Zero means
	// defaultCommandTimeout.
	CommandTimeout time.Duration
}

// Bot ties the chat transport, the store client, and the dispatcher
// into one long-running service.
type Bot struct {
	chat       *zulip.Client
	dispatcher *Dispatcher
	config     Config
	logger     *slog.Logger
}

// New creates a Bot. The store is taken as the Store interface so
// tests can substitute a fake.
func New(chat *zulip.Client, store Store, config Config, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = defaultCommandTimeout
	}
	dispatcher := NewDispatcher(DispatcherConfig{
		Store:       store,
		Chat:        chat,
		Channel:     config.Channel,
		SelfPrefix:  config.SelfPrefix,
		MentionName: config.MentionName,
		Logger:      logger,
	})
	return &Bot{
		chat:       chat,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
	}
}

// Run subscribes to the home channel, registers an event queue, and
// processes inbound messages sequentially until ctx is cancelled.
// Sequential dispatch is deliberate: commands from one user arrive in
// order and their effects (fork then record, say) must apply in order.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.chat.Subscribe(ctx, b.config.Channel, channelDescription); err != nil {
		return fmt.Errorf("bot: subscribing to home channel: %w", err)
	}

	if b.config.PIDFile != "" {
		if err := writePIDFile(b.config.PIDFile); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		defer func() {
			if err := os.Remove(b.config.PIDFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				b.logger.Warn("removing PID file", "path", b.config.PIDFile, "error", err)
			}
		}()
	}

	queue, err := b.chat.RegisterQueue(ctx)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	b.logger.Info("bot running", "channel", b.config.Channel)

	for {
		messages, err := queue.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("bot stopping", "reason", context.Cause(ctx))
				return nil
			}
			return fmt.Errorf("bot: %w", err)
		}
		for _, message := range messages {
			b.handleOne(ctx, message)
		}
	}
}

// handleOne dispatches a single message under its own timeout so one
// stuck backend call cannot stall the event loop forever.
func (b *Bot) handleOne(ctx context.Context, message zulip.Message) {
	commandCtx, cancel := context.WithTimeout(ctx, b.config.CommandTimeout)
	defer cancel()
	b.dispatcher.HandleMessage(commandCtx, message)
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating PID file directory: %w", err)
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	return nil
}
