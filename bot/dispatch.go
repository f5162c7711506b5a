// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Anansitrading/cxdb/cxdb"
	"github.com/Anansitrading/cxdb/zulip"
)

// Store is the store surface the dispatcher consumes. *cxdb.Client
// implements it.
type Store interface {
	ListContexts(ctx context.Context, limit int) ([]cxdb.Context, error)
	GetLast(ctx context.Context, contextID int64, limit int) ([]cxdb.Turn, error)
	AppendTurn(ctx context.Context, contextID int64, role, content string) (cxdb.TurnRef, error)
	Fork(ctx context.Context, turnID int64) (cxdb.ForkResult, error)
	ScoreBranch(ctx context.Context, contextID int64, reward float64, reason string) error
}

// Sender is the chat surface the dispatcher consumes. *zulip.Client
// implements it.
type Sender interface {
	SendMessage(ctx context.Context, stream, topic, content string) (int64, error)
	AddReaction(ctx context.Context, messageID int64, emojiName string) error
}

const (
	sessionsListLimit = 20
	showTurnLimit     = 30
)

// DispatcherConfig holds configuration for creating a Dispatcher.
type DispatcherConfig struct {
	Store Store
	Chat  Sender
	// Channel is the home channel. Messages in other channels are
	// handled only when they @-mention the bot.
	Channel string
	// SelfPrefix matches the bot's own sender email; its own messages
	// are dropped to prevent feedback loops.
	SelfPrefix string
	// MentionName is the bot's display name, for @-mention addressing
	// outside the home channel.
	MentionName string
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Dispatcher routes parsed commands to their handlers and performs
// uniform error translation. One dispatcher serves the whole process;
// HandleMessage is called sequentially from the bot loop.
type Dispatcher struct {
	store       Store
	chat        Sender
	channel     string
	selfPrefix  string
	mentionName string
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:       config.Store,
		chat:        config.Chat,
		channel:     config.Channel,
		selfPrefix:  config.SelfPrefix,
		mentionName: config.MentionName,
		logger:      logger,
	}
}

// HandleMessage processes one inbound message to completion. It never
// returns an error: usage problems become usage hints, store errors
// become code+detail replies, and anything unexpected becomes a
// generic reply plus a log entry. One command's failure must not
// affect subsequent messages.
func (d *Dispatcher) HandleMessage(ctx context.Context, message zulip.Message) {
	if strings.HasPrefix(message.SenderEmail, d.selfPrefix) {
		return
	}
	if message.Type != "stream" {
		return
	}

	content := strings.TrimSpace(message.Content)
	if message.Stream.String() != d.channel && !d.isMentioned(content) {
		return
	}

	text := strings.TrimSpace(stripMentions(content))
	if text == "" {
		return
	}

	command, usageErr := ParseCommand(text)
	if usageErr != nil {
		d.reply(ctx, message, usageErr.Hint)
		return
	}

	if err := d.execute(ctx, message, command); err != nil {
		var storeErr *cxdb.StoreError
		if errors.As(err, &storeErr) {
			d.reply(ctx, message, fmt.Sprintf("**cxdb error** (%s): %s", storeErr.Code, storeErr.Detail))
			return
		}
		d.logger.Error("command failed",
			"sender", message.SenderEmail,
			"text", text,
			"error", err,
		)
		d.reply(ctx, message, "**Error**: command failed unexpectedly; details are in the bot log.")
	}
}

// execute runs one parsed command. Returned errors are translated by
// HandleMessage; replies for the success paths are sent here.
func (d *Dispatcher) execute(ctx context.Context, message zulip.Message, command Command) error {
	switch cmd := command.(type) {
	case SessionsCommand:
		return d.handleSessions(ctx, message)
	case ShowCommand:
		return d.handleShow(ctx, message, cmd)
	case ForkCommand:
		return d.handleFork(ctx, message, cmd)
	case CompareCommand:
		return d.handleCompare(ctx, message, cmd)
	case ScoreCommand:
		return d.handleScore(ctx, message, cmd)
	case RecordCommand:
		return d.handleRecord(ctx, message, cmd)
	case SearchCommand:
		return d.handleSearch(ctx, message, cmd)
	case HelpCommand:
		d.reply(ctx, message, helpText)
		return nil
	default:
		return fmt.Errorf("unhandled command type %T", command)
	}
}

func (d *Dispatcher) handleSessions(ctx context.Context, message zulip.Message) error {
	d.react(ctx, message, "eyes")
	contexts, err := d.store.ListContexts(ctx, sessionsListLimit)
	if err != nil {
		return err
	}
	if len(contexts) == 0 {
		d.reply(ctx, message, "No contexts yet. Use `record` or the store SDK to create sessions.")
		return nil
	}
	d.reply(ctx, message, renderSessionTable(contexts))
	return nil
}

func (d *Dispatcher) handleShow(ctx context.Context, message zulip.Message, cmd ShowCommand) error {
	d.react(ctx, message, "eyes")
	turns, err := d.store.GetLast(ctx, cmd.ContextID, showTurnLimit)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		d.reply(ctx, message, fmt.Sprintf("CTX-%d: no turns found.", cmd.ContextID))
		return nil
	}
	d.reply(ctx, message, RenderTurns(cmd.ContextID, turns))
	return nil
}

// handleFork forks the store first and only then creates the topic, so
// a store failure never leaves a dangling topic. The reverse case
// (branch created, topic post failed) surfaces as an error naming the
// new context so the operator can create the topic by hand; there is
// no compensating cleanup.
func (d *Dispatcher) handleFork(ctx context.Context, message zulip.Message, cmd ForkCommand) error {
	d.react(ctx, message, "fork_and_knife")

	fork, err := d.store.Fork(ctx, cmd.TurnID)
	if err != nil {
		return err
	}

	newTopic := fmt.Sprintf("[CTX-%d] %s", fork.ContextID, cmd.Description)
	body := fmt.Sprintf(
		"**Forked** from CTX-%d at turn %d\n\n"+
			"Parent: #**%s>[CTX-%d]**\n"+
			"Branch head: CTX-%d (depth %d)\n\n"+
			"Use `show CTX-%d` to see shared history.\n"+
			"Append turns with `record CTX-%d <role> <content>`.",
		cmd.ContextID, cmd.TurnID,
		d.channel, cmd.ContextID,
		fork.ContextID, fork.HeadDepth,
		fork.ContextID, fork.ContextID,
	)
	if _, err := d.chat.SendMessage(ctx, d.channel, newTopic, body); err != nil {
		return fmt.Errorf("branch CTX-%d exists but topic creation failed: %w", fork.ContextID, err)
	}

	d.reply(ctx, message, fmt.Sprintf(
		":fork_and_knife: **Forked** at turn %d → CTX-%d\nNew topic: #**%s>%s**",
		cmd.TurnID, fork.ContextID, d.channel, newTopic,
	))
	return nil
}

func (d *Dispatcher) handleCompare(ctx context.Context, message zulip.Message, cmd CompareCommand) error {
	d.react(ctx, message, "eyes")
	comparison, err := CompareBranches(ctx, d.store, cmd.ContextIDs, compareFetchLimit)
	if err != nil {
		return err
	}
	d.reply(ctx, message, comparison.Render())
	return nil
}

func (d *Dispatcher) handleScore(ctx context.Context, message zulip.Message, cmd ScoreCommand) error {
	d.react(ctx, message, "star")
	if err := d.store.ScoreBranch(ctx, cmd.ContextID, cmd.Reward, cmd.Reason); err != nil {
		return err
	}

	glyph := "thumbs_down"
	switch {
	case cmd.Reward >= 0.8:
		glyph = "star"
	case cmd.Reward >= 0.5:
		glyph = "thumbs_up"
	}
	reply := fmt.Sprintf(":%s: CTX-%d scored **%s**", glyph, cmd.ContextID, formatReward(cmd.Reward))
	if cmd.Reason != "" {
		reply += ": " + cmd.Reason
	}
	d.reply(ctx, message, reply)
	return nil
}

func (d *Dispatcher) handleRecord(ctx context.Context, message zulip.Message, cmd RecordCommand) error {
	d.react(ctx, message, "pencil")
	ref, err := d.store.AppendTurn(ctx, cmd.ContextID, cmd.Role, cmd.Content)
	if err != nil {
		return err
	}
	d.reply(ctx, message, fmt.Sprintf(
		":pencil: Turn %d appended to CTX-%d (depth %d)", ref.TurnID, cmd.ContextID, ref.Depth))
	return nil
}

func (d *Dispatcher) handleSearch(ctx context.Context, message zulip.Message, cmd SearchCommand) error {
	d.react(ctx, message, "eyes")
	matches, err := searchTurns(ctx, d.store, cmd.Query, d.logger)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		d.reply(ctx, message, fmt.Sprintf("No results for %q", cmd.Query))
		return nil
	}
	d.reply(ctx, message, renderSearchResults(cmd.Query, matches))
	return nil
}

// reply sends to the originating channel and topic. Send failures are
// logged, not propagated; there is nowhere further to report them.
func (d *Dispatcher) reply(ctx context.Context, message zulip.Message, content string) {
	stream := message.Stream.String()
	if stream == "" {
		stream = d.channel
	}
	topic := message.Topic
	if topic == "" {
		topic = "general"
	}
	if _, err := d.chat.SendMessage(ctx, stream, topic, content); err != nil {
		d.logger.Error("reply failed",
			"stream", stream,
			"topic", topic,
			"error", err,
		)
	}
}

// react acknowledges receipt before slow work. Reaction failures are
// cosmetic and ignored beyond a debug entry.
func (d *Dispatcher) react(ctx context.Context, message zulip.Message, emojiName string) {
	if err := d.chat.AddReaction(ctx, message.ID, emojiName); err != nil {
		d.logger.Debug("reaction failed",
			"message_id", message.ID,
			"emoji", emojiName,
			"error", err,
		)
	}
}

// isMentioned reports whether the message @-mentions the bot.
func (d *Dispatcher) isMentioned(content string) bool {
	if d.mentionName != "" && strings.Contains(content, "@**"+d.mentionName+"**") {
		return true
	}
	return strings.Contains(content, "@**"+d.selfPrefix+"**")
}

// stripMentions removes @**name** mention spans and the whitespace
// following them.
func stripMentions(content string) string {
	var builder strings.Builder
	for {
		start := strings.Index(content, "@**")
		if start < 0 {
			builder.WriteString(content)
			return builder.String()
		}
		closing := strings.Index(content[start+3:], "**")
		if closing < 0 {
			builder.WriteString(content)
			return builder.String()
		}
		builder.WriteString(content[:start])
		content = strings.TrimLeft(content[start+3+closing+2:], " \t")
	}
}
