// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Anansitrading/cxdb/cxdb"
)

// showContentLimit is the character budget for conversational content
// in `show` output; longer content is cut and marked with an ellipsis.
const showContentLimit = 200

// RenderTurns renders the `show` reply for a context: a header line
// followed by one line per turn, most recent last.
func RenderTurns(contextID int64, turns []cxdb.Turn) string {
	lines := make([]string, 0, len(turns)+1)
	lines = append(lines, fmt.Sprintf("**CTX-%d** (%d turns)\n", contextID, len(turns)))
	for _, turn := range turns {
		lines = append(lines, RenderTurn(turn))
	}
	return strings.Join(lines, "\n")
}

// RenderTurn renders one turn as a display line, dispatching on the
// decoded payload variant. Absent fields render as placeholders; the
// renderer never fails.
func RenderTurn(turn cxdb.Turn) string {
	if turn.Data == nil {
		return fmt.Sprintf("- Turn %d (depth %d): `%s` [no payload]", turn.TurnID, turn.Depth, turn.TypeID)
	}

	switch turn.Data.Kind() {
	case cxdb.KindSessionMeta:
		meta, _ := turn.Data.SessionMeta()
		location := ""
		if meta.Stream != "" {
			location = fmt.Sprintf(" in #%s > %s", meta.Stream, meta.Topic)
		}
		return fmt.Sprintf("- **Session** `%s` by `%s` (trigger: %s%s)",
			placeholder(meta.Label), placeholder(meta.Agent), placeholder(meta.Trigger), location)

	case cxdb.KindToolCall:
		call, _ := turn.Data.ToolCall()
		icon := "white_check_mark"
		if call.Status != "ok" {
			icon = "x"
		}
		return fmt.Sprintf("- :%s: **%s** (%dms) @ turn %d",
			icon, placeholder(call.Tool), call.DurationMS, turn.TurnID)

	default:
		// Conversational turns, and any type the client does not model.
		conversation := turn.Data.Conversation()
		reward := ""
		if conversation.Reward != nil {
			reward = fmt.Sprintf(" | **reward: %s**", formatReward(*conversation.Reward))
		}
		return fmt.Sprintf("- **[%s]** (turn %d, depth %d%s): %s",
			placeholder(conversation.Role), turn.TurnID, turn.Depth, reward,
			truncate(conversation.Content, showContentLimit))
	}
}

// renderSessionTable renders the `sessions` listing. Turn count and
// head depth are distinct columns: the gateway currently reports only
// head_depth, so callers pass it for both, but a store that
// distinguishes them needs no renderer change.
func renderSessionTable(contexts []cxdb.Context) string {
	lines := []string{
		"**Recent Contexts**\n",
		"| Context | Depth | Turns | Tag | Live |",
		"|---------|-------|-------|-----|------|",
	}
	for _, context := range contexts {
		lines = append(lines, renderSessionRow(
			context.ContextID, context.HeadDepth, context.HeadDepth, context.ClientTag, context.IsLive))
	}
	return strings.Join(lines, "\n")
}

func renderSessionRow(contextID, headDepth, turnCount int64, tag string, live bool) string {
	if tag == "" {
		tag = "-"
	}
	liveMark := ""
	if live {
		liveMark = "yes"
	}
	return fmt.Sprintf("| CTX-%d | %d | %d | %s | %s |", contextID, headDepth, turnCount, tag, liveMark)
}

// truncate cuts text to at most max characters, appending an ellipsis
// marker when anything was cut.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

// clip cuts text to at most max characters with no marker.
func clip(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// placeholder substitutes "?" for absent string fields.
func placeholder(value string) string {
	if value == "" {
		return "?"
	}
	return value
}

// formatReward renders a reward with the shortest exact decimal form
// (0.85 stays "0.85", 1 stays "1").
func formatReward(reward float64) string {
	return strconv.FormatFloat(reward, 'g', -1, 64)
}
