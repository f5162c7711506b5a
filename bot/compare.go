// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Anansitrading/cxdb/cxdb"
)

const (
	// compareFetchLimit is the page size fetched per branch.
	compareFetchLimit = 20
	// comparePreviewTurns is how many recent conversational turns each
	// branch shows in its preview block.
	comparePreviewTurns = 5
	// comparePreviewChars is the content budget per preview line.
	// Preview lines clip with no ellipsis marker.
	comparePreviewChars = 120
)

// TurnSource is the slice of the store the comparator needs.
type TurnSource interface {
	GetLast(ctx context.Context, contextID int64, limit int) ([]cxdb.Turn, error)
}

// BranchReport is one branch's contribution to a comparison.
type BranchReport struct {
	ContextID   int64
	TurnCount   int
	Preview     []string
	UniqueCount int
}

// Comparison is the structural diff across compared branches: shared
// turns (by identity) versus per-branch unique turns. It is derived
// transiently from fetched pages and not persisted.
type Comparison struct {
	Branches    []BranchReport
	SharedCount int
}

// CompareBranches fetches the most recent turns of each branch and
// computes the set-difference structure over turn IDs. Branches are
// fetched sequentially in input order, and the report preserves that
// order (duplicates included). A branch with zero fetched turns
// contributes an empty set, emptying the intersection: an empty
// branch shares nothing.
//
// Unlike search, a per-branch fetch failure fails the whole comparison:
// the user named every branch explicitly, so a partial diff would be
// misleading.
func CompareBranches(ctx context.Context, source TurnSource, contextIDs []int64, limit int) (*Comparison, error) {
	if limit <= 0 {
		limit = compareFetchLimit
	}

	pages := make([][]cxdb.Turn, len(contextIDs))
	for i, contextID := range contextIDs {
		turns, err := source.GetLast(ctx, contextID, limit)
		if err != nil {
			return nil, fmt.Errorf("comparing CTX-%d: %w", contextID, err)
		}
		pages[i] = turns
	}

	// Turn-ID sets come from the full fetched pages, not the
	// conversational filter below: shared ancestry includes tool calls
	// and markers.
	sets := make([]map[int64]struct{}, len(pages))
	for i, turns := range pages {
		set := make(map[int64]struct{}, len(turns))
		for _, turn := range turns {
			set[turn.TurnID] = struct{}{}
		}
		sets[i] = set
	}

	shared := intersect(sets)

	comparison := &Comparison{SharedCount: len(shared)}
	for i, turns := range pages {
		unique := 0
		for turnID := range sets[i] {
			if _, ok := shared[turnID]; !ok {
				unique++
			}
		}
		comparison.Branches = append(comparison.Branches, BranchReport{
			ContextID:   contextIDs[i],
			TurnCount:   len(turns),
			Preview:     previewLines(turns),
			UniqueCount: unique,
		})
	}
	return comparison, nil
}

// Render formats the comparison as a reply: per-branch preview blocks
// followed by the shared/unique summary line.
func (c *Comparison) Render() string {
	lines := []string{fmt.Sprintf("**Branch Comparison** (%d branches)\n", len(c.Branches))}
	for _, branch := range c.Branches {
		lines = append(lines, fmt.Sprintf("### CTX-%d (%d turns)", branch.ContextID, branch.TurnCount))
		lines = append(lines, branch.Preview...)
		lines = append(lines, "")
	}

	summary := make([]string, 0, len(c.Branches)+1)
	summary = append(summary, fmt.Sprintf("**Shared turns**: %d", c.SharedCount))
	for _, branch := range c.Branches {
		summary = append(summary, fmt.Sprintf("CTX-%d unique: %d", branch.ContextID, branch.UniqueCount))
	}
	lines = append(lines, strings.Join(summary, " | "))

	return strings.Join(lines, "\n")
}

// previewLines renders the last few conversational turns of a page.
func previewLines(turns []cxdb.Turn) []string {
	var conversational []cxdb.Turn
	for _, turn := range turns {
		if turn.TypeID == cxdb.TypeConversation && turn.Data != nil {
			conversational = append(conversational, turn)
		}
	}
	if len(conversational) > comparePreviewTurns {
		conversational = conversational[len(conversational)-comparePreviewTurns:]
	}

	lines := make([]string, 0, len(conversational))
	for _, turn := range conversational {
		conversation := turn.Data.Conversation()
		line := fmt.Sprintf("- **[%s]** %s",
			placeholder(conversation.Role), clip(conversation.Content, comparePreviewChars))
		if conversation.Reward != nil {
			line += fmt.Sprintf(" | **reward: %s**", formatReward(*conversation.Reward))
		}
		lines = append(lines, line)
	}
	return lines
}

// intersect computes the intersection of turn-ID sets. With no sets the
// result is empty.
func intersect(sets []map[int64]struct{}) map[int64]struct{} {
	if len(sets) == 0 {
		return map[int64]struct{}{}
	}
	shared := make(map[int64]struct{})
	for turnID := range sets[0] {
		inAll := true
		for _, set := range sets[1:] {
			if _, ok := set[turnID]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			shared[turnID] = struct{}{}
		}
	}
	return shared
}
