// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// searchContextLimit caps how many contexts one search scans.
	searchContextLimit = 50
	// searchTurnLimit caps the turns fetched per context.
	searchTurnLimit = 50
	// searchSnippetChars is the snippet budget, taken from the start
	// of the matched turn's content.
	searchSnippetChars = 150
	// searchDisplayCap caps the matches shown; the remainder collapses
	// to a "+N more" suffix.
	searchDisplayCap = 15
)

// SearchMatch is one hit from a cross-context search.
type SearchMatch struct {
	ContextID int64
	TurnID    int64
	Depth     int64
	Role      string
	Snippet   string
}

// searchTurns scans recent turns of every listed context for a
// case-insensitive substring match on the primary content field.
// Search is best-effort, not transactional: a context whose turns
// cannot be fetched is skipped and the scan continues, so partial
// results are possible and acceptable. Results preserve discovery
// order: context listing order, then turn order.
func searchTurns(ctx context.Context, source Store, query string, logger *slog.Logger) ([]SearchMatch, error) {
	contexts, err := source.ListContexts(ctx, searchContextLimit)
	if err != nil {
		return nil, fmt.Errorf("listing contexts for search: %w", err)
	}

	needle := strings.ToLower(query)
	var matches []SearchMatch
	for _, candidate := range contexts {
		turns, err := source.GetLast(ctx, candidate.ContextID, searchTurnLimit)
		if err != nil {
			logger.Debug("skipping context in search",
				"context_id", candidate.ContextID,
				"error", err,
			)
			continue
		}
		for _, turn := range turns {
			if turn.Data == nil {
				continue
			}
			content := turn.Data.Content()
			if !strings.Contains(strings.ToLower(content), needle) {
				continue
			}
			role, _ := turn.Data.String(1)
			matches = append(matches, SearchMatch{
				ContextID: candidate.ContextID,
				TurnID:    turn.TurnID,
				Depth:     turn.Depth,
				Role:      placeholder(role),
				Snippet:   clip(content, searchSnippetChars),
			})
		}
	}
	return matches, nil
}

// renderSearchResults formats a non-empty match list, capped at
// searchDisplayCap with a "+N more" suffix.
func renderSearchResults(query string, matches []SearchMatch) string {
	lines := []string{fmt.Sprintf("**Search results for %q** (%d matches)\n", query, len(matches))}
	shown := matches
	if len(shown) > searchDisplayCap {
		shown = shown[:searchDisplayCap]
	}
	for _, match := range shown {
		lines = append(lines, fmt.Sprintf("- CTX-%d turn %d [%s]: %s",
			match.ContextID, match.TurnID, match.Role, match.Snippet))
	}
	if len(matches) > searchDisplayCap {
		lines = append(lines, fmt.Sprintf("\n*...and %d more*", len(matches)-searchDisplayCap))
	}
	return strings.Join(lines, "\n")
}
