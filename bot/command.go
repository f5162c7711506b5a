// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Command is a parsed chat command. The concrete types below are the
// only implementations; the dispatcher switches over them exhaustively.
type Command interface {
	isCommand()
}

// SessionsCommand lists recent contexts.
type SessionsCommand struct{}

// ShowCommand shows recent turns from one context.
type ShowCommand struct {
	ContextID int64
}

// ForkCommand forks a context at a specific turn and opens a new topic.
type ForkCommand struct {
	ContextID   int64
	TurnID      int64
	Description string
}

// CompareCommand compares two or more branches side by side.
// ContextIDs preserves order of first appearance; duplicates are kept.
type CompareCommand struct {
	ContextIDs []int64
}

// ScoreCommand attaches a reward signal to a branch.
type ScoreCommand struct {
	ContextID int64
	Reward    float64
	Reason    string
}

// RecordCommand appends a conversational turn to a context.
type RecordCommand struct {
	ContextID int64
	Role      string
	Content   string
}

// SearchCommand searches across all contexts for matching content.
type SearchCommand struct {
	Query string
}

// HelpCommand shows the command reference. Unrecognized input parses
// to this as well.
type HelpCommand struct{}

func (SessionsCommand) isCommand() {}
func (ShowCommand) isCommand()     {}
func (ForkCommand) isCommand()     {}
func (CompareCommand) isCommand()  {}
func (ScoreCommand) isCommand()    {}
func (RecordCommand) isCommand()   {}
func (SearchCommand) isCommand()   {}
func (HelpCommand) isCommand()     {}

// UsageError reports malformed or incomplete command arguments. It is
// a local error: no store call has been made, and the hint goes back
// to the user verbatim.
type UsageError struct {
	Hint string
}

func (e *UsageError) Error() string {
	return e.Hint
}

func usage(hint string) *UsageError {
	return &UsageError{Hint: hint}
}

// ParseCommand classifies free-form message text (already stripped of
// any bot mention) into a typed command. Classification is by
// case-insensitive prefix; argument extraction is command-specific.
// Malformed input never fails hard; it yields either a command or a
// *UsageError carrying the hint to send back.
func ParseCommand(text string) (Command, *UsageError) {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "sessions"), strings.HasPrefix(lower, "list"):
		return SessionsCommand{}, nil
	case strings.HasPrefix(lower, "show"):
		return parseShow(text)
	case strings.HasPrefix(lower, "fork"):
		return parseFork(text)
	case strings.HasPrefix(lower, "compare"):
		return parseCompare(text)
	case strings.HasPrefix(lower, "score"):
		return parseScore(text)
	case strings.HasPrefix(lower, "search"):
		return parseSearch(text)
	case strings.HasPrefix(lower, "record"):
		return parseRecord(text)
	default:
		// "help" and anything unrecognized both render the reference.
		return HelpCommand{}, nil
	}
}

func parseShow(text string) (Command, *UsageError) {
	refs := scanContextRefs(text)
	if len(refs) == 0 {
		return nil, usage("Usage: `show CTX-<id>`")
	}
	return ShowCommand{ContextID: refs[0].id}, nil
}

func parseFork(text string) (Command, *UsageError) {
	contextID, turnID, end, ok := scanForkRef(text)
	if !ok {
		return nil, usage("Usage: `fork CTX-<id>:<turn_id> \"description\"`\nExample: `fork CTX-1:17 \"Try TDD approach\"`")
	}
	description := stripQuotes(strings.TrimSpace(text[end:]))
	if description == "" {
		description = fmt.Sprintf("Fork from CTX-%d turn %d", contextID, turnID)
	}
	return ForkCommand{ContextID: contextID, TurnID: turnID, Description: description}, nil
}

func parseCompare(text string) (Command, *UsageError) {
	refs := scanContextRefs(text)
	if len(refs) < 2 {
		return nil, usage("Usage: `compare CTX-<id> CTX-<id> [CTX-<id> ...]`")
	}
	ids := make([]int64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.id
	}
	return CompareCommand{ContextIDs: ids}, nil
}

func parseScore(text string) (Command, *UsageError) {
	refs := scanContextRefs(text)
	if len(refs) == 0 {
		return nil, usage("Usage: `score CTX-<id> <reward> \"reason\"`\nExample: `score CTX-7 0.85 \"Clean fix, tests pass\"`")
	}
	ref := refs[0]

	// The reward is the first token after the context reference that
	// parses as a float. A purely numeric unquoted reason is therefore
	// indistinguishable from a reward token; quoting the reason
	// disambiguates.
	rest := text[ref.end:]
	for {
		token, remainder := nextToken(rest)
		if token == "" {
			return nil, usage("Missing reward value (0.0-1.0)")
		}
		reward, err := strconv.ParseFloat(token, 64)
		if err == nil {
			reason := stripQuotes(strings.TrimSpace(remainder))
			return ScoreCommand{ContextID: ref.id, Reward: reward, Reason: reason}, nil
		}
		rest = remainder
	}
}

func parseSearch(text string) (Command, *UsageError) {
	query := stripQuotes(strings.TrimSpace(text[len("search"):]))
	if query == "" {
		return nil, usage("Usage: `search <query>`")
	}
	return SearchCommand{Query: query}, nil
}

func parseRecord(text string) (Command, *UsageError) {
	refs := scanContextRefs(text)
	if len(refs) == 0 {
		return nil, usage("Usage: `record CTX-<id> <role> <content>`\nExample: `record CTX-7 assistant \"Here is the fix...\"`")
	}
	ref := refs[0]

	role, remainder := nextToken(text[ref.end:])
	content := stripQuotes(strings.TrimSpace(remainder))
	if role == "" || content == "" {
		return nil, usage("Usage: `record CTX-<id> <role> <content>`")
	}
	return RecordCommand{ContextID: ref.id, Role: role, Content: content}, nil
}

// contextRef is one CTX-<digits> occurrence in the message text.
type contextRef struct {
	id  int64
	end int // byte offset just past the last digit
}

// scanContextRefs finds every CTX-<digits> reference in order of
// appearance. Duplicates are preserved; references embedded in larger
// tokens (including quoted text) count, matching the literal textual
// pattern of the protocol.
func scanContextRefs(text string) []contextRef {
	var refs []contextRef
	offset := 0
	for {
		index := strings.Index(text[offset:], "CTX-")
		if index < 0 {
			return refs
		}
		start := offset + index + len("CTX-")
		end := start
		for end < len(text) && isDigit(text[end]) {
			end++
		}
		if end > start {
			id, err := strconv.ParseInt(text[start:end], 10, 64)
			if err == nil {
				refs = append(refs, contextRef{id: id, end: end})
			}
		}
		offset = end
		if offset >= len(text) {
			return refs
		}
	}
}

// scanForkRef finds the first CTX-<digits>:<digits> pair. Returns the
// context ID, turn ID, and the byte offset just past the pair.
func scanForkRef(text string) (contextID, turnID int64, end int, ok bool) {
	offset := 0
	for {
		index := strings.Index(text[offset:], "CTX-")
		if index < 0 {
			return 0, 0, 0, false
		}
		start := offset + index + len("CTX-")
		digitsEnd := start
		for digitsEnd < len(text) && isDigit(text[digitsEnd]) {
			digitsEnd++
		}
		if digitsEnd == start || digitsEnd >= len(text) || text[digitsEnd] != ':' {
			offset = start
			continue
		}
		turnStart := digitsEnd + 1
		turnEnd := turnStart
		for turnEnd < len(text) && isDigit(text[turnEnd]) {
			turnEnd++
		}
		if turnEnd == turnStart {
			offset = start
			continue
		}
		parsedContext, contextErr := strconv.ParseInt(text[start:digitsEnd], 10, 64)
		parsedTurn, turnErr := strconv.ParseInt(text[turnStart:turnEnd], 10, 64)
		if contextErr != nil || turnErr != nil {
			offset = start
			continue
		}
		return parsedContext, parsedTurn, turnEnd, true
	}
}

// nextToken splits off the first whitespace-delimited token. Both
// return values are trimmed of leading whitespace.
func nextToken(text string) (token, rest string) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	cut := strings.IndexFunc(text, unicode.IsSpace)
	if cut < 0 {
		return text, ""
	}
	return text[:cut], strings.TrimLeftFunc(text[cut:], unicode.IsSpace)
}

// stripQuotes removes any surrounding single or double quote
// characters from both ends.
func stripQuotes(text string) string {
	return strings.Trim(text, `"'`)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
