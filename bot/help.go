// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package bot

// helpText is the static command reference, sent for `help` and for
// any unrecognized input.
const helpText = "**cxdb Bot** - Conversation Branching\n" +
	"\n" +
	"| Command | Description |\n" +
	"|---------|-------------|\n" +
	"| `sessions` | List recent contexts |\n" +
	"| `show CTX-<id>` | Show turns from a context |\n" +
	"| `fork CTX-<id>:<turn> \"desc\"` | Fork at a turn → new topic |\n" +
	"| `compare CTX-1 CTX-2 CTX-3` | Side-by-side branch comparison |\n" +
	"| `score CTX-<id> 0.85 \"reason\"` | Attach reward signal |\n" +
	"| `record CTX-<id> <role> <text>` | Append a turn |\n" +
	"| `search <query>` | Search across all contexts |\n" +
	"\n" +
	"**Linking**: Any `CTX-N` in messages/topics names a cxdb context.\n" +
	"**Topics**: Each context maps to a `[CTX-N] description` topic.\n" +
	"**Forks**: `fork` creates both a cxdb branch and a new topic with a back-link."
