// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package cxdb

import (
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"
)

// Payload type IDs the client knows how to interpret. Any other type
// decodes to the Unknown variant, which still exposes raw field access.
const (
	TypeSessionMeta  = "com.oracle.agent.SessionMeta"
	TypeToolCall     = "com.oracle.agent.ToolCall"
	TypeConversation = "com.oracle.conversation.Turn"
)

// Kind classifies a decoded payload by its type ID.
type Kind int

const (
	// KindUnknown is any type ID the client does not model. The raw
	// field map is still accessible through the generic accessors.
	KindUnknown Kind = iota
	// KindSessionMeta marks the start of a recorded agent session.
	KindSessionMeta
	// KindToolCall records one tool invocation and its outcome.
	KindToolCall
	// KindConversation is a conversational turn (role + content).
	KindConversation
)

// Payload is a decoded turn payload: a mapping from small integer field
// keys to values. Payload schemas are positional and
// forward-compatible, so absent or mistyped fields report absence
// rather than failing.
type Payload struct {
	typeID string
	fields map[int64]any
}

// DecodePayload decodes raw msgpack payload bytes for the given type ID.
// Map keys are normalized to int64: integer keys directly, and decimal
// string keys (written by SDKs that tag fields with string names) by
// parsing. Non-numeric keys are dropped.
func DecodePayload(typeID string, raw []byte) (*Payload, error) {
	var decoded map[any]any
	if err := msgpack.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("cxdb: decoding %s payload: %w", typeID, err)
	}

	fields := make(map[int64]any, len(decoded))
	for key, value := range decoded {
		if normalized, ok := normalizeKey(key); ok {
			fields[normalized] = value
		}
	}
	return &Payload{typeID: typeID, fields: fields}, nil
}

// TypeID returns the dotted type name of the payload schema.
func (p *Payload) TypeID() string {
	return p.typeID
}

// Kind returns the payload variant for rendering dispatch.
func (p *Payload) Kind() Kind {
	switch p.typeID {
	case TypeSessionMeta:
		return KindSessionMeta
	case TypeToolCall:
		return KindToolCall
	case TypeConversation:
		return KindConversation
	default:
		return KindUnknown
	}
}

// Field returns the raw value stored at the given field key.
func (p *Payload) Field(key int64) (any, bool) {
	value, ok := p.fields[key]
	return value, ok
}

// String returns the string value at key. Reports false when the field
// is absent or not a string.
func (p *Payload) String(key int64) (string, bool) {
	value, ok := p.fields[key]
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}

// Int returns the integer value at key, accepting any integer width the
// msgpack decoder may produce.
func (p *Payload) Int(key int64) (int64, bool) {
	value, ok := p.fields[key]
	if !ok {
		return 0, false
	}
	return normalizeKey(value)
}

// Float returns the floating-point value at key. Integer values are
// widened, since msgpack encodes whole floats as integers.
func (p *Payload) Float(key int64) (float64, bool) {
	value, ok := p.fields[key]
	if !ok {
		return 0, false
	}
	switch number := value.(type) {
	case float64:
		return number, true
	case float32:
		return float64(number), true
	default:
		if whole, ok := normalizeKey(value); ok {
			return float64(whole), true
		}
		return 0, false
	}
}

// Map returns the nested string-keyed mapping at key (e.g., the
// conversational metadata field). Integer-keyed nested maps are
// converted with decimal string keys.
func (p *Payload) Map(key int64) (map[string]any, bool) {
	value, ok := p.fields[key]
	if !ok {
		return nil, false
	}
	switch nested := value.(type) {
	case map[string]any:
		return nested, true
	case map[any]any:
		converted := make(map[string]any, len(nested))
		for nestedKey, nestedValue := range nested {
			converted[fmt.Sprint(nestedKey)] = nestedValue
		}
		return converted, true
	default:
		return nil, false
	}
}

// SessionMeta is the decoded view of a session-metadata payload.
// Absent fields are zero values; the caller chooses placeholders.
type SessionMeta struct {
	Label   string
	Agent   string
	Trigger string
	Stream  string
	Topic   string
}

// SessionMeta extracts the session-metadata view. Reports false when
// the payload is not a session-metadata payload.
func (p *Payload) SessionMeta() (SessionMeta, bool) {
	if p.Kind() != KindSessionMeta {
		return SessionMeta{}, false
	}
	var meta SessionMeta
	meta.Label, _ = p.String(1)
	meta.Agent, _ = p.String(2)
	meta.Trigger, _ = p.String(4)
	meta.Stream, _ = p.String(5)
	meta.Topic, _ = p.String(6)
	return meta, true
}

// ToolCall is the decoded view of a tool-call payload.
type ToolCall struct {
	Tool       string
	DurationMS int64
	Status     string
}

// ToolCall extracts the tool-call view. Reports false when the payload
// is not a tool-call payload. A missing status defaults to "ok", the
// store's convention for successful calls recorded before the status
// field existed.
func (p *Payload) ToolCall() (ToolCall, bool) {
	if p.Kind() != KindToolCall {
		return ToolCall{}, false
	}
	var call ToolCall
	call.Tool, _ = p.String(1)
	call.DurationMS, _ = p.Int(5)
	status, ok := p.String(6)
	if !ok {
		status = "ok"
	}
	call.Status = status
	return call, true
}

// ConversationTurn is the decoded view of a conversational payload.
// Reward is nil when the metadata map carries no reward annotation.
type ConversationTurn struct {
	Role    string
	Content string
	Reward  *float64
}

// Conversation extracts the conversational view. Unlike the other
// variant accessors this also applies to Unknown payloads: the default
// rendering path treats unmodeled types as conversational, reading the
// conventional role and content fields.
func (p *Payload) Conversation() ConversationTurn {
	var turn ConversationTurn
	turn.Role, _ = p.String(1)
	turn.Content, _ = p.String(2)
	if meta, ok := p.Map(4); ok {
		if reward, ok := rewardValue(meta["reward"]); ok {
			turn.Reward = &reward
		}
	}
	return turn
}

// Content returns the primary content field (key 2) as a string, the
// field searched by the search engine. Non-string values stringify,
// matching the store SDK's loose handling of legacy payloads.
func (p *Payload) Content() string {
	value, ok := p.fields[2]
	if !ok {
		return ""
	}
	if text, ok := value.(string); ok {
		return text
	}
	return fmt.Sprint(value)
}

// VerifyPayloadHash checks the turn's BLAKE3 content hash against its
// raw payload bytes. Turns without a payload or without a hash pass
// trivially; older gateways omit the hash field.
func VerifyPayloadHash(turn *Turn) error {
	if len(turn.RawPayload) == 0 || len(turn.PayloadHash) == 0 {
		return nil
	}
	if len(turn.PayloadHash) != 32 {
		return fmt.Errorf("cxdb: turn %d payload hash is %d bytes, want 32", turn.TurnID, len(turn.PayloadHash))
	}
	digest := blake3.Sum256(turn.RawPayload)
	for i, expected := range turn.PayloadHash {
		if digest[i] != expected {
			return fmt.Errorf("cxdb: turn %d payload hash mismatch", turn.TurnID)
		}
	}
	return nil
}

// normalizeKey converts any integer representation the msgpack decoder
// produces (or a decimal string) to int64.
func normalizeKey(key any) (int64, bool) {
	switch k := key.(type) {
	case int64:
		return k, true
	case int:
		return int64(k), true
	case int8:
		return int64(k), true
	case int16:
		return int64(k), true
	case int32:
		return int64(k), true
	case uint:
		return int64(k), true
	case uint8:
		return int64(k), true
	case uint16:
		return int64(k), true
	case uint32:
		return int64(k), true
	case uint64:
		return int64(k), true
	case string:
		parsed, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// rewardValue extracts a numeric reward from a metadata value. Zero
// rewards count as absent, matching the store's convention that an
// unscored branch and a zero-scored branch render the same.
func rewardValue(value any) (float64, bool) {
	switch reward := value.(type) {
	case float64:
		if reward == 0 {
			return 0, false
		}
		return reward, true
	case float32:
		if reward == 0 {
			return 0, false
		}
		return float64(reward), true
	case nil:
		return 0, false
	default:
		if whole, ok := normalizeKey(value); ok && whole != 0 {
			return float64(whole), true
		}
		return 0, false
	}
}
