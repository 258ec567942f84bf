package usage

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncPayload is what the usage agent posts on every sync.
type SyncPayload struct {
	Projects []ProjectPayload `json:"projects" binding:"required,dive"`
}

type ProjectPayload struct {
	Name     string           `json:"name" binding:"required"`
	Path     string           `json:"path"`
	Sessions []SessionPayload `json:"sessions" binding:"dive"`
}

type SessionPayload struct {
	SessionID string            `json:"session_id" binding:"required"`
	Messages  []json.RawMessage `json:"messages"`
}

// Record is one JSONL line of the agent's session log.
type Record struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
	Message   *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage *struct {
			InputTokens              int64 `json:"input_tokens"`
			OutputTokens             int64 `json:"output_tokens"`
			CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// Entry is a decoded billable record.
type Entry struct {
	Message
	RequestID string
	MessageID string
}

// ParseRecord decodes raw into an Entry. ok is false for records that carry
// no usage (user turns, summaries, tool results).
func ParseRecord(raw json.RawMessage) (Entry, bool, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Entry{}, false, fmt.Errorf("decode usage record: %w", err)
	}
	if rec.Type != "assistant" || rec.Message == nil || rec.Message.Usage == nil {
		return Entry{}, false, nil
	}

	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return Entry{}, false, err
	}

	u := rec.Message.Usage
	return Entry{
		Message: Message{
			Timestamp:           ts,
			Model:               rec.Message.Model,
			InputTokens:         u.InputTokens,
			OutputTokens:        u.OutputTokens,
			CacheCreationTokens: u.CacheCreationInputTokens,
			CacheReadTokens:     u.CacheReadInputTokens,
		},
		RequestID: rec.RequestID,
		MessageID: rec.Message.ID,
	}, true, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("usage record without timestamp")
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse usage timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}
