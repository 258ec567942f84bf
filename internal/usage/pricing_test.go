package usage

import (
	"encoding/json"
	"testing"
)

func TestCostKnownModels(t *testing.T) {
	m := Message{
		Model:               "claude-3-5-sonnet-20241022",
		InputTokens:         1000,
		OutputTokens:        1000,
		CacheCreationTokens: 1000,
		CacheReadTokens:     1000,
	}
	if got := DefaultPricing.Cost(m); got != 0.02625 {
		t.Fatalf("3.5 sonnet cost = %f; want 0.02625", got)
	}

	m.Model = DefaultModel
	if got := DefaultPricing.Cost(m); got != 0.13125 {
		t.Fatalf("sonnet 4 cost = %f; want 0.13125", got)
	}
}

func TestCostUnknownModelFallsBack(t *testing.T) {
	m := Message{Model: "some-future-model", InputTokens: 2000}
	if got := DefaultPricing.Cost(m); got != 0.03 {
		t.Fatalf("fallback cost = %f; want 0.03", got)
	}
}

func TestParseRecord(t *testing.T) {
	raw := json.RawMessage(`{"type":"assistant","sessionId":"s1","timestamp":"2026-03-01T10:15:30.123Z","requestId":"req_1",
		"message":{"id":"msg_1","model":"claude-sonnet-4-20250514","usage":{"input_tokens":12,"output_tokens":34,"cache_creation_input_tokens":5,"cache_read_input_tokens":6}}}`)

	e, ok, err := ParseRecord(raw)
	if err != nil || !ok {
		t.Fatalf("parse: ok=%v err=%v", ok, err)
	}
	if e.MessageID != "msg_1" || e.RequestID != "req_1" || e.TotalTokens() != 57 {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Timestamp.Minute() != 15 || e.Timestamp.Location().String() != "UTC" {
		t.Fatalf("unexpected timestamp: %s", e.Timestamp)
	}
}

func TestParseRecordSkipsNonAssistant(t *testing.T) {
	_, ok, err := ParseRecord(json.RawMessage(`{"type":"user","timestamp":"2026-03-01T10:00:00Z","message":{"role":"user"}}`))
	if err != nil || ok {
		t.Fatalf("user record: ok=%v err=%v", ok, err)
	}
}

func TestParseRecordBadTimestamp(t *testing.T) {
	_, _, err := ParseRecord(json.RawMessage(`{"type":"assistant","timestamp":"yesterday","message":{"usage":{}}}`))
	if err == nil {
		t.Fatalf("expected timestamp error")
	}
}
