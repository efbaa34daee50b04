package queue

import (
	"encoding/json"
	"strings"
	"testing"
)

type runPayload struct {
	Force  bool   `json:"force"`
	Symbol string `json:"symbol"`
}

func TestParsePayloadPointer(t *testing.T) {
	in := &runPayload{Force: true, Symbol: "SPY"}
	out, err := ParsePayload[runPayload](in)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if out != in {
		t.Error("expected the same pointer back")
	}
}

func TestParsePayloadValue(t *testing.T) {
	out, err := ParsePayload[runPayload](runPayload{Symbol: "QQQ"})
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if out.Symbol != "QQQ" || out.Force {
		t.Errorf("got %+v", out)
	}
}

func TestParsePayloadMap(t *testing.T) {
	out, err := ParsePayload[runPayload](map[string]interface{}{
		"force":  true,
		"symbol": "SPY",
	})
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if !out.Force || out.Symbol != "SPY" {
		t.Errorf("got %+v", out)
	}
}

func TestParsePayloadRawMessage(t *testing.T) {
	out, err := ParsePayload[runPayload](json.RawMessage(`{"force":false,"symbol":"^VIX"}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if out.Force || out.Symbol != "^VIX" {
		t.Errorf("got %+v", out)
	}
}

func TestParsePayloadErrors(t *testing.T) {
	if _, err := ParsePayload[runPayload](42); err == nil || !strings.Contains(err.Error(), "invalid payload type") {
		t.Errorf("int payload: err = %v", err)
	}
	if _, err := ParsePayload[runPayload](map[string]interface{}{"force": "yes"}); err == nil {
		t.Error("expected unmarshal error for mistyped field")
	}
}
