package llm

import (
	"testing"

	"github.com/tw2kbot/tw2kbot/internal/strategy"
)

func TestParseActionJSONWarp(t *testing.T) {
	resp := Response{Text: `{"action":"warp","target_sector":5}`}
	action, err := ParseAction(resp, map[int]bool{5: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != strategy.ActionWarp || action.TargetSector != 5 {
		t.Fatalf("action = %+v, want warp to 5", action)
	}
}

func TestParseActionJSONEmbeddedInProse(t *testing.T) {
	resp := Response{Text: "I think we should go here: {\"action\":\"scan\"} to be safe."}
	action, err := ParseAction(resp, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != strategy.ActionScan {
		t.Fatalf("action = %+v, want scan", action)
	}
}

func TestParseActionRejectsUnknownTargetSector(t *testing.T) {
	resp := Response{Text: `{"action":"warp","target_sector":99}`}
	_, err := ParseAction(resp, map[int]bool{5: true})
	if err == nil {
		t.Fatalf("expected an error for a target sector outside known sectors")
	}
}

func TestParseActionFreeTextFallback(t *testing.T) {
	resp := Response{Text: "I recommend you warp to sector 12 immediately."}
	action, err := ParseAction(resp, map[int]bool{12: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != strategy.ActionWarp || action.TargetSector != 12 {
		t.Fatalf("action = %+v, want warp to 12", action)
	}
}

func TestParseActionFreeTextTrade(t *testing.T) {
	resp := Response{Text: "buy 20 fuel now"}
	action, err := ParseAction(resp, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != strategy.ActionTrade || action.Side != strategy.TradeBuy || action.Qty != 20 {
		t.Fatalf("action = %+v, want buy 20", action)
	}
}

func TestParseActionFailsOnGibberish(t *testing.T) {
	resp := Response{Text: "the weather is nice today"}
	_, err := ParseAction(resp, nil)
	if err == nil {
		t.Fatalf("expected a parser failure for unrecognizable text")
	}
}

func TestParseActionFailsOnMalformedJSON(t *testing.T) {
	resp := Response{Text: `{"action": "warp", "target_sector": }`}
	_, err := ParseAction(resp, nil)
	if err == nil {
		t.Fatalf("expected a parser failure for malformed JSON")
	}
}
