package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/strategy"
)

// rawAction mirrors the JSON shape an oracle is asked to reply with.
type rawAction struct {
	Action       string `json:"action"`
	TargetSector int    `json:"target_sector"`
	Commodity    string `json:"commodity"`
	Side         string `json:"side"`
	Qty          int    `json:"qty"`
	BankAmount   int    `json:"bank_amount"`
	BankOp       string `json:"bank_op"`
}

// invalidActionError signals a parser failure (bad JSON shape, unknown
// verb, or a target outside the bot's current knowledge) as distinct
// from an execution failure — spec.md section 4.9.
func invalidActionError(reason string) error {
	return fmt.Errorf("llm: invalid action: %s", reason)
}

// ParseAction parses an oracle Response into an Action, JSON-first with
// a regex fallback for free-text replies, then validates the result
// against knownSectors (the adjacent/radius set the caller allows a
// warp target to be drawn from).
func ParseAction(resp Response, knownSectors map[int]bool) (strategy.Action, error) {
	action, err := parseJSON(resp.Text)
	if err != nil {
		action, err = parseFreeText(resp.Text)
		if err != nil {
			return strategy.Action{}, err
		}
	}
	if err := validate(action, knownSectors); err != nil {
		return strategy.Action{}, err
	}
	return action, nil
}

func parseJSON(text string) (strategy.Action, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return strategy.Action{}, invalidActionError("no JSON object found")
	}
	var raw rawAction
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return strategy.Action{}, invalidActionError("malformed JSON: " + err.Error())
	}
	return fromRaw(raw)
}

func fromRaw(raw rawAction) (strategy.Action, error) {
	switch strategy.ActionKind(raw.Action) {
	case strategy.ActionWarp:
		return strategy.Action{Kind: strategy.ActionWarp, TargetSector: raw.TargetSector}, nil
	case strategy.ActionTrade:
		return strategy.Action{
			Kind:      strategy.ActionTrade,
			Commodity: knowledge.Commodity(strings.ToLower(raw.Commodity)),
			Side:      strategy.TradeSide(raw.Side),
			Qty:       raw.Qty,
		}, nil
	case strategy.ActionScan:
		return strategy.Action{Kind: strategy.ActionScan}, nil
	case strategy.ActionWait:
		return strategy.Action{Kind: strategy.ActionWait}, nil
	case strategy.ActionBank:
		return strategy.Action{Kind: strategy.ActionBank, BankAmount: raw.BankAmount, BankOp: strategy.BankOp(raw.BankOp)}, nil
	case strategy.ActionQuit:
		return strategy.Action{Kind: strategy.ActionQuit}, nil
	default:
		return strategy.Action{}, invalidActionError("unknown action kind: " + raw.Action)
	}
}

var (
	freeTextWarpRe = regexp.MustCompile(`(?i)warp\D*(\d+)`)
	freeTextBuyRe  = regexp.MustCompile(`(?i)buy\s+(\d+)\s+(\w+)`)
	freeTextSellRe = regexp.MustCompile(`(?i)sell\s+(\d+)\s+(\w+)`)
	freeTextScanRe = regexp.MustCompile(`(?i)\bscan\b`)
	freeTextWaitRe = regexp.MustCompile(`(?i)\bwait\b`)
	freeTextQuitRe = regexp.MustCompile(`(?i)\bquit\b`)
)

// parseFreeText is the fallback path for an oracle that ignored the
// JSON instruction and replied in prose.
func parseFreeText(text string) (strategy.Action, error) {
	if m := freeTextWarpRe.FindStringSubmatch(text); m != nil {
		target, _ := strconv.Atoi(m[1])
		return strategy.Action{Kind: strategy.ActionWarp, TargetSector: target}, nil
	}
	if m := freeTextBuyRe.FindStringSubmatch(text); m != nil {
		qty, _ := strconv.Atoi(m[1])
		return strategy.Action{Kind: strategy.ActionTrade, Side: strategy.TradeBuy, Qty: qty, Commodity: knowledge.Commodity(strings.ToLower(m[2]))}, nil
	}
	if m := freeTextSellRe.FindStringSubmatch(text); m != nil {
		qty, _ := strconv.Atoi(m[1])
		return strategy.Action{Kind: strategy.ActionTrade, Side: strategy.TradeSell, Qty: qty, Commodity: knowledge.Commodity(strings.ToLower(m[2]))}, nil
	}
	if freeTextScanRe.MatchString(text) {
		return strategy.Action{Kind: strategy.ActionScan}, nil
	}
	if freeTextWaitRe.MatchString(text) {
		return strategy.Action{Kind: strategy.ActionWait}, nil
	}
	if freeTextQuitRe.MatchString(text) {
		return strategy.Action{Kind: strategy.ActionQuit}, nil
	}
	return strategy.Action{}, invalidActionError("no recognizable action in free text")
}

func validate(action strategy.Action, knownSectors map[int]bool) error {
	if action.Kind == strategy.ActionWarp {
		if knownSectors != nil && !knownSectors[action.TargetSector] {
			return invalidActionError(fmt.Sprintf("target sector %d is not adjacent or within radius", action.TargetSector))
		}
	}
	return nil
}
