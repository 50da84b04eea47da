// Package promptrules implements the prompt detector (spec.md section
// 4.4): an ordered rule set matched against the last N rows of a screen
// snapshot, with hot reload of the backing rule file grounded on the
// teacher's cmd/vision3 ConfigWatcher (fsnotify with a debounce timer,
// atomic swap of the active rule set).
package promptrules

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// InputKind selects the response style the IO Orchestrator uses once a
// rule has matched.
type InputKind string

const (
	InputSingleKey InputKind = "single_key"
	InputMultiKey  InputKind = "multi_key"
	InputAnyKey    InputKind = "any_key"
	InputNone      InputKind = "none"
)

// Kind categorizes what a matched prompt represents.
type Kind string

const (
	KindLoginName Kind = "login_name"
	KindLoginPass Kind = "login_pass"
	KindGamePass  Kind = "game_pass"
	KindPause     Kind = "pause"
	KindConfirm   Kind = "confirm"
	KindMenu      Kind = "menu"
	KindInput     Kind = "input"
	KindUnknown   Kind = "unknown"
)

// Rule is one entry of a PromptRule list (spec.md section 3). Rules are
// evaluated in declared order; the first surviving match wins.
type Rule struct {
	ID                string          `json:"id"`
	Regex             string          `json:"regex"`
	InputKind         InputKind       `json:"input_kind"`
	ExpectCursorAtEnd bool            `json:"expect_cursor_at_end,omitempty"`
	NegativeRegex     string          `json:"negative_regex,omitempty"`
	Kind              Kind            `json:"kind"`
	LLMHints          json.RawMessage `json:"llm_hints,omitempty"`

	compiled         *regexp.Regexp
	compiledNegative *regexp.Regexp
}

// compile pre-parses the rule's regular expressions so matching never
// returns a compile error at decision time.
func (r *Rule) compile() error {
	re, err := regexp.Compile(r.Regex)
	if err != nil {
		return fmt.Errorf("rule %q: invalid regex %q: %w", r.ID, r.Regex, err)
	}
	r.compiled = re
	if r.NegativeRegex != "" {
		neg, err := regexp.Compile(r.NegativeRegex)
		if err != nil {
			return fmt.Errorf("rule %q: invalid negative_regex %q: %w", r.ID, r.NegativeRegex, err)
		}
		r.compiledNegative = neg
	}
	return nil
}

// Detection is the outcome of a successful detector evaluation (spec.md
// section 3: "produced only when is_idle, or when the idle budget is 80%
// consumed").
type Detection struct {
	PromptID    string
	InputKind   InputKind
	Kind        Kind
	MatchedText string
	MatchedRow  int
}

// Set is an ordered, compiled list of Rules, safe to swap atomically for
// hot reload.
type Set struct {
	rules []Rule
}

// Load parses a JSON array of Rules from r and compiles every regex.
func Load(r io.Reader) (*Set, error) {
	var rules []Rule
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("decode prompt rules: %w", err)
	}
	for i := range rules {
		if err := rules[i].compile(); err != nil {
			return nil, err
		}
	}
	return &Set{rules: rules}, nil
}

// Detect evaluates the rule set against lastNRows (top-to-bottom, already
// trailing-space-stripped) and cursorAtEnd, the flags of the most recent
// snapshot. Only the last row of the window is eligible to satisfy a
// pause/pagination match; for such a rule (see rowDisqualifies) a match
// starting on a row above the last is rejected (spec.md section 4.4).
// All other rules may match on any row of the window.
func (s *Set) Detect(lastNRows []string, cursorAtEnd bool) (Detection, bool) {
	joined := strings.Join(lastNRows, "\n")
	for _, rule := range s.rules {
		loc := rule.compiled.FindStringIndex(joined)
		if loc == nil {
			continue
		}
		if rule.compiledNegative != nil && rule.compiledNegative.MatchString(joined) {
			continue
		}
		if rule.ExpectCursorAtEnd && !cursorAtEnd {
			continue
		}
		row := rowOf(joined, loc[0])
		if !matchOnFinalRow(joined, loc) && rowDisqualifies(rule) {
			continue
		}
		return Detection{
			PromptID:    rule.ID,
			InputKind:   rule.InputKind,
			Kind:        rule.Kind,
			MatchedText: joined[loc[0]:loc[1]],
			MatchedRow:  row,
		}, true
	}
	return Detection{}, false
}

// rowDisqualifies reports whether rule requires its match to land on the
// window's final row — true for pagination-style prompts, which must
// never fire against stale text reproduced earlier in ANSI art.
func rowDisqualifies(rule Rule) bool {
	return rule.InputKind == InputAnyKey || rule.Kind == KindPause ||
		strings.HasSuffix(rule.ID, ".pause") || strings.HasSuffix(rule.ID, ".more")
}

func matchOnFinalRow(joined string, loc []int) bool {
	lastNewline := strings.LastIndexByte(joined, '\n')
	return loc[0] > lastNewline
}

func rowOf(joined string, offset int) int {
	return strings.Count(joined[:offset], "\n")
}

// Rules returns a defensive copy of the active rule list, for inspection
// (e.g. by the LLM Adapter reading llm_hints).
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}
