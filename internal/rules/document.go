package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corehub/sdk/internal/rules/token"
	"github.com/corehub/sdk/internal/types"
)

// Document is the wire shape of one downloaded/cached rule set (spec §6).
type Document struct {
	Version int    `json:"version"`
	Rules   []Rule `json:"rules"`
}

// Rule pairs one condition tree with the consequences applied when it
// matches.
type Rule struct {
	Condition    Node          `json:"condition"`
	Consequences []Consequence `json:"consequences"`
}

// Node is a condition tree node: either a "group" (logic + nested
// conditions) or a "matcher" (a single key/matcher/values test). Definition
// is kept raw and decoded lazily by type, since the two shapes share no
// fields.
type Node struct {
	Type       string          `json:"type"`
	Definition json.RawMessage `json:"definition"`
}

// GroupDefinition is a Node's Definition when Type == "group".
type GroupDefinition struct {
	Logic      string `json:"logic"`
	Conditions []Node `json:"conditions"`
}

// MatcherDefinition is a Node's Definition when Type == "matcher".
type MatcherDefinition struct {
	Key     string        `json:"key"`
	Matcher string        `json:"matcher"`
	Values  []interface{} `json:"values"`
}

// Consequence describes one action to take when a rule's condition
// matches: merge data into the triggering event, or emit a new event.
// Detail is kept raw — its shape varies by Type (an "add"/"mod"
// consequence carries an "eventdata" map; other consequence types carry
// whatever payload that type defines) — and is token-rendered as a whole
// before Type is interpreted.
type Consequence struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Detail json.RawMessage `json:"detail"`
}

// Parse decodes a rule document, failing with types.ErrParseError on any
// malformed JSON.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrParseError, err)
	}
	return &doc, nil
}

// evaluate walks the condition tree against finder, applying the matching
// rules spelled out in spec §4.4: case-insensitive string comparison,
// numeric coercion of parseable strings, and the nx/ex/ne absence rules.
func evaluate(n Node, finder *token.Finder) bool {
	switch n.Type {
	case "group":
		var def GroupDefinition
		if err := json.Unmarshal(n.Definition, &def); err != nil {
			return false
		}
		if strings.EqualFold(def.Logic, "or") {
			for _, c := range def.Conditions {
				if evaluate(c, finder) {
					return true
				}
			}
			return false
		}
		for _, c := range def.Conditions {
			if !evaluate(c, finder) {
				return false
			}
		}
		return true
	case "matcher":
		var def MatcherDefinition
		if err := json.Unmarshal(n.Definition, &def); err != nil {
			return false
		}
		return evaluateMatcher(def, finder)
	default:
		return false
	}
}

func evaluateMatcher(def MatcherDefinition, finder *token.Finder) bool {
	val, found := finder.Resolve(def.Key)
	matcher := strings.ToLower(def.Matcher)

	switch matcher {
	case "nx":
		return !found
	case "ex":
		return found
	}
	if !found {
		return matcher == "ne"
	}

	switch matcher {
	case "eq":
		return matchesAny(val, def.Values)
	case "ne":
		return !matchesAny(val, def.Values)
	case "co":
		return anyString(def.Values, func(s string) bool { return strings.Contains(strings.ToLower(val.String()), strings.ToLower(s)) })
	case "nc":
		return !anyString(def.Values, func(s string) bool { return strings.Contains(strings.ToLower(val.String()), strings.ToLower(s)) })
	case "sw":
		return anyString(def.Values, func(s string) bool { return strings.HasPrefix(strings.ToLower(val.String()), strings.ToLower(s)) })
	case "ew":
		return anyString(def.Values, func(s string) bool { return strings.HasSuffix(strings.ToLower(val.String()), strings.ToLower(s)) })
	case "gt", "ge", "lt", "le":
		return numericCompare(matcher, val, def.Values)
	default:
		return false
	}
}

func matchesAny(val types.Value, values []interface{}) bool {
	s := strings.ToLower(val.String())
	for _, v := range values {
		if strings.ToLower(fmt.Sprint(v)) == s {
			return true
		}
	}
	return false
}

func anyString(values []interface{}, pred func(string) bool) bool {
	for _, v := range values {
		if pred(fmt.Sprint(v)) {
			return true
		}
	}
	return false
}

func numericCompare(matcher string, val types.Value, values []interface{}) bool {
	lhs, ok := asFloat(val)
	if !ok {
		return false
	}
	for _, raw := range values {
		rhs, ok := asFloatAny(raw)
		if !ok {
			continue
		}
		var hit bool
		switch matcher {
		case "gt":
			hit = lhs > rhs
		case "ge":
			hit = lhs >= rhs
		case "lt":
			hit = lhs < rhs
		case "le":
			hit = lhs <= rhs
		}
		if hit {
			return true
		}
	}
	return false
}

func asFloat(v types.Value) (float64, bool) {
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	if s, ok := v.AsString(); ok {
		return parseFloat(s)
	}
	return 0, false
}

func asFloatAny(a interface{}) (float64, bool) {
	switch x := a.(type) {
	case float64:
		return x, true
	case string:
		return parseFloat(x)
	default:
		return 0, false
	}
}

func parseFloat(s string) (float64, bool) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0, false
	}
	return f, true
}
