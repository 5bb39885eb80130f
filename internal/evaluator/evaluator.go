// Package evaluator classifies ping bodies. A job may carry fail rules —
// JSONPath predicates over the JSON body a ping submits — and a matching
// rule turns that ping into an explicit failure signal instead of proof of
// liveness.
package evaluator

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dandantas/vigil/internal/model"
	"github.com/oliveagle/jsonpath"
)

// RuleMatch is the result of evaluating one fail rule against a ping body.
type RuleMatch struct {
	RuleName       string      `json:"rule_name"`
	Expression     string      `json:"expression"`
	Operator       string      `json:"operator"`
	ExpectedValue  interface{} `json:"expected_value,omitempty"`
	ExtractedValue interface{} `json:"extracted_value,omitempty"`
	Matched        bool        `json:"matched"`
	Error          string      `json:"error,omitempty"`
}

// Evaluator evaluates fail rules against ping bodies.
type Evaluator struct{}

// New creates an evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Classify evaluates all rules against a ping body and reports whether any
// of them matched. An empty body or no rules means no fail signal. A rule
// that errors (bad JSON, expression matching nothing) never matches — a
// malformed body must not flip a live job to missing.
func (e *Evaluator) Classify(rules []model.FailRule, body []byte) (bool, []RuleMatch) {
	if len(rules) == 0 || len(body) == 0 {
		return false, nil
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		slog.Debug("Ping body is not JSON, skipping fail rules", "error", err.Error())
		return false, nil
	}

	matches := make([]RuleMatch, 0, len(rules))
	failed := false

	for _, rule := range rules {
		m := e.evaluate(rule, doc)
		matches = append(matches, m)
		if m.Matched {
			failed = true
		}
	}

	return failed, matches
}

func (e *Evaluator) evaluate(rule model.FailRule, doc interface{}) RuleMatch {
	m := RuleMatch{
		RuleName:      rule.Name,
		Expression:    rule.Expression,
		Operator:      rule.Operator,
		ExpectedValue: rule.ExpectedValue,
	}

	pattern, err := jsonpath.Compile(rule.Expression)
	if err != nil {
		m.Error = fmt.Sprintf("invalid JSONPath expression %q: %v", rule.Expression, err)
		return m
	}

	extracted, err := pattern.Lookup(doc)
	if err != nil {
		// The path not resolving is the common case for healthy pings;
		// only the "exists" operator cares either way.
		if rule.Operator == "exists" {
			m.Matched = false
			return m
		}
		m.Error = fmt.Sprintf("expression %q returned no result: %v", rule.Expression, err)
		return m
	}

	m.ExtractedValue = extracted

	matched, err := compare(rule.Operator, extracted, rule.ExpectedValue)
	if err != nil {
		m.Error = err.Error()
		slog.Debug("Fail rule comparison failed",
			"rule", rule.Name,
			"operator", rule.Operator,
			"error", err.Error(),
		)
		return m
	}

	m.Matched = matched
	return m
}
