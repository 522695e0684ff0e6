// Package alert derives low-stock, expiry and quality alerts from lot
// state after each mutation.
//
// Rules are CEL expressions evaluated against a snapshot of the lot, so
// operators can add custom rules without code changes. The built-in
// low-stock and expiry rules ship as compiled defaults. Raising is
// idempotent: an unacknowledged alert of a given type is never duplicated,
// and the evaluator never auto-resolves anything. Acknowledgement is the
// only way out of the open state.
package alert

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"lotledger/internal/core/id"
	"lotledger/internal/domain/lot"
)

// Config holds evaluator thresholds.
type Config struct {
	// ExpiryLeadTime is how far ahead of the expiry date the expiry
	// alert fires.
	ExpiryLeadTime time.Duration
}

// DefaultConfig returns standard thresholds.
func DefaultConfig() Config {
	return Config{ExpiryLeadTime: 7 * 24 * time.Hour}
}

// Rule is one alert rule: when Expression evaluates to true against a
// lot and no open alert of Type exists, an alert is raised.
type Rule struct {
	Type       lot.AlertType
	Expression string
	Message    string
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:       lot.AlertLowStock,
			Expression: "reorder_level > 0.0 && current_quantity <= reorder_level",
			Message:    "quantity at or below reorder level",
		},
		{
			Type:       lot.AlertExpiry,
			Expression: "has_expiry && days_until_expiry <= expiry_lead_days",
			Message:    "lot approaching expiry date",
		},
		{
			Type:       lot.AlertQualityHold,
			Expression: "quality_status == 'quarantine'",
			Message:    "lot held in quality quarantine",
		},
	}
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// Evaluator evaluates alert rules against lot state.
type Evaluator struct {
	cfg   Config
	rules []compiledRule
}

// NewEvaluator compiles the rule set. Invalid expressions fail fast.
func NewEvaluator(cfg Config, rules []Rule) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("current_quantity", cel.DoubleType),
		cel.Variable("available_quantity", cel.DoubleType),
		cel.Variable("reserved_quantity", cel.DoubleType),
		cel.Variable("reorder_level", cel.DoubleType),
		cel.Variable("has_expiry", cel.BoolType),
		cel.Variable("days_until_expiry", cel.IntType),
		cel.Variable("expiry_lead_days", cel.IntType),
		cel.Variable("quality_status", cel.StringType),
		cel.Variable("status", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		ast, iss := env.Compile(r.Expression)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Type, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", r.Type, err)
		}
		compiled = append(compiled, compiledRule{rule: r, program: prg})
	}

	return &Evaluator{cfg: cfg, rules: compiled}, nil
}

// NewDefaultEvaluator compiles the built-in rules.
func NewDefaultEvaluator(cfg Config) (*Evaluator, error) {
	return NewEvaluator(cfg, DefaultRules())
}

// Evaluate runs all rules against l at the given time and appends newly
// raised alerts to the lot. Returns the alerts raised by this call.
func (e *Evaluator) Evaluate(l *lot.Lot, now time.Time) ([]lot.Alert, error) {
	activation := e.activation(l, now)

	var raised []lot.Alert
	for _, cr := range e.rules {
		if l.OpenAlert(cr.rule.Type) != nil {
			continue
		}

		out, _, err := cr.program.Eval(activation)
		if err != nil {
			return nil, fmt.Errorf("evaluate rule %q: %w", cr.rule.Type, err)
		}
		matched, ok := out.Value().(bool)
		if !ok || !matched {
			continue
		}

		a := newAlert(l, cr.rule, now)
		l.Alerts = append(l.Alerts, a)
		raised = append(raised, a)
	}

	return raised, nil
}

func (e *Evaluator) activation(l *lot.Lot, now time.Time) map[string]any {
	hasExpiry := l.ExpiryDate != nil
	daysUntilExpiry := int64(0)
	if hasExpiry {
		daysUntilExpiry = int64(l.ExpiryDate.Sub(now).Hours() / 24)
	}

	return map[string]any{
		"current_quantity":   l.CurrentQuantity.Float64(),
		"available_quantity": l.AvailableQuantity().Float64(),
		"reserved_quantity":  l.ReservedQuantity.Float64(),
		"reorder_level":      l.ReorderLevel.Float64(),
		"has_expiry":         hasExpiry,
		"days_until_expiry":  daysUntilExpiry,
		"expiry_lead_days":   int64(e.cfg.ExpiryLeadTime.Hours() / 24),
		"quality_status":     string(l.QualityStatus),
		"status":             string(l.Status),
	}
}

func newAlert(l *lot.Lot, r Rule, now time.Time) lot.Alert {
	msg := fmt.Sprintf("%s: %s (on hand %s, available %s)",
		l.Number, r.Message, l.CurrentQuantity, l.AvailableQuantity())

	return lot.Alert{
		ID:      id.New(),
		LotID:   l.ID,
		Type:    r.Type,
		Message: msg,
		Date:    now,
	}
}
