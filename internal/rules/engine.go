// Package rules provides the CEL based custom indicator engine.
//
// Each rule is a boolean CEL expression over the receipt. A rule that
// evaluates to true emits one FraudIndicator with the rule's configured type,
// severity, and confidence.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// Engine is the CEL-based rule evaluation engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a new rule evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("vendor", cel.StringType),
		cel.Variable("total", cel.DoubleType),
		cel.Variable("items_total", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("age_days", cel.IntType),
		cel.Variable("has_description", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return domain.NewValidationError("rule", "rule config is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules. Disabled rules are skipped.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// activation builds the CEL variables for a receipt.
func activation(receipt domain.ReceiptData, now time.Time) map[string]any {
	today := domain.NewDate(now)
	ageDays := int64(today.Sub(receipt.Date.Time).Hours() / 24)

	return map[string]any{
		"vendor":          receipt.Vendor,
		"total":           receipt.Total,
		"items_total":     receipt.ItemsTotal(),
		"item_count":      int64(len(receipt.Items)),
		"age_days":        ageDays,
		"has_description": receipt.Description != "",
	}
}

// Evaluate runs every loaded rule against the receipt in parallel and returns
// the indicators of the rules that matched, ordered by rule ID. A rule that
// fails to evaluate is logged and skipped.
func (e *Engine) Evaluate(ctx context.Context, receipt domain.ReceiptData, now time.Time) []domain.FraudIndicator {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Config.ID < rules[j].Config.ID })

	vars := activation(receipt, now)

	// Parallel evaluation using worker pool pattern
	matched := make([]*domain.FraudIndicator, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			matched[idx] = e.evaluateRule(r, vars, now)
		}(i, rule)
	}

	wg.Wait()

	var indicators []domain.FraudIndicator
	for _, ind := range matched {
		if ind != nil {
			indicators = append(indicators, *ind)
		}
	}
	return indicators
}

// evaluateRule evaluates a single rule and returns its indicator when it fires.
func (e *Engine) evaluateRule(rule *CompiledRule, vars map[string]any, now time.Time) *domain.FraudIndicator {
	out, _, err := rule.Program.Eval(vars)
	if err != nil {
		slog.Warn("rule evaluation failed", "rule_id", rule.Config.ID, "error", err)
		return nil
	}

	fired, ok := out.(types.Bool)
	if !ok || !bool(fired) {
		return nil
	}

	return &domain.FraudIndicator{
		Type:        rule.Config.IndicatorType,
		Severity:    rule.Config.Severity,
		Description: describe(rule.Config),
		Confidence:  rule.Config.Confidence,
		DetectedAt:  now,
	}
}

func describe(cfg *domain.RuleConfig) string {
	switch {
	case cfg.Description != "":
		return cfg.Description
	case cfg.Name != "":
		return cfg.Name
	default:
		return fmt.Sprintf("custom rule %s matched", cfg.ID)
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, domain.NewValidationError("expression",
			fmt.Sprintf("failed to compile rule %s: %v", cfg.ID, issues.Err()))
	}

	if ast.OutputType() != cel.BoolType {
		return nil, domain.NewValidationError("expression",
			fmt.Sprintf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType()))
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
