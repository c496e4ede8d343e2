// Package cnae owns the CNAE rule table and answers whether a service
// description plausibly matches its activity code.
package cnae

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

const (
	reasonMissingInput  = "CNAE ou descrição ausente"
	reasonNoRules       = "Sem arquivo de regras configurado"
	reasonMatchedRule   = "Descrição compatível com regra"
	reasonMatchedRegex  = "Descrição compatível com regex"
	reasonNoRuleFired   = "Nenhuma regra do CNAE bateu com a descrição"
	reasonNoRuleForCNAE = "Sem regra cadastrada para este CNAE"
	severityAlert       = "warning"
)

type compiledRule struct {
	rule    domain.CNAERule
	folded  string
	pattern *regexp.Regexp
}

func (c compiledRule) matches(description, foldedDescription string) bool {
	if c.pattern != nil {
		return c.pattern.MatchString(description)
	}
	return strings.Contains(foldedDescription, c.folded)
}

// Repository caches the rule table. Readers share an immutable slice; Reload
// swaps it under the write lock.
type Repository struct {
	source ports.RuleSource
	logger *slog.Logger

	mu    sync.RWMutex
	rules []compiledRule
}

func NewRepository(source ports.RuleSource, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{source: source, logger: logger}
}

// Reload reads the source again. On failure the previous table stays in place.
func (r *Repository) Reload(ctx context.Context) (int, error) {
	raw, err := r.source.Load(ctx)
	if err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "load cnae rules", err)
	}
	compiled := r.compile(raw)

	r.mu.Lock()
	r.rules = compiled
	r.mu.Unlock()

	r.logger.Info("cnae_rules_loaded", "rules", len(compiled), "skipped", len(raw)-len(compiled))
	return len(compiled), nil
}

// Rules returns the active table in evaluation order.
func (r *Repository) Rules() []domain.CNAERule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.CNAERule, len(r.rules))
	for i, c := range r.rules {
		out[i] = c.rule
	}
	return out
}

func (r *Repository) snapshot() []compiledRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules
}

// compile applies defaults, drops rules without a pattern or with an invalid
// regex and orders the rest exact, prefix, global keeping file order within a scope.
func (r *Repository) compile(raw []domain.CNAERule) []compiledRule {
	out := make([]compiledRule, 0, len(raw))
	for _, rule := range raw {
		rule = withDefaults(rule)
		if rule.Pattern == "" {
			continue
		}
		c := compiledRule{rule: rule}
		switch rule.MatchType {
		case domain.MatchRegex:
			re, err := regexp.Compile("(?i)" + rule.Pattern)
			if err != nil {
				r.logger.Warn("cnae_rule_invalid_regex", "cnae", rule.CNAE, "pattern", rule.Pattern, "error", err)
				continue
			}
			c.pattern = re
		default:
			c.folded = convert.FoldUpper(rule.Pattern)
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].rule.Kind() < out[j].rule.Kind()
	})
	return out
}

func withDefaults(rule domain.CNAERule) domain.CNAERule {
	rule.CNAE = strings.TrimSpace(rule.CNAE)
	if rule.CNAE == "" {
		rule.CNAE = domain.ScopeWildcard
	}
	if rule.CNAE != domain.ScopeWildcard {
		prefix := strings.HasSuffix(rule.CNAE, domain.ScopeWildcard)
		rule.CNAE = convert.DigitsOnly(rule.CNAE)
		if prefix {
			rule.CNAE += domain.ScopeWildcard
		}
	}
	rule.MatchType = domain.MatchType(strings.ToLower(strings.TrimSpace(string(rule.MatchType))))
	if rule.MatchType == "" {
		rule.MatchType = domain.MatchContains
	}
	rule.Pattern = strings.TrimSpace(rule.Pattern)
	rule.Label = strings.TrimSpace(rule.Label)
	if rule.Label == "" {
		rule.Label = domain.DefaultLabel
	}
	rule.Severity = strings.ToLower(strings.TrimSpace(rule.Severity))
	if rule.Severity == "" {
		rule.Severity = domain.DefaultSeverity
	}
	return rule
}

// Validate checks description against the rules that apply to cnae, most
// specific scope first.
func (r *Repository) Validate(cnae, description string) domain.CNAEResult {
	code := convert.DigitsOnly(cnae)
	description = strings.TrimSpace(description)
	if code == "" || description == "" {
		return domain.CNAEResult{Status: domain.CNAEStatusUnknown, Reason: reasonMissingInput}
	}

	rules := r.snapshot()
	if len(rules) == 0 {
		return domain.CNAEResult{Status: domain.CNAEStatusUnknown, Reason: reasonNoRules}
	}

	folded := convert.FoldUpper(description)
	specific := false
	for _, c := range rules {
		if !c.rule.Applies(code) {
			continue
		}
		if c.rule.Kind() != domain.ScopeGlobal {
			specific = true
		}
		if !c.matches(description, folded) {
			continue
		}
		reason := reasonMatchedRule
		if c.rule.MatchType == domain.MatchRegex {
			reason = reasonMatchedRegex
		}
		return domain.CNAEResult{
			Status:      domain.CNAEStatusOK,
			RuleLabel:   c.rule.Label,
			Severity:    c.rule.Severity,
			RulePattern: c.rule.Pattern,
			RuleCNAE:    c.rule.CNAE,
			Reason:      reason,
		}
	}

	if specific {
		return domain.CNAEResult{
			Status:   domain.CNAEStatusAlert,
			Severity: severityAlert,
			RuleCNAE: code,
			Reason:   reasonNoRuleFired,
		}
	}
	return domain.CNAEResult{Status: domain.CNAEStatusUnknown, RuleCNAE: code, Reason: reasonNoRuleForCNAE}
}
