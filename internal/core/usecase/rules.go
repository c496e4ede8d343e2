package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

type RuleAdminUseCase struct {
	rules ports.RuleAdmin
	audit ports.AuditSink
}

func NewRuleAdminUseCase(rules ports.RuleAdmin, audit ports.AuditSink) *RuleAdminUseCase {
	return &RuleAdminUseCase{rules: rules, audit: auditOrDiscard(audit)}
}

func (uc *RuleAdminUseCase) Rules() []domain.CNAERule {
	return uc.rules.Rules()
}

// Reload re-reads the rule table. On failure the previous rules stay active.
func (uc *RuleAdminUseCase) Reload(ctx context.Context) (int, error) {
	n, err := uc.rules.Reload(ctx)
	if err != nil {
		return 0, fmt.Errorf("reload cnae rules: %w", err)
	}
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditCNAERulesReloaded, "", "", attrs("count", n)))
	return n, nil
}
