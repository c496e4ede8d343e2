package cnae

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

type ruleSourceFake struct {
	rules []domain.CNAERule
	err   error
	calls int
}

func (f *ruleSourceFake) Load(context.Context) ([]domain.CNAERule, error) {
	f.calls++
	return f.rules, f.err
}

func newLoadedRepository(t *testing.T, rules ...domain.CNAERule) *Repository {
	t.Helper()
	repo := NewRepository(&ruleSourceFake{rules: rules}, nil)
	if _, err := repo.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	return repo
}

func TestValidateMissingInputAndNoRules(t *testing.T) {
	repo := NewRepository(&ruleSourceFake{}, nil)
	if got := repo.Validate("", "consulta"); got.Status != domain.CNAEStatusUnknown || got.Reason != reasonMissingInput {
		t.Fatalf("expected unknown for missing cnae, got %+v", got)
	}
	if got := repo.Validate("8630503", "consulta"); got.Reason != reasonNoRules {
		t.Fatalf("expected no-rules reason, got %+v", got)
	}
}

func TestValidateExactRuleBeatsWildcard(t *testing.T) {
	repo := newLoadedRepository(t,
		domain.CNAERule{CNAE: "*", Pattern: "CONSULTA", Label: "Global"},
		domain.CNAERule{CNAE: "8630503", Pattern: "consulta", Label: "Exata"},
	)
	got := repo.Validate("8630-5/03", "Consulta médica")
	if got.Status != domain.CNAEStatusOK || got.RuleLabel != "Exata" {
		t.Fatalf("expected exact rule to win, got %+v", got)
	}
	if got.Reason != reasonMatchedRule || got.Severity != domain.DefaultSeverity {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestValidatePrefixBeforeGlobal(t *testing.T) {
	repo := newLoadedRepository(t,
		domain.CNAERule{CNAE: "*", Pattern: "SERVICO", Label: "Global"},
		domain.CNAERule{CNAE: "86*", MatchType: "REGEX", Pattern: `servi[cç]o\s+m[eé]dico`, Label: "Saude"},
	)
	got := repo.Validate("8630503", "Serviço médico ambulatorial")
	if got.RuleLabel != "Saude" || got.Reason != reasonMatchedRegex || got.RuleCNAE != "86*" {
		t.Fatalf("expected prefix regex rule, got %+v", got)
	}
}

func TestValidateAlertVersusUnknown(t *testing.T) {
	repo := newLoadedRepository(t,
		domain.CNAERule{CNAE: "8630503", Pattern: "CONSULTA"},
		domain.CNAERule{CNAE: "*", Pattern: "PLANTAO"},
	)

	alert := repo.Validate("8630503", "Locacao de veiculos")
	if alert.Status != domain.CNAEStatusAlert || alert.Severity != severityAlert || alert.RuleCNAE != "8630503" {
		t.Fatalf("expected alert, got %+v", alert)
	}

	unknown := repo.Validate("4930202", "Locacao de veiculos")
	if unknown.Status != domain.CNAEStatusUnknown || unknown.Reason != reasonNoRuleForCNAE {
		t.Fatalf("expected unknown, got %+v", unknown)
	}

	global := repo.Validate("4930202", "Plantão noturno")
	if global.Status != domain.CNAEStatusOK {
		t.Fatalf("expected accent-folded global match, got %+v", global)
	}
}

func TestReloadSkipsBlankPatternsAndInvalidRegex(t *testing.T) {
	repo := NewRepository(&ruleSourceFake{rules: []domain.CNAERule{
		{CNAE: "8630503", Pattern: "  "},
		{CNAE: "8630503", MatchType: domain.MatchRegex, Pattern: "("},
		{CNAE: "8630503", Pattern: "consulta"},
	}}, nil)
	n, err := repo.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if n != 1 || len(repo.Rules()) != 1 {
		t.Fatalf("expected 1 usable rule, got %d", n)
	}
}

func TestReloadFailureKeepsPreviousRules(t *testing.T) {
	source := &ruleSourceFake{rules: []domain.CNAERule{{CNAE: "*", Pattern: "X"}}}
	repo := NewRepository(source, nil)
	if _, err := repo.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	source.err = errors.New("disk gone")
	if _, err := repo.Reload(context.Background()); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if len(repo.Rules()) != 1 {
		t.Fatalf("expected previous rules to survive a failed reload")
	}
}

func TestValidateConcurrentWithReload(t *testing.T) {
	repo := newLoadedRepository(t, domain.CNAERule{CNAE: "*", Pattern: "CONSULTA"})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = repo.Validate("8630503", "consulta")
		}()
		go func() {
			defer wg.Done()
			_, _ = repo.Reload(context.Background())
		}()
	}
	wg.Wait()
}
