package domain

import "strings"

// CNAEStatus is the three-way outcome of a CNAE versus description check.
type CNAEStatus string

const (
	CNAEStatusOK      CNAEStatus = "ok"
	CNAEStatusAlert   CNAEStatus = "alert"
	CNAEStatusUnknown CNAEStatus = "unknown"
)

type MatchType string

const (
	MatchContains MatchType = "contains"
	MatchRegex    MatchType = "regex"
)

// ScopeKind orders rule scopes by specificity.
type ScopeKind int

const (
	ScopeExact ScopeKind = iota
	ScopePrefix
	ScopeGlobal
)

const (
	ScopeWildcard   = "*"
	DefaultLabel    = "Regra CNAE"
	DefaultSeverity = "info"
)

// CNAERule is one row of the CNAE rule table.
type CNAERule struct {
	CNAE      string    `json:"cnae"`
	MatchType MatchType `json:"match_type"`
	Pattern   string    `json:"pattern"`
	Label     string    `json:"label"`
	Severity  string    `json:"severity"`
}

// Kind classifies the rule scope: "*" is global, "86*" is a prefix, anything else is exact.
func (r CNAERule) Kind() ScopeKind {
	switch {
	case r.CNAE == ScopeWildcard || r.CNAE == "":
		return ScopeGlobal
	case strings.HasSuffix(r.CNAE, ScopeWildcard):
		return ScopePrefix
	default:
		return ScopeExact
	}
}

// Applies reports whether the rule scope covers the digits-only code.
func (r CNAERule) Applies(code string) bool {
	switch r.Kind() {
	case ScopeGlobal:
		return true
	case ScopePrefix:
		return strings.HasPrefix(code, strings.TrimSuffix(r.CNAE, ScopeWildcard))
	default:
		return r.CNAE == code
	}
}

// CNAEResult is attached to every service item as validations.cnae_vs_descricao.
type CNAEResult struct {
	Status      CNAEStatus `json:"status"`
	RuleLabel   string     `json:"rule_label"`
	Severity    string     `json:"severity"`
	RulePattern string     `json:"rule_pattern"`
	RuleCNAE    string     `json:"rule_cnae"`
	Reason      string     `json:"reason"`
}
