// Package decision computes the per-item ERP decision for service invoices.
package decision

import (
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

var (
	blockTier  = []domain.Reason{domain.ReasonMissingRequiredFields, domain.ReasonNegativeOrZeroValues, domain.ReasonTaxInconsistent}
	reviewTier = []domain.Reason{domain.ReasonCNAEUnknown, domain.ReasonCNAEMismatch, domain.ReasonNetDivergenceAboveLimit}
)

// Engine applies the AUTO/REVIEW/BLOCK policy with configurable net tolerances.
type Engine struct {
	thresholds domain.Thresholds
}

func NewEngine(thresholds domain.Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// NetValue is gross minus the withheld ISS, PIS, COFINS, INSS, IR and CSLL.
// Absent parts count as zero and a negative result is absent.
func (e *Engine) NetValue(gross domain.Amount, t domain.NFSeTaxes) domain.Amount {
	if !gross.Valid {
		return domain.Amount{}
	}
	net := gross.Decimal
	for _, part := range []domain.Amount{t.ValorISSRetido, t.ValorPIS, t.ValorCOFINS, t.ValorINSS, t.ValorIR, t.ValorCSLL} {
		net = net.Sub(domain.OrZero(part))
	}
	if net.IsNegative() {
		return domain.Amount{}
	}
	return domain.AmountOf(domain.Round2(net))
}

// NetDivergent reports whether the declared and computed net values disagree
// beyond both the absolute and the relative tolerance.
func (e *Engine) NetDivergent(declared, computed domain.Amount) bool {
	if !declared.Valid || !computed.Valid {
		return false
	}
	return convert.Diverges(declared.Decimal, computed.Decimal, e.thresholds.NetAbs, e.thresholds.NetPct)
}

// Reconcile fills the computed net value, the declared-minus-computed difference
// and the divergence flag of t.
func (e *Engine) Reconcile(gross domain.Amount, t *domain.NFSeTaxes) {
	t.ValorLiquidoCalculado = e.NetValue(gross, *t)
	t.ValorLiquidoDiff = domain.Amount{}
	t.ValorLiquidoDivergente = false
	if t.ValorLiquidoNFSe.Valid && t.ValorLiquidoCalculado.Valid {
		diff := t.ValorLiquidoNFSe.Decimal.Sub(t.ValorLiquidoCalculado.Decimal)
		t.ValorLiquidoDiff = domain.AmountOf(domain.Round2(diff))
		t.ValorLiquidoDivergente = e.NetDivergent(t.ValorLiquidoNFSe, t.ValorLiquidoCalculado)
	}
}

// Decide returns BLOCK when a blocking reason exists, else REVIEW when a review
// reason exists, else AUTO. Reasons come back sorted; AUTO carries none.
func (e *Engine) Decide(item domain.NFSeItem) (domain.Decision, domain.Reasons) {
	reasons := domain.Reasons{}

	for _, name := range domain.NFSeCriticalFields {
		if !item.Fields.Present(name) {
			reasons = reasons.Append(domain.ReasonMissingRequiredFields)
			break
		}
	}

	vt := item.Fields.ValorTotal
	if !vt.Valid || !vt.Decimal.IsPositive() {
		reasons = reasons.Append(domain.ReasonNegativeOrZeroValues)
	}
	if raw := convert.Text(item.XMLRaw.ValorServicos); raw != "" && !convert.ParseDecimal(raw).Valid {
		reasons = reasons.Append(domain.ReasonTaxInconsistent)
	}

	switch item.Validations.CNAEVsDescricao.Status {
	case domain.CNAEStatusAlert:
		reasons = reasons.Append(domain.ReasonCNAEMismatch)
	case domain.CNAEStatusOK:
	default:
		reasons = reasons.Append(domain.ReasonCNAEUnknown)
	}

	if e.NetDivergent(item.Taxes.ValorLiquidoNFSe, item.Taxes.ValorLiquidoCalculado) {
		reasons = reasons.Append(domain.ReasonNetDivergenceAboveLimit)
	}

	switch {
	case reasons.HasAny(blockTier...):
		return domain.DecisionBlock, reasons.Sorted()
	case reasons.HasAny(reviewTier...):
		return domain.DecisionReview, reasons.Sorted()
	default:
		return domain.DecisionAuto, domain.Reasons{}
	}
}

// Thresholds exposes the tolerances the engine was built with.
func (e *Engine) Thresholds() domain.Thresholds {
	return e.thresholds
}
