package domain

import "github.com/shopspring/decimal"

// Thresholds are the reconciliation tolerances and the majority share.
type Thresholds struct {
	NetAbs       decimal.Decimal
	NetPct       decimal.Decimal
	DocTotalAbs  decimal.Decimal
	DocTotalPct  decimal.Decimal
	ItemTotalAbs decimal.Decimal
	Majority     float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		NetAbs:       decimal.RequireFromString("0.10"),
		NetPct:       decimal.RequireFromString("0.001"),
		DocTotalAbs:  decimal.RequireFromString("0.10"),
		DocTotalPct:  decimal.RequireFromString("0.001"),
		ItemTotalAbs: decimal.RequireFromString("0.05"),
		Majority:     0.6,
	}
}

// ERPCodes are the posting codes used by the ERP projections.
type ERPCodes struct {
	NFeMovementType        string
	ProductCodeMedicamento string
	ProductCodeMaterial    string
	ProductCodeGenerico    string
	NFSeMovementType       string
	ServiceCodeSaude       string
	ServiceCodeTecnico     string
	ServiceCodeOutros      string
}

func DefaultERPCodes() ERPCodes {
	return ERPCodes{
		NFeMovementType:        "1.2.01",
		ProductCodeMedicamento: "00007",
		ProductCodeMaterial:    "00008",
		ProductCodeGenerico:    "00008",
		NFSeMovementType:       "2.1.01",
		ServiceCodeSaude:       "00010",
		ServiceCodeTecnico:     "00011",
		ServiceCodeOutros:      "00012",
	}
}
