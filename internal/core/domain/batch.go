package domain

import "github.com/shopspring/decimal"

// BatchLimits bound the work done for one archive.
type BatchLimits struct {
	MaxFiles      int   `json:"max_files"`
	MaxTotalBytes int64 `json:"max_total_bytes"`
}

func DefaultBatchLimits() BatchLimits {
	return BatchLimits{MaxFiles: 200, MaxTotalBytes: 50 * 1024 * 1024}
}

// BatchError is one per-file or archive-level failure. File is empty for archive-level errors.
type BatchError struct {
	File       string `json:"file"`
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Exception  string `json:"exception,omitempty"`
	LimitBytes int64  `json:"limit_bytes,omitempty"`
}

// BatchCounters are shared by every batch summary.
type BatchCounters struct {
	CountFilesOK    int `json:"count_files_ok"`
	CountFilesError int `json:"count_files_error"`
	CountTotalItems int `json:"count_total_items"`
}

// BatchResult is the outcome of one archive, parameterized by the per-file and summary shapes.
type BatchResult[F any, S any] struct {
	Received        bool         `json:"received"`
	Filename        string       `json:"filename"`
	SHA256Zip       string       `json:"sha256_zip"`
	CountFilesOK    int          `json:"count_files_ok"`
	CountFilesError int          `json:"count_files_error"`
	Files           []F          `json:"files"`
	Errors          []BatchError `json:"errors"`
	BatchSummary    S            `json:"batch_summary"`
}

// NFeBatchFile is one successfully processed product invoice inside an archive.
type NFeBatchFile struct {
	File       string              `json:"file"`
	XMLSHA256  string              `json:"xml_sha256"`
	CountItems int                 `json:"count_items"`
	Header     NFeHeader           `json:"header"`
	Totals     NFeTotals           `json:"totals"`
	Summary    NFeSummary          `json:"summary"`
	Items      []NormalizedNFeItem `json:"-"`
}

type NFeBatchSummary struct {
	BatchCounters
	SumVNF          decimal.Decimal   `json:"sum_vNF"`
	SumVProd        decimal.Decimal   `json:"sum_vProd"`
	DecisionSummary DecisionCounts    `json:"decision_summary"`
	QualitySummary  NFeQualitySummary `json:"quality_summary"`
	Limits          BatchLimits       `json:"limits"`
	Error           string            `json:"error,omitempty"`
}

type NFeBatchResult = BatchResult[NFeBatchFile, NFeBatchSummary]

// NFSeBatchFile is one successfully processed service-invoice file inside an archive.
type NFSeBatchFile struct {
	File          string               `json:"file"`
	XMLSHA256     string               `json:"xml_sha256"`
	Received      bool                 `json:"received"`
	CountItems    int                  `json:"count_items"`
	Prestador     Party                `json:"prestador"`
	Tomador       Party                `json:"tomador"`
	Totals        NFSeDocTotals        `json:"totals"`
	Summary       NFSeSummary          `json:"summary"`
	Document      NFSeDocument         `json:"document"`
	ERPProjection NFSeERPProjection    `json:"erp_projection"`
	Items         []NormalizedNFSeItem `json:"items"`
}

type NFSeBatchSummary struct {
	BatchCounters
	SumValorServicos decimal.Decimal    `json:"sum_valor_servicos"`
	SumValorLiquido  decimal.Decimal    `json:"sum_valor_liquido"`
	DecisionSummary  DecisionCounts     `json:"decision_summary"`
	QualitySummary   NFSeQualitySummary `json:"quality_summary"`
	Limits           BatchLimits        `json:"limits"`
	Error            string             `json:"error,omitempty"`
}

type NFSeBatchResult = BatchResult[NFSeBatchFile, NFSeBatchSummary]
