package domain

import "time"

type AuditKind string

const (
	AuditNFeExtractPage    AuditKind = "nfe_xml_extract_page"
	AuditNFeExtractItem    AuditKind = "nfe_xml_extract_item"
	AuditNFeExtractSummary AuditKind = "nfe_xml_extract_summary"
	AuditNFeExportCSV      AuditKind = "nfe_xml_export_csv"
	AuditNFeBatchSummary   AuditKind = "nfe_zip_batch_summary"
	AuditNFeBatchFileOK    AuditKind = "nfe_zip_batch_file_ok"
	AuditNFeBatchFileError AuditKind = "nfe_zip_batch_file_error"
	AuditNFSeExtractPage   AuditKind = "nfse_xml_extract_page"
	AuditNFSeExtractItem   AuditKind = "nfse_xml_extract_item"
	AuditNFSeExportCSV     AuditKind = "nfse_xml_export_csv"
	AuditNFSeBatchSummary  AuditKind = "nfse_xml_batch_summary"
	AuditNFSePDFExtract    AuditKind = "nfse_pdf_extract"
	AuditBatchJobSubmitted AuditKind = "batch_job_submitted"
	AuditBatchJobProcessed AuditKind = "batch_job_processed"
	AuditCNAERulesReloaded AuditKind = "cnae_rules_reloaded"
)

// AuditEvent is an append-only trace record. Attrs is open-ended by contract.
type AuditEvent struct {
	ID       string         `json:"id"`
	Kind     AuditKind      `json:"kind"`
	TS       time.Time      `json:"ts_utc"`
	Filename string         `json:"filename,omitempty"`
	SHA256   string         `json:"sha256,omitempty"`
	Attrs    map[string]any `json:"attrs,omitempty"`
}

// NewAuditEvent builds an event with the given attributes. ID and TS are filled by the sink.
func NewAuditEvent(kind AuditKind, filename, sha string, attrs map[string]any) AuditEvent {
	return AuditEvent{Kind: kind, Filename: filename, SHA256: sha, Attrs: attrs}
}
