package domain

import "time"

type JobStatus string

const (
	StatusUploaded   JobStatus = "uploaded"
	StatusProcessing JobStatus = "processing"
	StatusReady      JobStatus = "ready"
	StatusFailed     JobStatus = "failed"
)

// BatchKind selects the document family processed by a batch job.
type BatchKind string

const (
	BatchKindNFe  BatchKind = "nfe"
	BatchKindNFSe BatchKind = "nfse"
)

func (k BatchKind) Valid() bool {
	return k == BatchKindNFe || k == BatchKindNFSe
}

// BatchJob is an archive submitted for asynchronous processing.
type BatchJob struct {
	ID              string    `json:"id"`
	Kind            BatchKind `json:"kind"`
	Filename        string    `json:"filename"`
	SHA256          string    `json:"sha256"`
	StoragePath     string    `json:"storage_path"`
	ResultPath      string    `json:"result_path,omitempty"`
	Status          JobStatus `json:"status"`
	Error           string    `json:"error,omitempty"`
	CountFilesOK    int       `json:"count_files_ok"`
	CountFilesError int       `json:"count_files_error"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// JobOutcome is what the worker records after a batch run.
type JobOutcome struct {
	ResultPath      string
	CountFilesOK    int
	CountFilesError int
}
