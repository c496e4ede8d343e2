package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound   = errors.New("batch job not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTemporary     = errors.New("temporary failure")
	ErrLimitExceeded = errors.New("limit exceeded")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Input error codes reported inside received=false results.
const (
	CodeEmptyBody         = "Empty body"
	CodeInvalidXML        = "Invalid XML or parse failure"
	CodeInvalidZip        = "Invalid zip"
	CodeNoXMLInZip        = "No .xml files found in zip"
	CodeInvalidPDF        = "Not a valid PDF"
	CodePDFTextFailed     = "PDF text extraction failed"
	CodeParseFailed       = "parse_failed"
	CodeException         = "exception"
	CodeBatchSizeExceeded = "Batch decompressed size exceeded limit"
)

// InputError is a document-level failure carried as data, never returned as a Go error.
type InputError struct {
	Code   string `json:"error"`
	Detail string `json:"details,omitempty"`
}

func NewInputError(code, detail string) *InputError {
	return &InputError{Code: code, Detail: detail}
}

func (e *InputError) String() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}
