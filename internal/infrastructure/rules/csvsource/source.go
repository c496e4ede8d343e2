// Package csvsource reads the CNAE rule table from a semicolon-separated file with a header row:
// cnae;match_type;pattern;label;severity.
package csvsource

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

type Source struct {
	path string
}

func New(path string) *Source {
	return &Source{path: strings.TrimSpace(path)}
}

// Load returns no rules and no error when the path is empty or the file does not exist.
func (s *Source) Load(_ context.Context) ([]domain.CNAERule, error) {
	if s.path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cnae rules: %w", err)
	}
	return Parse(bytes.NewReader(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))))
}

// Parse maps columns by header name. Unknown columns are ignored and missing ones read as empty.
func Parse(r io.Reader) ([]domain.CNAERule, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cnae rules header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	col := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rules []domain.CNAERule
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read cnae rules row: %w", err)
		}
		rules = append(rules, domain.CNAERule{
			CNAE:      col(record, "cnae"),
			MatchType: domain.MatchType(strings.ToLower(col(record, "match_type"))),
			Pattern:   col(record, "pattern"),
			Label:     col(record, "label"),
			Severity:  strings.ToLower(col(record, "severity")),
		})
	}
	return rules, nil
}
