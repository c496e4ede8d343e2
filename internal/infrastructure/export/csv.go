// Package export renders export tables as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter writes semicolon-separated rows with \n line endings.
type CSVWriter struct{}

func (CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVWriter) Extension() string { return "csv" }

func (CSVWriter) Write(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
