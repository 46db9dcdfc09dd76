package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyFile is returned when a parsed sheet has no data rows.
var ErrEmptyFile = errors.New("file has no data rows")

// ParsedFile is a decoded spreadsheet: the original header row plus data rows
// keyed by normalized header.
type ParsedFile struct {
	Headers []string
	Rows    []RawRow
}

// ParseSpreadsheet decodes a CSV or XLSX upload by filename extension.
// XLSX cells are read raw so date cells surface as their serial numbers
// rather than locale-formatted strings.
func ParseSpreadsheet(r io.Reader, filename string) (*ParsedFile, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return parseXLSX(r)
	case ".csv", ".txt", "":
		return parseCSV(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

func parseCSV(r io.Reader) (*ParsedFile, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromRecords(records)
}

func parseXLSX(r io.Reader) (*ParsedFile, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) (*ParsedFile, error) {
	// Skip leading fully-blank lines before the header.
	start := 0
	for start < len(records) && isBlankRow(records[start]) {
		start++
	}
	if start >= len(records) {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(records[start]))
	for i, h := range records[start] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	parsed := &ParsedFile{Headers: headers}
	for _, rec := range records[start+1:] {
		if isBlankRow(rec) {
			continue
		}
		parsed.Rows = append(parsed.Rows, NewRawRow(headers, rec))
	}
	if len(parsed.Rows) == 0 {
		return nil, ErrEmptyFile
	}
	return parsed, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
