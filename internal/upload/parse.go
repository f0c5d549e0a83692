// Package upload reads spreadsheets of transactions (.xlsx or .csv) and turns
// them into ledger entries. An import is all or nothing: one bad row rejects the file.
package upload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Required columns of every upload.
var RequiredColumns = []string{"type", "amount", "date", "category"}

var (
	ErrUnsupportedFormat = errors.New("unsupported file type: upload an .xlsx or .csv file")
	ErrNoHeader          = errors.New("file has no header row")
	ErrNoRows            = errors.New("file has no transaction rows")
)

// MissingColumnsError lists required columns absent from the header.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "Missing columns: " + strings.Join(e.Missing, ", ") +
		". Required: " + strings.Join(RequiredColumns, ", ")
}

// Row is one data row keyed by lower-cased header name. Line is the 1-based
// record number, header included.
type Row struct {
	Line   int
	Values map[string]string
}

func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// Parse reads the first sheet of an .xlsx file or a .csv file, chosen by the
// filename extension.
func Parse(filename string, r io.Reader) ([]Row, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(r)
	case ".csv":
		records, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return toRows(records)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	// Raw values keep dates as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return records, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func toRows(records [][]string) ([]Row, error) {
	start := 0
	for start < len(records) && blank(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, ErrNoHeader
	}

	header := make([]string, len(records[start]))
	present := map[string]bool{}
	for i, h := range records[start] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
		present[header[i]] = true
	}

	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Missing: missing}
	}

	var rows []Row
	for i := start + 1; i < len(records); i++ {
		if blank(records[i]) {
			continue
		}
		values := make(map[string]string, len(header))
		for j, h := range header {
			if h == "" || j >= len(records[i]) {
				continue
			}
			values[h] = records[i][j]
		}
		rows = append(rows, Row{Line: i + 1, Values: values})
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}
