package upload

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
)

func TestParse_CSVMissingCategory(t *testing.T) {
	data := "type,amount,date\nexpense,1000,2025-07-01\n"

	_, err := Parse("tx.csv", strings.NewReader(data))

	var mc *MissingColumnsError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if !reflect.DeepEqual(mc.Missing, []string{"category"}) {
		t.Errorf("missing = %v, want [category]", mc.Missing)
	}
	if !strings.HasPrefix(err.Error(), "Missing columns") {
		t.Errorf("error should start with 'Missing columns': %q", err.Error())
	}
}

func TestParse_MissingColumnsSorted(t *testing.T) {
	_, err := Parse("tx.csv", strings.NewReader("note,type\nx,income\n"))

	var mc *MissingColumnsError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if !reflect.DeepEqual(mc.Missing, []string{"amount", "category", "date"}) {
		t.Errorf("missing = %v", mc.Missing)
	}
}

func TestParse_CSVHeaderNormalization(t *testing.T) {
	data := "\ufeff Type ,AMOUNT,Date,Category,Note\n\nIncome,5000,2025-07-01,Freelance,Test upload\n,,,,\n"

	rows, err := Parse("TX.CSV", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Get("type") != "Income" || rows[0].Get("note") != "Test upload" {
		t.Errorf("unexpected row %+v", rows[0])
	}
	// encoding/csv drops empty lines, so the data row is record 2.
	if rows[0].Line != 2 {
		t.Errorf("line = %d, want 2", rows[0].Line)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
		want     error
	}{
		{"unsupported", "tx.pdf", "x", ErrUnsupportedFormat},
		{"empty csv", "tx.csv", "", ErrNoHeader},
		{"header only", "tx.csv", "type,amount,date,category\n", ErrNoRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.filename, strings.NewReader(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestParse_XLSX(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"type", "amount", "date", "category", "note"},
		{"EXPENSE", 1234.5, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), "Food", "weekly shop"},
		{"income", 5000, "2025-01-31", "Salary", ""},
	})

	rows, err := Parse("bank.xlsx", buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ts, err := ToTransactions(rows, 7, "batch-1")
	if err != nil {
		t.Fatalf("ToTransactions: %v", err)
	}
	if len(ts) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(ts))
	}

	first := ts[0]
	if first.Type != core.TypeExpense {
		t.Errorf("type should be lower-cased, got %q", first.Type)
	}
	if first.Amount.Cents != 123450 {
		t.Errorf("amount = %d, want 123450", first.Amount.Cents)
	}
	if got := first.Date.Format("2006-01-02"); got != "2025-01-01" {
		t.Errorf("date = %s, want 2025-01-01", got)
	}
	if first.OwnerID != 7 || first.BatchID != "batch-1" || first.Household != core.HouseholdSingle {
		t.Errorf("unexpected transaction %+v", first)
	}
	if first.Description != "weekly shop" {
		t.Errorf("note = %q", first.Description)
	}
}

func TestParse_XLSXMissingCategory(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"type", "amount", "date"},
		{"expense", 1000, "2025-07-01"},
	})

	_, err := Parse("bank.xlsx", buf)

	var mc *MissingColumnsError
	if !errors.As(err, &mc) || !strings.Contains(err.Error(), "Missing columns: category") {
		t.Errorf("expected missing category, got %v", err)
	}
}

func TestToTransactions_AllOrNothing(t *testing.T) {
	rows := []Row{
		{Line: 2, Values: map[string]string{"type": "income", "amount": "100", "date": "2025-01-01", "category": "salary"}},
		{Line: 3, Values: map[string]string{"type": "gift", "amount": "100", "date": "2025-01-01", "category": "misc"}},
	}

	ts, err := ToTransactions(rows, 1, "b")

	var re *RowError
	if !errors.As(err, &re) {
		t.Fatalf("expected RowError, got %v", err)
	}
	if re.Line != 3 || re.Column != "type" || !errors.Is(err, core.ErrInvalidType) {
		t.Errorf("unexpected row error %+v", re)
	}
	if ts != nil {
		t.Errorf("no transactions expected on failure, got %d", len(ts))
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2025-07-01", "2025-07-01", false},
		{"01/07/2025", "2025-07-01", false},
		{"45658", "2025-01-01", false},
		{"2025-07-01 10:30:00", "2025-07-01", false},
		{"July 1st", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got.Format("2006-01-02") != tt.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got.Format("2006-01-02"), tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.50", 1250, false},
		{"12,5", 1250, false},
		{"1234.5599999999999", 123456, false},
		{"5000", 500000, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"1e3", 0, true},
		{"2E2", 0, true},
		{"+5", 0, true},
		{"1.2.3", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got.Cents != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got.Cents, tt.want)
		}
	}
}
