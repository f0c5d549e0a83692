package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/core"

	goption "google.golang.org/api/option"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet", CredentialsFile: t.TempDir() + "/nope.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func sample() core.Transaction {
	return core.Transaction{
		ID:          12,
		OwnerID:     1,
		Type:        core.TypeExpense,
		Category:    "food",
		Amount:      core.Money{Cents: 4250},
		Description: "groceries",
		Date:        core.NewDate(2024, 3, 9),
		Household:   core.HouseholdSingle,
	}
}

func TestAppendTransaction(t *testing.T) {
	var gotPath, gotQuery string
	var body struct {
		Values [][]any `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"spreadsheetId":"sheet","updates":{"updatedRange":"Transactions!A7:I7","updatedRows":1}}`)
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ref, err := c.AppendTransaction(context.Background(), sample())
	if err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}
	if ref != "Transactions!A7:I7" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.HasSuffix(gotPath, ":append") || !strings.Contains(gotPath, "/spreadsheets/sheet/") {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") {
		t.Errorf("query = %q", gotQuery)
	}
	if len(body.Values) != 1 || len(body.Values[0]) != len(Header) {
		t.Fatalf("values = %v", body.Values)
	}
	row := body.Values[0]
	if row[1] != "2024-03-09" || row[3] != "food" || row[4] != 42.5 {
		t.Errorf("row = %v", row)
	}
}

func TestAppendTransaction_RejectsInvalid(t *testing.T) {
	c := &Client{spreadsheetID: "sheet", sheetName: "Transactions"}
	tx := sample()
	tx.Amount = core.Money{}
	_, err := c.AppendTransaction(context.Background(), tx)
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestAppendTransaction_NoService(t *testing.T) {
	c := &Client{spreadsheetID: "sheet"}
	if _, err := c.AppendTransaction(context.Background(), sample()); err == nil {
		t.Fatal("expected an error without a service")
	}
}
