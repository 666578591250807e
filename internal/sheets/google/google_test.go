package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"installments/internal/config"
	"installments/internal/core"
)

const testSpreadsheet = "sheet-1"

// fakeSheets implements the slice of the Sheets values API the client uses.
type fakeSheets struct {
	mu    sync.Mutex
	rows  map[string][][]any
	calls []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/v4/spreadsheets/" + testSpreadsheet + "/values/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rng := strings.TrimPrefix(r.URL.Path, prefix)
	op := "get"
	switch {
	case strings.HasSuffix(rng, ":append"):
		op, rng = "append", strings.TrimSuffix(rng, ":append")
	case strings.HasSuffix(rng, ":clear"):
		op, rng = "clear", strings.TrimSuffix(rng, ":clear")
	case r.Method == http.MethodPut:
		op = "update"
	}
	sheet, columns, _ := strings.Cut(rng, "!")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+" "+rng)

	var body gsheet.ValueRange
	if op == "append" || op == "update" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var resp any
	switch op {
	case "get":
		resp = gsheet.ValueRange{Range: rng, Values: f.rows[sheet]}
	case "append":
		f.rows[sheet] = append(f.rows[sheet], body.Values...)
		n := len(f.rows[sheet])
		resp = gsheet.AppendValuesResponse{Updates: &gsheet.UpdateValuesResponse{UpdatedRange: rowRange(sheet, columns, n)}}
	case "update", "clear":
		row, err := rowFromRange(rng)
		if err != nil || row > len(f.rows[sheet]) {
			http.Error(w, "bad row", http.StatusBadRequest)
			return
		}
		if op == "update" {
			f.rows[sheet][row-1] = body.Values[0]
			resp = gsheet.UpdateValuesResponse{UpdatedRange: rng}
		} else {
			f.rows[sheet][row-1] = []any{}
			resp = gsheet.ClearValuesResponse{ClearedRange: rng}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeSheets) row(sheet string, n int) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[sheet][n-1]
}

func (f *fakeSheets) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, op+" ") {
			n++
		}
	}
	return n
}

func newFakeClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	c, err := New(svc, Options{SpreadsheetID: testSpreadsheet})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func testInstallment(t *testing.T, id int64, desc string) core.Installment {
	t.Helper()
	inst, err := core.NewInstallment(desc, core.Money{Cents: 600_00}, 6, core.NewPeriod(2026, 1), 1, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	inst.ID = id
	inst.Card = &core.Card{ID: 1, Name: "BDO"}
	return inst
}

func TestClientUpsertInstallment(t *testing.T) {
	fake := &fakeSheets{rows: map[string][][]any{}}
	c := newFakeClient(t, fake)
	ctx := context.Background()

	ref, err := c.UpsertInstallment(ctx, testInstallment(t, 1, "Laptop"))
	if err != nil {
		t.Fatalf("UpsertInstallment() error = %v", err)
	}
	if ref != "Installments!A1:J1" {
		t.Errorf("ref = %s", ref)
	}
	if _, err := c.UpsertInstallment(ctx, testInstallment(t, 2, "Phone")); err != nil {
		t.Fatal(err)
	}

	// Cached row: update in place without scanning.
	gets := fake.count("get")
	ref, err = c.UpsertInstallment(ctx, testInstallment(t, 1, "Laptop Pro"))
	if err != nil {
		t.Fatal(err)
	}
	if ref != "Installments!A1:J1" || fake.count("get") != gets {
		t.Errorf("ref = %s, gets %d -> %d", ref, gets, fake.count("get"))
	}
	if got := fake.row("Installments", 1)[1]; got != "Laptop Pro" {
		t.Errorf("row 1 description = %v", got)
	}

	// A fresh client finds the existing row by id instead of appending.
	fresh, err := New(c.svc, Options{SpreadsheetID: testSpreadsheet})
	if err != nil {
		t.Fatal(err)
	}
	ref, err = fresh.UpsertInstallment(ctx, testInstallment(t, 2, "Phone 2"))
	if err != nil {
		t.Fatal(err)
	}
	if ref != "Installments!A2:J2" || fake.count("append") != 2 {
		t.Errorf("ref = %s, appends = %d", ref, fake.count("append"))
	}
}

func TestClientDeleteInstallment(t *testing.T) {
	fake := &fakeSheets{rows: map[string][][]any{}}
	c := newFakeClient(t, fake)
	ctx := context.Background()

	for i, desc := range []string{"Laptop", "Phone"} {
		if _, err := c.UpsertInstallment(ctx, testInstallment(t, int64(i+1), desc)); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.DeleteInstallment(ctx, 1); err != nil {
		t.Fatalf("DeleteInstallment() error = %v", err)
	}
	if row := fake.row("Installments", 1); len(row) != 0 {
		t.Errorf("row 1 not cleared: %v", row)
	}
	if row := fake.row("Installments", 2); row[1] != "Phone" {
		t.Errorf("row 2 changed: %v", row)
	}

	if err := c.DeleteInstallment(ctx, 99); err != nil {
		t.Errorf("deleting a missing row should be a no-op, got %v", err)
	}
	if fake.count("clear") != 1 {
		t.Errorf("clears = %d, want 1", fake.count("clear"))
	}

	// A re-created installment goes to a new row.
	ref, err := c.UpsertInstallment(ctx, testInstallment(t, 1, "Laptop"))
	if err != nil {
		t.Fatal(err)
	}
	if ref != "Installments!A3:J3" {
		t.Errorf("ref = %s", ref)
	}
}

func TestClientUpsertStatus(t *testing.T) {
	fake := &fakeSheets{rows: map[string][][]any{}}
	c := newFakeClient(t, fake)
	ctx := context.Background()
	p := core.NewPeriod(2026, 3)
	paidAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	ref, err := c.UpsertStatus(ctx, core.MonthlyStatus{CardID: 2, Period: p, IsPaid: true, PaidAt: &paidAt}, "BDO")
	if err != nil {
		t.Fatalf("UpsertStatus() error = %v", err)
	}
	if ref != "Card Status!A1:E1" {
		t.Errorf("ref = %s", ref)
	}
	if _, err := c.UpsertStatus(ctx, core.MonthlyStatus{CardID: 3, Period: p}, "RCBC"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.UpsertStatus(ctx, core.MonthlyStatus{CardID: 2, Period: p}, "BDO"); err != nil {
		t.Fatal(err)
	}
	if got := fake.row("Card Status", 1)[3]; got != "FALSE" {
		t.Errorf("row 1 paid = %v", got)
	}
	if fake.count("append") != 2 {
		t.Errorf("appends = %d, want 2", fake.count("append"))
	}
}

func TestClientWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: testSpreadsheet}
	ctx := context.Background()
	if _, err := c.UpsertInstallment(ctx, core.Installment{ID: 1}); err == nil {
		t.Error("expected error without service")
	}
	if err := c.DeleteInstallment(ctx, 1); err == nil {
		t.Error("expected error without service")
	}
	if _, err := c.UpsertStatus(ctx, core.MonthlyStatus{CardID: 1}, "BDO"); err == nil {
		t.Error("expected error without service")
	}
	if _, err := c.UpsertInstallment(ctx, core.Installment{}); err == nil {
		t.Error("expected error for installment without id")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Error("expected error for missing spreadsheet id")
	}
	c, err := New(nil, Options{SpreadsheetID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if c.installmentsSheet != "Installments" || c.statusSheet != "Card Status" {
		t.Errorf("default sheet names = %q, %q", c.installmentsSheet, c.statusSheet)
	}
}

func TestNewFromConfigRequiresCredentials(t *testing.T) {
	cfg := &config.Config{
		GoogleSpreadsheetID:   "x",
		GoogleSheetName:       "Installments",
		GoogleStatusSheetName: "Card Status",
		AMQPURL:               "amqp://localhost",
	}
	if _, err := NewFromConfig(context.Background(), cfg); err == nil {
		t.Error("expected error without service account credentials")
	}

	cfg.GoogleServiceAccountJSON = "not json"
	if _, err := NewFromConfig(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("expected credentials parse error, got %v", err)
	}
}
