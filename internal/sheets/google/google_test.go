package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"carteira/internal/core"

	goption "google.golang.org/api/option"
)

// fakeSheets serves the subset of the Sheets v4 API the client calls,
// backed by an in-memory grid for a single tab.
type fakeSheets struct {
	t     *testing.T
	sheet string

	mu          sync.Mutex
	rows        [][]string
	calls       []string
	batchBodies []string
	failPuts    int
}

var rowInRange = regexp.MustCompile(`!A(\d+):`)

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	f.calls = append(f.calls, r.Method+" "+path)

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.batchUpdate(w, r)
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.getValues(w)
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.putValues(w, r, path)
	case r.Method == http.MethodGet:
		writeJSON(w, map[string]any{
			"spreadsheetId": "sheet-1",
			"sheets": []any{
				map[string]any{"properties": map[string]any{"sheetId": 7, "title": "Other"}},
				map[string]any{"properties": map[string]any{"sheetId": 0, "title": f.sheet}},
			},
		})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSheets) getValues(w http.ResponseWriter) {
	values := make([][]any, 0, len(f.rows))
	for _, row := range f.rows {
		if len(row) == 0 {
			values = append(values, []any{})
			continue
		}
		values = append(values, []any{row[0]})
	}
	resp := map[string]any{"range": f.sheet + "!A:A", "majorDimension": "ROWS"}
	if len(values) > 0 {
		resp["values"] = values
	}
	writeJSON(w, resp)
}

func (f *fakeSheets) putValues(w http.ResponseWriter, r *http.Request, path string) {
	if f.failPuts > 0 {
		f.failPuts--
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}
	if got := r.URL.Query().Get("valueInputOption"); got != "RAW" {
		f.t.Errorf("valueInputOption = %q, want RAW", got)
	}

	m := rowInRange.FindStringSubmatch(path)
	if m == nil {
		f.t.Errorf("unexpected update range %q", path)
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}
	row, _ := strconv.Atoi(m[1])

	var body struct {
		Values [][]any `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Values) != 1 {
		f.t.Errorf("decode update body: %v", err)
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	for len(f.rows) < row {
		f.rows = append(f.rows, nil)
	}
	cells := make([]string, len(body.Values[0]))
	for i, v := range body.Values[0] {
		cells[i] = fmt.Sprint(v)
	}
	f.rows[row-1] = cells
	writeJSON(w, map[string]any{"updatedRows": 1})
}

func (f *fakeSheets) batchUpdate(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	f.batchBodies = append(f.batchBodies, string(raw))

	var body struct {
		Requests []struct {
			DeleteDimension struct {
				Range struct {
					SheetID    *int64 `json:"sheetId"`
					Dimension  string `json:"dimension"`
					StartIndex *int64 `json:"startIndex"`
					EndIndex   int64  `json:"endIndex"`
				} `json:"range"`
			} `json:"deleteDimension"`
		} `json:"requests"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Requests) != 1 {
		f.t.Errorf("decode batch body: %v", err)
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	rng := body.Requests[0].DeleteDimension.Range
	if rng.SheetID == nil || *rng.SheetID != 0 {
		f.t.Errorf("sheetId = %v, want explicit 0", rng.SheetID)
	}
	if rng.StartIndex == nil || rng.Dimension != "ROWS" {
		f.t.Errorf("range = %s, want ROWS with explicit startIndex", raw)
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}
	start, end := int(*rng.StartIndex), int(rng.EndIndex)
	if start < len(f.rows) {
		if end > len(f.rows) {
			end = len(f.rows)
		}
		f.rows = append(f.rows[:start], f.rows[end:]...)
	}
	writeJSON(w, map[string]any{"spreadsheetId": "sheet-1"})
}

func (f *fakeSheets) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.rows))
	for _, row := range f.rows {
		if len(row) > 0 {
			out = append(out, row[0])
		} else {
			out = append(out, "")
		}
	}
	return out
}

func (f *fakeSheets) row(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 1 || n > len(f.rows) {
		return nil
	}
	return f.rows[n-1]
}

func (f *fakeSheets) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, seed ...[]string) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{t: t, sheet: "Transactions", rows: seed}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewWithOptions(context.Background(),
		Config{SpreadsheetID: "sheet-1", SheetName: "Transactions"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	return c, fake
}

func testTx(id string, cents int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		OwnerID:     "owner-1",
		WalletID:    "wallet-1",
		Amount:      core.Cents(cents),
		Category:    "Groceries",
		Type:        core.Expense,
		Description: "market",
		Date:        core.NewDate(2025, 3, 14),
	}
}

func TestNewWithOptions_MissingSpreadsheetID(t *testing.T) {
	_, err := NewWithOptions(context.Background(), Config{SpreadsheetID: "  "}, goption.WithoutAuthentication())
	if err == nil || !strings.Contains(err.Error(), "missing spreadsheet id") {
		t.Errorf("NewWithOptions() error = %v, want missing spreadsheet id", err)
	}
}

func TestNewWithOptions_DefaultSheetName(t *testing.T) {
	c, err := NewWithOptions(context.Background(), Config{SpreadsheetID: "x"}, goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	if c.sheetName != defaultSheetName {
		t.Errorf("sheetName = %q, want %q", c.sheetName, defaultSheetName)
	}
	if c.cacheValidDuration != defaultRowCacheValid {
		t.Errorf("cacheValidDuration = %v, want %v", c.cacheValidDuration, defaultRowCacheValid)
	}
}

func TestCredentialsJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(file, []byte(`{"type":"file"}`), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	envFile := filepath.Join(dir, "adc.json")
	if err := os.WriteFile(envFile, []byte(`{"type":"adc"}`), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}

	tests := []struct {
		name    string
		cfg     Config
		env     string
		want    string
		wantErr string
	}{
		{name: "inline wins", cfg: Config{ServiceAccountJSON: `{"type":"inline"}`, ServiceAccountFile: file}, want: `{"type":"inline"}`},
		{name: "file", cfg: Config{ServiceAccountFile: file}, want: `{"type":"file"}`},
		{name: "application default path", env: envFile, want: `{"type":"adc"}`},
		{name: "unreadable file", cfg: Config{ServiceAccountFile: filepath.Join(dir, "missing.json")}, wantErr: "read service account file"},
		{name: "nothing configured", wantErr: "missing service account credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", tt.env)

			got, err := credentialsJSON(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("credentialsJSON() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("credentialsJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("credentialsJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClient_UpsertWritesHeaderAndAppends(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	ref1, err := c.Upsert(ctx, testTx("tx-1", 1250))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	ref2, err := c.Upsert(ctx, testTx("tx-2", 300))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if ref1 != "Transactions!A2:J2" || ref2 != "Transactions!A3:J3" {
		t.Errorf("refs = %q, %q, want rows 2 and 3", ref1, ref2)
	}
	if got := fake.ids(); strings.Join(got, ",") != "ID,tx-1,tx-2" {
		t.Errorf("ids = %v, want [ID tx-1 tx-2]", got)
	}

	row := fake.row(2)
	want := []string{"tx-1", "2025-03-14", "expense", "Groceries", "market", "12.50", "wallet-1", "", "", "owner-1"}
	if strings.Join(row, "|") != strings.Join(want, "|") {
		t.Errorf("row 2 = %v, want %v", row, want)
	}
}

func TestClient_UpsertReplacesExistingRow(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Upsert(ctx, testTx("tx-1", 1000)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	ref, err := c.Upsert(ctx, testTx("tx-1", 4200))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if ref != "Transactions!A2:J2" {
		t.Errorf("ref = %q, want Transactions!A2:J2", ref)
	}
	if got := fake.ids(); len(got) != 2 {
		t.Errorf("ids = %v, want header plus one row", got)
	}
	if amount := fake.row(2)[5]; amount != "42.00" {
		t.Errorf("amount = %q, want 42.00", amount)
	}
}

func TestClient_UpsertIndexesExistingSheet(t *testing.T) {
	c, fake := newTestClient(t,
		[]string{"ID", "Date"},
		[]string{"tx-a"},
		nil,
		[]string{"tx-b"},
	)

	ref, err := c.Upsert(context.Background(), testTx("tx-b", 999))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if ref != "Transactions!A4:J4" {
		t.Errorf("ref = %q, want existing row 4", ref)
	}

	ref, err = c.Upsert(context.Background(), testTx("tx-c", 1))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if ref != "Transactions!A5:J5" {
		t.Errorf("ref = %q, want appended row 5", ref)
	}
	if got := fake.ids(); strings.Join(got, ",") != "ID,tx-a,,tx-b,tx-c" {
		t.Errorf("ids = %v", got)
	}
}

func TestClient_UpsertRejectsInvalidTransaction(t *testing.T) {
	c, fake := newTestClient(t)

	tx := testTx("tx-1", 0)
	if _, err := c.Upsert(context.Background(), tx); err == nil {
		t.Fatal("Upsert() error = nil, want validation error")
	}
	if n := fake.callCount(); n != 0 {
		t.Errorf("API calls = %d, want 0", n)
	}
}

func TestClient_UpsertErrorInvalidatesCache(t *testing.T) {
	c, fake := newTestClient(t, []string{"ID"})
	fake.failPuts = 1000

	if _, err := c.Upsert(context.Background(), testTx("tx-1", 100)); err == nil {
		t.Fatal("Upsert() error = nil, want API error")
	}
	fake.mu.Lock()
	fake.failPuts = 0
	fake.mu.Unlock()
	c.mu.Lock()
	cached := c.rows != nil
	c.mu.Unlock()
	if cached {
		t.Error("row cache should be dropped after a failed write")
	}

	if _, err := c.Upsert(context.Background(), testTx("tx-1", 100)); err != nil {
		t.Fatalf("Upsert() retry error = %v", err)
	}
	if got := fake.ids(); strings.Join(got, ",") != "ID,tx-1" {
		t.Errorf("ids = %v, want [ID tx-1]", got)
	}
}

func TestClient_RemoveDeletesRowAndShifts(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"tx-1", "tx-2", "tx-3"} {
		if _, err := c.Upsert(ctx, testTx(id, 100)); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	if err := c.Remove(ctx, "tx-2"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := fake.ids(); strings.Join(got, ",") != "ID,tx-1,tx-3" {
		t.Errorf("ids after remove = %v", got)
	}

	// Rows shifted up; the next write must land on tx-3's new row.
	ref, err := c.Upsert(ctx, testTx("tx-3", 777))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if ref != "Transactions!A3:J3" {
		t.Errorf("ref = %q, want Transactions!A3:J3", ref)
	}
	if amount := fake.row(3)[5]; amount != "7.77" {
		t.Errorf("amount = %q, want 7.77", amount)
	}
}

func TestClient_RemoveUnknownIsNoop(t *testing.T) {
	c, fake := newTestClient(t, []string{"ID"}, []string{"tx-1"})

	if err := c.Remove(context.Background(), "missing"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(fake.batchBodies) != 0 {
		t.Errorf("batch updates = %d, want 0", len(fake.batchBodies))
	}
	if got := fake.ids(); len(got) != 2 {
		t.Errorf("ids = %v, want untouched sheet", got)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{}
	if _, err := c.Upsert(context.Background(), testTx("tx-1", 100)); err == nil {
		t.Error("Upsert() error = nil, want not initialized")
	}
	if err := c.Remove(context.Background(), "tx-1"); err == nil {
		t.Error("Remove() error = nil, want not initialized")
	}
}
