package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/query"
)

func newAskHandler(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	cfg, err := config.Load("askdb-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return NewHandler(cfg, deps)
}

func askBody(question, format string) *bytes.Reader {
	payload := map[string]string{"question": question}
	if format != "" {
		payload["format"] = format
	}
	data, _ := json.Marshal(payload)
	return bytes.NewReader(data)
}

func TestAskReturnsTableWithTranslationMetadata(t *testing.T) {
	executor := &fakeExecutor{table: query.Table{
		Columns: []string{"Title"},
		Rows:    [][]any{{"Let It Be"}},
	}}
	h := newAskHandler(t, Dependencies{
		Resolver: &fakeResolver{result: nl2sql.Result{SQL: "SELECT Title FROM Album", Provider: "vanna", Model: "4base"}},
		Executor: executor,
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", askBody("top albums", "")))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var response askResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.SQL != "SELECT Title FROM Album" {
		t.Fatalf("sql = %q", response.SQL)
	}
	if response.Provider != "vanna" || response.Cached {
		t.Fatalf("provider = %q cached = %v", response.Provider, response.Cached)
	}
	if response.RowCount != 1 || len(response.Rows) != 1 {
		t.Fatalf("row count = %d", response.RowCount)
	}
	if response.Fingerprint == "" {
		t.Fatal("expected question fingerprint")
	}
	if executor.got != "SELECT Title FROM Album" {
		t.Fatalf("executor received %q", executor.got)
	}
}

func TestAskEmptyResultIsOK(t *testing.T) {
	h := newAskHandler(t, Dependencies{
		Resolver: &fakeResolver{result: nl2sql.Result{SQL: "SELECT 1 WHERE 1 = 0", Provider: "cache", Cached: true}},
		Executor: &fakeExecutor{table: query.Table{Columns: []string{"1"}, Rows: [][]any{}}},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", askBody("nothing", "")))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var response askResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.RowCount != 0 {
		t.Fatalf("row count = %d", response.RowCount)
	}
	if !response.Cached {
		t.Fatal("expected cached translation")
	}
}

func TestAskExecutionFailureReturns422(t *testing.T) {
	execErr := &query.ExecutionError{SQL: "SELECT nope", Err: errors.New("no such column: nope")}
	h := newAskHandler(t, Dependencies{
		Resolver: &fakeResolver{result: nl2sql.Result{SQL: "SELECT nope", Provider: "vanna"}},
		Executor: &fakeExecutor{err: execErr},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", askBody("bad question", "")))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "EXECUTION_FAILED") {
		t.Fatalf("expected EXECUTION_FAILED, got %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "no such column") {
		t.Fatalf("expected driver details, got %s", rr.Body.String())
	}
}

func TestAskTranslationFailureReturns502(t *testing.T) {
	resolutionErr := &nl2sql.ResolutionError{
		Question: "gibberish",
		Attempts: []nl2sql.TierOutcome{
			{Tier: "vanna", Err: errors.New("provider unavailable")},
			{Tier: "chat"},
		},
	}
	h := newAskHandler(t, Dependencies{
		Resolver: &fakeResolver{err: resolutionErr},
		Executor: &fakeExecutor{},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", askBody("gibberish", "")))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "TRANSLATION_FAILED") {
		t.Fatalf("expected TRANSLATION_FAILED, got %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "provider unavailable") {
		t.Fatalf("expected attempt details, got %s", rr.Body.String())
	}
}

func TestAskCSVFormatStreamsAttachment(t *testing.T) {
	h := newAskHandler(t, Dependencies{
		Resolver: &fakeResolver{result: nl2sql.Result{SQL: "SELECT Title FROM Album", Provider: "vanna"}},
		Executor: &fakeExecutor{table: query.Table{Columns: []string{"Title"}, Rows: [][]any{{"Let It Be"}}}},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", askBody("top albums", "csv")))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "query_results.csv") {
		t.Fatalf("content disposition = %q", cd)
	}
	if got := rr.Body.String(); got != "Title\nLet It Be\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestAskValidation(t *testing.T) {
	h := newAskHandler(t, Dependencies{
		Resolver: &fakeResolver{result: nl2sql.Result{SQL: "SELECT 1", Provider: "vanna"}},
		Executor: &fakeExecutor{},
	})

	cases := []struct {
		name string
		body string
	}{
		{name: "blank question", body: `{"question":"   "}`},
		{name: "unknown format", body: `{"question":"q","format":"xlsx"}`},
		{name: "unknown field", body: `{"question":"q","limit":5}`},
		{name: "invalid json", body: `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(tc.body)))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestAskWithoutDependenciesReturns501(t *testing.T) {
	h := newAskHandler(t, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", askBody("anything", "")))

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}
