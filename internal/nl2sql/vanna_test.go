package nl2sql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeDataAccess struct {
	lastSQL string
}

func (f *fakeDataAccess) Run(_ context.Context, sql string) ([]string, [][]any, error) {
	f.lastSQL = sql
	return []string{"Title"}, [][]any{{"For Those About To Rock"}}, nil
}

func TestVannaAttemptReturnsSQL(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/generate_sql" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Vanna-Key") != "key-1" {
			t.Fatalf("Vanna-Key = %q", r.Header.Get("Vanna-Key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_ = json.NewEncoder(w).Encode(map[string]string{"type": "sql", "text": "SELECT Title FROM Album LIMIT 5;"})
	}))
	defer server.Close()

	client, err := NewVannaClient(VannaConfig{
		BaseURL:       server.URL,
		APIKey:        "key-1",
		Model:         "4base",
		AllowDataPeek: true,
		Timeout:       5 * time.Second,
	}, &fakeDataAccess{})
	if err != nil {
		t.Fatalf("NewVannaClient() error = %v", err)
	}

	sql, err := client.Attempt(context.Background(), "top 5 albums")
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if sql != "SELECT Title FROM Album LIMIT 5;" {
		t.Fatalf("Attempt() = %q", sql)
	}
	if gotPayload["question"] != "top 5 albums" {
		t.Fatalf("question = %v", gotPayload["question"])
	}
	if gotPayload["allow_llm_to_see_data"] != true {
		t.Fatal("allow_llm_to_see_data should be sent when a capability is present")
	}
}

func TestVannaAttemptWithoutCapabilityDisablesPeek(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_ = json.NewEncoder(w).Encode(map[string]string{"type": "sql", "text": "SELECT 1;"})
	}))
	defer server.Close()

	client, err := NewVannaClient(VannaConfig{BaseURL: server.URL, APIKey: "k", Model: "4base", AllowDataPeek: true}, nil)
	if err != nil {
		t.Fatalf("NewVannaClient() error = %v", err)
	}
	if _, err := client.Attempt(context.Background(), "q"); err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if gotPayload["allow_llm_to_see_data"] != false {
		t.Fatal("allow_llm_to_see_data must be false without injected data access")
	}
}

func TestVannaAttemptAnswersDataRequest(t *testing.T) {
	data := &fakeDataAccess{}
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if requests == 1 {
			_ = json.NewEncoder(w).Encode(map[string]string{"type": "needs_data", "text": "SELECT * FROM Album LIMIT 5;"})
			return
		}
		if payload["data"] == nil {
			t.Fatal("follow-up request must include peeked data")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"type": "sql", "text": "SELECT Title FROM Album LIMIT 5;"})
	}))
	defer server.Close()

	client, err := NewVannaClient(VannaConfig{BaseURL: server.URL, APIKey: "k", Model: "4base", AllowDataPeek: true}, data)
	if err != nil {
		t.Fatalf("NewVannaClient() error = %v", err)
	}

	sql, err := client.Attempt(context.Background(), "top 5 albums")
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if sql != "SELECT Title FROM Album LIMIT 5;" {
		t.Fatalf("Attempt() = %q", sql)
	}
	if data.lastSQL != "SELECT * FROM Album LIMIT 5;" {
		t.Fatalf("peek SQL = %q", data.lastSQL)
	}
	if requests != 2 {
		t.Fatalf("requests = %d, want 2", requests)
	}
}

func TestVannaAttemptSurfacesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"type": "error", "error": "model not trained"})
	}))
	defer server.Close()

	client, err := NewVannaClient(VannaConfig{BaseURL: server.URL, APIKey: "k", Model: "4base"}, nil)
	if err != nil {
		t.Fatalf("NewVannaClient() error = %v", err)
	}
	if _, err := client.Attempt(context.Background(), "q"); err == nil {
		t.Fatal("Attempt() should surface provider errors")
	}
}

func TestVannaTrainEndpoints(t *testing.T) {
	var paths []string
	var payloads []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		payloads = append(payloads, payload)
		_ = json.NewEncoder(w).Encode(map[string]string{"type": "ok"})
	}))
	defer server.Close()

	client, err := NewVannaClient(VannaConfig{BaseURL: server.URL, APIKey: "k", Model: "4base"}, nil)
	if err != nil {
		t.Fatalf("NewVannaClient() error = %v", err)
	}
	if err := client.TrainDDL(context.Background(), "CREATE TABLE Album (AlbumId INTEGER);"); err != nil {
		t.Fatalf("TrainDDL() error = %v", err)
	}
	if err := client.TrainSQL(context.Background(), "SELECT * FROM Album LIMIT 5;"); err != nil {
		t.Fatalf("TrainSQL() error = %v", err)
	}
	if len(paths) != 2 || paths[0] != "/api/v0/train" || paths[1] != "/api/v0/train" {
		t.Fatalf("paths = %v", paths)
	}
	if payloads[0]["ddl"] == nil || payloads[1]["sql"] == nil {
		t.Fatalf("payloads = %v", payloads)
	}
}

func TestNewVannaClientValidation(t *testing.T) {
	if _, err := NewVannaClient(VannaConfig{APIKey: "k", Model: "m"}, nil); err == nil {
		t.Fatal("missing base URL should fail")
	}
	if _, err := NewVannaClient(VannaConfig{BaseURL: "http://x", Model: "m"}, nil); err == nil {
		t.Fatal("missing api key should fail")
	}
	if _, err := NewVannaClient(VannaConfig{BaseURL: "http://x", APIKey: "k"}, nil); err == nil {
		t.Fatal("missing model should fail")
	}
}
