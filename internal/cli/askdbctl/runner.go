package askdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("askdbctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "askdb API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	format := fs.String("format", "", "result format for ask/export (json, csv, tsv, parquet)")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	switch command {
	case "health", "ready", "schema":
		path := "/v1/" + command
		return runGet(ctx, client, *baseURL, path, *apiKey, stdout, stderr)
	case "ask":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			return 2
		}
		return runAsk(ctx, client, *baseURL, *apiKey, question, *format, stdout, stderr)
	case "export":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "export requires a question")
			return 2
		}
		return runExport(ctx, client, *baseURL, *apiKey, question, *format, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

func runGet(ctx context.Context, client *http.Client, baseURL, path, apiKey string, stdout, stderr io.Writer) int {
	endpoint := strings.TrimRight(baseURL, "/") + path
	code, contentType, body, err := doRequest(ctx, client, http.MethodGet, endpoint, apiKey, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return 1
	}
	printBody(stdout, contentType, body)
	return 0
}

func runAsk(ctx context.Context, client *http.Client, baseURL, apiKey, question, format string, stdout, stderr io.Writer) int {
	payload := map[string]string{"question": question}
	if format != "" {
		payload["format"] = format
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/v1/ask"
	code, contentType, body, err := doJSONPost(ctx, client, endpoint, apiKey, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		if isExecutionFailure(body) {
			_, _ = fmt.Fprintln(stderr, "no results or query failed")
			return 1
		}
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return 1
	}

	if format == "" || format == "json" {
		var response struct {
			RowCount int `json:"row_count"`
		}
		if err := json.Unmarshal(body, &response); err == nil && response.RowCount == 0 {
			_, _ = fmt.Fprintln(stdout, "no results or query failed")
			return 0
		}
	}
	printBody(stdout, contentType, body)
	return 0
}

func runExport(ctx context.Context, client *http.Client, baseURL, apiKey, question, format string, stdout, stderr io.Writer) int {
	payload := map[string]string{"question": question}
	if format != "" {
		payload["format"] = format
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/v1/export/publish"
	code, contentType, body, err := doJSONPost(ctx, client, endpoint, apiKey, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return 1
	}
	printBody(stdout, contentType, body)
	return 0
}

func doJSONPost(ctx context.Context, client *http.Client, url, apiKey string, payload any) (int, string, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, "", nil, err
	}
	return doRequest(ctx, client, http.MethodPost, url, apiKey, data)
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, body []byte) (int, string, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, "", nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, err
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), responseBody, nil
}

func isExecutionFailure(body []byte) bool {
	var response struct {
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return false
	}
	return response.ErrorCode == "EXECUTION_FAILED"
}

func printBody(stdout io.Writer, contentType string, body []byte) {
	if strings.HasPrefix(contentType, "application/json") {
		if pretty, ok := prettyJSON(body); ok {
			_, _ = fmt.Fprintln(stdout, pretty)
			return
		}
	}
	if len(body) > 0 {
		_, _ = stdout.Write(body)
	}
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: askdbctl [flags] <command> [question...]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health              GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready               GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema              GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  ask <question>      POST /v1/ask")
	_, _ = fmt.Fprintln(w, "  export <question>   POST /v1/export/publish")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
