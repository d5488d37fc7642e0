package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type VannaConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	AllowDataPeek bool
	Timeout       time.Duration
}

// VannaClient talks to a hosted NL-to-SQL service. It doubles as the
// training endpoint for the one-time trainer.
type VannaClient struct {
	baseURL       string
	apiKey        string
	model         string
	allowDataPeek bool
	client        *http.Client
	data          DataAccess
}

func NewVannaClient(cfg VannaConfig, data DataAccess) (*VannaClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VannaClient{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		model:         model,
		allowDataPeek: cfg.AllowDataPeek,
		client:        &http.Client{Timeout: timeout},
		data:          data,
	}, nil
}

func (c *VannaClient) Name() string { return "vanna" }

func (c *VannaClient) Model() string { return c.model }

func (c *VannaClient) Attempt(ctx context.Context, question string) (string, error) {
	allowPeek := c.allowDataPeek && c.data != nil
	reply, err := c.post(ctx, "/api/v0/generate_sql", map[string]any{
		"model":                 c.model,
		"question":              question,
		"allow_llm_to_see_data": allowPeek,
	})
	if err != nil {
		return "", err
	}

	if reply.Type == "needs_data" && allowPeek {
		reply, err = c.answerDataRequest(ctx, question, reply.Text)
		if err != nil {
			return "", err
		}
	}
	if reply.Type == "error" || reply.Error != "" {
		return "", fmt.Errorf("provider error: %s", firstNonEmpty(reply.Error, reply.Text))
	}
	return reply.Text, nil
}

// answerDataRequest runs the intermediate SQL the service asked for
// through the injected data-access capability and resubmits the
// question with the peeked rows attached.
func (c *VannaClient) answerDataRequest(ctx context.Context, question, peekSQL string) (vannaReply, error) {
	columns, rows, err := c.data.Run(ctx, peekSQL)
	if err != nil {
		return vannaReply{}, fmt.Errorf("run data peek query: %w", err)
	}
	return c.post(ctx, "/api/v0/generate_sql", map[string]any{
		"model":                 c.model,
		"question":              question,
		"allow_llm_to_see_data": true,
		"data": map[string]any{
			"sql":     peekSQL,
			"columns": columns,
			"rows":    rows,
		},
	})
}

func (c *VannaClient) TrainDDL(ctx context.Context, ddl string) error {
	_, err := c.post(ctx, "/api/v0/train", map[string]any{
		"model": c.model,
		"ddl":   ddl,
	})
	return err
}

func (c *VannaClient) TrainSQL(ctx context.Context, sqlText string) error {
	_, err := c.post(ctx, "/api/v0/train", map[string]any{
		"model": c.model,
		"sql":   sqlText,
	})
	return err
}

type vannaReply struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (c *VannaClient) post(ctx context.Context, path string, payload map[string]any) (vannaReply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return vannaReply{}, fmt.Errorf("marshal provider payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return vannaReply{}, fmt.Errorf("build provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Vanna-Key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return vannaReply{}, fmt.Errorf("request provider: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return vannaReply{}, fmt.Errorf("read provider response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return vannaReply{}, fmt.Errorf("provider request failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed vannaReply
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return vannaReply{}, fmt.Errorf("decode provider response: %w", err)
	}
	return parsed, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
