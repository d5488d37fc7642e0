package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/cache"
	"github.com/askdb/askdb/internal/export"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/query"
)

type askRequest struct {
	Question string `json:"question"`
	Format   string `json:"format"`
}

type askResponse struct {
	Question    string         `json:"question"`
	Fingerprint string         `json:"fingerprint"`
	SQL         string         `json:"sql"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model,omitempty"`
	Cached      bool           `json:"cached"`
	Columns     []string       `json:"columns"`
	Rows        [][]any        `json:"rows"`
	RowCount    int            `json:"row_count"`
	Stats       map[string]any `json:"stats"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Resolver == nil || deps.Executor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "ask dependencies are not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	format := request.Format
	if format == "" {
		format = "json"
	}
	if format != "json" && format != export.FormatCSV && format != export.FormatTSV && format != export.FormatParquet {
		writeError(r.Context(), w, http.StatusBadRequest, "FORMAT_NOT_SUPPORTED", fmt.Sprintf("unsupported format %q", format), false, nil)
		return
	}

	started := time.Now()
	result, err := deps.Resolver.Resolve(r.Context(), request.Question)
	if err != nil {
		handleResolutionError(r, w, err)
		return
	}

	table, err := deps.Executor.Execute(r.Context(), result.SQL)
	if err != nil {
		handleExecutionError(r, w, err)
		return
	}

	if format != "json" {
		data, err := export.Encode(table, format)
		if err != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_ENCODE_FAILED", "failed to encode result", true, map[string]any{"details": err.Error()})
			return
		}
		w.Header().Set("Content-Type", export.ContentType(format))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=query_results.%s", format))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Question:    request.Question,
		Fingerprint: cache.Fingerprint(request.Question),
		SQL:         result.SQL,
		Provider:    result.Provider,
		Model:       result.Model,
		Cached:      result.Cached,
		Columns:     table.Columns,
		Rows:        table.Rows,
		RowCount:    len(table.Rows),
		Stats: map[string]any{
			"duration_ms": time.Since(started).Milliseconds(),
		},
	})
}

func handleResolutionError(r *http.Request, w http.ResponseWriter, err error) {
	var resolutionErr *nl2sql.ResolutionError
	if errors.As(err, &resolutionErr) {
		attempts := make([]map[string]any, 0, len(resolutionErr.Attempts))
		for _, attempt := range resolutionErr.Attempts {
			entry := map[string]any{"tier": attempt.Tier}
			if attempt.Err != nil {
				entry["error"] = attempt.Err.Error()
			}
			attempts = append(attempts, entry)
		}
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATION_FAILED", "no provider produced usable SQL", true, map[string]any{"attempts": attempts})
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "TRANSLATION_ERROR", err.Error(), true, nil)
}

func handleExecutionError(r *http.Request, w http.ResponseWriter, err error) {
	var execErr *query.ExecutionError
	if errors.As(err, &execErr) {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "EXECUTION_FAILED", "generated SQL failed to execute", false, map[string]any{
			"sql":     execErr.SQL,
			"details": execErr.Err.Error(),
		})
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "QUERY_ERROR", err.Error(), true, nil)
}
