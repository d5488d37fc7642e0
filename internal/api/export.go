package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/cache"
	"github.com/askdb/askdb/internal/export"
)

type publishRequest struct {
	Question string `json:"question"`
	Format   string `json:"format"`
}

type publishResponse struct {
	Key      string `json:"key"`
	Format   string `json:"format"`
	SQL      string `json:"sql"`
	RowCount int    `json:"row_count"`
}

func handlePublish(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Resolver == nil || deps.Executor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "ask dependencies are not configured", false, nil)
		return
	}
	if deps.Publisher == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "object store publishing is not configured", false, nil)
		return
	}

	var request publishRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid publish request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	format := request.Format
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatTSV && format != export.FormatParquet {
		writeError(r.Context(), w, http.StatusBadRequest, "FORMAT_NOT_SUPPORTED", "format must be csv, tsv or parquet", false, nil)
		return
	}

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

	key, err := deps.Publisher.Publish(r.Context(), cache.Fingerprint(request.Question), table, format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_PUBLISH_FAILED", "failed to publish result", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, publishResponse{
		Key:      key,
		Format:   format,
		SQL:      result.SQL,
		RowCount: len(table.Rows),
	})
}
