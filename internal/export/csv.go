package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/askdb/askdb/internal/query"
)

// EncodeCSV renders a table as RFC 4180 CSV with a header row.
func EncodeCSV(table query.Table) ([]byte, error) {
	return encodeDelimited(table, ',')
}

// EncodeTSV renders a table as tab-separated values with a header row.
func EncodeTSV(table query.Table) ([]byte, error) {
	return encodeDelimited(table, '\t')
}

func encodeDelimited(table query.Table, delimiter rune) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Comma = delimiter

	if err := writer.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("row has %d cells, expected %d", len(row), len(table.Columns))
		}
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseCSV reads a table back from CSV produced by EncodeCSV. All cells
// come back as strings.
func ParseCSV(data []byte) (query.Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		return query.Table{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return query.Table{}, fmt.Errorf("parse csv: missing header row")
	}
	table := query.Table{Columns: records[0], Rows: make([][]any, 0, len(records)-1)}
	for _, record := range records[1:] {
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = cell
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func formatCell(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
