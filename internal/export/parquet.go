package export

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/query"
)

// EncodeParquet renders a table as a parquet file. Result columns have no
// static type information, so every column is written as an optional
// string and NULL cells stay NULL.
func EncodeParquet(table query.Table) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}

	group := parquet.Group{}
	for _, column := range table.Columns {
		group[column] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("query_results", group)

	rows := make([]map[string]any, 0, len(table.Rows))
	for _, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("row has %d cells, expected %d", len(row), len(table.Columns))
		}
		record := make(map[string]any, len(row))
		for i, cell := range row {
			if cell == nil {
				continue
			}
			record[table.Columns[i]] = formatCell(cell)
		}
		rows = append(rows, record)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
