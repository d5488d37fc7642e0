// Package export encodes query results for download and optionally
// publishes them to the object store.
package export

import (
	"fmt"

	"github.com/askdb/askdb/internal/query"
)

const (
	FormatCSV     = "csv"
	FormatTSV     = "tsv"
	FormatParquet = "parquet"
)

// Encode renders a table in the named format.
func Encode(table query.Table, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return EncodeCSV(table)
	case FormatTSV:
		return EncodeTSV(table)
	case FormatParquet:
		return EncodeParquet(table)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// ContentType returns the MIME type served for a format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatTSV:
		return "text/tab-separated-values"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
