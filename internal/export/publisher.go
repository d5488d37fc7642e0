package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/storage"
)

// Publisher uploads encoded query results to the object store.
type Publisher struct {
	Store  storage.ObjectStore
	Logger *slog.Logger
	Now    func() time.Time
}

func NewPublisher(store storage.ObjectStore, logger *slog.Logger) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{Store: store, Logger: logger, Now: time.Now}, nil
}

// Publish encodes the table in the requested format and writes it under a
// date-partitioned export key derived from the question fingerprint. It
// returns the object key that was written.
func (p *Publisher) Publish(ctx context.Context, fingerprint string, table query.Table, format string) (string, error) {
	data, err := Encode(table, format)
	if err != nil {
		return "", err
	}
	key, err := storage.BuildExportPath(fingerprint, format, p.Now().UTC())
	if err != nil {
		return "", err
	}
	opts := storage.PutOptions{ContentType: ContentType(format)}
	if _, err := p.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", fmt.Errorf("upload export %s: %w", key, err)
	}
	p.Logger.Info("export published", "key", key, "format", format, "bytes", len(data), "rows", len(table.Rows))
	return key, nil
}
