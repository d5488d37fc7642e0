package schema

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/storage"
)

// Provisioner downloads the schema script to local storage exactly
// once. A destination that already exists is never re-fetched or
// rewritten; the script is immutable after the first download.
type Provisioner struct {
	HTTPClient  *http.Client
	ObjectStore storage.ObjectStore
	Logger      *slog.Logger
}

func NewProvisioner(timeout time.Duration, store storage.ObjectStore, logger *slog.Logger) *Provisioner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Provisioner{
		HTTPClient:  &http.Client{Timeout: timeout},
		ObjectStore: store,
		Logger:      logger,
	}
}

// Ensure fetches source into destination unless destination already
// exists, and returns the destination path. Sources may be http(s)
// URLs or s3://bucket/key references served by the configured object
// store.
func (p *Provisioner) Ensure(ctx context.Context, source, destination string) (string, error) {
	if strings.TrimSpace(destination) == "" {
		return "", fmt.Errorf("schema destination is required")
	}
	if _, err := os.Stat(destination); err == nil {
		return destination, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat schema destination: %w", err)
	}

	body, err := p.open(ctx, source)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	if err := writeFile(destination, body); err != nil {
		return "", err
	}
	if p.Logger != nil {
		p.Logger.InfoContext(ctx, "schema script downloaded",
			slog.String("source", source),
			slog.String("destination", destination),
		)
	}
	return destination, nil
}

func (p *Provisioner) open(ctx context.Context, source string) (io.ReadCloser, error) {
	parsed, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return nil, fmt.Errorf("parse schema source %q: %w", source, err)
	}

	switch parsed.Scheme {
	case "http", "https":
		return p.fetchHTTP(ctx, parsed.String())
	case "s3":
		if p.ObjectStore == nil {
			return nil, fmt.Errorf("schema source %q requires an object store", source)
		}
		key := strings.TrimPrefix(parsed.Path, "/")
		if key == "" {
			key = parsed.Host
		}
		reader, err := p.ObjectStore.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("fetch schema object %q: %w", key, err)
		}
		return reader, nil
	default:
		return nil, fmt.Errorf("unsupported schema source scheme %q", parsed.Scheme)
	}
}

func (p *Provisioner) fetchHTTP(ctx context.Context, source string) (io.ReadCloser, error) {
	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build schema request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch schema %q: %w", source, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch schema %q: unexpected status %d", source, resp.StatusCode)
	}
	return resp.Body, nil
}

// writeFile lands the script via a temp file and rename so a failed
// download never leaves a truncated schema behind.
func writeFile(destination string, body io.Reader) error {
	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".schema-*.sql")
	if err != nil {
		return fmt.Errorf("create schema temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write schema script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close schema temp file: %w", err)
	}
	if err := os.Rename(tmpName, destination); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("finalize schema script: %w", err)
	}
	return nil
}
