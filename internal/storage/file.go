package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JSONLStorage appends one JSON object per line to a single archive file.
// Each line is synced before Store returns, so an interrupted run keeps
// every record it reported as archived.
type JSONLStorage struct {
	path    string
	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	written int
	logger  *slog.Logger
}

// NewJSONLStorage opens path for appending. Missing parent directories are
// created.
func NewJSONLStorage(path string, logger *slog.Logger) (*JSONLStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false) // Korean review text and URLs stay readable
	return &JSONLStorage{
		path:   path,
		file:   f,
		enc:    enc,
		logger: logger.With("component", "jsonl_storage", "path", path),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("archive %s is closed", s.path)
	}
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode JSONL: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync archive: %w", err)
	}
	s.written++
	s.logger.Debug("analysis archived", "id", rec.ID, "status", rec.Status, "records", s.written)
	return nil
}

func (s *JSONLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.logger.Info("archive closed", "records", s.written)
	return err
}
