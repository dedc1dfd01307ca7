package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Record is one archived analysis.
type Record struct {
	ID         string              `json:"id"                   bson:"_id"`
	URL        string              `json:"url"                  bson:"url"`
	Platform   types.Platform      `json:"platform"             bson:"platform"`
	ProductID  string              `json:"product_id"           bson:"product_id"`
	Status     types.Status        `json:"status"               bson:"status"`
	Result     *types.Result       `json:"result"               bson:"result"`
	Narratives []*types.Narratives `json:"narratives,omitempty" bson:"narratives,omitempty"`
	Outputs    []string            `json:"outputs,omitempty"    bson:"outputs,omitempty"`
	CreatedAt  time.Time           `json:"created_at"           bson:"created_at"`
}

// NewRecord builds an archive record for a finished run.
func NewRecord(id, rawURL string, r *types.Result, narratives []*types.Narratives, outputs []string) *Record {
	rec := &Record{
		ID:         id,
		URL:        rawURL,
		Result:     r,
		Narratives: narratives,
		Outputs:    outputs,
		CreatedAt:  time.Now().UTC(),
	}
	if r != nil {
		rec.Status = r.Status
		if r.Identity != nil {
			rec.Platform = r.Identity.Platform
			rec.ProductID = r.Identity.ProductID
		}
	}
	return rec
}

// Storage is the interface for all archive backends.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, rec *Record) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New opens the configured backends. With none configured it returns a
// backend that discards records.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (Storage, error) {
	var backends []Storage
	for _, name := range cfg.Backends {
		var (
			s   Storage
			err error
		)
		switch name {
		case "jsonl":
			s, err = NewJSONLStorage(cfg.Path, logger)
		case "mongodb":
			s, err = NewMongoStorage(ctx, cfg.MongoURI, cfg.Database, cfg.Collection, logger)
		default:
			err = fmt.Errorf("unsupported storage backend: %s", name)
		}
		if err != nil {
			for _, b := range backends {
				b.Close()
			}
			return nil, err
		}
		backends = append(backends, s)
	}

	switch len(backends) {
	case 0:
		return Discard{}, nil
	case 1:
		return backends[0], nil
	default:
		return NewMultiStorage(backends, logger), nil
	}
}

// Discard drops every record.
type Discard struct{}

func (Discard) Store(context.Context, *Record) error { return nil }
func (Discard) Close() error                         { return nil }
func (Discard) Name() string                         { return "none" }
