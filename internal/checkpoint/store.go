package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/hash/sha256"
	"github.com/JakeFAU/batch-screener/internal/metrics"
	"github.com/JakeFAU/batch-screener/internal/screener"
	"github.com/JakeFAU/batch-screener/internal/storage"
)

// DefaultName is the blob name used when none is configured.
const DefaultName = "batch_progress.json"

// Store loads and saves checkpoints through a storage backend.
type Store struct {
	backend  storage.Backend
	name     string
	digester Digester
	logger   *zap.Logger

	mu sync.Mutex
}

// NewStore wires a Store to backend under the given blob name.
func NewStore(backend storage.Backend, name string, logger *zap.Logger) *Store {
	if name == "" {
		name = DefaultName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:  backend,
		name:     name,
		digester: sha256.New(),
		logger:   logger.With(zap.String("checkpoint", name)),
	}
}

// Name returns the blob name this store reads and writes.
func (s *Store) Name() string {
	return s.name
}

// Load returns the persisted checkpoint. Any failure is logged and reported
// as (nil, false) so the caller starts fresh.
func (s *Store) Load(ctx context.Context) (*screener.Checkpoint, bool) {
	data, err := s.backend.Read(ctx, s.name)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("no checkpoint found")
		return nil, false
	}
	if err != nil {
		s.logger.Warn("checkpoint unreadable, starting fresh", zap.Error(err))
		return nil, false
	}
	cp, err := Decode(data, s.digester)
	if err != nil {
		s.logger.Warn("checkpoint rejected, starting fresh", zap.Error(err))
		return nil, false
	}
	s.logger.Info("checkpoint loaded",
		zap.String("run_id", cp.RunID),
		zap.Time("saved_at", cp.Timestamp),
		zap.Int("processed", len(cp.Processed)),
		zap.Int("results", len(cp.Results)),
	)
	return cp, true
}

// Save encodes cp and replaces the persisted blob. The error is logged and
// returned; callers treat it as non-fatal.
func (s *Store) Save(ctx context.Context, cp screener.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.save(ctx, cp)
	metrics.ObserveCheckpointSave(err)
	if err != nil {
		s.logger.Error("checkpoint save failed", zap.Error(err))
		return err
	}
	s.logger.Debug("checkpoint saved",
		zap.Int("processed", len(cp.Processed)),
		zap.Int("results", len(cp.Results)),
	)
	return nil
}

func (s *Store) save(ctx context.Context, cp screener.Checkpoint) error {
	data, err := Encode(cp, s.digester)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, s.name, data); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Clear deletes the persisted blob.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, s.name); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	s.logger.Info("checkpoint cleared")
	return nil
}
