// Package storage persists run history in badger. Runs and their node
// execution records are stored under ordered key prefixes so history reads
// come back newest-first without secondary indexes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/eleven-am/strand/internal/domain"
	"github.com/eleven-am/strand/internal/ports"
)

var _ ports.HistoryStore = (*HistoryStore)(nil)

const (
	runKeyFmt     = "run:%s:%020d:%s"
	runPtrKeyFmt  = "runptr:%s"
	execKeyFmt    = "exec:%s:%020d:%s"
	execPtrKeyFmt = "execptr:%s:%s"
)

type HistoryStore struct {
	db     *badger.DB
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Open creates a history store backed by badger files under dir.
func Open(dir string, logger *slog.Logger) (*HistoryStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return New(db, logger), nil
}

// OpenInMemory creates an ephemeral store, used by tests and demos.
func OpenInMemory(logger *slog.Logger) (*HistoryStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory history store: %w", err)
	}
	return New(db, logger), nil
}

func New(db *badger.DB, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{
		db:     db,
		logger: logger.With("component", "history-store"),
	}
}

func (s *HistoryStore) StartRun(ctx context.Context, workflowID string, trigger domain.TriggerType) (*domain.Run, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	run := domain.Run{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		TriggerType: trigger,
		Status:      domain.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
		Duration:    "...",
	}

	key := runKey(workflowID, run.StartedAt, run.ID)
	value, err := json.Marshal(run)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), value); err != nil {
			return err
		}
		return txn.Set([]byte(fmt.Sprintf(runPtrKeyFmt, run.ID)), []byte(key))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("run record created",
		"run_id", run.ID,
		"workflow_id", workflowID,
		"trigger", string(trigger),
	)
	return &run, nil
}

// RecordNodeResult upserts a node's execution record within a run. The first
// write fixes the record's position in creation order; later writes for the
// same node replace status, duration and outputs in place.
func (s *HistoryStore) RecordNodeResult(ctx context.Context, runID string, result domain.NodeExecutionResult) error {
	if err := s.guard(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		ptrKey := []byte(fmt.Sprintf(execPtrKeyFmt, runID, result.NodeID))

		var key []byte
		item, err := txn.Get(ptrKey)
		switch {
		case err == nil:
			key, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
			existing, err := txn.Get(key)
			if err == nil {
				var prev domain.NodeExecutionResult
				raw, err := existing.ValueCopy(nil)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &prev); err == nil {
					result.CreatedAt = prev.CreatedAt
				}
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			if result.CreatedAt.IsZero() {
				result.CreatedAt = time.Now().UTC()
			}
			key = []byte(execKey(runID, result.CreatedAt, result.NodeID))
			if err := txn.Set(ptrKey, key); err != nil {
				return err
			}
		default:
			return err
		}

		value, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return txn.Set(key, value)
	})
}

func (s *HistoryStore) FinishRun(ctx context.Context, runID string, status domain.RunStatus, duration string) error {
	if err := s.guard(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key, run, err := loadRunHeader(txn, runID)
		if err != nil {
			return err
		}

		run.Status = status
		run.Duration = duration

		value, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return txn.Set(key, value)
	})
}

func (s *HistoryStore) Run(ctx context.Context, runID string) (*domain.Run, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var run *domain.Run
	err := s.db.View(func(txn *badger.Txn) error {
		_, header, err := loadRunHeader(txn, runID)
		if err != nil {
			return err
		}
		execs, err := loadExecutions(txn, runID)
		if err != nil {
			return err
		}
		header.NodeExecutions = execs
		run = header
		return nil
	})
	return run, err
}

func (s *HistoryStore) History(ctx context.Context, workflowID string) ([]domain.Run, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var runs []domain.Run
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("run:" + workflowID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var run domain.Run
			if err := json.Unmarshal(raw, &run); err != nil {
				return err
			}
			execs, err := loadExecutions(txn, run.ID)
			if err != nil {
				return err
			}
			run.NodeExecutions = execs
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// keys sort oldest-first; history reads newest-first
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

func (s *HistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *HistoryStore) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return nil
}

func loadRunHeader(txn *badger.Txn, runID string) ([]byte, *domain.Run, error) {
	ptr, err := txn.Get([]byte(fmt.Sprintf(runPtrKeyFmt, runID)))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, domain.ErrRunNotFound
		}
		return nil, nil, err
	}
	key, err := ptr.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}

	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, domain.ErrRunNotFound
		}
		return nil, nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}

	var run domain.Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, nil, err
	}
	return key, &run, nil
}

func loadExecutions(txn *badger.Txn, runID string) ([]domain.NodeExecutionResult, error) {
	var execs []domain.NodeExecutionResult
	prefix := []byte("exec:" + runID + ":")
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		raw, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		var exec domain.NodeExecutionResult
		if err := json.Unmarshal(raw, &exec); err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	return execs, nil
}

func runKey(workflowID string, startedAt time.Time, runID string) string {
	return fmt.Sprintf(runKeyFmt, workflowID, startedAt.UnixNano(), runID)
}

func execKey(runID string, createdAt time.Time, nodeID string) string {
	return fmt.Sprintf(execKeyFmt, runID, createdAt.UnixNano(), nodeID)
}
