package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/storage"
)

// LedgerRepository implements storage.LedgerRepository for BadgerDB.
type LedgerRepository struct {
	backend *Backend
	rowSeq  *badger.Sequence
}

var _ storage.LedgerRepository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(backend *Backend) (*LedgerRepository, error) {
	rowSeq, err := backend.GetSequence(ledgerRowSeq)
	if err != nil {
		return nil, err
	}

	return &LedgerRepository{
		backend: backend,
		rowSeq:  rowSeq,
	}, nil
}

// Close releases the row sequence.
func (r *LedgerRepository) Close() error {
	return r.rowSeq.Release()
}

func checkRunID(runID string) error {
	if runID == "" || strings.Contains(runID, ":") {
		return fmt.Errorf("%w: run id %q", storage.ErrInvalidEntry, runID)
	}
	return nil
}

// AppendLedgerRows stores rows for a run in append order.
func (r *LedgerRepository) AppendLedgerRows(ctx context.Context, runID string, rows ...*core.LedgerRow) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	for _, row := range rows {
		if err := core.ValidateLedgerRow(row); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, row := range rows {
			seq, err := r.rowSeq.Next()
			if err != nil {
				return err
			}
			if err := tx.Set(makeLedgerRowKey(runID, seq), storage.MarshalLedgerRow(row)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetLedgerRows returns a run's rows in append order.
func (r *LedgerRepository) GetLedgerRows(ctx context.Context, runID string) ([]*core.LedgerRow, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}

	rows := []*core.LedgerRow{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeLedgerRunPrefix(runID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				row, err := storage.UnmarshalLedgerRow(val)
				if err != nil {
					return err
				}
				rows = append(rows, row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveRun stores or replaces a run summary.
func (r *LedgerRepository) SaveRun(ctx context.Context, run *core.RunInfo) error {
	if run == nil {
		return fmt.Errorf("%w: nil run", storage.ErrInvalidEntry)
	}
	if err := checkRunID(run.ID); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeRunKey(run.ID), storage.MarshalRunInfo(run)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRun retrieves a run summary by ID.
func (r *LedgerRepository) GetRun(ctx context.Context, runID string) (*core.RunInfo, error) {
	var run *core.RunInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRunKey(runID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			run, unmarshalErr = storage.UnmarshalRunInfo(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns every run summary ordered by start time, oldest first.
func (r *LedgerRepository) ListRuns(ctx context.Context) ([]*core.RunInfo, error) {
	var runs []*core.RunInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runInfoPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				run, err := storage.UnmarshalRunInfo(val)
				if err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(runs, func(a, b *core.RunInfo) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return runs, nil
}
