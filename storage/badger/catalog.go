package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/storage"
)

// CatalogRepository implements storage.CatalogRepository for BadgerDB.
type CatalogRepository struct {
	backend *Backend
}

var _ storage.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(backend *Backend) *CatalogRepository {
	return &CatalogRepository{
		backend: backend,
	}
}

// PutDocument stores or replaces the entry for entry.Name. Entries under
// other names that point at the same Path are removed in the same
// transaction: names that sanitize to one file share that file, and only
// the last download is on disk.
func (r *CatalogRepository) PutDocument(ctx context.Context, entry *core.CatalogEntry) error {
	if entry == nil || entry.Name == "" {
		return fmt.Errorf("%w: %w", storage.ErrInvalidEntry, core.ErrEmptyDocumentName)
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if entry.Path != "" {
			stale, err := samePathKeys(tx, entry)
			if err != nil {
				return err
			}
			for _, key := range stale {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
		}
		if err := tx.Set(makeCatalogKey(entry.Name), storage.MarshalCatalogEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// samePathKeys returns the keys of entries other than entry that share its Path.
func samePathKeys(tx *badger.Txn, entry *core.CatalogEntry) ([][]byte, error) {
	var keys [][]byte
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(catalogPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		err := item.Value(func(val []byte) error {
			other, err := storage.UnmarshalCatalogEntry(val)
			if err != nil {
				return err
			}
			if other.Path == entry.Path && other.Name != entry.Name {
				keys = append(keys, item.KeyCopy(nil))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// GetDocument retrieves an entry by document name.
func (r *CatalogRepository) GetDocument(ctx context.Context, name string) (*core.CatalogEntry, error) {
	var entry *core.CatalogEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCatalogKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			entry, unmarshalErr = storage.UnmarshalCatalogEntry(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListDocuments returns all entries ordered by name.
func (r *CatalogRepository) ListDocuments(ctx context.Context) ([]*core.CatalogEntry, error) {
	entries := []*core.CatalogEntry{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(catalogPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				entry, err := storage.UnmarshalCatalogEntry(val)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
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
	return entries, nil
}
