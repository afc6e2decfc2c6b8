package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/metadata"
)

// GetFile retrieves a file record by id.
// Returns ErrNotFound if the id doesn't exist.
func (s *Store) GetFile(ctx context.Context, id string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, metadata.NewInvalidArgumentError("file id must not be empty")
	}

	var record *metadata.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyFile(id))
		if err == badger.ErrKeyNotFound {
			return metadata.NewNotFoundError(id, "file")
		}
		if err != nil {
			return fmt.Errorf("failed to get file: %w", err)
		}

		return item.Value(func(val []byte) error {
			var decErr error
			record, decErr = decodeFileRecord(val)
			return decErr
		})
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetFileByPath resolves a record through the path index.
func (s *Store) GetFileByPath(ctx context.Context, fullPath string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fullPath == "" {
		return nil, metadata.NewInvalidArgumentError("path must not be empty")
	}

	var record *metadata.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyFilePath(fullPath))
		if err == badger.ErrKeyNotFound {
			return metadata.NewNotFoundError(fullPath, "file")
		}
		if err != nil {
			return fmt.Errorf("failed to resolve path index: %w", err)
		}

		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}

		docItem, err := txn.Get(keyFile(id))
		if err == badger.ErrKeyNotFound {
			// Stale index entry; treat as missing.
			return metadata.NewNotFoundError(fullPath, "file")
		}
		if err != nil {
			return fmt.Errorf("failed to get file: %w", err)
		}

		return docItem.Value(func(val []byte) error {
			var decErr error
			record, decErr = decodeFileRecord(val)
			return decErr
		})
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListFiles returns all records matching the filter.
//
// Indexed fields (ParentID, Type, Checksum, FullPath) narrow the scan to the
// matching index prefix; remaining filter fields are applied in memory.
func (s *Store) ListFiles(ctx context.Context, filter metadata.FileFilter) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if filter.FullPath != "" {
		record, err := s.GetFileByPath(ctx, filter.FullPath)
		if metadata.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if matchesFilter(record, filter) {
			return []*metadata.FileRecord{record}, nil
		}
		return nil, nil
	}

	var records []*metadata.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		switch {
		case filter.ParentID != "":
			ids, err := scanIndexSuffixes(txn, keyFileParentPrefix(filter.ParentID))
			if err != nil {
				return err
			}
			return collectFiles(txn, ids, filter, &records)

		case filter.Checksum != "":
			ids, err := scanIndexSuffixes(txn, []byte(prefixFileChecksum+filter.Checksum+":"))
			if err != nil {
				return err
			}
			return collectFiles(txn, ids, filter, &records)

		case filter.Type != "":
			ids, err := scanIndexSuffixes(txn, []byte(prefixFileType+string(filter.Type)+":"))
			if err != nil {
				return err
			}
			return collectFiles(txn, ids, filter, &records)

		default:
			// Full collection scan.
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			prefix := []byte(prefixFile)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				err := it.Item().Value(func(val []byte) error {
					record, err := decodeFileRecord(val)
					if err != nil {
						return err
					}
					if matchesFilter(record, filter) {
						records = append(records, record)
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// AddFile inserts a new record and its index entries.
// Fails with ErrAlreadyExists when the id is taken (no upsert).
func (s *Store) AddFile(ctx context.Context, record *metadata.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || record.ID == "" {
		return metadata.NewInvalidArgumentError("file record must have an id")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyFile(record.ID)); err == nil {
			return metadata.NewAlreadyExistsError(record.ID, "file")
		} else if err != badger.ErrKeyNotFound {
			return fmt.Errorf("failed to check for existing file: %w", err)
		}

		data, err := encodeFileRecord(record)
		if err != nil {
			return err
		}
		if err := txn.Set(keyFile(record.ID), data); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}

		return writeFileIndexes(txn, record)
	})
	if err != nil {
		return err
	}

	logger.DebugCtx(ctx, "file record added",
		logger.KeyFileID, record.ID,
		logger.KeyStatus, string(record.Status))
	return nil
}

// ReplaceFile overwrites an existing record.
// Fails with ErrNotFound when the id is absent (no upsert). Index entries
// of the previous version are removed in the same transaction.
func (s *Store) ReplaceFile(ctx context.Context, record *metadata.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || record.ID == "" {
		return metadata.NewInvalidArgumentError("file record must have an id")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyFile(record.ID))
		if err == badger.ErrKeyNotFound {
			return metadata.NewNotFoundError(record.ID, "file")
		}
		if err != nil {
			return fmt.Errorf("failed to get existing file: %w", err)
		}

		var previous *metadata.FileRecord
		if err := item.Value(func(val []byte) error {
			var decErr error
			previous, decErr = decodeFileRecord(val)
			return decErr
		}); err != nil {
			return err
		}

		if err := deleteFileIndexes(txn, previous); err != nil {
			return err
		}

		data, err := encodeFileRecord(record)
		if err != nil {
			return err
		}
		if err := txn.Set(keyFile(record.ID), data); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}

		return writeFileIndexes(txn, record)
	})
}

// DeleteFile removes a record and its index entries.
// Deleting a missing id returns (false, nil).
func (s *Store) DeleteFile(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if id == "" {
		return false, metadata.NewInvalidArgumentError("file id must not be empty")
	}

	deleted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyFile(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get file: %w", err)
		}

		var record *metadata.FileRecord
		if err := item.Value(func(val []byte) error {
			var decErr error
			record, decErr = decodeFileRecord(val)
			return decErr
		}); err != nil {
			return err
		}

		if err := deleteFileIndexes(txn, record); err != nil {
			return err
		}
		if err := txn.Delete(keyFile(id)); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}

		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

// writeFileIndexes writes the secondary index entries for a record.
func writeFileIndexes(txn *badger.Txn, record *metadata.FileRecord) error {
	if record.FullPath != "" {
		if err := txn.Set(keyFilePath(record.FullPath), []byte(record.ID)); err != nil {
			return fmt.Errorf("failed to write path index: %w", err)
		}
	}
	if record.ParentID != "" {
		if err := txn.Set(keyFileParent(record.ParentID, record.ID), nil); err != nil {
			return fmt.Errorf("failed to write parent index: %w", err)
		}
	}
	if record.Type != "" {
		if err := txn.Set(keyFileType(record.Type, record.ID), nil); err != nil {
			return fmt.Errorf("failed to write type index: %w", err)
		}
	}
	if record.Checksum != "" {
		if err := txn.Set(keyFileChecksum(record.Checksum, record.ID), nil); err != nil {
			return fmt.Errorf("failed to write checksum index: %w", err)
		}
	}
	return nil
}

// deleteFileIndexes removes the secondary index entries of a record version.
func deleteFileIndexes(txn *badger.Txn, record *metadata.FileRecord) error {
	if record.FullPath != "" {
		if err := txn.Delete(keyFilePath(record.FullPath)); err != nil {
			return fmt.Errorf("failed to delete path index: %w", err)
		}
	}
	if record.ParentID != "" {
		if err := txn.Delete(keyFileParent(record.ParentID, record.ID)); err != nil {
			return fmt.Errorf("failed to delete parent index: %w", err)
		}
	}
	if record.Type != "" {
		if err := txn.Delete(keyFileType(record.Type, record.ID)); err != nil {
			return fmt.Errorf("failed to delete type index: %w", err)
		}
	}
	if record.Checksum != "" {
		if err := txn.Delete(keyFileChecksum(record.Checksum, record.ID)); err != nil {
			return fmt.Errorf("failed to delete checksum index: %w", err)
		}
	}
	return nil
}

// scanIndexSuffixes returns the suffix after the prefix for every key under
// the prefix. For "<prefix><id>" style index keys this yields the ids.
func scanIndexSuffixes(txn *badger.Txn, prefix []byte) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var suffixes []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		suffixes = append(suffixes, string(key[len(prefix):]))
	}
	return suffixes, nil
}

// collectFiles loads documents for the ids and appends matches to out.
func collectFiles(txn *badger.Txn, ids []string, filter metadata.FileFilter, out *[]*metadata.FileRecord) error {
	for _, id := range ids {
		item, err := txn.Get(keyFile(id))
		if err == badger.ErrKeyNotFound {
			continue // stale index entry
		}
		if err != nil {
			return fmt.Errorf("failed to get file %s: %w", id, err)
		}

		err = item.Value(func(val []byte) error {
			record, decErr := decodeFileRecord(val)
			if decErr != nil {
				return decErr
			}
			if matchesFilter(record, filter) {
				*out = append(*out, record)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// matchesFilter applies the non-driving filter fields in memory.
func matchesFilter(record *metadata.FileRecord, filter metadata.FileFilter) bool {
	if filter.ParentID != "" && record.ParentID != filter.ParentID {
		return false
	}
	if filter.Type != "" && record.Type != filter.Type {
		return false
	}
	if filter.Checksum != "" && record.Checksum != filter.Checksum {
		return false
	}
	if filter.Status != "" && record.Status != filter.Status {
		return false
	}
	return true
}
