package badger

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/metadata"
)

// GetChunk retrieves a chunk record by id.
func (s *Store) GetChunk(ctx context.Context, id string) (*metadata.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, metadata.NewInvalidArgumentError("chunk id must not be empty")
	}

	var record *metadata.ChunkRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyChunk(id))
		if err == badger.ErrKeyNotFound {
			return metadata.NewNotFoundError(id, "chunk")
		}
		if err != nil {
			return fmt.Errorf("failed to get chunk: %w", err)
		}

		return item.Value(func(val []byte) error {
			var decErr error
			record, decErr = decodeChunkRecord(val)
			return decErr
		})
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListChunksByFile returns the file's chunks in ascending sequence order.
//
// Order comes from the zero-padded sequence in the per-file index key, so
// no sort pass is needed after the scan.
func (s *Store) ListChunksByFile(ctx context.Context, fileID string) ([]*metadata.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fileID == "" {
		return nil, metadata.NewInvalidArgumentError("file id must not be empty")
	}

	var records []*metadata.ChunkRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := keyChunkFilePrefix(fileID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var chunkID string
			if err := it.Item().Value(func(val []byte) error {
				chunkID = string(val)
				return nil
			}); err != nil {
				return err
			}

			item, err := txn.Get(keyChunk(chunkID))
			if err == badger.ErrKeyNotFound {
				continue // stale index entry
			}
			if err != nil {
				return fmt.Errorf("failed to get chunk %s: %w", chunkID, err)
			}

			if err := item.Value(func(val []byte) error {
				record, decErr := decodeChunkRecord(val)
				if decErr != nil {
					return decErr
				}
				records = append(records, record)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// ListChunksCreatedSince returns chunks created at or after the given time,
// oldest first. The creation-time index makes this a bounded scan rather
// than a walk over every record.
func (s *Store) ListChunksCreatedSince(ctx context.Context, since time.Time) ([]*metadata.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []*metadata.ChunkRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixChunkCreated)
		// Index key layout is kc:<19-digit nanos>:<chunkId>, so the id
		// starts at a fixed offset.
		idOffset := len(prefixChunkCreated) + 19 + 1
		for it.Seek(keyChunkCreatedSeek(since)); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if len(key) <= idOffset {
				continue
			}
			chunkID := string(key[idOffset:])

			item, err := txn.Get(keyChunk(chunkID))
			if err == badger.ErrKeyNotFound {
				continue // stale index entry
			}
			if err != nil {
				return fmt.Errorf("failed to get chunk %s: %w", chunkID, err)
			}

			if err := item.Value(func(val []byte) error {
				record, decErr := decodeChunkRecord(val)
				if decErr != nil {
					return decErr
				}
				records = append(records, record)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// ListAllChunks returns every chunk record in the store.
func (s *Store) ListAllChunks(ctx context.Context) ([]*metadata.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []*metadata.ChunkRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixChunk)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				record, decErr := decodeChunkRecord(val)
				if decErr != nil {
					return decErr
				}
				records = append(records, record)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// AddChunk inserts a new record plus its per-file and per-provider index
// entries. Fails with ErrAlreadyExists when the id is taken.
func (s *Store) AddChunk(ctx context.Context, record *metadata.ChunkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || record.ID == "" {
		return metadata.NewInvalidArgumentError("chunk record must have an id")
	}
	if record.FileID == "" {
		return metadata.NewInvalidArgumentError("chunk record must have a file id")
	}
	if record.Sequence < 0 {
		return metadata.NewInvalidArgumentError("chunk sequence must not be negative")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyChunk(record.ID)); err == nil {
			return metadata.NewAlreadyExistsError(record.ID, "chunk")
		} else if err != badger.ErrKeyNotFound {
			return fmt.Errorf("failed to check for existing chunk: %w", err)
		}

		data, err := encodeChunkRecord(record)
		if err != nil {
			return err
		}
		if err := txn.Set(keyChunk(record.ID), data); err != nil {
			return fmt.Errorf("failed to write chunk: %w", err)
		}

		return writeChunkIndexes(txn, record)
	})
	if err != nil {
		return err
	}

	logger.DebugCtx(ctx, "chunk record added",
		logger.KeyChunkID, record.ID,
		logger.KeyFileID, record.FileID,
		logger.KeySequence, record.Sequence)
	return nil
}

// ReplaceChunk overwrites an existing record, fixing up index entries when
// the file, sequence, or provider changed. Fails with ErrNotFound when the
// id is absent.
func (s *Store) ReplaceChunk(ctx context.Context, record *metadata.ChunkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || record.ID == "" {
		return metadata.NewInvalidArgumentError("chunk record must have an id")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyChunk(record.ID))
		if err == badger.ErrKeyNotFound {
			return metadata.NewNotFoundError(record.ID, "chunk")
		}
		if err != nil {
			return fmt.Errorf("failed to get existing chunk: %w", err)
		}

		var previous *metadata.ChunkRecord
		if err := item.Value(func(val []byte) error {
			var decErr error
			previous, decErr = decodeChunkRecord(val)
			return decErr
		}); err != nil {
			return err
		}

		if err := deleteChunkIndexes(txn, previous); err != nil {
			return err
		}

		data, err := encodeChunkRecord(record)
		if err != nil {
			return err
		}
		if err := txn.Set(keyChunk(record.ID), data); err != nil {
			return fmt.Errorf("failed to write chunk: %w", err)
		}

		return writeChunkIndexes(txn, record)
	})
}

// DeleteChunk removes one record and its index entries.
// Deleting a missing id returns (false, nil).
func (s *Store) DeleteChunk(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if id == "" {
		return false, metadata.NewInvalidArgumentError("chunk id must not be empty")
	}

	deleted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keyChunk(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get chunk: %w", err)
		}

		var record *metadata.ChunkRecord
		if err := item.Value(func(val []byte) error {
			var decErr error
			record, decErr = decodeChunkRecord(val)
			return decErr
		}); err != nil {
			return err
		}

		if err := deleteChunkIndexes(txn, record); err != nil {
			return err
		}
		if err := txn.Delete(keyChunk(id)); err != nil {
			return fmt.Errorf("failed to delete chunk: %w", err)
		}

		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

// DeleteChunksByFile removes every chunk owned by the file and returns the
// number removed. A file with no chunks is not an error (0, nil).
func (s *Store) DeleteChunksByFile(ctx context.Context, fileID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if fileID == "" {
		return 0, metadata.NewInvalidArgumentError("file id must not be empty")
	}

	count := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		// Collect first; deleting while iterating invalidates the iterator.
		type victim struct {
			indexKey []byte
			record   *metadata.ChunkRecord
		}
		var victims []victim

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := keyChunkFilePrefix(fileID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			indexKey := it.Item().KeyCopy(nil)

			var chunkID string
			if err := it.Item().Value(func(val []byte) error {
				chunkID = string(val)
				return nil
			}); err != nil {
				it.Close()
				return err
			}

			item, err := txn.Get(keyChunk(chunkID))
			if err == badger.ErrKeyNotFound {
				victims = append(victims, victim{indexKey: indexKey})
				continue
			}
			if err != nil {
				it.Close()
				return fmt.Errorf("failed to get chunk %s: %w", chunkID, err)
			}

			var record *metadata.ChunkRecord
			if err := item.Value(func(val []byte) error {
				var decErr error
				record, decErr = decodeChunkRecord(val)
				return decErr
			}); err != nil {
				it.Close()
				return err
			}
			victims = append(victims, victim{indexKey: indexKey, record: record})
		}
		it.Close()

		for _, v := range victims {
			if err := txn.Delete(v.indexKey); err != nil {
				return fmt.Errorf("failed to delete chunk index: %w", err)
			}
			if v.record == nil {
				continue // stale index entry, nothing more to remove
			}
			if v.record.ProviderID != "" {
				if err := txn.Delete(keyChunkProvider(v.record.ProviderID, v.record.ID)); err != nil {
					return fmt.Errorf("failed to delete provider index: %w", err)
				}
			}
			if err := txn.Delete(keyChunkCreated(v.record.CreatedAt, v.record.ID)); err != nil {
				return fmt.Errorf("failed to delete created index: %w", err)
			}
			if err := txn.Delete(keyChunk(v.record.ID)); err != nil {
				return fmt.Errorf("failed to delete chunk: %w", err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.DebugCtx(ctx, "chunk records deleted",
		logger.KeyFileID, fileID,
		logger.KeyCount, count)
	return count, nil
}

// writeChunkIndexes writes the per-file, per-provider, and creation-time
// index entries.
func writeChunkIndexes(txn *badger.Txn, record *metadata.ChunkRecord) error {
	if err := txn.Set(keyChunkFile(record.FileID, record.Sequence), []byte(record.ID)); err != nil {
		return fmt.Errorf("failed to write chunk file index: %w", err)
	}
	if record.ProviderID != "" {
		if err := txn.Set(keyChunkProvider(record.ProviderID, record.ID), nil); err != nil {
			return fmt.Errorf("failed to write provider index: %w", err)
		}
	}
	if err := txn.Set(keyChunkCreated(record.CreatedAt, record.ID), nil); err != nil {
		return fmt.Errorf("failed to write created index: %w", err)
	}
	return nil
}

// deleteChunkIndexes removes the index entries of a record version.
func deleteChunkIndexes(txn *badger.Txn, record *metadata.ChunkRecord) error {
	if err := txn.Delete(keyChunkFile(record.FileID, record.Sequence)); err != nil {
		return fmt.Errorf("failed to delete chunk file index: %w", err)
	}
	if record.ProviderID != "" {
		if err := txn.Delete(keyChunkProvider(record.ProviderID, record.ID)); err != nil {
			return fmt.Errorf("failed to delete provider index: %w", err)
		}
	}
	if err := txn.Delete(keyChunkCreated(record.CreatedAt, record.ID)); err != nil {
		return fmt.Errorf("failed to delete created index: %w", err)
	}
	return nil
}
