package badger

import (
	"context"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/chunkvault/chunkvault/pkg/metadata"
)

// AppendLog inserts a log record with the store's configured TTL. Badger
// expires the entry itself, so there is no cleanup job for the logs
// collection.
func (s *Store) AppendLog(ctx context.Context, record *metadata.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || record.CorrelationID == "" {
		return metadata.NewInvalidArgumentError("log record must have a correlation id")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = metadata.Now()
	}

	data, err := encodeLogRecord(record)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(keyLog(record.CorrelationID, record.ID), data).WithTTL(s.logTTL)
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("failed to write log record: %w", err)
		}
		return nil
	})
}

// ListLogsByCorrelation returns the records tagged with the correlation id,
// oldest first. Expired entries are filtered out by Badger during the scan.
func (s *Store) ListLogsByCorrelation(ctx context.Context, correlationID string) ([]*metadata.LogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if correlationID == "" {
		return nil, metadata.NewInvalidArgumentError("correlation id must not be empty")
	}

	var records []*metadata.LogRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := keyLogPrefix(correlationID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				record, decErr := decodeLogRecord(val)
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

	// Key order is by record id, not time; present oldest first.
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}
