// Package localstore is an embedded versions.Store on BadgerDB, for single-node
// deployments without Postgres.
package localstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/models"
	"github.com/david/contract-ledger/internal/versions"
)

// Key layout, with \x00 separators so contract ids may contain anything else:
//
//	v\x00<contract>\x00<version:8 bytes BE>  → record
//	hw\x00<contract>                         → highest version ever saved (8 bytes BE)

type record struct {
	Info     models.VersionInfo  `json:"info"`
	Snapshot models.BaseContract `json:"snapshot"`
}

type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) the database at path. An empty path keeps
// everything in memory.
func Open(path string, log *logger.Logger) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if log != nil {
		opts = opts.WithLogger(&badgerLogger{log: log.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ versions.Store = (*Store)(nil)

func versionPrefix(contractID string) []byte {
	return []byte("v\x00" + contractID + "\x00")
}

func versionKey(contractID string, version int) []byte {
	k := versionPrefix(contractID)
	return binary.BigEndian.AppendUint64(k, uint64(version))
}

func highWaterKey(contractID string) []byte {
	return []byte("hw\x00" + contractID)
}

func (s *Store) NextVersionID(_ context.Context, contractID string) (int, error) {
	next := 1
	err := s.db.View(func(txn *badger.Txn) error {
		hw, err := readHighWater(txn, contractID)
		if err != nil {
			return err
		}
		top, err := latestIn(txn, contractID)
		if err != nil {
			return err
		}
		next = max(hw, top) + 1
		return nil
	})
	return next, err
}

func (s *Store) Save(_ context.Context, contractID string, version int, snapshot models.BaseContract) error {
	info, err := versions.Describe(contractID, version, snapshot, s.now())
	if err != nil {
		return err
	}
	raw, err := json.Marshal(record{Info: info, Snapshot: snapshot})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := versionKey(contractID, version)
		_, err := txn.Get(key)
		if err == nil {
			return apperr.Conflictf("contract %s version %d already exists", contractID, version)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, raw); err != nil {
			return err
		}

		hw, err := readHighWater(txn, contractID)
		if err != nil {
			return err
		}
		if version > hw {
			return txn.Set(highWaterKey(contractID), binary.BigEndian.AppendUint64(nil, uint64(version)))
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return apperr.Conflictf("concurrent save of contract %s version %d", contractID, version)
	}
	return err
}

func (s *Store) Latest(_ context.Context, contractID string) (int, error) {
	var latest int
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		latest, err = latestIn(txn, contractID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if latest == 0 {
		return 0, apperr.NotFoundf("contract %s has no versions", contractID)
	}
	return latest, nil
}

func (s *Store) Load(_ context.Context, contractID string, version int) (*models.BaseContract, error) {
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey(contractID, version))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperr.NotFoundf("contract %s version %d", contractID, version)
	}
	if err != nil {
		return nil, fmt.Errorf("load contract %s version %d: %w", contractID, version, err)
	}
	return &rec.Snapshot, nil
}

func (s *Store) List(_ context.Context, contractID string) ([]models.VersionInfo, error) {
	out := []models.VersionInfo{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := versionPrefix(contractID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			out = append(out, rec.Info)
		}
		return nil
	})
	return out, err
}

// Delete drops one snapshot. The high-water mark stays.
func (s *Store) Delete(_ context.Context, contractID string, version int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(versionKey(contractID, version))
	})
}

func readHighWater(txn *badger.Txn, contractID string) (int, error) {
	item, err := txn.Get(highWaterKey(contractID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt high-water mark for %s", contractID)
	}
	return int(binary.BigEndian.Uint64(raw)), nil
}

// latestIn returns the greatest stored version, or 0.
func latestIn(txn *badger.Txn, contractID string) (int, error) {
	prefix := versionPrefix(contractID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	// reverse iteration starts at the last key <= seek key
	seek := append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	it.Seek(seek)
	if !it.ValidForPrefix(prefix) {
		return 0, nil
	}
	key := it.Item().Key()
	return int(binary.BigEndian.Uint64(key[len(prefix):])), nil
}

type badgerLogger struct {
	log *logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
