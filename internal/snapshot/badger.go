package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// BadgerStore хранит снимки в локальной BadgerDB под ключом snapshot/<region>
type BadgerStore struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает базу в каталоге <dataPath>/snapshots
func NewBadgerStore(dataPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Join(dataPath, "snapshots"))
	opts.Logger = nil // Отключаем логирование BadgerDB
	return OpenBadgerStore(opts)
}

// OpenBadgerStore открывает базу с произвольными опциями (в тестах - in-memory)
func OpenBadgerStore(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &BadgerStore{db: db, isReady: true}, nil
}

func badgerKey(region string) []byte {
	return []byte("snapshot/" + region)
}

// Save перезаписывает снимок региона
func (s *BadgerStore) Save(_ context.Context, region string, data []byte) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(region), data)
	})
}

// Load читает снимок региона
func (s *BadgerStore) Load(_ context.Context, region string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(region))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, region)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, nil
}

// Close закрывает базу; повторный вызов безопасен
func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	return s.db.Close()
}
