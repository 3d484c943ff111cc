package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
)

// Manager owns the database and the storages built on it
type Manager struct {
	db     *BadgerDB
	kv     interfaces.KeyValueStorage
	cache  interfaces.CacheStorage
	logger arbor.ILogger
}

// NewManager opens the database and builds its storages
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		kv:     NewKVStorage(db, logger),
		cache:  NewCacheStorage(db, logger),
		logger: logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// KeyValueStorage returns the credential and counter store
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// CacheStorage returns the persistent cache tier
func (m *Manager) CacheStorage() interfaces.CacheStorage {
	return m.cache
}

// CollectGarbage rewrites value-log files until nothing more can be
// reclaimed. It is a no-op for in-memory databases.
func (m *Manager) CollectGarbage() (int, error) {
	db := m.db.Store().Badger()
	if db.Opts().InMemory {
		return 0, nil
	}
	rewritten := 0
	for {
		err := db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return rewritten, err
		}
		rewritten++
	}
	if rewritten > 0 {
		m.logger.Debug().Int("files", rewritten).Msg("Value log garbage collected")
	}
	return rewritten, nil
}

// Close closes the database
func (m *Manager) Close() error {
	return m.db.Close()
}
