// Package kvstore provides the durable key-value store backing session
// state and the offline fallback snapshot. Values are single JSON blobs
// overwritten wholesale; there is no expiry and no merging.
package kvstore

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Well-known store keys.
const (
	KeyAuthToken         = "ia_sport_token"
	KeyUserData          = "ia_sport_user"
	KeyPreferences       = "ia_sport_preferences"
	KeyLastSync          = "ia_sport_last_sync"
	KeyCachedPredictions = "ia_sport_cached_predictions"
	KeyPushSubscribed    = "ia_sport_push_subscribed"
)

// Store is a durable key-value store.
// Individual puts are atomic, but there are no cross-operation
// transactions: concurrent writers to the same key race and the last
// write committed wins.
//
// Implementations must be thread-safe!
type Store interface {
	// Get returns the value for the given key, if it exists,
	// plus a boolean indicating whether it was found.
	Get(key string) ([]byte, bool, error)
	// Put stores the value under the given key, overwriting any
	// previous value.
	Put(key string, value []byte) error
	// Delete removes the value for the given key.
	Delete(key string) error
}

type MemStore struct {
	mutex *sync.RWMutex
	db    map[string][]byte
}

func NewMemStore() MemStore {
	return MemStore{
		mutex: &sync.RWMutex{},
		db:    make(map[string][]byte),
	}
}

func (m MemStore) Get(key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok := m.db[key]
	return value, ok, nil
}

func (m MemStore) Put(key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = value
	return nil
}

func (m MemStore) Delete(key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, key)
	return nil
}

type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore creates a new store with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string) SQLiteStore {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB,
		updated_at INTEGER
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s SQLiteStore) Put(key string, value []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().Unix())
	return err
}

func (s SQLiteStore) Delete(key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}
