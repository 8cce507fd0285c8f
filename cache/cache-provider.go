package cache

import (
	"database/sql"
	"sort"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// CacheProvider is an interface for a named-cache provider.
// It stores and retrieves []byte values, which represent HTTP responses,
// grouped into named caches. Each deployed version uses its own set of
// cache names, so enumerating and deleting whole caches by name is as
// important as operating on individual keys.
//
// Entries have no expiry: an entry lives until it is overwritten, its
// key is deleted, or its whole named cache is dropped during activation.
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the cached entry for the given key in the named cache,
	// if it exists, plus a boolean indicating whether it was found.
	Get(cache, key string) (Entry, bool, error)
	// Put stores the given entry in the named cache under the given key,
	// overwriting any previous entry for the key.
	Put(cache, key string, entry Entry) error
	// Delete removes the entry for the given key from the named cache.
	Delete(cache, key string) error
	// DeleteCache removes the named cache and all of its entries.
	DeleteCache(cache string) error
	// Names returns the names of all caches that contain entries.
	Names() ([]string, error)
	// Keys returns all keys stored in the named cache.
	Keys(cache string) ([]string, error)
	// Has checks if the specified key exists in the named cache.
	Has(cache, key string) bool
}

// Entry is a stored response snapshot.
// Bytes holds the serialized response; the timestamps are kept for the
// Age-style bookkeeping of when the response was requested and received.
type Entry struct {
	RequestedAt time.Time
	ReceivedAt  time.Time
	Bytes       []byte
}

// Set holds the current cache name for each logical role.
// The names are version-stamped: bumping the version is the only way to
// force invalidation across a deployment, since activation deletes every
// name not present in the current set.
type Set struct {
	// Static holds the pre-cached application assets.
	Static string
	// Dynamic holds app-shell and other general responses.
	Dynamic string
	// Data holds API responses.
	Data string
}

// DefaultSet returns the cache names for the given version stamp.
func DefaultSet(version string) Set {
	return Set{
		Static:  "ia-sport-static-" + version,
		Dynamic: "ia-sport-" + version,
		Data:    "ia-sport-data-" + version,
	}
}

// Names returns all names in the set.
func (s Set) Names() []string {
	return []string{s.Static, s.Dynamic, s.Data}
}

// Contains reports whether the given name is one of the current names.
func (s Set) Contains(name string) bool {
	return name == s.Static || name == s.Dynamic || name == s.Data
}

type memKey struct {
	cache string
	key   string
}

type MemCache struct {
	mutex *sync.RWMutex
	db    map[memKey]Entry
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[memKey]Entry),
	}
}

func (m MemCache) Get(cache, key string) (Entry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.db[memKey{cache, key}]
	return entry, ok, nil
}

func (m MemCache) Put(cache, key string, entry Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[memKey{cache, key}] = entry
	return nil
}

func (m MemCache) Delete(cache, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, memKey{cache, key})
	return nil
}

func (m MemCache) DeleteCache(cache string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for k := range m.db {
		if k.cache == cache {
			delete(m.db, k)
		}
	}
	return nil
}

func (m MemCache) Names() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	seen := make(map[string]bool)
	names := make([]string, 0)
	for k := range m.db {
		if !seen[k.cache] {
			seen[k.cache] = true
			names = append(names, k.cache)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m MemCache) Keys(cache string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	keys := make([]string, 0)
	for k := range m.db {
		if k.cache == cache {
			keys = append(keys, k.key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m MemCache) Has(cache, key string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.db[memKey{cache, key}]
	return ok
}

type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteCache(filename string) SQLiteCache {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		name TEXT,
		key TEXT,
		requested_at INTEGER,
		received_at INTEGER,
		bytes BLOB,
		PRIMARY KEY (name, key)
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("CREATE INDEX IF NOT EXISTS name_idx ON cache (name)")
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteCache) Get(cache, key string) (Entry, bool, error) {
	var entry Entry
	var req, rec int64
	err := s.db.QueryRow(
		"SELECT requested_at, received_at, bytes FROM cache WHERE name = ? AND key = ?",
		cache, key,
	).Scan(&req, &rec, &entry.Bytes)
	if err == sql.ErrNoRows {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, err
	}
	entry.RequestedAt = time.Unix(req, 0)
	entry.ReceivedAt = time.Unix(rec, 0)
	return entry, true, nil
}

func (s SQLiteCache) Put(cache, key string, entry Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO cache
		(name, key, requested_at, received_at, bytes) VALUES (?, ?, ?, ?, ?)`,
		cache, key, entry.RequestedAt.Unix(), entry.ReceivedAt.Unix(), entry.Bytes)
	return err
}

func (s SQLiteCache) Delete(cache, key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE name = ? AND key = ?", cache, key)
	return err
}

func (s SQLiteCache) DeleteCache(cache string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM cache WHERE name = ?", cache)
	return err
}

func (s SQLiteCache) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT name FROM cache ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s SQLiteCache) Keys(cache string) ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM cache WHERE name = ? ORDER BY key", cache)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s SQLiteCache) Has(cache, key string) bool {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM cache WHERE name = ? AND key = ?", cache, key).Scan(&one)
	return err == nil
}
