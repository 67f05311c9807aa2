// Package store provides the SQLite-backed persistence layer: a
// single key/value table holding JSON-encoded entities and frames,
// read-write transactions with a read-through/write-back cache, and
// SQLite-native savepoints for compound-operation recovery.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/scrollforge/pkg/scrollerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value BLOB NOT NULL
);
`

// RootKey is the reserved key holding the sandbox's root entity uid.
const RootKey = "root"

// Store wraps a *sql.DB over the single kv table, serializing writers
// per the single-writer concurrency model.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) a scrollforge store at dsn. Use ":memory:"
// for an ephemeral store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &scrollerr.StoreError{Op: "open", Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &scrollerr.StoreError{Op: "migrate", Err: err}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Mutate runs fn inside a single read-write transaction. The
// transaction's cache is read-through on Load and only written back to
// the database on Save/EmplaceAndSave; fn's return error rolls back
// the whole transaction.
func (s *Store) Mutate(ctx context.Context, fn func(tx *WriteTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &scrollerr.StoreError{Op: "begin", Err: err}
	}
	wtx := &WriteTx{tx: sqlTx, cache: make(map[string]map[string]interface{})}
	if err := fn(wtx); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &scrollerr.StoreError{Op: "commit", Err: err}
	}
	return nil
}

// Inspect runs fn inside a read-only transaction.
func (s *Store) Inspect(ctx context.Context, fn func(tx *ReadTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return &scrollerr.StoreError{Op: "begin-ro", Err: err}
	}
	defer sqlTx.Rollback()

	rtx := &ReadTx{tx: sqlTx, cache: make(map[string]map[string]interface{})}
	return fn(rtx)
}

// WriteTx is a read-write transaction over the kv table with a
// per-transaction read-through cache, mirroring the teacher's
// read-modify-write pattern in UpsertNote/UpdateNote.
type WriteTx struct {
	tx    *sql.Tx
	cache map[string]map[string]interface{}
}

// Create inserts a brand new entity/frame under uid if one does not
// already exist in the cache or database; it is a no-op otherwise.
func (w *WriteTx) Create(uid string, value map[string]interface{}) error {
	if _, ok := w.cache[uid]; ok {
		return nil
	}
	existing, ok, err := w.fetch(uid)
	if err != nil {
		return err
	}
	if ok {
		w.cache[uid] = existing
		return nil
	}
	w.cache[uid] = value
	return w.Save(uid)
}

// Load returns the cached or persisted value for uid, caching it for
// the remainder of the transaction.
func (w *WriteTx) Load(uid string) (map[string]interface{}, bool, error) {
	if v, ok := w.cache[uid]; ok {
		return v, true, nil
	}
	v, ok, err := w.fetch(uid)
	if err != nil {
		return nil, false, err
	}
	if ok {
		w.cache[uid] = v
	}
	return v, ok, nil
}

// Store writes value into the transaction's cache without persisting
// it; call Save to flush it to the database.
func (w *WriteTx) Store(uid string, value map[string]interface{}) {
	w.cache[uid] = value
}

// Save flushes the cached value for uid to the database.
func (w *WriteTx) Save(uid string) error {
	v, ok := w.cache[uid]
	if !ok {
		return &scrollerr.MissingEntity{UID: uid}
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return &scrollerr.StoreError{Op: "marshal", Err: err}
	}
	_, err = w.tx.Exec(`INSERT INTO kv(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, uid, blob)
	if err != nil {
		return &scrollerr.StoreError{Op: "save", Err: err}
	}
	return nil
}

// EmplaceAndSave is Store followed immediately by Save.
func (w *WriteTx) EmplaceAndSave(uid string, value map[string]interface{}) error {
	w.Store(uid, value)
	return w.Save(uid)
}

// Remove deletes uid from both the cache and the database.
func (w *WriteTx) Remove(uid string) error {
	delete(w.cache, uid)
	if _, err := w.tx.Exec(`DELETE FROM kv WHERE key = ?`, uid); err != nil {
		return &scrollerr.StoreError{Op: "remove", Err: err}
	}
	return nil
}

func (w *WriteTx) fetch(uid string) (map[string]interface{}, bool, error) {
	var blob []byte
	err := w.tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, uid).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &scrollerr.StoreError{Op: "fetch", Err: err}
	}
	var v map[string]interface{}
	if err := json.Unmarshal(blob, &v); err != nil {
		return nil, false, &scrollerr.StoreError{Op: "unmarshal", Err: err}
	}
	return v, true, nil
}

// Savepoint opens a nested SQLite savepoint with the given name.
// Names must be unique within the enclosing transaction.
func (w *WriteTx) Savepoint(name string) error {
	if _, err := w.tx.Exec(fmt.Sprintf("SAVEPOINT %s", quoteIdent(name))); err != nil {
		return &scrollerr.StoreError{Op: "savepoint", Err: err}
	}
	return nil
}

// RollbackTo discards every change made since the named savepoint was
// opened, and drops the whole write cache so the next Load of any uid
// re-reads from the database.
func (w *WriteTx) RollbackTo(name string) error {
	if _, err := w.tx.Exec(fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", quoteIdent(name))); err != nil {
		return &scrollerr.StoreError{Op: "rollback-to", Err: err}
	}
	w.cache = make(map[string]map[string]interface{})
	return nil
}

// Release discards the named savepoint without undoing its changes.
func (w *WriteTx) Release(name string) error {
	if _, err := w.tx.Exec(fmt.Sprintf("RELEASE SAVEPOINT %s", quoteIdent(name))); err != nil {
		return &scrollerr.StoreError{Op: "release", Err: err}
	}
	return nil
}

func quoteIdent(name string) string {
	return "sp_" + name
}

// ReadTx is a read-only transaction with a read-through cache,
// mirroring repository.rs's ReadOnlyTransaction.
type ReadTx struct {
	tx    *sql.Tx
	cache map[string]map[string]interface{}
}

// Retrieve returns the cached or persisted value for uid.
func (r *ReadTx) Retrieve(uid string) (map[string]interface{}, bool, error) {
	if v, ok := r.cache[uid]; ok {
		return v, true, nil
	}
	var blob []byte
	err := r.tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, uid).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &scrollerr.StoreError{Op: "retrieve", Err: err}
	}
	var v map[string]interface{}
	if err := json.Unmarshal(blob, &v); err != nil {
		return nil, false, &scrollerr.StoreError{Op: "unmarshal", Err: err}
	}
	r.cache[uid] = v
	return v, true, nil
}

// IsMissing reports whether attr is absent from entity, or explicitly
// set to false by an ejected injector.
func IsMissing(entity map[string]interface{}, attr string) bool {
	v, ok := entity[attr]
	if !ok {
		return true
	}
	b, isBool := v.(bool)
	return isBool && !b
}

// Clear removes attr from entity. Entities are plain
// map[string]interface{}, so this is order-agnostic by construction;
// encoding/json sorts object keys alphabetically on marshal regardless
// of insertion order, which satisfies the "preserve order where
// possible" requirement as well as Go's native map can.
func Clear(entity map[string]interface{}, attr string) {
	delete(entity, attr)
}
