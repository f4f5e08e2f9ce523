// Package storage is the local persistence adapter: it serializes the
// task collection and the small local-only states (filters, preferences,
// tags, lists) as independently keyed JSON blobs in a SQLite database.
//
// The adapter absorbs its own failures. Loads fall back to documented
// defaults when a key is absent or its blob is corrupt, and saves log
// instead of propagating, so storage trouble never crashes the caller.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/dnguyen/tasktick/internal/model"
)

// Blob keys. Each is loaded and saved independently.
const (
	keyTasks    = "tasks"
	keyFilters  = "filters"
	keyPrefs    = "prefs"
	keyTags     = "tags"
	keyLists    = "lists"
	keyLastSync = "last_sync"
)

// Adapter reads and writes the on-device state database.
type Adapter struct {
	db  *sqlx.DB
	log *zap.Logger
}

// New opens (or creates) the state database at dbPath, enables WAL
// mode, and runs any pending schema migrations. Use ":memory:" for an
// ephemeral database in tests.
func New(dbPath string, log *zap.Logger) (*Adapter, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// WAL keeps concurrent readers cheap.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	a := &Adapter{db: db, log: log}
	if err := a.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return a, nil
}

// Close closes the underlying database connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (a *Adapter) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := a.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = a.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := a.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// LoadTasks returns the persisted task collection, or an empty
// collection when nothing usable is stored.
func (a *Adapter) LoadTasks() []model.Task {
	var tasks []model.Task
	if !load(a, keyTasks, &tasks) {
		return nil
	}
	return tasks
}

// SaveTasks overwrites the persisted task collection.
func (a *Adapter) SaveTasks(tasks []model.Task) {
	a.save(keyTasks, tasks)
}

// LoadFilters returns the persisted filter state merged over defaults,
// so blobs written by older versions pick up newly added fields.
func (a *Adapter) LoadFilters() model.FilterState {
	f := model.DefaultFilterState()
	load(a, keyFilters, &f)
	return f
}

// SaveFilters overwrites the persisted filter state.
func (a *Adapter) SaveFilters(f model.FilterState) {
	a.save(keyFilters, f)
}

// LoadPreferences returns persisted preferences merged over defaults.
func (a *Adapter) LoadPreferences() model.UserPreferences {
	p := model.DefaultPreferences()
	load(a, keyPrefs, &p)
	return p
}

// SavePreferences overwrites the persisted preferences.
func (a *Adapter) SavePreferences(p model.UserPreferences) {
	a.save(keyPrefs, p)
}

// LoadTags returns the persisted tag definitions.
func (a *Adapter) LoadTags() []model.Tag {
	var tags []model.Tag
	load(a, keyTags, &tags)
	return tags
}

// SaveTags overwrites the persisted tag definitions.
func (a *Adapter) SaveTags(tags []model.Tag) {
	a.save(keyTags, tags)
}

// LoadLists returns the persisted list definitions, falling back to the
// built-in defaults when nothing usable is stored.
func (a *Adapter) LoadLists(now time.Time) []model.TaskList {
	var lists []model.TaskList
	if !load(a, keyLists, &lists) || len(lists) == 0 {
		return model.DefaultLists(now)
	}
	return lists
}

// SaveLists overwrites the persisted list definitions.
func (a *Adapter) SaveLists(lists []model.TaskList) {
	a.save(keyLists, lists)
}

// LastSync returns the time of the last successful sync cycle, if any.
func (a *Adapter) LastSync() (time.Time, bool) {
	var t time.Time
	if !load(a, keyLastSync, &t) {
		return time.Time{}, false
	}
	return t, true
}

// SetLastSync records the time of a successful sync cycle.
func (a *Adapter) SetLastSync(t time.Time) {
	a.save(keyLastSync, t)
}

// load reads and unmarshals one keyed blob into dst. Returns false when
// the key is absent or the blob is corrupt; dst is untouched on failure.
// Decoding goes through a temporary so a blob that fails partway cannot
// leave dst half overwritten.
func load[T any](a *Adapter, key string, dst *T) bool {
	var raw string
	err := a.db.Get(&raw, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		a.log.Warn("reading state blob", zap.String("key", key), zap.Error(err))
		return false
	}

	tmp := *dst
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		a.log.Warn("corrupt state blob, using defaults",
			zap.String("key", key), zap.Error(err))
		return false
	}
	*dst = tmp
	return true
}

// save marshals and overwrites one keyed blob. Failures are logged,
// never propagated.
func (a *Adapter) save(key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		a.log.Error("marshaling state blob", zap.String("key", key), zap.Error(err))
		return
	}

	_, err = a.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC(),
	)
	if err != nil {
		a.log.Error("writing state blob", zap.String("key", key), zap.Error(err))
	}
}
