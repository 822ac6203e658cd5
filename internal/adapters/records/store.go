// Package records persists per-module build records in a SQLite database
// under the project workspace.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/zerr"
	_ "modernc.org/sqlite" // registers the sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS module_records (
	build_id     TEXT    NOT NULL,
	module       TEXT    NOT NULL,
	state        TEXT    NOT NULL,
	result       TEXT    NOT NULL,
	started      INTEGER NOT NULL,
	duration     INTEGER NOT NULL,
	tasks        TEXT,
	archives     TEXT,
	fingerprints TEXT,
	PRIMARY KEY (build_id, module)
);
CREATE INDEX IF NOT EXISTS idx_records_started ON module_records(build_id, started);
`

// Store implements ports.RecordStore with one database per project root.
type Store struct {
	mu  sync.Mutex
	dbs map[string]*sql.DB
}

var _ ports.RecordStore = (*Store)(nil)

// NewStore creates a store. Databases are opened on first use.
func NewStore() *Store {
	return &Store{dbs: make(map[string]*sql.DB)}
}

// Put inserts or replaces the record of one module within one build.
func (s *Store) Put(ctx context.Context, root string, record *domain.ModuleRecord) error {
	db, err := s.open(root)
	if err != nil {
		return err
	}

	tasks, err := encode(record.Tasks)
	if err != nil {
		return err
	}
	archives, err := encode(record.Archives)
	if err != nil {
		return err
	}
	fingerprints, err := encode(record.Fingerprints)
	if err != nil {
		return err
	}

	var started int64
	if !record.Started.IsZero() {
		started = record.Started.UnixNano()
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO module_records
		(build_id, module, state, result, started, duration, tasks, archives, fingerprints)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.BuildID, record.Module.String(), record.State.String(), record.Result.String(),
		started, int64(record.Duration), tasks, archives, fingerprints,
	)
	if err != nil {
		return zerr.With(zerr.Wrap(errors.Join(domain.ErrRecordStoreFailed, err), "cannot store record"),
			"module", record.Module.String())
	}
	return nil
}

// List returns the records of a build ordered by start time. Modules that
// never started come last.
func (s *Store) List(ctx context.Context, root, buildID string) ([]domain.ModuleRecord, error) {
	db, err := s.open(root)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT build_id, module, state, result, started, duration, tasks, archives, fingerprints
		FROM module_records WHERE build_id = ?
		ORDER BY started = 0, started, module`,
		buildID,
	)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrRecordStoreFailed, err), "cannot list records"), "build_id", buildID)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.ModuleRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(errors.Join(domain.ErrRecordStoreFailed, err), "cannot iterate records")
	}
	return records, nil
}

// Close closes every open database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for root, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.dbs, root)
	}
	return errors.Join(errs...)
}

func (s *Store) open(root string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[root]; ok {
		return db, nil
	}

	path := filepath.Join(root, domain.DefaultRecordsPath())
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrRecordStoreFailed, err), "cannot create workspace"), "path", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrRecordStoreFailed, err), "cannot open records"), "path", path)
	}
	// SQLite serializes writers; a single connection avoids busy errors.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrRecordStoreFailed, err), "cannot initialize records"), "path", path)
	}
	s.dbs[root] = db
	return db, nil
}

func scanRecord(rows *sql.Rows) (domain.ModuleRecord, error) {
	var (
		r                             domain.ModuleRecord
		module, state, result         string
		started, duration             int64
		tasks, archives, fingerprints sql.NullString
	)
	if err := rows.Scan(&r.BuildID, &module, &state, &result, &started, &duration, &tasks, &archives, &fingerprints); err != nil {
		return r, zerr.Wrap(errors.Join(domain.ErrRecordStoreFailed, err), "cannot scan record")
	}

	if err := r.Module.UnmarshalText([]byte(module)); err != nil {
		return r, err
	}
	if err := r.State.UnmarshalText([]byte(state)); err != nil {
		return r, err
	}
	if err := r.Result.UnmarshalText([]byte(result)); err != nil {
		return r, err
	}
	if started != 0 {
		r.Started = time.Unix(0, started).UTC()
	}
	r.Duration = time.Duration(duration)

	if err := decode(tasks, &r.Tasks); err != nil {
		return r, err
	}
	if err := decode(archives, &r.Archives); err != nil {
		return r, err
	}
	if err := decode(fingerprints, &r.Fingerprints); err != nil {
		return r, err
	}
	return r, nil
}

func encode[T any](v T) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, zerr.Wrap(errors.Join(domain.ErrRecordStoreFailed, err), "cannot encode record")
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decode[T any](s sql.NullString, v *T) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), v); err != nil {
		return zerr.Wrap(errors.Join(domain.ErrRecordStoreFailed, err), "cannot decode record")
	}
	return nil
}
