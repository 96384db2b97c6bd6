// Package recorder stores playing sessions in SQLite: one row per session,
// one per processed rotation, and the note stream the tracker produced.
package recorder

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/lidarsynth/internal/lidar/l5tracks"
	"github.com/banshee-data/lidarsynth/internal/monitoring"
	"github.com/banshee-data/lidarsynth/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// ErrNoSession is returned when recording without an open session.
var ErrNoSession = errors.New("recorder: no open session")

// Options configures a Store.
type Options struct {
	// SkipModulation leaves modulation messages out of note_events. They
	// are sent for every object on every rotation and dominate the table.
	SkipModulation bool
	Clock          timeutil.Clock
}

// Store records sessions. Its Output methods buffer events in memory;
// RecordRotation writes them together with the rotation row in one
// transaction.
type Store struct {
	db    *sql.DB
	opts  Options
	clock timeutil.Clock

	mu       sync.Mutex
	session  string
	rotation int64
	pending  []NoteEvent
}

// Open opens or creates the database at path and migrates it to the
// latest schema.
func Open(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps PRAGMAs and :memory: databases consistent.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Store{db: db, opts: opts, clock: opts.Clock}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	// m is not closed: that would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// DB exposes the underlying handle for read-only queries.
func (s *Store) DB() *sql.DB { return s.db }

// StartSession opens a session, ending any session still open. It returns
// the new session ID.
func (s *Store) StartSession(source string, cfg l5tracks.TrackerConfig) (string, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode tracker config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != "" {
		if err := s.endLocked(); err != nil {
			return "", err
		}
	}

	id := fmt.Sprintf("session_%s", uuid.NewString())
	_, err = s.db.Exec(
		`INSERT INTO sessions (session_id, source, config_json, started_ns) VALUES (?, ?, ?, ?)`,
		id, source, string(cfgJSON), s.clock.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	s.session = id
	s.rotation = 0
	s.pending = s.pending[:0]
	monitoring.Logf("[recorder] session %s started (%s)", id, source)
	return id, nil
}

// EndSession stamps the open session's end time. Buffered events that no
// rotation claimed are written against the last rotation.
func (s *Store) EndSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == "" {
		return nil
	}
	return s.endLocked()
}

func (s *Store) endLocked() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.flushEvents(tx, s.rotation); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE sessions SET ended_ns = ? WHERE session_id = ?`, s.clock.Now().UnixNano(), s.session); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.pending = s.pending[:0]
	monitoring.Logf("[recorder] session %s ended after %d rotations", s.session, s.rotation)
	s.session = ""
	return nil
}

// RotationRecord summarises one processed rotation.
type RotationRecord struct {
	Time     time.Time
	Samples  int
	Usable   int
	Clusters int
	Objects  int
	Stats    l5tracks.TrackerStats
}

// RecordRotation writes r and every event buffered since the previous
// rotation. On failure nothing is written; the rotation number is not used
// up and the buffered events stay pending for the next rotation.
func (s *Store) RecordRotation(r RotationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == "" {
		return ErrNoSession
	}

	rotation := s.rotation + 1
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO rotations (session_id, rotation, ts_ns, samples, usable, clusters, objects, created, removed, dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.session, rotation, r.Time.UnixNano(), r.Samples, r.Usable, r.Clusters, r.Objects,
		r.Stats.Created, r.Stats.Removed, r.Stats.DroppedCandidates,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rotation: %w", err)
	}
	if err := s.flushEvents(tx, rotation); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.rotation = rotation
	s.pending = s.pending[:0]
	return nil
}

// flushEvents inserts the pending events under rotation. The caller clears
// them once the transaction commits.
func (s *Store) flushEvents(tx *sql.Tx, rotation int64) error {
	if len(s.pending) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO note_events (session_id, rotation, ts_ns, kind, channel, data1, data2)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range s.pending {
		if _, err := stmt.Exec(s.session, rotation, e.Time.UnixNano(), e.Kind, e.Channel, e.Data1, e.Data2); err != nil {
			return fmt.Errorf("failed to insert note event: %w", err)
		}
	}
	return nil
}

// NoteEvent is one recorded output call.
type NoteEvent struct {
	Rotation int64     `json:"rotation"`
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"` // "note_on", "note_off" or "cc"
	Channel  uint8     `json:"channel"`
	Data1    uint8     `json:"data1"`
	Data2    uint8     `json:"data2"`
}

func (s *Store) buffer(kind string, ch, d1, d2 uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == "" {
		return
	}
	s.pending = append(s.pending, NoteEvent{Time: s.clock.Now(), Kind: kind, Channel: ch, Data1: d1, Data2: d2})
}

func (s *Store) NoteOn(channel, note, velocity uint8) { s.buffer("note_on", channel, note, velocity) }
func (s *Store) NoteOff(channel, note uint8)          { s.buffer("note_off", channel, note, 0) }

func (s *Store) Modulation(channel, value uint8) {
	if s.opts.SkipModulation {
		return
	}
	s.buffer("cc", channel, 1, value)
}

// Session is a row of the sessions table.
type Session struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Config    string    `json:"config"`
	Started   time.Time `json:"started"`
	Ended     time.Time `json:"ended,omitempty"`
	Rotations int64     `json:"rotations"`
}

// Sessions lists sessions, newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT s.session_id, s.source, s.config_json, s.started_ns, s.ended_ns,
		       (SELECT COUNT(*) FROM rotations r WHERE r.session_id = s.session_id)
		FROM sessions s ORDER BY s.started_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(&sess.ID, &sess.Source, &sess.Config, &started, &ended, &sess.Rotations); err != nil {
			return nil, err
		}
		sess.Started = time.Unix(0, started)
		if ended.Valid {
			sess.Ended = time.Unix(0, ended.Int64)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// NoteEvents returns a session's events in the order they were produced.
func (s *Store) NoteEvents(sessionID string) ([]NoteEvent, error) {
	rows, err := s.db.Query(`
		SELECT rotation, ts_ns, kind, channel, data1, data2
		FROM note_events WHERE session_id = ? ORDER BY event_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NoteEvent
	for rows.Next() {
		var e NoteEvent
		var ts int64
		if err := rows.Scan(&e.Rotation, &ts, &e.Kind, &e.Channel, &e.Data1, &e.Data2); err != nil {
			return nil, err
		}
		e.Time = time.Unix(0, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close ends the open session and closes the database.
func (s *Store) Close() error {
	if err := s.EndSession(); err != nil {
		monitoring.Logf("[recorder] end session on close: %v", err)
	}
	return s.db.Close()
}
