package recorder

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fd1az/betexstream/internal/apperror"
)

const schema = `
CREATE TABLE IF NOT EXISTS market_snapshots (
	market_id  TEXT NOT NULL,
	generation INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	recorded_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	PRIMARY KEY (market_id, generation)
);
CREATE TABLE IF NOT EXISTS order_snapshots (
	market_id  TEXT NOT NULL,
	generation INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	recorded_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	PRIMARY KEY (market_id, generation)
);
CREATE TABLE IF NOT EXISTS market_completion (
	market_id   TEXT PRIMARY KEY,
	completed_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
`

const (
	insertMarketSnapshotQuery = `INSERT OR REPLACE INTO market_snapshots (market_id, generation, payload) VALUES (?, ?, ?)`
	insertOrderSnapshotQuery  = `INSERT OR REPLACE INTO order_snapshots (market_id, generation, payload) VALUES (?, ?, ?)`
	markCompleteQuery         = `INSERT OR REPLACE INTO market_completion (market_id) VALUES (?)`
)

// SQLiteRecorder persists periodic structured snapshots (and completion
// markers) to a SQLite database, with prepared statements reused across
// every insert the same way a high-throughput market-data recorder would.
type SQLiteRecorder struct {
	db  *sql.DB
	raw *RawLogWriter

	stmtMarketSnapshot *sql.Stmt
	stmtOrderSnapshot  *sql.Stmt
	stmtMarkComplete   *sql.Stmt
}

// NewSQLiteRecorder opens (creating if needed) a WAL-mode SQLite database
// at dbPath and an append-only raw log directory at rawDir.
func NewSQLiteRecorder(dbPath, rawDir string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext("open sqlite database"), apperror.WithCause(err))
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext("init schema"), apperror.WithCause(err))
	}

	raw, err := NewRawLogWriter(rawDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	r := &SQLiteRecorder{db: db, raw: raw}

	if r.stmtMarketSnapshot, err = db.Prepare(insertMarketSnapshotQuery); err != nil {
		return nil, r.failPrepare("market snapshot", err)
	}
	if r.stmtOrderSnapshot, err = db.Prepare(insertOrderSnapshotQuery); err != nil {
		return nil, r.failPrepare("order snapshot", err)
	}
	if r.stmtMarkComplete, err = db.Prepare(markCompleteQuery); err != nil {
		return nil, r.failPrepare("mark complete", err)
	}

	return r, nil
}

func (r *SQLiteRecorder) failPrepare(what string, err error) error {
	_ = r.Close()
	return apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext(fmt.Sprintf("prepare %s statement", what)), apperror.WithCause(err))
}

// WriteRaw appends line to the market's raw log.
func (r *SQLiteRecorder) WriteRaw(marketID string, line []byte) error {
	return r.raw.Append(marketID, line)
}

// WriteMarketSnapshot stores a structured market-cache snapshot at a given
// generation (a caller-assigned monotonic counter, e.g. a frame index).
func (r *SQLiteRecorder) WriteMarketSnapshot(marketID string, generation int64, payload []byte) error {
	if _, err := r.stmtMarketSnapshot.Exec(marketID, generation, payload); err != nil {
		return apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext("write market snapshot"), apperror.WithCause(err))
	}
	return nil
}

// WriteOrderSnapshot is the order-cache analogue of WriteMarketSnapshot.
func (r *SQLiteRecorder) WriteOrderSnapshot(marketID string, generation int64, payload []byte) error {
	if _, err := r.stmtOrderSnapshot.Exec(marketID, generation, payload); err != nil {
		return apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext("write order snapshot"), apperror.WithCause(err))
	}
	return nil
}

// MarkComplete records that marketID reached "truly complete" (§4.3),
// the only signal the recorder ever receives about completion.
func (r *SQLiteRecorder) MarkComplete(marketID string) error {
	if _, err := r.stmtMarkComplete.Exec(marketID); err != nil {
		return apperror.New(apperror.CodeRecorderWriteFailed, apperror.WithContext("mark market complete"), apperror.WithCause(err))
	}
	return nil
}

// Close closes the prepared statements, the database, and the raw log
// writer, in that order.
func (r *SQLiteRecorder) Close() error {
	if r.stmtMarketSnapshot != nil {
		_ = r.stmtMarketSnapshot.Close()
	}
	if r.stmtOrderSnapshot != nil {
		_ = r.stmtOrderSnapshot.Close()
	}
	if r.stmtMarkComplete != nil {
		_ = r.stmtMarkComplete.Close()
	}
	var firstErr error
	if r.db != nil {
		firstErr = r.db.Close()
	}
	if r.raw != nil {
		if err := r.raw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
