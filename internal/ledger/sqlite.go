package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
  seq          INTEGER PRIMARY KEY,
  kind         TEXT NOT NULL,
  project_id   TEXT,
  payload      TEXT NOT NULL,
  payload_hash TEXT NOT NULL,
  prev_hash    TEXT NOT NULL,
  entry_hash   TEXT NOT NULL,
  ts_ns        INTEGER NOT NULL,
  signature    TEXT
);
CREATE INDEX IF NOT EXISTS idx_ledger_project ON ledger_entries(project_id, seq);
`

// SQLiteStore persists entries in an append-only table. There is no UPDATE or
// DELETE statement anywhere in this file: the only write path is the INSERT
// issued through the single writer goroutine, which serializes durable
// appends the same way the ledger mutex serializes sequence assignment.
type SQLiteStore struct {
	db     *sql.DB
	writer *sqliteWriter
}

// OpenSQLiteStore opens (creating if needed) the ledger database.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "./data/ledger.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir ledger dir: %w", err)
	}

	// WAL plus a busy timeout keeps readers out of the writer's way; a
	// single connection avoids SQLITE_BUSY inside the process.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger db ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}

	return &SQLiteStore{db: db, writer: newSQLiteWriter(db)}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	return s.writer.do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO ledger_entries(seq, kind, project_id, payload, payload_hash, prev_hash, entry_hash, ts_ns, signature)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			e.Seq, string(e.Kind), e.ProjectID, string(e.Payload),
			e.PayloadHash, e.PrevHash, e.EntryHash, e.Timestamp.UTC().UnixNano(), e.Signature,
		)
		if err != nil {
			return fmt.Errorf("append entry %d: %w", e.Seq, err)
		}
		return nil
	})
}

func (s *SQLiteStore) Range(ctx context.Context, fromSeq, toSeq uint64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, kind, project_id, payload, payload_hash, prev_hash, entry_hash, ts_ns, signature
FROM ledger_entries WHERE seq >= ? AND seq <= ? ORDER BY seq;`, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("range entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *SQLiteStore) ByProject(ctx context.Context, projectID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, kind, project_id, payload, payload_hash, prev_hash, entry_hash, ts_ns, signature
FROM ledger_entries WHERE project_id = ? ORDER BY seq;`, projectID)
	if err != nil {
		return nil, fmt.Errorf("entries by project: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *SQLiteStore) Last(ctx context.Context) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT seq, kind, project_id, payload, payload_hash, prev_hash, entry_hash, ts_ns, signature
FROM ledger_entries ORDER BY seq DESC LIMIT 1;`)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *SQLiteStore) Len(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	s.writer.close()
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e       Entry
		kind    string
		payload string
		tsNs    int64
	)
	if err := row.Scan(&e.Seq, &kind, &e.ProjectID, &payload, &e.PayloadHash, &e.PrevHash, &e.EntryHash, &tsNs, &e.Signature); err != nil {
		return Entry{}, err
	}
	e.Kind = Kind(kind)
	e.Payload = json.RawMessage(payload)
	e.Timestamp = time.Unix(0, tsNs).UTC()
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
