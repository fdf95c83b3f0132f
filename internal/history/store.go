package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS imports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sessionId TEXT NOT NULL,
		fileName TEXT NOT NULL,
		method TEXT NOT NULL,
		submitted INTEGER NOT NULL,
		created INTEGER NOT NULL,
		skippedDuplicates INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		debits TEXT NOT NULL DEFAULT '0',
		credits TEXT NOT NULL DEFAULT '0',
		importedAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS imports_importedAt ON imports(importedAt);
`

// Store provides access to the import ledger.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "stmtimport", "history.sqlite")
}

// Open opens or creates the ledger at path with WAL.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s, err := newStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB) (*Store, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends e and returns its id. A zero ImportedAt is set to now.
func (s *Store) Record(e Entry) (int64, error) {
	if e.SessionID == "" {
		return 0, errors.New("record import: missing session id")
	}
	if e.ImportedAt.IsZero() {
		e.ImportedAt = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO imports (sessionId, fileName, method, submitted, created,
			skippedDuplicates, failed, debits, credits, importedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.FileName, e.Method, e.Submitted, e.Created,
		e.SkippedDuplicates, e.Failed, e.Debits.String(), e.Credits.String(), unixFromTime(e.ImportedAt))
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit imports, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, sessionId, fileName, method, submitted, created,
			skippedDuplicates, failed, debits, credits, importedAt
		FROM imports
		ORDER BY importedAt DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ForSession returns the import recorded for sessionID, if any.
func (s *Store) ForSession(sessionID string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT id, sessionId, fileName, method, submitted, created,
			skippedDuplicates, failed, debits, credits, importedAt
		FROM imports
		WHERE sessionId = ?
		ORDER BY importedAt DESC
		LIMIT 1
	`, sessionID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (Entry, error) {
	var e Entry
	var debits, credits string
	var importedAt float64
	if err := r.Scan(&e.ID, &e.SessionID, &e.FileName, &e.Method, &e.Submitted, &e.Created,
		&e.SkippedDuplicates, &e.Failed, &debits, &credits, &importedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan import: %w", err)
	}
	var err error
	if e.Debits, err = decimal.NewFromString(debits); err != nil {
		return e, fmt.Errorf("import %d debits: %w", e.ID, err)
	}
	if e.Credits, err = decimal.NewFromString(credits); err != nil {
		return e, fmt.Errorf("import %d credits: %w", e.ID, err)
	}
	e.ImportedAt = timeFromUnix(importedAt)
	return e, nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
