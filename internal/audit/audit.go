// Package audit persists the activity log: exactly one immutable entry
// per request attempt, enough to reconstruct who tried to do what and
// why it was allowed or denied. Secrets never appear here; tokens are
// referenced by ID or non-reversible fingerprint only.
package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zonegate/zonegate/internal/model"
)

// Log is the sqlite-backed activity log.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the activity log database at path.
func Open(path string, logger *slog.Logger) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := &Log{db: db, logger: logger}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// OpenMemory opens an in-memory activity log, used by tests.
func OpenMemory(logger *slog.Logger) (*Log, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	l := &Log{db: db, logger: logger}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) migrate() error {
	const migration = `
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id TEXT,
    realm_id TEXT,
    token_id TEXT,
    activity_type TEXT NOT NULL,
    status TEXT NOT NULL,
    error_code TEXT,
    severity TEXT NOT NULL,
    source_ip TEXT,
    domain TEXT,
    record_type TEXT,
    operation TEXT,
    detail TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_activity_log_created ON activity_log(created_at);
CREATE INDEX IF NOT EXISTS idx_activity_log_token ON activity_log(token_id);
CREATE INDEX IF NOT EXISTS idx_activity_log_type ON activity_log(activity_type);
`
	if _, err := l.db.Exec(migration); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Record appends one entry. The write must not be silently dropped: a
// failure is escalated to the process log at Error level and returned
// to the caller.
func (l *Log) Record(entry *model.ActivityEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.Exec(`
		INSERT INTO activity_log (account_id, realm_id, token_id, activity_type, status,
		                          error_code, severity, source_ip, domain, record_type,
		                          operation, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(entry.AccountID), nullable(entry.RealmID), nullable(entry.TokenID),
		string(entry.Type), string(entry.Status),
		nullable(entry.ErrorCode), entry.Severity, entry.SourceIP,
		nullable(entry.Domain), nullable(entry.RecordType),
		nullable(entry.Operation), nullable(entry.Detail), entry.CreatedAt,
	)
	if err != nil {
		l.logger.Error("activity log write failed",
			"activity_type", entry.Type,
			"error_code", entry.ErrorCode,
			"error", err,
		)
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return nil
}

// List returns entries newest first, with total count for paging.
func (l *Log) List(limit, offset int) ([]*model.ActivityEntry, int, error) {
	var total int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM activity_log").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := l.db.Query(`
		SELECT id, account_id, realm_id, token_id, activity_type, status,
		       error_code, severity, source_ip, domain, record_type,
		       operation, detail, created_at
		FROM activity_log
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		var accountID, realmID, tokenID, errorCode, sourceIP sql.NullString
		var domain, recordType, operation, detail sql.NullString

		if err := rows.Scan(&e.ID, &accountID, &realmID, &tokenID, &e.Type, &e.Status,
			&errorCode, &e.Severity, &sourceIP, &domain, &recordType,
			&operation, &detail, &e.CreatedAt); err != nil {
			return nil, 0, err
		}

		e.AccountID = accountID.String
		e.RealmID = realmID.String
		e.TokenID = tokenID.String
		e.ErrorCode = errorCode.String
		e.SourceIP = sourceIP.String
		e.Domain = domain.String
		e.RecordType = recordType.String
		e.Operation = operation.String
		e.Detail = detail.String

		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
