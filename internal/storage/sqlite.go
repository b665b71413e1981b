package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shohag/smsrelay/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS records (
			namespace TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Quota ---

func (s *SQLiteStorage) GetQuota(ctx context.Context) (*models.QuotaState, error) {
	var q models.QuotaState
	ok, err := s.get(ctx, QuotaNamespace, &q)
	if err != nil || !ok {
		return nil, err
	}
	return &q, nil
}

func (s *SQLiteStorage) PutQuota(ctx context.Context, q *models.QuotaState) error {
	return s.put(ctx, QuotaNamespace, q)
}

// --- Credentials ---

func (s *SQLiteStorage) GetCredentials(ctx context.Context) (*models.Credentials, error) {
	var c models.Credentials
	ok, err := s.get(ctx, CredentialsNamespace, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStorage) PutCredentials(ctx context.Context, c *models.Credentials) error {
	return s.put(ctx, CredentialsNamespace, c)
}

func (s *SQLiteStorage) get(ctx context.Context, namespace string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE namespace = ?`, namespace,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, decodeRecord(namespace, []byte(raw), dst)
}

func (s *SQLiteStorage) put(ctx context.Context, namespace string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (namespace, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(namespace) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, string(raw), time.Now().UTC(),
	)
	return err
}
