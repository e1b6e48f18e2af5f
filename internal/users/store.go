// Package users resolves the challenge/answer pair a username has on file.
// The store is read-only from this process's point of view: nothing here
// issues or rotates a challenge, it only looks one up.
package users

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Record is the persisted row for one user.
type Record struct {
	Username  string
	Challenge string
	Answer    string
}

// Store looks up users against a SQLite-backed connection pool, having run
// its embedded migrations at construction time.
type Store struct {
	db     *sql.DB
	cipher *AtRestCipher
}

// Open opens (creating if necessary) the SQLite database at path, runs
// pending migrations, and bounds the connection pool to maxOpenConns so
// concurrent handlers queue for a connection rather than exhausting the
// database under burst load.
func Open(path string, maxOpenConns int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	source := migrate.EmbedFileSystemMigrationSource{FileSystem: migrationFiles, Root: "migrations"}
	if _, err := migrate.Exec(db, "sqlite3", source, migrate.Up); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open, already-migrated *sql.DB — used by tests
// that want an in-memory database without touching the filesystem.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// SetCipher enables at-rest decryption of the challenge/answer columns: rows
// are assumed to have been written pre-sealed with the same cipher. Returns
// the receiver so it chains onto Open's result.
func (s *Store) SetCipher(cipher *AtRestCipher) *Store {
	s.cipher = cipher
	return s
}

// FindByUsername returns the record for username, or (nil, nil) if no such
// user exists.
func (s *Store) FindByUsername(ctx context.Context, username string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT username, challenge, answer FROM users WHERE username = ?`, username)

	var rec Record
	if err := row.Scan(&rec.Username, &rec.Challenge, &rec.Answer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if s.cipher != nil {
		challenge, err := s.cipher.Open(rec.Challenge)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt challenge: %w", err)
		}
		answer, err := s.cipher.Open(rec.Answer)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt answer: %w", err)
		}
		rec.Challenge = challenge
		rec.Answer = answer
	}

	return &rec, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
