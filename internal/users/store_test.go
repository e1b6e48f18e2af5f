package users

import (
	"context"
	"database/sql"
	"testing"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	// A single in-memory database disappears when its last connection
	// closes; pin the pool to one connection so it stays alive for the
	// duration of the test.
	db.SetMaxOpenConns(1)

	source := migrate.EmbedFileSystemMigrationSource{FileSystem: migrationFiles, Root: "migrations"}
	_, err = migrate.Exec(db, "sqlite3", source, migrate.Up)
	require.NoError(t, err)

	return NewWithDB(db)
}

func TestStoreFindByUsernameFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.db.Exec(
		`INSERT INTO users (username, challenge, answer) VALUES (?, ?, ?)`,
		"alice", "what-is-your-favorite-number", "42")
	require.NoError(t, err)

	rec, err := store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "what-is-your-favorite-number", rec.Challenge)
	assert.Equal(t, "42", rec.Answer)
}

func TestStoreFindByUsernameAbsent(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.FindByUsername(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStoreFindByUsernameDecryptsWithCipher(t *testing.T) {
	store := newTestStore(t)
	cipher, err := NewAtRestCipher(make([]byte, 32))
	require.NoError(t, err)

	sealedChallenge, err := cipher.Seal("what-is-your-favorite-number")
	require.NoError(t, err)
	sealedAnswer, err := cipher.Seal("42")
	require.NoError(t, err)

	_, err = store.db.Exec(
		`INSERT INTO users (username, challenge, answer) VALUES (?, ?, ?)`,
		"alice", sealedChallenge, sealedAnswer)
	require.NoError(t, err)

	store.SetCipher(cipher)

	rec, err := store.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "what-is-your-favorite-number", rec.Challenge)
	assert.Equal(t, "42", rec.Answer)
}

func TestStoreFindByUsernameAfterClose(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.FindByUsername(context.Background(), "alice")
	assert.Error(t, err)
}
