package objectstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*Adapter, *LocalProvider) {
	t.Helper()

	dir := t.TempDir()
	provider, err := NewLocalProvider(dir, "https://store.example.com")
	require.NoError(t, err)

	adapter := NewAdapter(provider, Config{
		Bucket:          "test-bucket",
		Region:          "eu-central-1",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		PresignedTTL:    5 * time.Minute,
	})

	return adapter, provider
}

func TestAdapterListReturnsUsersOwnFiles(t *testing.T) {
	adapter, provider := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, provider.PutObject("test-bucket", "users/alice/notes.txt", []byte("hello")))
	require.NoError(t, provider.PutObject("test-bucket", "users/bob/secret.txt", []byte("nope")))

	files, err := adapter.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, "notes.txt", files[0].Filename)
	assert.Equal(t, int64(len("hello")), files[0].Size)
	assert.NotEmpty(t, files[0].Checksum)
	assert.Contains(t, files[0].URL, "test-bucket")
}

func TestAdapterListPreservesOrder(t *testing.T) {
	adapter, provider := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, provider.PutObject("test-bucket", "users/alice/a.txt", []byte("a")))
	require.NoError(t, provider.PutObject("test-bucket", "users/alice/b.txt", []byte("b")))
	require.NoError(t, provider.PutObject("test-bucket", "users/alice/c.txt", []byte("c")))

	files, err := adapter.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, []string{
		files[0].Filename, files[1].Filename, files[2].Filename,
	})
}

func TestAdapterListEmptyUser(t *testing.T) {
	adapter, _ := newTestAdapter(t)

	files, err := adapter.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestAdapterRemoveIsIdempotent(t *testing.T) {
	adapter, provider := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, provider.PutObject("test-bucket", "users/alice/notes.txt", []byte("hi")))

	require.NoError(t, adapter.Remove(ctx, "alice", "notes.txt"))
	// Removing an already-absent file must still report success.
	require.NoError(t, adapter.Remove(ctx, "alice", "notes.txt"))
}

func TestAdapterPresignedGetURL(t *testing.T) {
	adapter, provider := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, provider.PutObject("test-bucket", "users/alice/notes.txt", []byte("hi")))

	url, err := adapter.PresignedGetURL(ctx, "users/alice/notes.txt")
	require.NoError(t, err)
	assert.Contains(t, url, "notes.txt")
}

func TestAdapterPostPolicy(t *testing.T) {
	adapter, _ := newTestAdapter(t)

	result, err := adapter.PostPolicy(context.Background(), "alice", "notes.txt")
	require.NoError(t, err)

	assert.Equal(t, "users/alice/notes.txt", result.FormData["key"])
	assert.Equal(t, "test-bucket", result.FormData["bucket"])
	assert.NotEmpty(t, result.FormData["policy"])
	assert.NotEmpty(t, result.FormData["x-amz-signature"])
	assert.Contains(t, result.UploadURL, "test-bucket.")
	assert.NotEmpty(t, result.RetrieveURL)
}

func TestUploadURLFromRetrieveURLPrependsBucket(t *testing.T) {
	url, err := uploadURLFromRetrieveURL("https://store.example.com/test-bucket/key", "test-bucket")
	require.NoError(t, err)
	assert.Equal(t, "https://test-bucket.store.example.com", url)
}

func TestUploadURLFromRetrieveURLHostAlreadyPrefixed(t *testing.T) {
	url, err := uploadURLFromRetrieveURL("https://test-bucket.s3.amazonaws.com/key", "test-bucket")
	require.NoError(t, err)
	assert.Equal(t, "https://test-bucket.s3.amazonaws.com", url)
}

func TestLocalProviderRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	provider, err := NewLocalProvider(dir, "https://store.example.com")
	require.NoError(t, err)

	err = provider.PutObject("bucket", "../../etc/passwd", []byte("x"))
	require.Error(t, err)

	_, statErr := os.Stat(dir + "/../../etc/passwd")
	assert.Error(t, statErr)
}
