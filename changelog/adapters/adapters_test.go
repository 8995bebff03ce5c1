package adapters

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/docstore/changelog"
)

func testSnapshot(t *testing.T) changelog.Snapshot {
	t.Helper()

	name := "changes-test-" + time.Now().UTC().Format("20060102T150405.000000000Z") + ".jsonl"
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(`{"action":"insert"}`+"\n"), 0o644))

	now := time.Now().UTC().Truncate(time.Microsecond)
	return changelog.Snapshot{Name: name, Path: path, Changes: 1, First: now, Last: now}
}

func TestConsul_Keys(t *testing.T) {
	c, err := NewConsul(&ConsulConfig{Prefix: "/audit/docstore/"})
	require.NoError(t, err)
	assert.Equal(t, "consul", c.Name())
	assert.Equal(t, "audit/docstore/latest", c.latestKey())
	assert.Equal(t, "audit/docstore/history/a.jsonl", c.historyKey("a.jsonl"))

	c, err = NewConsul(nil)
	require.NoError(t, err)
	assert.Equal(t, "docstore/changelog/latest", c.latestKey())
}

func TestConsul_Live(t *testing.T) {
	address := os.Getenv("DOCSTORE_TEST_CONSUL_ADDR")
	if address == "" {
		t.Skip("DOCSTORE_TEST_CONSUL_ADDR not set")
	}

	c, err := NewConsul(&ConsulConfig{Address: address, Prefix: "docstore-test/" + t.Name()})
	require.NoError(t, err)

	snapshot := testSnapshot(t)
	require.NoError(t, c.Notify(t.Context(), snapshot))

	latest, err := c.Latest(t.Context())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, snapshot.Name, latest.Name)
}

func TestPostgres_InvalidConnString(t *testing.T) {
	_, err := NewPostgres(t.Context(), "://not a dsn")
	assert.Error(t, err)
}

func TestPostgres_Live(t *testing.T) {
	dsn := os.Getenv("DOCSTORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DOCSTORE_TEST_POSTGRES_DSN not set")
	}

	pa, err := NewPostgres(t.Context(), dsn)
	require.NoError(t, err)
	defer pa.Close()

	snapshot := testSnapshot(t)
	require.NoError(t, pa.Notify(t.Context(), snapshot))
	require.NoError(t, pa.Notify(t.Context(), snapshot))

	recent, err := pa.Recent(t.Context(), 10)
	require.NoError(t, err)

	found := false
	for _, s := range recent {
		if s.Name == snapshot.Name {
			found = true
			assert.Equal(t, snapshot.Changes, s.Changes)
		}
	}
	assert.True(t, found)
}

func TestS3_Config(t *testing.T) {
	_, err := NewS3(&S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	sa, err := NewS3(&S3Config{Endpoint: "localhost:9000", Bucket: "audit"})
	require.NoError(t, err)
	assert.Equal(t, "s3", sa.Name())
	assert.Equal(t, "changelog/a.jsonl", sa.objectKey("a.jsonl"))
}

func TestS3_Live(t *testing.T) {
	endpoint := os.Getenv("DOCSTORE_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("DOCSTORE_TEST_S3_ENDPOINT not set")
	}

	sa, err := NewS3(&S3Config{
		Endpoint:  endpoint,
		Bucket:    os.Getenv("DOCSTORE_TEST_S3_BUCKET"),
		AccessKey: os.Getenv("DOCSTORE_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("DOCSTORE_TEST_S3_SECRET_KEY"),
	})
	require.NoError(t, err)
	require.NoError(t, sa.Open(t.Context()))
	require.NoError(t, sa.Notify(t.Context(), testSnapshot(t)))
}
