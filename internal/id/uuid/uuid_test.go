package uuid

import (
	"testing"
	"time"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestGeneratorNewID ensures generated IDs are unique v7 UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())
}

// TestCreatedAt reads the timestamp back out of a fresh run ID.
func TestCreatedAt(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	id, err := New().NewID()
	require.NoError(t, err)

	ts, ok := CreatedAt(id)
	require.True(t, ok)
	require.WithinRange(t, ts, before, time.Now().Add(time.Second))

	_, ok = CreatedAt(goUUID.NewString())
	require.False(t, ok, "v4 IDs carry no timestamp")
	_, ok = CreatedAt("not-a-uuid")
	require.False(t, ok)
}
