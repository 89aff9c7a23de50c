package session_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatter-client/internal/api"
	"chatter-client/internal/session"
	"chatter-client/internal/shared/redisx"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rc, err := redisx.Open(ctx, addr)
	require.NoError(t, err)
	defer rc.Close()

	store := session.NewRedisStore(rc.R, "chatter:test:session")
	require.NoError(t, store.Clear(ctx))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	want := session.Snapshot{Token: "tok", Viewer: api.Person{ID: "u1", Name: "Ana"}}
	require.NoError(t, store.Save(ctx, want))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, store.Clear(ctx))
}
