package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()

	s, err := Load(ctx, backend)
	require.NoError(t, err)
	assert.False(t, s.Authenticated())

	access := tokenExpiring(t, "ana", now.Add(time.Hour))
	require.NoError(t, s.SetTokens(ctx, access, "refresh-1"))
	assert.Equal(t, "ana", s.Username())

	reloaded, err := Load(ctx, backend)
	require.NoError(t, err)
	assert.Equal(t, access, reloaded.Access())
	assert.Equal(t, "refresh-1", reloaded.Refresh())
	assert.Equal(t, "ana", reloaded.Username())
	assert.True(t, reloaded.Authenticated())
}

func TestSetTokensKeepsRefreshWhenOmitted(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, NewMemory())
	require.NoError(t, err)

	require.NoError(t, s.SetTokens(ctx, "a1", "r1"))
	require.NoError(t, s.SetTokens(ctx, "a2", ""))
	assert.Equal(t, "a2", s.Access())
	assert.Equal(t, "r1", s.Refresh())
}

func TestSetTokensKeepsTypedUsernameForOpaqueTokens(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, NewMemory())
	require.NoError(t, err)

	require.NoError(t, s.SetUsername(ctx, "typed@example.com"))
	require.NoError(t, s.SetTokens(ctx, "opaque", "r1"))
	assert.Equal(t, "typed@example.com", s.Username())
}

func TestClearRemovesEveryKey(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	s, err := Load(ctx, backend)
	require.NoError(t, err)
	require.NoError(t, s.SetTokens(ctx, tokenExpiring(t, "ana", now.Add(time.Hour)), "r1"))
	require.NoError(t, backend.Set(ctx, "theme", "dark"))

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.Access())
	assert.Empty(t, s.Refresh())
	assert.Empty(t, s.Username())

	for _, key := range []string{KeyAccess, KeyRefresh, KeyUsername} {
		value, err := backend.Get(ctx, key)
		require.NoError(t, err)
		assert.Emptyf(t, value, "key %s should be gone", key)
	}
	theme, _ := backend.Get(ctx, "theme")
	assert.Equal(t, "dark", theme)
}

type failingBackend struct{ *Memory }

func (failingBackend) Delete(context.Context, ...string) error { return errors.New("disk full") }

func TestClearDropsMemoryStateEvenIfBackendFails(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, failingBackend{NewMemory()})
	require.NoError(t, err)
	require.NoError(t, s.SetTokens(ctx, "a1", "r1"))

	assert.Error(t, s.Clear(ctx))
	assert.Empty(t, s.Access())
	assert.Empty(t, s.Refresh())
}
