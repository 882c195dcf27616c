package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/agent/state"
)

func TestCachedProvider_CallerCannotMutateCache(t *testing.T) {
	ctx := context.Background()
	memories := (&ProviderFactory{Store: persistence.NewMemoryStore(), Cached: true}).Memory()
	scope := Scope{UserID: "u1"}

	saved := []state.MemoryState{{ID: "a", Details: "orig"}}
	require.NoError(t, memories.Save(ctx, scope, saved))
	saved[0].Details = "changed after save"

	got, err := memories.Load(ctx, scope)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "orig", got[0].Details)

	got[0].Details = "changed after load"
	again, err := memories.Load(ctx, scope)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "orig", again[0].Details)
}

func TestCloneValue(t *testing.T) {
	src := []string{"a", "b"}
	cp := cloneValue(src)
	cp[0] = "z"
	assert.Equal(t, []string{"a", "b"}, src)

	var nilSlice []string
	assert.Nil(t, cloneValue(nilSlice))
	assert.Equal(t, 42, cloneValue(42))
}
