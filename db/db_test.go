package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmwars/models"
)

// The no-op store is the adapter used when no database is configured. Every
// operation must succeed with empty results so callers never special-case a
// missing database.
func TestNoopStore(t *testing.T) {
	store := Noop()
	ctx := context.Background()

	state := models.NewBattleState(models.BattleConfig{Topic: "t", Rounds: 1})
	assert.NoError(t, store.SaveBattle(ctx, state))

	loaded, err := store.LoadBattle(ctx, state.ID)
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	assert.NoError(t, store.SaveVote(ctx, state.ID, models.ProviderOpenAI))

	counts, err := store.VoteCounts(ctx, state.ID)
	require.NoError(t, err)
	require.Len(t, counts, len(models.Providers))
	for _, p := range models.Providers {
		assert.Equal(t, 0, counts[p])
	}

	assert.NoError(t, store.Close())
}

func TestZeroVoteCountsCoversAllProviders(t *testing.T) {
	counts := zeroVoteCounts()
	require.Len(t, counts, len(models.Providers))
	for _, p := range models.Providers {
		count, ok := counts[p]
		assert.True(t, ok)
		assert.Zero(t, count)
	}
}
