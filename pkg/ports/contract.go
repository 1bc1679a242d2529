package ports

import (
	"context"
	"testing"

	"github.com/aretw0/minutes/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	const base int64 = 910000

	t.Run("Save and Load fresh session", func(t *testing.T) {
		s := domain.NewSession(base + 1)
		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, s.UserID)
		require.NoError(t, err)
		assert.Equal(t, s, loaded, "unpopulated metadata must survive the round trip")
	})

	t.Run("Save and Load populated session", func(t *testing.T) {
		s := domain.NewSession(base + 2)
		s.State = domain.StateConfirmingDecisions
		s.Metadata = domain.Metadata{
			ProtocolName:  "Kickoff «альфа»",
			Date:          "2024-05-01",
			ProjectNumber: "P-17",
			ContractYear:  "2024",
			ProjectType:   "Interior",
			ObjectName:    "Office",
			ClientName:    "ACME",
		}
		s.Questions = []string{"Visualization.", "Furniture."}
		s.Decisions = []string{"Approve layout."}
		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, s.UserID)
		require.NoError(t, err)
		assert.Equal(t, s, loaded)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		id := base + 3
		first := domain.NewSession(id)
		first.Metadata.ProtocolName = "old"
		require.NoError(t, store.Save(ctx, first))

		second := domain.NewSession(id)
		require.NoError(t, store.Save(ctx, second))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, loaded.Metadata.ProtocolName)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, base+404)
		assert.ErrorIs(t, err, domain.ErrNoActiveSession)
	})

	t.Run("Delete", func(t *testing.T) {
		id := base + 4
		require.NoError(t, store.Save(ctx, domain.NewSession(id)))
		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNoActiveSession, "Load after Delete should return ErrNoActiveSession")

		assert.NoError(t, store.Delete(ctx, id), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := base+5, base+6
		require.NoError(t, store.Save(ctx, domain.NewSession(id1)))
		require.NoError(t, store.Save(ctx, domain.NewSession(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
