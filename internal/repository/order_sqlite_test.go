package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"memberhub-api/internal/model"

	"github.com/stretchr/testify/require"
)

func newTestOrderRepo(t *testing.T) *SQLiteOrderRepository {
	t.Helper()
	repo, err := NewSQLiteOrderRepository(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedOrder(t *testing.T, repo *SQLiteOrderRepository, id, status string, meta ...model.MetaEntry) {
	t.Helper()
	err := repo.InsertOrder(context.Background(), model.Order{
		ID:        id,
		Status:    status,
		Metadata:  meta,
		LineItems: []model.LineItem{{Name: "Membership 1 Tahun"}},
		Billing:   model.Billing{FirstName: "Test", Email: "t@example.com"},
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestCountFiltersByStatus(t *testing.T) {
	repo := newTestOrderRepo(t)
	ctx := context.Background()

	seedOrder(t, repo, "1", model.StatusCompleted)
	seedOrder(t, repo, "2", model.StatusCompleted)
	seedOrder(t, repo, "3", model.StatusFinished)

	total, err := repo.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, total)

	completed, err := repo.Count(ctx, model.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, 2, completed)
}

func TestPageIsOneIndexed(t *testing.T) {
	repo := newTestOrderRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.InsertOrder(ctx, model.Order{
			ID:        string(rune('a' + i)),
			Status:    model.StatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	p1, err := repo.Page(ctx, 1, 2, "")
	require.NoError(t, err)
	require.Len(t, p1, 2)
	require.Equal(t, "a", p1[0].ID)

	p3, err := repo.Page(ctx, 3, 2, "")
	require.NoError(t, err)
	require.Len(t, p3, 1)
	require.Equal(t, "e", p3[0].ID)
}

func TestUpdateMetadataPatchSemantics(t *testing.T) {
	repo := newTestOrderRepo(t)
	ctx := context.Background()

	seedOrder(t, repo, "10", model.StatusCompleted,
		model.MetaEntry{Key: model.MetaActivationUUID, Value: "abc-123"})

	got, err := repo.UpdateMetadata(ctx, "10", []model.MetaEntry{
		{Key: model.MetaDiscordID, Value: "42"},
		{Key: model.MetaActivationUUID, Value: "abc-123"}, // overwrite same key
	})
	require.NoError(t, err)
	require.Equal(t, "42", got.Meta(model.MetaDiscordID))
	require.Equal(t, "abc-123", got.Meta(model.MetaActivationUUID))

	// Persisted, not just returned.
	page, err := repo.Page(ctx, 1, 10, "")
	require.NoError(t, err)
	require.Equal(t, "42", page[0].Meta(model.MetaDiscordID))
}

func TestSetStatusRetiresOrder(t *testing.T) {
	repo := newTestOrderRepo(t)
	ctx := context.Background()

	seedOrder(t, repo, "20", model.StatusCompleted)

	got, err := repo.SetStatus(ctx, "20", model.StatusFinished, []model.MetaEntry{
		{Key: model.MetaIsOld, Value: "true"},
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusFinished, got.Status)
	require.True(t, got.IsOld())

	completed, err := repo.Count(ctx, model.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, 0, completed)
}

func TestMutateUnknownOrder(t *testing.T) {
	repo := newTestOrderRepo(t)
	_, err := repo.UpdateMetadata(context.Background(), "missing", nil)
	require.True(t, errors.Is(err, ErrOrderNotFound))
}
