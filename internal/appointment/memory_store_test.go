package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveStatusPredicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	appt := New("PAT00001", "DOC001", now.AddDate(0, 0, 5), 30*time.Minute, TypeConsultation, "", now)
	require.NoError(t, store.Create(ctx, appt))
	require.NoError(t, appt.Approve("DOC001", "", now))
	require.NoError(t, store.Save(ctx, appt, StatusPendingApproval))

	// Two writers mutate the same approved snapshot.
	first, err := store.FindByID(ctx, appt.ID)
	require.NoError(t, err)
	second, err := store.FindByID(ctx, appt.ID)
	require.NoError(t, err)

	require.NoError(t, first.Confirm("PAT00001", now))
	require.NoError(t, store.Save(ctx, first, StatusApproved))

	_, err = second.Cancel("PAT00001", "", 24*time.Hour, now)
	require.NoError(t, err)
	err = store.Save(ctx, second, StatusApproved)
	assert.ErrorIs(t, err, ErrStaleStatus)

	// The winner's state survives.
	final, err := store.FindByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, final.Status)
	assert.Nil(t, final.Cancellation)
}

func TestMemoryStoreSaveUnknownID(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	appt := New("PAT00001", "DOC001", now.AddDate(0, 0, 5), 30*time.Minute, TypeConsultation, "", now)

	err := store.Save(context.Background(), appt, StatusPendingApproval)
	assert.ErrorIs(t, err, ErrNotFound)
}
