package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/deadliner/internal/model"
)

func TestFirestoreKeepsDocumentsWithoutDueAt(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	s, err := NewFirestoreStore(ctx, FirestoreConfig{
		ProjectID:  "deadliner-test",
		Collection: "deadlines-" + uuid.NewString(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.coll.Doc("legacy").Set(ctx, map[string]interface{}{
		"courseName":     "HIST",
		"assignmentName": "Essay",
	})
	require.NoError(t, err)
	_, err = s.Insert(ctx, model.Deadline{ID: "dated", DueAt: "2026-02-21T00:00:00.000Z"})
	require.NoError(t, err)

	ds, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "dated", ds[0].ID)
	assert.Equal(t, "legacy", ds[1].ID, "undated documents sort last")
	assert.Empty(t, ds[1].DueAt)

	require.NoError(t, s.ReplaceAll(ctx, ds))
	ds, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, ds, 2)
}
