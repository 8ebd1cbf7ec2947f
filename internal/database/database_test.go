package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/syllabus/internal/model"
)

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := New(filepath.Join(t.TempDir(), "learned.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	empty, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	want := model.LearnedState{"L1": true, "L2": false, "Bài 2": true}
	require.NoError(t, db.Save(ctx, want))
	got, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, db.Save(ctx, model.LearnedState{"L2": true}))
	got, err = db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.LearnedState{"L2": true}, got)
}

func TestSQLiteReopenKeepsState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "learned.db")

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.Save(ctx, model.LearnedState{"L1": true}))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	got, err := db.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Get("L1"))
}
