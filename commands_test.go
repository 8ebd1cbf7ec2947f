package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
	"github.com/bryan-buckman/syllabus/internal/config"
	"github.com/bryan-buckman/syllabus/internal/model"
)

func TestLocalSession(t *testing.T) {
	cfg := config.Default()

	sess, err := localSession(cfg, 0, "")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated)
	assert.Equal(t, 14, sess.NextDays)
	assert.Equal(t, 14, sess.PreviousDays)
	assert.Equal(t, model.FilterAll, sess.Filter)

	sess, err = localSession(cfg, 30, "unlearned")
	require.NoError(t, err)
	assert.Equal(t, 30, sess.NextDays)
	assert.Equal(t, model.FilterUnlearnedOnly, sess.Filter)

	_, err = localSession(cfg, 3, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidHorizon)
	_, err = localSession(cfg, 101, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidHorizon)
	_, err = localSession(cfg, 0, "someday")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestInitStoreJSON(t *testing.T) {
	cfg := config.Default()
	cfg.Learned.Path = filepath.Join(t.TempDir(), "nested", "learned.json")
	ctx := context.Background()

	msg, err := initStore(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg, "created "))

	payload, err := os.ReadFile(cfg.Learned.Path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(payload))

	msg, err = initStore(ctx, cfg)
	require.NoError(t, err)
	assert.Contains(t, msg, "already exists")
}

func TestInitStoreSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Learned.Backend = "sqlite"
	cfg.Learned.Path = filepath.Join(t.TempDir(), "learned.db")

	msg, err := initStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite storage ready", msg)
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, [][]string{
		{"DATE", "LECTURE"},
		{"10/01/2024", "Recursion"},
		{"08/01/2024", "Sorting"},
	}, []model.Style{model.StyleMuted, model.StyleEmphasized})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Recursion")
	assert.Contains(t, lines[2], "Sorting")
}

func TestInitCommandWithoutSheet(t *testing.T) {
	dir := t.TempDir()
	learned := filepath.Join(dir, "learned.json")
	cfgPath := filepath.Join(dir, "syllabus.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("learned:\n  backend: json\n  path: "+learned+"\n"), 0o644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "init"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "created "+learned+"\n", out.String())
	_, err := os.Stat(learned)
	require.NoError(t, err)
}
