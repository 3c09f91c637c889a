package app

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgc/internal/config"
	"sgc/internal/db"
	"sgc/internal/engine/auth"
	"sgc/internal/migrate"
	"sgc/internal/repo"
)

func TestInitWritesConfigAndMigrates(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	path, err := Init(ctx, dir, false)
	require.NoError(t, err)
	assert.Equal(t, config.Path(dir), path)
	_, err = os.Stat(db.Path(dir))
	require.NoError(t, err)

	// an existing config is kept unless forced
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	_, err = Init(ctx, dir, false)
	require.Error(t, err)
	_, err = Init(ctx, dir, true)
	require.NoError(t, err)
}

func TestOpenFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(context.Background(), dir, io.Discard)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "SEDOC", a.Config.UnidadeAdmin)
	v, err := migrate.Version(context.Background(), a.DB)
	require.NoError(t, err)
	latest, err := migrate.Latest()
	require.NoError(t, err)
	assert.Equal(t, latest, v)

	procs, err := a.Engine.ListProcessos(context.Background(), auth.Ator{}, repo.ProcessoFilters{})
	require.NoError(t, err)
	assert.Empty(t, procs)
}
