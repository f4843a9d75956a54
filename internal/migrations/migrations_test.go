package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_ArePaired(t *testing.T) {
	ups, err := fs.Glob(MigrationFiles, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(MigrationFiles, down)
		assert.NoError(t, err, "missing down migration for %s", up)
	}
}

func TestMigrationFiles_CreateRunHistory(t *testing.T) {
	data, err := fs.ReadFile(MigrationFiles, "000001_create_monitor_runs.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS monitor_runs")
}
