package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRuntimeParams(t *testing.T) {
	params := [][2]string{{"timezone", "America/Fortaleza"}, {"client_encoding", ""}}

	got, err := withRuntimeParams("postgres://u:p@localhost:5432/caps?sslmode=disable", params)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/caps?sslmode=disable&timezone=America%2FFortaleza", got)

	got, err = withRuntimeParams("host=localhost dbname=caps", params)
	require.NoError(t, err)
	assert.Equal(t, "host=localhost dbname=caps timezone='America/Fortaleza'", got)

	got, err = withRuntimeParams("host=localhost", nil)
	require.NoError(t, err)
	assert.Equal(t, "host=localhost", got)
}

func TestQuoteValue(t *testing.T) {
	assert.Equal(t, "'UTC'", quoteValue("UTC"))
	assert.Equal(t, `'a\'b\\c'`, quoteValue(`a'b\c`))
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LEVELDB_PATH", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Contains(t, cfg.DSN, "postgres://")
	assert.Equal(t, filepath.Join("data", "caps.ldb"), cfg.LevelPath)
}

func TestConfigFromEnv_LevelDB(t *testing.T) {
	t.Setenv("STORE_DRIVER", "LevelDB")
	t.Setenv("LEVELDB_PATH", "/tmp/x.ldb")

	cfg := ConfigFromEnv()
	assert.Equal(t, DriverLevelDB, cfg.Driver)
	assert.Equal(t, "/tmp/x.ldb", cfg.LevelPath)
}

func TestOpenLevel_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{LevelPath: filepath.Join(dir, "nested", "caps.ldb")}

	db, err := OpenLevel(cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v"), nil))
	v, err := db.Get([]byte("k"), nil)
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
}
