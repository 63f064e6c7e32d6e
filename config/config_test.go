package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cratedig/models"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Recommender.SearchCacheMaxAge)
	assert.Equal(t, 7*24*time.Hour, cfg.Recommender.CollectionSyncMaxAge)
	assert.Equal(t, 100, cfg.Recommender.SearchUnitCost)
	assert.Equal(t, 1, cfg.Recommender.FetchUnitCost)
	assert.Equal(t, 10000, cfg.Recommender.QuotaLimits[models.SourceYouTube])
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cratedig.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
recommender:
  search_cache_max_age: 6h
  quota_limits:
    youtube: 5000
database:
  type: sqlite
  path: /tmp/from-file.db
http:
  port: "9000"
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("QUOTA_LIMIT_YOUTUBE", "2500")
	t.Setenv("COLLECTION_SYNC_MAX_AGE_DAYS", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, cfg.Recommender.SearchCacheMaxAge)
	assert.Equal(t, 48*time.Hour, cfg.Recommender.CollectionSyncMaxAge)
	assert.Equal(t, 2500, cfg.Recommender.QuotaLimits[models.SourceYouTube])
	assert.Equal(t, "/tmp/from-file.db", cfg.Database.Path)
	assert.Equal(t, "9000", cfg.HTTP.Port)
}

func TestLoad_ZeroQuotaLimitIsKept(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("QUOTA_LIMIT_YOUTUBE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	limit, ok := cfg.Recommender.QuotaLimits[models.SourceYouTube]
	assert.True(t, ok)
	assert.Equal(t, 0, limit)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	t.Run("bad number", func(t *testing.T) {
		t.Setenv("SEARCH_CACHE_MAX_AGE_HOURS", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown database", func(t *testing.T) {
		t.Setenv("DB_TYPE", "oracle")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("negative quota limit", func(t *testing.T) {
		t.Setenv("QUOTA_LIMIT_YOUTUBE", "-1")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero search cost", func(t *testing.T) {
		t.Setenv("SEARCH_UNIT_COST", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive cache age", func(t *testing.T) {
		t.Setenv("SEARCH_CACHE_MAX_AGE_HOURS", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}
