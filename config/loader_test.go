package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Review.MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.Review.FeedbackTimeout)
	assert.Equal(t, 25, cfg.Review.TitleMaxChars)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("review:\n  max_retries: 5\n  bp_record_count: 7\n"), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Review.MaxRetries)
	assert.Equal(t, 7, cfg.Review.BPRecordCount)
	// untouched fields keep their default
	assert.Equal(t, 25, cfg.Review.TitleMaxChars)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("review:\n  max_retries: 5\n"), 0o644))

	t.Setenv("REVIEW_MAX_RETRIES", "9")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Review.MaxRetries)
}

func TestValidate_RejectsNonPositiveBudgets(t *testing.T) {
	cfg := Default()
	cfg.Review.PromptCharBudget = 0
	assert.Error(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "data/review.db"}
	assert.Equal(t, "data/review.db", sqlite.DSN())

	pg := DatabaseConfig{Driver: "postgres", Host: "db", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Contains(t, pg.DSN(), "host=db")
	assert.Contains(t, pg.DSN(), "dbname=n")
}
