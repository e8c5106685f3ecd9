package coreconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultReturnsValidSettings(t *testing.T) {
	s := Default()
	s.RootDir = "/tmp/project"

	require.NotNil(t, s)
	assert.NotEmpty(t, s.Paths.Code)
	assert.NotEmpty(t, s.Paths.Ignore)
	assert.Equal(t, 1024, s.Dense.Dimension)
	assert.Equal(t, 32, s.Indexing.BatchFiles)
	assert.Equal(t, 512, s.Indexing.BatchChunks)
	assert.NoError(t, Validate(s))
}

func TestLoadFromDirUsesDefaultsWhenNoConfigFile(t *testing.T) {
	tempDir := t.TempDir()

	s, err := NewLoader(tempDir).Load()
	require.NoError(t, err)

	expected := Default()
	assert.Equal(t, expected.Dense.Model, s.Dense.Model)
	assert.Equal(t, expected.Dense.Dimension, s.Dense.Dimension)
	assert.Equal(t, tempDir, s.RootDir)
}

func TestLoadFromDirLoadsConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".codeweaver")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	yaml := `
dense_embedding:
  model: "custom-model"
  dimension: 256
indexing:
  batch_files: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yml"), []byte(yaml), 0o644))

	s, err := NewLoader(tempDir).Load()
	require.NoError(t, err)
	assert.Equal(t, "custom-model", s.Dense.Model)
	assert.Equal(t, 256, s.Dense.Dimension)
	assert.Equal(t, 8, s.Indexing.BatchFiles)
}

func TestLoadFromDirEnvironmentOverridesConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".codeweaver")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yml"), []byte("dense_embedding:\n  dimension: 256\n"), 0o644))

	t.Setenv("CODEWEAVER_DENSE_EMBEDDING_DIMENSION", "512")

	s, err := NewLoader(tempDir).Load()
	require.NoError(t, err)
	assert.Equal(t, 512, s.Dense.Dimension)
}

func TestValidateRejectsNonPositiveBatchSizes(t *testing.T) {
	s := Default()
	s.RootDir = "/tmp/project"
	s.Indexing.BatchFiles = 0

	err := Validate(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestValidateRejectsMissingDenseEndpointWhenEnabled(t *testing.T) {
	s := Default()
	s.RootDir = "/tmp/project"
	s.Dense.Endpoint = ""

	err := Validate(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
}

func TestValidateRejectsEmptyRootDir(t *testing.T) {
	s := Default()

	err := Validate(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyRootDir)
}

func TestToFingerprintSettingsExcludesDisabledSparseProvider(t *testing.T) {
	s := Default()
	s.RootDir = "/tmp/project"

	fp := s.ToFingerprintSettings()
	assert.NotNil(t, fp.DenseProvider)
	assert.Nil(t, fp.SparseProvider)
	assert.Equal(t, "/tmp/project", fp.ProjectRoot)
}
