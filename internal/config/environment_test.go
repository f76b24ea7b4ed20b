package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const envFixture = `{
  "dev":  {"envName": "DEVELOPMENT", "baseUrl": "http://dev.local"},
  "uat":  {"envName": "UAT", "baseUrl": "https://uat.example.com"},
  "test": {"envName": "TEST", "baseUrl": "https://test.example.com"},
  "prod": {"envName": "PRODUCTION", "baseUrl": "https://example.com"}
}`

func TestParseEnvironment(t *testing.T) {
	for _, name := range []string{"dev", "uat", "test", "prod"} {
		env, err := ParseEnvironment(name)
		require.NoError(t, err)
		assert.Equal(t, Environment(name), env)
	}

	_, err := ParseEnvironment("staging")
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
}

func TestLoadEnvConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "configs/envConfig.json", []byte(envFixture), 0o644))

	t.Run("selects the requested block", func(t *testing.T) {
		env, err := LoadEnvConfig(fs, "configs/envConfig.json", "test")
		require.NoError(t, err)
		assert.Equal(t, "TEST", env.Name())
		assert.Equal(t, "https://test.example.com", env.String("baseUrl"))
	})

	t.Run("empty selector loads nothing", func(t *testing.T) {
		env, err := LoadEnvConfig(fs, "configs/envConfig.json", "")
		require.NoError(t, err)
		assert.Nil(t, env)
		assert.Equal(t, "", env.Name())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadEnvConfig(fs, "nope.json", "dev")
		assert.Error(t, err)
	})

	t.Run("missing block", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "partial.json", []byte(`{"dev": {"envName": "DEV"}}`), 0o644))
		_, err := LoadEnvConfig(fs, "partial.json", "prod")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `environment "prod" not found`)
	})

	t.Run("malformed file", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "bad.json", []byte(`{"dev": `), 0o644))
		_, err := LoadEnvConfig(fs, "bad.json", "dev")
		assert.Error(t, err)
	})
}
