// File: internal/config/environment.go
package config

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

// Environment names a block of the environment config file.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvUAT  Environment = "uat"
	EnvTest Environment = "test"
	EnvProd Environment = "prod"
)

// ParseEnvironment maps a selector onto the closed set of known environments.
func ParseEnvironment(name string) (Environment, error) {
	switch env := Environment(name); env {
	case EnvDev, EnvUAT, EnvTest, EnvProd:
		return env, nil
	default:
		return "", fmt.Errorf("%w: %q (expected dev, uat, test or prod)", ErrUnknownEnvironment, name)
	}
}

// EnvConfig is the selected block of the environment config file, e.g. base URLs and credentials for "uat".
type EnvConfig map[string]any

// Name returns the block's envName entry, used in report metadata.
func (e EnvConfig) Name() string {
	if e == nil {
		return ""
	}
	if s, ok := e["envName"].(string); ok {
		return s
	}
	return ""
}

// String returns a top level string value, or "" when absent.
func (e EnvConfig) String(key string) string {
	if s, ok := e[key].(string); ok {
		return s
	}
	return ""
}

var envJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// LoadEnvConfig reads path and returns the block selected by name.
// An empty name selects nothing and returns a nil EnvConfig.
func LoadEnvConfig(fs afero.Fs, path, name string) (EnvConfig, error) {
	if name == "" {
		return nil, nil
	}
	env, err := ParseEnvironment(name)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment config %s: %w", path, err)
	}

	var blocks map[string]EnvConfig
	if err := envJSON.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("failed to parse environment config %s: %w", path, err)
	}

	block, ok := blocks[string(env)]
	if !ok {
		return nil, fmt.Errorf("environment %q not found in %s", env, path)
	}
	return block, nil
}
