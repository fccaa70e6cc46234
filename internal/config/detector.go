// internal/config/detector.go
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DetectBackendType determines the backend type from the configuration file
func DetectBackendType(configPath string) (string, error) {
	// Check for environment variable override first
	if envType := os.Getenv(EnvPrefix + "_BACKEND_TYPE"); envType != "" {
		return normalizeBackendType(envType), nil
	}

	configFile, err := resolveConfigFilePath(configPath)
	if err != nil {
		return "", fmt.Errorf("cannot detect backend: %w", err)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return "", fmt.Errorf("failed to read config file: %w", err)
	}

	var config RootConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return "", fmt.Errorf("invalid configuration file: %w", err)
	}

	if config.Backend.Type == "" {
		return "", fmt.Errorf("backend type not specified in config")
	}

	return normalizeBackendType(config.Backend.Type), nil
}

func normalizeBackendType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "dynamo":
		return "dynamodb"
	case "scylla", "cassandra":
		return "scylladb"
	case "mem", "inmemory":
		return "memory"
	}
	return t
}
