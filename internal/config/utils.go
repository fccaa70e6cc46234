// internal/config/utils.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var errNoConfigFile = errors.New("no config file found")

var configFileNames = []string{"config.yaml", "config.yml", "editwarning.yaml", "editwarning.yml"}

// resolveConfigFilePath determines the actual configuration file path
func resolveConfigFilePath(configPath string) (string, error) {
	if configPath == "" {
		return "", errNoConfigFile
	}

	fileInfo, err := os.Stat(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w at %s", errNoConfigFile, configPath)
		}
		return "", err
	}

	if !fileInfo.IsDir() {
		return configPath, nil
	}

	for _, name := range configFileNames {
		candidate := filepath.Join(configPath, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w in directory %s", errNoConfigFile, configPath)
}
