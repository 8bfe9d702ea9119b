// Copyright 2025 scmfs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// getConfigDir returns the config directory path.
// Uses SCMFS_CONFIG_DIR env var if set, otherwise defaults to ~/.scmfs.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("SCMFS_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scmfs")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// Settings holds user-level tool configuration.
type Settings struct {
	// LogLevel sets the logging level: trace, debug, info, warn, error,
	// off (default: off)
	LogLevel string `yaml:"log_level"`

	// OverlayDir is the default overlay root used when a command is not
	// given one explicitly.
	OverlayDir string `yaml:"overlay_dir"`
}

// LoadSettings reads the settings file. A missing file yields defaults.
func LoadSettings() (*Settings, error) {
	settings := &Settings{}

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
