package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FolderSettingsFile is the per-directory override file name.
const FolderSettingsFile = ".weft-folder.yml"

// FolderSettings overrides project-wide output settings for the sources in
// one folder and its subfolders. The nearest settings file on the path from
// a source file up to the source root wins.
type FolderSettings struct {
	// Output replaces the output base directory. A relative path is resolved
	// against the folder holding the settings file.
	Output string `yaml:"output"`
	// Profile applies to outputs in this folder that do not declare one.
	Profile string `yaml:"profile"`
}

// LoadFolderSettings reads the settings file in dir. A missing file is not
// an error; it returns nil settings.
func LoadFolderSettings(dir string) (*FolderSettings, error) {
	data, err := os.ReadFile(filepath.Join(dir, FolderSettingsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading folder settings in %s: %w", dir, err)
	}

	var settings FolderSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing %s in %s: %w", FolderSettingsFile, dir, err)
	}

	if settings.Output != "" {
		if err := validatePath(settings.Output); err != nil {
			return nil, fmt.Errorf("folder settings in %s: %w", dir, err)
		}
	}

	return &settings, nil
}

// FindFolderSettings walks from dir up to root looking for the nearest
// settings file. It returns the settings and the folder they were found in,
// or nil settings when no settings file exists on the path or dir lies
// outside root.
func FindFolderSettings(dir, root string) (*FolderSettings, string, error) {
	root = filepath.Clean(root)
	current := filepath.Clean(dir)

	for {
		settings, err := LoadFolderSettings(current)
		if err != nil {
			return nil, "", err
		}
		if settings != nil {
			return settings, current, nil
		}

		if current == root {
			return nil, "", nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached the filesystem root without meeting the source root,
			// so dir was not inside it.
			return nil, "", nil
		}
		current = parent
	}
}
