package modelselector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings is a small persisted record: a convenience cache of the
// active tier/family choice, never required for correctness.
type Settings struct {
	Light        NamedModel `json:"light"`
	Heavy        NamedModel `json:"heavy"`
	Thinking     NamedModel `json:"thinking"`
	ActiveFamily string     `json:"active_family,omitempty"`
}

// NamedModel is the minimal identity persisted for each tier.
type NamedModel struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// SaveSettings writes settings to path atomically: tempfile in the same
// directory, fsync, rename over the target — the same durability idiom
// pkg/workflow uses for checkpoint.json.
func SaveSettings(path string, s Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("modelselector: create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("modelselector: marshal settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-settings-*.tmp")
	if err != nil {
		return fmt.Errorf("modelselector: create tempfile: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("modelselector: write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("modelselector: fsync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("modelselector: close tempfile: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("modelselector: rename settings: %w", err)
	}
	return nil
}

// LoadSettings reads a previously saved Settings record. A missing file is
// not an error — it returns the zero value, matching the source's
// load-or-none semantics.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("modelselector: read settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("modelselector: parse settings: %w", err)
	}
	return s, nil
}
