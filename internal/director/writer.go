package director

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteTimeline writes a timeline to a YAML file
func WriteTimeline(tl *Timeline, path string) error {
	data, err := yaml.Marshal(tl)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadTimeline reads a timeline from a YAML file and checks its invariants
func ReadTimeline(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tl Timeline
	if err := yaml.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := tl.Validate(); err != nil {
		return nil, err
	}

	return &tl, nil
}
