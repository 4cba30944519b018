package mapper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// mappingFile is the on-disk shape of a custom mapping override file: one
// native-status table per target system, keyed by canonical status.
//
// systems:
//
//	tracker:
//	  completed: Done
//	  in_progress: "In Progress"
type mappingFile struct {
	Systems map[string]map[string]string `yaml:"systems"`
}

// LoadMappingsFromFile reads path as YAML and registers every entry as a
// custom mapping, on top of (and overriding) whatever overrides New or
// AddCustomMapping already installed. Returns the first registration error
// encountered, after attempting every entry in the file.
func (m *Mapper) LoadMappingsFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read mappings file: %w", err)
	}

	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse mappings file: %w", err)
	}

	var firstErr error
	for system, table := range file.Systems {
		for canonical, native := range table {
			if err := m.AddCustomMapping(domain.System(system), domain.CanonicalStatus(canonical), native); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("system %q canonical %q: %w", system, canonical, err)
			}
		}
	}
	return firstErr
}
