package localfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/twistedatrocity/swgaide/internal/models"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a catalog export. JSON exports parse
// the same way since YAML is a superset.
type catalogFile struct {
	Resources []catalogEntry `yaml:"resources"`
}

type catalogEntry struct {
	Name     string         `yaml:"name"`
	Class    string         `yaml:"class"`
	Depleted bool           `yaml:"depleted"`
	Planets  []string       `yaml:"planets"`
	Stats    map[string]int `yaml:"stats"`
}

// ReadCatalogFile loads catalog records for import into the local catalog.
func ReadCatalogFile(path string) ([]models.CatalogRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", filepath.Base(path), err)
	}

	records := make([]models.CatalogRecord, 0, len(f.Resources))
	for i, e := range f.Resources {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog file: resource %d has no name", i+1)
		}
		rec := models.CatalogRecord{
			Name:         name,
			Class:        strings.TrimSpace(e.Class),
			Depleted:     e.Depleted,
			Availability: models.NewPlanetSet(),
		}
		for _, p := range e.Planets {
			planet, ok := models.ParsePlanet(p)
			if !ok {
				return nil, fmt.Errorf("catalog file: %s: unknown planet %q", name, p)
			}
			rec.Availability.Add(planet)
		}
		if len(e.Stats) > 0 {
			var block models.StatBlock
			for k, v := range e.Stats {
				st, ok := models.ParseStat(k)
				if !ok {
					return nil, fmt.Errorf("catalog file: %s: unknown stat %q", name, k)
				}
				if v < 1 || v > 1000 {
					return nil, fmt.Errorf("catalog file: %s: %s=%d out of range", name, k, v)
				}
				block[st] = v
			}
			rec.Stats = &block
		}
		records = append(records, rec)
	}
	return records, nil
}
