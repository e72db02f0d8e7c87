package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"agrivoltaic-dashboard/internal/models"
)

// SitesFile is the YAML document describing where each site's data lives:
//
//	sites:
//	  open_field:
//	    path: data/open.csv
//	    columns:
//	      irradiance: "GHI_Open_Field (W/m2)"
type SitesFile struct {
	Sites map[models.Site]models.SiteSpec `yaml:"sites"`
}

// LoadSitesFile reads a sites file. A missing file yields an empty
// SitesFile and nil error.
func LoadSitesFile(path string) (*SitesFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &SitesFile{}, nil
		}
		return nil, err
	}

	var f SitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// ApplySitesFile merges the non-empty settings of the file at path into sites
func ApplySitesFile(sites map[models.Site]models.SiteSpec, path string) error {
	f, err := LoadSitesFile(path)
	if err != nil {
		return err
	}

	for site, override := range f.Sites {
		if !site.Valid() {
			return fmt.Errorf("unknown site %q in %s", site, path)
		}
		spec := sites[site]
		spec.Site = site
		if override.Label != "" {
			spec.Label = override.Label
		}
		if override.Path != "" {
			spec.Path = override.Path
		}
		if len(override.Columns) > 0 {
			merged := make(map[models.Field]string, len(spec.Columns)+len(override.Columns))
			for field, column := range spec.Columns {
				merged[field] = column
			}
			for field, column := range override.Columns {
				if !field.Valid() {
					return fmt.Errorf("unknown field %q for site %s in %s", field, site, path)
				}
				merged[field] = column
			}
			spec.Columns = merged
		}
		sites[site] = spec
	}
	return nil
}
