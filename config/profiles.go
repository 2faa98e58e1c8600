package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SearchProfile is one configured search URL with its notification policy.
// Profiles are defined at deploy time and never mutated by the running
// process.
type SearchProfile struct {
	ID                  string `yaml:"id"`
	Name                string `yaml:"name"`
	URL                 string `yaml:"url"`
	Enabled             bool   `yaml:"enabled"`
	NotifyOnNew         bool   `yaml:"notify_on_new"`
	NotifyOnAvailable   bool   `yaml:"notify_on_available"`
	NotifyOnPriceChange bool   `yaml:"notify_on_price_change"`
}

func loadProfiles(dir string) ([]*SearchProfile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var profiles []*SearchProfile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var profile SearchProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if profile.ID == "" {
			return nil, fmt.Errorf("%s: profile id is required", path)
		}
		if profile.URL == "" {
			return nil, fmt.Errorf("%s: profile url is required", path)
		}

		profiles = append(profiles, &profile)
	}

	return profiles, nil
}

// EnabledProfiles filters out disabled profiles.
func (c *Config) EnabledProfiles() []*SearchProfile {
	var enabled []*SearchProfile
	for _, p := range c.Profiles {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// ProfileByID returns nil when no profile matches.
func (c *Config) ProfileByID(id string) *SearchProfile {
	for _, p := range c.Profiles {
		if p.ID == id {
			return p
		}
	}
	return nil
}
