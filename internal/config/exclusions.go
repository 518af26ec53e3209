package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// exclusionFile accepts either {"exclude": [...]} or a bare list. JSON
// files parse as YAML too.
type exclusionFile struct {
	Exclude []string `yaml:"exclude"`
}

// LoadExclusions reads item ids to skip from a YAML or JSON file
func LoadExclusions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exclusion file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return normalizeIDs(list), nil
	}

	var file exclusionFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing exclusion file %s: %w", path, err)
	}
	return normalizeIDs(file.Exclude), nil
}

// MergeExclusions returns the union of both lists, first-seen order kept
func MergeExclusions(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	merged := make([]string, 0, len(base)+len(extra))
	for _, id := range append(append([]string(nil), base...), extra...) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, id)
	}
	return merged
}

// ExclusionSet returns the configured exclusions as a lookup set
func (c *Config) ExclusionSet() map[string]bool {
	set := make(map[string]bool, len(c.Exclude))
	for _, id := range c.Exclude {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}

func normalizeIDs(ids []string) []string {
	return MergeExclusions(nil, ids)
}
