package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// QueryFile is the on-disk form of the batch term lists:
//
//	locations:
//	  - Domlur
//	  - Banaswadi
//	terms:
//	  - drill machine
type QueryFile struct {
	Locations []string `yaml:"locations"`
	Terms     []string `yaml:"terms"`
}

// LoadQueries reads a YAML query file.
func LoadQueries(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read queries file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("config: parse queries file %s: %w", path, err)
	}
	return &qf, nil
}
