package feeders

import (
	"encoding/json"
	"fmt"
	"os"
)

// JSONFeeder is a feeder that reads JSON files
type JSONFeeder struct {
	Path string
}

// NewJSONFeeder creates a new JSONFeeder that reads from the specified JSON file
func NewJSONFeeder(filePath string) JSONFeeder {
	return JSONFeeder{Path: filePath}
}

// Feed decodes the JSON file into structure
func (j JSONFeeder) Feed(structure interface{}) error {
	data, err := os.ReadFile(j.Path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file %s: %w", j.Path, err)
	}
	if err := json.Unmarshal(data, structure); err != nil {
		return fmt.Errorf("failed to parse JSON file %s: %w", j.Path, err)
	}
	return nil
}

// FeedKey reads a JSON file and extracts a specific key
func (j JSONFeeder) FeedKey(key string, target interface{}) error {
	return feedKey(j, key, target, json.Marshal, json.Unmarshal, "JSON")
}
