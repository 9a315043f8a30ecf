package feeders

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
)

// DotEnvFeeder reads a .env file and populates `env` tagged fields from it
// without touching the process environment.
type DotEnvFeeder struct {
	Path   string
	Prefix string
}

// NewDotEnvFeeder creates a new DotEnvFeeder that reads from the specified .env file.
// Keys are matched as PREFIX_TAG; an empty prefix matches the bare tag.
func NewDotEnvFeeder(filePath, prefix string) DotEnvFeeder {
	return DotEnvFeeder{Path: filePath, Prefix: prefix}
}

// Feed parses the .env file and populates the provided structure
func (f DotEnvFeeder) Feed(structure interface{}) error {
	vars, err := godotenv.Read(f.Path)
	if err != nil {
		return fmt.Errorf("failed to parse .env file: %w", err)
	}
	lookup := func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
	return fillStruct(structure, strings.ToUpper(f.Prefix), "", lookup)
}
