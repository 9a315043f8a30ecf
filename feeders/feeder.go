// Package feeders provides configuration feeders for reading data from
// environment variables, .env files and JSON, YAML or TOML files.
package feeders

import (
	"errors"
	"fmt"
)

// Feeder populates a configuration structure from a single source.
type Feeder interface {
	Feed(target interface{}) error
}

// ComplexFeeder can additionally extract a single top-level key.
type ComplexFeeder interface {
	Feeder
	FeedKey(key string, target interface{}) error
}

// KeyFeeder feeds a single top-level key of its source's document, so
// settings can live in a section of a larger file.
type KeyFeeder struct {
	Source ComplexFeeder
	Key    string
}

// NewKeyFeeder creates a feeder reading key from source.
func NewKeyFeeder(source ComplexFeeder, key string) KeyFeeder {
	return KeyFeeder{Source: source, Key: key}
}

// Feed decodes the value under Key into target. A missing key leaves
// target untouched.
func (k KeyFeeder) Feed(target interface{}) error {
	return k.Source.FeedKey(k.Key, target)
}

// Static error definitions for feeders
var (
	ErrEnvInvalidStructure     = errors.New("env: invalid structure")
	ErrEnvEmptyPrefixAndSuffix = errors.New("env: prefix or suffix cannot be empty")
	ErrFieldCannotBeSet        = errors.New("field cannot be set")
	ErrUnsupportedFieldType    = errors.New("unsupported field type")
)

// feedKey is a common helper for extracting a specific key from a config
// file: the whole document is decoded into a map, the key is re-encoded and
// decoded into target.
func feedKey(
	feeder Feeder,
	key string,
	target interface{},
	marshalFunc func(interface{}) ([]byte, error),
	unmarshalFunc func([]byte, interface{}) error,
	fileType string,
) error {
	var allData map[string]interface{}

	if err := feeder.Feed(&allData); err != nil {
		return fmt.Errorf("failed to read %s: %w", fileType, err)
	}

	value, exists := allData[key]
	if !exists {
		return nil
	}

	valueBytes, err := marshalFunc(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s data: %w", fileType, err)
	}

	if err = unmarshalFunc(valueBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s data: %w", fileType, err)
	}

	return nil
}
