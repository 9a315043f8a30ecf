package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// AffixedEnvFeeder is a feeder that reads environment variables with a prefix and/or suffix
type AffixedEnvFeeder struct {
	Prefix string
	Suffix string
}

// NewAffixedEnvFeeder creates a new AffixedEnvFeeder with the specified prefix and suffix
func NewAffixedEnvFeeder(prefix, suffix string) AffixedEnvFeeder {
	return AffixedEnvFeeder{Prefix: prefix, Suffix: suffix}
}

// Feed reads environment variables and populates the provided structure
func (f AffixedEnvFeeder) Feed(structure interface{}) error {
	if f.Prefix == "" && f.Suffix == "" {
		return ErrEnvEmptyPrefixAndSuffix
	}
	return fillStruct(structure, strings.ToUpper(f.Prefix), strings.ToUpper(f.Suffix), os.LookupEnv)
}

type lookupFunc func(key string) (string, bool)

// fillStruct sets struct fields tagged with `env` from lookup
func fillStruct(structure interface{}, prefix, suffix string, lookup lookupFunc) error {
	inputType := reflect.TypeOf(structure)
	if inputType == nil || inputType.Kind() != reflect.Ptr || inputType.Elem().Kind() != reflect.Struct {
		return ErrEnvInvalidStructure
	}
	return processStructFields(reflect.ValueOf(structure).Elem(), prefix, suffix, lookup)
}

// processStructFields iterates through struct fields
func processStructFields(rv reflect.Value, prefix, suffix string, lookup lookupFunc) error {
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rv.Type().Field(i)

		if err := processField(field, &fieldType, prefix, suffix, lookup); err != nil {
			return fmt.Errorf("error in field '%s': %w", fieldType.Name, err)
		}
	}
	return nil
}

// processField handles a single struct field
func processField(field reflect.Value, fieldType *reflect.StructField, prefix, suffix string, lookup lookupFunc) error {
	if !fieldType.IsExported() {
		return nil
	}

	switch field.Kind() {
	case reflect.Struct:
		if field.Type() != reflect.TypeOf(time.Time{}) {
			return processStructFields(field, prefix, suffix, lookup)
		}
	case reflect.Pointer:
		if !field.IsZero() && field.Elem().Kind() == reflect.Struct {
			return processStructFields(field.Elem(), prefix, suffix, lookup)
		}
	}

	envTag, exists := fieldType.Tag.Lookup("env")
	if !exists || envTag == "" || envTag == "-" {
		return nil
	}
	return setFieldFromEnv(field, envTag, prefix, suffix, lookup)
}

// setFieldFromEnv sets a field value from an environment variable
func setFieldFromEnv(field reflect.Value, envTag, prefix, suffix string, lookup lookupFunc) error {
	envName := strings.ToUpper(envTag)
	if prefix != "" {
		envName = prefix + "_" + envName
	}
	if suffix != "" {
		envName = envName + "_" + suffix
	}

	if envValue, ok := lookup(envName); ok && envValue != "" {
		return SetFieldValue(field, envValue)
	}
	return nil
}

// SetFieldValue converts a string to the field's type and assigns it.
// Slices are comma separated and string maps use "key=value" pairs.
func SetFieldValue(field reflect.Value, strValue string) error {
	if !field.CanSet() {
		return ErrFieldCannotBeSet
	}

	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(strValue)
		if err != nil {
			return fmt.Errorf("cannot convert value to duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.Slice:
		parts := splitList(strValue)
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			if err := SetFieldValue(slice.Index(i), p); err != nil {
				return err
			}
		}
		field.Set(slice)
		return nil
	case reflect.Map:
		if field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("%w: %v", ErrUnsupportedFieldType, field.Type())
		}
		m := reflect.MakeMap(field.Type())
		for _, pair := range splitList(strValue) {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("%w: map entry %q is not key=value", ErrUnsupportedFieldType, pair)
			}
			m.SetMapIndex(reflect.ValueOf(strings.TrimSpace(k)).Convert(field.Type().Key()),
				reflect.ValueOf(strings.TrimSpace(v)).Convert(field.Type().Elem()))
		}
		field.Set(m)
		return nil
	}

	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	field.Set(reflect.ValueOf(convertedValue).Convert(field.Type()))
	return nil
}

func splitList(s string) []string {
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
