package astroenv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads environment variables into a struct using `env` tags.
// Variables from the given .env files (default ".env") are added first without
// overriding the real environment; missing files are skipped.
//
// Tag format:
//
//	`env:"ENV_KEY"`           → required, error if missing
//	`env:"ENV_KEY,default"`   → optional, uses default if missing
//
// Supported types: string, int, uint, bool, float64, time.Duration and
// comma separated []string. Supports nested structs.
func Load(cfg interface{}, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}

	// We need a pointer to a struct to be able to set fields
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("astroenv.Load: expected a pointer to a struct, got %T", cfg)
	}

	return parseStruct(v.Elem())
}

// parseStruct iterates over every field in the struct and processes its `env` tag.
// If a field is itself a nested struct, it recurses into it.
func parseStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// ── Nested struct → recurse ──────────────────────────────────────────
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := parseStruct(field); err != nil {
				return err
			}
			continue
		}

		// ── Read the `env` tag ───────────────────────────────────────────────
		tag := fieldType.Tag.Get("env")
		if tag == "" {
			continue // no env tag, skip this field
		}

		key, defaultVal, hasDefault := parseTag(tag)

		// ── Resolve the value: env var → default → error ─────────────────────
		rawVal, err := resolveValue(key, defaultVal, hasDefault, fieldType.Name)
		if err != nil {
			return err
		}

		// ── Cast and set the value into the struct field ──────────────────────
		if err := setField(field, fieldType.Name, rawVal); err != nil {
			return err
		}
	}

	return nil
}

// parseTag splits "ENV_KEY,default_value" into its parts.
// Returns: key, defaultValue, hasDefault
func parseTag(tag string) (string, string, bool) {
	parts := strings.SplitN(tag, ",", 2)
	key := strings.TrimSpace(parts[0])

	if len(parts) == 2 {
		return key, strings.TrimSpace(parts[1]), true
	}

	return key, "", false
}

// resolveValue looks up the env var. Falls back to default. Errors if required and missing.
func resolveValue(key, defaultVal string, hasDefault bool, fieldName string) (string, error) {
	if val := os.Getenv(key); val != "" {
		return val, nil
	}

	if hasDefault {
		return defaultVal, nil
	}

	return "", fmt.Errorf("missing required env variable %q (for field %q)", key, fieldName)
}

// setField converts the raw string value to the correct type and sets it on the struct field.
func setField(field reflect.Value, fieldName, rawVal string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(rawVal)
		if err != nil {
			return fmt.Errorf("field %q: cannot parse %q as duration: %w", fieldName, rawVal, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {

	case reflect.String:
		field.SetString(rawVal)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(rawVal, 10, 64)
		if err != nil {
			return fmt.Errorf("field %q: cannot parse %q as int: %w", fieldName, rawVal, err)
		}
		field.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(rawVal, 10, 64)
		if err != nil {
			return fmt.Errorf("field %q: cannot parse %q as uint: %w", fieldName, rawVal, err)
		}
		field.SetUint(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(rawVal)
		if err != nil {
			return fmt.Errorf("field %q: cannot parse %q as bool (use true/false/1/0): %w", fieldName, rawVal, err)
		}
		field.SetBool(b)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(rawVal, 64)
		if err != nil {
			return fmt.Errorf("field %q: cannot parse %q as float: %w", fieldName, rawVal, err)
		}
		field.SetFloat(f)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("field %q: unsupported slice type %s", fieldName, field.Type())
		}
		var items []string
		for _, item := range strings.Split(rawVal, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("field %q: unsupported type %s", fieldName, field.Kind())
	}

	return nil
}
