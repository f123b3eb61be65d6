package astrocrypt

import (
	"fmt"
	"reflect"

	"github.com/Asteroidea-tn/astrocarver/encrypt"
)

// DecryptStruct decrypts, in place, every string field tagged `encrypt:"true"`,
// descending into nested structs. Empty fields are left alone.
func DecryptStruct(s *encrypt.Service, v interface{}) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("DecryptStruct: expected a pointer to a struct, got %T", v)
	}
	return decryptFields(s, val.Elem())
}

// HasEncryptedFields reports whether any tagged field in v holds a value.
func HasEncryptedFields(v interface{}) bool {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return false
	}
	return hasTagged(val)
}

func decryptFields(s *encrypt.Service, val reflect.Value) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		typeField := typ.Field(i)

		if field.Kind() == reflect.Struct {
			if err := decryptFields(s, field); err != nil {
				return err
			}
			continue
		}

		if typeField.Tag.Get("encrypt") != "true" {
			continue
		}
		if field.Kind() != reflect.String || !field.CanSet() {
			continue
		}

		ciphertext := field.String()
		if ciphertext == "" {
			continue
		}

		decrypted, err := s.Decrypt(ciphertext)
		if err != nil {
			return fmt.Errorf("field %q: %w", typeField.Name, err)
		}

		field.SetString(decrypted)
	}

	return nil
}

func hasTagged(val reflect.Value) bool {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if field.Kind() == reflect.Struct {
			if hasTagged(field) {
				return true
			}
			continue
		}
		if typ.Field(i).Tag.Get("encrypt") == "true" && field.Kind() == reflect.String && field.String() != "" {
			return true
		}
	}
	return false
}
