// Package errors derives stable metric tag names from Go error values.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
)

// Classify returns a normalized name for an error suitable as a metric or
// log tag. The error chain is unwrapped to its innermost cause and the
// concrete type name is lowercased with package separators flattened, so
// "*errors.AppError" becomes "errors_apperror".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
