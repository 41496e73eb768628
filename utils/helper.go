package utils

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// 11-digit RUC, numeric only
var rucPattern = regexp.MustCompile(`^\d{11}$`)

func IsValidRuc(ruc string) bool {
	return rucPattern.MatchString(ruc)
}

// ProcessValidationErrors flattens binding failures into a field -> rule
// map for API responses. Non-validator errors map to a single "error" entry.
func ProcessValidationErrors(err error) map[string]string {

	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["error"] = err.Error()
		return errorResponse
	}

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}
