package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Details turns a gin binding error into a field_errors map keyed by the JSON
// field names of req. Returns nil when err carries no field-level information,
// so callers can pass the result straight to the details slot of an error
// response.
func Details(err error, req any) map[string]any {
	fieldErrors := map[string]string{}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		requestType := reflect.TypeOf(req)
		if requestType != nil && requestType.Kind() == reflect.Pointer {
			requestType = requestType.Elem()
		}
		for _, fieldError := range validationErrors {
			fieldName := fieldError.Field()
			if requestType != nil && requestType.Kind() == reflect.Struct {
				if field, ok := requestType.FieldByName(fieldError.StructField()); ok {
					jsonTag := field.Tag.Get("json")
					if jsonTag == "" {
						jsonTag = field.Tag.Get("form")
					}
					if jsonTag != "" {
						fieldName = strings.Split(jsonTag, ",")[0]
					}
				}
			}
			fieldErrors[fieldName] = message(fieldError)
		}
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return map[string]any{
		"field_errors": fieldErrors,
	}
}

func message(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "is required"
	case "min":
		return "is too short"
	case "max":
		return "is too long"
	case "oneof":
		return "must be one of: " + fieldError.Param()
	case "uuid":
		return "must be a valid UUID"
	default:
		return "is invalid"
	}
}
