// Package validate wraps go-playground/validator for request DTO validation.
// Struct tags declare the rules; Struct() translates violations into an
// apperror validation error with per-field messages so handlers can return
// them directly.
package validate

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/questlog-app/questlog/internal/apperror"
)

var (
	v    *validator.Validate
	once sync.Once
)

// instance returns the shared validator, initializing it on first call.
// Field names in error messages come from the json tag, not the Go name,
// so clients can match messages to their request payload.
func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return v
}

// Struct validates a request DTO against its struct tags. Returns nil when
// valid, or an *apperror.AppError (422) with a field→message map.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError means a programming mistake (nil or non-struct).
		return apperror.NewInternal(fmt.Errorf("validating input: %w", err))
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return apperror.NewValidationFields(fields)
}

// message renders a human-readable message for a single tag violation.
// Covers the tags used by Questlog DTOs; anything else gets a generic message.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	case "lte":
		return fmt.Sprintf("must be %s or less", fe.Param())
	case "eqfield":
		return "does not match"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return "is invalid"
	}
}
