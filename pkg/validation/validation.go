// Package validation checks request DTOs against their struct tags and
// renders failures as client-safe messages carrying the validation
// domain-error code.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "meridian/pkg/domain-errors"
	s "meridian/pkg/string"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks req against its validate tags. Failures come back as a
// single validation domain error describing the first offending field.
func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, message(err))
	}
	return nil
}

// messageFormats maps validator tags to client-facing messages. The %s
// is the snake_cased field name; %v the tag parameter, when one exists.
var messageFormats = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email",
	"url":      "%s must be a valid url",
	"uuid":     "%s must be a valid uuid",
	"min":      "%s must be at least %v",
	"max":      "%s must be at most %v",
	"oneof":    "%s must be one of [%v]",
	"notblank": "%s must not be blank",
}

func message(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request body"
	}

	fe := fieldErrs[0]
	name := fe.Field()
	if name == "" {
		name = fe.StructField()
	}
	field := s.ToSnakeCase(name)
	if field == "" {
		return "invalid request body"
	}

	format, ok := messageFormats[fe.ActualTag()]
	if !ok {
		return fmt.Sprintf("%s is invalid", field)
	}
	if strings.Contains(format, "%v") {
		return fmt.Sprintf(format, field, fe.Param())
	}
	return fmt.Sprintf(format, field)
}
