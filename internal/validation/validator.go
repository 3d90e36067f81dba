package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"lms-assessment/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
)

// Validator validates request DTOs and path parameters
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s and converts failures into domain.ValidationErrors.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.NewInvalidInputError(err.Error())
	}
	out := make(domain.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, toValidationError(fe))
	}
	return out
}

func toValidationError(fe validator.FieldError) domain.ValidationError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.NewMissingFieldError(field)
	case "oneof":
		return domain.ValidationError{
			Field:   field,
			Code:    domain.CodeInvalidFormat,
			Message: fmt.Sprintf("%s must be one of [%s]", field, fe.Param()),
			Value:   fe.Value(),
		}
	case "gt", "gte", "lt", "lte", "min", "max":
		return domain.ValidationError{
			Field:   field,
			Code:    domain.CodeOutOfRange,
			Message: fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()),
			Value:   fe.Value(),
		}
	}
	return domain.NewInvalidFormatError(field, fe.Value())
}

// ValidateID validates a positive numeric identifier.
func (v *Validator) ValidateID(field string, id int64) domain.ValidationErrors {
	if err := v.validate.Var(id, "gt=0"); err != nil {
		return domain.ValidationErrors{domain.NewInvalidFormatError(field, id)}
	}
	return nil
}

// ValidateAttemptID checks that the id is a ULID.
func (v *Validator) ValidateAttemptID(attemptID string) domain.ValidationErrors {
	if strings.TrimSpace(attemptID) == "" {
		return domain.ValidationErrors{domain.NewMissingFieldError("attempt_id")}
	}
	if _, err := ulid.ParseStrict(attemptID); err != nil {
		return domain.ValidationErrors{domain.NewInvalidFormatError("attempt_id", attemptID)}
	}
	return nil
}
