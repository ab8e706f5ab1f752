// Package validation checks request DTOs and path parameters.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"coursequiz/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Validator provides request validation functionality
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// ValidateStruct returns one ValidationError per failed field, or nil.
func (v *Validator) ValidateStruct(s interface{}) domain.ValidationErrors {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.ValidationErrors{{Field: "body", Message: err.Error()}}
	}
	out := make(domain.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, toValidationError(fieldPath(fe), fe))
	}
	return out
}

// ValidateID checks a path identifier: a ULID when ulid is set, otherwise a short
// opaque key such as a course id.
func (v *Validator) ValidateID(field, value string, ulid bool) domain.ValidationErrors {
	tag := "required,max=64,excludesall=/?#"
	if ulid {
		tag = "required,ulid"
	}
	err := v.v.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return domain.ValidationErrors{toValidationError(field, fieldErrs[0])}
	}
	return domain.ValidationErrors{domain.NewInvalidFormatError(field, value)}
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i != -1 {
		return ns[i+1:]
	}
	return fe.Field()
}

func toValidationError(field string, fe validator.FieldError) domain.ValidationError {
	switch fe.Tag() {
	case "required":
		return domain.NewMissingFieldError(field)
	case "ulid":
		return domain.NewInvalidFormatError(field, fmt.Sprint(fe.Value()))
	case "min", "gte":
		return domain.ValidationError{Field: field, Message: "must be at least " + fe.Param()}
	case "max", "lte":
		return domain.ValidationError{Field: field, Message: "must be at most " + fe.Param()}
	default:
		return domain.ValidationError{Field: field, Message: fmt.Sprintf("failed the %q rule", fe.Tag())}
	}
}
