package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"crimewatch/pkg/errors"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON name so API errors match the request body
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Struct validates s by its `validate` tags. The first failing field is
// returned as *errors.ValidationError.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errors.NewValidationError(fe.Field(), message(fe), fe.Value())
	}
	return errors.Wrap(errors.ErrInvalidInput, err.Error())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must match layout " + fe.Param()
	case "gte", "lte":
		return "is out of range"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
