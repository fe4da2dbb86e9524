// Package validation checks application commands against their struct tags
// and reports every violated field at once.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/shared"
)

// messageTag overrides the message of every rule on a field except "required".
const messageTag = "message"

// Validator wraps a configured validator.Validate.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator that reports fields by their JSON names and knows
// the "grade" rule.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "grade", validGrade)

	return &Validator{validate: v}
}

// mustRegister adds a custom rule. A rejected registration is a programming error.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

func validGrade(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		return grade.InRange(fl.Field().Float())
	default:
		return false
	}
}

// Validate checks s and returns a *shared.ValidationError listing every
// violated field, or nil.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %T: %w", s, err)
	}

	structType := reflect.TypeOf(s)
	for structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	out := shared.NewValidationError()
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), message(structType, fe))
	}
	return out
}

func message(structType reflect.Type, fe validator.FieldError) string {
	if fe.Tag() != "required" {
		if f, ok := structType.FieldByName(fe.StructField()); ok {
			if msg := f.Tag.Get(messageTag); msg != "" {
				return msg
			}
		}
	}

	display := displayName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", display)
	case "max":
		return fmt.Sprintf("The field %s must be a string with a maximum length of %s.", display, fe.Param())
	case "email":
		return fmt.Sprintf("The %s field is not a valid e-mail address.", display)
	case "grade":
		return fmt.Sprintf("Grade must be between %g and %g", grade.MinValue, grade.MaxValue)
	case "gte", "min":
		return fmt.Sprintf("The field %s must be at least %s.", display, fe.Param())
	default:
		return fmt.Sprintf("The field %s is invalid.", display)
	}
}

// displayName turns a JSON field name such as "studentId" into "StudentId".
func displayName(field string) string {
	if field == "" {
		return field
	}
	r := []rune(field)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
