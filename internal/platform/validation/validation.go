package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/physio/physio/internal/platform/i18n"
)

// Errors maps a JSON field name to the human-readable rule violations for
// that field. A non-empty Errors is returned as an error by Validate.
type Errors map[string][]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e[f], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Add appends msg to field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Merge copies every message of other into e.
func (e Errors) Merge(other Errors) {
	for f, msgs := range other {
		e[f] = append(e[f], msgs...)
	}
}

// Has reports whether field has at least one violation.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// AsErrors unwraps err into Errors.
func AsErrors(err error) (Errors, bool) {
	var ve Errors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Validator wraps a configured go-playground validator. Field names in
// reported errors are the JSON tag names.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("pesel", func(fl validator.FieldLevel) bool {
		return ValidPESEL(fl.Field().String())
	})
	return &Validator{v: v}
}

// Validate checks s against its `validate` struct tags. Messages are rendered
// in the locale carried by ctx. It returns nil, Errors, or an error for a
// value that cannot be validated at all.
func (v *Validator) Validate(ctx context.Context, s interface{}) error {
	err := v.v.StructCtx(ctx, s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %T: %w", s, err)
	}

	tag := i18n.FromContext(ctx)
	out := Errors{}
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), Message(tag, fe.Field(), fe.Tag(), fe.Param()))
	}
	return out
}

// Message renders a single rule violation for field.
func Message(tag language.Tag, field, rule, param string) string {
	attr := Attribute(field)
	switch rule {
	case "required":
		return i18n.T(tag, i18n.RuleRequired, attr)
	case "string":
		return i18n.T(tag, i18n.RuleString, attr)
	case "min":
		return i18n.T(tag, i18n.RuleMin, attr, param)
	case "max":
		return i18n.T(tag, i18n.RuleMax, attr, param)
	case "email":
		return i18n.T(tag, i18n.RuleEmail, attr)
	case "oneof":
		return i18n.T(tag, i18n.RuleOneOf, attr)
	case "datetime":
		return i18n.T(tag, i18n.RuleDate, attr)
	case "pesel":
		return i18n.T(tag, i18n.RulePESEL, attr)
	default:
		return i18n.T(tag, i18n.RuleInvalid, attr)
	}
}

// Attribute turns a snake_case field name into the words used in messages.
func Attribute(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
