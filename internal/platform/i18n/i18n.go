package i18n

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"
)

// Key identifies a translatable message.
type Key string

const (
	PatientsListed  Key = "patients.listed"
	PatientCreated  Key = "patient.created"
	PatientShown    Key = "patient.shown"
	PatientUpdated  Key = "patient.updated"
	PatientDeleted  Key = "patient.deleted"
	StatusHealthy   Key = "status.healthy"
	StatusUnhealthy Key = "status.unhealthy"

	ErrValidation      Key = "error.validation"
	ErrNotFound        Key = "error.not_found"
	ErrUnauthenticated Key = "error.unauthenticated"
	ErrForbidden       Key = "error.forbidden"
	ErrBadRequest      Key = "error.bad_request"
	ErrMethodNotAllow  Key = "error.method_not_allowed"
	ErrPayloadTooLarge Key = "error.payload_too_large"
	ErrTooManyRequests Key = "error.too_many_requests"
	ErrTimeout         Key = "error.timeout"
	ErrUnavailable     Key = "error.unavailable"
	ErrInternal        Key = "error.internal"

	RuleRequired     Key = "rule.required"
	RuleString       Key = "rule.string"
	RuleMin          Key = "rule.min"
	RuleMax          Key = "rule.max"
	RuleEmail        Key = "rule.email"
	RuleOneOf        Key = "rule.oneof"
	RuleDate         Key = "rule.date"
	RulePESEL        Key = "rule.pesel"
	RuleUnknownField Key = "rule.unknown_field"
	RuleInvalid      Key = "rule.invalid"
)

// Supported lists the locales with a full catalog. The first entry is the
// matcher's fallback.
var Supported = []language.Tag{language.English, language.Polish}

var matcher = language.NewMatcher(Supported)

var catalog = map[language.Tag]map[Key]string{
	language.English: {
		PatientsListed:  "Patients retrieved successfully.",
		PatientCreated:  "Patient created successfully.",
		PatientShown:    "Patient retrieved successfully.",
		PatientUpdated:  "Patient updated successfully.",
		PatientDeleted:  "Patient deleted successfully.",
		StatusHealthy:   "Service is healthy.",
		StatusUnhealthy: "Service is unhealthy.",

		ErrValidation:      "The given data was invalid.",
		ErrNotFound:        "Resource not found.",
		ErrUnauthenticated: "Unauthenticated.",
		ErrForbidden:       "This action is unauthorized.",
		ErrBadRequest:      "The request could not be understood.",
		ErrMethodNotAllow:  "The method is not allowed for this resource.",
		ErrPayloadTooLarge: "The request body is too large.",
		ErrTooManyRequests: "Too many requests.",
		ErrTimeout:         "The request took too long to process.",
		ErrUnavailable:     "The service is temporarily unavailable.",
		ErrInternal:        "Something went wrong. Please try again later.",

		RuleRequired:     "The %s field is required.",
		RuleString:       "The %s must be a string.",
		RuleMin:          "The %s must be at least %s characters.",
		RuleMax:          "The %s must not be greater than %s characters.",
		RuleEmail:        "The %s must be a valid email address.",
		RuleOneOf:        "The selected %s is invalid.",
		RuleDate:         "The %s is not a valid date.",
		RulePESEL:        "The %s format is invalid.",
		RuleUnknownField: "The %s field contains an unknown column: %s.",
		RuleInvalid:      "The %s is invalid.",
	},
	language.Polish: {
		PatientsListed:  "Pobrano listę pacjentów.",
		PatientCreated:  "Pacjent został dodany.",
		PatientShown:    "Pobrano dane pacjenta.",
		PatientUpdated:  "Dane pacjenta zostały zaktualizowane.",
		PatientDeleted:  "Pacjent został usunięty.",
		StatusHealthy:   "Usługa działa poprawnie.",
		StatusUnhealthy: "Usługa nie działa poprawnie.",

		ErrValidation:      "Przesłane dane są nieprawidłowe.",
		ErrNotFound:        "Nie znaleziono zasobu.",
		ErrUnauthenticated: "Brak uwierzytelnienia.",
		ErrForbidden:       "Brak uprawnień do wykonania tej operacji.",
		ErrBadRequest:      "Nieprawidłowe żądanie.",
		ErrMethodNotAllow:  "Metoda nie jest dozwolona dla tego zasobu.",
		ErrPayloadTooLarge: "Treść żądania jest zbyt duża.",
		ErrTooManyRequests: "Zbyt wiele żądań.",
		ErrTimeout:         "Przekroczono czas przetwarzania żądania.",
		ErrUnavailable:     "Usługa jest chwilowo niedostępna.",
		ErrInternal:        "Wystąpił błąd. Spróbuj ponownie później.",

		RuleRequired:     "Pole %s jest wymagane.",
		RuleString:       "Pole %s musi być tekstem.",
		RuleMin:          "Pole %s musi mieć co najmniej %s znaków.",
		RuleMax:          "Pole %s nie może mieć więcej niż %s znaków.",
		RuleEmail:        "Pole %s musi być poprawnym adresem e-mail.",
		RuleOneOf:        "Wybrana wartość pola %s jest nieprawidłowa.",
		RuleDate:         "Pole %s nie jest poprawną datą.",
		RulePESEL:        "Pole %s ma nieprawidłowy format.",
		RuleUnknownField: "Pole %s zawiera nieznaną kolumnę: %s.",
		RuleInvalid:      "Pole %s jest nieprawidłowe.",
	},
}

// Parse returns the supported locale closest to s, or an error if s is not a
// well-formed BCP 47 tag.
func Parse(s string) (language.Tag, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("parse locale %q: %w", s, err)
	}
	_, idx, _ := matcher.Match(tag)
	return Supported[idx], nil
}

// Negotiate picks a supported locale for an Accept-Language header value.
func Negotiate(acceptLanguage string, fallback language.Tag) language.Tag {
	if acceptLanguage == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return Supported[idx]
}

// T renders key in the given locale. Missing translations fall back to
// English, then to the key itself.
func T(tag language.Tag, key Key, args ...interface{}) string {
	msg, ok := catalog[tag][key]
	if !ok {
		msg, ok = catalog[language.English][key]
	}
	if !ok {
		return string(key)
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

type contextKey struct{}

// WithLocale stores the request locale on ctx.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, contextKey{}, tag)
}

// FromContext returns the request locale, English when none was set.
func FromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(contextKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}

// Middleware negotiates the locale from Accept-Language and stores it on the
// request context.
func Middleware(fallback language.Tag) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tag := Negotiate(c.Request().Header.Get("Accept-Language"), fallback)
			c.SetRequest(c.Request().WithContext(WithLocale(c.Request().Context(), tag)))
			c.Response().Header().Set("Content-Language", tag.String())
			return next(c)
		}
	}
}
