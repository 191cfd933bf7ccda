package patient

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/physio/physio/internal/platform/i18n"
	"github.com/physio/physio/internal/platform/validation"
)

// Input holds the 17 writable fields of a patient record. A nil field is
// stored as NULL. The validate tags are the schema shared by store and update.
type Input struct {
	FirstName              *string `json:"first_name" validate:"required,min=1,max=100"`
	LastName               *string `json:"last_name" validate:"required,min=1,max=100"`
	PESEL                  *string `json:"pesel" validate:"omitempty,pesel"`
	BornDate               *string `json:"born_date" validate:"omitempty,datetime=2006-01-02"`
	Gender                 *string `json:"gender" validate:"omitempty,oneof=male female"`
	Street                 *string `json:"street" validate:"omitempty,min=1,max=100"`
	Postcode               *string `json:"postcode" validate:"omitempty,min=1,max=100"`
	City                   *string `json:"city" validate:"omitempty,min=1,max=100"`
	Email                  *string `json:"email" validate:"omitempty,max=100,email"`
	Phone                  *string `json:"phone" validate:"omitempty,min=1,max=100"`
	ContactPersonFirstName *string `json:"contact_person_first_name" validate:"omitempty,min=1,max=100"`
	ContactPersonLastName  *string `json:"contact_person_last_name" validate:"omitempty,min=1,max=100"`
	ContactPersonStreet    *string `json:"contact_person_street" validate:"omitempty,min=1,max=100"`
	ContactPersonPostcode  *string `json:"contact_person_postcode" validate:"omitempty,min=1,max=100"`
	ContactPersonCity      *string `json:"contact_person_city" validate:"omitempty,min=1,max=100"`
	ContactPersonEmail     *string `json:"contact_person_email" validate:"omitempty,max=100,email"`
	ContactPersonPhone     *string `json:"contact_person_phone" validate:"omitempty,min=1,max=100"`
}

// Patient maps to the patients table.
type Patient struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Input
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WritableFields lists the writable columns in storage order.
var WritableFields = []string{
	"first_name",
	"last_name",
	"pesel",
	"born_date",
	"gender",
	"street",
	"postcode",
	"city",
	"email",
	"phone",
	"contact_person_first_name",
	"contact_person_last_name",
	"contact_person_street",
	"contact_person_postcode",
	"contact_person_city",
	"contact_person_email",
	"contact_person_phone",
}

// Columns is the allow-list for field selection, in canonical order.
var Columns = append(append([]string{"id", "owner_id"}, WritableFields...), "created_at", "updated_at")

var columnSet = func() map[string]bool {
	m := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

// IsColumn reports whether name may be selected.
func IsColumn(name string) bool {
	return columnSet[name]
}

// fields returns pointers to the writable fields, aligned with WritableFields.
func (in *Input) fields() []**string {
	return []**string{
		&in.FirstName,
		&in.LastName,
		&in.PESEL,
		&in.BornDate,
		&in.Gender,
		&in.Street,
		&in.Postcode,
		&in.City,
		&in.Email,
		&in.Phone,
		&in.ContactPersonFirstName,
		&in.ContactPersonLastName,
		&in.ContactPersonStreet,
		&in.ContactPersonPostcode,
		&in.ContactPersonCity,
		&in.ContactPersonEmail,
		&in.ContactPersonPhone,
	}
}

// values returns the writable field values in WritableFields order.
func (in Input) values() []interface{} {
	ptrs := in.fields()
	out := make([]interface{}, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// Payload is a decoded JSON request body.
type Payload map[string]interface{}

// DecodeInput normalises a request body into an Input: strings are trimmed,
// empty strings and JSON null become nil, and unknown keys are ignored. A
// non-string value fails its field with the "string" rule.
func DecodeInput(ctx context.Context, body Payload) (Input, validation.Errors) {
	var in Input
	errs := validation.Errors{}
	tag := i18n.FromContext(ctx)

	ptrs := in.fields()
	for i, name := range WritableFields {
		raw, ok := body[name]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			errs.Add(name, validation.Message(tag, name, "string", ""))
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			*ptrs[i] = &s
		}
	}
	return in, errs
}

// Row is one listed record restricted to selected columns. It marshals as a
// JSON object with keys in column order.
type Row struct {
	cols []string
	vals []interface{}
}

// NewRow pairs cols with vals; both must have the same length.
func NewRow(cols []string, vals []interface{}) Row {
	return Row{cols: cols, vals: vals}
}

// Get returns the value of col.
func (r Row) Get(col string) (interface{}, bool) {
	for i, c := range r.cols {
		if c == col {
			return r.vals[i], true
		}
	}
	return nil, false
}

// Columns returns the column names of r.
func (r Row) Columns() []string {
	return r.cols
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
