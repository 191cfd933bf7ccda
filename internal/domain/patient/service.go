package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/physio/physio/internal/platform/i18n"
	"github.com/physio/physio/internal/platform/validation"
	"github.com/physio/physio/pkg/pagination"
)

type Service struct {
	repo     Repository
	validate *validation.Validator
}

func NewService(repo Repository, v *validation.Validator) *Service {
	return &Service{repo: repo, validate: v}
}

// ListParams are the raw list query parameters.
type ListParams struct {
	Query    string
	Fields   string
	Paginate string
	Page     string
}

// ListResult is a listing. When Paginated, Rows holds one page and Total
// counts every match; otherwise Rows is the full set.
type ListResult struct {
	Rows      []Row
	Total     int
	Paginated bool
	Page      pagination.Params
}

// ParseFields splits a comma-separated column list. Names are trimmed,
// blanks dropped and repeats collapsed, keeping first-seen order. Any name
// outside the allow-list fails the "fields" key.
func ParseFields(ctx context.Context, raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	tag := i18n.FromContext(ctx)
	seen := make(map[string]bool)
	var cols []string
	errs := validation.Errors{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if !IsColumn(name) {
			errs.Add("fields", i18n.T(tag, i18n.RuleUnknownField, "fields", name))
			continue
		}
		cols = append(cols, name)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return cols, nil
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, p ListParams) (*ListResult, error) {
	cols, err := ParseFields(ctx, p.Fields)
	if err != nil {
		return nil, err
	}

	q := ListQuery{Search: p.Query, Columns: cols}
	res := &ListResult{Paginated: pagination.IsTruthy(p.Paginate)}
	if res.Paginated {
		res.Page = pagination.NewParams(p.Page)
		q.Limit, q.Offset = res.Page.Limit(), res.Page.Offset()
	}

	rows, total, err := s.repo.List(ctx, ownerID, q)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Row{}
	}
	res.Rows, res.Total = rows, total
	return res, nil
}

// input normalises and validates body against the patient schema.
func (s *Service) input(ctx context.Context, body Payload) (Input, error) {
	in, errs := DecodeInput(ctx, body)

	if err := s.validate.Validate(ctx, &in); err != nil {
		ve, ok := validation.AsErrors(err)
		if !ok {
			return Input{}, err
		}
		for field := range ve {
			// A type error already explains the field.
			if errs.Has(field) {
				delete(ve, field)
			}
		}
		errs.Merge(ve)
	}
	if len(errs) > 0 {
		return Input{}, errs
	}
	return in, nil
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, body Payload) (*Patient, error) {
	in, err := s.input(ctx, body)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, ownerID, in)
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, ownerID, id)
}

// Update replaces every writable field of an existing record. A missing
// record is reported before the body is validated.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, body Payload) (*Patient, error) {
	if _, err := s.repo.GetByID(ctx, ownerID, id); err != nil {
		return nil, err
	}
	in, err := s.input(ctx, body)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, ownerID, id, in)
	if err != nil {
		return nil, fmt.Errorf("patient update: %w", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.repo.Delete(ctx, ownerID, id)
}
