package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no patient with the id exists under the owner.
var ErrNotFound = errors.New("patient not found")

// ListQuery shapes a listing. Columns must be allow-listed; an empty slice
// selects every column. A zero Limit returns all matching rows.
type ListQuery struct {
	Search  string
	Columns []string
	Limit   int
	Offset  int
}

// Repository is scoped by owner on every call.
type Repository interface {
	Create(ctx context.Context, ownerID uuid.UUID, in Input) (*Patient, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, in Input) (*Patient, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	// List returns the page of rows and the total number of matches.
	List(ctx context.Context, ownerID uuid.UUID, q ListQuery) ([]Row, int, error)
}
