package measure

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ehr/hqmf/internal/hqmf"
)

var ErrNotFound = errors.New("measure not found")

// CriteriaFilter narrows ListCriteria.
type CriteriaFilter struct {
	Definition string
	Variable   *bool
}

type MeasureRepository interface {
	// Create stores the measure and one data_criterion row per criterion.
	Create(ctx context.Context, m *Measure) error
	GetByID(ctx context.Context, id uuid.UUID) (*Measure, error)
	GetByDigest(ctx context.Context, digest string) (*Measure, error)
	// List returns summaries without the document.
	List(ctx context.Context, limit, offset int) ([]*Measure, int, error)
	ListCriteria(ctx context.Context, id uuid.UUID, filter CriteriaFilter) ([]*hqmf.DataCriterion, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
