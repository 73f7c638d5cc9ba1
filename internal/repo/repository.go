package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/healthreport/internal/domain"
)

var ErrNoReport = errors.New("no report generated yet")

// ReportStore keeps the outcome of the most recent batch.
type ReportStore interface {
	Save(ctx context.Context, r *domain.Report) error
	// Latest returns ErrNoReport until the first Save.
	Latest(ctx context.Context) (*domain.Report, error)
}
