package store

import (
	"context"
	"errors"

	"github.com/joescharf/pir/internal/models"
)

// ErrNotFound is returned when an issue id does not exist.
var ErrNotFound = errors.New("issue not found")

// Store defines the persistence interface for the issue backend.
type Store interface {
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id int64) (*models.Issue, error)
	// ListIssues returns issues in creation order.
	ListIssues(ctx context.Context) ([]models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	// DeleteIssue is idempotent: deleting a missing id is not an error.
	DeleteIssue(ctx context.Context, id int64) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
