package compliance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/db"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	IsIdentifierBlocked(ctx context.Context, arg db.IsIdentifierBlockedParams) (bool, error)
	ListDNCIdentifiers(ctx context.Context, orgID uuid.UUID) ([]string, error)
}

// Repository reads the do-not-contact registry
type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

func (r *Repository) AnyBlocked(ctx context.Context, orgID uuid.UUID, identifiers []string) (bool, error) {
	if len(identifiers) == 0 {
		return false, nil
	}
	blocked, err := r.queries.IsIdentifierBlocked(ctx, db.IsIdentifierBlockedParams{
		OrgID:       orgID,
		Identifiers: identifiers,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check do-not-contact registry: %w", err)
	}
	return blocked, nil
}

func (r *Repository) ListIdentifiers(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	ids, err := r.queries.ListDNCIdentifiers(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list do-not-contact registry: %w", err)
	}
	return ids, nil
}
