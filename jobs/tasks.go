package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// QueueDefault is the default queue name for background jobs.
const QueueDefault = "default"

// CompanySource lists the companies a scheduled job should cover.
type CompanySource interface {
	ListCompanyIDs(ctx context.Context) ([]int64, error)
}

type companySource struct {
	db *pgxpool.Pool
}

// NewCompanySource discovers companies from the asset ledger.
func NewCompanySource(db *pgxpool.Pool) CompanySource {
	return &companySource{db: db}
}

func (s *companySource) ListCompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT company_id FROM assets ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("jobs: list companies: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("jobs: scan company id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
