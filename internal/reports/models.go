package reports

import (
	"context"
	"time"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/properties"
	"land-registry/registry-backend/internal/transactions"
)

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers            int64            `json:"total_users"`
	UsersByRole           map[string]int64 `json:"users_by_role"`
	TotalProperties       int64            `json:"total_properties"`
	CompletedTransactions int64            `json:"completed_transactions"`
	TransactionsByStatus  map[string]int64 `json:"transactions_by_status"`
	GeneratedAt           time.Time        `json:"generated_at"`
}

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

type UserCounter interface {
	CountByRole(ctx context.Context) (map[auth.Role]int64, error)
}

type PropertySource interface {
	Get(ctx context.Context, propertyID string) (*properties.Property, error)
	Count(ctx context.Context) (int64, error)
}

type TransactionSource interface {
	Get(ctx context.Context, id uint) (*transactions.Transaction, error)
	ListByRole(ctx context.Context, role auth.Role, identity string, statuses ...transactions.Status) ([]transactions.Transaction, error)
	CountByStatus(ctx context.Context) (map[transactions.Status]int64, error)
}
