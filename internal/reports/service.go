package reports

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/reports/export"
	"land-registry/registry-backend/internal/transactions"
)

const statsKey = "stats"

type Service struct {
	users        UserCounter
	properties   PropertySource
	transactions TransactionSource
	cache        *aggregateCache
	logger       *zap.Logger
	now          func() time.Time
}

// NewService builds the reports service. Stats are cached for statsTTL; a
// zero TTL disables caching.
func NewService(users UserCounter, props PropertySource, txs TransactionSource, statsTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:        users,
		properties:   props,
		transactions: txs,
		cache:        newAggregateCache(statsTTL),
		logger:       logger,
		now:          time.Now,
	}
}

// Stats returns registry totals for the admin dashboard.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	v, err := s.cache.getOrSet(statsKey, func() (interface{}, error) {
		return s.computeStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Stats), nil
}

func (s *Service) computeStats(ctx context.Context) (*Stats, error) {
	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	props, err := s.properties.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count properties: %w", err)
	}
	byStatus, err := s.transactions.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	st := &Stats{
		UsersByRole:           make(map[string]int64, len(byRole)),
		TotalProperties:       props,
		CompletedTransactions: byStatus[transactions.StatusCompleted],
		TransactionsByStatus:  make(map[string]int64, len(byStatus)),
		GeneratedAt:           s.now(),
	}
	for role, n := range byRole {
		st.UsersByRole[string(role)] = n
		st.TotalUsers += n
	}
	for status, n := range byStatus {
		st.TransactionsByStatus[string(status)] = n
	}
	return st, nil
}

var transactionColumns = []export.Column{
	{Key: "id", Label: "ID"},
	{Key: "property_id", Label: "Property"},
	{Key: "buyer_email", Label: "Buyer"},
	{Key: "seller_email", Label: "Seller"},
	{Key: "status", Label: "Status"},
	{Key: "offer_price", Label: "Price (MATIC)"},
	{Key: "buyer_wallet_address", Label: "Buyer Wallet"},
	{Key: "blockchain_tx_hash", Label: "Tx Hash"},
	{Key: "created_at", Label: "Created"},
	{Key: "updated_at", Label: "Updated"},
}

// ExportTransactions writes all transactions, optionally narrowed to
// statuses, in the requested format.
func (s *Service) ExportTransactions(ctx context.Context, w io.Writer, format Format, statuses ...transactions.Status) (int, error) {
	list, err := s.transactions.ListByRole(ctx, auth.RoleAdmin, "", statuses...)
	if err != nil {
		return 0, err
	}

	table := export.Table{Columns: transactionColumns}
	for _, t := range list {
		table.Rows = append(table.Rows, map[string]interface{}{
			"id":                   t.ID,
			"property_id":          t.PropertyID,
			"buyer_email":          t.BuyerEmail,
			"seller_email":         t.SellerEmail,
			"status":               string(t.Status),
			"offer_price":          t.OfferPrice,
			"buyer_wallet_address": t.BuyerWalletAddress,
			"blockchain_tx_hash":   t.BlockchainTxHash,
			"created_at":           t.CreatedAt,
			"updated_at":           t.UpdatedAt,
		})
	}

	switch format {
	case FormatXLSX:
		e := export.NewExcelExporter(export.DefaultExcelOptions())
		defer e.Close()
		err = e.Write(w, table)
	case FormatCSV:
		err = export.NewCSVExporter(export.DefaultCSVOptions()).Write(w, table)
	default:
		return 0, errs.E(errs.KindValidation, "reports.ExportTransactions", "unsupported format %q", format)
	}
	if err != nil {
		return 0, err
	}

	s.logger.Info("Transactions exported",
		zap.String("format", string(format)),
		zap.Int("rows", len(list)))
	return len(list), nil
}

// Certificate writes the transfer certificate of a Completed transaction.
// Only its buyer, its seller, government and admins may fetch it.
func (s *Service) Certificate(ctx context.Context, actor auth.Actor, id uint, w io.Writer) error {
	const op = "reports.Certificate"

	t, err := s.transactions.Get(ctx, id)
	if err != nil {
		return err
	}
	switch actor.Role {
	case auth.RoleGovernment, auth.RoleAdmin:
	default:
		if !strings.EqualFold(actor.Email, t.BuyerEmail) && !strings.EqualFold(actor.Email, t.SellerEmail) {
			return errs.E(errs.KindForbidden, op, "%s is not a party to transaction %d", actor.Email, id)
		}
	}
	if t.Status != transactions.StatusCompleted {
		return errs.E(errs.KindInvalidStateTransition, op, "transaction %d is %s, not Completed", id, t.Status)
	}

	fields := []export.Field{
		{Label: "Property ID", Value: t.PropertyID},
	}
	if p, err := s.properties.Get(ctx, t.PropertyID); err == nil {
		fields = append(fields,
			export.Field{Label: "Location", Value: p.Location},
			export.Field{Label: "Land Area", Value: fmt.Sprintf("%.2f", p.LandArea)},
			export.Field{Label: "Property Type", Value: p.PropertyType},
		)
	} else {
		s.logger.Warn("Certificate property lookup failed", zap.String("property_id", t.PropertyID), zap.Error(err))
	}
	fields = append(fields,
		export.Field{Label: "Previous Owner", Value: t.SellerEmail},
		export.Field{Label: "New Owner", Value: t.BuyerEmail},
		export.Field{Label: "Price (MATIC)", Value: deref(t.OfferPrice)},
		export.Field{Label: "Buyer Wallet", Value: deref(t.BuyerWalletAddress)},
		export.Field{Label: "Blockchain Tx", Value: deref(t.BlockchainTxHash)},
		export.Field{Label: "Completed At", Value: t.UpdatedAt.UTC().Format(time.RFC3339)},
	)

	return export.NewPDFGenerator(export.DefaultPDFOptions()).WriteCertificate(w, export.Certificate{
		Title:      "Certificate of Land Title Transfer",
		Reference:  fmt.Sprintf("TX-%d", t.ID),
		IssuedAt:   s.now(),
		Fields:     fields,
		Disclaimer: "This certificate reflects the transfer recorded in the land registry and on the blockchain transaction shown above.",
	})
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
