package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"land-registry/registry-backend/internal/properties"
)

// Store persists transactions. Every status change goes through
// ConditionalUpdate, which only applies when the stored status still equals
// expected and reports the number of rows it changed.
type Store interface {
	Insert(ctx context.Context, t *Transaction, ev *TransactionEvent) error
	Get(ctx context.Context, id uint) (*Transaction, error)
	ConditionalUpdate(ctx context.Context, id uint, expected Status, ch Changes, ev *TransactionEvent) (int64, error)
	// ClaimFinalization marks a Government Approved transaction as being
	// finalized until the given time. It reports false when the status has
	// moved or another claim has not yet expired at now.
	ClaimFinalization(ctx context.Context, id uint, now, until time.Time) (bool, error)
	ReleaseFinalization(ctx context.Context, id uint) error
	Query(ctx context.Context, f Filter) ([]Transaction, error)
	HasActive(ctx context.Context, propertyID string) (bool, error)
	History(ctx context.Context, id uint) ([]TransactionEvent, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Insert(ctx context.Context, t *Transaction, ev *TransactionEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		ev.TransactionID = t.ID
		if err := tx.Create(ev).Error; err != nil {
			return fmt.Errorf("failed to insert transaction event: %w", err)
		}
		return nil
	})
}

func (s *gormStore) Get(ctx context.Context, id uint) (*Transaction, error) {
	var t Transaction
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *gormStore) ConditionalUpdate(ctx context.Context, id uint, expected Status, ch Changes, ev *TransactionEvent) (int64, error) {
	var affected int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getIn(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":                 ch.Status,
			"finalize_claimed_until": nil,
			"updated_at":             time.Now(),
		}
		if ch.PaymentProofPath != nil {
			updates["payment_proof_path"] = *ch.PaymentProofPath
		}
		if ch.BlockchainTxHash != nil {
			updates["blockchain_tx_hash"] = *ch.BlockchainTxHash
		}
		if ch.OfferPrice != nil {
			updates["offer_price"] = *ch.OfferPrice
		}
		if ch.BuyerWalletAddress != nil {
			updates["buyer_wallet_address"] = *ch.BuyerWalletAddress
		}

		result := tx.Model(&Transaction{}).
			Where("id = ? AND status = ?", id, expected).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update transaction: %w", result.Error)
		}
		affected = result.RowsAffected
		if affected == 0 {
			return nil
		}

		ev.TransactionID = id
		if err := tx.Create(ev).Error; err != nil {
			return fmt.Errorf("failed to insert transaction event: %w", err)
		}

		if ch.NewOwnerEmail != "" && current != nil {
			owner := map[string]interface{}{
				"owner_email": ch.NewOwnerEmail,
				"updated_at":  time.Now(),
			}
			if ch.NewOwnerName != "" {
				owner["owner_name"] = ch.NewOwnerName
			}
			if err := tx.Model(&properties.Property{}).
				Where("property_id = ?", current.PropertyID).
				Updates(owner).Error; err != nil {
				return fmt.Errorf("failed to transfer ownership: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (s *gormStore) ClaimFinalization(ctx context.Context, id uint, now, until time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&Transaction{}).
		Where("id = ? AND status = ?", id, StatusGovernmentApproved).
		Where("finalize_claimed_until IS NULL OR finalize_claimed_until < ?", now).
		Update("finalize_claimed_until", until)
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim transaction: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *gormStore) ReleaseFinalization(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&Transaction{}).
		Where("id = ?", id).
		Update("finalize_claimed_until", nil).Error
}

func getIn(tx *gorm.DB, id uint) (*Transaction, error) {
	var t Transaction
	err := tx.First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction: %w", err)
	}
	return &t, nil
}

func (s *gormStore) Query(ctx context.Context, f Filter) ([]Transaction, error) {
	q := s.db.WithContext(ctx).Model(&Transaction{})
	if f.BuyerEmail != "" {
		q = q.Where("buyer_email = ?", f.BuyerEmail)
	}
	if f.SellerEmail != "" {
		q = q.Where("seller_email = ?", f.SellerEmail)
	}
	if f.PropertyID != "" {
		q = q.Where("property_id = ?", f.PropertyID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.RequireFinalizeData {
		q = q.Where("offer_price IS NOT NULL AND buyer_wallet_address IS NOT NULL")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []Transaction
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return out, nil
}

func (s *gormStore) HasActive(ctx context.Context, propertyID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Transaction{}).
		Where("property_id = ? AND status NOT IN ?", propertyID, []Status{StatusRejected, StatusCompleted}).
		Count(&n).Error
	return n > 0, err
}

func (s *gormStore) History(ctx context.Context, id uint) ([]TransactionEvent, error) {
	var out []TransactionEvent
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", id).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (s *gormStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	var rows []struct {
		Status Status
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&Transaction{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	out := make(map[Status]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
