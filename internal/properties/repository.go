package properties

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Repository persists properties.
type Repository interface {
	Create(ctx context.Context, p *Property) error
	GetByPropertyID(ctx context.Context, propertyID string) (*Property, error)
	List(ctx context.Context, f Filter) ([]Property, error)
	// UpdateStatus changes status only if the row still has expected.
	UpdateStatus(ctx context.Context, propertyID string, expected, next Status) (int64, error)
	// SetChainRecord stores the chain id only if none is stored yet.
	SetChainRecord(ctx context.Context, propertyID string, chainID uint64, txHash, documentHash string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// ErrDuplicatePropertyID is returned by Create for a taken property id.
var ErrDuplicatePropertyID = errors.New("property id already registered")

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, p *Property) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicatePropertyID
	}
	return err
}

func (r *gormRepository) GetByPropertyID(ctx context.Context, propertyID string) (*Property, error) {
	var p Property
	err := r.db.WithContext(ctx).Where("property_id = ?", propertyID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) List(ctx context.Context, f Filter) ([]Property, error) {
	q := r.db.WithContext(ctx).Model(&Property{})
	if f.OwnerName != "" {
		q = q.Where("owner_name = ?", f.OwnerName)
	}
	if f.OwnerEmail != "" {
		q = q.Where("owner_email = ?", f.OwnerEmail)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var out []Property
	err := q.Order("id ASC").Find(&out).Error
	return out, err
}

func (r *gormRepository) UpdateStatus(ctx context.Context, propertyID string, expected, next Status) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Property{}).
		Where("property_id = ? AND status = ?", propertyID, expected).
		Update("status", next)
	return result.RowsAffected, result.Error
}

func (r *gormRepository) SetChainRecord(ctx context.Context, propertyID string, chainID uint64, txHash, documentHash string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Property{}).
		Where("property_id = ? AND blockchain_property_id IS NULL", propertyID).
		Updates(map[string]interface{}{
			"blockchain_property_id": chainID,
			"blockchain_tx_hash":     txHash,
			"document_hash":          documentHash,
		})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Property{}).Count(&n).Error
	return n, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
