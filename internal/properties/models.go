package properties

import (
	"time"

	"land-registry/registry-backend/pkg/workflows"
)

// Status is the review state of a registered property.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

const (
	opApprove = "approve"
	opReject  = "reject"
)

var reviewMachine = workflows.NewStateMachine(
	string(StatusPending),
	[]string{string(StatusApproved), string(StatusRejected)},
	workflows.Transition{Operation: opApprove, From: []string{string(StatusPending)}, To: string(StatusApproved)},
	workflows.Transition{Operation: opReject, From: []string{string(StatusPending)}, To: string(StatusRejected)},
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), true
	}
	return "", false
}

// Property is a parcel of land registered by its owner.
type Property struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	PropertyID       string    `json:"property_id" gorm:"not null;uniqueIndex"`
	OwnerName        string    `json:"owner_name" gorm:"not null;index"`
	OwnerEmail       string    `json:"owner_email" gorm:"index"`
	Location         string    `json:"location" gorm:"not null"`
	LandArea         float64   `json:"land_area" gorm:"not null"`
	PropertyType     string    `json:"property_type" gorm:"not null"`
	LegalDescription string    `json:"legal_description"`
	DocumentPath     *string   `json:"document_path,omitempty"`
	Status           Status    `json:"status" gorm:"not null;default:Pending;index"`
	// Set once the property is recorded on the LandRegistry contract.
	ChainPropertyID  *uint64   `json:"blockchain_property_id,omitempty" gorm:"column:blockchain_property_id;uniqueIndex"`
	ChainTxHash      *string   `json:"blockchain_tx_hash,omitempty" gorm:"column:blockchain_tx_hash"`
	DocumentHash     *string   `json:"document_hash,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Property) TableName() string {
	return "land_properties"
}

// RegisterRequest is the payload for registering land.
type RegisterRequest struct {
	PropertyID       string  `json:"property_id" form:"property_id"`
	OwnerName        string  `json:"owner_name" form:"owner_name"`
	Location         string  `json:"location" form:"location"`
	LandArea         float64 `json:"land_area" form:"land_area"`
	PropertyType     string  `json:"property_type" form:"property_type"`
	LegalDescription string  `json:"legal_description" form:"legal_description"`
}

// Filter narrows property listings. Empty fields match everything.
type Filter struct {
	OwnerName  string
	OwnerEmail string
	Statuses   []Status
}
