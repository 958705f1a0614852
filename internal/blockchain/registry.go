package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrPropertyNotFound is returned when the LandRegistry has no record for an id.
var ErrPropertyNotFound = errors.New("property not found on chain")

// PropertyRecord is what RegisterProperty writes to the LandRegistry contract.
type PropertyRecord struct {
	PropertyID       string `json:"property_id"`
	OwnerAddress     string `json:"owner_address"`
	Location         string `json:"location"`
	LandArea         uint64 `json:"land_area"`
	PropertyType     string `json:"property_type"`
	LegalDescription string `json:"legal_description"`
	DocumentHash     string `json:"document_hash"`
}

// Validate checks the record before anything is signed.
func (r PropertyRecord) Validate() error {
	if strings.TrimSpace(r.PropertyID) == "" {
		return fmt.Errorf("property id is required")
	}
	if !IsValidAddress(r.OwnerAddress) {
		return fmt.Errorf("invalid owner wallet address %q", r.OwnerAddress)
	}
	if strings.TrimSpace(r.Location) == "" {
		return fmt.Errorf("location is required")
	}
	if r.LandArea == 0 {
		return fmt.Errorf("land area must be positive")
	}
	return nil
}

// RegistryResult is what the chain reported for a LandRegistry write.
type RegistryResult struct {
	Success         bool   `json:"success"`
	ChainPropertyID uint64 `json:"blockchain_property_id,omitempty"`
	TxHash          string `json:"tx_hash,omitempty"`
	GasUsed         uint64 `json:"gas_used,omitempty"`
	Error           string `json:"error,omitempty"`
}

// ChainProperty is the LandRegistry view of a property.
type ChainProperty struct {
	ChainPropertyID       uint64 `json:"blockchain_property_id"`
	PropertyID            string `json:"property_id"`
	Owner                 string `json:"owner"`
	Location              string `json:"location"`
	LandArea              string `json:"land_area"`
	PropertyType          string `json:"property_type"`
	LegalDescription      string `json:"legal_description"`
	DocumentHash          string `json:"document_hash"`
	RegistrationTimestamp int64  `json:"registration_timestamp"`
	IsActive              bool   `json:"is_active"`
	IsApproved            bool   `json:"is_approved"`
	ApprovedBy            string `json:"approved_by"`
}

// NetworkStats summarises the connected chain and both contracts.
type NetworkStats struct {
	ChainID           int64  `json:"chain_id"`
	BlockNumber       uint64 `json:"block_number"`
	TotalProperties   uint64 `json:"total_properties"`
	TotalTransactions uint64 `json:"total_transactions"`
	RegistryAddress   string `json:"registry_address,omitempty"`
	TransferAddress   string `json:"transfer_address,omitempty"`
}

// Registry reads and writes property records on the LandRegistry contract.
type Registry interface {
	RegisterProperty(ctx context.Context, rec PropertyRecord) (*RegistryResult, error)
	ApproveProperty(ctx context.Context, chainPropertyID uint64) (*RegistryResult, error)
	GetProperty(ctx context.Context, chainPropertyID uint64) (*ChainProperty, error)
	VerifyOwnership(ctx context.Context, chainPropertyID uint64, owner string) (bool, error)
	Stats(ctx context.Context) (*NetworkStats, error)
}

// Chain is the full set of on-chain operations the registry uses.
type Chain interface {
	Client
	Registry
}

var (
	_ Chain = (*EthereumClient)(nil)
	_ Chain = Unconfigured{}
)

func toUint64(v *big.Int) (uint64, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("value %v does not fit in uint64", v)
	}
	return v.Uint64(), nil
}

func (Unconfigured) RegisterProperty(context.Context, PropertyRecord) (*RegistryResult, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) ApproveProperty(context.Context, uint64) (*RegistryResult, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) GetProperty(context.Context, uint64) (*ChainProperty, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) VerifyOwnership(context.Context, uint64, string) (bool, error) {
	return false, ErrNotConfigured
}

func (Unconfigured) Stats(context.Context) (*NetworkStats, error) {
	return nil, ErrNotConfigured
}
