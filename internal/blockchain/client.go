package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TransferRequest is the on-chain record of an ownership transfer.
type TransferRequest struct {
	PropertyID   string `json:"property_id"`
	BuyerAddress string `json:"buyer_address"`
	Price        string `json:"price"` // decimal, in ether units
	Terms        string `json:"terms"`
}

// TransferResult is what the chain reported for a submitted transfer.
type TransferResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
	GasUsed uint64 `json:"gas_used,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client records property transfers on chain. Implementations must honour
// ctx cancellation.
type Client interface {
	SubmitTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// Validate checks the request before anything is signed.
func (r TransferRequest) Validate() error {
	if strings.TrimSpace(r.PropertyID) == "" {
		return fmt.Errorf("property id is required")
	}
	if !IsValidAddress(r.BuyerAddress) {
		return fmt.Errorf("invalid buyer wallet address %q", r.BuyerAddress)
	}
	wei, err := ParseEther(r.Price)
	if err != nil {
		return err
	}
	if wei.Sign() <= 0 {
		return fmt.Errorf("price must be positive")
	}
	return nil
}

// IsValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsValidAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

var (
	weiPerEther  = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// ParseEther converts a plain decimal ether amount such as "1.25" to wei
// without rounding. Signs, exponents, fractions and more than 18 fractional
// digits are rejected.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("price is required")
	}

	if !plainDecimal.MatchString(amount) {
		return nil, fmt.Errorf("invalid price %q", amount)
	}

	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", amount)
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	if !r.IsInt() {
		return nil, fmt.Errorf("price %q has more than 18 decimal places", amount)
	}
	return new(big.Int).Set(r.Num()), nil
}

// ErrNotConfigured is returned by Unconfigured.
var ErrNotConfigured = errors.New("blockchain client is not configured")

// Unconfigured fails every chain call.
type Unconfigured struct{}

func (Unconfigured) SubmitTransfer(context.Context, TransferRequest) (*TransferResult, error) {
	return nil, ErrNotConfigured
}
