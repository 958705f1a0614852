// Package ledger exposes the LandRegistry contract: recording registry
// properties on chain and reading them back.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"math"
	"time"

	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/blockchain"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/properties"
	"land-registry/registry-backend/pkg/storage"
)

// PropertySource is the slice of the property registry the ledger needs.
type PropertySource interface {
	Get(ctx context.Context, propertyID string) (*properties.Property, error)
	RecordChainRegistration(ctx context.Context, propertyID string, chainID uint64, txHash, documentHash string) (*properties.Property, error)
}

// RegisterRequest asks for an approved property to be recorded on chain.
type RegisterRequest struct {
	PropertyID         string `json:"property_id" binding:"required"`
	OwnerWalletAddress string `json:"owner_wallet_address" binding:"required"`
}

// Registration is the outcome of RegisterProperty.
type Registration struct {
	Property *properties.Property       `json:"property"`
	Chain    *blockchain.RegistryResult `json:"chain"`
}

type Service struct {
	registry blockchain.Registry
	props    PropertySource
	files    storage.FileStore
	timeout  time.Duration
	logger   *zap.Logger
}

// NewService bounds every chain call by timeout.
func NewService(registry blockchain.Registry, props PropertySource, files storage.FileStore, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		props:    props,
		files:    files,
		timeout:  timeout,
		logger:   logger,
	}
}

// RegisterProperty records an approved registry property on the LandRegistry
// contract and stores the chain id it was given.
func (s *Service) RegisterProperty(ctx context.Context, actor auth.Actor, req RegisterRequest) (*Registration, error) {
	const op = "ledger.RegisterProperty"

	if err := checkOfficial(op, actor); err != nil {
		return nil, err
	}
	if !blockchain.IsValidAddress(req.OwnerWalletAddress) {
		return nil, errs.E(errs.KindValidation, op, "invalid wallet address format")
	}

	p, err := s.props.Get(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if p.Status != properties.StatusApproved {
		return nil, errs.E(errs.KindConflict, op, "property %s is %s; only approved land can be registered on chain", p.PropertyID, p.Status)
	}
	if p.ChainPropertyID != nil {
		return nil, errs.E(errs.KindConflict, op, "property %s is already registered on chain as %d", p.PropertyID, *p.ChainPropertyID)
	}

	hash, err := s.documentHash(ctx, p)
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalService, op, err, "failed to read land document")
	}

	rec := blockchain.PropertyRecord{
		PropertyID:       p.PropertyID,
		OwnerAddress:     req.OwnerWalletAddress,
		Location:         p.Location,
		LandArea:         uint64(math.Ceil(p.LandArea)),
		PropertyType:     p.PropertyType,
		LegalDescription: p.LegalDescription,
		DocumentHash:     hash,
	}
	if err := rec.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err, "property cannot be recorded on chain")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.registry.RegisterProperty(callCtx, rec)
	cancel()
	if err != nil {
		return nil, s.chainError(op, err)
	}
	if !res.Success {
		return nil, errs.E(errs.KindExternalService, op, "blockchain transaction failed: %s", res.Error)
	}
	if res.ChainPropertyID == 0 {
		return nil, errs.E(errs.KindExternalService, op, "transaction %s did not report a property id", res.TxHash)
	}

	updated, err := s.props.RecordChainRegistration(ctx, p.PropertyID, res.ChainPropertyID, res.TxHash, hash)
	if err != nil {
		s.logger.Error("Property registered on chain but not linked in the registry",
			zap.String("property_id", p.PropertyID),
			zap.Uint64("blockchain_property_id", res.ChainPropertyID),
			zap.String("tx_hash", res.TxHash),
			zap.Error(err))
		return nil, err
	}

	return &Registration{Property: updated, Chain: res}, nil
}

// ApproveProperty approves the on-chain record of a registry property.
func (s *Service) ApproveProperty(ctx context.Context, actor auth.Actor, propertyID string) (*blockchain.RegistryResult, error) {
	const op = "ledger.ApproveProperty"

	if err := checkOfficial(op, actor); err != nil {
		return nil, err
	}
	p, err := s.props.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.ChainPropertyID == nil {
		return nil, errs.E(errs.KindConflict, op, "property %s is not registered on chain", propertyID)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.registry.ApproveProperty(callCtx, *p.ChainPropertyID)
	cancel()
	if err != nil {
		return nil, s.chainError(op, err)
	}
	if !res.Success {
		return nil, errs.E(errs.KindExternalService, op, "blockchain transaction failed: %s", res.Error)
	}

	s.logger.Info("Property approved on chain",
		zap.String("property_id", propertyID),
		zap.Uint64("blockchain_property_id", *p.ChainPropertyID),
		zap.String("tx_hash", res.TxHash),
		zap.String("approver", actor.Email))
	return res, nil
}

// Property reads a property record from the chain.
func (s *Service) Property(ctx context.Context, chainID uint64) (*blockchain.ChainProperty, error) {
	const op = "ledger.Property"

	if chainID == 0 {
		return nil, errs.E(errs.KindValidation, op, "blockchain property id must be positive")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p, err := s.registry.GetProperty(callCtx, chainID)
	if errors.Is(err, blockchain.ErrPropertyNotFound) {
		return nil, errs.E(errs.KindNotFound, op, "property %d not found on chain", chainID)
	}
	if err != nil {
		return nil, s.chainError(op, err)
	}
	return p, nil
}

// VerifyOwnership reports whether owner holds the property on chain.
func (s *Service) VerifyOwnership(ctx context.Context, chainID uint64, owner string) (bool, error) {
	const op = "ledger.VerifyOwnership"

	if chainID == 0 {
		return false, errs.E(errs.KindValidation, op, "blockchain property id must be positive")
	}
	if !blockchain.IsValidAddress(owner) {
		return false, errs.E(errs.KindValidation, op, "invalid wallet address format")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.registry.VerifyOwnership(callCtx, chainID, owner)
	if err != nil {
		return false, s.chainError(op, err)
	}
	return ok, nil
}

func (s *Service) Stats(ctx context.Context) (*blockchain.NetworkStats, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stats, err := s.registry.Stats(callCtx)
	if err != nil {
		return nil, s.chainError("ledger.Stats", err)
	}
	return stats, nil
}

// documentHash is the hex SHA-256 of the land document, or "" without one.
func (s *Service) documentHash(ctx context.Context, p *properties.Property) (string, error) {
	if p.DocumentPath == nil || *p.DocumentPath == "" {
		return "", nil
	}
	rc, err := s.files.Open(ctx, *p.DocumentPath)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Service) chainError(op string, err error) error {
	switch {
	case errors.Is(err, blockchain.ErrNotConfigured):
		return errs.Wrap(errs.KindExternalService, op, err, "blockchain is not configured")
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindExternalService, op, err, "blockchain call timed out after %s", s.timeout)
	}
	s.logger.Warn("Blockchain call failed", zap.String("op", op), zap.Error(err))
	return errs.Wrap(errs.KindExternalService, op, err, "blockchain call failed")
}

func checkOfficial(op string, actor auth.Actor) error {
	if actor.Role != auth.RoleGovernment && actor.Role != auth.RoleAdmin {
		return errs.E(errs.KindForbidden, op, "role %s cannot write to the land registry contract", actor.Role)
	}
	return nil
}
