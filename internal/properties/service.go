package properties

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/pkg/storage"
)

const documentDir = "land_documents"

// Service implements the property registry.
type Service struct {
	repo   Repository
	files  storage.FileStore
	logger *zap.Logger
}

func NewService(repo Repository, files storage.FileStore, logger *zap.Logger) *Service {
	return &Service{repo: repo, files: files, logger: logger}
}

// Register records a new property as Pending. The document is optional.
func (s *Service) Register(ctx context.Context, actor auth.Actor, req RegisterRequest, doc *storage.Upload) (*Property, error) {
	const op = "properties.Register"

	if actor.Role != auth.RoleSeller && actor.Role != auth.RoleAdmin {
		return nil, errs.E(errs.KindForbidden, op, "role %s cannot register land", actor.Role)
	}
	req.PropertyID = strings.TrimSpace(req.PropertyID)
	if err := validateRegister(req); err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err, "invalid registration")
	}

	existing, err := s.repo.GetByPropertyID(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to check property id: %w", err)
	}
	if existing != nil {
		return nil, errs.E(errs.KindConflict, op, "property %s already registered", req.PropertyID)
	}

	p := &Property{
		PropertyID:       strings.TrimSpace(req.PropertyID),
		OwnerName:        strings.TrimSpace(req.OwnerName),
		OwnerEmail:       strings.ToLower(actor.Email),
		Location:         strings.TrimSpace(req.Location),
		LandArea:         req.LandArea,
		PropertyType:     strings.TrimSpace(req.PropertyType),
		LegalDescription: req.LegalDescription,
		Status:           StatusPending,
	}

	if doc != nil {
		ref, err := s.files.Save(ctx, documentDir, doc.Filename, doc.Content)
		if err != nil {
			return nil, errs.Wrap(errs.KindExternalService, op, err, "failed to store land document")
		}
		p.DocumentPath = &ref
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if p.DocumentPath != nil {
			s.removeFile(ctx, *p.DocumentPath)
		}
		if errors.Is(err, ErrDuplicatePropertyID) {
			return nil, errs.E(errs.KindConflict, op, "property %s already registered", req.PropertyID)
		}
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	s.logger.Info("Property registered",
		zap.String("property_id", p.PropertyID),
		zap.String("owner_email", p.OwnerEmail))

	return p, nil
}

func validateRegister(req RegisterRequest) error {
	fields := []struct{ name, value string }{
		{"property_id", req.PropertyID},
		{"owner_name", req.OwnerName},
		{"location", req.Location},
		{"property_type", req.PropertyType},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	if req.LandArea <= 0 {
		return fmt.Errorf("land_area must be positive")
	}
	return nil
}

// Approve moves a Pending property to Approved.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, propertyID string) (*Property, error) {
	return s.review(ctx, actor, propertyID, opApprove)
}

// Reject moves a Pending property to Rejected.
func (s *Service) Reject(ctx context.Context, actor auth.Actor, propertyID string) (*Property, error) {
	return s.review(ctx, actor, propertyID, opReject)
}

func (s *Service) review(ctx context.Context, actor auth.Actor, propertyID, operation string) (*Property, error) {
	op := "properties." + operation

	if actor.Role != auth.RoleGovernment && actor.Role != auth.RoleAdmin {
		return nil, errs.E(errs.KindForbidden, op, "role %s cannot review land", actor.Role)
	}

	p, err := s.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	next, ok := reviewMachine.Target(operation, string(p.Status))
	if !ok {
		return nil, errs.E(errs.KindInvalidStateTransition, op, "property %s is %s", propertyID, p.Status)
	}

	n, err := s.repo.UpdateStatus(ctx, propertyID, p.Status, Status(next))
	if err != nil {
		return nil, fmt.Errorf("failed to update property status: %w", err)
	}
	if n == 0 {
		return nil, errs.E(errs.KindConcurrentModification, op, "property %s changed concurrently", propertyID)
	}

	s.logger.Info("Property reviewed",
		zap.String("property_id", propertyID),
		zap.String("status", next),
		zap.String("reviewer", actor.Email))

	p.Status = Status(next)
	return p, nil
}

// RecordChainRegistration stores the LandRegistry id of a property. A
// property is registered on chain at most once.
func (s *Service) RecordChainRegistration(ctx context.Context, propertyID string, chainID uint64, txHash, documentHash string) (*Property, error) {
	const op = "properties.RecordChainRegistration"

	n, err := s.repo.SetChainRecord(ctx, propertyID, chainID, txHash, documentHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.E(errs.KindConflict, op, "chain property %d is already linked to another property", chainID)
		}
		return nil, fmt.Errorf("failed to record chain registration: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, propertyID); err != nil {
			return nil, err
		}
		return nil, errs.E(errs.KindConflict, op, "property %s is already registered on chain", propertyID)
	}

	s.logger.Info("Property registered on chain",
		zap.String("property_id", propertyID),
		zap.Uint64("blockchain_property_id", chainID),
		zap.String("tx_hash", txHash))

	return s.Get(ctx, propertyID)
}

// Get returns a property or a NotFound error.
func (s *Service) Get(ctx context.Context, propertyID string) (*Property, error) {
	p, err := s.repo.GetByPropertyID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if p == nil {
		return nil, errs.E(errs.KindNotFound, "properties.Get", "property %s not found", propertyID)
	}
	return p, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerName string) ([]Property, error) {
	return s.List(ctx, Filter{OwnerName: ownerName})
}

func (s *Service) ListByOwnerEmail(ctx context.Context, email string) ([]Property, error) {
	return s.List(ctx, Filter{OwnerEmail: email})
}

func (s *Service) ListByStatus(ctx context.Context, statuses ...Status) ([]Property, error) {
	return s.List(ctx, Filter{Statuses: statuses})
}

func (s *Service) List(ctx context.Context, f Filter) ([]Property, error) {
	f.OwnerEmail = strings.ToLower(strings.TrimSpace(f.OwnerEmail))
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return out, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *Service) removeFile(ctx context.Context, ref string) {
	if err := s.files.Delete(ctx, ref); err != nil {
		s.logger.Warn("Failed to remove orphaned document", zap.String("ref", ref), zap.Error(err))
	}
}
