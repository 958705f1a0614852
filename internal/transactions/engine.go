package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/blockchain"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/notifications"
	"land-registry/registry-backend/internal/properties"
	"land-registry/registry-backend/pkg/storage"
)

const paymentProofDir = "payment_proofs"

// PropertyLookup resolves the property a request is made for.
type PropertyLookup interface {
	Get(ctx context.Context, propertyID string) (*properties.Property, error)
}

// AccountLookup resolves the profile behind an email.
type AccountLookup interface {
	Profile(ctx context.Context, email string) (*auth.User, error)
}

// EngineConfig tunes the engine.
type EngineConfig struct {
	FinalizeTimeout time.Duration
	// ExclusiveRequests rejects a new request while the property already
	// has a non-terminal transaction.
	ExclusiveRequests bool
}

// DefaultEngineConfig returns default configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FinalizeTimeout: 60 * time.Second,
	}
}

// Engine runs the purchase workflow. All status changes are applied with a
// conditional update so concurrent callers cannot both move the same record.
type Engine struct {
	store      Store
	chain      blockchain.Client
	files      storage.FileStore
	properties PropertyLookup
	accounts   AccountLookup
	notifier   notifications.Notifier
	config     EngineConfig
	logger     *zap.Logger
	now        func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

func WithPropertyLookup(p PropertyLookup) Option {
	return func(e *Engine) { e.properties = p }
}

// WithAccounts lets completion record the buyer's full name as the new owner
// name. Without it the buyer's email is used.
func WithAccounts(a AccountLookup) Option {
	return func(e *Engine) { e.accounts = a }
}

func WithNotifier(n notifications.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithConfig(c EngineConfig) Option {
	return func(e *Engine) { e.config = c }
}

func NewEngine(store Store, chain blockchain.Client, files storage.FileStore, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		chain:    chain,
		files:    files,
		notifier: notifications.NopNotifier{},
		config:   DefaultEngineConfig(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.config.FinalizeTimeout <= 0 {
		e.config.FinalizeTimeout = DefaultEngineConfig().FinalizeTimeout
	}
	return e
}

// SubmitRequest creates a transaction in Requested.
func (e *Engine) SubmitRequest(ctx context.Context, actor auth.Actor, req SubmitRequest) (*Transaction, error) {
	const op = "transactions.SubmitRequest"

	if actor.Role != auth.RoleBuyer {
		return nil, errs.E(errs.KindForbidden, op, "only buyers can submit purchase requests")
	}

	// Emails are stored lower-cased so listings match the parties exactly.
	req.PropertyID = strings.TrimSpace(req.PropertyID)
	req.BuyerEmail = normalizeEmail(req.BuyerEmail)
	req.SellerEmail = normalizeEmail(req.SellerEmail)
	if req.BuyerEmail == "" {
		req.BuyerEmail = normalizeEmail(actor.Email)
	}
	if req.BuyerEmail != normalizeEmail(actor.Email) {
		return nil, errs.E(errs.KindForbidden, op, "buyers can only submit requests for themselves")
	}

	if req.PropertyID == "" || req.SellerEmail == "" || req.BuyerEmail == "" {
		return nil, errs.E(errs.KindValidation, op, "property_id, buyer_email and seller_email are required")
	}
	if req.BuyerEmail == req.SellerEmail {
		return nil, errs.E(errs.KindValidation, op, "buyer and seller must be different accounts")
	}
	if req.BuyerWalletAddress != "" && !blockchain.IsValidAddress(req.BuyerWalletAddress) {
		return nil, errs.E(errs.KindValidation, op, "invalid buyer wallet address %q", req.BuyerWalletAddress)
	}
	if req.OfferPrice != "" {
		if err := validatePrice(req.OfferPrice); err != nil {
			return nil, errs.Wrap(errs.KindValidation, op, err, "invalid offer price")
		}
	}

	if e.properties != nil {
		p, err := e.properties.Get(ctx, req.PropertyID)
		if err != nil {
			return nil, err
		}
		if p.Status != properties.StatusApproved {
			return nil, errs.E(errs.KindValidation, op, "property %s is not approved for sale", req.PropertyID)
		}
		if p.OwnerEmail != "" {
			if normalizeEmail(p.OwnerEmail) != req.SellerEmail {
				return nil, errs.E(errs.KindValidation, op, "%s does not own property %s", req.SellerEmail, req.PropertyID)
			}
			req.SellerEmail = normalizeEmail(p.OwnerEmail)
		}
	}

	if e.config.ExclusiveRequests {
		active, err := e.store.HasActive(ctx, req.PropertyID)
		if err != nil {
			return nil, fmt.Errorf("failed to check active transactions: %w", err)
		}
		if active {
			return nil, errs.E(errs.KindConflict, op, "property %s already has an active transaction", req.PropertyID)
		}
	}

	t := &Transaction{
		PropertyID:  req.PropertyID,
		BuyerEmail:  req.BuyerEmail,
		SellerEmail: req.SellerEmail,
		Status:      Status(machine.Initial()),
	}
	if req.OfferPrice != "" {
		t.OfferPrice = &req.OfferPrice
	}
	if req.BuyerWalletAddress != "" {
		t.BuyerWalletAddress = &req.BuyerWalletAddress
	}

	ev := e.newEvent(OpSubmitRequest, "", t.Status, actor, nil)
	if err := e.store.Insert(ctx, t, ev); err != nil {
		return nil, err
	}

	e.logger.Info("Purchase request submitted",
		zap.Uint("transaction_id", t.ID),
		zap.String("property_id", t.PropertyID),
		zap.String("buyer", t.BuyerEmail),
		zap.String("seller", t.SellerEmail))

	e.notifier.Notify(ctx, notifications.Event{
		Type:          notifications.EventTransactionCreated,
		TransactionID: t.ID,
		PropertyID:    t.PropertyID,
		To:            string(t.Status),
		BuyerEmail:    t.BuyerEmail,
		SellerEmail:   t.SellerEmail,
		ActorEmail:    actor.Email,
		At:            e.now(),
	})

	return t, nil
}

// Transition applies op to the transaction. FinalizeOnChain is reachable
// through it with payload.Finalize.
func (e *Engine) Transition(ctx context.Context, id uint, op Operation, actor auth.Actor, payload Payload) (*Transaction, error) {
	if op == OpFinalizeOnChain {
		var req FinalizeRequest
		if payload.Finalize != nil {
			req = *payload.Finalize
		}
		res, err := e.FinalizeOnChain(ctx, id, actor, req)
		if err != nil {
			return nil, err
		}
		return res.Transaction, nil
	}

	opName := "transactions." + string(op)

	if err := checkRole(opName, op, actor); err != nil {
		return nil, err
	}
	if op == OpUploadPaymentProof && (payload.PaymentProof == nil || payload.PaymentProof.Content == nil) {
		return nil, errs.E(errs.KindValidation, opName, "payment proof file is required")
	}

	t, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkParticipant(opName, op, actor, t); err != nil {
		return nil, err
	}

	next, ok := machine.Target(string(op), string(t.Status))
	if !ok {
		return nil, invalidTransition(opName, op, t)
	}

	ch := Changes{Status: Status(next)}
	meta := map[string]interface{}{}
	if payload.Reason != "" {
		meta["reason"] = payload.Reason
	}

	if op == OpUploadPaymentProof {
		ref, err := e.files.Save(ctx, paymentProofDir, payload.PaymentProof.Filename, payload.PaymentProof.Content)
		if err != nil {
			return nil, errs.Wrap(errs.KindExternalService, opName, err, "failed to store payment proof")
		}
		ch.PaymentProofPath = &ref
		meta["payment_proof_path"] = ref
	}

	if err := e.apply(ctx, opName, op, t, ch, actor, meta); err != nil {
		if ch.PaymentProofPath != nil {
			e.removeFile(ctx, *ch.PaymentProofPath)
		}
		return nil, err
	}
	return t, nil
}

// FinalizeOnChain records the transfer on chain and completes the
// transaction. Calling it on a Completed transaction is a no-op success.
func (e *Engine) FinalizeOnChain(ctx context.Context, id uint, actor auth.Actor, req FinalizeRequest) (*FinalizeResult, error) {
	const op = "transactions.finalize_on_chain"

	if err := checkRole(op, OpFinalizeOnChain, actor); err != nil {
		return nil, err
	}

	t, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == StatusCompleted {
		return &FinalizeResult{Transaction: t, AlreadyFinalized: true}, nil
	}
	if _, ok := machine.Target(string(OpFinalizeOnChain), string(t.Status)); !ok {
		return nil, invalidTransition(op, OpFinalizeOnChain, t)
	}

	transfer, err := e.transferRequest(t, req)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err, "incomplete transfer details")
	}
	ownerName := e.ownerName(ctx, t.BuyerEmail)

	// Only the holder of the claim talks to the chain, so two officials
	// finalizing at once cannot record the transfer twice.
	now := e.now()
	claimed, err := e.store.ClaimFinalization(ctx, id, now, now.Add(2*e.config.FinalizeTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to claim transaction %d: %w", id, err)
	}
	if !claimed {
		return nil, errs.E(errs.KindConcurrentModification, op,
			"transaction %d is already being finalized or has changed", id)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.FinalizeTimeout)
	res, err := e.chain.SubmitTransfer(callCtx, transfer)
	cancel()
	if err != nil {
		e.releaseClaim(ctx, id)
		msg := "blockchain call failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("blockchain call timed out after %s", e.config.FinalizeTimeout)
		}
		e.logger.Warn("Finalization failed",
			zap.Uint("transaction_id", id),
			zap.Error(err))
		return nil, errs.Wrap(errs.KindExternalService, op, err, "%s", msg)
	}
	if res == nil || !res.Success {
		e.releaseClaim(ctx, id)
		reason := "unknown error"
		if res != nil && res.Error != "" {
			reason = res.Error
		}
		e.logger.Warn("Blockchain rejected transfer",
			zap.Uint("transaction_id", id),
			zap.String("reason", reason))
		return nil, errs.E(errs.KindExternalService, op, "blockchain transaction failed: %s", reason)
	}

	ch := Changes{
		Status:           StatusCompleted,
		BlockchainTxHash: &res.TxHash,
		NewOwnerEmail:    t.BuyerEmail,
		NewOwnerName:     ownerName,
	}
	if req.Price != "" {
		ch.OfferPrice = &transfer.Price
	}
	if req.BuyerWalletAddress != "" {
		ch.BuyerWalletAddress = &transfer.BuyerAddress
	}
	meta := map[string]interface{}{
		"tx_hash":  res.TxHash,
		"gas_used": res.GasUsed,
		"price":    transfer.Price,
	}

	if err := e.apply(ctx, op, OpFinalizeOnChain, t, ch, actor, meta); err != nil {
		e.logger.Error("Transfer recorded on chain but not in the registry",
			zap.Uint("transaction_id", id),
			zap.String("tx_hash", res.TxHash),
			zap.Error(err))
		if errs.KindOf(err) != errs.KindConcurrentModification {
			e.releaseClaim(ctx, id)
		}
		return nil, err
	}

	return &FinalizeResult{Transaction: t, GasUsed: res.GasUsed}, nil
}

// apply performs the conditional update and, on success, updates t in place
// and publishes the change.
func (e *Engine) apply(ctx context.Context, opName string, op Operation, t *Transaction, ch Changes, actor auth.Actor, meta map[string]interface{}) error {
	from := t.Status
	if !machine.CanTransition(string(from), string(ch.Status)) {
		return fmt.Errorf("transaction %d: no transition from %s to %s", t.ID, from, ch.Status)
	}
	ev := e.newEvent(op, from, ch.Status, actor, meta)

	n, err := e.store.ConditionalUpdate(ctx, t.ID, from, ch, ev)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", t.ID, err)
	}
	if n == 0 {
		return errs.E(errs.KindConcurrentModification, opName,
			"transaction %d is no longer %s", t.ID, from)
	}

	t.Status = ch.Status
	t.UpdatedAt = e.now()
	if ch.PaymentProofPath != nil {
		t.PaymentProofPath = ch.PaymentProofPath
	}
	if ch.BlockchainTxHash != nil {
		t.BlockchainTxHash = ch.BlockchainTxHash
	}
	if ch.OfferPrice != nil {
		t.OfferPrice = ch.OfferPrice
	}
	if ch.BuyerWalletAddress != nil {
		t.BuyerWalletAddress = ch.BuyerWalletAddress
	}

	e.logger.Info("Transaction status changed",
		zap.Uint("transaction_id", t.ID),
		zap.String("operation", string(op)),
		zap.String("from", string(from)),
		zap.String("to", string(ch.Status)),
		zap.String("actor", actor.Email))

	ntf := notifications.Event{
		Type:          notifications.EventStatusChanged,
		TransactionID: t.ID,
		PropertyID:    t.PropertyID,
		From:          string(from),
		To:            string(ch.Status),
		BuyerEmail:    t.BuyerEmail,
		SellerEmail:   t.SellerEmail,
		ActorEmail:    actor.Email,
		At:            t.UpdatedAt,
	}
	if ch.BlockchainTxHash != nil {
		ntf.TxHash = *ch.BlockchainTxHash
	}
	e.notifier.Notify(ctx, ntf)

	return nil
}

func (e *Engine) transferRequest(t *Transaction, req FinalizeRequest) (blockchain.TransferRequest, error) {
	wallet := req.BuyerWalletAddress
	if wallet == "" && t.BuyerWalletAddress != nil {
		wallet = *t.BuyerWalletAddress
	}
	price := req.Price
	if price == "" && t.OfferPrice != nil {
		price = *t.OfferPrice
	}
	terms := req.Terms
	if terms == "" {
		terms = fmt.Sprintf("Transfer of property %s from %s to %s", t.PropertyID, t.SellerEmail, t.BuyerEmail)
	}

	transfer := blockchain.TransferRequest{
		PropertyID:   t.PropertyID,
		BuyerAddress: wallet,
		Price:        price,
		Terms:        terms,
	}
	if wallet == "" {
		return transfer, fmt.Errorf("buyer wallet address is required")
	}
	if price == "" {
		return transfer, fmt.Errorf("price is required")
	}
	return transfer, transfer.Validate()
}

// Get returns a transaction or a NotFound error.
func (e *Engine) Get(ctx context.Context, id uint) (*Transaction, error) {
	t, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %d: %w", id, err)
	}
	if t == nil {
		return nil, errs.E(errs.KindNotFound, "transactions.Get", "transaction %d not found", id)
	}
	return t, nil
}

// ListByRole returns the transactions visible to a role. Buyers and sellers
// see their own; government and admins see all. Results are in creation order.
func (e *Engine) ListByRole(ctx context.Context, role auth.Role, identity string, statuses ...Status) ([]Transaction, error) {
	const op = "transactions.ListByRole"

	identity = normalizeEmail(identity)
	f := Filter{Statuses: statuses}
	switch role {
	case auth.RoleBuyer:
		f.BuyerEmail = identity
	case auth.RoleSeller:
		f.SellerEmail = identity
	case auth.RoleGovernment, auth.RoleAdmin:
	default:
		return nil, errs.E(errs.KindValidation, op, "unknown role %q", role)
	}
	if (role == auth.RoleBuyer || role == auth.RoleSeller) && identity == "" {
		return nil, errs.E(errs.KindValidation, op, "identity is required for role %s", role)
	}

	return e.store.Query(ctx, f)
}

// PendingFinalization returns Government Approved transactions that carry
// enough stored data to be finalized without caller input.
func (e *Engine) PendingFinalization(ctx context.Context, limit int) ([]Transaction, error) {
	return e.store.Query(ctx, Filter{
		Statuses:            []Status{StatusGovernmentApproved},
		RequireFinalizeData: true,
		Limit:               limit,
	})
}

// History returns the audit trail of a transaction, oldest first.
func (e *Engine) History(ctx context.Context, id uint) ([]TransactionEvent, error) {
	if _, err := e.Get(ctx, id); err != nil {
		return nil, err
	}
	out, err := e.store.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return out, nil
}

// CountByStatus returns the number of transactions per status.
func (e *Engine) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	return e.store.CountByStatus(ctx)
}

func (e *Engine) newEvent(op Operation, from, to Status, actor auth.Actor, meta map[string]interface{}) *TransactionEvent {
	ev := &TransactionEvent{
		Operation:  op,
		FromStatus: from,
		ToStatus:   to,
		ActorRole:  actor.Role,
		ActorEmail: actor.Email,
	}
	if len(meta) > 0 {
		if data, err := json.Marshal(meta); err == nil {
			ev.Metadata = data
		}
	}
	return ev
}

func (e *Engine) releaseClaim(ctx context.Context, id uint) {
	if err := e.store.ReleaseFinalization(context.WithoutCancel(ctx), id); err != nil {
		e.logger.Warn("Failed to release finalization claim", zap.Uint("transaction_id", id), zap.Error(err))
	}
}

// ownerName is the name recorded on the property once the buyer owns it.
func (e *Engine) ownerName(ctx context.Context, email string) string {
	if e.accounts == nil {
		return email
	}
	u, err := e.accounts.Profile(ctx, email)
	if err != nil || u == nil || strings.TrimSpace(u.FullName) == "" {
		e.logger.Warn("Buyer profile unavailable, using email as owner name",
			zap.String("buyer", email), zap.Error(err))
		return email
	}
	return u.FullName
}

func (e *Engine) removeFile(ctx context.Context, ref string) {
	if err := e.files.Delete(context.WithoutCancel(ctx), ref); err != nil {
		e.logger.Warn("Failed to remove orphaned payment proof", zap.String("ref", ref), zap.Error(err))
	}
}

func invalidTransition(opName string, op Operation, t *Transaction) error {
	return errs.E(errs.KindInvalidStateTransition, opName,
		"cannot %s transaction %d in status %s (allowed from: %s)",
		op, t.ID, t.Status, strings.Join(machine.Sources(string(op)), ", "))
}

func checkRole(opName string, op Operation, actor auth.Actor) error {
	for _, r := range operationRoles[op] {
		if actor.Role == r {
			return nil
		}
	}
	return errs.E(errs.KindForbidden, opName, "role %s cannot perform %s", actor.Role, op)
}

// checkParticipant ties buyer and seller operations to the parties named on
// the transaction.
func checkParticipant(opName string, op Operation, actor auth.Actor, t *Transaction) error {
	switch actor.Role {
	case auth.RoleBuyer:
		if !strings.EqualFold(actor.Email, t.BuyerEmail) {
			return errs.E(errs.KindForbidden, opName, "%s is not the buyer of transaction %d", actor.Email, t.ID)
		}
	case auth.RoleSeller:
		if !strings.EqualFold(actor.Email, t.SellerEmail) {
			return errs.E(errs.KindForbidden, opName, "%s is not the seller of transaction %d", actor.Email, t.ID)
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePrice(p string) error {
	wei, err := blockchain.ParseEther(p)
	if err != nil {
		return err
	}
	if wei.Sign() <= 0 {
		return fmt.Errorf("price must be positive")
	}
	return nil
}
