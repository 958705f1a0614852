package transactions

import (
	"time"

	"gorm.io/datatypes"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/pkg/storage"
	"land-registry/registry-backend/pkg/workflows"
)

// Status is the lifecycle state of a purchase transaction.
type Status string

const (
	StatusRequested          Status = "Requested"
	StatusAccepted           Status = "Accepted"
	StatusRejected           Status = "Rejected"
	StatusGovernmentApproved Status = "Government Approved"
	StatusPaid               Status = "Paid"
	StatusPaymentReceived    Status = "Payment Received"
	StatusCompleted          Status = "Completed"
)

var allStatuses = []Status{
	StatusRequested, StatusAccepted, StatusRejected, StatusGovernmentApproved,
	StatusPaid, StatusPaymentReceived, StatusCompleted,
}

func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no operation may leave the status.
func (s Status) IsTerminal() bool {
	return machine.IsTerminal(string(s))
}

// Operation names a state-changing command on a transaction.
type Operation string

const (
	OpSubmitRequest       Operation = "submit_request"
	OpAccept              Operation = "accept"
	OpSellerReject        Operation = "seller_reject"
	OpGovReject           Operation = "gov_reject"
	OpUploadPaymentProof  Operation = "upload_payment_proof"
	OpMarkPaymentReceived Operation = "mark_payment_received"
	OpGovApprove          Operation = "gov_approve"
	OpFinalizeOnChain     Operation = "finalize_on_chain"
)

func ParseOperation(s string) (Operation, bool) {
	op := Operation(s)
	if op == OpSubmitRequest {
		return op, true
	}
	_, ok := operationRoles[op]
	return op, ok
}

var rejectable = []string{string(StatusRequested), string(StatusAccepted), string(StatusGovernmentApproved)}

var machine = workflows.NewStateMachine(
	string(StatusRequested),
	[]string{string(StatusRejected), string(StatusCompleted)},
	workflows.Transition{Operation: string(OpAccept), From: []string{string(StatusRequested)}, To: string(StatusAccepted)},
	workflows.Transition{Operation: string(OpSellerReject), From: rejectable, To: string(StatusRejected)},
	workflows.Transition{Operation: string(OpGovReject), From: rejectable, To: string(StatusRejected)},
	workflows.Transition{Operation: string(OpUploadPaymentProof), From: []string{string(StatusAccepted)}, To: string(StatusPaid)},
	workflows.Transition{Operation: string(OpMarkPaymentReceived), From: []string{string(StatusPaid)}, To: string(StatusPaymentReceived)},
	workflows.Transition{Operation: string(OpGovApprove), From: []string{string(StatusAccepted)}, To: string(StatusGovernmentApproved)},
	workflows.Transition{Operation: string(OpFinalizeOnChain), From: []string{string(StatusGovernmentApproved)}, To: string(StatusCompleted)},
)

// operationRoles lists who may perform each operation.
var operationRoles = map[Operation][]auth.Role{
	OpAccept:              {auth.RoleSeller},
	OpSellerReject:        {auth.RoleSeller},
	OpGovReject:           {auth.RoleGovernment, auth.RoleAdmin},
	OpUploadPaymentProof:  {auth.RoleBuyer},
	OpMarkPaymentReceived: {auth.RoleSeller},
	OpGovApprove:          {auth.RoleGovernment},
	OpFinalizeOnChain:     {auth.RoleGovernment, auth.RoleAdmin},
}

// AllowedOperations returns the operations valid from a status.
func AllowedOperations(s Status) []Operation {
	names := machine.GetAllowedOperations(string(s))
	out := make([]Operation, len(names))
	for i, n := range names {
		out[i] = Operation(n)
	}
	return out
}

// Transaction is a purchase request for one property.
type Transaction struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	PropertyID         string    `json:"property_id" gorm:"not null;index"`
	BuyerEmail         string    `json:"buyer_email" gorm:"not null;index"`
	SellerEmail        string    `json:"seller_email" gorm:"not null;index"`
	Status             Status    `json:"status" gorm:"not null;index"`
	OfferPrice         *string   `json:"offer_price,omitempty"`
	BuyerWalletAddress *string   `json:"buyer_wallet_address,omitempty"`
	PaymentProofPath   *string   `json:"payment_proof_path,omitempty"`
	BlockchainTxHash   *string   `json:"blockchain_tx_hash,omitempty"`
	// FinalizeClaimedUntil is set while a finalize call is waiting on the
	// chain. Other finalize calls are refused until it passes.
	FinalizeClaimedUntil *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// TransactionEvent is the audit record of one status change.
type TransactionEvent struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	TransactionID uint           `json:"transaction_id" gorm:"not null;index"`
	Operation     Operation      `json:"operation" gorm:"not null"`
	FromStatus    Status         `json:"from_status"`
	ToStatus      Status         `json:"to_status" gorm:"not null"`
	ActorRole     auth.Role      `json:"actor_role" gorm:"not null"`
	ActorEmail    string         `json:"actor_email" gorm:"not null"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// SubmitRequest is the payload for a new purchase request.
type SubmitRequest struct {
	PropertyID         string `json:"property_id" binding:"required"`
	BuyerEmail         string `json:"buyer_email"`
	SellerEmail        string `json:"seller_email" binding:"required"`
	OfferPrice         string `json:"offer_price"`
	BuyerWalletAddress string `json:"buyer_wallet_address"`
}

// Payload carries operation-specific input to Transition.
type Payload struct {
	PaymentProof *storage.Upload
	Reason       string
	Finalize     *FinalizeRequest
}

// FinalizeRequest supplies or overrides the on-chain transfer details.
type FinalizeRequest struct {
	BuyerWalletAddress string `json:"buyer_wallet_address"`
	Price              string `json:"price"`
	Terms              string `json:"terms"`
}

// FinalizeResult reports the outcome of FinalizeOnChain.
type FinalizeResult struct {
	Transaction      *Transaction `json:"transaction"`
	AlreadyFinalized bool         `json:"already_finalized"`
	GasUsed          uint64       `json:"gas_used,omitempty"`
}

// Changes are the column updates applied with a status change.
type Changes struct {
	Status             Status
	PaymentProofPath   *string
	BlockchainTxHash   *string
	OfferPrice         *string
	BuyerWalletAddress *string
	// NewOwnerEmail and NewOwnerName reassign the property to the buyer in
	// the same database transaction when NewOwnerEmail is set.
	NewOwnerEmail string
	NewOwnerName  string
}

// Filter narrows transaction queries. Empty fields match everything.
type Filter struct {
	BuyerEmail  string
	SellerEmail string
	PropertyID  string
	Statuses    []Status
	// RequireFinalizeData keeps only rows with a stored price and wallet.
	RequireFinalizeData bool
	Limit               int
}
