package models

type RequestKind string

const (
	RequestDeposit  RequestKind = "deposit"
	RequestWithdraw RequestKind = "withdraw"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// TransferRequest is a deposit or withdraw request awaiting an admin
// decision. A decision is terminal; re-deciding is rejected.
type TransferRequest struct {
	ID     string      `json:"id" redis:"id"`
	UserID int64       `json:"user_id" redis:"user_id"`
	Kind   RequestKind `json:"kind" redis:"kind"`
	Amount int64       `json:"amount" redis:"amount"`

	Status    RequestStatus `json:"status" redis:"status"`
	AdminID   int64         `json:"admin_id,omitempty" redis:"admin_id"`
	CreatedAt int64         `json:"created_at" redis:"created_at"`
	DecidedAt int64         `json:"decided_at,omitempty" redis:"decided_at"`
}

func (r *TransferRequest) Decided() bool {
	return r.Status != RequestPending
}
