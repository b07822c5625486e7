package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"taixiu-game-backend/internal/models"
	"taixiu-game-backend/internal/store"
)

// MinWithdraw is the smallest amount a user may request to withdraw.
const MinWithdraw int64 = 100000

// ApprovalService queues deposit and withdraw requests for a manual admin
// decision. Approval is the only path from a request to the ledger, and a
// decision is final: re-deciding a request is rejected.
type ApprovalService struct {
	mu     sync.Mutex
	store  store.Store
	ledger *Ledger
	events Announcer
	log    *zap.SugaredLogger
}

func NewApprovalService(st store.Store, ledger *Ledger, events Announcer, log *zap.SugaredLogger) *ApprovalService {
	return &ApprovalService{
		store:  st,
		ledger: ledger,
		events: events,
		log:    log,
	}
}

func (a *ApprovalService) SubmitDeposit(userID, amount int64) (*models.TransferRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return a.submit(userID, amount, models.RequestDeposit)
}

func (a *ApprovalService) SubmitWithdraw(userID, amount int64) (*models.TransferRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < MinWithdraw {
		return nil, ErrBelowMinWithdraw
	}
	if a.ledger.GetBalance(userID) < amount {
		return nil, ErrInsufficientFunds
	}
	return a.submit(userID, amount, models.RequestWithdraw)
}

func (a *ApprovalService) submit(userID, amount int64, kind models.RequestKind) (*models.TransferRequest, error) {
	req := &models.TransferRequest{
		ID:        models.GenerateRequestID(kind),
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Status:    models.RequestPending,
		CreatedAt: time.Now().Unix(),
	}

	if err := a.store.SaveRequest(req); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}

	a.log.Infow("transfer request created", "id", req.ID, "kind", kind, "user", models.MaskUserID(userID), "amount", amount)
	a.events.RequestCreated(req)
	return req, nil
}

// Decide finalizes a pending request. Approving a deposit credits the user;
// approving a withdraw debits them. If the debit fails the request stays
// pending so the admin can retry or deny.
func (a *ApprovalService) Decide(id string, adminID int64, approve bool) (*models.TransferRequest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	req, err := a.store.GetRequest(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req.Decided() {
		return nil, ErrRequestDecided
	}

	if approve {
		switch req.Kind {
		case models.RequestDeposit:
			err = a.ledger.Credit(req.UserID, req.Amount)
		case models.RequestWithdraw:
			err = a.ledger.Debit(req.UserID, req.Amount)
		}
		if err != nil {
			return nil, err
		}
		req.Status = models.RequestApproved
	} else {
		req.Status = models.RequestDenied
	}
	req.AdminID = adminID
	req.DecidedAt = time.Now().Unix()

	if err := a.store.SaveRequest(req); err != nil {
		// The ledger mutation already happened; a lost decision record
		// would allow a second approval, so surface this loudly.
		a.log.Errorw("failed to persist decision", "id", req.ID, "error", err)
		return nil, fmt.Errorf("persist decision: %w", err)
	}

	a.log.Infow("transfer request decided", "id", req.ID, "status", req.Status, "admin", adminID)
	return req, nil
}

func (a *ApprovalService) List(kind models.RequestKind, status models.RequestStatus) ([]*models.TransferRequest, error) {
	requests, err := a.store.LoadRequests(kind)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return requests, nil
	}

	filtered := requests[:0]
	for _, req := range requests {
		if req.Status == status {
			filtered = append(filtered, req)
		}
	}
	return filtered, nil
}
