package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dafibh/eventcore/internal/domain"
)

// LedgerService implements the Transaction Ledger (C2): per-order and
// per-line lifecycle, refund append, and status derivation.
type LedgerService struct {
	repo domain.LedgerRepository
}

func NewLedgerService(repo domain.LedgerRepository) *LedgerService {
	return &LedgerService{repo: repo}
}

// CreatePreliminaryInput bundles the arguments to CreatePreliminary.
type CreatePreliminaryInput struct {
	OrderID string
	PayerUID string
	InstanceID string
	BlueprintID string
	Currency string
	Items []domain.TransactionItem
	RawCreate json.RawMessage
	Meta domain.TransactionMeta
}

// CreatePreliminary persists a new preliminary Transaction.
func (s *LedgerService) CreatePreliminary(in CreatePreliminaryInput) (*domain.Transaction, error) {
	now := time.Now().UTC()
	t := &domain.Transaction{
		ID: uuid.NewString(),
		OrderID: in.OrderID,
		PayerUID: in.PayerUID,
		InstanceID: in.InstanceID,
		BlueprintID: in.BlueprintID,
		Currency: in.Currency,
		Status: domain.TransactionStatusPreliminary,
		Items: in.Items,
		RawCreate: in.RawCreate,
		Meta: in.Meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.repo.Create(t)
}

// GetByOrderID returns the transaction for a provider order id.
func (s *LedgerService) GetByOrderID(orderID string) (*domain.Transaction, error) {
	t, err := s.repo.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrTransactionNotFound
	}
	return t, nil
}

// MarkCapturedInput bundles the arguments to MarkCaptured.
type MarkCapturedInput struct {
	OrderID string
	CaptureID string
	FeeAmount *decimal.Decimal
	RawCapture json.RawMessage
}

// MarkCaptured updates every item's capture id and status, and the
// transaction's status, idempotently with respect to repeated calls
// carrying the same capture id.
func (s *LedgerService) MarkCaptured(in MarkCapturedInput) (*domain.Transaction, error) {
	t, err := s.GetByOrderID(in.OrderID)
	if err != nil {
		return nil, err
	}

	if allItemsCarry(t, in.CaptureID) {
		return t, nil // idempotent replay: already applied
	}

	for i := range t.Items {
		t.Items[i].CaptureID = in.CaptureID
		t.Items[i].Status = domain.ItemStatusCaptured
	}
	t.Status = domain.TransactionStatusCaptured
	t.FeeAmount = in.FeeAmount
	t.RawCapture = in.RawCapture
	t.UpdatedAt = time.Now().UTC()

	return s.repo.Update(t)
}

func allItemsCarry(t *domain.Transaction, captureID string) bool {
	if len(t.Items) == 0 {
		return false
	}
	for _, it := range t.Items {
		if it.CaptureID != captureID {
			return false
		}
	}
	return true
}

// AppendRefundInput bundles the arguments to AppendRefund.
type AppendRefundInput struct {
	OrderID string
	LineID string
	RefundID string
	Amount decimal.Decimal
	Reason string
	ByUID string
	Source string
}

// AppendRefund records a refund against a captured line. It fails if
// the line is missing or uncaptured, and is a no-op if refund_id was already
// recorded (duplicate suppression).
func (s *LedgerService) AppendRefund(in AppendRefundInput) (*domain.Transaction, error) {
	t, err := s.GetByOrderID(in.OrderID)
	if err != nil {
		return nil, err
	}

	item, ok := t.ItemByLineID(in.LineID)
	if !ok {
		return nil, domain.WrapError(domain.KindLedgerInconsistent, "refund against missing line", domain.ErrLineNotFound)
	}
	if item.CaptureID == "" {
		return nil, domain.NewError(domain.KindLedgerInconsistent, "refund against uncaptured line")
	}
	if item.HasRefund(in.RefundID) {
		return t, nil // duplicate suppression
	}

	item.Refunds = append(item.Refunds, domain.TransactionRefund{
			RefundID: in.RefundID,
			Amount: in.Amount,
			Currency: t.Currency,
			Reason: in.Reason,
			CreatedAt: time.Now().UTC(),
			ByUID: in.ByUID,
			Source: in.Source,
	})
	item.RefundedTotal = item.RefundedTotal.Add(in.Amount)
	if domain.MoneyEqual(item.RefundedTotal, item.UnitPrice) {
		item.Status = domain.ItemStatusRefundedFull
	} else {
		item.Status = domain.ItemStatusRefundedPartial
	}

	t.Status = s.recomputeStatus(t)
	t.UpdatedAt = time.Now().UTC()

	return s.repo.Update(t)
}

// recomputeStatus derives transaction status: fully_refunded iff
// every captured line is fully refunded; partially_refunded iff any refund
// exists and not all lines are fully refunded; otherwise unchanged (captured).
func (s *LedgerService) recomputeStatus(t *domain.Transaction) domain.TransactionStatus {
	if t.AllCapturedItemsFullyRefunded() {
		return domain.TransactionStatusFullyRefunded
	}
	if t.AnyRefundRecorded() {
		return domain.TransactionStatusPartiallyRefunded
	}
	return domain.TransactionStatusCaptured
}

// MarkFailed transitions a preliminary transaction to the terminal failed
// state on a capture error.
func (s *LedgerService) MarkFailed(orderID string) (*domain.Transaction, error) {
	t, err := s.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TransactionStatusFailed
	t.UpdatedAt = time.Now().UTC()
	return s.repo.Update(t)
}
