package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a Transaction.
type TransactionStatus string

const (
	TransactionStatusPreliminary TransactionStatus = "preliminary"
	TransactionStatusCaptured TransactionStatus = "captured"
	TransactionStatusPartiallyRefunded TransactionStatus = "partially_refunded"
	TransactionStatusFullyRefunded TransactionStatus = "fully_refunded"
	TransactionStatusFailed TransactionStatus = "failed"
)

// ItemStatus is the lifecycle state of one TransactionItem.
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusCaptured ItemStatus = "captured"
	ItemStatusRefundedPartial ItemStatus = "refunded_partial"
	ItemStatusRefundedFull ItemStatus = "refunded_full"
)

// TransactionRefund is appended to an item on every successful provider
// refund call.
type TransactionRefund struct {
	RefundID string `json:"refund_id"`
	Amount decimal.Decimal `json:"amount"`
	Currency string `json:"currency"`
	Reason string `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	ByUID string `json:"by_uid"`
	Source string `json:"source"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// TransactionItem is one registrant's line within a provider order.
type TransactionItem struct {
	LineID string `json:"line_id"`
	PersonID string `json:"person_id"`
	DisplayName string `json:"display_name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Status ItemStatus `json:"status"`
	PaymentType PaymentType `json:"payment_type"`
	CaptureID string `json:"capture_id,omitempty"`
	RefundedTotal decimal.Decimal `json:"refunded_total"`
	Refunds []TransactionRefund `json:"refunds"`
}

// HasRefund reports whether refundID has already been recorded against this
// item, backing AppendRefund's duplicate-suppression check.
func (it *TransactionItem) HasRefund(refundID string) bool {
	for _, r := range it.Refunds {
		if r.RefundID == refundID {
			return true
		}
	}
	return false
}

// RemainingAgainstUnitPrice is unit_price - refunded_total, floored at zero;
// this is the bound the admin refund path enforces.
func (it *TransactionItem) RemainingAgainstUnitPrice() decimal.Decimal {
	return ClampNonNegative(it.UnitPrice.Sub(it.RefundedTotal))
}

// TransactionMeta carries discount/flow bookkeeping that doesn't belong to
// any single item.
type TransactionMeta struct {
	DiscountCodeID *string `json:"discount_code_id,omitempty"`
	DiscountedCount int `json:"discounted_count"`
	FlowTag string `json:"flow_tag"`
}

// Transaction is the ledger's unit of record for one provider order.
type Transaction struct {
	ID string `json:"id"`
	OrderID string `json:"order_id"`
	PayerUID string `json:"payer_uid"`
	InstanceID string `json:"instance_id"`
	BlueprintID string `json:"blueprint_id"`
	Currency string `json:"currency"`
	Status TransactionStatus `json:"status"`
	Items []TransactionItem `json:"items"`
	FeeAmount *decimal.Decimal `json:"fee_amount,omitempty"`
	RawCreate json.RawMessage `json:"raw_create,omitempty"`
	RawCapture json.RawMessage `json:"raw_capture,omitempty"`
	Meta TransactionMeta `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemByLineID returns a pointer into t.Items for in-place mutation.
func (t *Transaction) ItemByLineID(lineID string) (*TransactionItem, bool) {
	for i := range t.Items {
		if t.Items[i].LineID == lineID {
			return &t.Items[i], true
		}
	}
	return nil, false
}

// AllCapturedItemsFullyRefunded reports whether every captured-lineage item
// has been refunded in full, driving the fully_refunded status.
func (t *Transaction) AllCapturedItemsFullyRefunded() bool {
	any := false
	for _, it := range t.Items {
		if it.CaptureID == "" {
			continue
		}
		any = true
		if it.Status != ItemStatusRefundedFull {
			return false
		}
	}
	return any
}

// AnyRefundRecorded reports whether at least one refund exists on any item.
func (t *Transaction) AnyRefundRecorded() bool {
	for _, it := range t.Items {
		if len(it.Refunds) > 0 {
			return true
		}
	}
	return false
}

// LedgerRepository persists Transaction documents, keyed by both an internal
// store id and the provider's order id (capture/refund flows key by order
// id; registration flows key by internal id).
type LedgerRepository interface {
	Create(t *Transaction) (*Transaction, error)
	GetByID(id string) (*Transaction, error)
	GetByOrderID(orderID string) (*Transaction, error)
	Update(t *Transaction) (*Transaction, error)
	ListUpcomingPaidByBlueprint(blueprintID string) ([]*Transaction, error)
}
