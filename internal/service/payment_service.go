package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dafibh/eventcore/internal/domain"
	"github.com/dafibh/eventcore/internal/provider/paypal"
)

// PaymentService implements the Payment Orchestrator (C7): order creation
// and capture, bridging the provider client (C1), the ledger (C2), and the
// registration state machine (C6).
type PaymentService struct {
	registration *RegistrationService
	ledger *LedgerService
	provider *paypal.Client
	frontendBase string
}

func NewPaymentService(registration *RegistrationService, ledger *LedgerService, provider *paypal.Client, frontendBase string) *PaymentService {
	return &PaymentService{registration: registration, ledger: ledger, provider: provider, frontendBase: frontendBase}
}

// CreateOrderRequest bundles a caller's desired additions into a single
// provider order.
type CreateOrderRequest struct {
	InstanceID string
	Caller domain.Caller
	Additions []Addition
	DiscountCodeID *string
	Now time.Time
}

// CreateOrderResult carries the data a handler needs to redirect the caller
// to the provider's approval flow.
type CreateOrderResult struct {
	OrderID string
	ApproveURL string
}

// CreateOrder runs the create-order sequence: validate, build line
// items keyed by opaque line ids, call the provider, and persist a
// preliminary ledger row before returning the approval link.
func (s *PaymentService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	vc, err := s.registration.Validate(ChangeRequest{
			InstanceID: req.InstanceID,
			Caller: req.Caller,
			Additions: req.Additions,
			DiscountCodeID: req.DiscountCodeID,
			Now: req.Now,
	})
	if err != nil {
		return nil, err
	}
	if len(vc.Additions) == 0 {
		return nil, domain.NewError(domain.KindValidationFailed, "order requires at least one new registrant")
	}

	currency := "USD"
	items := make([]domain.TransactionItem, 0, len(vc.Additions))
	ppItems := make([]paypal.Item, 0, len(vc.Additions))
	total := decimal.Zero

	for _, a := range vc.Additions {
		lineID := uuid.NewString()
		sku := fmt.Sprintf("evt:%s:line:%s:person:%s", req.InstanceID, lineID, a.PersonID)
		items = append(items, domain.TransactionItem{
				LineID: lineID,
				PersonID: a.PersonID,
				UnitPrice: vc.UnitPrice,
				Status: domain.ItemStatusPending,
				PaymentType: a.PaymentType,
		})
		ppItems = append(ppItems, paypal.Item{
				Name: "Event registration",
				Quantity: "1",
				UnitAmount: paypal.Money{CurrencyCode: currency, Value: vc.UnitPrice.StringFixed(2)},
				SKU: sku,
		})
		total = total.Add(vc.UnitPrice)
	}

	orderReq := paypal.CreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypal.PurchaseUnit{{
				ReferenceID: req.InstanceID,
				CustomID: req.Caller.UID,
				Amount: paypal.PurchaseUnitAmount{
					CurrencyCode: currency,
					Value: total.StringFixed(2),
					Breakdown: paypal.AmountBreakdown{ItemTotal: paypal.Money{CurrencyCode: currency, Value: total.StringFixed(2)}},
				},
				Items: ppItems,
		}},
		ApplicationContext: paypal.ApplicationContext{
			ReturnURL: s.frontendBase + "/events/" + req.InstanceID + "/payment/return",
			CancelURL: s.frontendBase + "/events/" + req.InstanceID + "/payment/cancel",
		},
	}

	resp, err := s.provider.CreateOrder(ctx, orderReq, uuid.NewString())
	if err != nil {
		return nil, err
	}

	rawCreate, _ := json.Marshal(resp)
	_, err = s.ledger.CreatePreliminary(CreatePreliminaryInput{
			OrderID: resp.ID,
			PayerUID: req.Caller.UID,
			InstanceID: req.InstanceID,
			BlueprintID: vc.Instance.BlueprintID,
			Currency: currency,
			Items: items,
			RawCreate: rawCreate,
			Meta: domain.TransactionMeta{
				DiscountCodeID: req.DiscountCodeID,
				DiscountedCount: vc.DiscountedCount,
				FlowTag: "registration",
			},
	})
	if err != nil {
		return nil, err
	}

	approveURL, ok := resp.ApproveLink()
	if !ok {
		return nil, domain.NewError(domain.KindProviderRejected, "order create response carried no approve link")
	}
	return &CreateOrderResult{OrderID: resp.ID, ApproveURL: approveURL}, nil
}

// CaptureRequest bundles the inputs to Capture.
type CaptureRequest struct {
	OrderID string
	Caller domain.Caller
	Additions []Addition
	Removals []string
	DiscountCodeID *string
	Now time.Time
}

// Capture runs the capture sequence: capture with the provider
// (idempotently), distribute the provider fee across lines, and apply the
// registration change with the resulting lineage and refundable amounts.
func (s *PaymentService) Capture(ctx context.Context, req CaptureRequest) (*ChangeResult, error) {
	t, err := s.ledger.GetByOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	if t.PayerUID != req.Caller.UID {
		return nil, domain.NewError(domain.KindForbidden, "order does not belong to caller")
	}

	lineage := make(map[string]LineLineage, len(t.Items))

	if t.Status == domain.TransactionStatusCaptured || t.Status == domain.TransactionStatusPartiallyRefunded || t.Status == domain.TransactionStatusFullyRefunded {
		refundableByLine := distributeFee(t.Items, t.FeeAmount)
		for _, it := range t.Items {
			lineage[it.PersonID] = LineLineage{OrderID: t.OrderID, LineID: it.LineID, RefundableAmount: refundableByLine[it.LineID]}
		}
	} else {
		captureResp, err := s.provider.CaptureOrder(ctx, req.OrderID)
		if err != nil {
			if _, markErr := s.ledger.MarkFailed(req.OrderID); markErr != nil {
				log.Warn().Err(markErr).Str("order_id", req.OrderID).Msg("failed to mark transaction failed after capture error")
			}
			return nil, err
		}
		capture, ok := captureResp.TopLevelCapture()
		if !ok {
			return nil, domain.NewError(domain.KindCaptureMismatch, "capture response carried no capture record")
		}

		var feeAmount *decimal.Decimal
		if capture.SellerReceivableBreakdown != nil && capture.SellerReceivableBreakdown.PayPalFee != nil {
			fee, err := decimal.NewFromString(capture.SellerReceivableBreakdown.PayPalFee.Value)
			if err == nil {
				feeAmount = &fee
			}
		}

		refundableByLine := distributeFee(t.Items, feeAmount)
		rawCapture, _ := json.Marshal(captureResp)

		if _, err := s.ledger.MarkCaptured(MarkCapturedInput{
				OrderID: req.OrderID,
				CaptureID: capture.ID,
				FeeAmount: feeAmount,
				RawCapture: rawCapture,
		}); err != nil {
			return nil, err
		}

		for _, it := range t.Items {
			lineage[it.PersonID] = LineLineage{OrderID: t.OrderID, LineID: it.LineID, RefundableAmount: refundableByLine[it.LineID]}
		}
	}

	for _, a := range req.Additions {
		if _, ok := lineage[a.PersonID]; !ok {
			return nil, domain.WrapError(domain.KindCaptureMismatch, "addition has no captured line: "+a.PersonID, nil)
		}
	}

	return s.registration.ProcessChangeEventRegistration(ctx, ChangeRequest{
			InstanceID: t.InstanceID,
			Caller: req.Caller,
			Additions: req.Additions,
			Removals: req.Removals,
			DiscountCodeID: req.DiscountCodeID,
			Now: req.Now,
		}, lineage)
}

// distributeFee spreads a total provider fee across items proportionally to
// unit_price, assigning the rounding remainder to the last item, then
// returns refundable_amount = unit_price - fee_share per line id.
func distributeFee(items []domain.TransactionItem, fee *decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(items))
	if fee == nil || len(items) == 0 {
		for _, it := range items {
			out[it.LineID] = it.UnitPrice
		}
		return out
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice)
	}
	if !total.IsPositive() {
		for _, it := range items {
			out[it.LineID] = domain.ClampNonNegative(it.UnitPrice)
		}
		return out
	}

	assigned := decimal.Zero
	for i, it := range items {
		var share decimal.Decimal
		if i == len(items)-1 {
			share = fee.Sub(assigned)
		} else {
			share = domain.TruncateCents(it.UnitPrice.Div(total).Mul(*fee))
			assigned = assigned.Add(share)
		}
		out[it.LineID] = domain.ClampNonNegative(it.UnitPrice.Sub(share))
	}
	return out
}
