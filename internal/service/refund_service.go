package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dafibh/eventcore/internal/domain"
	"github.com/dafibh/eventcore/internal/provider/paypal"
)

// RefundService implements the Refund Orchestrator (C8): deadline
// enforcement for user-initiated removals, admin-initiated bulk/per-line
// refunds, and the event-deletion refund pass.
type RefundService struct {
	ledger *LedgerService
	provider *paypal.Client
	instances domain.InstanceRepository
}

func NewRefundService(ledger *LedgerService, provider *paypal.Client, instances domain.InstanceRepository) *RefundService {
	return &RefundService{ledger: ledger, provider: provider, instances: instances}
}

// ProcessRefundsForRemovals implements _process_refunds_for_removals.
// It first checks every eligible removed line against the automatic refund
// deadline; a single violation fails the whole batch before any provider
// call is made, so the caller's registration change can be rolled back
// cleanly.
func (s *RefundService) ProcessRefundsForRemovals(ctx context.Context, instanceID string, eff domain.EffectiveEvent, byUID string, oldDetails domain.RegistrationDetails, removals []string, now time.Time) error {
	type eligibleLine struct {
		personID string
		pd *domain.PaymentDetails
	}
	var eligible []eligibleLine

	for _, person := range removals {
		pd, ok := oldDetails.PaymentDetailsFor(person)
		if !ok || pd.Type != domain.PaymentTypePayPal || !pd.PaymentComplete {
			continue
		}
		if eff.AutomaticRefundDeadline != nil && now.After(*eff.AutomaticRefundDeadline) && !pd.AutomaticRefundEligibility {
			return domain.ErrRefundDeadline
		}
		eligible = append(eligible, eligibleLine{personID: person, pd: pd})
	}

	for _, el := range eligible {
		t, err := s.ledger.GetByOrderID(el.pd.OrderID)
		if err != nil {
			return err
		}
		item, ok := t.ItemByLineID(el.pd.LineID)
		if !ok {
			return domain.WrapError(domain.KindLedgerInconsistent, "refund against missing line", domain.ErrLineNotFound)
		}
		if item.CaptureID == "" {
			return domain.NewError(domain.KindLedgerInconsistent, "refund against uncaptured line")
		}

		remaining := decimal.Min(el.pd.RemainingRefundable(), item.RemainingAgainstUnitPrice())
		if !remaining.IsPositive() {
			continue
		}

		if err := s.refundLine(ctx, t, item, remaining, byUID, "user"); err != nil {
			return err
		}
		s.bestEffortMarkRefunded(instanceID, byUID, el.personID, remaining)
	}
	return nil
}

// bestEffortMarkRefunded increments amount_refunded on the registration's
// PaymentDetails line to mirror the ledger. The ledger remains the source
// of truth; a failure here is swallowed.
func (s *RefundService) bestEffortMarkRefunded(instanceID, registrantUID, personID string, amount decimal.Decimal) {
	inst, err := s.instances.GetByID(instanceID)
	if err != nil || inst == nil {
		return
	}
	reg, ok := inst.RegistrationDetails[registrantUID]
	if !ok {
		return
	}
	pd, ok := reg.PaymentDetailsFor(personID)
	if !ok {
		return
	}
	pd.AmountRefunded = pd.AmountRefunded.Add(amount)
	inst.RegistrationDetails[registrantUID] = reg
	_, _ = s.instances.Update(inst)
}

// refundLine calls the provider for a single line and appends the result to
// the ledger, using the stable-within-one-refund request id
func (s *RefundService) refundLine(ctx context.Context, t *domain.Transaction, item *domain.TransactionItem, amount decimal.Decimal, byUID, source string) error {
	nonce := uuid.NewString()
	requestID := fmt.Sprintf("refund:%s:%s:%s", t.OrderID, item.LineID, nonce)

	resp, err := s.provider.RefundCapture(ctx, item.CaptureID, paypal.Money{CurrencyCode: t.Currency, Value: amount.StringFixed(2)}, requestID)
	if err != nil {
		return err
	}

	_, err = s.ledger.AppendRefund(AppendRefundInput{
			OrderID: t.OrderID,
			LineID: item.LineID,
			RefundID: resp.ID,
			Amount: amount,
			Reason: source + "-initiated refund",
			ByUID: byUID,
			Source: source,
	})
	return err
}

// AdminRefundRequest is the admin-initiated refund input: either a
// uniform amount per captured line, or a per-line amount map where nil
// means "full remaining".
type AdminRefundRequest struct {
	OrderID string
	ByUID string
	RefundAll bool
	RefundAllCap *decimal.Decimal
	PerLineAmount map[string]*decimal.Decimal
}

// AdminRefundEventTransaction processes an admin-initiated refund. The
// admin path bounds each refund by unit_price - refunded_total (not the
// fee-adjusted refundable amount), a deliberate override of the automatic
// refund ceiling that this rewrite preserves rather than corrects.
func (s *RefundService) AdminRefundEventTransaction(ctx context.Context, req AdminRefundRequest) (*domain.Transaction, error) {
	t, err := s.ledger.GetByOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}

	type selected struct {
		lineID string
		amount decimal.Decimal
	}
	var lines []selected

	if req.RefundAll {
		for _, it := range t.Items {
			if it.CaptureID == "" {
				continue
			}
			amount := it.RemainingAgainstUnitPrice()
			if req.RefundAllCap != nil && req.RefundAllCap.LessThan(amount) {
				amount = *req.RefundAllCap
			}
			if amount.IsPositive() {
				lines = append(lines, selected{lineID: it.LineID, amount: amount})
			}
		}
	} else {
		for lineID, amountPtr := range req.PerLineAmount {
			item, ok := t.ItemByLineID(lineID)
			if !ok {
				return nil, domain.WrapError(domain.KindLedgerInconsistent, "refund against missing line", domain.ErrLineNotFound)
			}
			remaining := item.RemainingAgainstUnitPrice()
			amount := remaining
			if amountPtr != nil {
				amount = *amountPtr
			}
			if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(remaining) {
				return nil, domain.NewError(domain.KindValidationFailed, "refund amount out of bounds for line "+lineID)
			}
			lines = append(lines, selected{lineID: lineID, amount: amount})
		}
	}

	for _, l := range lines {
		item, ok := t.ItemByLineID(l.lineID)
		if !ok {
			return nil, domain.WrapError(domain.KindLedgerInconsistent, "refund against missing line", domain.ErrLineNotFound)
		}
		if err := s.refundLine(ctx, t, item, l.amount, req.ByUID, "admin"); err != nil {
			return nil, err
		}
		s.bestEffortMarkRefunded(t.InstanceID, t.PayerUID, item.PersonID, l.amount)
		t, err = s.ledger.GetByOrderID(req.OrderID)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// RefundUpcomingForDeletion runs the event-deletion refund pass: every
// upcoming instance's captured paypal lines are refunded in full, with no
// deadline enforcement, before the blueprint is deleted.
func (s *RefundService) RefundUpcomingForDeletion(bp *domain.EventBlueprint, instances []*domain.EventInstance, adminUID string, now time.Time) error {
	for _, inst := range instances {
		if inst.TargetDate.Before(now) {
			continue
		}
		for _, reg := range inst.RegistrationDetails {
			for _, pd := range allPaymentDetails(reg) {
				if pd.Type != domain.PaymentTypePayPal || !pd.PaymentComplete {
					continue
				}
				t, err := s.ledger.GetByOrderID(pd.OrderID)
				if err != nil {
					return err
				}
				item, ok := t.ItemByLineID(pd.LineID)
				if !ok || item.CaptureID == "" {
					continue
				}
				remaining := item.RemainingAgainstUnitPrice()
				if !remaining.IsPositive() {
					continue
				}
				if err := s.refundLine(context.Background(), t, item, remaining, adminUID, "event-deletion"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func allPaymentDetails(reg domain.RegistrationDetails) []*domain.PaymentDetails {
	var out []*domain.PaymentDetails
	if reg.SelfPaymentDetails != nil {
		out = append(out, reg.SelfPaymentDetails)
	}
	for _, pd := range reg.FamilyPaymentDetails {
		out = append(out, pd)
	}
	return out
}

// SnapshotService writes the deleted-event JSON snapshot required before
// instance deletion can proceed.
type SnapshotService struct {
	dir string
}

func NewSnapshotService(dir string) *SnapshotService {
	return &SnapshotService{dir: dir}
}

type deletionSnapshot struct {
	SnapshotTime string `json:"snapshot_time"`
	EventID string `json:"event_id"`
	Event *domain.EventBlueprint `json:"event"`
	Instances []*domain.EventInstance `json:"instances"`
}

// WriteDeletionSnapshot writes the snapshot document before the caller
// deletes any instance. Deletion must abort if this returns an error.
func (s *SnapshotService) WriteDeletionSnapshot(bp *domain.EventBlueprint, instances []*domain.EventInstance, now time.Time) error {
	snap := deletionSnapshot{
		SnapshotTime: now.UTC().Format(time.RFC3339),
		EventID: bp.ID,
		Event: bp,
		Instances: instances,
	}
	payload, err := json.MarshalIndent(snap, "", " ")
	if err != nil {
		return err
	}
	return writeSnapshotFile(s.dir, bp.ID, now, payload)
}

// writeSnapshotFile persists a deletion snapshot under dir, named by
// blueprint id and deletion time so repeated deletions never collide.
func writeSnapshotFile(dir, blueprintID string, now time.Time, payload []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%d.json", blueprintID, now.UTC().UnixNano())
	return os.WriteFile(filepath.Join(dir, name), payload, 0o644)
}
