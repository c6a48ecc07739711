package service

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dafibh/eventcore/internal/domain"
	"github.com/dafibh/eventcore/internal/testutil"
)

func newTestLedger(t *testing.T, orderID string, items ...domain.TransactionItem) (*LedgerService, *domain.Transaction) {
	t.Helper()
	repo := testutil.NewMockLedgerRepository()
	s := NewLedgerService(repo)
	tx, err := s.CreatePreliminary(CreatePreliminaryInput{
		OrderID: orderID,
		PayerUID: "uid-1",
		InstanceID: "inst-1",
		BlueprintID: "bp-1",
		Currency: "USD",
		Items: items,
	})
	if err != nil {
		t.Fatalf("CreatePreliminary: %v", err)
	}
	return s, tx
}

func TestLedgerService_MarkCaptured_IsIdempotent(t *testing.T) {
	s, _ := newTestLedger(t, "order-1", domain.TransactionItem{LineID: "line-1", PersonID: "self"})

	first, err := s.MarkCaptured(MarkCapturedInput{OrderID: "order-1", CaptureID: "cap-1"})
	if err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if first.Status != domain.TransactionStatusCaptured {
		t.Fatalf("got status %s, want captured", first.Status)
	}

	second, err := s.MarkCaptured(MarkCapturedInput{OrderID: "order-1", CaptureID: "cap-1"})
	if err != nil {
		t.Fatalf("replay capture: %v", err)
	}
	if second.Items[0].CaptureID != "cap-1" {
		t.Errorf("capture id should be unchanged on replay: got %s", second.Items[0].CaptureID)
	}
}

func TestLedgerService_MarkCaptured_DifferentCaptureIDReapplies(t *testing.T) {
	s, _ := newTestLedger(t, "order-2", domain.TransactionItem{LineID: "line-1", PersonID: "self"})

	if _, err := s.MarkCaptured(MarkCapturedInput{OrderID: "order-2", CaptureID: "cap-1"}); err != nil {
		t.Fatalf("first capture: %v", err)
	}
	got, err := s.MarkCaptured(MarkCapturedInput{OrderID: "order-2", CaptureID: "cap-2"})
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	if got.Items[0].CaptureID != "cap-2" {
		t.Errorf("got %s, want cap-2", got.Items[0].CaptureID)
	}
}

func TestLedgerService_AppendRefund_RejectsUncapturedLine(t *testing.T) {
	s, _ := newTestLedger(t, "order-3", domain.TransactionItem{LineID: "line-1", PersonID: "self", UnitPrice: decimal.NewFromInt(20)})

	_, err := s.AppendRefund(AppendRefundInput{OrderID: "order-3", LineID: "line-1", RefundID: "r1", Amount: decimal.NewFromInt(5)})
	if err == nil {
		t.Fatal("expected error refunding an uncaptured line")
	}
}

func TestLedgerService_AppendRefund_DuplicateRefundIDIsNoOp(t *testing.T) {
	s, _ := newTestLedger(t, "order-4", domain.TransactionItem{LineID: "line-1", PersonID: "self", UnitPrice: decimal.NewFromInt(20)})
	if _, err := s.MarkCaptured(MarkCapturedInput{OrderID: "order-4", CaptureID: "cap-1"}); err != nil {
		t.Fatalf("capture: %v", err)
	}

	amount := decimal.NewFromInt(5)
	first, err := s.AppendRefund(AppendRefundInput{OrderID: "order-4", LineID: "line-1", RefundID: "r1", Amount: amount})
	if err != nil {
		t.Fatalf("first refund: %v", err)
	}
	item, _ := first.ItemByLineID("line-1")
	if !item.RefundedTotal.Equal(amount) {
		t.Fatalf("got refunded_total %s, want %s", item.RefundedTotal, amount)
	}

	second, err := s.AppendRefund(AppendRefundInput{OrderID: "order-4", LineID: "line-1", RefundID: "r1", Amount: amount})
	if err != nil {
		t.Fatalf("duplicate refund: %v", err)
	}
	item2, _ := second.ItemByLineID("line-1")
	if !item2.RefundedTotal.Equal(amount) {
		t.Errorf("duplicate refund_id must not double-apply: got %s, want %s", item2.RefundedTotal, amount)
	}
	if len(item2.Refunds) != 1 {
		t.Errorf("expected exactly one recorded refund, got %d", len(item2.Refunds))
	}
}

func TestLedgerService_AppendRefund_FullyRefundedDrivesStatus(t *testing.T) {
	s, _ := newTestLedger(t, "order-5",
		domain.TransactionItem{LineID: "line-1", PersonID: "self", UnitPrice: decimal.NewFromInt(20)},
		domain.TransactionItem{LineID: "line-2", PersonID: "child-1", UnitPrice: decimal.NewFromInt(20)},
	)
	if _, err := s.MarkCaptured(MarkCapturedInput{OrderID: "order-5", CaptureID: "cap-1"}); err != nil {
		t.Fatalf("capture: %v", err)
	}

	if _, err := s.AppendRefund(AppendRefundInput{OrderID: "order-5", LineID: "line-1", RefundID: "r1", Amount: decimal.NewFromInt(20)}); err != nil {
		t.Fatalf("refund line-1: %v", err)
	}
	mid, err := s.GetByOrderID("order-5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if mid.Status != domain.TransactionStatusPartiallyRefunded {
		t.Errorf("got status %s, want partially_refunded", mid.Status)
	}

	final, err := s.AppendRefund(AppendRefundInput{OrderID: "order-5", LineID: "line-2", RefundID: "r2", Amount: decimal.NewFromInt(20)})
	if err != nil {
		t.Fatalf("refund line-2: %v", err)
	}
	if final.Status != domain.TransactionStatusFullyRefunded {
		t.Errorf("got status %s, want fully_refunded", final.Status)
	}
}
