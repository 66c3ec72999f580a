package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rgshop/shop-system/internal/model"
	"github.com/rgshop/shop-system/internal/repository"
)

func TestConfirm_Success(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentSubmitted, model.PaymentStatusSubmitted)
	store.seedPayment(orderID, model.PaymentStatusSubmitted)

	svc := NewPaymentService(store)

	result, err := svc.Confirm(context.Background(), orderID, ConfirmInput{}, "owner-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if result.Order.Status != model.OrderStatusPaymentConfirmed {
		t.Fatalf("order status = %q, want PAYMENT_CONFIRMED", result.Order.Status)
	}
	if result.Order.PaymentStatus != model.PaymentStatusConfirmed {
		t.Fatalf("order payment status = %q, want CONFIRMED", result.Order.PaymentStatus)
	}
	if result.Payment.Status != model.PaymentStatusConfirmed {
		t.Fatalf("payment status = %q, want CONFIRMED", result.Payment.Status)
	}
	if result.Payment.VerifiedBy != "owner-1" {
		t.Fatalf("verified by = %q, want owner-1", result.Payment.VerifiedBy)
	}
	if result.Payment.VerifiedAt == nil {
		t.Fatalf("verified at is nil")
	}

	if len(store.audits) != 2 {
		t.Fatalf("audits = %d, want 2 (payment + order)", len(store.audits))
	}
	for _, a := range store.audits {
		if a.Action != model.AuditActionConfirmPayment {
			t.Fatalf("audit action = %q, want CONFIRM_PAYMENT", a.Action)
		}
	}

	if len(store.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(store.notifications))
	}
	if store.notifications[0].TemplateKey != model.TemplatePaymentConfirmed {
		t.Fatalf("template = %q", store.notifications[0].TemplateKey)
	}
}

func TestConfirm_TwiceConflict(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentSubmitted, model.PaymentStatusSubmitted)
	store.seedPayment(orderID, model.PaymentStatusSubmitted)

	svc := NewPaymentService(store)

	if _, err := svc.Confirm(context.Background(), orderID, ConfirmInput{}, "owner-1"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	_, err := svc.Confirm(context.Background(), orderID, ConfirmInput{}, "owner-1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on double confirm, got %v", err)
	}

	// Состояние после отказа не должно измениться
	if len(store.audits) != 2 || len(store.notifications) != 1 {
		t.Fatalf("double confirm touched state: audits=%d notifications=%d", len(store.audits), len(store.notifications))
	}
}

func TestConfirm_ReferenceTextOverride(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentSubmitted, model.PaymentStatusSubmitted)
	store.seedPayment(orderID, model.PaymentStatusSubmitted)

	svc := NewPaymentService(store)

	result, err := svc.Confirm(context.Background(), orderID, ConfirmInput{ReferenceText: "UTR9999"}, "owner-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Payment.ReferenceText != "UTR9999" {
		t.Fatalf("reference = %q, want UTR9999", result.Payment.ReferenceText)
	}
}

func TestConfirm_EmptyReferenceKeepsSubmittedOne(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentSubmitted, model.PaymentStatusSubmitted)
	store.seedPayment(orderID, model.PaymentStatusSubmitted)

	svc := NewPaymentService(store)

	result, err := svc.Confirm(context.Background(), orderID, ConfirmInput{}, "owner-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Payment.ReferenceText != "UTR0001" {
		t.Fatalf("reference = %q, want UTR0001 preserved", result.Payment.ReferenceText)
	}
}

func TestConfirm_MissingPaymentRecord(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentSubmitted, model.PaymentStatusSubmitted)

	svc := NewPaymentService(store)

	_, err := svc.Confirm(context.Background(), orderID, ConfirmInput{}, "owner-1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for missing payment, got %v", err)
	}
}

func TestConfirm_RolledBackOnAuditFailure(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentSubmitted, model.PaymentStatusSubmitted)
	store.seedPayment(orderID, model.PaymentStatusSubmitted)
	store.failAudit = errors.New("audit insert failed")

	svc := NewPaymentService(store)

	_, err := svc.Confirm(context.Background(), orderID, ConfirmInput{}, "owner-1")
	if err == nil {
		t.Fatalf("expected error")
	}

	if got := store.orders[orderID].Status; got != model.OrderStatusPaymentSubmitted {
		t.Fatalf("order status = %q after rollback", got)
	}
	if got := store.payments[orderID].Status; got != model.PaymentStatusSubmitted {
		t.Fatalf("payment status = %q after rollback", got)
	}
	if len(store.notifications) != 0 {
		t.Fatalf("notifications = %d after rollback, want 0", len(store.notifications))
	}
}

func TestReject_KeepsOrderSubmitted(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentSubmitted, model.PaymentStatusSubmitted)
	store.seedPayment(orderID, model.PaymentStatusSubmitted)

	svc := NewPaymentService(store)

	result, err := svc.Reject(context.Background(), orderID, "Amount mismatch", "owner-1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}

	if result.Order.Status != model.OrderStatusPaymentSubmitted {
		t.Fatalf("order status = %q, want PAYMENT_SUBMITTED", result.Order.Status)
	}
	if result.Order.PaymentStatus != model.PaymentStatusRejected {
		t.Fatalf("order payment status = %q, want REJECTED", result.Order.PaymentStatus)
	}
	if result.Payment.Status != model.PaymentStatusRejected {
		t.Fatalf("payment status = %q, want REJECTED", result.Payment.Status)
	}
	if result.Payment.RejectionReason != "Amount mismatch" {
		t.Fatalf("rejection reason = %q", result.Payment.RejectionReason)
	}

	if len(store.audits) != 2 {
		t.Fatalf("audits = %d, want 2", len(store.audits))
	}
	if len(store.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(store.notifications))
	}
	n := store.notifications[0]
	if n.TemplateKey != model.TemplatePaymentRejected {
		t.Fatalf("template = %q", n.TemplateKey)
	}
	if n.Payload["reason"] != "Amount mismatch" {
		t.Fatalf("payload reason = %v", n.Payload["reason"])
	}
}

func TestReject_OnlySubmittedPayments(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentConfirmed, model.PaymentStatusConfirmed)
	store.seedPayment(orderID, model.PaymentStatusConfirmed)

	svc := NewPaymentService(store)

	_, err := svc.Reject(context.Background(), orderID, "Duplicate payment", "owner-1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestList_DefaultsToSubmittedQueue(t *testing.T) {
	store := newMemStore()
	submittedID := store.seedOrder(model.OrderStatusPaymentSubmitted, model.PaymentStatusSubmitted)
	store.seedPayment(submittedID, model.PaymentStatusSubmitted)
	confirmedID := store.seedOrder(model.OrderStatusPaymentConfirmed, model.PaymentStatusConfirmed)
	store.seedPayment(confirmedID, model.PaymentStatusConfirmed)

	svc := NewPaymentService(store)

	page, err := svc.List(context.Background(), repository.PaymentListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("total = %d, want only the submitted payment", page.Total)
	}
	if page.Payments[0].Payment.Status != model.PaymentStatusSubmitted {
		t.Fatalf("queue item status = %q", page.Payments[0].Payment.Status)
	}
}

func TestListRejectReasons_PassThrough(t *testing.T) {
	store := newMemStore()
	store.reasons = []string{"Incorrect UPI reference", "Amount mismatch"}

	svc := NewPaymentService(store)

	reasons, err := svc.ListRejectReasons(context.Background())
	if err != nil {
		t.Fatalf("list reject reasons: %v", err)
	}
	if len(reasons) != 2 {
		t.Fatalf("reasons = %v", reasons)
	}
}
