package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rgshop/shop-system/internal/model"
	"github.com/rgshop/shop-system/internal/repository"
)

func TestTransition_PackFromConfirmed(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentConfirmed, model.PaymentStatusConfirmed)
	store.seedPayment(orderID, model.PaymentStatusConfirmed)

	svc := NewOrderService(store)

	order, err := svc.Transition(context.Background(), orderID, model.OrderStatusPacked, "owner-1", "")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if order.Status != model.OrderStatusPacked {
		t.Fatalf("status = %q, want PACKED", order.Status)
	}

	if len(store.audits) != 1 {
		t.Fatalf("audits = %d, want 1", len(store.audits))
	}
	if store.audits[0].Action != model.AuditActionPack {
		t.Fatalf("audit action = %q, want PACK", store.audits[0].Action)
	}

	if len(store.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(store.notifications))
	}
	if store.notifications[0].TemplateKey != model.TemplateOrderPacked {
		t.Fatalf("template = %q, want order_packed", store.notifications[0].TemplateKey)
	}
}

func TestTransition_PackRequiresConfirmedPayment(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPlaced, model.PaymentStatusNone)

	svc := NewOrderService(store)

	_, err := svc.Transition(context.Background(), orderID, model.OrderStatusPacked, "owner-1", "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if got := store.orders[orderID].Status; got != model.OrderStatusPlaced {
		t.Fatalf("status changed to %q after failed transition", got)
	}
	if len(store.audits) != 0 || len(store.notifications) != 0 {
		t.Fatalf("failed transition left audits=%d notifications=%d", len(store.audits), len(store.notifications))
	}
}

func TestTransition_CancelCarriesReason(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPlaced, model.PaymentStatusNone)

	svc := NewOrderService(store)

	order, err := svc.Transition(context.Background(), orderID, model.OrderStatusCancelled, "owner-1", "customer request")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if order.Status != model.OrderStatusCancelled {
		t.Fatalf("status = %q, want CANCELLED", order.Status)
	}

	if len(store.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(store.notifications))
	}
	n := store.notifications[0]
	if n.TemplateKey != model.TemplateOrderCancelled {
		t.Fatalf("template = %q", n.TemplateKey)
	}
	if n.Payload["reason"] != "customer request" {
		t.Fatalf("payload reason = %v", n.Payload["reason"])
	}
}

func TestTransition_CancelShippedRejected(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusShipped, model.PaymentStatusConfirmed)

	svc := NewOrderService(store)

	_, err := svc.Transition(context.Background(), orderID, model.OrderStatusCancelled, "owner-1", "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTransition_UnsupportedTarget(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPlaced, model.PaymentStatusNone)

	svc := NewOrderService(store)

	_, err := svc.Transition(context.Background(), orderID, model.OrderStatusShipped, "owner-1", "")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestTransition_OrderNotFound(t *testing.T) {
	store := newMemStore()
	svc := NewOrderService(store)

	_, err := svc.Transition(context.Background(), "missing", model.OrderStatusPacked, "owner-1", "")
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestTransition_RolledBackOnNotificationFailure(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPaymentConfirmed, model.PaymentStatusConfirmed)
	store.failEnqueue = errors.New("outbox insert failed")

	svc := NewOrderService(store)

	_, err := svc.Transition(context.Background(), orderID, model.OrderStatusPacked, "owner-1", "")
	if err == nil {
		t.Fatalf("expected error")
	}

	if got := store.orders[orderID].Status; got != model.OrderStatusPaymentConfirmed {
		t.Fatalf("status = %q, want PAYMENT_CONFIRMED after rollback", got)
	}
	if len(store.audits) != 0 {
		t.Fatalf("audits = %d after rollback, want 0", len(store.audits))
	}
}

func TestGetDetail_ToleratesMissingPaymentAndShipment(t *testing.T) {
	store := newMemStore()
	orderID := store.seedOrder(model.OrderStatusPlaced, model.PaymentStatusNone)

	svc := NewOrderService(store)

	detail, err := svc.GetDetail(context.Background(), orderID)
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if detail.Payment != nil || detail.Shipment != nil {
		t.Fatalf("payment=%v shipment=%v, want nil", detail.Payment, detail.Shipment)
	}
	if len(detail.Timeline) != 1 || detail.Timeline[0].Code != string(model.OrderStatusPlaced) {
		t.Fatalf("timeline = %+v", detail.Timeline)
	}
}

func TestBuildTimeline_FullLifecycle(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	submitted := base.Add(5 * time.Minute)
	verified := base.Add(10 * time.Minute)
	shipped := base.Add(20 * time.Minute)
	delivered := base.Add(40 * time.Minute)

	order := &model.Order{
		Status:    model.OrderStatusDelivered,
		CreatedAt: base,
		UpdatedAt: delivered,
	}
	payment := &model.Payment{
		Status:      model.PaymentStatusConfirmed,
		SubmittedAt: &submitted,
		VerifiedAt:  &verified,
	}
	shipment := &model.Shipment{
		ShippedAt:   &shipped,
		DeliveredAt: &delivered,
	}

	timeline := buildTimeline(order, payment, shipment)

	want := []string{"PLACED", "PAYMENT_SUBMITTED", "PAYMENT_CONFIRMED", "SHIPPED", "DELIVERED"}
	if len(timeline) != len(want) {
		t.Fatalf("timeline length = %d, want %d: %+v", len(timeline), len(want), timeline)
	}
	for i, code := range want {
		if timeline[i].Code != code {
			t.Fatalf("timeline[%d] = %q, want %q", i, timeline[i].Code, code)
		}
	}
}

func TestBuildTimeline_RejectedPaymentHidesConfirmation(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	submitted := base.Add(5 * time.Minute)
	verified := base.Add(10 * time.Minute)

	order := &model.Order{
		Status:    model.OrderStatusPaymentSubmitted,
		CreatedAt: base,
		UpdatedAt: verified,
	}
	payment := &model.Payment{
		Status:      model.PaymentStatusRejected,
		SubmittedAt: &submitted,
		VerifiedAt:  &verified,
	}

	timeline := buildTimeline(order, payment, nil)

	for _, entry := range timeline {
		if entry.Code == string(model.OrderStatusPaymentConfirmed) {
			t.Fatalf("rejected payment must not produce a confirmation point: %+v", timeline)
		}
	}
}

func TestList_NormalizesPagination(t *testing.T) {
	store := newMemStore()
	store.seedOrder(model.OrderStatusPlaced, model.PaymentStatusNone)

	svc := NewOrderService(store)

	page, err := svc.List(context.Background(), repository.OrderListFilter{Page: 0, Limit: 1000})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Page != 1 {
		t.Fatalf("page = %d, want 1", page.Page)
	}
	if page.Limit != 100 {
		t.Fatalf("limit = %d, want 100", page.Limit)
	}
}
