package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rgshop/shop-system/internal/model"
	"github.com/rgshop/shop-system/internal/repository"
)

// PaymentService выполняет сверку платежей: подтверждение и отклонение
// поданных покупателем подтверждений перевода.
type PaymentService struct {
	store repository.Store
}

// NewPaymentService создаёт сервис сверки платежей поверх указанного хранилища.
func NewPaymentService(store repository.Store) *PaymentService {
	return &PaymentService{store: store}
}

// ConfirmInput — входные данные подтверждения платежа.
type ConfirmInput struct {
	// ReferenceText при непустом значении заменяет сохранённый номер перевода (UTR).
	ReferenceText string
}

// PaymentResult — заказ и платёж после применённого перехода.
type PaymentResult struct {
	Order   *model.Order
	Payment *model.Payment
}

// Confirm подтверждает платёж по заказу: платёж переводится в CONFIRMED,
// заказ — в PAYMENT_CONFIRMED с зеркальным статусом платежа. Обе записи,
// два аудита и уведомление фиксируются одной транзакцией.
func (s *PaymentService) Confirm(ctx context.Context, orderID string, in ConfirmInput, actorID string) (*PaymentResult, error) {
	var result *PaymentResult
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, payment, err := guardForAction(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if payment.Status != model.PaymentStatusSubmitted {
			return fmt.Errorf("%w: only submitted payments can be confirmed", ErrConflict)
		}
		next, ok := model.NextOrderStatus(order.Status, model.EventConfirmPayment)
		if !ok {
			return fmt.Errorf("%w: order must be payment-submitted to confirm", ErrConflict)
		}

		updatedPay, err := tx.ConfirmPayment(ctx, payment.ID, actorID, in.ReferenceText, time.Now())
		if err != nil {
			return err
		}

		updatedOrder, err := tx.UpdateOrderStatuses(ctx, order.ID, next, model.PaymentStatusConfirmed)
		if err != nil {
			return err
		}

		if err := appendPaymentAudit(ctx, tx, actorID, model.AuditActionConfirmPayment,
			payment, updatedPay, order, updatedOrder); err != nil {
			return err
		}

		if err := tx.EnqueueNotification(ctx, model.TemplatePaymentConfirmed, order.ShipPhone,
			map[string]any{"order_number": order.OrderNumber}); err != nil {
			return err
		}

		result = &PaymentResult{Order: updatedOrder, Payment: updatedPay}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Reject отклоняет платёж с указанием причины. Заказ остаётся в
// PAYMENT_SUBMITTED, чтобы покупатель мог подать подтверждение заново:
// отклонение касается платежа и не проверяет статус заказа.
func (s *PaymentService) Reject(ctx context.Context, orderID, reason, actorID string) (*PaymentResult, error) {
	var result *PaymentResult
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, payment, err := guardForAction(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if payment.Status != model.PaymentStatusSubmitted {
			return fmt.Errorf("%w: only submitted payments can be rejected", ErrConflict)
		}

		updatedPay, err := tx.RejectPayment(ctx, payment.ID, reason)
		if err != nil {
			return err
		}

		updatedOrder, err := tx.UpdateOrderStatuses(ctx, order.ID,
			model.OrderStatusPaymentSubmitted, model.PaymentStatusRejected)
		if err != nil {
			return err
		}

		if err := appendPaymentAudit(ctx, tx, actorID, model.AuditActionRejectPayment,
			payment, updatedPay, order, updatedOrder); err != nil {
			return err
		}

		if err := tx.EnqueueNotification(ctx, model.TemplatePaymentRejected, order.ShipPhone,
			map[string]any{"order_number": order.OrderNumber, "reason": reason}); err != nil {
			return err
		}

		result = &PaymentResult{Order: updatedOrder, Payment: updatedPay}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// List возвращает страницу очереди платежей; без фильтра по статусу — только SUBMITTED.
func (s *PaymentService) List(ctx context.Context, f repository.PaymentListFilter) (*repository.PaymentPage, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)
	return s.store.ListPayments(ctx, f)
}

// ListRejectReasons возвращает каталог типовых причин отклонения платежа.
func (s *PaymentService) ListRejectReasons(ctx context.Context) ([]string, error) {
	return s.store.ListRejectReasons(ctx)
}

// guardForAction загружает заказ и его платёж на транзакционном соединении.
// Отсутствующий платёж нарушает инвариант "ровно один платёж на заказ" и
// означает повреждённое ранее состояние.
func guardForAction(ctx context.Context, tx repository.Tx, orderID string) (*model.Order, *model.Payment, error) {
	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	payment, err := tx.GetPaymentByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, nil, fmt.Errorf("%w: payment record missing for order", ErrConflict)
		}
		return nil, nil, err
	}

	return order, payment, nil
}

func appendPaymentAudit(ctx context.Context, tx repository.Tx, actorID, action string,
	beforePay, afterPay *model.Payment, beforeOrder, afterOrder *model.Order) error {
	if err := tx.AppendAudit(ctx, model.AuditEntry{
		ActorID:  actorID,
		Entity:   model.EntityPayment,
		EntityID: beforePay.ID,
		Action:   action,
		Before:   beforePay,
		After:    afterPay,
	}); err != nil {
		return err
	}
	return tx.AppendAudit(ctx, model.AuditEntry{
		ActorID:  actorID,
		Entity:   model.EntityOrder,
		EntityID: beforeOrder.ID,
		Action:   action,
		Before:   beforeOrder,
		After:    afterOrder,
	})
}
