package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rgshop/shop-system/internal/model"
	"github.com/rgshop/shop-system/internal/repository"
)

// OrderService управляет ручными переходами жизненного цикла заказа
// и собирает клиентское представление заказа.
type OrderService struct {
	store repository.Store
}

// NewOrderService создаёт сервис заказов поверх указанного хранилища.
func NewOrderService(store repository.Store) *OrderService {
	return &OrderService{store: store}
}

// OrderDetail — полное представление заказа с производной шкалой состояний.
type OrderDetail struct {
	Order    *model.Order
	Items    []model.OrderItem
	Payment  *model.Payment
	Shipment *model.Shipment
	Timeline []model.TimelineEntry
}

// Transition выполняет ручной переход заказа в target. Поддерживаются только
// PACKED и CANCELLED: остальные статусы меняются своими сервисами.
// Изменение статуса, запись аудита и уведомление фиксируются одной транзакцией.
func (s *OrderService) Transition(ctx context.Context, orderID string, target model.OrderStatus, actorID, reason string) (*model.Order, error) {
	var event model.OrderEvent
	switch target {
	case model.OrderStatusPacked:
		event = model.EventPack
	case model.OrderStatusCancelled:
		event = model.EventCancel
	default:
		return nil, fmt.Errorf("%w: unsupported manual status transition %q", ErrBadRequest, target)
	}

	var result *model.Order
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		next, ok := model.NextOrderStatus(current.Status, event)
		if !ok {
			if event == model.EventPack {
				return fmt.Errorf("%w: order must be payment-confirmed to pack", ErrConflict)
			}
			return fmt.Errorf("%w: cannot cancel shipped, delivered or cancelled order", ErrConflict)
		}

		updated, err := tx.UpdateOrderStatus(ctx, orderID, next)
		if err != nil {
			return err
		}

		action := model.AuditActionPack
		if event == model.EventCancel {
			action = model.AuditActionCancel
		}
		if err := tx.AppendAudit(ctx, model.AuditEntry{
			ActorID:  actorID,
			Entity:   model.EntityOrder,
			EntityID: orderID,
			Action:   action,
			Before:   current,
			After:    updated,
		}); err != nil {
			return err
		}

		template := model.TemplateOrderPacked
		payload := map[string]any{"order_number": current.OrderNumber}
		if event == model.EventCancel {
			template = model.TemplateOrderCancelled
			payload["reason"] = reason
		}
		if err := tx.EnqueueNotification(ctx, template, current.ShipPhone, payload); err != nil {
			return err
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetDetail возвращает заказ с позициями, платежом, отправлением и шкалой состояний.
func (s *OrderService) GetDetail(ctx context.Context, orderID string) (*OrderDetail, error) {
	return composeDetail(ctx, s.store, orderID)
}

// List возвращает страницу заказов по фильтру.
func (s *OrderService) List(ctx context.Context, f repository.OrderListFilter) (*repository.OrderPage, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)
	return s.store.ListOrders(ctx, f)
}

func composeDetail(ctx context.Context, store repository.Store, orderID string) (*OrderDetail, error) {
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := store.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	payment, err := store.GetPaymentByOrder(ctx, orderID)
	if err != nil && !errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, err
	}

	shipment, err := store.GetShipmentByOrder(ctx, orderID)
	if err != nil && !errors.Is(err, repository.ErrShipmentNotFound) {
		return nil, err
	}

	return &OrderDetail{
		Order:    order,
		Items:    items,
		Payment:  payment,
		Shipment: shipment,
		Timeline: buildTimeline(order, payment, shipment),
	}, nil
}

// buildTimeline строит шкалу состояний заказа по имеющимся временным меткам.
// Это чистая проекция: порядок точек фиксирован, ничего не хранится.
func buildTimeline(order *model.Order, payment *model.Payment, shipment *model.Shipment) []model.TimelineEntry {
	createdAt := order.CreatedAt
	updatedAt := order.UpdatedAt

	t := []model.TimelineEntry{
		{Code: string(model.OrderStatusPlaced), At: &createdAt},
	}
	if payment != nil && payment.SubmittedAt != nil {
		t = append(t, model.TimelineEntry{Code: string(model.OrderStatusPaymentSubmitted), At: payment.SubmittedAt})
	}
	if payment != nil && payment.VerifiedAt != nil && payment.Status == model.PaymentStatusConfirmed {
		t = append(t, model.TimelineEntry{Code: string(model.OrderStatusPaymentConfirmed), At: payment.VerifiedAt})
	}
	if order.Status == model.OrderStatusPacked {
		t = append(t, model.TimelineEntry{Code: string(model.OrderStatusPacked), At: &updatedAt})
	}
	if shipment != nil && shipment.ShippedAt != nil {
		t = append(t, model.TimelineEntry{Code: string(model.OrderStatusShipped), At: shipment.ShippedAt})
	}
	if shipment != nil && shipment.DeliveredAt != nil {
		t = append(t, model.TimelineEntry{Code: string(model.OrderStatusDelivered), At: shipment.DeliveredAt})
	}
	if order.Status == model.OrderStatusCancelled {
		t = append(t, model.TimelineEntry{Code: string(model.OrderStatusCancelled), At: &updatedAt})
	}
	return t
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
