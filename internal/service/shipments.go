package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rgshop/shop-system/internal/model"
	"github.com/rgshop/shop-system/internal/repository"
)

// ShipmentService выполняет отгрузку и доставку заказов.
type ShipmentService struct {
	store repository.Store
}

// NewShipmentService создаёт сервис отправлений поверх указанного хранилища.
func NewShipmentService(store repository.Store) *ShipmentService {
	return &ShipmentService{store: store}
}

// ShipmentInput — реквизиты отправления.
type ShipmentInput struct {
	CourierName string
	AWBNumber   string
	TrackingURL string
}

// ShipmentResult — заказ и отправление после применённого перехода.
type ShipmentResult struct {
	Order    *model.Order
	Shipment *model.Shipment
}

// UpsertShipmentAndShip создаёт или обновляет отправление и переводит заказ
// в SHIPPED. Время отгрузки проставляется заново при каждом успешном вызове.
func (s *ShipmentService) UpsertShipmentAndShip(ctx context.Context, orderID string, in ShipmentInput, actorID string) (*ShipmentResult, error) {
	var result *ShipmentResult
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		next, ok := model.NextOrderStatus(order.Status, model.EventShip)
		if !ok {
			return fmt.Errorf("%w: order must be packed to ship", ErrConflict)
		}

		existing, err := tx.GetShipmentByOrder(ctx, orderID)
		if err != nil && !errors.Is(err, repository.ErrShipmentNotFound) {
			return err
		}

		updatedShipment, err := tx.UpsertShipment(ctx, orderID,
			in.CourierName, in.AWBNumber, in.TrackingURL, time.Now())
		if err != nil {
			return err
		}

		updatedOrder, err := tx.UpdateOrderStatus(ctx, orderID, next)
		if err != nil {
			return err
		}

		action := model.AuditActionCreateShipment
		var before any
		if existing != nil {
			action = model.AuditActionUpdateShipment
			before = existing
		}
		if err := tx.AppendAudit(ctx, model.AuditEntry{
			ActorID:  actorID,
			Entity:   model.EntityShipment,
			EntityID: updatedShipment.ID,
			Action:   action,
			Before:   before,
			After:    updatedShipment,
		}); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, model.AuditEntry{
			ActorID:  actorID,
			Entity:   model.EntityOrder,
			EntityID: orderID,
			Action:   model.AuditActionShip,
			Before:   order,
			After:    updatedOrder,
		}); err != nil {
			return err
		}

		if err := tx.EnqueueNotification(ctx, model.TemplateOrderShipped, order.ShipPhone,
			map[string]any{
				"order_number": order.OrderNumber,
				"tracking_url": updatedShipment.TrackingURL,
			}); err != nil {
			return err
		}

		result = &ShipmentResult{Order: updatedOrder, Shipment: updatedShipment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// MarkDelivered проставляет доставку отправления и переводит заказ в DELIVERED.
func (s *ShipmentService) MarkDelivered(ctx context.Context, orderID, actorID string) (*ShipmentResult, error) {
	var result *ShipmentResult
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		next, ok := model.NextOrderStatus(order.Status, model.EventDeliver)
		if !ok {
			return fmt.Errorf("%w: only shipped orders can be delivered", ErrConflict)
		}

		shipment, err := tx.GetShipmentByOrder(ctx, orderID)
		if err != nil {
			// SHIPPED без строки отправления — повреждённое состояние.
			if errors.Is(err, repository.ErrShipmentNotFound) {
				return fmt.Errorf("%w: shipment record missing", ErrConflict)
			}
			return err
		}

		updatedShipment, err := tx.SetShipmentDelivered(ctx, shipment.ID, time.Now())
		if err != nil {
			return err
		}

		updatedOrder, err := tx.UpdateOrderStatus(ctx, orderID, next)
		if err != nil {
			return err
		}

		if err := tx.AppendAudit(ctx, model.AuditEntry{
			ActorID:  actorID,
			Entity:   model.EntityShipment,
			EntityID: shipment.ID,
			Action:   model.AuditActionDeliver,
			Before:   shipment,
			After:    updatedShipment,
		}); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, model.AuditEntry{
			ActorID:  actorID,
			Entity:   model.EntityOrder,
			EntityID: orderID,
			Action:   model.AuditActionDeliver,
			Before:   order,
			After:    updatedOrder,
		}); err != nil {
			return err
		}

		if err := tx.EnqueueNotification(ctx, model.TemplateOrderDelivered, order.ShipPhone,
			map[string]any{"order_number": order.OrderNumber}); err != nil {
			return err
		}

		result = &ShipmentResult{Order: updatedOrder, Shipment: updatedShipment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
