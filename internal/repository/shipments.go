package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rgshop/shop-system/internal/model"
)

const shipmentColumns = `s.id, s.order_id,
	COALESCE(s.courier_name, ''), COALESCE(s.awb_number, ''), COALESCE(s.tracking_url, ''),
	s.shipped_at, s.delivered_at, s.created_at, s.updated_at`

func scanShipment(row pgx.Row) (*model.Shipment, error) {
	var sh model.Shipment
	err := row.Scan(
		&sh.ID, &sh.OrderID,
		&sh.CourierName, &sh.AWBNumber, &sh.TrackingURL,
		&sh.ShippedAt, &sh.DeliveredAt, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("scan shipment: %w", err)
	}
	return &sh, nil
}

func getShipmentByOrder(ctx context.Context, q querier, orderID string) (*model.Shipment, error) {
	return scanShipment(q.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments s WHERE s.order_id = $1`,
		orderID,
	))
}

// GetShipmentByOrder возвращает отправление по идентификатору заказа.
func (p *Postgres) GetShipmentByOrder(ctx context.Context, orderID string) (*model.Shipment, error) {
	return getShipmentByOrder(ctx, p.pool, orderID)
}

// GetShipmentByOrder возвращает отправление по идентификатору заказа на транзакционном соединении.
func (t *pgTx) GetShipmentByOrder(ctx context.Context, orderID string) (*model.Shipment, error) {
	return getShipmentByOrder(ctx, t.tx, orderID)
}

// UpsertShipment создаёт отправление или обновляет его реквизиты, всегда
// проставляя время отгрузки заново.
func (t *pgTx) UpsertShipment(ctx context.Context, orderID, courierName, awbNumber, trackingURL string, shippedAt time.Time) (*model.Shipment, error) {
	return scanShipment(t.tx.QueryRow(ctx,
		`INSERT INTO shipments AS s (id, order_id, courier_name, awb_number, tracking_url, shipped_at, created_at, updated_at)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (order_id) DO UPDATE
		 SET courier_name = EXCLUDED.courier_name,
		     awb_number = EXCLUDED.awb_number,
		     tracking_url = EXCLUDED.tracking_url,
		     shipped_at = EXCLUDED.shipped_at,
		     updated_at = now()
		 RETURNING `+shipmentColumns,
		orderID, courierName, awbNumber, nullIfEmpty(trackingURL), shippedAt,
	))
}

// SetShipmentDelivered проставляет время доставки отправления.
func (t *pgTx) SetShipmentDelivered(ctx context.Context, shipmentID string, at time.Time) (*model.Shipment, error) {
	return scanShipment(t.tx.QueryRow(ctx,
		`UPDATE shipments s SET delivered_at = $2, updated_at = now() WHERE id = $1
		 RETURNING `+shipmentColumns,
		shipmentID, at,
	))
}
