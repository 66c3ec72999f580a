package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rgshop/shop-system/internal/model"
)

// OrderListFilter задаёт фильтры и пагинацию списка заказов.
type OrderListFilter struct {
	Statuses        []model.OrderStatus
	PaymentStatuses []model.PaymentStatus
	UserID          string
	From            *time.Time
	To              *time.Time
	// Query ищет по номеру заказа, имени и телефону получателя, тексту платёжной ссылки.
	Query string
	// Sort: "" — по времени создания по возрастанию, "-created_at" — по убыванию,
	// "order_number" — по номеру заказа.
	Sort  string
	Page  int
	Limit int
}

// OrderPage — страница списка заказов.
type OrderPage struct {
	Orders []model.Order
	Page   int
	Limit  int
	Total  int
}

const orderColumns = `o.id, o.order_number, o.user_id, o.status,
	o.total_item_paise, o.shipping_paise, o.discount_paise, o.total_payable_paise,
	COALESCE(o.ship_name, ''), COALESCE(o.ship_phone, ''),
	COALESCE(o.ship_line1, ''), COALESCE(o.ship_line2, ''),
	COALESCE(o.ship_city, ''), COALESCE(o.ship_state, ''),
	COALESCE(o.ship_pincode, ''), COALESCE(o.ship_country, ''),
	o.payment_method, o.payment_status, o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status,
		&o.TotalItemPaise, &o.ShippingPaise, &o.DiscountPaise, &o.TotalPayablePaise,
		&o.ShipName, &o.ShipPhone, &o.ShipLine1, &o.ShipLine2,
		&o.ShipCity, &o.ShipState, &o.ShipPincode, &o.ShipCountry,
		&o.PaymentMethod, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

func getOrder(ctx context.Context, q querier, orderID string, forUpdate bool) (*model.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return scanOrder(q.QueryRow(ctx, sql, orderID))
}

// GetOrder возвращает заказ по идентификатору.
func (p *Postgres) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return getOrder(ctx, p.pool, orderID, false)
}

// GetOrderForUpdate возвращает заказ, блокируя его строку до конца транзакции,
// если хранилище настроено на блокировку.
func (t *pgTx) GetOrderForUpdate(ctx context.Context, orderID string) (*model.Order, error) {
	return getOrder(ctx, t.tx, orderID, t.lockOrders)
}

// ListOrders возвращает страницу заказов по фильтру.
func (p *Postgres) ListOrders(ctx context.Context, f OrderListFilter) (*OrderPage, error) {
	var (
		where  []string
		params []any
	)

	if len(f.Statuses) > 0 {
		params = append(params, statusStrings(f.Statuses))
		where = append(where, "o.status = ANY($"+strconv.Itoa(len(params))+")")
	}
	if len(f.PaymentStatuses) > 0 {
		params = append(params, paymentStatusStrings(f.PaymentStatuses))
		where = append(where, "o.payment_status = ANY($"+strconv.Itoa(len(params))+")")
	}
	if f.UserID != "" {
		params = append(params, f.UserID)
		where = append(where, "o.user_id = $"+strconv.Itoa(len(params)))
	}
	if f.From != nil {
		params = append(params, *f.From)
		where = append(where, "o.created_at >= $"+strconv.Itoa(len(params)))
	}
	if f.To != nil {
		params = append(params, *f.To)
		where = append(where, "o.created_at < $"+strconv.Itoa(len(params)))
	}
	if f.Query != "" {
		params = append(params, "%"+f.Query+"%")
		ph := "$" + strconv.Itoa(len(params))
		where = append(where,
			"(o.order_number ILIKE "+ph+" OR o.ship_name ILIKE "+ph+
				" OR o.ship_phone ILIKE "+ph+" OR p.reference_text ILIKE "+ph+")")
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	var sortSQL string
	switch f.Sort {
	case "order_number":
		sortSQL = "ORDER BY o.order_number ASC"
	case "-created_at":
		sortSQL = "ORDER BY o.created_at DESC"
	default:
		sortSQL = "ORDER BY o.created_at ASC"
	}

	countSQL := `SELECT COUNT(*) FROM orders o LEFT JOIN payments p ON p.order_id = o.id ` + whereSQL

	var total int
	if err := p.pool.QueryRow(ctx, countSQL, params...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	params = append(params, f.Limit, offset)

	listSQL := `SELECT ` + orderColumns + `
		FROM orders o
		LEFT JOIN payments p ON p.order_id = o.id
		` + whereSQL + `
		` + sortSQL + `
		LIMIT $` + strconv.Itoa(len(params)-1) + ` OFFSET $` + strconv.Itoa(len(params))

	rows, err := p.pool.Query(ctx, listSQL, params...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var items []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OrderPage{Orders: items, Page: f.Page, Limit: f.Limit, Total: total}, nil
}

// ListOrderItems возвращает позиции заказа в порядке создания.
func (p *Postgres) ListOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, order_id, product_id, COALESCE(variant_id::text, ''),
			title_snapshot, COALESCE(variant_snapshot, ''),
			unit_price_paise, qty, line_total_paise
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.VariantID,
			&it.TitleSnapshot, &it.VariantSnapshot,
			&it.UnitPricePaise, &it.Qty, &it.LineTotalPaise,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// UpdateOrderStatus обновляет статус заказа и возвращает обновлённую строку.
func (t *pgTx) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	return scanOrder(t.tx.QueryRow(ctx,
		`UPDATE orders o SET status = $2, updated_at = now() WHERE id = $1
		 RETURNING `+orderColumns,
		orderID, string(status),
	))
}

// UpdateOrderStatuses обновляет статус заказа и зеркальный статус платежа одним оператором.
func (t *pgTx) UpdateOrderStatuses(ctx context.Context, orderID string, status model.OrderStatus, paymentStatus model.PaymentStatus) (*model.Order, error) {
	return scanOrder(t.tx.QueryRow(ctx,
		`UPDATE orders o SET status = $2, payment_status = $3, updated_at = now() WHERE id = $1
		 RETURNING `+orderColumns,
		orderID, string(status), string(paymentStatus),
	))
}

// CreateOrder вставляет заказ, его позиции и платёж одной транзакцией.
// Метки времени берутся из переданных структур, поэтому ответ сервиса
// совпадает с сохранённой строкой.
func (t *pgTx) CreateOrder(ctx context.Context, order *model.Order, items []model.OrderItem, payment *model.Payment) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO orders (
			id, order_number, user_id, status,
			total_item_paise, shipping_paise, discount_paise, total_payable_paise,
			ship_name, ship_phone, ship_line1, ship_line2,
			ship_city, ship_state, ship_pincode, ship_country,
			payment_method, payment_status, created_at, updated_at
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		order.ID, order.OrderNumber, order.UserID, string(order.Status),
		order.TotalItemPaise, order.ShippingPaise, order.DiscountPaise, order.TotalPayablePaise,
		nullIfEmpty(order.ShipName), nullIfEmpty(order.ShipPhone),
		nullIfEmpty(order.ShipLine1), nullIfEmpty(order.ShipLine2),
		nullIfEmpty(order.ShipCity), nullIfEmpty(order.ShipState),
		nullIfEmpty(order.ShipPincode), nullIfEmpty(order.ShipCountry),
		order.PaymentMethod, string(order.PaymentStatus),
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrOrderNumberTaken, order.OrderNumber)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO order_items (
				id, order_id, product_id, variant_id,
				title_snapshot, variant_snapshot,
				unit_price_paise, qty, line_total_paise, created_at
			 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			it.ID, order.ID, it.ProductID, nullIfEmpty(it.VariantID),
			it.TitleSnapshot, nullIfEmpty(it.VariantSnapshot),
			it.UnitPricePaise, it.Qty, it.LineTotalPaise,
			it.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO payments (
			id, order_id, upi_vpa, qr_payload, intent_url, status, created_at, updated_at
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		payment.ID, order.ID, payment.UpiVPA, payment.QrPayload, payment.IntentURL,
		string(payment.Status), payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func statusStrings(ss []model.OrderStatus) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}

func paymentStatusStrings(ss []model.PaymentStatus) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
