package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rgshop/shop-system/internal/model"
)

// PaymentListFilter задаёт фильтры и пагинацию очереди платежей.
type PaymentListFilter struct {
	// Statuses пуст — очередь по умолчанию: только SUBMITTED.
	Statuses []model.PaymentStatus
	From     *time.Time
	To       *time.Time
	Query    string
	// Sort: "" — по времени создания по возрастанию, "-created_at" — по убыванию.
	Sort  string
	Page  int
	Limit int
}

// PaymentQueueItem — платёж вместе с кратким снимком заказа для очереди оператора.
type PaymentQueueItem struct {
	Payment     model.Payment
	OrderNumber string
	OrderStatus model.OrderStatus
	ShipName    string
	ShipPhone   string
}

// PaymentPage — страница очереди платежей.
type PaymentPage struct {
	Payments []PaymentQueueItem
	Page     int
	Limit    int
	Total    int
}

const paymentColumns = `p.id, p.order_id, p.upi_vpa, p.qr_payload, p.intent_url,
	p.submitted_at, COALESCE(p.screenshot_url, ''), COALESCE(p.reference_text, ''),
	p.status, p.verified_at, COALESCE(p.verified_by::text, ''), COALESCE(p.rejection_reason, ''),
	p.created_at, p.updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var pm model.Payment
	err := row.Scan(
		&pm.ID, &pm.OrderID, &pm.UpiVPA, &pm.QrPayload, &pm.IntentURL,
		&pm.SubmittedAt, &pm.ScreenshotURL, &pm.ReferenceText,
		&pm.Status, &pm.VerifiedAt, &pm.VerifiedBy, &pm.RejectionReason,
		&pm.CreatedAt, &pm.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &pm, nil
}

func getPaymentByOrder(ctx context.Context, q querier, orderID string) (*model.Payment, error) {
	return scanPayment(q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments p WHERE p.order_id = $1`,
		orderID,
	))
}

// GetPaymentByOrder возвращает платёж по идентификатору заказа.
func (p *Postgres) GetPaymentByOrder(ctx context.Context, orderID string) (*model.Payment, error) {
	return getPaymentByOrder(ctx, p.pool, orderID)
}

// GetPaymentByOrder возвращает платёж по идентификатору заказа на транзакционном соединении.
func (t *pgTx) GetPaymentByOrder(ctx context.Context, orderID string) (*model.Payment, error) {
	return getPaymentByOrder(ctx, t.tx, orderID)
}

// ListPayments возвращает страницу очереди платежей. Без фильтра по статусу
// очередь ограничена платежами в статусе SUBMITTED.
func (p *Postgres) ListPayments(ctx context.Context, f PaymentListFilter) (*PaymentPage, error) {
	var (
		where  []string
		params []any
	)

	if len(f.Statuses) > 0 {
		params = append(params, paymentStatusStrings(f.Statuses))
		where = append(where, "p.status = ANY($"+strconv.Itoa(len(params))+")")
	} else {
		where = append(where, "p.status = '"+string(model.PaymentStatusSubmitted)+"'")
	}
	if f.From != nil {
		params = append(params, *f.From)
		where = append(where, "p.created_at >= $"+strconv.Itoa(len(params)))
	}
	if f.To != nil {
		params = append(params, *f.To)
		where = append(where, "p.created_at < $"+strconv.Itoa(len(params)))
	}
	if f.Query != "" {
		params = append(params, "%"+f.Query+"%")
		ph := "$" + strconv.Itoa(len(params))
		where = append(where,
			"(o.order_number ILIKE "+ph+" OR o.ship_name ILIKE "+ph+
				" OR o.ship_phone ILIKE "+ph+" OR p.reference_text ILIKE "+ph+")")
	}

	whereSQL := "WHERE " + strings.Join(where, " AND ")

	sortSQL := "ORDER BY p.created_at ASC"
	if f.Sort == "-created_at" {
		sortSQL = "ORDER BY p.created_at DESC"
	}

	countSQL := `SELECT COUNT(*) FROM payments p JOIN orders o ON o.id = p.order_id ` + whereSQL

	var total int
	if err := p.pool.QueryRow(ctx, countSQL, params...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	params = append(params, f.Limit, offset)

	listSQL := `SELECT ` + paymentColumns + `,
		o.order_number, o.status, COALESCE(o.ship_name, ''), COALESCE(o.ship_phone, '')
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		` + whereSQL + `
		` + sortSQL + `
		LIMIT $` + strconv.Itoa(len(params)-1) + ` OFFSET $` + strconv.Itoa(len(params))

	rows, err := p.pool.Query(ctx, listSQL, params...)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var items []PaymentQueueItem
	for rows.Next() {
		var it PaymentQueueItem
		pm := &it.Payment
		if err := rows.Scan(
			&pm.ID, &pm.OrderID, &pm.UpiVPA, &pm.QrPayload, &pm.IntentURL,
			&pm.SubmittedAt, &pm.ScreenshotURL, &pm.ReferenceText,
			&pm.Status, &pm.VerifiedAt, &pm.VerifiedBy, &pm.RejectionReason,
			&pm.CreatedAt, &pm.UpdatedAt,
			&it.OrderNumber, &it.OrderStatus, &it.ShipName, &it.ShipPhone,
		); err != nil {
			return nil, fmt.Errorf("scan payment queue item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &PaymentPage{Payments: items, Page: f.Page, Limit: f.Limit, Total: total}, nil
}

// SubmitPaymentProof переводит платёж в SUBMITTED и сохраняет приложенное подтверждение.
func (t *pgTx) SubmitPaymentProof(ctx context.Context, orderID, screenshotURL, referenceText string, at time.Time) (*model.Payment, error) {
	return scanPayment(t.tx.QueryRow(ctx,
		`UPDATE payments p
		 SET status = $2, screenshot_url = $3, reference_text = $4,
		     submitted_at = $5, updated_at = now()
		 WHERE order_id = $1
		 RETURNING `+paymentColumns,
		orderID, string(model.PaymentStatusSubmitted),
		screenshotURL, nullIfEmpty(referenceText), at,
	))
}

// ConfirmPayment переводит платёж в CONFIRMED и фиксирует, кто и когда его проверил.
// Пустой referenceText сохраняет прежнее значение платёжной ссылки.
func (t *pgTx) ConfirmPayment(ctx context.Context, paymentID, verifiedBy, referenceText string, at time.Time) (*model.Payment, error) {
	return scanPayment(t.tx.QueryRow(ctx,
		`UPDATE payments p
		 SET status = $2, verified_at = $3, verified_by = $4,
		     reference_text = COALESCE(NULLIF($5, ''), reference_text),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+paymentColumns,
		paymentID, string(model.PaymentStatusConfirmed), at, verifiedBy, referenceText,
	))
}

// RejectPayment переводит платёж в REJECTED с указанием причины.
func (t *pgTx) RejectPayment(ctx context.Context, paymentID, reason string) (*model.Payment, error) {
	return scanPayment(t.tx.QueryRow(ctx,
		`UPDATE payments p
		 SET status = $2, rejection_reason = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+paymentColumns,
		paymentID, string(model.PaymentStatusRejected), reason,
	))
}
