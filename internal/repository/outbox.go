package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rgshop/shop-system/internal/model"
)

// EnqueueNotification записывает намерение отправить уведомление в outbox
// на транзакционном соединении вызывающего. Строка outbox никогда не
// вставляется вне бизнес-транзакции.
func (t *pgTx) EnqueueNotification(ctx context.Context, templateKey, toAddress string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO notifications_outbox (id, channel, to_address, template_key, payload, status, created_at, updated_at)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, now(), now())`,
		model.NotificationChannelSMS, toAddress, templateKey, data,
		string(model.NotificationStatusPending),
	)
	if err != nil {
		return fmt.Errorf("insert outbox notification: %w", err)
	}

	return nil
}

// FetchPendingNotifications возвращает пачку неотправленных уведомлений,
// начиная с самых старых. Используется внешним диспетчером доставки.
func (p *Postgres) FetchPendingNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, channel, to_address, template_key, payload, status, COALESCE(last_error, ''), created_at, sent_at
		 FROM notifications_outbox
		 WHERE status = $1
		 ORDER BY created_at
		 LIMIT $2`,
		string(model.NotificationStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var (
			n    model.Notification
			data []byte
		)
		if err := rows.Scan(&n.ID, &n.Channel, &n.ToAddress, &n.TemplateKey, &data,
			&n.Status, &n.LastError, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal notification payload: %w", err)
			}
		}
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationSent помечает уведомление доставленным.
func (p *Postgres) MarkNotificationSent(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE notifications_outbox
		 SET status = $2, sent_at = now(), updated_at = now()
		 WHERE id = $1`,
		id, string(model.NotificationStatusSent),
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkNotificationFailed помечает уведомление недоставленным с текстом последней ошибки.
func (p *Postgres) MarkNotificationFailed(ctx context.Context, id, lastError string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE notifications_outbox
		 SET status = $2, last_error = $3, updated_at = now()
		 WHERE id = $1`,
		id, string(model.NotificationStatusFailed), lastError,
	)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
