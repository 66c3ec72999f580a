package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rgshop/shop-system/internal/model"
)

// GetSettings возвращает платёжные реквизиты и контакты магазина.
// До настройки владельцем реквизиты пусты.
func (p *Postgres) GetSettings(ctx context.Context) (*model.Settings, error) {
	var s model.Settings
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(business_name, ''), COALESCE(upi_vpa, ''),
		        COALESCE(whatsapp_number, ''), COALESCE(support_email, '')
		 FROM app_settings
		 WHERE id = 'singleton'`,
	).Scan(&s.BusinessName, &s.UpiVPA, &s.WhatsappNumber, &s.SupportEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.Settings{}, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

// UpdateSettings сохраняет платёжные реквизиты и контакты магазина.
func (p *Postgres) UpdateSettings(ctx context.Context, s model.Settings) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO app_settings (id, business_name, upi_vpa, whatsapp_number, support_email)
		 VALUES ('singleton', $1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET business_name = EXCLUDED.business_name,
		     upi_vpa = EXCLUDED.upi_vpa,
		     whatsapp_number = EXCLUDED.whatsapp_number,
		     support_email = EXCLUDED.support_email`,
		nullIfEmpty(s.BusinessName), nullIfEmpty(s.UpiVPA),
		nullIfEmpty(s.WhatsappNumber), nullIfEmpty(s.SupportEmail),
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// ListRejectReasons возвращает каталог типовых причин отклонения платежа.
func (p *Postgres) ListRejectReasons(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT reason FROM payment_reject_reasons ORDER BY reason`,
	)
	if err != nil {
		return nil, fmt.Errorf("select reject reasons: %w", err)
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var reason string
		if err := rows.Scan(&reason); err != nil {
			return nil, fmt.Errorf("scan reject reason: %w", err)
		}
		res = append(res, reason)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
