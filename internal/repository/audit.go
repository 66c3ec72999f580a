package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rgshop/shop-system/internal/model"
)

// AppendAudit добавляет запись журнала аудита на транзакционном соединении вызывающего.
// Запись фиксируется или откатывается вместе с изменением, которое она описывает.
func (t *pgTx) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	before, err := marshalSnapshot(entry.Before)
	if err != nil {
		return fmt.Errorf("marshal audit before: %w", err)
	}
	after, err := marshalSnapshot(entry.After)
	if err != nil {
		return fmt.Errorf("marshal audit after: %w", err)
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO audit_log (id, actor_user_id, entity, entity_id, action, before, after, created_at)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, now())`,
		entry.ActorID, entry.Entity, entry.EntityID, entry.Action, before, after,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

func marshalSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
