package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rgshop/shop-system/internal/model"
)

// Outbox определяет операции outbox-хранилища, нужные диспетчеру.
type Outbox interface {
	FetchPendingNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	MarkNotificationSent(ctx context.Context, id string) error
	MarkNotificationFailed(ctx context.Context, id, lastError string) error
}

// Sender определяет контракт доставки одного уведомления.
type Sender interface {
	Send(ctx context.Context, n model.Notification) error
}

// Dispatcher периодически вычитывает PENDING-уведомления из outbox
// и отправляет их в шлюз сообщений.
type Dispatcher struct {
	outbox    Outbox
	sender    Sender
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewDispatcher создаёт диспетчер уведомлений.
func NewDispatcher(outbox Outbox, sender Sender, logger *zap.Logger, interval time.Duration, batchSize int) *Dispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		outbox:    outbox,
		sender:    sender,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run крутит цикл доставки до отмены контекста.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.processBatch(ctx)
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context) {
	notifications, err := d.outbox.FetchPendingNotifications(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("fetch pending notifications error", zap.Error(err))
		return
	}

	for _, n := range notifications {
		if ctx.Err() != nil {
			return
		}

		if err := d.sender.Send(ctx, n); err != nil {
			d.logger.Warn("notification send error",
				zap.String("notificationID", n.ID),
				zap.String("template", n.TemplateKey),
				zap.Error(err))
			if markErr := d.outbox.MarkNotificationFailed(ctx, n.ID, err.Error()); markErr != nil {
				d.logger.Error("mark notification failed error",
					zap.String("notificationID", n.ID), zap.Error(markErr))
			}
			continue
		}

		if err := d.outbox.MarkNotificationSent(ctx, n.ID); err != nil {
			d.logger.Error("mark notification sent error",
				zap.String("notificationID", n.ID), zap.Error(err))
		}
	}
}
