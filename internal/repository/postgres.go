// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/rgshop/shop-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound возвращается, если платёж по заказу отсутствует.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrShipmentNotFound возвращается, если отправление по заказу отсутствует.
	ErrShipmentNotFound = errors.New("shipment not found")
	// ErrNotificationNotFound возвращается, если запись outbox не найдена.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrOrderNumberTaken возвращается при коллизии человекочитаемого номера заказа.
	ErrOrderNumberTaken = errors.New("order number already taken")
)

// Store описывает контракт чтения данных и запуска транзакций.
type Store interface {
	Close() error

	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context, f OrderListFilter) (*OrderPage, error)
	ListOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error)
	GetPaymentByOrder(ctx context.Context, orderID string) (*model.Payment, error)
	ListPayments(ctx context.Context, f PaymentListFilter) (*PaymentPage, error)
	GetShipmentByOrder(ctx context.Context, orderID string) (*model.Shipment, error)

	GetSettings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, s model.Settings) error
	ListRejectReasons(ctx context.Context) ([]string, error)

	FetchPendingNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	MarkNotificationSent(ctx context.Context, id string) error
	MarkNotificationFailed(ctx context.Context, id, lastError string) error

	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx описывает операции, выполняемые на одном транзакционном соединении.
// Все изменения, аудит и записи outbox внутри fn фиксируются или откатываются вместе.
type Tx interface {
	GetOrderForUpdate(ctx context.Context, orderID string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error)
	UpdateOrderStatuses(ctx context.Context, orderID string, status model.OrderStatus, paymentStatus model.PaymentStatus) (*model.Order, error)
	CreateOrder(ctx context.Context, order *model.Order, items []model.OrderItem, payment *model.Payment) error

	GetPaymentByOrder(ctx context.Context, orderID string) (*model.Payment, error)
	SubmitPaymentProof(ctx context.Context, orderID, screenshotURL, referenceText string, at time.Time) (*model.Payment, error)
	ConfirmPayment(ctx context.Context, paymentID, verifiedBy, referenceText string, at time.Time) (*model.Payment, error)
	RejectPayment(ctx context.Context, paymentID, reason string) (*model.Payment, error)

	GetShipmentByOrder(ctx context.Context, orderID string) (*model.Shipment, error)
	UpsertShipment(ctx context.Context, orderID, courierName, awbNumber, trackingURL string, shippedAt time.Time) (*model.Shipment, error)
	SetShipmentDelivered(ctx context.Context, shipmentID string, at time.Time) (*model.Shipment, error)

	AppendAudit(ctx context.Context, entry model.AuditEntry) error
	EnqueueNotification(ctx context.Context, templateKey, toAddress string, payload map[string]any) error
}

// querier объединяет пул и транзакцию pgx для переиспользования запросов.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres предоставляет доступ к хранилищу данных в PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
	// lockOrders включает блокировку строки заказа (SELECT ... FOR UPDATE)
	// перед проверкой охранных условий перехода.
	lockOrders bool
}

var _ Store = (*Postgres)(nil)

// NewPostgres создаёт новое хранилище и инициализирует схему БД через миграции.
func NewPostgres(dsn string, lockOrders bool) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool, lockOrders: lockOrders}

	if err := p.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

func (p *Postgres) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// InTx выполняет fn внутри одной транзакции. Любая ошибка fn или фиксации
// приводит к полному откату без частичных эффектов.
func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx, lockOrders: p.lockOrders}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// pgTx реализует Tx поверх открытой транзакции pgx.
type pgTx struct {
	tx         pgx.Tx
	lockOrders bool
}

var _ Tx = (*pgTx)(nil)
