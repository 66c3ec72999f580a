// Package model содержит доменные сущности магазина.
package model

import "time"

// Order описывает заказ покупателя со снимком адреса доставки и суммами в пайсах.
type Order struct {
	ID          string
	OrderNumber string
	UserID      string
	Status      OrderStatus

	TotalItemPaise    int64
	ShippingPaise     int64
	DiscountPaise     int64
	TotalPayablePaise int64

	ShipName    string
	ShipPhone   string
	ShipLine1   string
	ShipLine2   string
	ShipCity    string
	ShipState   string
	ShipPincode string
	ShipCountry string

	PaymentMethod string
	PaymentStatus PaymentStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem описывает позицию заказа. Снимок названия и цены неизменен после создания.
type OrderItem struct {
	ID              string
	OrderID         string
	ProductID       string
	VariantID       string
	TitleSnapshot   string
	VariantSnapshot string
	UnitPricePaise  int64
	Qty             int
	LineTotalPaise  int64
	CreatedAt       time.Time
}

// Payment описывает платёж по заказу (ровно один на заказ).
type Payment struct {
	ID      string
	OrderID string

	UpiVPA    string
	QrPayload string
	IntentURL string

	SubmittedAt   *time.Time
	ScreenshotURL string
	ReferenceText string

	Status          PaymentStatus
	VerifiedAt      *time.Time
	VerifiedBy      string
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Shipment описывает отправление по заказу (не более одного на заказ).
type Shipment struct {
	ID          string
	OrderID     string
	CourierName string
	AWBNumber   string
	TrackingURL string
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditEntry описывает неизменяемую запись журнала аудита со снимками до и после изменения.
type AuditEntry struct {
	ActorID  string
	Entity   string
	EntityID string
	Action   string
	Before   any
	After    any
}

// Действия, фиксируемые в журнале аудита.
const (
	AuditActionCreate         = "CREATE"
	AuditActionSubmitProof    = "SUBMIT_PROOF"
	AuditActionConfirmPayment = "CONFIRM_PAYMENT"
	AuditActionRejectPayment  = "REJECT_PAYMENT"
	AuditActionPack           = "PACK"
	AuditActionCancel         = "CANCEL"
	AuditActionCreateShipment = "CREATE_SHIPMENT"
	AuditActionUpdateShipment = "UPDATE_SHIPMENT"
	AuditActionShip           = "SHIP"
	AuditActionDeliver        = "DELIVER"
)

// Типы сущностей в журнале аудита.
const (
	EntityOrder    = "order"
	EntityPayment  = "payment"
	EntityShipment = "shipment"
)

// NotificationStatus описывает состояние доставки уведомления из outbox.
type NotificationStatus string

// Статусы уведомлений.
const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// Ключи шаблонов уведомлений.
const (
	TemplateOrderPacked      = "order_packed"
	TemplateOrderCancelled   = "order_cancelled"
	TemplateOrderShipped     = "order_shipped"
	TemplateOrderDelivered   = "order_delivered"
	TemplatePaymentConfirmed = "payment_confirmed"
	TemplatePaymentRejected  = "payment_rejected"
)

// NotificationChannelSMS — канал доставки уведомлений по умолчанию.
const NotificationChannelSMS = "SMS"

// Notification описывает намерение отправить уведомление, записанное в outbox.
type Notification struct {
	ID          string
	Channel     string
	ToAddress   string
	TemplateKey string
	Payload     map[string]any
	Status      NotificationStatus
	LastError   string
	CreatedAt   time.Time
	SentAt      *time.Time
}

// Settings содержит платёжные реквизиты и контакты магазина (единственная строка).
type Settings struct {
	BusinessName   string
	UpiVPA         string
	WhatsappNumber string
	SupportEmail   string
}

// TimelineEntry — точка на клиентской шкале состояний заказа.
type TimelineEntry struct {
	Code string     `json:"code"`
	At   *time.Time `json:"at"`
}
