package model

// OrderStatus описывает статус заказа.
type OrderStatus string

// Статусы заказа.
const (
	OrderStatusPlaced           OrderStatus = "PLACED"
	OrderStatusPaymentSubmitted OrderStatus = "PAYMENT_SUBMITTED"
	OrderStatusPaymentConfirmed OrderStatus = "PAYMENT_CONFIRMED"
	OrderStatusPacked           OrderStatus = "PACKED"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
)

// PaymentStatus описывает статус платежа.
type PaymentStatus string

// Статусы платежа.
const (
	PaymentStatusNone      PaymentStatus = "NONE"
	PaymentStatusSubmitted PaymentStatus = "SUBMITTED"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
	PaymentStatusRejected  PaymentStatus = "REJECTED"
)

// OrderEvent — событие жизненного цикла заказа.
type OrderEvent string

// События жизненного цикла заказа.
const (
	EventSubmitPayment  OrderEvent = "SUBMIT_PAYMENT"
	EventConfirmPayment OrderEvent = "CONFIRM_PAYMENT"
	EventRejectPayment  OrderEvent = "REJECT_PAYMENT"
	EventPack           OrderEvent = "PACK"
	EventCancel         OrderEvent = "CANCEL"
	EventShip           OrderEvent = "SHIP"
	EventDeliver        OrderEvent = "DELIVER"
)

// orderTransitions задаёт единую таблицу переходов: событие × текущий статус → новый статус.
// Отсутствие пары означает недопустимый переход.
var orderTransitions = map[OrderEvent]map[OrderStatus]OrderStatus{
	EventSubmitPayment: {
		OrderStatusPlaced: OrderStatusPaymentSubmitted,
		// Повторная подача подтверждения после отклонения платежа.
		OrderStatusPaymentSubmitted: OrderStatusPaymentSubmitted,
	},
	EventConfirmPayment: {
		OrderStatusPaymentSubmitted: OrderStatusPaymentConfirmed,
	},
	EventRejectPayment: {
		// Отклонение возвращает заказ в то же состояние: покупатель может подать подтверждение заново.
		OrderStatusPaymentSubmitted: OrderStatusPaymentSubmitted,
	},
	EventPack: {
		OrderStatusPaymentConfirmed: OrderStatusPacked,
	},
	EventCancel: {
		OrderStatusPlaced:           OrderStatusCancelled,
		OrderStatusPaymentSubmitted: OrderStatusCancelled,
		OrderStatusPaymentConfirmed: OrderStatusCancelled,
		OrderStatusPacked:           OrderStatusCancelled,
	},
	EventShip: {
		OrderStatusPacked: OrderStatusShipped,
	},
	EventDeliver: {
		OrderStatusShipped: OrderStatusDelivered,
	},
}

// NextOrderStatus возвращает статус, в который переводит событие из текущего статуса,
// и признак допустимости перехода.
func NextOrderStatus(current OrderStatus, event OrderEvent) (OrderStatus, bool) {
	next, ok := orderTransitions[event][current]
	return next, ok
}

// IsTerminalOrderStatus сообщает, является ли статус терминальным.
func IsTerminalOrderStatus(s OrderStatus) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}
