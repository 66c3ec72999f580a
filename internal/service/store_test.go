package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rgshop/shop-system/internal/model"
	"github.com/rgshop/shop-system/internal/repository"
)

// memNotification — запись outbox, сохранённая в памяти.
type memNotification struct {
	TemplateKey string
	ToAddress   string
	Payload     map[string]any
}

// memStore — хранилище в памяти, реализующее repository.Store для тестов
// сервисного слоя. InTx снимает копию состояния и откатывает её при ошибке,
// поэтому тесты могут проверять атомарность переходов.
type memStore struct {
	orders    map[string]model.Order
	items     map[string][]model.OrderItem
	payments  map[string]model.Payment // ключ — orderID
	shipments map[string]model.Shipment
	settings  model.Settings
	reasons   []string

	audits        []model.AuditEntry
	notifications []memNotification

	// failCreateOrders заставляет CreateOrder вернуть ErrOrderNumberTaken
	// указанное число раз.
	failCreateOrders int
	// failEnqueue заставляет EnqueueNotification вернуть ошибку.
	failEnqueue error
	// failAudit заставляет AppendAudit вернуть ошибку.
	failAudit error
}

func newMemStore() *memStore {
	return &memStore{
		orders:    map[string]model.Order{},
		items:     map[string][]model.OrderItem{},
		payments:  map[string]model.Payment{},
		shipments: map[string]model.Shipment{},
	}
}

func (m *memStore) Close() error { return nil }

func (m *memStore) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memStore) ListOrders(ctx context.Context, f repository.OrderListFilter) (*repository.OrderPage, error) {
	var all []model.Order
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
			continue
		}
		all = append(all, o)
	}

	sort.Slice(all, func(i, j int) bool {
		if f.Sort == "order_number" {
			return all[i].OrderNumber < all[j].OrderNumber
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}

	return &repository.OrderPage{
		Orders: all[start:end],
		Total:  total,
		Page:   f.Page,
		Limit:  f.Limit,
	}, nil
}

func containsStatus(ss []model.OrderStatus, s model.OrderStatus) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memStore) ListOrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	items := m.items[orderID]
	out := make([]model.OrderItem, len(items))
	copy(out, items)
	return out, nil
}

func (m *memStore) GetPaymentByOrder(ctx context.Context, orderID string) (*model.Payment, error) {
	p, ok := m.payments[orderID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	return &p, nil
}

func (m *memStore) ListPayments(ctx context.Context, f repository.PaymentListFilter) (*repository.PaymentPage, error) {
	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = []model.PaymentStatus{model.PaymentStatusSubmitted}
	}

	var all []repository.PaymentQueueItem
	for orderID, p := range m.payments {
		matched := false
		for _, s := range statuses {
			if p.Status == s {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		o := m.orders[orderID]
		all = append(all, repository.PaymentQueueItem{
			Payment:     p,
			OrderNumber: o.OrderNumber,
			OrderStatus: o.Status,
			ShipName:    o.ShipName,
			ShipPhone:   o.ShipPhone,
		})
	}

	return &repository.PaymentPage{
		Payments: all,
		Total:    len(all),
		Page:     f.Page,
		Limit:    f.Limit,
	}, nil
}

func (m *memStore) GetShipmentByOrder(ctx context.Context, orderID string) (*model.Shipment, error) {
	s, ok := m.shipments[orderID]
	if !ok {
		return nil, repository.ErrShipmentNotFound
	}
	return &s, nil
}

func (m *memStore) GetSettings(ctx context.Context) (*model.Settings, error) {
	s := m.settings
	return &s, nil
}

func (m *memStore) UpdateSettings(ctx context.Context, s model.Settings) error {
	m.settings = s
	return nil
}

func (m *memStore) ListRejectReasons(ctx context.Context) ([]string, error) {
	out := make([]string, len(m.reasons))
	copy(out, m.reasons)
	return out, nil
}

func (m *memStore) FetchPendingNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	return nil, nil
}

func (m *memStore) MarkNotificationSent(ctx context.Context, id string) error { return nil }

func (m *memStore) MarkNotificationFailed(ctx context.Context, id, lastError string) error {
	return nil
}

func (m *memStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	snap := m.snapshot()
	if err := fn(&memTx{store: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	orders    map[string]model.Order
	items     map[string][]model.OrderItem
	payments  map[string]model.Payment
	shipments map[string]model.Shipment

	auditLen        int
	notificationLen int
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		orders:          map[string]model.Order{},
		items:           map[string][]model.OrderItem{},
		payments:        map[string]model.Payment{},
		shipments:       map[string]model.Shipment{},
		auditLen:        len(m.audits),
		notificationLen: len(m.notifications),
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	for k, v := range m.items {
		items := make([]model.OrderItem, len(v))
		copy(items, v)
		s.items[k] = items
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.shipments {
		s.shipments[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.orders = s.orders
	m.items = s.items
	m.payments = s.payments
	m.shipments = s.shipments
	m.audits = m.audits[:s.auditLen]
	m.notifications = m.notifications[:s.notificationLen]
}

type memTx struct {
	store *memStore
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, orderID string) (*model.Order, error) {
	return t.store.GetOrder(ctx, orderID)
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	o, ok := t.store.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	t.store.orders[orderID] = o
	return &o, nil
}

func (t *memTx) UpdateOrderStatuses(ctx context.Context, orderID string, status model.OrderStatus, paymentStatus model.PaymentStatus) (*model.Order, error) {
	o, ok := t.store.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	o.UpdatedAt = time.Now()
	t.store.orders[orderID] = o
	return &o, nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *model.Order, items []model.OrderItem, payment *model.Payment) error {
	if t.store.failCreateOrders > 0 {
		t.store.failCreateOrders--
		return repository.ErrOrderNumberTaken
	}
	for _, o := range t.store.orders {
		if o.OrderNumber == order.OrderNumber {
			return repository.ErrOrderNumberTaken
		}
	}

	t.store.orders[order.ID] = *order
	stored := make([]model.OrderItem, len(items))
	copy(stored, items)
	t.store.items[order.ID] = stored
	t.store.payments[order.ID] = *payment
	return nil
}

func (t *memTx) GetPaymentByOrder(ctx context.Context, orderID string) (*model.Payment, error) {
	return t.store.GetPaymentByOrder(ctx, orderID)
}

func (t *memTx) SubmitPaymentProof(ctx context.Context, orderID, screenshotURL, referenceText string, at time.Time) (*model.Payment, error) {
	p, ok := t.store.payments[orderID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	p.Status = model.PaymentStatusSubmitted
	p.ScreenshotURL = screenshotURL
	p.ReferenceText = referenceText
	p.SubmittedAt = &at
	p.UpdatedAt = at
	t.store.payments[orderID] = p
	return &p, nil
}

func (t *memTx) ConfirmPayment(ctx context.Context, paymentID, verifiedBy, referenceText string, at time.Time) (*model.Payment, error) {
	for orderID, p := range t.store.payments {
		if p.ID != paymentID {
			continue
		}
		p.Status = model.PaymentStatusConfirmed
		p.VerifiedAt = &at
		p.VerifiedBy = verifiedBy
		if strings.TrimSpace(referenceText) != "" {
			p.ReferenceText = referenceText
		}
		p.UpdatedAt = at
		t.store.payments[orderID] = p
		return &p, nil
	}
	return nil, repository.ErrPaymentNotFound
}

func (t *memTx) RejectPayment(ctx context.Context, paymentID, reason string) (*model.Payment, error) {
	for orderID, p := range t.store.payments {
		if p.ID != paymentID {
			continue
		}
		p.Status = model.PaymentStatusRejected
		p.RejectionReason = reason
		p.UpdatedAt = time.Now()
		t.store.payments[orderID] = p
		return &p, nil
	}
	return nil, repository.ErrPaymentNotFound
}

func (t *memTx) GetShipmentByOrder(ctx context.Context, orderID string) (*model.Shipment, error) {
	return t.store.GetShipmentByOrder(ctx, orderID)
}

func (t *memTx) UpsertShipment(ctx context.Context, orderID, courierName, awbNumber, trackingURL string, shippedAt time.Time) (*model.Shipment, error) {
	s, ok := t.store.shipments[orderID]
	if !ok {
		s = model.Shipment{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			CreatedAt: shippedAt,
		}
	}
	s.CourierName = courierName
	s.AWBNumber = awbNumber
	s.TrackingURL = trackingURL
	s.ShippedAt = &shippedAt
	s.UpdatedAt = shippedAt
	t.store.shipments[orderID] = s
	return &s, nil
}

func (t *memTx) SetShipmentDelivered(ctx context.Context, shipmentID string, at time.Time) (*model.Shipment, error) {
	for orderID, s := range t.store.shipments {
		if s.ID != shipmentID {
			continue
		}
		s.DeliveredAt = &at
		s.UpdatedAt = at
		t.store.shipments[orderID] = s
		return &s, nil
	}
	return nil, repository.ErrShipmentNotFound
}

func (t *memTx) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	if t.store.failAudit != nil {
		return t.store.failAudit
	}
	t.store.audits = append(t.store.audits, entry)
	return nil
}

func (t *memTx) EnqueueNotification(ctx context.Context, templateKey, toAddress string, payload map[string]any) error {
	if t.store.failEnqueue != nil {
		return t.store.failEnqueue
	}
	t.store.notifications = append(t.store.notifications, memNotification{
		TemplateKey: templateKey,
		ToAddress:   toAddress,
		Payload:     payload,
	})
	return nil
}

// seedOrder кладёт заказ в хранилище и возвращает его идентификатор.
func (m *memStore) seedOrder(status model.OrderStatus, paymentStatus model.PaymentStatus) string {
	now := time.Now().Add(-time.Hour)
	id := uuid.NewString()
	m.orders[id] = model.Order{
		ID:                id,
		OrderNumber:       "RG-2025-" + strings.ToUpper(id[:6]),
		UserID:            "user-1",
		Status:            status,
		TotalItemPaise:    150000,
		TotalPayablePaise: 150000,
		ShipName:          "Asha",
		ShipPhone:         "+919876543210",
		ShipLine1:         "12 MG Road",
		ShipCity:          "Bengaluru",
		ShipState:         "Karnataka",
		ShipPincode:       "560001",
		ShipCountry:       "IN",
		PaymentMethod:     "UPI_MANUAL",
		PaymentStatus:     paymentStatus,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return id
}

// seedPayment кладёт платёж для заказа и возвращает его идентификатор.
func (m *memStore) seedPayment(orderID string, status model.PaymentStatus) string {
	id := uuid.NewString()
	p := model.Payment{
		ID:      id,
		OrderID: orderID,
		UpiVPA:  "rgshop@okbank",
		Status:  status,
	}
	if status == model.PaymentStatusSubmitted || status == model.PaymentStatusConfirmed || status == model.PaymentStatusRejected {
		at := time.Now().Add(-30 * time.Minute)
		p.SubmittedAt = &at
		p.ScreenshotURL = "https://files.example/proof.png"
		p.ReferenceText = "UTR0001"
	}
	if status == model.PaymentStatusConfirmed {
		at := time.Now().Add(-20 * time.Minute)
		p.VerifiedAt = &at
		p.VerifiedBy = "owner-1"
	}
	m.payments[orderID] = p
	return id
}

// seedShipment кладёт отправление для заказа и возвращает его идентификатор.
func (m *memStore) seedShipment(orderID string, shipped, delivered bool) string {
	id := uuid.NewString()
	s := model.Shipment{
		ID:          id,
		OrderID:     orderID,
		CourierName: "Delhivery",
		AWBNumber:   "AWB123456",
		TrackingURL: "https://track.example/AWB123456",
	}
	if shipped {
		at := time.Now().Add(-10 * time.Minute)
		s.ShippedAt = &at
	}
	if delivered {
		at := time.Now().Add(-5 * time.Minute)
		s.DeliveredAt = &at
	}
	m.shipments[orderID] = s
	return id
}

func (m *memStore) configurePayments() {
	m.settings = model.Settings{
		BusinessName: "RG Shop",
		UpiVPA:       "rgshop@okbank",
	}
}
