package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rgshop/shop-system/internal/model"
	"github.com/rgshop/shop-system/internal/repository"
	"github.com/rgshop/shop-system/internal/validation"
)

// Catalog описывает контракт каталога товаров: чекаут только читает
// снимки позиций, каталог живёт вне этого сервиса.
type Catalog interface {
	// ResolveItem возвращает снимок позиции или nil, если товар (вариант)
	// не существует или не активен.
	ResolveItem(ctx context.Context, productID, variantID string) (*CatalogItem, error)
}

// CatalogItem — снимок позиции каталога на момент оформления заказа.
type CatalogItem struct {
	Title          string
	VariantLabel   string
	UnitPricePaise int64
	InStock        bool
}

// CheckoutService оформляет заказы и принимает подтверждения перевода от покупателя.
type CheckoutService struct {
	store   repository.Store
	catalog Catalog
}

// NewCheckoutService создаёт сервис оформления заказов.
func NewCheckoutService(store repository.Store, catalog Catalog) *CheckoutService {
	return &CheckoutService{store: store, catalog: catalog}
}

// PlaceOrderItemInput — позиция оформляемого заказа.
type PlaceOrderItemInput struct {
	ProductID string
	VariantID string
	Qty       int
}

// ShippingAddress — снимок адреса доставки, неизменяемый после оформления.
type ShippingAddress struct {
	Name    string
	Phone   string
	Line1   string
	Line2   string
	City    string
	State   string
	Pincode string
	Country string
}

// PlaceOrderInput — входные данные оформления заказа.
type PlaceOrderInput struct {
	UserID  string
	Items   []PlaceOrderItemInput
	Address ShippingAddress
}

// PlacedOrder — созданная тройка заказ + позиции + платёж.
type PlacedOrder struct {
	Order   *model.Order
	Items   []model.OrderItem
	Payment *model.Payment
}

// PlaceOrder создаёт заказ, его позиции и платёжную запись одной транзакцией.
// Платёжная запись несёт одноразовый UPI-запрос на общую сумму заказа.
func (s *CheckoutService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlacedOrder, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: no items provided", ErrBadRequest)
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.UpiVPA == "" || settings.BusinessName == "" {
		return nil, fmt.Errorf("%w: payments not configured", ErrConflict)
	}

	var (
		totalItemPaise int64
		items          []model.OrderItem
	)
	for _, it := range in.Items {
		if !validation.IsValidQty(it.Qty) {
			return nil, fmt.Errorf("%w: invalid quantity", ErrBadRequest)
		}

		ci, err := s.catalog.ResolveItem(ctx, it.ProductID, it.VariantID)
		if err != nil {
			return nil, err
		}
		if ci == nil {
			return nil, fmt.Errorf("%w: invalid product", ErrBadRequest)
		}
		if !ci.InStock {
			return nil, fmt.Errorf("%w: product out of stock", ErrConflict)
		}

		lineTotal := ci.UnitPricePaise * int64(it.Qty)
		totalItemPaise += lineTotal

		items = append(items, model.OrderItem{
			ID:              uuid.NewString(),
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			TitleSnapshot:   ci.Title,
			VariantSnapshot: ci.VariantLabel,
			UnitPricePaise:  ci.UnitPricePaise,
			Qty:             it.Qty,
			LineTotalPaise:  lineTotal,
		})
	}

	var (
		shippingPaise int64
		discountPaise int64
	)
	totalPayablePaise := totalItemPaise + shippingPaise - discountPaise

	// Случайный суффикс номера заказа может столкнуться с существующим;
	// при коллизии пробуем новый номер.
	var placed *PlacedOrder
	for attempt := 0; attempt < 3; attempt++ {
		now := time.Now()
		orderNumber := generateOrderNumber(now)
		intentURL := buildUpiIntentURL(settings.UpiVPA, settings.BusinessName, totalPayablePaise, orderNumber)

		order := &model.Order{
			ID:                uuid.NewString(),
			OrderNumber:       orderNumber,
			UserID:            in.UserID,
			Status:            model.OrderStatusPlaced,
			TotalItemPaise:    totalItemPaise,
			ShippingPaise:     shippingPaise,
			DiscountPaise:     discountPaise,
			TotalPayablePaise: totalPayablePaise,
			ShipName:          in.Address.Name,
			ShipPhone:         in.Address.Phone,
			ShipLine1:         in.Address.Line1,
			ShipLine2:         in.Address.Line2,
			ShipCity:          in.Address.City,
			ShipState:         in.Address.State,
			ShipPincode:       in.Address.Pincode,
			ShipCountry:       in.Address.Country,
			PaymentMethod:     "UPI_MANUAL",
			PaymentStatus:     model.PaymentStatusNone,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		for i := range items {
			items[i].OrderID = order.ID
			items[i].CreatedAt = now
		}
		payment := &model.Payment{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			UpiVPA:    settings.UpiVPA,
			QrPayload: intentURL,
			IntentURL: intentURL,
			Status:    model.PaymentStatusNone,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = s.store.InTx(ctx, func(tx repository.Tx) error {
			if err := tx.CreateOrder(ctx, order, items, payment); err != nil {
				return err
			}
			return tx.AppendAudit(ctx, model.AuditEntry{
				ActorID:  in.UserID,
				Entity:   model.EntityOrder,
				EntityID: order.ID,
				Action:   model.AuditActionCreate,
				After: map[string]any{
					"order":   order,
					"items":   items,
					"payment": payment,
				},
			})
		})
		if errors.Is(err, repository.ErrOrderNumberTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}

		placed = &PlacedOrder{Order: order, Items: items, Payment: payment}
		break
	}
	if placed == nil {
		return nil, err
	}

	return placed, nil
}

// SubmitProofInput — входные данные подачи подтверждения перевода.
type SubmitProofInput struct {
	UserID        string
	OrderID       string
	ScreenshotURL string
	ReferenceText string
}

// SubmitPaymentProof прикладывает подтверждение перевода: платёж переходит в
// SUBMITTED, заказ — в PAYMENT_SUBMITTED. Сам файл скриншота загружается
// внешним хранилищем, сюда приходит только его адрес.
func (s *CheckoutService) SubmitPaymentProof(ctx context.Context, in SubmitProofInput) (*PaymentResult, error) {
	var result *PaymentResult
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if order.UserID != in.UserID {
			return repository.ErrOrderNotFound
		}

		payment, err := tx.GetPaymentByOrder(ctx, in.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				return fmt.Errorf("%w: payment channel not initialized for this order", ErrConflict)
			}
			return err
		}

		if payment.Status == model.PaymentStatusConfirmed {
			return fmt.Errorf("%w: payment already confirmed", ErrConflict)
		}
		next, ok := model.NextOrderStatus(order.Status, model.EventSubmitPayment)
		if !ok {
			return fmt.Errorf("%w: order not eligible for proof submission", ErrConflict)
		}

		updatedPay, err := tx.SubmitPaymentProof(ctx, in.OrderID, in.ScreenshotURL, in.ReferenceText, time.Now())
		if err != nil {
			return err
		}

		updatedOrder, err := tx.UpdateOrderStatuses(ctx, in.OrderID, next, model.PaymentStatusSubmitted)
		if err != nil {
			return err
		}

		if err := tx.AppendAudit(ctx, model.AuditEntry{
			ActorID:  in.UserID,
			Entity:   model.EntityPayment,
			EntityID: payment.ID,
			Action:   model.AuditActionSubmitProof,
			Before:   payment,
			After:    updatedPay,
		}); err != nil {
			return err
		}

		result = &PaymentResult{Order: updatedOrder, Payment: updatedPay}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListMyOrders возвращает страницу заказов покупателя, свежие первыми.
func (s *CheckoutService) ListMyOrders(ctx context.Context, userID string, page, limit int) (*repository.OrderPage, error) {
	page, limit = normalizePage(page, limit)
	return s.store.ListOrders(ctx, repository.OrderListFilter{
		UserID: userID,
		Sort:   "-created_at",
		Page:   page,
		Limit:  limit,
	})
}

// GetMyOrder возвращает заказ покупателя с позициями, платежом и шкалой состояний.
// Чужой заказ неотличим от несуществующего.
func (s *CheckoutService) GetMyOrder(ctx context.Context, userID, orderID string) (*OrderDetail, error) {
	detail, err := composeDetail(ctx, s.store, orderID)
	if err != nil {
		return nil, err
	}
	if detail.Order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return detail, nil
}

// generateOrderNumber возвращает новый человекочитаемый номер заказа вида RG-2025-9F3A1C.
func generateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("RG-%d-%s", now.Year(), suffix)
}

// buildUpiIntentURL собирает одноразовую платёжную ссылку UPI на сумму заказа.
func buildUpiIntentURL(upiVPA, payeeName string, amountPaise int64, orderNumber string) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&cu=INR&tn=%s",
		url.QueryEscape(upiVPA),
		url.QueryEscape(payeeName),
		formatINR(amountPaise),
		url.QueryEscape("Order "+orderNumber),
	)
}

// formatINR переводит сумму в пайсах в строку рупий с двумя знаками.
func formatINR(paise int64) string {
	return fmt.Sprintf("%d.%02d", paise/100, paise%100)
}
