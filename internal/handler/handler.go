// Package handler содержит HTTP-обработчики API магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rgshop/shop-system/internal/middleware"
	"github.com/rgshop/shop-system/internal/model"
	"github.com/rgshop/shop-system/internal/repository"
	"github.com/rgshop/shop-system/internal/service"
	"github.com/rgshop/shop-system/internal/validation"
)

// OrderService определяет операции над заказами, доступные владельцу.
type OrderService interface {
	Transition(ctx context.Context, orderID string, target model.OrderStatus, actorID, reason string) (*model.Order, error)
	GetDetail(ctx context.Context, orderID string) (*service.OrderDetail, error)
	List(ctx context.Context, f repository.OrderListFilter) (*repository.OrderPage, error)
}

// PaymentService определяет операции проверки платежей.
type PaymentService interface {
	Confirm(ctx context.Context, orderID string, in service.ConfirmInput, actorID string) (*service.PaymentResult, error)
	Reject(ctx context.Context, orderID, reason, actorID string) (*service.PaymentResult, error)
	List(ctx context.Context, f repository.PaymentListFilter) (*repository.PaymentPage, error)
	ListRejectReasons(ctx context.Context) ([]string, error)
}

// ShipmentService определяет операции отгрузки и доставки.
type ShipmentService interface {
	UpsertShipmentAndShip(ctx context.Context, orderID string, in service.ShipmentInput, actorID string) (*service.ShipmentResult, error)
	MarkDelivered(ctx context.Context, orderID, actorID string) (*service.ShipmentResult, error)
}

// CheckoutService определяет покупательские операции.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*service.PlacedOrder, error)
	SubmitPaymentProof(ctx context.Context, in service.SubmitProofInput) (*service.PaymentResult, error)
	ListMyOrders(ctx context.Context, userID string, page, limit int) (*repository.OrderPage, error)
	GetMyOrder(ctx context.Context, userID, orderID string) (*service.OrderDetail, error)
}

// SettingsStore определяет доступ к платёжным реквизитам магазина.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, s model.Settings) error
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	orders         OrderService
	payments       PaymentService
	shipments      ShipmentService
	checkout       CheckoutService
	settings       SettingsStore
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(orders OrderService, payments PaymentService, shipments ShipmentService,
	checkout CheckoutService, settings SettingsStore, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		orders:         orders,
		payments:       payments,
		shipments:      shipments,
		checkout:       checkout,
		settings:       settings,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeServiceError переводит ошибки сервисного слоя в HTTP-статусы.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrShipmentNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(logMsg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type orderResponse struct {
	ID                string    `json:"id"`
	OrderNumber       string    `json:"order_number"`
	UserID            string    `json:"user_id"`
	Status            string    `json:"status"`
	TotalItemPaise    int64     `json:"total_item_paise"`
	ShippingPaise     int64     `json:"shipping_paise"`
	DiscountPaise     int64     `json:"discount_paise"`
	TotalPayablePaise int64     `json:"total_payable_paise"`
	ShipName          string    `json:"ship_name"`
	ShipPhone         string    `json:"ship_phone"`
	ShipLine1         string    `json:"ship_line1"`
	ShipLine2         string    `json:"ship_line2,omitempty"`
	ShipCity          string    `json:"ship_city"`
	ShipState         string    `json:"ship_state"`
	ShipPincode       string    `json:"ship_pincode"`
	ShipCountry       string    `json:"ship_country"`
	PaymentMethod     string    `json:"payment_method"`
	PaymentStatus     string    `json:"payment_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		UserID:            o.UserID,
		Status:            string(o.Status),
		TotalItemPaise:    o.TotalItemPaise,
		ShippingPaise:     o.ShippingPaise,
		DiscountPaise:     o.DiscountPaise,
		TotalPayablePaise: o.TotalPayablePaise,
		ShipName:          o.ShipName,
		ShipPhone:         o.ShipPhone,
		ShipLine1:         o.ShipLine1,
		ShipLine2:         o.ShipLine2,
		ShipCity:          o.ShipCity,
		ShipState:         o.ShipState,
		ShipPincode:       o.ShipPincode,
		ShipCountry:       o.ShipCountry,
		PaymentMethod:     o.PaymentMethod,
		PaymentStatus:     string(o.PaymentStatus),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

type orderItemResponse struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	VariantID       string `json:"variant_id,omitempty"`
	TitleSnapshot   string `json:"title_snapshot"`
	VariantSnapshot string `json:"variant_snapshot,omitempty"`
	UnitPricePaise  int64  `json:"unit_price_paise"`
	Qty             int    `json:"qty"`
	LineTotalPaise  int64  `json:"line_total_paise"`
}

func toItemResponses(items []model.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, orderItemResponse{
			ID:              it.ID,
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			TitleSnapshot:   it.TitleSnapshot,
			VariantSnapshot: it.VariantSnapshot,
			UnitPricePaise:  it.UnitPricePaise,
			Qty:             it.Qty,
			LineTotalPaise:  it.LineTotalPaise,
		})
	}
	return resp
}

type paymentResponse struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"order_id"`
	UpiVPA          string     `json:"upi_vpa"`
	QrPayload       string     `json:"qr_payload,omitempty"`
	IntentURL       string     `json:"intent_url,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ScreenshotURL   string     `json:"screenshot_url,omitempty"`
	ReferenceText   string     `json:"reference_text,omitempty"`
	Status          string     `json:"status"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	VerifiedBy      string     `json:"verified_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

func toPaymentResponse(p *model.Payment) *paymentResponse {
	if p == nil {
		return nil
	}
	return &paymentResponse{
		ID:              p.ID,
		OrderID:         p.OrderID,
		UpiVPA:          p.UpiVPA,
		QrPayload:       p.QrPayload,
		IntentURL:       p.IntentURL,
		SubmittedAt:     p.SubmittedAt,
		ScreenshotURL:   p.ScreenshotURL,
		ReferenceText:   p.ReferenceText,
		Status:          string(p.Status),
		VerifiedAt:      p.VerifiedAt,
		VerifiedBy:      p.VerifiedBy,
		RejectionReason: p.RejectionReason,
	}
}

type shipmentResponse struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	CourierName string     `json:"courier_name"`
	AWBNumber   string     `json:"awb_number"`
	TrackingURL string     `json:"tracking_url,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

func toShipmentResponse(s *model.Shipment) *shipmentResponse {
	if s == nil {
		return nil
	}
	return &shipmentResponse{
		ID:          s.ID,
		OrderID:     s.OrderID,
		CourierName: s.CourierName,
		AWBNumber:   s.AWBNumber,
		TrackingURL: s.TrackingURL,
		ShippedAt:   s.ShippedAt,
		DeliveredAt: s.DeliveredAt,
	}
}

type orderDetailResponse struct {
	Order    orderResponse         `json:"order"`
	Items    []orderItemResponse   `json:"items"`
	Payment  *paymentResponse      `json:"payment,omitempty"`
	Shipment *shipmentResponse     `json:"shipment,omitempty"`
	Timeline []model.TimelineEntry `json:"timeline"`
}

func toDetailResponse(d *service.OrderDetail) orderDetailResponse {
	return orderDetailResponse{
		Order:    toOrderResponse(d.Order),
		Items:    toItemResponses(d.Items),
		Payment:  toPaymentResponse(d.Payment),
		Shipment: toShipmentResponse(d.Shipment),
		Timeline: d.Timeline,
	}
}

type orderPageResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// ListOrders возвращает страницу заказов по фильтрам владельца.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := repository.OrderListFilter{
		Query: strings.TrimSpace(q.Get("q")),
		Sort:  q.Get("sort"),
	}
	for _, s := range splitCSV(q.Get("status")) {
		f.Statuses = append(f.Statuses, model.OrderStatus(s))
	}
	for _, s := range splitCSV(q.Get("payment_status")) {
		f.PaymentStatuses = append(f.PaymentStatuses, model.PaymentStatus(s))
	}
	if from, ok := parseTimeParam(q.Get("from")); ok {
		f.From = from
	}
	if to, ok := parseTimeParam(q.Get("to")); ok {
		f.To = to
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := h.orders.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err, "list orders error")
		return
	}

	resp := orderPageResponse{
		Orders: make([]orderResponse, 0, len(page.Orders)),
		Total:  page.Total,
		Page:   page.Page,
		Limit:  page.Limit,
	}
	for i := range page.Orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&page.Orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ владельцу вместе с платежом, отправлением и шкалой состояний.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := pathOrderID(r)

	detail, err := h.orders.GetDetail(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, err, "get order error", zap.String("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// UpdateOrderStatus выполняет ручной переход заказа (упаковка или отмена).
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	orderID := pathOrderID(r)
	order, err := h.orders.Transition(r.Context(), orderID, model.OrderStatus(req.Status), actor.ID, req.Reason)
	if err != nil {
		h.writeServiceError(w, err, "order status transition error",
			zap.String("orderID", orderID), zap.String("status", req.Status))
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type paymentQueueItemResponse struct {
	Payment     paymentResponse `json:"payment"`
	OrderNumber string          `json:"order_number"`
	OrderStatus string          `json:"order_status"`
	ShipName    string          `json:"ship_name"`
	ShipPhone   string          `json:"ship_phone"`
}

type paymentPageResponse struct {
	Payments []paymentQueueItemResponse `json:"payments"`
	Total    int                        `json:"total"`
	Page     int                        `json:"page"`
	Limit    int                        `json:"limit"`
}

// ListPayments возвращает очередь платежей на проверку (по умолчанию SUBMITTED).
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := repository.PaymentListFilter{
		Query: q.Get("q"),
		Sort:  q.Get("sort"),
	}
	for _, s := range splitCSV(q.Get("status")) {
		f.Statuses = append(f.Statuses, model.PaymentStatus(s))
	}
	if from, ok := parseTimeParam(q.Get("from")); ok {
		f.From = from
	}
	if to, ok := parseTimeParam(q.Get("to")); ok {
		f.To = to
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := h.payments.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err, "list payments error")
		return
	}

	resp := paymentPageResponse{
		Payments: make([]paymentQueueItemResponse, 0, len(page.Payments)),
		Total:    page.Total,
		Page:     page.Page,
		Limit:    page.Limit,
	}
	for i := range page.Payments {
		item := &page.Payments[i]
		resp.Payments = append(resp.Payments, paymentQueueItemResponse{
			Payment:     *toPaymentResponse(&item.Payment),
			OrderNumber: item.OrderNumber,
			OrderStatus: string(item.OrderStatus),
			ShipName:    item.ShipName,
			ShipPhone:   item.ShipPhone,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type paymentResultResponse struct {
	Order   orderResponse   `json:"order"`
	Payment paymentResponse `json:"payment"`
}

type confirmRequest struct {
	ReferenceText string `json:"reference_text"`
}

// ConfirmPayment подтверждает платёж и переводит заказ в PAYMENT_CONFIRMED.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	orderID := pathOrderID(r)
	result, err := h.payments.Confirm(r.Context(), orderID, service.ConfirmInput{ReferenceText: req.ReferenceText}, actor.ID)
	if err != nil {
		h.writeServiceError(w, err, "confirm payment error", zap.String("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, paymentResultResponse{
		Order:   toOrderResponse(result.Order),
		Payment: *toPaymentResponse(result.Payment),
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectPayment отклоняет платёж с обязательной причиной; заказ остаётся
// в PAYMENT_SUBMITTED для повторной подачи подтверждения.
func (h *Handler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		http.Error(w, "rejection reason is required", http.StatusBadRequest)
		return
	}

	orderID := pathOrderID(r)
	result, err := h.payments.Reject(r.Context(), orderID, req.Reason, actor.ID)
	if err != nil {
		h.writeServiceError(w, err, "reject payment error", zap.String("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, paymentResultResponse{
		Order:   toOrderResponse(result.Order),
		Payment: *toPaymentResponse(result.Payment),
	})
}

// ListRejectReasons возвращает справочник стандартных причин отклонения платежа.
func (h *Handler) ListRejectReasons(w http.ResponseWriter, r *http.Request) {
	reasons, err := h.payments.ListRejectReasons(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list reject reasons error")
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"reasons": reasons})
}

type shipmentRequest struct {
	CourierName string `json:"courier_name"`
	AWBNumber   string `json:"awb_number"`
	TrackingURL string `json:"tracking_url"`
}

type shipmentResultResponse struct {
	Order    orderResponse    `json:"order"`
	Shipment shipmentResponse `json:"shipment"`
}

// UpsertShipment создаёт или обновляет отправление и переводит заказ в SHIPPED.
func (h *Handler) UpsertShipment(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req shipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.CourierName) == "" || strings.TrimSpace(req.AWBNumber) == "" {
		http.Error(w, "courier name and AWB number are required", http.StatusBadRequest)
		return
	}

	orderID := pathOrderID(r)
	result, err := h.shipments.UpsertShipmentAndShip(r.Context(), orderID, service.ShipmentInput{
		CourierName: req.CourierName,
		AWBNumber:   req.AWBNumber,
		TrackingURL: req.TrackingURL,
	}, actor.ID)
	if err != nil {
		h.writeServiceError(w, err, "ship order error", zap.String("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, shipmentResultResponse{
		Order:    toOrderResponse(result.Order),
		Shipment: *toShipmentResponse(result.Shipment),
	})
}

// MarkDelivered отмечает доставку отправления и завершает заказ.
func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID := pathOrderID(r)
	result, err := h.shipments.MarkDelivered(r.Context(), orderID, actor.ID)
	if err != nil {
		h.writeServiceError(w, err, "deliver order error", zap.String("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, shipmentResultResponse{
		Order:    toOrderResponse(result.Order),
		Shipment: *toShipmentResponse(result.Shipment),
	})
}

type settingsPayload struct {
	BusinessName   string `json:"business_name"`
	UpiVPA         string `json:"upi_vpa"`
	WhatsappNumber string `json:"whatsapp_number"`
	SupportEmail   string `json:"support_email"`
}

// GetSettings возвращает платёжные реквизиты магазина.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.GetSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "get settings error")
		return
	}

	writeJSON(w, http.StatusOK, settingsPayload{
		BusinessName:   s.BusinessName,
		UpiVPA:         s.UpiVPA,
		WhatsappNumber: s.WhatsappNumber,
		SupportEmail:   s.SupportEmail,
	})
}

// UpdateSettings сохраняет платёжные реквизиты магазина.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.UpiVPA != "" && !validation.IsValidVPA(req.UpiVPA) {
		http.Error(w, "invalid UPI VPA", http.StatusBadRequest)
		return
	}

	err := h.settings.UpdateSettings(r.Context(), model.Settings{
		BusinessName:   req.BusinessName,
		UpiVPA:         req.UpiVPA,
		WhatsappNumber: req.WhatsappNumber,
		SupportEmail:   req.SupportEmail,
	})
	if err != nil {
		h.writeServiceError(w, err, "update settings error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type placeOrderRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		VariantID string `json:"variant_id"`
		Qty       int    `json:"qty"`
	} `json:"items"`
	Address struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Line1   string `json:"line1"`
		Line2   string `json:"line2"`
		City    string `json:"city"`
		State   string `json:"state"`
		Pincode string `json:"pincode"`
		Country string `json:"country"`
	} `json:"address"`
}

// PlaceOrder оформляет заказ текущего покупателя.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Address.Name == "" || req.Address.Line1 == "" || req.Address.City == "" ||
		req.Address.State == "" || req.Address.Pincode == "" {
		http.Error(w, "incomplete shipping address", http.StatusBadRequest)
		return
	}
	if !validation.IsValidPhone(req.Address.Phone) {
		http.Error(w, "invalid phone number", http.StatusBadRequest)
		return
	}

	in := service.PlaceOrderInput{
		UserID: actor.ID,
		Address: service.ShippingAddress{
			Name:    req.Address.Name,
			Phone:   req.Address.Phone,
			Line1:   req.Address.Line1,
			Line2:   req.Address.Line2,
			City:    req.Address.City,
			State:   req.Address.State,
			Pincode: req.Address.Pincode,
			Country: req.Address.Country,
		},
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.PlaceOrderItemInput{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Qty:       it.Qty,
		})
	}

	placed, err := h.checkout.PlaceOrder(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err, "place order error", zap.String("userID", actor.ID))
		return
	}

	writeJSON(w, http.StatusCreated, orderDetailResponse{
		Order:   toOrderResponse(placed.Order),
		Items:   toItemResponses(placed.Items),
		Payment: toPaymentResponse(placed.Payment),
	})
}

// ListMyOrders возвращает страницу заказов текущего покупателя.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.checkout.ListMyOrders(r.Context(), actor.ID, page, limit)
	if err != nil {
		h.writeServiceError(w, err, "list my orders error", zap.String("userID", actor.ID))
		return
	}

	resp := orderPageResponse{
		Orders: make([]orderResponse, 0, len(result.Orders)),
		Total:  result.Total,
		Page:   result.Page,
		Limit:  result.Limit,
	}
	for i := range result.Orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&result.Orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMyOrder возвращает заказ текущего покупателя со шкалой состояний.
func (h *Handler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID := pathOrderID(r)
	detail, err := h.checkout.GetMyOrder(r.Context(), actor.ID, orderID)
	if err != nil {
		h.writeServiceError(w, err, "get my order error", zap.String("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

type proofRequest struct {
	ScreenshotURL string `json:"screenshot_url"`
	ReferenceText string `json:"reference_text"`
}

// SubmitPaymentProof принимает подтверждение перевода от покупателя.
func (h *Handler) SubmitPaymentProof(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req proofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ScreenshotURL) == "" {
		http.Error(w, "screenshot URL is required", http.StatusBadRequest)
		return
	}

	orderID := pathOrderID(r)
	result, err := h.checkout.SubmitPaymentProof(r.Context(), service.SubmitProofInput{
		UserID:        actor.ID,
		OrderID:       orderID,
		ScreenshotURL: req.ScreenshotURL,
		ReferenceText: req.ReferenceText,
	})
	if err != nil {
		h.writeServiceError(w, err, "submit payment proof error", zap.String("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, paymentResultResponse{
		Order:   toOrderResponse(result.Order),
		Payment: *toPaymentResponse(result.Payment),
	})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseTimeParam(s string) (*time.Time, bool) {
	if s == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
