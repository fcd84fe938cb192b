package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/payment"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
)

type shippingAddressResponse struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

type orderItemResponse struct {
	ProductID int64   `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
}

type orderResponse struct {
	ID              int64                   `json:"id"`
	Number          string                  `json:"number"`
	Status          string                  `json:"status"`
	PaymentStatus   string                  `json:"payment_status"`
	Total           float64                 `json:"total"`
	ShippingAddress shippingAddressResponse `json:"shipping_address"`
	CreatedAt       string                  `json:"created_at"`
	Items           []orderItemResponse     `json:"items,omitempty"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		Number:        o.Number,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Total:         float64(o.TotalCents) / 100,
		ShippingAddress: shippingAddressResponse{
			Name:    o.ShippingAddress.Name,
			Line1:   o.ShippingAddress.Line1,
			Line2:   o.ShippingAddress.Line2,
			City:    o.ShippingAddress.City,
			State:   o.ShippingAddress.State,
			Pincode: o.ShippingAddress.Pincode,
			Phone:   o.ShippingAddress.Phone,
		},
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
}

func toOrderWithItemsResponse(o *model.OrderWithItems) orderResponse {
	resp := toOrderResponse(&o.Order)
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: float64(it.UnitPriceCents) / 100,
			Name:      it.ProductName,
			Slug:      it.ProductSlug,
		})
	}
	return resp
}

type createOrderRequest struct {
	AddressID int64 `json:"address_id"`
}

// CreateOrder оформляет заказ из корзины текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.AddressID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), userID, req.AddressID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmptyCart),
			errors.Is(err, repository.ErrProductUnavailable),
			errors.Is(err, repository.ErrInsufficientStock):
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, repository.ErrAddressNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("create order error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toOrderWithItemsResponse(order))
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ текущего пользователя с позициями.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := pathParamInt64(r, "orderID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.Int64("userID", userID), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toOrderWithItemsResponse(order))
}

type createPaymentRequest struct {
	OrderID int64 `json:"order_id"`
}

type paymentIntentResponse struct {
	SessionRef string `json:"session_ref"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	KeyID      string `json:"key_id"`
}

// CreatePayment создаёт платёжную сессию провайдера для заказа пользователя.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.OrderID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	intent, err := h.service.CreatePaymentIntent(r.Context(), userID, req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrAlreadyPaid):
			writeJSONError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("create payment error", zap.Error(err), zap.Int64("userID", userID), zap.Int64("orderID", req.OrderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, paymentIntentResponse{
		SessionRef: intent.SessionRef,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
		KeyID:      intent.KeyID,
	})
}

type verifyPaymentRequest struct {
	OrderID    int64  `json:"order_id"`
	SessionRef string `json:"session_ref"`
	PaymentRef string `json:"payment_ref"`
	Signature  string `json:"signature"`
}

// VerifyPayment обрабатывает синхронное подтверждение оплаты от клиента.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.OrderID <= 0 || req.SessionRef == "" || req.PaymentRef == "" || req.Signature == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.VerifyPayment(r.Context(), userID, req.OrderID, req.SessionRef, req.PaymentRef, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidSignature):
			// Возможная попытка подделки подписи: оставляем след в логах.
			h.logger.Warn("invalid payment signature", zap.Int64("userID", userID), zap.Int64("orderID", req.OrderID))
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSessionMismatch):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("verify payment error", zap.Error(err), zap.Int64("userID", userID), zap.Int64("orderID", req.OrderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"order_id": req.OrderID})
}

// ProviderWebhook принимает асинхронные уведомления платёжного провайдера.
// Ответ всегда успешный: любой другой статус провоцирует шторм повторных
// доставок со стороны провайдера. Ошибки обработки остаются в логах.
func (h *Handler) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": false})
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")

	if err := h.service.HandleWebhook(r.Context(), rawBody, signature); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			h.logger.Warn("webhook signature mismatch")
		} else {
			h.logger.Error("webhook processing error", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
