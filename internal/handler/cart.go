package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

type cartItemResponse struct {
	ProductID int64    `json:"product_id"`
	Quantity  int64    `json:"quantity"`
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	Price     float64  `json:"price"`
	Images    []string `json:"images"`
	Stock     int64    `json:"stock"`
	IsActive  bool     `json:"is_active"`
}

func toCartResponse(items []model.CartItemWithProduct) []cartItemResponse {
	resp := make([]cartItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, cartItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Name:      it.Name,
			Slug:      it.Slug,
			Price:     float64(it.PriceCents) / 100,
			Images:    it.Images,
			Stock:     it.Stock,
			IsActive:  it.IsActive,
		})
	}
	return resp
}

func (h *Handler) cartError(w http.ResponseWriter, err error, userID int64) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCartItemNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrProductUnavailable),
		errors.Is(err, repository.ErrInsufficientStock):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("cart error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	items, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.logger.Error("get cart error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(items))
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// AddToCart добавляет товар в корзину текущего пользователя.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.ProductID <= 0 || req.Quantity <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AddToCart(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		h.cartError(w, err, userID)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type updateCartRequest struct {
	Quantity int64 `json:"quantity"`
}

// UpdateCartItem устанавливает количество позиции корзины; ноль удаляет позицию.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	productID, ok := pathParamInt64(r, "productID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Quantity < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetCartQuantity(r.Context(), userID, productID, req.Quantity); err != nil {
		h.cartError(w, err, userID)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// RemoveCartItem удаляет позицию корзины. Идемпотентен.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	productID, ok := pathParamInt64(r, "productID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveFromCart(r.Context(), userID, productID); err != nil {
		h.logger.Error("remove cart item error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type addressRequest struct {
	Name      string `json:"name"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"is_default"`
}

func (r addressRequest) valid() bool {
	return r.Name != "" && r.Line1 != "" && r.City != "" && r.State != "" &&
		validation.IsValidPincode(r.Pincode) && validation.IsValidPhone(r.Phone)
}

type addressResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"is_default"`
}

func toAddressResponse(a *model.Address) addressResponse {
	return addressResponse{
		ID:        a.ID,
		Name:      a.Name,
		Line1:     a.Line1,
		Line2:     a.Line2,
		City:      a.City,
		State:     a.State,
		Pincode:   a.Pincode,
		Phone:     a.Phone,
		IsDefault: a.IsDefault,
	}
}

// GetAddresses возвращает адресную книгу текущего пользователя.
func (h *Handler) GetAddresses(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	addresses, err := h.service.GetAddresses(r.Context(), userID)
	if err != nil {
		h.logger.Error("get addresses error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]addressResponse, 0, len(addresses))
	for i := range addresses {
		resp = append(resp, toAddressResponse(&addresses[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetAddress возвращает адрес текущего пользователя.
func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	addressID, ok := pathParamInt64(r, "addressID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	address, err := h.service.GetAddress(r.Context(), userID, addressID)
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get address error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toAddressResponse(address))
}

// CreateAddress создаёт адрес в адресной книге текущего пользователя.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.valid() {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	a := &model.Address{
		UserID:    userID,
		Name:      req.Name,
		Line1:     req.Line1,
		Line2:     req.Line2,
		City:      req.City,
		State:     req.State,
		Pincode:   req.Pincode,
		Phone:     req.Phone,
		IsDefault: req.IsDefault,
	}

	id, err := h.service.CreateAddress(r.Context(), a)
	if err != nil {
		h.logger.Error("create address error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	a.ID = id
	writeJSON(w, http.StatusCreated, toAddressResponse(a))
}

// UpdateAddress обновляет адрес текущего пользователя.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	addressID, ok := pathParamInt64(r, "addressID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.valid() {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	a := &model.Address{
		ID:        addressID,
		UserID:    userID,
		Name:      req.Name,
		Line1:     req.Line1,
		Line2:     req.Line2,
		City:      req.City,
		State:     req.State,
		Pincode:   req.Pincode,
		Phone:     req.Phone,
		IsDefault: req.IsDefault,
	}

	if err := h.service.UpdateAddress(r.Context(), a); err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update address error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteAddress удаляет адрес текущего пользователя.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	addressID, ok := pathParamInt64(r, "addressID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteAddress(r.Context(), userID, addressID); err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete address error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
