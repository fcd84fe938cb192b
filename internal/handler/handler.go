// Package handler содержит HTTP-обработчики API сервиса магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	GetProducts(ctx context.Context) ([]model.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (int64, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	GetCart(ctx context.Context, userID int64) ([]model.CartItemWithProduct, error)
	AddToCart(ctx context.Context, userID, productID, quantity int64) error
	SetCartQuantity(ctx context.Context, userID, productID, quantity int64) error
	RemoveFromCart(ctx context.Context, userID, productID int64) error
	GetAddresses(ctx context.Context, userID int64) ([]model.Address, error)
	GetAddress(ctx context.Context, userID, addressID int64) (*model.Address, error)
	CreateAddress(ctx context.Context, a *model.Address) (int64, error)
	UpdateAddress(ctx context.Context, a *model.Address) error
	DeleteAddress(ctx context.Context, userID, addressID int64) error
	CreateOrder(ctx context.Context, userID, addressID int64) (*model.OrderWithItems, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*model.OrderWithItems, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	CreatePaymentIntent(ctx context.Context, userID, orderID int64) (*service.PaymentIntent, error)
	VerifyPayment(ctx context.Context, userID, orderID int64, sessionRef, paymentRef, signature string) error
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) error
}

// Handler реализует HTTP-обработчики API сервиса магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError возвращает клиенту текст ошибки. Используется для конфликтов,
// где пользователю нужно корректирующее сообщение (остаток товара и т.п.).
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type productResponse struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	Price    float64  `json:"price"`
	Stock    int64    `json:"stock"`
	Images   []string `json:"images"`
	IsActive bool     `json:"is_active"`
}

// priceToCents переводит цену из основных единиц валюты в минимальные.
// Округление обязательно: двоичное представление 19.99*100 даёт 1998.999...,
// и усечение исказило бы хранимую цену.
func priceToCents(price float64) int64 {
	return int64(math.Round(price * 100))
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Slug:     p.Slug,
		Price:    float64(p.PriceCents) / 100,
		Stock:    p.Stock,
		Images:   p.Images,
		IsActive: p.IsActive,
	}
}

// GetProducts возвращает список активных товаров каталога.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.GetProducts(r.Context())
	if err != nil {
		h.logger.Error("get products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetProduct возвращает активный товар по slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")

	product, err := h.service.GetProductBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get product error", zap.Error(err), zap.String("slug", slug))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

type productRequest struct {
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	Price    float64  `json:"price"`
	Stock    int64    `json:"stock"`
	Images   []string `json:"images"`
	IsActive bool     `json:"is_active"`
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return 0, false
	}

	isAdmin, err := h.service.IsAdmin(r.Context(), userID)
	if err != nil {
		h.logger.Error("check admin role error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return 0, false
	}
	if !isAdmin {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return 0, false
	}

	return userID, true
}

// CreateProduct создаёт товар каталога. Доступно только администратору.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || !validation.IsValidSlug(req.Slug) || req.Price < 0 || req.Stock < 0 {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	p := &model.Product{
		Name:       req.Name,
		Slug:       req.Slug,
		PriceCents: priceToCents(req.Price),
		Stock:      req.Stock,
		Images:     req.Images,
		IsActive:   req.IsActive,
	}

	id, err := h.service.CreateProduct(r.Context(), p)
	if err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("create product error", zap.Error(err), zap.String("slug", req.Slug))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	p.ID = id
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct обновляет товар каталога. Доступно только администратору.
// Снятие товара с продажи выполняется флагом is_active; остаток не изменяется.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	productID, ok := pathParamInt64(r, "productID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || !validation.IsValidSlug(req.Slug) || req.Price < 0 {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	p := &model.Product{
		ID:         productID,
		Name:       req.Name,
		Slug:       req.Slug,
		PriceCents: priceToCents(req.Price),
		Images:     req.Images,
		IsActive:   req.IsActive,
	}

	err := h.service.UpdateProduct(r.Context(), p)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrSlugExists) {
			writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("update product error", zap.Error(err), zap.Int64("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
