// Package service реализует бизнес-логику сервиса магазина.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/payment"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionMismatch возвращается, если предъявленная платёжная сессия
	// не совпадает с сохранённой на заказе.
	ErrSessionMismatch = errors.New("payment session mismatch")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserRole(ctx context.Context, userID int64) (model.UserRole, error)
	GetActiveProducts(ctx context.Context) ([]model.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (int64, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	GetCartItems(ctx context.Context, userID int64) ([]model.CartItemWithProduct, error)
	AddCartItem(ctx context.Context, userID, productID, quantity int64) error
	SetCartItemQuantity(ctx context.Context, userID, productID, quantity int64) error
	DeleteCartItem(ctx context.Context, userID, productID int64) error
	GetAddressesByUser(ctx context.Context, userID int64) ([]model.Address, error)
	GetAddress(ctx context.Context, userID, addressID int64) (*model.Address, error)
	CreateAddress(ctx context.Context, a *model.Address) (int64, error)
	UpdateAddress(ctx context.Context, a *model.Address) error
	DeleteAddress(ctx context.Context, userID, addressID int64) error
	CreateOrderFromCart(ctx context.Context, userID, addressID int64, number string) (int64, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error)
	GetOrderWithItems(ctx context.Context, userID, orderID int64) (*model.OrderWithItems, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	SetSessionRef(ctx context.Context, orderID int64, sessionRef string) error
	GetOrderBySessionRef(ctx context.Context, sessionRef string) (*model.Order, error)
	ApplySettlement(ctx context.Context, orderID int64, paymentRef string, status model.PaymentStatus) (bool, error)
}

// PaymentGateway описывает контракт клиента платёжного провайдера.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*payment.ProviderOrder, error)
	KeyID() string
}

// Service содержит бизнес-логику сервиса магазина.
type Service struct {
	repo          Repository
	gateway       PaymentGateway
	keySecret     string
	webhookSecret string
	currency      string
}

// NewService создаёт сервис с указанным репозиторием и платёжным шлюзом.
// Шлюз может быть nil: тогда платёжные операции недоступны.
func NewService(repo Repository, gateway PaymentGateway, keySecret, webhookSecret, currency string) *Service {
	return &Service{
		repo:          repo,
		gateway:       gateway,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	return s.repo.CreateUser(ctx, login, hashed)
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

// IsAdmin сообщает, имеет ли пользователь права администратора каталога.
func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	role, err := s.repo.GetUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return role == model.UserRoleAdmin, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// GetProducts возвращает активные товары каталога.
func (s *Service) GetProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.GetActiveProducts(ctx)
}

// GetProductBySlug возвращает активный товар по slug.
func (s *Service) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return s.repo.GetProductBySlug(ctx, slug)
}

// CreateProduct создаёт товар каталога.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) (int64, error) {
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct обновляет товар каталога. Остаток товара этим путём не меняется.
func (s *Service) UpdateProduct(ctx context.Context, p *model.Product) error {
	return s.repo.UpdateProduct(ctx, p)
}

// GetCart возвращает корзину пользователя с актуальными данными товаров.
func (s *Service) GetCart(ctx context.Context, userID int64) ([]model.CartItemWithProduct, error) {
	return s.repo.GetCartItems(ctx, userID)
}

// AddToCart добавляет товар в корзину пользователя.
func (s *Service) AddToCart(ctx context.Context, userID, productID, quantity int64) error {
	if quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	return s.repo.AddCartItem(ctx, userID, productID, quantity)
}

// SetCartQuantity устанавливает количество позиции корзины; ноль удаляет позицию.
func (s *Service) SetCartQuantity(ctx context.Context, userID, productID, quantity int64) error {
	if quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	return s.repo.SetCartItemQuantity(ctx, userID, productID, quantity)
}

// RemoveFromCart удаляет позицию корзины.
func (s *Service) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	return s.repo.DeleteCartItem(ctx, userID, productID)
}

// GetAddresses возвращает адресную книгу пользователя.
func (s *Service) GetAddresses(ctx context.Context, userID int64) ([]model.Address, error) {
	return s.repo.GetAddressesByUser(ctx, userID)
}

// GetAddress возвращает адрес пользователя.
func (s *Service) GetAddress(ctx context.Context, userID, addressID int64) (*model.Address, error) {
	return s.repo.GetAddress(ctx, userID, addressID)
}

// CreateAddress создаёт адрес в адресной книге пользователя.
func (s *Service) CreateAddress(ctx context.Context, a *model.Address) (int64, error) {
	return s.repo.CreateAddress(ctx, a)
}

// UpdateAddress обновляет адрес пользователя.
func (s *Service) UpdateAddress(ctx context.Context, a *model.Address) error {
	return s.repo.UpdateAddress(ctx, a)
}

// DeleteAddress удаляет адрес пользователя.
func (s *Service) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	return s.repo.DeleteAddress(ctx, userID, addressID)
}
