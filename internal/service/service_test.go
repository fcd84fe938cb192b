package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
)

type settleCall struct {
	orderID    int64
	paymentRef string
	status     model.PaymentStatus
}

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error

	role    model.UserRole
	roleErr error

	createOrderErrs    []error
	createOrderID      int64
	createOrderNumbers []string

	order    *model.Order
	orderErr error

	orderWithItems    *model.OrderWithItems
	orderWithItemsErr error

	orderBySession    *model.Order
	orderBySessionErr error

	sessionRefs map[int64]string
	settled     []settleCall

	cartItems []model.CartItemWithProduct
	cartErr   error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) GetUserRole(ctx context.Context, userID int64) (model.UserRole, error) {
	return s.role, s.roleErr
}

func (s *stubRepo) GetActiveProducts(ctx context.Context) ([]model.Product, error) {
	return nil, nil
}

func (s *stubRepo) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return nil, repository.ErrProductNotFound
}

func (s *stubRepo) CreateProduct(ctx context.Context, p *model.Product) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpdateProduct(ctx context.Context, p *model.Product) error { return nil }

func (s *stubRepo) GetCartItems(ctx context.Context, userID int64) ([]model.CartItemWithProduct, error) {
	return s.cartItems, s.cartErr
}

func (s *stubRepo) AddCartItem(ctx context.Context, userID, productID, quantity int64) error {
	return nil
}

func (s *stubRepo) SetCartItemQuantity(ctx context.Context, userID, productID, quantity int64) error {
	return nil
}

func (s *stubRepo) DeleteCartItem(ctx context.Context, userID, productID int64) error { return nil }

func (s *stubRepo) GetAddressesByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	return nil, nil
}

func (s *stubRepo) GetAddress(ctx context.Context, userID, addressID int64) (*model.Address, error) {
	return nil, repository.ErrAddressNotFound
}

func (s *stubRepo) CreateAddress(ctx context.Context, a *model.Address) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpdateAddress(ctx context.Context, a *model.Address) error { return nil }

func (s *stubRepo) DeleteAddress(ctx context.Context, userID, addressID int64) error { return nil }

func (s *stubRepo) CreateOrderFromCart(ctx context.Context, userID, addressID int64, number string) (int64, error) {
	s.createOrderNumbers = append(s.createOrderNumbers, number)
	if len(s.createOrderErrs) > 0 {
		err := s.createOrderErrs[0]
		s.createOrderErrs = s.createOrderErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return s.createOrderID, nil
}

func (s *stubRepo) GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubRepo) GetOrderWithItems(ctx context.Context, userID, orderID int64) (*model.OrderWithItems, error) {
	return s.orderWithItems, s.orderWithItemsErr
}

func (s *stubRepo) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) SetSessionRef(ctx context.Context, orderID int64, sessionRef string) error {
	if s.sessionRefs == nil {
		s.sessionRefs = make(map[int64]string)
	}
	s.sessionRefs[orderID] = sessionRef
	return nil
}

func (s *stubRepo) GetOrderBySessionRef(ctx context.Context, sessionRef string) (*model.Order, error) {
	return s.orderBySession, s.orderBySessionErr
}

func (s *stubRepo) ApplySettlement(ctx context.Context, orderID int64, paymentRef string, status model.PaymentStatus) (bool, error) {
	s.settled = append(s.settled, settleCall{orderID: orderID, paymentRef: paymentRef, status: status})
	return true, nil
}

func newTestService(repo *stubRepo, gateway PaymentGateway) *Service {
	return NewService(repo, gateway, "key-secret", "webhook-secret", "INR")
}

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user", "pass")
	b := hashPassword("user", "pass")
	c := hashPassword("user", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: repository.ErrUserExists,
	}
	svc := newTestService(repo, nil)

	_, err := svc.RegisterUser(context.Background(), "login", "pass")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	hashed := hashPassword("user", "correct")
	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Login:        "user",
			PasswordHash: hashed,
		},
	}

	svc := newTestService(repo, nil)

	_, err := svc.AuthenticateUser(context.Background(), "user", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestIsAdmin(t *testing.T) {
	svc := newTestService(&stubRepo{role: model.UserRoleAdmin}, nil)

	isAdmin, err := svc.IsAdmin(context.Background(), 1)
	if err != nil {
		t.Fatalf("IsAdmin error: %v", err)
	}
	if !isAdmin {
		t.Fatalf("expected admin role")
	}

	svc = newTestService(&stubRepo{role: model.UserRoleCustomer}, nil)

	isAdmin, err = svc.IsAdmin(context.Background(), 1)
	if err != nil {
		t.Fatalf("IsAdmin error: %v", err)
	}
	if isAdmin {
		t.Fatalf("customer must not be admin")
	}
}

func TestAddToCart_Validation(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	if err := svc.AddToCart(context.Background(), 1, 2, 0); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
	if err := svc.AddToCart(context.Background(), 1, 2, -1); err == nil {
		t.Fatalf("expected error for negative quantity")
	}
}

func TestSetCartQuantity_Validation(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	if err := svc.SetCartQuantity(context.Background(), 1, 2, -5); err == nil {
		t.Fatalf("expected error for negative quantity")
	}
	if err := svc.SetCartQuantity(context.Background(), 1, 2, 0); err != nil {
		t.Fatalf("zero quantity must be accepted as removal, got %v", err)
	}
}
