// Package model содержит доменные сущности сервиса магазина.
package model

import "time"

// UserRole описывает роль пользователя.
type UserRole string

const (
	UserRoleCustomer UserRole = "user"
	UserRoleAdmin    UserRole = "admin"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         UserRole
	CreatedAt    time.Time
}

// Product описывает товар каталога. Цена хранится в минимальных единицах валюты.
// Снятие товара с продажи выполняется флагом IsActive: строка не удаляется,
// чтобы позиции исторических заказов оставались разрешимыми.
type Product struct {
	ID         int64
	Name       string
	Slug       string
	PriceCents int64
	Stock      int64
	Images     []string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartItemWithProduct объединяет позицию корзины с актуальными данными товара.
type CartItemWithProduct struct {
	ProductID  int64
	Quantity   int64
	Name       string
	Slug       string
	PriceCents int64
	Images     []string
	Stock      int64
	IsActive   bool
}

// Address описывает адрес доставки из адресной книги пользователя.
type Address struct {
	ID        int64
	UserID    int64
	Name      string
	Line1     string
	Line2     string
	City      string
	State     string
	Pincode   string
	Phone     string
	IsDefault bool
	CreatedAt time.Time
}

// ShippingAddress — неизменяемый снимок адреса, скопированный в заказ при его создании.
// Последующие правки адресной книги не затрагивают уже оформленные заказы.
type ShippingAddress struct {
	Name    string
	Line1   string
	Line2   string
	City    string
	State   string
	Pincode string
	Phone   string
}

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus описывает статус оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order описывает заказ пользователя. Создаётся один раз в транзакции оформления;
// после создания меняются только статусы и платёжные ссылки.
type Order struct {
	ID              int64
	UserID          int64
	Number          string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	PaymentRef      string
	SessionRef      string
	TotalCents      int64
	ShippingAddress ShippingAddress
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem — неизменяемая позиция заказа с ценой, зафиксированной в момент оформления.
type OrderItem struct {
	ID             int64
	OrderID        int64
	ProductID      int64
	Quantity       int64
	UnitPriceCents int64
	ProductName    string
	ProductSlug    string
}

// OrderWithItems объединяет заказ с его позициями для отображения.
type OrderWithItems struct {
	Order
	Items []OrderItem
}
