// Package model содержит доменные сущности сервисов ordermart.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// IsValidOrderStatus проверяет, что строка является допустимым статусом заказа.
func IsValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCanceled:
		return true
	}
	return false
}

// Order описывает заказ пользователя. Итоговая сумма всегда равна сумме
// подытогов позиций, округлённой до двух знаков.
type Order struct {
	ID         int64
	UserID     int64
	Status     OrderStatus
	TotalPrice decimal.Decimal
	Deleted    bool
	Lines      []OrderLine
	CreatedAt  time.Time
}

// OrderLine описывает позицию заказа. Цена фиксируется на момент оформления
// и не пересчитывается при изменении каталога.
type OrderLine struct {
	ID        int64
	OrderID   int64
	ItemID    int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

// Item описывает товар каталога с уникальным именем.
type Item struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	CreatedAt time.Time
}

// Role описывает роль учётной записи.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Credential описывает учётные данные, связанные один-к-одному
// с пользователем в user-service.
type Credential struct {
	ID           int64
	UserID       int64
	Login        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// User представляет запись пользователя в user-service.
type User struct {
	ID        int64
	Name      string
	Surname   string
	Email     string
	Active    bool
	CreatedAt time.Time
}

// PaymentCard описывает платёжную карту пользователя.
type PaymentCard struct {
	ID         int64
	UserID     int64
	Number     string
	Holder     string
	ExpiryDate string
	CreatedAt  time.Time
}

// PaymentStatus описывает исход платежа.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Payment описывает платёж по заказу.
type Payment struct {
	ID        int64
	OrderID   int64
	UserID    int64
	Status    PaymentStatus
	Amount    decimal.Decimal
	CreatedAt time.Time
}
