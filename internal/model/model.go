// Package model содержит доменные сущности сервиса каршеринга.
package model

import "time"

// UserRole описывает роль пользователя в системе.
type UserRole string

const (
	RoleCustomer UserRole = "CUSTOMER"
	RoleManager  UserRole = "MANAGER"
)

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64
	Email        string
	PasswordHash []byte
	FirstName    string
	LastName     string
	Role         UserRole
	CreatedAt    time.Time
}

// CarType описывает тип кузова автомобиля.
type CarType string

const (
	CarTypeSedan     CarType = "SEDAN"
	CarTypeSUV       CarType = "SUV"
	CarTypeHatchback CarType = "HATCHBACK"
	CarTypeUniversal CarType = "UNIVERSAL"
)

// Car описывает автомобиль автопарка. DailyFeeCents — суточная ставка в центах,
// Inventory — количество доступных машин этой модели.
type Car struct {
	ID            int64
	Model         string
	Brand         string
	Type          CarType
	Inventory     int
	DailyFeeCents int64
}

// Rental описывает аренду автомобиля. ActualReturnDate равен nil, пока аренда
// активна, и выставляется ровно один раз при возврате.
type Rental struct {
	ID               int64
	UserID           int64
	CarID            int64
	RentalDate       time.Time
	ReturnDate       time.Time
	ActualReturnDate *time.Time
}

// IsActive сообщает, что автомобиль ещё не возвращён.
func (r *Rental) IsActive() bool {
	return r.ActualReturnDate == nil
}

// PaymentType описывает вид платёжного обязательства.
type PaymentType string

const (
	PaymentTypePayment PaymentType = "PAYMENT"
	PaymentTypeFine    PaymentType = "FINE"
)

// PaymentStatus описывает состояние платёжной сессии.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
)

// Payment описывает платёж за аренду или штраф. AmountCents вычисляется один
// раз при создании сессии и не пересчитывается при продлении.
type Payment struct {
	ID          int64
	RentalID    int64
	Type        PaymentType
	Status      PaymentStatus
	SessionID   string
	SessionURL  string
	AmountCents int64
}
