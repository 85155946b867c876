// Package service реализует бизнес-логику сервиса каршеринга.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/carsharing-system/internal/model"
	"github.com/mmeshcher/carsharing-system/internal/repository"
	"github.com/mmeshcher/carsharing-system/internal/stripe"
)

// ErrForbidden возвращается, когда пользователь пытается работать с чужой арендой или платежом.
var (
	ErrForbidden = errors.New("access denied")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidReturnDate возвращается, если ожидаемая дата возврата раньше сегодняшней.
	ErrInvalidReturnDate = errors.New("return date must be today or later")
	// ErrRentalPaid возвращается при попытке оплатить уже оплаченную аренду.
	ErrRentalPaid = errors.New("rental has already been paid for")
	// ErrSessionActive возвращается, если для аренды уже открыта действующая платёжная сессия.
	ErrSessionActive = errors.New("active payment session already exists")
	// ErrSessionStillOpen возвращается при продлении платежа с ещё действующей сессией.
	ErrSessionStillOpen = errors.New("nothing to renew: session is still active")
	// ErrNotReturned возвращается при попытке выставить штраф до возврата автомобиля.
	ErrNotReturned = errors.New("car must be returned first")
	// ErrNoOverdueDays возвращается, если автомобиль возвращён без просрочки.
	ErrNoOverdueDays = errors.New("no overdue days for fine calculation")
	// ErrPaymentPaid возвращается при попытке отменить или продлить оплаченный платёж.
	ErrPaymentPaid = errors.New("payment has already been paid")
	// ErrSessionNotPaid возвращается, если провайдер не подтвердил оплату сессии.
	ErrSessionNotPaid = errors.New("payment session is not paid")
	// ErrProvider оборачивает ошибки обращения к платёжному провайдеру.
	ErrProvider = errors.New("payment provider error")
)

// Actor описывает аутентифицированного пользователя, выполняющего операцию.
type Actor struct {
	UserID  int64
	Manager bool
}

// authorize реализует общую политику "владелец или менеджер".
func authorize(actor Actor, ownerID int64) error {
	if actor.Manager || actor.UserID == ownerID {
		return nil
	}
	return ErrForbidden
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, email string, passwordHash []byte, firstName, lastName string) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id int64, email string, passwordHash []byte, firstName, lastName string) error
	UpdateUserRole(ctx context.Context, id int64, role model.UserRole) error

	CreateCar(ctx context.Context, car *model.Car) (int64, error)
	GetCarByID(ctx context.Context, id int64) (*model.Car, error)
	ListCars(ctx context.Context, page, size int) ([]model.Car, int64, error)
	UpdateCar(ctx context.Context, car *model.Car) error
	DeleteCar(ctx context.Context, id int64) error
	ApplyInventoryDelta(ctx context.Context, carID int64, delta int) error

	CreateRental(ctx context.Context, userID, carID int64, rentalDate, returnDate time.Time) (*model.Rental, error)
	GetRentalByID(ctx context.Context, id int64) (*model.Rental, error)
	ListRentals(ctx context.Context, userID *int64, isActive *bool, page, size int) ([]model.Rental, int64, error)
	ReturnRental(ctx context.Context, rentalID int64, actualReturnDate time.Time) error
	GetOverdueRentals(ctx context.Context, today time.Time) ([]repository.OverdueRental, error)

	CreatePayment(ctx context.Context, p *model.Payment) (int64, error)
	GetPaymentByID(ctx context.Context, id int64) (*model.Payment, error)
	GetPaymentBySessionID(ctx context.Context, sessionID string) (*model.Payment, error)
	GetPendingPayment(ctx context.Context, rentalID int64, pType model.PaymentType) (*model.Payment, error)
	HasPaidPayment(ctx context.Context, rentalID int64, pType model.PaymentType) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error
	UpdatePaymentSession(ctx context.Context, id int64, sessionID, sessionURL string, status model.PaymentStatus) error
	ListPayments(ctx context.Context, userID *int64, page, size int) ([]model.Payment, int64, error)
	GetPaymentsByStatus(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error)
}

// PaymentGateway описывает контракт платёжного провайдера.
type PaymentGateway interface {
	CreateSession(ctx context.Context, amountCents int64, successURL, cancelURL string) (*stripe.Session, error)
	GetSession(ctx context.Context, sessionID string) (*stripe.Session, error)
}

// Notifier описывает канал уведомлений оператора. Отправка best-effort.
type Notifier interface {
	Send(ctx context.Context, message string)
}

// Service содержит бизнес-логику сервиса каршеринга.
type Service struct {
	repo     Repository
	gateway  PaymentGateway
	notifier Notifier
	logger   *zap.Logger
	baseURL  string
	now      func() time.Time
}

// NewService создаёт новый сервис. baseURL используется для callback-ссылок платёжных сессий.
func NewService(repo Repository, gateway PaymentGateway, notifier Notifier, logger *zap.Logger, baseURL string) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		baseURL:  baseURL,
		now:      time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) notify(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(ctx, message)
}

// today возвращает текущую дату без времени.
func (s *Service) today() time.Time {
	return truncateToDay(s.now())
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween возвращает число полных суток между двумя датами.
func daysBetween(from, to time.Time) int64 {
	return int64(truncateToDay(to).Sub(truncateToDay(from)) / (24 * time.Hour))
}

// RegisterUser регистрирует нового пользователя с ролью CUSTOMER.
func (s *Service) RegisterUser(ctx context.Context, email, password, firstName, lastName string) (int64, error) {
	hashed := hashPassword(email, password)
	id, err := s.repo.CreateUser(ctx, email, hashed, firstName, lastName)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет email и пароль пользователя и возвращает его запись.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	hashed := hashPassword(email, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func hashPassword(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}

// GetProfile возвращает профиль текущего пользователя.
func (s *Service) GetProfile(ctx context.Context, actor Actor) (*model.User, error) {
	return s.repo.GetUserByID(ctx, actor.UserID)
}

// UpdateProfile обновляет профиль текущего пользователя. Хэш пароля
// пересчитывается, так как входит в него и email.
func (s *Service) UpdateProfile(ctx context.Context, actor Actor, email, password, firstName, lastName string) (*model.User, error) {
	hashed := hashPassword(email, password)
	if err := s.repo.UpdateUserProfile(ctx, actor.UserID, email, hashed, firstName, lastName); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, actor.UserID)
}

// UpdateUserRole назначает пользователю новую роль. Доступно только менеджеру,
// проверка роли выполняется на уровне маршрутизации.
func (s *Service) UpdateUserRole(ctx context.Context, userID int64, role model.UserRole) (*model.User, error) {
	if err := s.repo.UpdateUserRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, userID)
}

// AddCar сохраняет новый автомобиль каталога.
func (s *Service) AddCar(ctx context.Context, car *model.Car) (*model.Car, error) {
	id, err := s.repo.CreateCar(ctx, car)
	if err != nil {
		return nil, err
	}
	car.ID = id
	return car, nil
}

// GetCarByID возвращает автомобиль по идентификатору.
func (s *Service) GetCarByID(ctx context.Context, id int64) (*model.Car, error) {
	return s.repo.GetCarByID(ctx, id)
}

// ListCars возвращает страницу автомобилей и общее количество.
func (s *Service) ListCars(ctx context.Context, page, size int) ([]model.Car, int64, error) {
	return s.repo.ListCars(ctx, page, size)
}

// UpdateCar обновляет данные автомобиля каталога.
func (s *Service) UpdateCar(ctx context.Context, car *model.Car) error {
	return s.repo.UpdateCar(ctx, car)
}

// DeleteCar помечает автомобиль удалённым.
func (s *Service) DeleteCar(ctx context.Context, id int64) error {
	return s.repo.DeleteCar(ctx, id)
}
