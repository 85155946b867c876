// Package handler содержит HTTP-обработчики API сервиса каршеринга.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/carsharing-system/internal/middleware"
	"github.com/mmeshcher/carsharing-system/internal/model"
	"github.com/mmeshcher/carsharing-system/internal/repository"
	"github.com/mmeshcher/carsharing-system/internal/service"
)

const dateLayout = "2006-01-02"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, password, firstName, lastName string) (int64, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetProfile(ctx context.Context, actor service.Actor) (*model.User, error)
	UpdateProfile(ctx context.Context, actor service.Actor, email, password, firstName, lastName string) (*model.User, error)
	UpdateUserRole(ctx context.Context, userID int64, role model.UserRole) (*model.User, error)

	AddCar(ctx context.Context, car *model.Car) (*model.Car, error)
	GetCarByID(ctx context.Context, id int64) (*model.Car, error)
	ListCars(ctx context.Context, page, size int) ([]model.Car, int64, error)
	UpdateCar(ctx context.Context, car *model.Car) error
	DeleteCar(ctx context.Context, id int64) error

	AddRental(ctx context.Context, actor service.Actor, carID int64, returnDate time.Time) (*model.Rental, error)
	GetRentalByID(ctx context.Context, actor service.Actor, id int64) (*model.Rental, error)
	ListRentals(ctx context.Context, actor service.Actor, userID *int64, isActive *bool, page, size int) ([]model.Rental, int64, error)
	ReturnRental(ctx context.Context, actor service.Actor, rentalID int64) (*model.Rental, error)

	Checkout(ctx context.Context, actor service.Actor, rentalID int64, pType model.PaymentType) (*model.Payment, error)
	HandleSuccess(ctx context.Context, sessionID string) (*model.Payment, error)
	HandleCancel(ctx context.Context, sessionID string) (*model.Payment, error)
	RenewSession(ctx context.Context, actor service.Actor, paymentID int64) (*model.Payment, error)
	GetPaymentByID(ctx context.Context, actor service.Actor, id int64) (*model.Payment, error)
	ListPayments(ctx context.Context, actor service.Actor, userID *int64, page, size int) ([]model.Payment, int64, error)
}

// Handler реализует HTTP-обработчики API сервиса каршеринга.
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

// writeError отображает доменные ошибки на HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrCarNotFound),
		errors.Is(err, repository.ErrRentalNotFound),
		errors.Is(err, repository.ErrPaymentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, service.ErrInvalidReturnDate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrAlreadyReturned),
		errors.Is(err, repository.ErrNegativeInventory),
		errors.Is(err, service.ErrRentalPaid),
		errors.Is(err, service.ErrSessionActive),
		errors.Is(err, service.ErrSessionStillOpen),
		errors.Is(err, service.ErrNotReturned),
		errors.Is(err, service.ErrNoOverdueDays),
		errors.Is(err, service.ErrPaymentPaid),
		errors.Is(err, service.ErrSessionNotPaid):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrProvider):
		h.logger.Error("payment provider error", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// actorFromRequest извлекает аутентифицированного пользователя из контекста запроса.
func actorFromRequest(r *http.Request) (service.Actor, bool) {
	id, role, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: id, Manager: role == model.RoleManager}, true
}

func idFromURL(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(urlParam(r, param), 10, 64)
}

// parsePagination читает параметры page и size с разумными значениями по умолчанию.
func parsePagination(r *http.Request) (int, int) {
	page := 0
	size := 20

	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p >= 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("size"); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 && s <= 100 {
			size = s
		}
	}

	return page, size
}

// pageResponse — общий конверт страничных ответов.
type pageResponse struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID, model.RoleCustomer)
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.writeError(w, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.ID, user.Role)
	w.WriteHeader(http.StatusOK)
}
