package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/carsharing-system/internal/model"
	"github.com/mmeshcher/carsharing-system/internal/repository"
	"github.com/mmeshcher/carsharing-system/internal/stripe"
)

// Коэффициент штрафа за просрочку: полторы суточные ставки за каждый день.
const (
	overdueMultiplierNum = 3
	overdueMultiplierDen = 2
)

func (s *Service) successURL() string {
	return s.baseURL + "/api/payments/success?session_id={CHECKOUT_SESSION_ID}"
}

func (s *Service) cancelURL() string {
	return s.baseURL + "/api/payments/cancel?session_id={CHECKOUT_SESSION_ID}"
}

// paymentAmountCents вычисляет стоимость аренды: суточная ставка за каждые
// полные сутки между датой аренды и ожидаемой датой возврата, минимум за одни сутки.
func paymentAmountCents(rental *model.Rental, car *model.Car) int64 {
	days := daysBetween(rental.RentalDate, rental.ReturnDate)
	if days < 1 {
		days = 1
	}
	return car.DailyFeeCents * days
}

// fineAmountCents вычисляет штраф за просрочку: полторы суточные ставки
// за каждый день после ожидаемой даты возврата.
func fineAmountCents(rental *model.Rental, car *model.Car) (int64, error) {
	if rental.ActualReturnDate == nil {
		return 0, ErrNotReturned
	}
	overdueDays := daysBetween(rental.ReturnDate, *rental.ActualReturnDate)
	if overdueDays <= 0 {
		return 0, ErrNoOverdueDays
	}
	return car.DailyFeeCents * overdueDays * overdueMultiplierNum / overdueMultiplierDen, nil
}

func amountCents(rental *model.Rental, car *model.Car, pType model.PaymentType) (int64, error) {
	switch pType {
	case model.PaymentTypePayment:
		return paymentAmountCents(rental, car), nil
	case model.PaymentTypeFine:
		return fineAmountCents(rental, car)
	default:
		return 0, fmt.Errorf("unknown payment type: %s", pType)
	}
}

// handleStalePending проверяет существующий PENDING-платёж пары (аренда, тип).
// Если сессия у провайдера всё ещё открыта, новая не создаётся. Закрытую,
// истёкшую или недоступную сессию платёж переживает как отменённый.
func (s *Service) handleStalePending(ctx context.Context, rentalID int64, pType model.PaymentType) error {
	pending, err := s.repo.GetPendingPayment(ctx, rentalID, pType)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil
		}
		return err
	}

	session, err := s.gateway.GetSession(ctx, pending.SessionID)
	if err == nil && session.Status == stripe.SessionStatusOpen {
		return ErrSessionActive
	}
	// Ошибка провайдера здесь намеренно приравнена к неоткрытой сессии.
	return s.repo.UpdatePaymentStatus(ctx, pending.ID, model.PaymentStatusCancelled)
}

// Checkout создаёт платёжную сессию для аренды и сохраняет PENDING-платёж.
// Сумма вычисляется один раз и больше не пересчитывается.
func (s *Service) Checkout(ctx context.Context, actor Actor, rentalID int64, pType model.PaymentType) (*model.Payment, error) {
	rental, err := s.repo.GetRentalByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rental.UserID); err != nil {
		return nil, err
	}

	if pType == model.PaymentTypeFine && rental.ActualReturnDate == nil {
		return nil, ErrNotReturned
	}

	if err := s.handleStalePending(ctx, rentalID, pType); err != nil {
		return nil, err
	}

	paid, err := s.repo.HasPaidPayment(ctx, rentalID, pType)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ErrRentalPaid
	}

	car, err := s.repo.GetCarByID(ctx, rental.CarID)
	if err != nil {
		return nil, err
	}

	amount, err := amountCents(rental, car, pType)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateSession(ctx, amount, s.successURL(), s.cancelURL())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	payment := &model.Payment{
		RentalID:    rentalID,
		Type:        pType,
		Status:      model.PaymentStatusPending,
		SessionID:   session.ID,
		SessionURL:  session.URL,
		AmountCents: amount,
	}

	id, err := s.repo.CreatePayment(ctx, payment)
	if err != nil {
		return nil, err
	}
	payment.ID = id

	return payment, nil
}

// HandleSuccess переводит платёж в PAID после подтверждения провайдером.
// Повторный вызов для уже оплаченного платежа возвращает его без изменений.
func (s *Service) HandleSuccess(ctx context.Context, sessionID string) (*model.Payment, error) {
	payment, err := s.repo.GetPaymentBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if payment.Status == model.PaymentStatusPaid {
		return payment, nil
	}

	session, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if session.PaymentStatus != stripe.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotPaid, session.PaymentStatus)
	}

	if err := s.repo.UpdatePaymentStatus(ctx, payment.ID, model.PaymentStatusPaid); err != nil {
		return nil, err
	}
	payment.Status = model.PaymentStatusPaid

	s.sendPaymentSuccessNotification(ctx, payment)

	return payment, nil
}

func (s *Service) sendPaymentSuccessNotification(ctx context.Context, payment *model.Payment) {
	rental, err := s.repo.GetRentalByID(ctx, payment.RentalID)
	if err != nil {
		s.logger.Warn("load rental for notification",
			zap.Error(err), zap.Int64("paymentID", payment.ID))
		return
	}
	user, err := s.repo.GetUserByID(ctx, rental.UserID)
	if err != nil {
		s.logger.Warn("load user for notification",
			zap.Error(err), zap.Int64("userID", rental.UserID))
		return
	}
	car, err := s.repo.GetCarByID(ctx, rental.CarID)
	if err != nil {
		s.logger.Warn("load car for notification",
			zap.Error(err), zap.Int64("carID", rental.CarID))
		return
	}
	s.notify(ctx, paymentSuccessMessage(payment, rental, car, user, s.today()))
}

// HandleCancel переводит платёж в CANCELLED. Оплаченный платёж отменить нельзя,
// повторная отмена — no-op.
func (s *Service) HandleCancel(ctx context.Context, sessionID string) (*model.Payment, error) {
	payment, err := s.repo.GetPaymentBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if payment.Status == model.PaymentStatusCancelled {
		return payment, nil
	}
	if payment.Status == model.PaymentStatusPaid {
		return nil, ErrPaymentPaid
	}

	if err := s.repo.UpdatePaymentStatus(ctx, payment.ID, model.PaymentStatusCancelled); err != nil {
		return nil, err
	}
	payment.Status = model.PaymentStatusCancelled

	return payment, nil
}

// RenewSession открывает новую платёжную сессию для отменённого или истёкшего
// платежа на первоначально вычисленную сумму. PENDING-платёж с ещё открытой
// сессией продлевать нечего, оплаченный — нельзя.
func (s *Service) RenewSession(ctx context.Context, actor Actor, paymentID int64) (*model.Payment, error) {
	payment, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	rental, err := s.repo.GetRentalByID(ctx, payment.RentalID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rental.UserID); err != nil {
		return nil, err
	}

	if payment.Status == model.PaymentStatusPaid {
		return nil, ErrPaymentPaid
	}

	if payment.Status == model.PaymentStatusPending {
		session, err := s.gateway.GetSession(ctx, payment.SessionID)
		if err == nil && session.Status == stripe.SessionStatusOpen {
			return nil, ErrSessionStillOpen
		}
		if err := s.repo.UpdatePaymentStatus(ctx, payment.ID, model.PaymentStatusCancelled); err != nil {
			return nil, err
		}
		payment.Status = model.PaymentStatusCancelled
	}

	session, err := s.gateway.CreateSession(ctx, payment.AmountCents, s.successURL(), s.cancelURL())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	if err := s.repo.UpdatePaymentSession(ctx, payment.ID, session.ID, session.URL, model.PaymentStatusPending); err != nil {
		return nil, err
	}
	payment.SessionID = session.ID
	payment.SessionURL = session.URL
	payment.Status = model.PaymentStatusPending

	return payment, nil
}

// GetPaymentByID возвращает платёж; чужие платежи доступны только менеджеру.
func (s *Service) GetPaymentByID(ctx context.Context, actor Actor, id int64) (*model.Payment, error) {
	payment, err := s.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rental, err := s.repo.GetRentalByID(ctx, payment.RentalID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rental.UserID); err != nil {
		return nil, err
	}
	return payment, nil
}

// ListPayments возвращает страницу платежей. Не-менеджер всегда видит только свои.
func (s *Service) ListPayments(ctx context.Context, actor Actor, userID *int64, page, size int) ([]model.Payment, int64, error) {
	if !actor.Manager {
		own := actor.UserID
		userID = &own
	}
	return s.repo.ListPayments(ctx, userID, page, size)
}
