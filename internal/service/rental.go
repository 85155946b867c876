package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/carsharing-system/internal/model"
)

// AddRental создаёт новую аренду. Резервирование единицы остатка и запись аренды
// выполняются одной транзакцией в репозитории: при неудачном резервировании
// аренда не создаётся.
func (s *Service) AddRental(ctx context.Context, actor Actor, carID int64, returnDate time.Time) (*model.Rental, error) {
	today := s.today()
	returnDate = truncateToDay(returnDate)
	if returnDate.Before(today) {
		return nil, ErrInvalidReturnDate
	}

	car, err := s.repo.GetCarByID(ctx, carID)
	if err != nil {
		return nil, err
	}

	rental, err := s.repo.CreateRental(ctx, actor.UserID, car.ID, today, returnDate)
	if err != nil {
		return nil, err
	}

	if user, err := s.repo.GetUserByID(ctx, actor.UserID); err == nil {
		s.notify(ctx, rentalCreatedMessage(rental, car, user))
	} else {
		s.logger.Warn("load user for notification", zap.Error(err), zap.Int64("userID", actor.UserID))
	}

	return rental, nil
}

// GetRentalByID возвращает аренду; чужие аренды доступны только менеджеру.
func (s *Service) GetRentalByID(ctx context.Context, actor Actor, id int64) (*model.Rental, error) {
	rental, err := s.repo.GetRentalByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rental.UserID); err != nil {
		return nil, err
	}
	return rental, nil
}

// ListRentals возвращает страницу аренд. Не-менеджер всегда видит только свои аренды.
func (s *Service) ListRentals(ctx context.Context, actor Actor, userID *int64, isActive *bool, page, size int) ([]model.Rental, int64, error) {
	if !actor.Manager {
		own := actor.UserID
		userID = &own
	}
	return s.repo.ListRentals(ctx, userID, isActive, page, size)
}

// ReturnRental фиксирует возврат автомобиля: выставляет фактическую дату возврата
// и освобождает единицу остатка. При просроченном возврате дополнительно создаётся
// платёжная сессия штрафа; её сбой логируется и не откатывает возврат.
func (s *Service) ReturnRental(ctx context.Context, actor Actor, rentalID int64) (*model.Rental, error) {
	rental, err := s.repo.GetRentalByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rental.UserID); err != nil {
		return nil, err
	}

	today := s.today()
	if err := s.repo.ReturnRental(ctx, rentalID, today); err != nil {
		return nil, err
	}
	rental.ActualReturnDate = &today

	car, carErr := s.repo.GetCarByID(ctx, rental.CarID)
	user, userErr := s.repo.GetUserByID(ctx, rental.UserID)
	if carErr == nil && userErr == nil {
		s.notify(ctx, carReturnedMessage(rental, car, user))
	} else {
		s.logger.Warn("load rental details for notification",
			zap.NamedError("carError", carErr), zap.NamedError("userError", userErr),
			zap.Int64("rentalID", rentalID))
	}

	if today.After(rental.ReturnDate) {
		fine, err := s.Checkout(ctx, actor, rentalID, model.PaymentTypeFine)
		if err != nil {
			// Возврат — приоритетный побочный эффект, сбой штрафа его не отменяет.
			s.logger.Error("create fine payment session",
				zap.Error(err), zap.Int64("rentalID", rentalID))
		} else {
			s.notify(ctx, fineIssuedMessage(rental, fine))
		}
	}

	return rental, nil
}
