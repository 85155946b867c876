package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/carsharing-system/internal/model"
	"github.com/mmeshcher/carsharing-system/internal/stripe"
)

// StartOverdueScan запускает периодический отчёт по просроченным арендам.
// Сканирование только читает данные и отправляет одно сводное уведомление за проход.
func (s *Service) StartOverdueScan(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.scanOverdueRentals(ctx)
			}
		}
	}()
}

func (s *Service) scanOverdueRentals(ctx context.Context) {
	rentals, err := s.repo.GetOverdueRentals(ctx, s.today())
	if err != nil {
		s.logger.Error("select overdue rentals", zap.Error(err))
		return
	}

	if len(rentals) == 0 {
		s.notify(ctx, noOverdueMessage)
		return
	}

	s.notify(ctx, buildOverdueMessage(rentals))
}

// StartExpiryScan запускает периодическую сверку PENDING-платежей с провайдером.
// Платежи с истёкшими сессиями переводятся в EXPIRED.
func (s *Service) StartExpiryScan(ctx context.Context, interval time.Duration) {
	if s.gateway == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.checkPaymentExpiration(ctx)
			}
		}
	}()
}

func (s *Service) checkPaymentExpiration(ctx context.Context) {
	pending, err := s.repo.GetPaymentsByStatus(ctx, model.PaymentStatusPending)
	if err != nil {
		s.logger.Error("select pending payments", zap.Error(err))
		return
	}

	for _, payment := range pending {
		session, err := s.gateway.GetSession(ctx, payment.SessionID)
		if err != nil {
			// Ошибка по одному платежу не прерывает проход по остальным.
			s.logger.Info("check payment session",
				zap.Error(err), zap.String("sessionID", payment.SessionID))
			continue
		}

		if session.Status != stripe.SessionStatusExpired {
			continue
		}

		if err := s.repo.UpdatePaymentStatus(ctx, payment.ID, model.PaymentStatusExpired); err != nil {
			s.logger.Error("expire payment",
				zap.Error(err), zap.Int64("paymentID", payment.ID))
		}
	}
}
