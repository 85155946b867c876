package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mmeshcher/carsharing-system/internal/model"
	"github.com/mmeshcher/carsharing-system/internal/repository"
	"github.com/mmeshcher/carsharing-system/internal/stripe"
)

func TestPaymentAmount(t *testing.T) {
	car := &model.Car{DailyFeeCents: 1000}

	tests := []struct {
		name       string
		rentalDate time.Time
		returnDate time.Time
		want       int64
	}{
		{
			name:       "two days",
			rentalDate: date(2025, 10, 10),
			returnDate: date(2025, 10, 12),
			want:       2000,
		},
		{
			name:       "same day counts as one",
			rentalDate: date(2025, 10, 10),
			returnDate: date(2025, 10, 10),
			want:       1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rental := &model.Rental{RentalDate: tt.rentalDate, ReturnDate: tt.returnDate}
			if got := paymentAmountCents(rental, car); got != tt.want {
				t.Fatalf("paymentAmountCents = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFineAmount(t *testing.T) {
	car := &model.Car{DailyFeeCents: 1000}
	actual := date(2025, 10, 14)
	rental := &model.Rental{
		RentalDate:       date(2025, 10, 10),
		ReturnDate:       date(2025, 10, 12),
		ActualReturnDate: &actual,
	}

	// 2 дня просрочки * 10.00 * 1.5 = 30.00
	got, err := fineAmountCents(rental, car)
	if err != nil {
		t.Fatalf("fineAmountCents error: %v", err)
	}
	if got != 3000 {
		t.Fatalf("fineAmountCents = %d, want 3000", got)
	}
}

func TestFineAmount_NotReturned(t *testing.T) {
	car := &model.Car{DailyFeeCents: 1000}
	rental := &model.Rental{RentalDate: date(2025, 10, 10), ReturnDate: date(2025, 10, 12)}

	if _, err := fineAmountCents(rental, car); !errors.Is(err, ErrNotReturned) {
		t.Fatalf("expected ErrNotReturned, got %v", err)
	}
}

func TestFineAmount_NoOverdueDays(t *testing.T) {
	car := &model.Car{DailyFeeCents: 1000}
	actual := date(2025, 10, 12)
	rental := &model.Rental{
		RentalDate:       date(2025, 10, 10),
		ReturnDate:       date(2025, 10, 12),
		ActualReturnDate: &actual,
	}

	if _, err := fineAmountCents(rental, car); !errors.Is(err, ErrNoOverdueDays) {
		t.Fatalf("expected ErrNoOverdueDays, got %v", err)
	}
}

func TestCheckout_CreatesPendingPayment(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)

	payment, err := env.svc.Checkout(context.Background(), Actor{UserID: 1}, 1, model.PaymentTypePayment)
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if payment.Status != model.PaymentStatusPending {
		t.Fatalf("status = %s, want PENDING", payment.Status)
	}
	if payment.AmountCents != 2000 {
		t.Fatalf("amount = %d, want 2000", payment.AmountCents)
	}
	if payment.SessionID == "" || payment.SessionURL == "" {
		t.Fatalf("session handles must be set: %+v", payment)
	}
}

func TestCheckout_FineBeforeReturn(t *testing.T) {
	env := newTestEnv(date(2025, 10, 14))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)

	_, err := env.svc.Checkout(context.Background(), Actor{UserID: 1}, 1, model.PaymentTypeFine)
	if !errors.Is(err, ErrNotReturned) {
		t.Fatalf("expected ErrNotReturned, got %v", err)
	}
}

func TestCheckout_AlreadyPaid(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPaid, "cs_paid", 2000)

	_, err := env.svc.Checkout(context.Background(), Actor{UserID: 1}, 1, model.PaymentTypePayment)
	if !errors.Is(err, ErrRentalPaid) {
		t.Fatalf("expected ErrRentalPaid, got %v", err)
	}
}

func TestCheckout_OpenPendingSessionBlocks(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_open", 2000)
	env.gateway.sessions["cs_open"] = &stripe.Session{ID: "cs_open", Status: stripe.SessionStatusOpen}

	_, err := env.svc.Checkout(context.Background(), Actor{UserID: 1}, 1, model.PaymentTypePayment)
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestCheckout_StalePendingSuperseded(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_stale", 2000)
	env.gateway.sessions["cs_stale"] = &stripe.Session{ID: "cs_stale", Status: stripe.SessionStatusExpired}

	payment, err := env.svc.Checkout(context.Background(), Actor{UserID: 1}, 1, model.PaymentTypePayment)
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if env.repo.payments[1].Status != model.PaymentStatusCancelled {
		t.Fatalf("stale pending must be cancelled, got %s", env.repo.payments[1].Status)
	}
	if payment.ID == 1 || payment.Status != model.PaymentStatusPending {
		t.Fatalf("new pending payment expected, got %+v", payment)
	}
}

func TestCheckout_ProviderUnreachableTreatedAsStale(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_stale", 2000)
	env.gateway.getErr = errors.New("timeout")

	payment, err := env.svc.Checkout(context.Background(), Actor{UserID: 1}, 1, model.PaymentTypePayment)
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if env.repo.payments[1].Status != model.PaymentStatusCancelled {
		t.Fatalf("unreachable provider must supersede pending, got %s", env.repo.payments[1].Status)
	}
	if payment.Status != model.PaymentStatusPending {
		t.Fatalf("new payment must be PENDING, got %s", payment.Status)
	}
}

func TestCheckout_ProviderErrorOnCreate(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.gateway.createErr = errors.New("stripe is down")

	_, err := env.svc.Checkout(context.Background(), Actor{UserID: 1}, 1, model.PaymentTypePayment)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if len(env.repo.payments) != 0 {
		t.Fatalf("payment must not be persisted when session creation fails")
	}
}

func TestCheckout_Forbidden(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)

	_, err := env.svc.Checkout(context.Background(), Actor{UserID: 2}, 1, model.PaymentTypePayment)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestHandleSuccess_TransitionsToPaid(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_1", 2000)
	env.gateway.sessions["cs_1"] = &stripe.Session{
		ID: "cs_1", Status: stripe.SessionStatusComplete, PaymentStatus: stripe.PaymentStatusPaid,
	}

	payment, err := env.svc.HandleSuccess(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("HandleSuccess error: %v", err)
	}
	if payment.Status != model.PaymentStatusPaid {
		t.Fatalf("status = %s, want PAID", payment.Status)
	}
	if len(env.notifier.messages) != 1 || !strings.Contains(env.notifier.messages[0], "SUCCESSFUL PAYMENT") {
		t.Fatalf("expected payment notification, got %v", env.notifier.messages)
	}
}

func TestHandleSuccess_Idempotent(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_1", 2000)
	env.gateway.sessions["cs_1"] = &stripe.Session{
		ID: "cs_1", Status: stripe.SessionStatusComplete, PaymentStatus: stripe.PaymentStatusPaid,
	}

	first, err := env.svc.HandleSuccess(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("first HandleSuccess error: %v", err)
	}

	second, err := env.svc.HandleSuccess(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("second HandleSuccess error: %v", err)
	}

	if second.ID != first.ID || second.Status != model.PaymentStatusPaid {
		t.Fatalf("second call must return the same paid payment, got %+v", second)
	}
	if len(env.notifier.messages) != 1 {
		t.Fatalf("duplicate callback must not duplicate notification, got %d", len(env.notifier.messages))
	}
}

func TestHandleSuccess_NotificationFailureLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	repo := newStubRepo()
	gateway := newStubGateway()
	notifier := &stubNotifier{}
	svc := NewService(repo, gateway, notifier, zap.New(core), "http://localhost:8080")
	svc.now = func() time.Time { return date(2025, 10, 10) }

	// Платёж без аренды: уведомление собрать нельзя
	repo.payments[1] = &model.Payment{
		ID: 1, RentalID: 42, Type: model.PaymentTypePayment,
		Status: model.PaymentStatusPending, SessionID: "cs_1", AmountCents: 2000,
	}
	gateway.sessions["cs_1"] = &stripe.Session{
		ID: "cs_1", Status: stripe.SessionStatusComplete, PaymentStatus: stripe.PaymentStatusPaid,
	}

	payment, err := svc.HandleSuccess(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("HandleSuccess error: %v", err)
	}
	if payment.Status != model.PaymentStatusPaid {
		t.Fatalf("status = %s, want PAID", payment.Status)
	}

	if len(notifier.messages) != 0 {
		t.Fatalf("no notification expected, got %v", notifier.messages)
	}
	if logs.FilterMessage("load rental for notification").Len() != 1 {
		t.Fatalf("skipped notification must be logged, got %v", logs.All())
	}
}

func TestHandleSuccess_SessionNotPaid(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_1", 2000)
	env.gateway.sessions["cs_1"] = &stripe.Session{
		ID: "cs_1", Status: stripe.SessionStatusOpen, PaymentStatus: "unpaid",
	}

	_, err := env.svc.HandleSuccess(context.Background(), "cs_1")
	if !errors.Is(err, ErrSessionNotPaid) {
		t.Fatalf("expected ErrSessionNotPaid, got %v", err)
	}
}

func TestHandleSuccess_UnknownSession(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))

	_, err := env.svc.HandleSuccess(context.Background(), "cs_missing")
	if !errors.Is(err, repository.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestHandleCancel(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_1", 2000)

	payment, err := env.svc.HandleCancel(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("HandleCancel error: %v", err)
	}
	if payment.Status != model.PaymentStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", payment.Status)
	}

	// Повторная отмена — no-op
	if _, err := env.svc.HandleCancel(context.Background(), "cs_1"); err != nil {
		t.Fatalf("second cancel must be a no-op, got %v", err)
	}
}

func TestHandleCancel_PaidPayment(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPaid, "cs_1", 2000)

	_, err := env.svc.HandleCancel(context.Background(), "cs_1")
	if !errors.Is(err, ErrPaymentPaid) {
		t.Fatalf("expected ErrPaymentPaid, got %v", err)
	}
}

func TestRenewSession_PaidPayment(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPaid, "cs_1", 2000)

	_, err := env.svc.RenewSession(context.Background(), Actor{UserID: 1}, 1)
	if !errors.Is(err, ErrPaymentPaid) {
		t.Fatalf("expected ErrPaymentPaid, got %v", err)
	}
}

func TestRenewSession_OpenSession(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_1", 2000)
	env.gateway.sessions["cs_1"] = &stripe.Session{ID: "cs_1", Status: stripe.SessionStatusOpen}

	_, err := env.svc.RenewSession(context.Background(), Actor{UserID: 1}, 1)
	if !errors.Is(err, ErrSessionStillOpen) {
		t.Fatalf("expected ErrSessionStillOpen, got %v", err)
	}
}

func TestRenewSession_PreservesAmount(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 55500)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusExpired, "cs_old", 1234)

	payment, err := env.svc.RenewSession(context.Background(), Actor{UserID: 1}, 1)
	if err != nil {
		t.Fatalf("RenewSession error: %v", err)
	}

	if payment.Status != model.PaymentStatusPending {
		t.Fatalf("status = %s, want PENDING", payment.Status)
	}
	// Сумма не пересчитывается по текущей ставке
	if payment.AmountCents != 1234 {
		t.Fatalf("amount = %d, want original 1234", payment.AmountCents)
	}
	if payment.SessionID == "cs_old" {
		t.Fatalf("session must be replaced")
	}
	if len(env.gateway.createdAmounts) != 1 || env.gateway.createdAmounts[0] != 1234 {
		t.Fatalf("provider session must be created for the original amount, got %v", env.gateway.createdAmounts)
	}
}

func TestRenewSession_StalePendingCancelledFirst(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_stale", 2000)
	env.gateway.sessions["cs_stale"] = &stripe.Session{ID: "cs_stale", Status: stripe.SessionStatusExpired}

	payment, err := env.svc.RenewSession(context.Background(), Actor{UserID: 1}, 1)
	if err != nil {
		t.Fatalf("RenewSession error: %v", err)
	}
	if payment.Status != model.PaymentStatusPending {
		t.Fatalf("status = %s, want PENDING", payment.Status)
	}
	if payment.SessionID == "cs_stale" {
		t.Fatalf("stale session must be replaced")
	}
	if payment.AmountCents != 2000 {
		t.Fatalf("amount = %d, want 2000", payment.AmountCents)
	}
}

func TestListPayments_CustomerPinnedToOwn(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addUser(2, model.RoleCustomer)
	env.addCar(1, 5, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 1), date(2025, 10, 5), nil)
	env.addRental(2, 2, 1, date(2025, 10, 1), date(2025, 10, 5), nil)
	env.addPayment(1, 1, model.PaymentTypePayment, model.PaymentStatusPending, "cs_1", 2000)
	env.addPayment(2, 2, model.PaymentTypePayment, model.PaymentStatusPending, "cs_2", 2000)

	other := int64(2)
	payments, total, err := env.svc.ListPayments(context.Background(), Actor{UserID: 1}, &other, 0, 20)
	if err != nil {
		t.Fatalf("ListPayments error: %v", err)
	}
	if total != 1 || payments[0].RentalID != 1 {
		t.Fatalf("customer must see only own payments, got %+v", payments)
	}
}
