package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mmeshcher/carsharing-system/internal/model"
	"github.com/mmeshcher/carsharing-system/internal/repository"
)

func TestAddRental_ReservesInventory(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 2, 1000)

	rental, err := env.svc.AddRental(context.Background(), Actor{UserID: 1}, 1, date(2025, 10, 12))
	if err != nil {
		t.Fatalf("AddRental error: %v", err)
	}

	if !rental.RentalDate.Equal(date(2025, 10, 10)) {
		t.Fatalf("rentalDate = %v, want today", rental.RentalDate)
	}
	if !rental.IsActive() {
		t.Fatalf("new rental must be active")
	}
	if env.repo.cars[1].Inventory != 1 {
		t.Fatalf("inventory = %d, want 1", env.repo.cars[1].Inventory)
	}
	if len(env.notifier.messages) != 1 || !strings.Contains(env.notifier.messages[0], "New Rental Created") {
		t.Fatalf("expected rental created notification, got %v", env.notifier.messages)
	}
}

func TestAddRental_NoInventory(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 0, 1000)

	_, err := env.svc.AddRental(context.Background(), Actor{UserID: 1}, 1, date(2025, 10, 12))
	if !errors.Is(err, repository.ErrNegativeInventory) {
		t.Fatalf("expected ErrNegativeInventory, got %v", err)
	}
	if len(env.repo.rentals) != 0 {
		t.Fatalf("rental must not be created when reservation fails")
	}
}

func TestAddRental_CarNotFound(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)

	_, err := env.svc.AddRental(context.Background(), Actor{UserID: 1}, 42, date(2025, 10, 12))
	if !errors.Is(err, repository.ErrCarNotFound) {
		t.Fatalf("expected ErrCarNotFound, got %v", err)
	}
}

func TestAddRental_ReturnDateInPast(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 1, 1000)

	_, err := env.svc.AddRental(context.Background(), Actor{UserID: 1}, 1, date(2025, 10, 9))
	if !errors.Is(err, ErrInvalidReturnDate) {
		t.Fatalf("expected ErrInvalidReturnDate, got %v", err)
	}
}

func TestReturnRental_OnTime(t *testing.T) {
	env := newTestEnv(date(2025, 10, 12))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 0, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)

	rental, err := env.svc.ReturnRental(context.Background(), Actor{UserID: 1}, 1)
	if err != nil {
		t.Fatalf("ReturnRental error: %v", err)
	}

	if rental.ActualReturnDate == nil || !rental.ActualReturnDate.Equal(date(2025, 10, 12)) {
		t.Fatalf("actualReturnDate = %v, want 2025-10-12", rental.ActualReturnDate)
	}
	if env.repo.cars[1].Inventory != 1 {
		t.Fatalf("inventory = %d, want 1 after release", env.repo.cars[1].Inventory)
	}
	// Без просрочки штраф не создаётся
	if len(env.repo.payments) != 0 {
		t.Fatalf("no fine expected for on-time return, got %d payments", len(env.repo.payments))
	}
}

func TestReturnRental_Twice(t *testing.T) {
	env := newTestEnv(date(2025, 10, 12))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 0, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)

	if _, err := env.svc.ReturnRental(context.Background(), Actor{UserID: 1}, 1); err != nil {
		t.Fatalf("first return error: %v", err)
	}

	_, err := env.svc.ReturnRental(context.Background(), Actor{UserID: 1}, 1)
	if !errors.Is(err, repository.ErrAlreadyReturned) {
		t.Fatalf("expected ErrAlreadyReturned, got %v", err)
	}
	if env.repo.cars[1].Inventory != 1 {
		t.Fatalf("inventory = %d, want 1: release must happen once", env.repo.cars[1].Inventory)
	}
}

func TestReturnRental_Forbidden(t *testing.T) {
	env := newTestEnv(date(2025, 10, 12))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 0, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)

	_, err := env.svc.ReturnRental(context.Background(), Actor{UserID: 2}, 1)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// Менеджеру возврат чужой аренды разрешён
	if _, err := env.svc.ReturnRental(context.Background(), Actor{UserID: 2, Manager: true}, 1); err != nil {
		t.Fatalf("manager return error: %v", err)
	}
}

func TestReturnRental_LateCreatesFine(t *testing.T) {
	env := newTestEnv(date(2025, 10, 14))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 0, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)

	rental, err := env.svc.ReturnRental(context.Background(), Actor{UserID: 1}, 1)
	if err != nil {
		t.Fatalf("ReturnRental error: %v", err)
	}
	if rental.ActualReturnDate == nil {
		t.Fatalf("rental must be returned")
	}

	fine, err := env.repo.GetPendingPayment(context.Background(), 1, model.PaymentTypeFine)
	if err != nil {
		t.Fatalf("fine payment not created: %v", err)
	}
	// 2 дня просрочки * 10.00 * 1.5 = 30.00
	if fine.AmountCents != 3000 {
		t.Fatalf("fine amount = %d, want 3000", fine.AmountCents)
	}

	var fineNotified bool
	for _, msg := range env.notifier.messages {
		if strings.Contains(msg, "Fine Issued") {
			fineNotified = true
		}
	}
	if !fineNotified {
		t.Fatalf("expected fine notification, got %v", env.notifier.messages)
	}
}

func TestReturnRental_FineFailureDoesNotRollBackReturn(t *testing.T) {
	env := newTestEnv(date(2025, 10, 14))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 0, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 10), date(2025, 10, 12), nil)
	env.gateway.createErr = errors.New("stripe is down")

	rental, err := env.svc.ReturnRental(context.Background(), Actor{UserID: 1}, 1)
	if err != nil {
		t.Fatalf("return must succeed even if fine session fails, got %v", err)
	}
	if rental.ActualReturnDate == nil {
		t.Fatalf("rental must be returned")
	}
	if len(env.repo.payments) != 0 {
		t.Fatalf("no payment expected when session creation fails")
	}
}

func TestListRentals_CustomerPinnedToOwn(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addUser(2, model.RoleCustomer)
	env.addCar(1, 5, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 1), date(2025, 10, 5), nil)
	env.addRental(2, 2, 1, date(2025, 10, 1), date(2025, 10, 5), nil)

	other := int64(2)
	rentals, total, err := env.svc.ListRentals(context.Background(), Actor{UserID: 1}, &other, nil, 0, 20)
	if err != nil {
		t.Fatalf("ListRentals error: %v", err)
	}
	if total != 1 || len(rentals) != 1 || rentals[0].UserID != 1 {
		t.Fatalf("customer must see only own rentals, got %+v", rentals)
	}

	rentals, total, err = env.svc.ListRentals(context.Background(), Actor{UserID: 3, Manager: true}, &other, nil, 0, 20)
	if err != nil {
		t.Fatalf("ListRentals error: %v", err)
	}
	if total != 1 || rentals[0].UserID != 2 {
		t.Fatalf("manager filter must apply, got %+v", rentals)
	}
}

func TestGetRentalByID_Authorization(t *testing.T) {
	env := newTestEnv(date(2025, 10, 10))
	env.addUser(1, model.RoleCustomer)
	env.addCar(1, 5, 1000)
	env.addRental(1, 1, 1, date(2025, 10, 1), date(2025, 10, 5), nil)

	if _, err := env.svc.GetRentalByID(context.Background(), Actor{UserID: 2}, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := env.svc.GetRentalByID(context.Background(), Actor{UserID: 2, Manager: true}, 1); err != nil {
		t.Fatalf("manager must see any rental, got %v", err)
	}
	if _, err := env.svc.GetRentalByID(context.Background(), Actor{UserID: 1}, 99); !errors.Is(err, repository.ErrRentalNotFound) {
		t.Fatalf("expected ErrRentalNotFound, got %v", err)
	}
}
