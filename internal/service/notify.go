package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/carsharing-system/internal/model"
	"github.com/mmeshcher/carsharing-system/internal/repository"
)

const dateLayout = "2006-01-02"

const (
	overdueMessageHeader = "🚨 DAILY OVERDUE RENTAL REPORT 🚨\n\n"
	noOverdueMessage     = "✅ No rentals overdue today!"
)

func rentalCreatedMessage(rental *model.Rental, car *model.Car, user *model.User) string {
	return fmt.Sprintf(
		"📢 New Rental Created! 🚗\n"+
			"👤 User: %s %s (ID: %d)\n"+
			"⚙️ Car: %s %s (ID: %d)\n"+
			"🗓️ Rental Date: %s\n"+
			"🔙 Expected Return: %s",
		user.FirstName, user.LastName, user.ID,
		car.Brand, car.Model, car.ID,
		rental.RentalDate.Format(dateLayout),
		rental.ReturnDate.Format(dateLayout),
	)
}

func carReturnedMessage(rental *model.Rental, car *model.Car, user *model.User) string {
	return fmt.Sprintf(
		"✅ Car Returned Successfully! 📦\n"+
			"⚙️ Car: %s %s (ID: %d)\n"+
			"👤 Renter: %s %s (ID: %d)\n"+
			"📅 Actual Return Date: %s\n"+
			"🔑 Rental ID: %d",
		car.Brand, car.Model, car.ID,
		user.FirstName, user.LastName, user.ID,
		rental.ActualReturnDate.Format(dateLayout),
		rental.ID,
	)
}

func fineIssuedMessage(rental *model.Rental, fine *model.Payment) string {
	return fmt.Sprintf(
		"⚠️ Fine Issued! 💸\n"+
			"🔑 Rental ID: %d\n"+
			"💵 Amount: $%.2f\n"+
			"🔗 Payment Link: %s",
		rental.ID,
		float64(fine.AmountCents)/100,
		fine.SessionURL,
	)
}

func paymentSuccessMessage(payment *model.Payment, rental *model.Rental, car *model.Car, user *model.User, today time.Time) string {
	typeDetail := "💳 RENTAL PAYMENT"
	if payment.Type == model.PaymentTypeFine {
		typeDetail = "💰 FINE PAYMENT"
	}

	return fmt.Sprintf(
		"✅ SUCCESSFUL PAYMENT! %s\n\n"+
			"🔑 Payment ID: %d\n"+
			"💵 Amount Paid: $%.2f\n"+
			"📅 Transaction Date: %s\n"+
			"🔗 Session ID: %s\n\n"+
			"👤 User: %s %s (ID: %d)\n"+
			"⚙️ Car: %s %s (ID: %d)\n"+
			"📝 Rental ID: %d",
		typeDetail,
		payment.ID,
		float64(payment.AmountCents)/100,
		today.Format(dateLayout),
		payment.SessionID,
		user.FirstName, user.LastName, user.ID,
		car.Brand, car.Model, car.ID,
		rental.ID,
	)
}

// buildOverdueMessage собирает сводный отчёт по просроченным арендам:
// блок на каждую аренду и итоговая строка с количеством.
func buildOverdueMessage(rentals []repository.OverdueRental) string {
	var b strings.Builder
	b.WriteString(overdueMessageHeader)
	for _, r := range rentals {
		fmt.Fprintf(&b,
			"🔢 Rental ID: %d\n"+
				"👤 User: %s %s (ID: %d, Email: %s)\n"+
				"🚗 Car: %s %s (ID: %d)\n"+
				"📅 Expected Return: %s\n\n",
			r.RentalID,
			r.FirstName, r.LastName, r.UserID, r.Email,
			r.CarBrand, r.CarModel, r.CarID,
			r.ReturnDate.Format(dateLayout),
		)
	}
	b.WriteString("\n⋯⋯⋯⋯⋯⋯⋯⋯⋯⋯⋯\n")
	fmt.Fprintf(&b, "📊 END OF REPORT (%d total)", len(rentals))
	return b.String()
}
