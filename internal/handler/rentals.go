package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mmeshcher/carsharing-system/internal/model"
)

type addRentalRequest struct {
	CarID      int64  `json:"car_id"`
	ReturnDate string `json:"return_date"`
}

type rentalResponse struct {
	ID               int64   `json:"id"`
	UserID           int64   `json:"user_id"`
	CarID            int64   `json:"car_id"`
	RentalDate       string  `json:"rental_date"`
	ReturnDate       string  `json:"return_date"`
	ActualReturnDate *string `json:"actual_return_date,omitempty"`
}

func toRentalResponse(rental *model.Rental) rentalResponse {
	resp := rentalResponse{
		ID:         rental.ID,
		UserID:     rental.UserID,
		CarID:      rental.CarID,
		RentalDate: rental.RentalDate.Format(dateLayout),
		ReturnDate: rental.ReturnDate.Format(dateLayout),
	}
	if rental.ActualReturnDate != nil {
		v := rental.ActualReturnDate.Format(dateLayout)
		resp.ActualReturnDate = &v
	}
	return resp
}

// AddRental создаёт новую аренду (уменьшает остаток автомобиля на единицу).
func (h *Handler) AddRental(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req addRentalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CarID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	returnDate, err := time.Parse(dateLayout, req.ReturnDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rental, err := h.service.AddRental(r.Context(), actor, req.CarID, returnDate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toRentalResponse(rental))
}

// ListRentals возвращает страницу аренд. Менеджер может фильтровать по user_id,
// остальные видят только свои аренды.
func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var userID *int64
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		userID = &id
	}

	var isActive *bool
	if v := r.URL.Query().Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		isActive = &active
	}

	page, size := parsePagination(r)

	rentals, total, err := h.service.ListRentals(r.Context(), actor, userID, isActive, page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]rentalResponse, 0, len(rentals))
	for i := range rentals {
		items = append(items, toRentalResponse(&rentals[i]))
	}

	h.writeJSON(w, http.StatusOK, pageResponse{Items: items, Total: total, Page: page, Size: size})
}

// GetRental возвращает аренду по идентификатору.
func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := idFromURL(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rental, err := h.service.GetRentalByID(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRentalResponse(rental))
}

// ReturnRental фиксирует возврат автомобиля (увеличивает остаток на единицу).
func (h *Handler) ReturnRental(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := idFromURL(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rental, err := h.service.ReturnRental(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRentalResponse(rental))
}
