package handler

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/mmeshcher/carsharing-system/internal/model"
)

type carRequest struct {
	Model     string  `json:"model"`
	Brand     string  `json:"brand"`
	Type      string  `json:"type"`
	Inventory int     `json:"inventory"`
	DailyFee  float64 `json:"daily_fee"`
}

func (req *carRequest) validate() bool {
	switch model.CarType(req.Type) {
	case model.CarTypeSedan, model.CarTypeSUV, model.CarTypeHatchback, model.CarTypeUniversal:
	default:
		return false
	}
	return req.Model != "" && req.Brand != "" && req.Inventory >= 0 && req.DailyFee > 0
}

func (req *carRequest) toModel() *model.Car {
	return &model.Car{
		Model:         req.Model,
		Brand:         req.Brand,
		Type:          model.CarType(req.Type),
		Inventory:     req.Inventory,
		DailyFeeCents: int64(math.Round(req.DailyFee * 100)),
	}
}

type carResponse struct {
	ID        int64   `json:"id"`
	Model     string  `json:"model"`
	Brand     string  `json:"brand"`
	Type      string  `json:"type"`
	Inventory int     `json:"inventory"`
	DailyFee  float64 `json:"daily_fee"`
}

func toCarResponse(c *model.Car) carResponse {
	return carResponse{
		ID:        c.ID,
		Model:     c.Model,
		Brand:     c.Brand,
		Type:      string(c.Type),
		Inventory: c.Inventory,
		DailyFee:  float64(c.DailyFeeCents) / 100,
	}
}

// AddCar добавляет новый автомобиль в каталог. Доступно только менеджеру.
func (h *Handler) AddCar(w http.ResponseWriter, r *http.Request) {
	var req carRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.validate() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	car, err := h.service.AddCar(r.Context(), req.toModel())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toCarResponse(car))
}

// GetCar возвращает автомобиль по идентификатору.
func (h *Handler) GetCar(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	car, err := h.service.GetCarByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCarResponse(car))
}

// ListCars возвращает страницу автомобилей каталога.
func (h *Handler) ListCars(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r)

	cars, total, err := h.service.ListCars(r.Context(), page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]carResponse, 0, len(cars))
	for i := range cars {
		items = append(items, toCarResponse(&cars[i]))
	}

	h.writeJSON(w, http.StatusOK, pageResponse{Items: items, Total: total, Page: page, Size: size})
}

// UpdateCar обновляет данные автомобиля. Доступно только менеджеру.
func (h *Handler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req carRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.validate() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	car := req.toModel()
	car.ID = id

	if err := h.service.UpdateCar(r.Context(), car); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCarResponse(car))
}

// DeleteCar помечает автомобиль удалённым. Доступно только менеджеру.
func (h *Handler) DeleteCar(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteCar(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
