// Package rate реализует HTTP-обработчики курса ZWG: чтение текущего
// значения и ручная установка, когда внешний источник недоступен.
package rate

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/brightmoyo/wabot-billing/internal/http/response"
	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
)

// Request — структура входных данных установки курса.
type Request struct {
	Rate float64 `json:"rate" validate:"required,gt=0"`
}

// Handler управляет HTTP-запросами работы с курсом.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Держатель курса
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс держателя курса.
type Service interface {
	CurrentRate() float64
	UpdatedAt() time.Time
	SetRate(rate float64) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Get godoc
// @Summary Текущий курс ZWG
// @Tags Admin
// @Produce  json
// @Success 200 {object} map[string]any "Курс и время обновления"
// @Router /admin/rate [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(map[string]any{
		"rate":       h.service.CurrentRate(),
		"updated_at": h.service.UpdatedAt(),
	}))
}

// Set godoc
// @Summary Установить курс ZWG вручную
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Новый курс"
// @Success 200 {object} response.Response "Курс обновлен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/rate [post]
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.rate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.SetRate(req.Rate); err != nil {
		log.Error("failed to set rate", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("rate must be positive"))
		return
	}

	log.Info("exchange rate updated", slog.Float64("rate", req.Rate))
	render.JSON(w, r, response.OK())
}
