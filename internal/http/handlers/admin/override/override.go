// Package override реализует HTTP-обработчик переопределения цены и скидки
// тарифа. Переопределения живут в памяти процесса и пропадают при рестарте.
package override

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/brightmoyo/wabot-billing/internal/http/response"
	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
)

// Request — структура входных данных переопределения. Price == null вместе с
// нулевой скидкой снимает переопределение тарифа.
type Request struct {
	Plan          string   `json:"plan" validate:"required,oneof=weekly biweekly monthly"`
	Price         *float64 `json:"price" validate:"omitempty,gt=0"`
	ExtraDiscount float64  `json:"extra_discount" validate:"gte=0,lt=1"`
}

// Handler управляет HTTP-запросами переопределения тарифов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Прайсинг-движок
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс прайсинга для переопределения.
type Service interface {
	SetOverride(planKey string, price *float64, extraDiscount float64) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Переопределить цену или скидку тарифа
// @Description Устанавливает цену и дополнительную скидку тарифа до рестарта процесса.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Тариф и переопределяемые значения"
// @Success 200 {object} response.Response "Переопределение установлено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Неизвестный тариф"
// @Router /admin/override [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.override"
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
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	log.Info("all fields are validated")

	if err := h.service.SetOverride(req.Plan, req.Price, req.ExtraDiscount); err != nil {
		log.Error("failed to set override", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("unknown plan"))
		return
	}

	log.Info("price override set", slog.String("plan", req.Plan))
	render.JSON(w, r, response.OK())
}
