// Package forceactivate реализует HTTP-обработчик административной активации
// подписки без кода подтверждения.
//
// Handler принимает JSON-запрос с номером телефона и тарифом, валидирует его
// и вызывает привилегированную активацию через сервис подписок.
package forceactivate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/brightmoyo/wabot-billing/internal/http/response"
	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
	"github.com/brightmoyo/wabot-billing/internal/models"
)

// Request — структура входных данных для активации.
type Request struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=5"`
	Plan        string `json:"plan" validate:"required,oneof=weekly biweekly monthly"`
}

// Handler управляет HTTP-запросами административной активации.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики подписок
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики активации.
type Service interface {
	ForceActivate(ctx context.Context, phone, planKey string) (models.UserAccount, error)
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
// @Summary Активировать подписку без кода
// @Description Активирует подписку пользователю в обход подтверждения оплаты.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Номер телефона и тариф"
// @Success 200 {object} map[string]any "Активированная учетная запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при активации"
// @Router /admin/activate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.forceactivate"
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

	acc, err := h.service.ForceActivate(r.Context(), req.PhoneNumber, req.Plan)
	if err != nil {
		log.Error("failed to activate subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not activate subscription"))
		return
	}

	log.Info("subscription force-activated", slog.String("user", req.PhoneNumber),
		slog.String("plan", req.Plan))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"phone_number": acc.PhoneNumber,
		"plan":         acc.SubscriptionType,
		"expiry":       acc.SubscriptionExpiry,
	}))
}
