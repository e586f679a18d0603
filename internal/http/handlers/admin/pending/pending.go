// Package pending реализует HTTP-обработчики списка неподтверждённых
// платёжных попыток и сводной статистики по платежам.
package pending

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/brightmoyo/wabot-billing/internal/http/response"
	"github.com/brightmoyo/wabot-billing/internal/lib/sl"
	"github.com/brightmoyo/wabot-billing/internal/models"
)

// Handler управляет HTTP-запросами просмотра платёжных попыток.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики подписок
}

// Service описывает интерфейс бизнес-логики просмотра платежей.
type Service interface {
	PendingPayments(ctx context.Context) ([]*models.PaymentAttempt, error)
	PaymentStats(ctx context.Context) (models.PaymentStats, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// List godoc
// @Summary Неподтверждённые платёжные попытки
// @Tags Admin
// @Produce  json
// @Success 200 {object} map[string]any "Список попыток"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/payments/pending [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.pending.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	attempts, err := h.service.PendingPayments(r.Context())
	if err != nil {
		log.Error("failed to list pending payments", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list pending payments"))
		return
	}

	log.Info("pending payments listed", slog.Int("count", len(attempts)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"count":    len(attempts),
		"attempts": attempts,
	}))
}

// Stats godoc
// @Summary Сводка по платёжным попыткам
// @Tags Admin
// @Produce  json
// @Success 200 {object} models.PaymentStats "Сводка"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/payments/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.pending.stats"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	stats, err := h.service.PaymentStats(r.Context())
	if err != nil {
		log.Error("failed to count payment stats", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not count payment stats"))
		return
	}

	render.JSON(w, r, response.OKWithData(stats))
}
