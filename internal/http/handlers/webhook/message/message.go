// Package message реализует HTTP-обработчик входящих сообщений чата.
//
// Handler принимает JSON с идентификатором отправителя и текстом, валидирует
// его и передает маршрутизатору бота. Ответы бота возвращаются вызывающему
// шлюзу в теле ответа.
package message

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

// Handler управляет HTTP-запросами входящих сообщений.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Маршрутизатор бота
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс маршрутизатора сообщений.
type Service interface {
	Handle(ctx context.Context, msg models.IncomingMessage) []models.OutgoingMessage
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
// @Summary Входящее сообщение чата
// @Description Принимает сообщение пользователя и возвращает ответы бота.
// @Tags Webhook
// @Accept  json
// @Produce  json
// @Param request body models.IncomingMessage true "Сообщение пользователя"
// @Success 200 {object} map[string]any "Ответы бота"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /webhook/message [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.message"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.IncomingMessage
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

	replies := h.service.Handle(r.Context(), req)

	log.Info("message handled", slog.String("user", req.SenderID),
		slog.Int("replies", len(replies)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"replies": replies,
	}))
}
