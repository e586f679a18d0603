// Package account реализует HTTP-обработчик чтения учетной записи
// пользователя по номеру телефона.
package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/brightmoyo/wabot-billing/internal/http/response"
	"github.com/brightmoyo/wabot-billing/internal/models"
)

// Handler управляет HTTP-запросами чтения учетных записей.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Хранилище прав пользователей
}

// Service описывает интерфейс хранилища прав для чтения.
type Service interface {
	GetOrCreate(ctx context.Context, phone string) models.UserAccount
	DownloadsLeft(phone string) (int, bool)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Учетная запись пользователя
// @Description Возвращает состояние подписки, счётчики и историю активаций.
// @Tags Admin
// @Produce  json
// @Param phone path string true "Номер телефона"
// @Success 200 {object} models.UserAccount "Учетная запись"
// @Failure 400 {object} response.ErrorResponse "Пустой номер телефона"
// @Router /admin/accounts/{phone} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.account"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	phone := chi.URLParam(r, "phone")
	if phone == "" {
		log.Error("empty phone number in path")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("phone number is required"))
		return
	}

	acc := h.service.GetOrCreate(r.Context(), phone)
	left, unlimited := h.service.DownloadsLeft(phone)

	log.Info("account read", slog.String("user", phone))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"account":        acc,
		"downloads_left": left,
		"unlimited":      unlimited,
	}))
}
