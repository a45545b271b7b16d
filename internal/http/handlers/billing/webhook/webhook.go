// Package webhook принимает события платёжного провайдера и передаёт их
// сервису биллинга.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stable-manager/internal/http/response"
	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/services/billing"
)

// SignatureHeader заголовок с подписью тела запроса.
const SignatureHeader = "X-Api-Signature"

const maxBodyBytes = 1 << 20

// Service применяет событие биллинга.
type Service interface {
	ProcessEvent(ctx context.Context, ev billing.Event) error
}

// Handler обработчик webhook.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// New создаёт обработчик webhook.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Sign подпись тела: base64(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if h.webhookSecret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(h.webhookSecret, body)), []byte(signature))
}

// ServeHTTP godoc
// @Summary Webhook платёжного провайдера
// @Description Применяет событие подписки к аккаунту. Тело подписывается HMAC-SHA256 в заголовке X-Api-Signature.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param X-Api-Signature header string true "base64(HMAC-SHA256(body))"
// @Success 200 {object} response.Response "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Некорректное событие"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/v1/billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Warn("invalid or missing webhook signature")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var ev billing.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Info("failed to unmarshal webhook payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	err = h.service.ProcessEvent(r.Context(), ev)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrUnknownEvent):
		log.Info("ignored webhook event", slog.String("event", ev.Event))
	case errors.Is(err, billing.ErrUnknownUser):
		// провайдер повторяет доставку до 2xx, повтор ничего не изменит
		log.Warn("webhook event for unknown user",
			slog.String("event", ev.Event), slog.String("user_uid", ev.Object.UserUID))
	case errors.Is(err, billing.ErrMissingUser):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("user_uid is required"))
		return
	default:
		log.Error("failed to process webhook event", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OK())
}
