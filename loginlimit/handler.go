package loginlimit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"login-ratelimit/loginlimit/domain"

	"github.com/go-chi/chi/v5"
)

// Limiter é o contrato da fachada consumido pela camada HTTP.
type Limiter interface {
	CheckRateLimit(ctx context.Context, email string) (domain.Decision, error)
	RecordFailedAttempt(ctx context.Context, email string) error
	ResetRateLimit(ctx context.Context, email string) error
	GetRateLimitStatus(ctx context.Context, email string) (domain.Status, error)
}

type Handler struct {
	limiter Limiter
	stats   domain.StatsReader
	logger  *slog.Logger
}

// NewHandler cria o handler. stats pode ser nil (GET /stats responde 404).
func NewHandler(limiter Limiter, stats domain.StatsReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{limiter: limiter, stats: stats, logger: logger}
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type CheckResponse struct {
	Allowed       bool   `json:"allowed"`
	Error         string `json:"error,omitempty"`
	TimeRemaining int    `json:"timeRemaining"`
	Attempts      int    `json:"attempts"`
	Message       string `json:"message,omitempty"`
}

type StatusResponse struct {
	Attempts      int   `json:"attempts"`
	Blocked       bool  `json:"blocked"`
	TimeRemaining int   `json:"timeRemaining"`
	NextResetTime int64 `json:"nextResetTime"`
}

func NewCheckResponse(d domain.Decision) CheckResponse {
	return CheckResponse{
		Allowed:       d.Allowed,
		Error:         string(d.Reason),
		TimeRemaining: d.TimeRemaining,
		Attempts:      d.Attempts,
		Message:       d.Message,
	}
}

// Routes registra /rate-limit/* no router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/rate-limit", func(r chi.Router) {
		r.Post("/check", h.Check)
		r.Post("/record-failed", h.RecordFailed)
		r.Post("/reset", h.Reset)
		r.Get("/status/{email}", h.Status)
		r.Get("/stats", h.Stats)
	})
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	email, ok := h.decodeEmail(w, r)
	if !ok {
		return
	}
	dec, err := h.limiter.CheckRateLimit(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, "check", err)
		return
	}
	writeData(w, NewCheckResponse(dec))
}

func (h *Handler) RecordFailed(w http.ResponseWriter, r *http.Request) {
	email, ok := h.decodeEmail(w, r)
	if !ok {
		return
	}
	if err := h.limiter.RecordFailedAttempt(r.Context(), email); err != nil {
		h.writeServiceError(w, "record-failed", err)
		return
	}
	writeData(w, map[string]bool{"recorded": true})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	email, ok := h.decodeEmail(w, r)
	if !ok {
		return
	}
	if err := h.limiter.ResetRateLimit(r.Context(), email); err != nil {
		h.writeServiceError(w, "reset", err)
		return
	}
	writeData(w, map[string]bool{"reset": true})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid email path parameter")
		return
	}
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.limiter.GetRateLimitStatus(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, "status", err)
		return
	}
	writeData(w, StatusResponse{
		Attempts:      st.Attempts,
		Blocked:       st.Blocked,
		TimeRemaining: st.TimeRemaining,
		NextResetTime: st.NextResetTime,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "stats disabled")
		return
	}
	c, err := h.stats.Totals(r.Context())
	if err != nil {
		h.logger.Error("stats read failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeData(w, c)
}

func (h *Handler) decodeEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req EmailRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: email must be a string")
		return "", false
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return req.Email, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, domain.ErrInvalidIdentity) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("rate limit handler failed", slog.String("operation", op), slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
