package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type linkUseCase interface {
	ShortenURL(ctx context.Context, originalURL string) (*entity.ShortLink, error)
	ShortURL(shortID string) string
	ResolveShortID(ctx context.Context, shortID string) (string, error)
	GetLinkStats(ctx context.Context, shortID string) (*entity.ShortLink, error)
	GetMetrics(ctx context.Context) (*entity.Metrics, error)
	CheckHealth(ctx context.Context) entity.Health
}

type linkHandler struct {
	useCase  linkUseCase
	validate *validator.Validate
}

func newLinkHandler(useCase linkUseCase, validate *validator.Validate) *linkHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &linkHandler{
		useCase:  useCase,
		validate: validate,
	}
}

func logError(ctx context.Context, op string, err error) {
	httplog.LogEntrySetFields(ctx, map[string]any{"op": op, "err": err})
}

func (h *linkHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.linkHandler.shortenURL"

	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	link, err := h.useCase.ShortenURL(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidURL) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, invalidURLResponse)
			return
		}

		logError(r.Context(), op, err)

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, shortenResponse{
		ShortURL: h.useCase.ShortURL(link.ShortID),
		ShortID:  link.ShortID,
	})
}

func (h *linkHandler) redirect(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.linkHandler.redirect"

	shortID := chi.URLParam(r, "shortID")

	originalURL, err := h.useCase.ResolveShortID(r.Context(), shortID)
	if err != nil {
		if errors.Is(err, entity.ErrLinkNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, linkNotFoundResponse)
			return
		}

		logError(r.Context(), op, err)

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	http.Redirect(w, r, originalURL, http.StatusFound)
}

func (h *linkHandler) getLinkStats(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.linkHandler.getLinkStats"

	shortID := chi.URLParam(r, "shortID")

	link, err := h.useCase.GetLinkStats(r.Context(), shortID)
	if err != nil {
		if errors.Is(err, entity.ErrLinkNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, linkNotFoundResponse)
			return
		}

		logError(r.Context(), op, err)

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toLinkStatsResponse(link))
}

func (h *linkHandler) getMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "adapter.delivery.http.linkHandler.getMetrics"

	metrics, err := h.useCase.GetMetrics(r.Context())
	if err != nil {
		logError(r.Context(), op, err)

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toMetricsResponse(metrics, h.useCase.ShortURL))
}

func (h *linkHandler) checkHealth(w http.ResponseWriter, r *http.Request) {
	health := h.useCase.CheckHealth(r.Context())

	status := http.StatusOK
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
	}

	render.Status(r, status)
	render.JSON(w, r, toHealthResponse(health))
}
