package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"gpavault/internal/gpa/models"
	"gpavault/internal/gpa/service"
	"gpavault/internal/platform/middleware"
	"gpavault/pkg/platform/httputil"
	"gpavault/pkg/requestcontext"
)

// Service defines the GPA record operations the handler depends on.
type Service interface {
	UpsertGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error
	GetRecord(ctx context.Context, registrationNumber string) (*models.Record, error)
}

// Handler exposes the GPA record endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the GPA routes on r. Route prefixes such as /api are the
// caller's concern.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.RequireJSON(service.MsgInvalidInput)).Post("/save-gpa", h.HandleSaveGpa)
	r.Get("/get-gpa/{registrationNumber}", h.HandleGetGpa)
}

// HandleSaveGpa creates or updates the record named in the body.
func (h *Handler) HandleSaveGpa(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SaveGpaRequest](w, r, h.logger, ctx, requestID, service.MsgInvalidInput)
	if !ok {
		return
	}

	if err := h.service.UpsertGpas(ctx, req.RegistrationNumber, req.Gpas); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "gpa data saved",
		"request_id", requestID,
		"registration_number", req.RegistrationNumber,
		"semesters", len(req.Gpas),
	)
	httputil.WriteJSON(w, http.StatusOK, SaveGpaResponse{Message: MsgSaved})
}

// HandleGetGpa returns the record for the registration number in the path.
func (h *Handler) HandleGetGpa(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrationNumber := pathParam(r, "registrationNumber")

	record, err := h.service.GetRecord(ctx, registrationNumber)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RecordResponse{
		RegistrationNumber: record.RegistrationNumber,
		Gpas:               record.Gpas,
		CreatedAt:          timePtr(record.CreatedAt),
		UpdatedAt:          timePtr(record.UpdatedAt),
	})
}

// pathParam returns the decoded URL parameter. chi hands back the escaped
// form when the request carried a RawPath.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
