package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/middleware"
	"github.com/25x8/velorent/internal/velorent/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Handler handles all HTTP requests
type Handler struct {
	Auth     *service.AuthService
	Docs     *service.DocumentService
	Payments *service.PaymentService
	TokenTTL time.Duration
	logger   *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(auth *service.AuthService, docs *service.DocumentService, payments *service.PaymentService,
	tokenTTL time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:     auth,
		Docs:     docs,
		Payments: payments,
		TokenTTL: tokenTTL,
		logger:   logger,
	}
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"detail": ...} with the status of its kind
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	if e, ok := apperr.As(err); ok && e.Kind == apperr.KindRateLimited && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
	}
	writeJSON(w, status, detailResponse{Detail: apperr.PublicMessage(err)})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON reads the request body into dst. An empty body is accepted when allowEmpty is set.
func decodeJSON(r *http.Request, dst interface{}, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae
		}
		return apperr.Validation("Invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid %s", name)
	}
	return id, nil
}

func currentUser(r *http.Request) (int64, error) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		return 0, apperr.Unauthorized("Not authenticated")
	}
	return userID, nil
}

// serveContract streams a generated contract as an attachment
func serveContract(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
