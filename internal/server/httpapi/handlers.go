// Package httpapi exposes the uniform collection resource surface over HTTP:
// list, get, create, per-id replace, payload-shape driven bulk/singleton
// replace, cascade delete, comment append and asset upload.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/logging"
	"github.com/dmitrijs2005/sitekeeper/internal/models"
	"github.com/dmitrijs2005/sitekeeper/internal/server/auth"
	"github.com/dmitrijs2005/sitekeeper/internal/server/config"
)

// maxUploadBytes bounds multipart asset uploads.
const maxUploadBytes = 32 << 20

// Dispatcher is the service surface the handlers need. The concrete
// implementation is documents.Service; tests provide a stub.
type Dispatcher interface {
	List(ctx context.Context, name string) ([]models.Document, error)
	Get(ctx context.Context, name, id string) (models.Document, error)
	Create(ctx context.Context, name string, doc models.Document) (models.Document, error)
	ReplaceByID(ctx context.Context, name, id string, doc models.Document) (models.Document, error)
	ReplaceAll(ctx context.Context, name string, docs []models.Document) ([]models.Document, error)
	ReplaceSingleton(ctx context.Context, name string, doc models.Document) (models.Document, error)
	Delete(ctx context.Context, name, id string) error
	AppendComment(ctx context.Context, name, id string, comment models.Comment) (models.Comment, error)
	UploadAsset(ctx context.Context, data []byte, contentType, folder string) (string, error)
	PublicCreate(name string) bool
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	service Dispatcher
	config  *config.Config
	logger  logging.Logger
	mux     *http.ServeMux
}

// NewHandler creates a Handler and wires up all routes.
func NewHandler(service Dispatcher, cfg *config.Config, logger logging.Logger) *Handler {
	h := &Handler{service: service, config: cfg, logger: logger, mux: http.NewServeMux()}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /api/health", h.health)
	h.mux.HandleFunc("POST /api/login", h.login)

	// Reads are open: the public site consumes them.
	h.mux.HandleFunc("GET /api/collections/{name}", h.listCollection)
	h.mux.HandleFunc("GET /api/collections/{name}/{id}", h.getEntity)

	// Visitors append comments without a session.
	h.mux.HandleFunc("POST /api/collections/{name}/{id}/comments", h.appendComment)

	// Writes require the admin session, except creates on the
	// visitor-submitted collections (contact form, job applications).
	h.mux.HandleFunc("POST /api/collections/{name}", h.requireAuthUnlessPublicCreate(h.createEntity))
	h.mux.HandleFunc("PUT /api/collections/{name}", h.requireAuth(h.replaceCollection))
	h.mux.HandleFunc("PUT /api/collections/{name}/{id}", h.requireAuth(h.replaceEntity))
	h.mux.HandleFunc("DELETE /api/collections/{name}/{id}", h.requireAuth(h.deleteEntity))
	h.mux.HandleFunc("POST /api/assets", h.requireAuth(h.uploadAsset))
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrCollectionNotFound),
		errors.Is(err, common.ErrEntityNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrBadPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, common.ErrUpload):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.ErrBadPayload
	}
	return nil
}

// ---------- status / auth ----------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &creds); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := auth.CheckCredentials(creds.Username, creds.Password, h.config.AdminUser, h.config.AdminPasswordHash); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	token, err := auth.GenerateToken(creds.Username, []byte(h.config.SecretKey), h.config.AccessTokenValidityDuration)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ---------- collection CRUD ----------

func (h *Handler) listCollection(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), r.PathValue("name"), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	var doc models.Document
	if err := readJSON(r, &doc); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	stored, err := h.service.Create(r.Context(), r.PathValue("name"), doc)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// replaceCollection inspects the payload shape: an array replaces the whole
// collection, a single object replaces it with one record. Anything else is
// a bad request. The ambiguity stays at this edge only; the service exposes
// two explicit operations.
func (h *Handler) replaceCollection(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeServiceError(w, r, common.ErrBadPayload)
		return
	}

	name := r.PathValue("name")
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		h.writeServiceError(w, r, common.ErrBadPayload)
		return
	}

	switch trimmed[0] {
	case '[':
		var docs []models.Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			h.writeServiceError(w, r, common.ErrBadPayload)
			return
		}
		stored, err := h.service.ReplaceAll(r.Context(), name, docs)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	case '{':
		var doc models.Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			h.writeServiceError(w, r, common.ErrBadPayload)
			return
		}
		stored, err := h.service.ReplaceSingleton(r.Context(), name, doc)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	default:
		h.writeServiceError(w, r, common.ErrBadPayload)
	}
}

func (h *Handler) replaceEntity(w http.ResponseWriter, r *http.Request) {
	var doc models.Document
	if err := readJSON(r, &doc); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	stored, err := h.service.ReplaceByID(r.Context(), r.PathValue("name"), r.PathValue("id"), doc)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("name"), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) appendComment(w http.ResponseWriter, r *http.Request) {
	var comment models.Comment
	if err := readJSON(r, &comment); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	stored, err := h.service.AppendComment(r.Context(), r.PathValue("name"), r.PathValue("id"), comment)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// ---------- assets ----------

func (h *Handler) uploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeServiceError(w, r, common.ErrBadPayload)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeServiceError(w, r, common.ErrBadPayload)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeServiceError(w, r, common.ErrBadPayload)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	url, err := h.service.UploadAsset(r.Context(), data, contentType, r.FormValue("folder"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
