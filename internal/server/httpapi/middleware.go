package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/server/auth"
)

// requireAuth guards write endpoints with the admin bearer token.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AccessTokenHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.writeServiceError(w, r, common.ErrUnauthorized)
			return
		}

		if _, err := auth.GetUsernameFromToken(token, []byte(h.config.SecretKey)); err != nil {
			h.writeServiceError(w, r, err)
			return
		}

		next(w, r)
	}
}

// requireAuthUnlessPublicCreate lets visitors create records in collections
// that exist to receive submissions from the public site; everything else
// needs the admin token.
func (h *Handler) requireAuthUnlessPublicCreate(next http.HandlerFunc) http.HandlerFunc {
	guarded := h.requireAuth(next)
	return func(w http.ResponseWriter, r *http.Request) {
		if h.service.PublicCreate(r.PathValue("name")) {
			next(w, r)
			return
		}
		guarded(w, r)
	}
}
