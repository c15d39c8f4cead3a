package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Maturity/internal/assessment"
	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
)

type AdminHandler struct {
	svc *assessment.Service
}

func NewAdminHandler(svc *assessment.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) ListFrameworks(w http.ResponseWriter, r *http.Request) {
	fws, err := h.svc.ListFrameworks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if fws == nil {
		fws = []catalog.Framework{}
	}
	writeJSON(w, http.StatusOK, fws)
}

func (h *AdminHandler) GetFramework(w http.ResponseWriter, r *http.Request) {
	fw, err := h.svc.GetFramework(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fw)
}

// PutFramework creates or replaces a framework; the path ID wins over the body.
func (h *AdminHandler) PutFramework(w http.ResponseWriter, r *http.Request) {
	var fw catalog.Framework
	if !decodeBody(w, r, &fw) {
		return
	}
	fw.ID = chi.URLParam(r, "id")
	if err := h.svc.UpsertFramework(r.Context(), &fw); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fw)
}

func (h *AdminHandler) DeleteFramework(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFramework(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []catalog.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	var u catalog.User
	if !decodeBody(w, r, &u) {
		return
	}
	u.ID = chi.URLParam(r, "id")
	if err := h.svc.UpsertUser(r.Context(), &u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ExportUser is the admin view of another user's export.
func (h *AdminHandler) ExportUser(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (h *AdminHandler) Orphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.svc.Orphans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orphans)
}

func (h *AdminHandler) PurgeOrphans(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.PurgeOrphans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
