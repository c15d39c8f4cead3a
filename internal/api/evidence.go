package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Maturity/internal/assessment"
	"github.com/MikeSquared-Agency/Maturity/internal/store"
)

type EvidenceHandler struct {
	svc *assessment.Service
}

func NewEvidenceHandler(svc *assessment.Service) *EvidenceHandler {
	return &EvidenceHandler{svc: svc}
}

type evidenceRequest struct {
	Text   string        `json:"text"`
	Images []store.Image `json:"images"`
	// Merge keeps existing images; same-name images are replaced.
	Merge bool `json:"merge"`
}

func (h *EvidenceHandler) List(w http.ResponseWriter, r *http.Request) {
	evs, err := h.svc.ListEvidence(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if evs == nil {
		evs = []*store.Evidence{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (h *EvidenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.GetEvidence(r.Context(), userID(r), chi.URLParam(r, "qid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *EvidenceHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req evidenceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for _, img := range req.Images {
		if img.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image name is required"})
			return
		}
	}

	ev, err := h.svc.SaveEvidence(r.Context(), &store.Evidence{
		UserID:     userID(r),
		QuestionID: chi.URLParam(r, "qid"),
		Text:       req.Text,
		Images:     req.Images,
	}, req.Merge)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *EvidenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEvidence(r.Context(), userID(r), chi.URLParam(r, "qid")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EvidenceHandler) Gaps(w http.ResponseWriter, r *http.Request) {
	gaps, err := h.svc.EvidenceGaps(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"questions": gaps})
}
