package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Maturity/internal/assessment"
	"github.com/MikeSquared-Agency/Maturity/internal/scoring"
)

type AnswersHandler struct {
	svc *assessment.Service
}

func NewAnswersHandler(svc *assessment.Service) *AnswersHandler {
	return &AnswersHandler{svc: svc}
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

type selectResponse struct {
	Intent assessment.Intent  `json:"intent"`
	Report *assessment.Report `json:"report"`
}

func (h *AnswersHandler) List(w http.ResponseWriter, r *http.Request) {
	answers, err := h.svc.Answers(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if answers == nil {
		answers = scoring.Answers{}
	}
	writeJSON(w, http.StatusOK, answers)
}

func (h *AnswersHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	report, err := h.svc.SetAnswer(r.Context(), userID(r), chi.URLParam(r, "qid"), req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AnswersHandler) Clear(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.ClearAnswer(r.Context(), userID(r), chi.URLParam(r, "qid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Select applies the click policy: repeating the current rating clears it.
func (h *AnswersHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	intent, report, err := h.svc.SelectAnswer(r.Context(), userID(r), chi.URLParam(r, "qid"), req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectResponse{Intent: intent, Report: report})
}
