package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Maturity/internal/assessment"
	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
	"github.com/MikeSquared-Agency/Maturity/internal/scoring"
)

// ReportsHandler serves read-only views. Every request recomputes from the
// stored answers.
type ReportsHandler struct {
	svc *assessment.Service
}

func NewReportsHandler(svc *assessment.Service) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

type catalogResponse struct {
	Catalog  *catalog.Catalog  `json:"catalog"`
	Weights  scoring.WeightSet `json:"weights"`
	Warnings []string          `json:"warnings,omitempty"`
}

func (h *ReportsHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	c := h.svc.Catalog()
	writeJSON(w, http.StatusOK, catalogResponse{
		Catalog:  c,
		Weights:  h.svc.Weights(),
		Warnings: c.WeightWarnings(),
	})
}

func (h *ReportsHandler) Score(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Recompute(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Score)
}

func (h *ReportsHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Recompute(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Compliance)
}

type progressResponse struct {
	Progress       scoring.ProgressResult            `json:"progress"`
	DomainProgress map[string]scoring.ProgressResult `json:"domain_progress"`
	UserProgress   *scoring.ProgressResult           `json:"user_progress,omitempty"`
}

func (h *ReportsHandler) Progress(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Recompute(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		Progress:       report.Progress,
		DomainProgress: report.DomainProgress,
		UserProgress:   report.UserProgress,
	})
}

// MyProgress is scoped to the questions assigned to the caller. Users without
// a record get 404.
func (h *ReportsHandler) MyProgress(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Recompute(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if report.UserProgress == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user has no assignment"})
		return
	}
	writeJSON(w, http.StatusOK, report.UserProgress)
}

func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.Export(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}
