package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"schoolexams/internal/app/apiresp"
)

// ReportService is the surface the HTTP layer needs. *Service satisfies it;
// tests swap in a mock.
type ReportService interface {
	ExamResults(ctx context.Context, examID int64) (*ExamReport, error)
	ExportExamResultsExcel(ctx context.Context, examID int64) ([]byte, error)
}

type Handler struct {
	svc ReportService
}

func NewHandler(svc ReportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ExamResults(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseExamID(w, r)
	if !ok {
		return
	}

	report, err := h.svc.ExamResults(r.Context(), examID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, report)
}

func (h *Handler) ExportExamResults(w http.ResponseWriter, r *http.Request) {
	examID, ok := parseExamID(w, r)
	if !ok {
		return
	}

	data, err := h.svc.ExportExamResultsExcel(r.Context(), examID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-results.xlsx"`, examID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrExamNotFound) {
		apiresp.WriteError(w, r, http.StatusNotFound, "free exam not found")
		return
	}
	apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
}

func parseExamID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusNotFound, "resource not found")
		return 0, false
	}
	return id, true
}
