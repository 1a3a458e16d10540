package freeexam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"schoolexams/internal/app/apiresp"
	"schoolexams/internal/auth"
)

// ExamService is the surface the HTTP layer needs. *Service satisfies it;
// tests swap in a mock.
type ExamService interface {
	CreateExam(ctx context.Context, in CreateExamInput, ownerID int64) (*Exam, error)
	GetExamByID(ctx context.Context, examID int64) (*Exam, error)
	ListExamsByOwner(ctx context.Context, ownerID int64, category string) ([]ExamListItem, error)
	ListAllExams(ctx context.Context) ([]ExamListItem, error)
	ListApprovedExams(ctx context.Context, filter ApprovedFilter) ([]ExamListItem, error)
	UpdateQuestion(ctx context.Context, examID, questionID int64, patch QuestionPatch) (*Question, error)
	ApproveExam(ctx context.Context, examID, reviewerID int64) (*Exam, error)
	RejectExam(ctx context.Context, examID, reviewerID int64) (*Exam, error)
	SubmitAttempt(ctx context.Context, examID, studentID int64, answers map[string]string, rawAnswers json.RawMessage) (*Attempt, error)
	HasAttempt(ctx context.Context, examID, studentID int64) (bool, error)
	ListAttemptsByStudent(ctx context.Context, studentID int64) ([]AttemptRecord, error)
}

type Handler struct {
	svc ExamService
}

func NewHandler(svc ExamService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var in CreateExamInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	exam, err := h.svc.CreateExam(r.Context(), in, user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, exam)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	items, err := h.svc.ListExamsByOwner(r.Context(), user.ID, r.URL.Query().Get("category"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAllExams(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

// ListAvailable serves the student catalogue. Filters default to the
// student's own grade and stream when query params are absent.
func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	q := r.URL.Query()
	filter := ApprovedFilter{
		Grade:    q.Get("grade"),
		Stream:   q.Get("stream"),
		Category: q.Get("category"),
	}
	if filter.Grade == "" {
		filter.Grade = user.Grade
	}
	if filter.Stream == "" {
		filter.Stream = user.Stream
	}

	items, err := h.svc.ListApprovedExams(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	examID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	exam, err := h.svc.GetExamByID(r.Context(), examID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	redact, err := h.authorizeExamView(r.Context(), user, exam)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if redact {
		exam = redactAnswers(exam)
	}
	apiresp.WriteOK(w, r, http.StatusOK, exam)
}

// authorizeExamView decides whether user may see exam and whether answer
// fields must be stripped. The exam is known to exist here, so a denial is
// 403, never 404.
func (h *Handler) authorizeExamView(ctx context.Context, user *auth.User, exam *Exam) (redact bool, err error) {
	switch user.Role {
	case auth.RoleSchoolDirector, auth.RoleAdmin:
		return false, nil
	case auth.RoleTeacher:
		if exam.CreatedBy != nil && *exam.CreatedBy == user.ID {
			return false, nil
		}
		return false, ErrForbidden
	case auth.RoleStudent:
		if exam.Status != StatusApproved && exam.Status != StatusPendingApproval {
			return false, ErrForbidden
		}
		attempted, err := h.svc.HasAttempt(ctx, exam.ID, user.ID)
		if err != nil {
			return false, err
		}
		return !attempted, nil
	default:
		return false, ErrForbidden
	}
}

func (h *Handler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	examID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	questionID, ok := parseIDParam(w, r, "questionID")
	if !ok {
		return
	}

	exam, err := h.svc.GetExamByID(r.Context(), examID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if exam.CreatedBy == nil || *exam.CreatedBy != user.ID {
		h.writeServiceError(w, r, ErrForbidden)
		return
	}

	var patch QuestionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	question, err := h.svc.UpdateQuestion(r.Context(), examID, questionID, patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, question)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.svc.ApproveExam)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.svc.RejectExam)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64, int64) (*Exam, error)) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if user.Role != auth.RoleSchoolDirector {
		h.writeServiceError(w, r, ErrForbidden)
		return
	}
	examID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	exam, err := fn(r.Context(), examID, user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, exam)
}

type submitResponse struct {
	AttemptID      int64   `json:"attempt_id"`
	ExamID         int64   `json:"exam_id"`
	Score          int     `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
	Status         string  `json:"status"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	examID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	// The submission body is a flat {"<questionID>": "<answer>"} object.
	var submitted map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if submitted == nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "answers object is required")
		return
	}

	answers := make(map[string]string, len(submitted))
	for key, raw := range submitted {
		answers[key] = stringifyAnswer(raw)
	}
	rawAnswers, err := json.Marshal(submitted)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid answers payload")
		return
	}

	attempt, err := h.svc.SubmitAttempt(r.Context(), examID, user.ID, answers, rawAnswers)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, submitResponse{
		AttemptID:      attempt.ID,
		ExamID:         attempt.ExamID,
		Score:          attempt.Score,
		TotalQuestions: attempt.TotalQuestions,
		Percentage:     attempt.Percentage,
		Status:         ResultLabel(attempt.Percentage),
	})
}

func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	items, err := h.svc.ListAttemptsByStudent(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrExamNotFound), errors.Is(err, ErrQuestionNotFound), errors.Is(err, ErrExamNotSubmittable):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExamNotPending):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		apiresp.WriteError(w, r, http.StatusForbidden, "access denied")
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// redactAnswers returns a copy of exam with every answer field stripped,
// for students previewing an exam they have not attempted yet.
func redactAnswers(exam *Exam) *Exam {
	out := *exam
	out.Questions = make([]Question, len(exam.Questions))
	for i, q := range exam.Questions {
		q.Answer = nil
		out.Questions[i] = q
	}
	return &out
}

// stringifyAnswer flattens one submitted JSON value to the string form the
// scorer compares against. Strings lose their quotes; numbers and booleans
// keep their literal text.
func stringifyAnswer(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusNotFound, "resource not found")
		return 0, false
	}
	return id, true
}
