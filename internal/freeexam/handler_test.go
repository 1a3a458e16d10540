package freeexam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"schoolexams/internal/auth"
)

type mockExamService struct {
	createExamFn            func(ctx context.Context, in CreateExamInput, ownerID int64) (*Exam, error)
	getExamByIDFn           func(ctx context.Context, examID int64) (*Exam, error)
	listExamsByOwnerFn      func(ctx context.Context, ownerID int64, category string) ([]ExamListItem, error)
	listAllExamsFn          func(ctx context.Context) ([]ExamListItem, error)
	listApprovedExamsFn     func(ctx context.Context, filter ApprovedFilter) ([]ExamListItem, error)
	updateQuestionFn        func(ctx context.Context, examID, questionID int64, patch QuestionPatch) (*Question, error)
	approveExamFn           func(ctx context.Context, examID, reviewerID int64) (*Exam, error)
	rejectExamFn            func(ctx context.Context, examID, reviewerID int64) (*Exam, error)
	submitAttemptFn         func(ctx context.Context, examID, studentID int64, answers map[string]string, raw json.RawMessage) (*Attempt, error)
	hasAttemptFn            func(ctx context.Context, examID, studentID int64) (bool, error)
	listAttemptsByStudentFn func(ctx context.Context, studentID int64) ([]AttemptRecord, error)
}

func (m *mockExamService) CreateExam(ctx context.Context, in CreateExamInput, ownerID int64) (*Exam, error) {
	if m.createExamFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createExamFn(ctx, in, ownerID)
}

func (m *mockExamService) GetExamByID(ctx context.Context, examID int64) (*Exam, error) {
	if m.getExamByIDFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getExamByIDFn(ctx, examID)
}

func (m *mockExamService) ListExamsByOwner(ctx context.Context, ownerID int64, category string) ([]ExamListItem, error) {
	if m.listExamsByOwnerFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listExamsByOwnerFn(ctx, ownerID, category)
}

func (m *mockExamService) ListAllExams(ctx context.Context) ([]ExamListItem, error) {
	if m.listAllExamsFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listAllExamsFn(ctx)
}

func (m *mockExamService) ListApprovedExams(ctx context.Context, filter ApprovedFilter) ([]ExamListItem, error) {
	if m.listApprovedExamsFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listApprovedExamsFn(ctx, filter)
}

func (m *mockExamService) UpdateQuestion(ctx context.Context, examID, questionID int64, patch QuestionPatch) (*Question, error) {
	if m.updateQuestionFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.updateQuestionFn(ctx, examID, questionID, patch)
}

func (m *mockExamService) ApproveExam(ctx context.Context, examID, reviewerID int64) (*Exam, error) {
	if m.approveExamFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.approveExamFn(ctx, examID, reviewerID)
}

func (m *mockExamService) RejectExam(ctx context.Context, examID, reviewerID int64) (*Exam, error) {
	if m.rejectExamFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.rejectExamFn(ctx, examID, reviewerID)
}

func (m *mockExamService) SubmitAttempt(ctx context.Context, examID, studentID int64, answers map[string]string, raw json.RawMessage) (*Attempt, error) {
	if m.submitAttemptFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.submitAttemptFn(ctx, examID, studentID, answers, raw)
}

func (m *mockExamService) HasAttempt(ctx context.Context, examID, studentID int64) (bool, error) {
	if m.hasAttemptFn == nil {
		return false, errors.New("not implemented")
	}
	return m.hasAttemptFn(ctx, examID, studentID)
}

func (m *mockExamService) ListAttemptsByStudent(ctx context.Context, studentID int64) ([]AttemptRecord, error) {
	if m.listAttemptsByStudentFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listAttemptsByStudentFn(ctx, studentID)
}

func newTestRouter(svc ExamService) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Post("/free-exams", h.Create)
	r.Get("/free-exams/{id}", h.Get)
	r.Patch("/free-exams/{id}/questions/{questionID}", h.UpdateQuestion)
	r.Post("/free-exams/{id}/approve", h.Approve)
	r.Post("/free-exams/{id}/reject", h.Reject)
	r.Post("/free-exams/{id}/submit", h.Submit)
	r.Get("/free-exams", h.ListMine)
	return r
}

func doRequest(t *testing.T, handler http.Handler, user *auth.User, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if user != nil {
		req = req.WithContext(auth.ContextWithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func teacherUser(id int64) *auth.User {
	return &auth.User{ID: id, Username: "teacher1", FullName: "Teacher One", Role: auth.RoleTeacher, IsActive: true}
}

func studentUser(id int64) *auth.User {
	return &auth.User{ID: id, Username: "student1", FullName: "Student One", Role: auth.RoleStudent, Grade: "10", IsActive: true}
}

func directorUser(id int64) *auth.User {
	return &auth.User{ID: id, Username: "director1", FullName: "Director One", Role: auth.RoleSchoolDirector, IsActive: true}
}

func sampleExam(ownerID int64, status string) *Exam {
	answer := "B"
	text := "2 + 2 = ?"
	return &Exam{
		ID:              7,
		Category:        CategoryFree,
		Title:           "Term 1 Mathematics",
		ExamType:        "midterm",
		Grade:           "10",
		Subject:         "Mathematics",
		DurationMinutes: 60,
		StartDatetime:   time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		TotalQuestions:  1,
		Status:          status,
		CreatedBy:       &ownerID,
		Questions: []Question{
			{
				ID:       11,
				ExamID:   7,
				Type:     TypeMCQ,
				Text:     &text,
				Answer:   &answer,
				Position: 0,
				MCQOptions: []MCQOption{
					{Key: "A", Text: "3"}, {Key: "B", Text: "4"}, {Key: "C", Text: "5"}, {Key: "D", Text: "6"},
				},
			},
		},
	}
}

func TestHandlerCreate(t *testing.T) {
	svc := &mockExamService{
		createExamFn: func(ctx context.Context, in CreateExamInput, ownerID int64) (*Exam, error) {
			if ownerID != 42 {
				t.Fatalf("expected owner 42, got %d", ownerID)
			}
			return sampleExam(ownerID, StatusPendingApproval), nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, teacherUser(42), http.MethodPost, "/free-exams", baseExamInput())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), StatusPendingApproval) {
		t.Fatalf("expected pending_approval status in body: %s", rec.Body.String())
	}
}

func TestHandlerCreate_ValidationError(t *testing.T) {
	// Real validation runs inside the service; the handler just maps the
	// sentinel.
	svc := &mockExamService{
		createExamFn: func(ctx context.Context, in CreateExamInput, ownerID int64) (*Exam, error) {
			return nil, ValidateExam(CreateExamInput{})
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, teacherUser(42), http.MethodPost, "/free-exams", baseExamInput())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerGet_OwnerSeesAnswers(t *testing.T) {
	svc := &mockExamService{
		getExamByIDFn: func(ctx context.Context, examID int64) (*Exam, error) {
			return sampleExam(42, StatusPendingApproval), nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, teacherUser(42), http.MethodGet, "/free-exams/7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"answer"`) {
		t.Fatalf("expected answers in owner view: %s", rec.Body.String())
	}
}

func TestHandlerGet_OtherTeacherForbidden(t *testing.T) {
	svc := &mockExamService{
		getExamByIDFn: func(ctx context.Context, examID int64) (*Exam, error) {
			return sampleExam(42, StatusPendingApproval), nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, teacherUser(99), http.MethodGet, "/free-exams/7", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerGet_StudentRedactedBeforeAttempt(t *testing.T) {
	svc := &mockExamService{
		getExamByIDFn: func(ctx context.Context, examID int64) (*Exam, error) {
			return sampleExam(42, StatusApproved), nil
		},
		hasAttemptFn: func(ctx context.Context, examID, studentID int64) (bool, error) {
			return false, nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, studentUser(5), http.MethodGet, "/free-exams/7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"answer"`) {
		t.Fatalf("expected answers stripped from student view: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"mcq_options"`) {
		t.Fatalf("expected options to survive redaction: %s", rec.Body.String())
	}
}

func TestHandlerGet_StudentFullViewAfterAttempt(t *testing.T) {
	svc := &mockExamService{
		getExamByIDFn: func(ctx context.Context, examID int64) (*Exam, error) {
			return sampleExam(42, StatusApproved), nil
		},
		hasAttemptFn: func(ctx context.Context, examID, studentID int64) (bool, error) {
			return true, nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, studentUser(5), http.MethodGet, "/free-exams/7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"answer"`) {
		t.Fatalf("expected answers visible after attempt: %s", rec.Body.String())
	}
}

func TestHandlerGet_StudentRedactedOnPending(t *testing.T) {
	svc := &mockExamService{
		getExamByIDFn: func(ctx context.Context, examID int64) (*Exam, error) {
			return sampleExam(42, StatusPendingApproval), nil
		},
		hasAttemptFn: func(ctx context.Context, examID, studentID int64) (bool, error) {
			return false, nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, studentUser(5), http.MethodGet, "/free-exams/7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"answer"`) {
		t.Fatalf("expected answers stripped on pending exam: %s", rec.Body.String())
	}
}

func TestHandlerGet_StudentForbiddenOnRejected(t *testing.T) {
	svc := &mockExamService{
		getExamByIDFn: func(ctx context.Context, examID int64) (*Exam, error) {
			return sampleExam(42, StatusRejected), nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, studentUser(5), http.MethodGet, "/free-exams/7", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerGet_NotFound(t *testing.T) {
	svc := &mockExamService{
		getExamByIDFn: func(ctx context.Context, examID int64) (*Exam, error) {
			return nil, ErrExamNotFound
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, teacherUser(42), http.MethodGet, "/free-exams/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerApprove_NonDirectorForbidden(t *testing.T) {
	svc := &mockExamService{}
	router := newTestRouter(svc)

	rec := doRequest(t, router, teacherUser(42), http.MethodPost, "/free-exams/7/approve", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerApprove_Director(t *testing.T) {
	svc := &mockExamService{
		approveExamFn: func(ctx context.Context, examID, reviewerID int64) (*Exam, error) {
			if reviewerID != 3 {
				t.Fatalf("expected reviewer 3, got %d", reviewerID)
			}
			exam := sampleExam(42, StatusApproved)
			exam.ReviewedBy = &reviewerID
			return exam, nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, directorUser(3), http.MethodPost, "/free-exams/7/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), StatusApproved) {
		t.Fatalf("expected approved status in body: %s", rec.Body.String())
	}
}

func TestHandlerReject_TerminalStateConflicts(t *testing.T) {
	svc := &mockExamService{
		rejectExamFn: func(ctx context.Context, examID, reviewerID int64) (*Exam, error) {
			return nil, ErrExamNotPending
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, directorUser(3), http.MethodPost, "/free-exams/7/reject", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerSubmit(t *testing.T) {
	svc := &mockExamService{
		submitAttemptFn: func(ctx context.Context, examID, studentID int64, answers map[string]string, raw json.RawMessage) (*Attempt, error) {
			if answers["11"] != "B" {
				t.Fatalf("expected answer for 11 to be B, got %q", answers["11"])
			}
			if answers["12"] != "2" {
				t.Fatalf("expected numeric answer flattened to string, got %q", answers["12"])
			}
			return &Attempt{ID: 1, ExamID: examID, StudentID: studentID, Score: 2, TotalQuestions: 2, Percentage: 100}, nil
		},
	}
	router := newTestRouter(svc)

	body := map[string]any{"11": "B", "12": 2}
	rec := doRequest(t, router, studentUser(5), http.MethodPost, "/free-exams/7/submit", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "PASSED") {
		t.Fatalf("expected PASSED label in body: %s", rec.Body.String())
	}
}

func TestHandlerSubmit_NullBody(t *testing.T) {
	svc := &mockExamService{}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/free-exams/7/submit", strings.NewReader("null"))
	req = req.WithContext(auth.ContextWithUser(req.Context(), studentUser(5)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerSubmit_NoQuestions(t *testing.T) {
	svc := &mockExamService{
		submitAttemptFn: func(ctx context.Context, examID, studentID int64, answers map[string]string, raw json.RawMessage) (*Attempt, error) {
			return nil, ErrExamNotSubmittable
		},
	}
	router := newTestRouter(svc)

	body := map[string]any{}
	rec := doRequest(t, router, studentUser(5), http.MethodPost, "/free-exams/7/submit", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerUpdateQuestion_OwnerOnly(t *testing.T) {
	svc := &mockExamService{
		getExamByIDFn: func(ctx context.Context, examID int64) (*Exam, error) {
			return sampleExam(42, StatusPendingApproval), nil
		},
	}
	router := newTestRouter(svc)

	body := map[string]any{"text": "updated"}
	rec := doRequest(t, router, teacherUser(99), http.MethodPatch, "/free-exams/7/questions/11", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerUpdateQuestion(t *testing.T) {
	svc := &mockExamService{
		getExamByIDFn: func(ctx context.Context, examID int64) (*Exam, error) {
			return sampleExam(42, StatusPendingApproval), nil
		},
		updateQuestionFn: func(ctx context.Context, examID, questionID int64, patch QuestionPatch) (*Question, error) {
			if patch.Text == nil || *patch.Text != "updated text" {
				t.Fatalf("expected text patch, got %+v", patch)
			}
			if patch.Answer != nil {
				t.Fatal("expected answer untouched when absent from body")
			}
			text := *patch.Text
			return &Question{ID: questionID, ExamID: examID, Type: TypeMCQ, Text: &text}, nil
		},
	}
	router := newTestRouter(svc)

	body := map[string]any{"text": "updated text"}
	rec := doRequest(t, router, teacherUser(42), http.MethodPatch, "/free-exams/7/questions/11", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "updated text") {
		t.Fatalf("expected updated text in body: %s", rec.Body.String())
	}
}
