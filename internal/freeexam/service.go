package freeexam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrValidation         = errors.New("invalid exam input")
	ErrExamNotFound       = errors.New("free exam not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrExamNotPending     = errors.New("exam is not pending approval")
	ErrExamNotSubmittable = errors.New("exam has no questions")
	ErrForbidden          = errors.New("forbidden")
)

const (
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type MCQOptionsInput struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

type MatchingPairInput struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type CreateQuestionInput struct {
	ClientID string              `json:"id"`
	Type     string              `json:"type"`
	Text     string              `json:"text"`
	Options  *MCQOptionsInput    `json:"options"`
	Answer   string              `json:"answer"`
	Matches  []MatchingPairInput `json:"matches"`
}

type CreateExamInput struct {
	Title           string                `json:"title"`
	ExamType        string                `json:"exam_type"`
	Grade           string                `json:"grade"`
	Stream          string                `json:"stream"`
	Subject         string                `json:"subject"`
	DurationMinutes int                   `json:"duration_minutes"`
	StartDatetime   time.Time             `json:"start_datetime"`
	TotalQuestions  int                   `json:"total_questions"`
	Category        string                `json:"category"`
	Questions       []CreateQuestionInput `json:"questions"`
}

type MCQOption struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type MatchingPair struct {
	Position  int    `json:"position"`
	LeftText  string `json:"left_text"`
	RightText string `json:"right_text"`
}

type Question struct {
	ID            int64          `json:"id"`
	ExamID        int64          `json:"exam_id"`
	ClientID      *string        `json:"client_id,omitempty"`
	Type          string         `json:"type"`
	Text          *string        `json:"text,omitempty"`
	Answer        *string        `json:"answer,omitempty"`
	Position      int            `json:"position"`
	MCQOptions    []MCQOption    `json:"mcq_options,omitempty"`
	MatchingPairs []MatchingPair `json:"matching_pairs,omitempty"`
}

type Exam struct {
	ID              int64      `json:"id"`
	Category        string     `json:"category"`
	Title           string     `json:"title"`
	ExamType        string     `json:"exam_type"`
	Grade           string     `json:"grade"`
	Stream          *string    `json:"stream,omitempty"`
	Subject         string     `json:"subject"`
	DurationMinutes int        `json:"duration_minutes"`
	StartDatetime   time.Time  `json:"start_datetime"`
	TotalQuestions  int        `json:"total_questions"`
	Status          string     `json:"status"`
	CreatedBy       *int64     `json:"created_by,omitempty"`
	ReviewedBy      *int64     `json:"reviewed_by_id,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Questions       []Question `json:"questions"`
}

type ExamListItem struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Subject        string    `json:"subject"`
	Grade          string    `json:"grade"`
	Category       string    `json:"category"`
	Status         string    `json:"status"`
	TotalQuestions int       `json:"total_questions"`
	StartDatetime  time.Time `json:"start_datetime"`
	CreatedAt      time.Time `json:"created_at"`
}

type ApprovedFilter struct {
	Grade    string
	Stream   string
	Category string
}

type MCQOptionPatch struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type MatchingPairPatch struct {
	LeftText  string `json:"left_text"`
	RightText string `json:"right_text"`
}

// QuestionPatch is a partial update. Nil slice pointers leave the child set
// untouched; non-nil pointers replace it wholesale (delete then insert).
// Type-specific authoring rules are deliberately not re-checked here; the
// caller owns consistency of patched answers with the question type.
type QuestionPatch struct {
	Text          *string              `json:"text"`
	Answer        *string              `json:"answer"`
	MCQOptions    *[]MCQOptionPatch    `json:"mcq_options"`
	MatchingPairs *[]MatchingPairPatch `json:"matching_pairs"`
}

type Attempt struct {
	ID             int64           `json:"id"`
	ExamID         int64           `json:"exam_id"`
	StudentID      int64           `json:"student_id"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"total_questions"`
	Percentage     float64         `json:"percentage"`
	Answers        json.RawMessage `json:"answers,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type AttemptRecord struct {
	ID             int64     `json:"id"`
	ExamID         int64     `json:"exam_id"`
	ExamTitle      string    `json:"exam_title"`
	Subject        string    `json:"subject"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     float64   `json:"percentage"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateExam validates the candidate and persists the exam header, every
// question and its type-specific child rows in one transaction. The stored
// position is a running item ordinal: it advances by one per non-MATCHING
// question and by the pair count for MATCHING questions, preserving the
// ordering continuity of the authoring UI.
func (s *Service) CreateExam(ctx context.Context, in CreateExamInput, ownerID int64) (*Exam, error) {
	if err := ValidateExam(in); err != nil {
		return nil, err
	}
	category, err := NormalizeCategory(in.Category)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create exam tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var examID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO free_exams (
			category, title, exam_type, grade, stream, subject,
			duration_minutes, start_datetime, total_questions, status,
			created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''), $6,
			$7, $8, $9, $10,
			$11, now(), now()
		)
		RETURNING id
	`,
		category,
		strings.TrimSpace(in.Title),
		strings.TrimSpace(in.ExamType),
		strings.TrimSpace(in.Grade),
		strings.TrimSpace(in.Stream),
		strings.TrimSpace(in.Subject),
		in.DurationMinutes,
		in.StartDatetime,
		in.TotalQuestions,
		StatusPendingApproval,
		ownerID,
	).Scan(&examID)
	if err != nil {
		return nil, fmt.Errorf("insert exam: %w", err)
	}

	position := 0
	for _, q := range in.Questions {
		var questionID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO questions (exam_id, client_id, type, text, answer, position)
			VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6)
			RETURNING id
		`,
			examID,
			strings.TrimSpace(q.ClientID),
			q.Type,
			strings.TrimSpace(q.Text),
			strings.TrimSpace(q.Answer),
			position,
		).Scan(&questionID)
		if err != nil {
			return nil, fmt.Errorf("insert question: %w", err)
		}

		switch {
		case q.Type == TypeMCQ && q.Options != nil:
			for _, opt := range [...]struct{ key, text string }{
				{"A", q.Options.A}, {"B", q.Options.B}, {"C", q.Options.C}, {"D", q.Options.D},
			} {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO mcq_options (question_id, key, text)
					VALUES ($1, $2, $3)
				`, questionID, opt.key, strings.TrimSpace(opt.text)); err != nil {
					return nil, fmt.Errorf("insert mcq option: %w", err)
				}
			}
			position++

		case q.Type == TypeMatching && len(q.Matches) > 0:
			for idx, pair := range q.Matches {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO matching_pairs (question_id, position, left_text, right_text)
					VALUES ($1, $2, $3, $4)
				`, questionID, idx, strings.TrimSpace(pair.Left), strings.TrimSpace(pair.Right)); err != nil {
					return nil, fmt.Errorf("insert matching pair: %w", err)
				}
			}
			position += len(q.Matches)

		default:
			position++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create exam: %w", err)
	}

	return s.GetExamByID(ctx, examID)
}

// GetExamByID eager-loads the exam with its questions in position order,
// MCQ options keyed A..D in key order and matching pairs in pair order.
func (s *Service) GetExamByID(ctx context.Context, examID int64) (*Exam, error) {
	exam, err := s.loadExamHeader(ctx, examID)
	if err != nil {
		return nil, err
	}

	questions, err := s.loadQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	exam.Questions = questions
	return exam, nil
}

func (s *Service) ListExamsByOwner(ctx context.Context, ownerID int64, category string) ([]ExamListItem, error) {
	query := `
		SELECT id, title, subject, grade, category, status, total_questions, start_datetime, created_at
		FROM free_exams
		WHERE created_by = $1
	`
	args := []any{ownerID}
	if category != "" {
		normalized, err := NormalizeCategory(category)
		if err != nil {
			return nil, err
		}
		query += ` AND category = $2`
		args = append(args, normalized)
	}
	query += ` ORDER BY created_at DESC`
	return s.queryListItems(ctx, query, args...)
}

func (s *Service) ListAllExams(ctx context.Context) ([]ExamListItem, error) {
	return s.queryListItems(ctx, `
		SELECT id, title, subject, grade, category, status, total_questions, start_datetime, created_at
		FROM free_exams
		ORDER BY created_at DESC
	`)
}

// ListApprovedExams is the student-facing catalogue: approved exams only,
// soonest-scheduled last (newest start_datetime first).
func (s *Service) ListApprovedExams(ctx context.Context, filter ApprovedFilter) ([]ExamListItem, error) {
	query := `
		SELECT id, title, subject, grade, category, status, total_questions, start_datetime, created_at
		FROM free_exams
		WHERE status = $1
	`
	args := []any{StatusApproved}
	if v := strings.TrimSpace(filter.Grade); v != "" {
		args = append(args, v)
		query += fmt.Sprintf(` AND grade = $%d`, len(args))
	}
	if v := strings.TrimSpace(filter.Stream); v != "" {
		args = append(args, v)
		query += fmt.Sprintf(` AND (stream IS NULL OR stream = $%d)`, len(args))
	}
	if v := strings.TrimSpace(filter.Category); v != "" {
		normalized, err := NormalizeCategory(v)
		if err != nil {
			return nil, err
		}
		args = append(args, normalized)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	query += ` ORDER BY start_datetime DESC`
	return s.queryListItems(ctx, query, args...)
}

// UpdateQuestion applies a partial update to one question of one exam.
// Provided child sets replace the stored ones entirely; rows with an empty
// key or text are silently skipped rather than rejected.
func (s *Service) UpdateQuestion(ctx context.Context, examID, questionID int64, patch QuestionPatch) (*Question, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update question tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM questions WHERE id = $1 AND exam_id = $2)
	`, questionID, examID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check question: %w", err)
	}
	if !exists {
		return nil, ErrQuestionNotFound
	}

	if patch.Text != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE questions SET text = NULLIF($2, '') WHERE id = $1
		`, questionID, strings.TrimSpace(*patch.Text)); err != nil {
			return nil, fmt.Errorf("update question text: %w", err)
		}
	}
	if patch.Answer != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE questions SET answer = $2 WHERE id = $1
		`, questionID, strings.TrimSpace(*patch.Answer)); err != nil {
			return nil, fmt.Errorf("update question answer: %w", err)
		}
	}

	if patch.MCQOptions != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM mcq_options WHERE question_id = $1`, questionID); err != nil {
			return nil, fmt.Errorf("clear mcq options: %w", err)
		}
		for _, opt := range *patch.MCQOptions {
			key := strings.TrimSpace(opt.Key)
			text := strings.TrimSpace(opt.Text)
			if key == "" || text == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO mcq_options (question_id, key, text)
				VALUES ($1, $2, $3)
			`, questionID, key, text); err != nil {
				return nil, fmt.Errorf("insert mcq option: %w", err)
			}
		}
	}

	if patch.MatchingPairs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM matching_pairs WHERE question_id = $1`, questionID); err != nil {
			return nil, fmt.Errorf("clear matching pairs: %w", err)
		}
		for idx, pair := range *patch.MatchingPairs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO matching_pairs (question_id, position, left_text, right_text)
				VALUES ($1, $2, $3, $4)
			`, questionID, idx, strings.TrimSpace(pair.LeftText), strings.TrimSpace(pair.RightText)); err != nil {
				return nil, fmt.Errorf("insert matching pair: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update question: %w", err)
	}

	return s.getQuestionByID(ctx, questionID)
}

// ApproveExam transitions a pending exam to approved, recording the
// reviewer. The role gate for reviewers lives at the handler layer.
func (s *Service) ApproveExam(ctx context.Context, examID, reviewerID int64) (*Exam, error) {
	return s.reviewExam(ctx, examID, reviewerID, StatusApproved)
}

// RejectExam transitions a pending exam to rejected, recording the reviewer.
func (s *Service) RejectExam(ctx context.Context, examID, reviewerID int64) (*Exam, error) {
	return s.reviewExam(ctx, examID, reviewerID, StatusRejected)
}

func (s *Service) reviewExam(ctx context.Context, examID, reviewerID int64, nextStatus string) (*Exam, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE free_exams
		SET status = $2,
			reviewed_by_id = $3,
			reviewed_at = now(),
			updated_at = now()
		WHERE id = $1 AND status = $4
	`, examID, nextStatus, reviewerID, StatusPendingApproval)
	if err != nil {
		return nil, fmt.Errorf("review exam: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("review exam affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM free_exams WHERE id = $1)
		`, examID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check exam exists: %w", err)
		}
		if !exists {
			return nil, ErrExamNotFound
		}
		return nil, ErrExamNotPending
	}
	return s.loadExamHeader(ctx, examID)
}

// SubmitAttempt grades a flat answers map against the exam's stored answers
// and records one immutable attempt row. rawAnswers is the submission body
// as received, kept verbatim for audit; when empty the normalized map is
// marshalled in its place. Duplicate submissions by the same student are
// allowed and each produces its own row.
func (s *Service) SubmitAttempt(ctx context.Context, examID, studentID int64, answers map[string]string, rawAnswers json.RawMessage) (*Attempt, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM free_exams WHERE id = $1)
	`, examID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check exam exists: %w", err)
	}
	if !exists {
		return nil, ErrExamNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(answer, '')
		FROM questions
		WHERE exam_id = $1
		ORDER BY position ASC, id ASC
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("query exam questions: %w", err)
	}
	defer rows.Close()

	stored := make([]storedAnswer, 0)
	for rows.Next() {
		var q storedAnswer
		if err := rows.Scan(&q.QuestionID, &q.Answer); err != nil {
			return nil, fmt.Errorf("scan question answer: %w", err)
		}
		stored = append(stored, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question answers: %w", err)
	}
	if len(stored) == 0 {
		return nil, ErrExamNotSubmittable
	}

	correct := scoreAnswers(stored, answers)
	total := len(stored)
	pct := Percentage(correct, total)

	if len(rawAnswers) == 0 {
		b, err := json.Marshal(answers)
		if err != nil {
			return nil, fmt.Errorf("marshal answers: %w", err)
		}
		rawAnswers = b
	}

	out := &Attempt{
		ExamID:         examID,
		StudentID:      studentID,
		Score:          correct,
		TotalQuestions: total,
		Percentage:     pct,
		Answers:        rawAnswers,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO exam_attempts (student_id, exam_id, score, total_questions, percentage, answers_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, now())
		RETURNING id, created_at
	`, studentID, examID, correct, total, pct, []byte(rawAnswers)).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}
	return out, nil
}

func (s *Service) HasAttempt(ctx context.Context, examID, studentID int64) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM exam_attempts WHERE exam_id = $1 AND student_id = $2)
	`, examID, studentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check attempt exists: %w", err)
	}
	return exists, nil
}

func (s *Service) ListAttemptsByStudent(ctx context.Context, studentID int64) ([]AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.exam_id, e.title, e.subject, a.score, a.total_questions, a.percentage, a.created_at
		FROM exam_attempts a
		JOIN free_exams e ON e.id = a.exam_id
		WHERE a.student_id = $1
		ORDER BY a.created_at DESC
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	items := make([]AttemptRecord, 0)
	for rows.Next() {
		var it AttemptRecord
		if err := rows.Scan(&it.ID, &it.ExamID, &it.ExamTitle, &it.Subject, &it.Score, &it.TotalQuestions, &it.Percentage, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		it.Status = ResultLabel(it.Percentage)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return items, nil
}

func (s *Service) loadExamHeader(ctx context.Context, examID int64) (*Exam, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, category, title, exam_type, grade, stream, subject,
			duration_minutes, start_datetime, total_questions, status,
			created_by, reviewed_by_id, reviewed_at, created_at, updated_at
		FROM free_exams
		WHERE id = $1
	`, examID)

	var out Exam
	var stream sql.NullString
	var createdBy, reviewedBy sql.NullInt64
	var reviewedAt sql.NullTime
	if err := row.Scan(
		&out.ID,
		&out.Category,
		&out.Title,
		&out.ExamType,
		&out.Grade,
		&stream,
		&out.Subject,
		&out.DurationMinutes,
		&out.StartDatetime,
		&out.TotalQuestions,
		&out.Status,
		&createdBy,
		&reviewedBy,
		&reviewedAt,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if stream.Valid {
		out.Stream = &stream.String
	}
	if createdBy.Valid {
		out.CreatedBy = &createdBy.Int64
	}
	if reviewedBy.Valid {
		out.ReviewedBy = &reviewedBy.Int64
	}
	if reviewedAt.Valid {
		out.ReviewedAt = &reviewedAt.Time
	}
	return &out, nil
}

func (s *Service) loadQuestions(ctx context.Context, examID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, exam_id, client_id, type, text, answer, position
		FROM questions
		WHERE exam_id = $1
		ORDER BY position ASC, id ASC
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := make([]Question, 0)
	index := make(map[int64]int)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		index[q.ID] = len(questions)
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	optRows, err := s.db.QueryContext(ctx, `
		SELECT o.question_id, o.key, o.text
		FROM mcq_options o
		JOIN questions q ON q.id = o.question_id
		WHERE q.exam_id = $1
		ORDER BY o.question_id ASC, o.key ASC
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("query mcq options: %w", err)
	}
	defer optRows.Close()
	for optRows.Next() {
		var questionID int64
		var opt MCQOption
		if err := optRows.Scan(&questionID, &opt.Key, &opt.Text); err != nil {
			return nil, fmt.Errorf("scan mcq option: %w", err)
		}
		if i, ok := index[questionID]; ok {
			questions[i].MCQOptions = append(questions[i].MCQOptions, opt)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mcq options: %w", err)
	}

	pairRows, err := s.db.QueryContext(ctx, `
		SELECT p.question_id, p.position, p.left_text, p.right_text
		FROM matching_pairs p
		JOIN questions q ON q.id = p.question_id
		WHERE q.exam_id = $1
		ORDER BY p.question_id ASC, p.position ASC
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("query matching pairs: %w", err)
	}
	defer pairRows.Close()
	for pairRows.Next() {
		var questionID int64
		var pair MatchingPair
		if err := pairRows.Scan(&questionID, &pair.Position, &pair.LeftText, &pair.RightText); err != nil {
			return nil, fmt.Errorf("scan matching pair: %w", err)
		}
		if i, ok := index[questionID]; ok {
			questions[i].MatchingPairs = append(questions[i].MatchingPairs, pair)
		}
	}
	if err := pairRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matching pairs: %w", err)
	}

	return questions, nil
}

func (s *Service) getQuestionByID(ctx context.Context, questionID int64) (*Question, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, exam_id, client_id, type, text, answer, position
		FROM questions
		WHERE id = $1
	`, questionID)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}

	optRows, err := s.db.QueryContext(ctx, `
		SELECT key, text
		FROM mcq_options
		WHERE question_id = $1
		ORDER BY key ASC
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query mcq options: %w", err)
	}
	defer optRows.Close()
	for optRows.Next() {
		var opt MCQOption
		if err := optRows.Scan(&opt.Key, &opt.Text); err != nil {
			return nil, fmt.Errorf("scan mcq option: %w", err)
		}
		q.MCQOptions = append(q.MCQOptions, opt)
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mcq options: %w", err)
	}

	pairRows, err := s.db.QueryContext(ctx, `
		SELECT position, left_text, right_text
		FROM matching_pairs
		WHERE question_id = $1
		ORDER BY position ASC
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query matching pairs: %w", err)
	}
	defer pairRows.Close()
	for pairRows.Next() {
		var pair MatchingPair
		if err := pairRows.Scan(&pair.Position, &pair.LeftText, &pair.RightText); err != nil {
			return nil, fmt.Errorf("scan matching pair: %w", err)
		}
		q.MatchingPairs = append(q.MatchingPairs, pair)
	}
	if err := pairRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matching pairs: %w", err)
	}

	return q, nil
}

func (s *Service) queryListItems(ctx context.Context, query string, args ...any) ([]ExamListItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exams: %w", err)
	}
	defer rows.Close()

	items := make([]ExamListItem, 0)
	for rows.Next() {
		var it ExamListItem
		if err := rows.Scan(
			&it.ID,
			&it.Title,
			&it.Subject,
			&it.Grade,
			&it.Category,
			&it.Status,
			&it.TotalQuestions,
			&it.StartDatetime,
			&it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exam list item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exams: %w", err)
	}
	return items, nil
}

func scanQuestion(scanner interface{ Scan(dest ...any) error }) (*Question, error) {
	var q Question
	var clientID, text, answer sql.NullString
	if err := scanner.Scan(&q.ID, &q.ExamID, &clientID, &q.Type, &text, &answer, &q.Position); err != nil {
		return nil, err
	}
	if clientID.Valid {
		q.ClientID = &clientID.String
	}
	if text.Valid {
		q.Text = &text.String
	}
	if answer.Valid {
		q.Answer = &answer.String
	}
	return &q, nil
}

func int64Key(id int64) string {
	return strconv.FormatInt(id, 10)
}
