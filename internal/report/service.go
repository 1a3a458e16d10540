package report

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"schoolexams/internal/freeexam"
)

var ErrExamNotFound = errors.New("free exam not found")

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type AttemptRow struct {
	AttemptID      int64     `json:"attempt_id"`
	StudentID      int64     `json:"student_id"`
	StudentName    string    `json:"student_name"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     float64   `json:"percentage"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type ExamReport struct {
	ExamID            int64        `json:"exam_id"`
	Title             string       `json:"title"`
	Subject           string       `json:"subject"`
	Grade             string       `json:"grade"`
	Participants      int          `json:"participants"`
	PassCount         int          `json:"pass_count"`
	AveragePercentage float64      `json:"average_percentage"`
	HighestPercentage float64      `json:"highest_percentage"`
	LowestPercentage  float64      `json:"lowest_percentage"`
	Attempts          []AttemptRow `json:"attempts"`
}

// ExamResults aggregates every attempt on one exam, newest first, with
// PASSED/FAILED labels and summary figures over the attempt percentages.
func (s *Service) ExamResults(ctx context.Context, examID int64) (*ExamReport, error) {
	out := &ExamReport{ExamID: examID}
	err := s.db.QueryRowContext(ctx, `
		SELECT title, subject, grade
		FROM free_exams
		WHERE id = $1
	`, examID).Scan(&out.Title, &out.Subject, &out.Grade)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, u.full_name, a.score, a.total_questions, a.percentage, a.created_at
		FROM exam_attempts a
		JOIN users u ON u.id = a.student_id
		WHERE a.exam_id = $1
		ORDER BY a.created_at DESC
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	out.Attempts = make([]AttemptRow, 0)
	var sum float64
	for rows.Next() {
		var row AttemptRow
		if err := rows.Scan(&row.AttemptID, &row.StudentID, &row.StudentName, &row.Score, &row.TotalQuestions, &row.Percentage, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		row.Status = freeexam.ResultLabel(row.Percentage)
		if row.Status == "PASSED" {
			out.PassCount++
		}
		sum += row.Percentage
		if len(out.Attempts) == 0 {
			out.HighestPercentage = row.Percentage
			out.LowestPercentage = row.Percentage
		} else {
			if row.Percentage > out.HighestPercentage {
				out.HighestPercentage = row.Percentage
			}
			if row.Percentage < out.LowestPercentage {
				out.LowestPercentage = row.Percentage
			}
		}
		out.Attempts = append(out.Attempts, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	out.Participants = len(out.Attempts)
	if out.Participants > 0 {
		out.AveragePercentage = roundTwo(sum / float64(out.Participants))
	}
	return out, nil
}

// ExportExamResultsExcel renders the exam report as an xlsx workbook:
// one header row, one row per attempt.
func (s *Service) ExportExamResultsExcel(ctx context.Context, examID int64) ([]byte, error) {
	report, err := s.ExamResults(ctx, examID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"attempt_id", "student_name", "score", "total_questions", "percentage", "status", "submitted_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, row := range report.Attempts {
		values := []any{
			row.AttemptID,
			row.StudentName,
			row.Score,
			row.TotalQuestions,
			row.Percentage,
			row.Status,
			row.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "G", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func roundTwo(v float64) float64 {
	return math.Round(v*100) / 100
}
