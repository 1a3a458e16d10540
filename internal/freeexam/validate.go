package freeexam

import (
	"fmt"
	"strings"
)

// Recognized question types. A MATCHING question contributes one item per
// pair to the exam's total_questions; every other type contributes one.
const (
	TypeMCQ       = "MCQ"
	TypeTrueFalse = "TRUE_FALSE"
	TypeBlank     = "BLANK"
	TypeMatching  = "MATCHING"
)

const (
	CategoryFree = "free"
	CategoryPaid = "paid"
)

// ValidateExam checks a candidate exam before anything is persisted. It is a
// pure check: the first violated rule is returned wrapped in ErrValidation.
func ValidateExam(in CreateExamInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(in.ExamType) == "" {
		return fmt.Errorf("%w: exam_type is required", ErrValidation)
	}
	if strings.TrimSpace(in.Grade) == "" {
		return fmt.Errorf("%w: grade is required", ErrValidation)
	}
	if strings.TrimSpace(in.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if in.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration_minutes must be > 0", ErrValidation)
	}
	if in.TotalQuestions < 0 {
		return fmt.Errorf("%w: total_questions must be >= 0", ErrValidation)
	}
	if in.StartDatetime.IsZero() {
		return fmt.Errorf("%w: start_datetime is required", ErrValidation)
	}

	if _, err := NormalizeCategory(in.Category); err != nil {
		return err
	}

	for _, q := range in.Questions {
		if err := validateQuestion(q); err != nil {
			return err
		}
	}

	computed := computedItemCount(in.Questions)
	if computed != in.TotalQuestions {
		return fmt.Errorf("%w: total_questions %d does not match computed number of items %d",
			ErrValidation, in.TotalQuestions, computed)
	}

	return nil
}

// NormalizeCategory trims and lowercases the category, defaulting the empty
// string to "free". Anything other than free/paid is a validation failure.
func NormalizeCategory(raw string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(raw))
	if c == "" {
		return CategoryFree, nil
	}
	if c != CategoryFree && c != CategoryPaid {
		return "", fmt.Errorf("%w: invalid category %q; expected 'free' or 'paid'", ErrValidation, raw)
	}
	return c, nil
}

func validateQuestion(q CreateQuestionInput) error {
	answer := strings.TrimSpace(q.Answer)

	switch q.Type {
	case TypeMCQ:
		if strings.TrimSpace(q.Text) == "" {
			return questionErr(q, "text is required")
		}
		if q.Options == nil {
			return questionErr(q, "all MCQ options (A-D) are required and non-empty")
		}
		for _, opt := range [...]struct{ key, text string }{
			{"A", q.Options.A}, {"B", q.Options.B}, {"C", q.Options.C}, {"D", q.Options.D},
		} {
			if strings.TrimSpace(opt.text) == "" {
				return questionErr(q, "all MCQ options (A-D) are required and non-empty")
			}
		}
		switch answer {
		case "A", "B", "C", "D":
		default:
			return questionErr(q, "MCQ answer must be one of 'A','B','C','D'")
		}

	case TypeTrueFalse:
		if strings.TrimSpace(q.Text) == "" {
			return questionErr(q, "text is required")
		}
		if answer != "True" && answer != "False" {
			return questionErr(q, "TRUE_FALSE answer must be 'True' or 'False'")
		}

	case TypeBlank:
		if strings.TrimSpace(q.Text) == "" {
			return questionErr(q, "text is required")
		}
		if answer == "" {
			return questionErr(q, "BLANK type requires a non-empty answer")
		}

	case TypeMatching:
		if len(q.Matches) == 0 {
			return questionErr(q, "MATCHING type must include matches array")
		}
		if err := validateMatchingAnswer(answer, len(q.Matches)); err != nil {
			return questionErr(q, err.Error())
		}

	default:
		return questionErr(q, fmt.Sprintf("unknown question type %q", q.Type))
	}

	return nil
}

// validateMatchingAnswer checks the letter-sequence encoding of a MATCHING
// answer: one single uppercase letter per pair, separated by whitespace or
// commas, with no duplicates. The sequence encodes the right-column order.
func validateMatchingAnswer(answer string, pairs int) error {
	parts := splitAnswerLetters(answer)
	if len(parts) != pairs {
		return fmt.Errorf("number of answer letters must equal number of matching pairs")
	}
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		if len(p) != 1 || p[0] < 'A' || p[0] > 'Z' {
			return fmt.Errorf("matching answers must be single uppercase letters A..Z")
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("matching answers must not contain duplicates")
		}
		seen[p] = struct{}{}
	}
	return nil
}

func splitAnswerLetters(answer string) []string {
	fields := strings.FieldsFunc(answer, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func computedItemCount(questions []CreateQuestionInput) int {
	total := 0
	for _, q := range questions {
		if q.Type == TypeMatching {
			total += len(q.Matches)
		} else {
			total++
		}
	}
	return total
}

func questionErr(q CreateQuestionInput, msg string) error {
	if strings.TrimSpace(q.ClientID) != "" {
		return fmt.Errorf("%w: question %s: %s", ErrValidation, q.ClientID, msg)
	}
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
