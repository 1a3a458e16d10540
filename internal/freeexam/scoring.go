package freeexam

import (
	"math"
	"strings"
)

// storedAnswer is the minimal view of a question the scorer needs.
type storedAnswer struct {
	QuestionID int64
	Answer     string
}

// scoreAnswers counts submitted answers that exactly match the stored answer
// after trimming and lowercasing both sides. A question with no submitted
// value (or an empty one) simply counts as incorrect. Submission keys are
// question ids rendered as strings; MATCHING answers arrive pre-encoded in
// the same letter-sequence form the author stored.
func scoreAnswers(stored []storedAnswer, submitted map[string]string) int {
	correct := 0
	for _, q := range stored {
		value, ok := lookupSubmitted(submitted, q.QuestionID)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if normalizeAnswer(q.Answer) == normalizeAnswer(value) {
			correct++
		}
	}
	return correct
}

func lookupSubmitted(submitted map[string]string, questionID int64) (string, bool) {
	v, ok := submitted[int64Key(questionID)]
	return v, ok
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Percentage returns correct/total as a 0-100 value rounded to two decimals.
// A zero total yields 0 rather than dividing by it.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(correct) / float64(total) * 100
	return math.Round(pct*100) / 100
}

// ResultLabel derives the display verdict for an attempt. The pass boundary
// is inclusive at 50 percent.
func ResultLabel(percentage float64) string {
	if percentage >= 50 {
		return "PASSED"
	}
	return "FAILED"
}
