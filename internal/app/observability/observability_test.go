package observability

import "testing"

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/v1/free-exams/123/questions/9")
	want := "/api/v1/free-exams/{id}/questions/{id}"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
}

func TestExtractExamID(t *testing.T) {
	if id := extractExamID("/api/v1/free-exams/456/submit"); id != 456 {
		t.Fatalf("expected 456, got %d", id)
	}
	if id := extractExamID("/api/v1/reports/exams/7"); id != 7 {
		t.Fatalf("expected 7 for report path, got %d", id)
	}
	if id := extractExamID("/api/v1/auth/me"); id != 0 {
		t.Fatalf("expected 0 for non-exam path, got %d", id)
	}
}
