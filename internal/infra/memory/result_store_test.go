package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dus-exam-service/internal/domain"
)

func TestResultStoreAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	id1, err := store.SaveResult(ctx, domain.Result{ExamID: "exam-1", StudentName: "Ayla", TotalNet: 12, CompletedAt: base})
	if err != nil || id1 == "" {
		t.Fatalf("save: id=%q err=%v", id1, err)
	}
	id2, _ := store.SaveResult(ctx, domain.Result{ID: "fixed", ExamID: "exam-1", StudentName: "Bora", CompletedAt: base.Add(time.Minute)})
	if id2 != "fixed" {
		t.Fatalf("expected caller id kept, got %q", id2)
	}
	_, _ = store.SaveResult(ctx, domain.Result{ID: "fixed", ExamID: "exam-1", StudentName: "Overwrite"})
	_, _ = store.SaveResult(ctx, domain.Result{ExamID: "exam-2", StudentName: "Cem", CompletedAt: base.Add(2 * time.Minute)})

	got, err := store.LoadResult(ctx, "fixed")
	if err != nil || got.StudentName != "Bora" {
		t.Fatalf("expected original result kept, got %+v err=%v", got, err)
	}

	forExam, _ := store.LoadResultsForExam(ctx, "exam-1")
	if len(forExam) != 2 {
		t.Fatalf("expected 2 results for exam-1, got %d", len(forExam))
	}

	recent, _ := store.ListRecent(ctx, 2)
	if len(recent) != 2 || recent[0].StudentName != "Cem" || recent[1].StudentName != "Bora" {
		t.Fatalf("unexpected recent order %+v", recent)
	}

	if _, err := store.LoadResult(ctx, "missing"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResultStoreHandsOutCopies(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()
	saved := domain.Result{
		ID:      "r1",
		ExamID:  "exam-1",
		Answers: domain.Ledger{"q1": 0},
		Lessons: map[string]domain.LessonStats{"Genel": {Correct: 1, Total: 1}},
	}
	if _, err := store.SaveResult(ctx, saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved.Answers["q1"] = 3
	saved.Lessons["Genel"] = domain.LessonStats{Total: 42}

	loaded, _ := store.LoadResult(ctx, "r1")
	loaded.Answers["q1"] = 4
	loaded.Lessons["Genel"] = domain.LessonStats{Total: 99}
	forExam, _ := store.LoadResultsForExam(ctx, "exam-1")
	forExam[0].Answers["q1"] = 2
	recent, _ := store.ListRecent(ctx, 0)
	recent[0].Lessons["Genel"] = domain.LessonStats{Total: 7}

	again, _ := store.LoadResult(ctx, "r1")
	if again.Answers["q1"] != 0 || again.Lessons["Genel"].Total != 1 {
		t.Fatalf("stored result changed: answers=%v lessons=%v", again.Answers, again.Lessons)
	}
}
