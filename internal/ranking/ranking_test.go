package ranking

import (
	"errors"
	"testing"
	"time"

	"dus-exam-service/internal/domain"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func result(id, name string, net float64, minute int) domain.Result {
	return domain.Result{
		ID:          id,
		ExamID:      "exam-1",
		ExamTitle:   "Deneme",
		StudentName: name,
		TotalNet:    net,
		CompletedAt: base.Add(time.Duration(minute) * time.Minute),
	}
}

func sampleResults() []domain.Result {
	return []domain.Result{
		result("r4", "Deniz", 10, 1),
		result("r2", "Bora", 20, 5),
		result("r1", "Ayla", 30, 9),
		result("r3", "Cem", 20, 2),
	}
}

func TestBuildOrdersByNetThenEarliestCompletion(t *testing.T) {
	lb := Build("exam-1", sampleResults())

	want := []string{"r1", "r3", "r2", "r4"}
	if lb.Total != 4 || len(lb.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %+v", lb)
	}
	for i, id := range want {
		if lb.Entries[i].ResultID != id || lb.Entries[i].Rank != i+1 {
			t.Fatalf("position %d: expected %s rank %d, got %+v", i, id, i+1, lb.Entries[i])
		}
	}
	if lb.ExamTitle != "Deneme" {
		t.Fatalf("expected exam title, got %q", lb.ExamTitle)
	}
}

func TestBuildFullTieFallsBackToID(t *testing.T) {
	lb := Build("exam-1", []domain.Result{
		result("b", "Same", 5, 0),
		result("a", "Same", 5, 0),
	})
	if lb.Entries[0].ResultID != "a" || lb.Entries[1].Rank != 2 {
		t.Fatalf("expected distinct sequential ranks, got %+v", lb.Entries)
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	in := sampleResults()
	_ = Build("exam-1", in)
	if in[0].ID != "r4" {
		t.Fatalf("input reordered: %+v", in)
	}
}

func TestFilterKeepsOriginalRank(t *testing.T) {
	lb := Build("exam-1", sampleResults())

	filtered := Filter(lb, "DEN")
	if len(filtered.Entries) != 1 {
		t.Fatalf("expected one match, got %+v", filtered.Entries)
	}
	if filtered.Entries[0].Rank != 4 || filtered.Entries[0].TotalNet != 10 {
		t.Fatalf("expected rank 4 preserved, got %+v", filtered.Entries[0])
	}
	if filtered.Total != 4 {
		t.Fatalf("total should count all entrants, got %d", filtered.Total)
	}

	if all := Filter(lb, "  "); len(all.Entries) != 4 {
		t.Fatalf("blank term should keep everything")
	}
	if none := Filter(lb, "zzz"); len(none.Entries) != 0 {
		t.Fatalf("expected no matches, got %+v", none.Entries)
	}
}

func TestPosition(t *testing.T) {
	rank, total, err := Position(sampleResults(), "r2")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if rank != 3 || total != 4 {
		t.Fatalf("expected 3/4, got %d/%d", rank, total)
	}

	_, total, err = Position(sampleResults(), "missing")
	if !errors.Is(err, domain.ErrResultNotFound) || total != 4 {
		t.Fatalf("expected not found with total 4, got %v total=%d", err, total)
	}

	if _, _, err := Position(nil, "r1"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected not found on empty set, got %v", err)
	}
}
