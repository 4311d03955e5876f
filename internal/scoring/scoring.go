// Package scoring turns an answer ledger into category nets and composite scores.
package scoring

import (
	"math"
	"time"

	"dus-exam-service/internal/domain"
)

// Weights of the two composite scores.
const (
	kFoundationalWeight = 0.4
	kClinicalWeight     = 0.6
	tFoundationalWeight = 0.6
	tClinicalWeight     = 0.4
)

// Net applies the one-quarter negative marking rule, floored at zero.
func Net(correct, incorrect int) float64 {
	return math.Max(0, float64(correct)-float64(incorrect)/4)
}

// ScoreK is the clinical-weighted composite.
func ScoreK(foundationalNet, clinicalNet float64) float64 {
	return kFoundationalWeight*foundationalNet + kClinicalWeight*clinicalNet
}

// ScoreT is the foundational-weighted composite.
func ScoreT(foundationalNet, clinicalNet float64) float64 {
	return tFoundationalWeight*foundationalNet + tClinicalWeight*clinicalNet
}

// Classify decides the outcome of one question against the ledger.
func Classify(q domain.Question, ledger domain.Ledger) domain.Outcome {
	chosen, ok := ledger[q.ID]
	switch {
	case !ok:
		return domain.OutcomeEmpty
	case chosen == q.CorrectOption:
		return domain.OutcomeCorrect
	default:
		return domain.OutcomeIncorrect
	}
}

// Compute scores the exam's current question set against the ledger.
// Ledger entries for questions outside the set are ignored; the ledger itself
// is copied verbatim into the result. The result ID is assigned by the store.
func Compute(exam domain.Exam, studentName string, ledger domain.Ledger, completedAt time.Time) domain.Result {
	var foundational, clinical domain.CategoryStats
	lessons := make(map[string]domain.LessonStats)

	for _, q := range exam.Questions {
		category := q.CategoryOrDefault()
		outcome := Classify(q, ledger)

		stats := &foundational
		if category == domain.CategoryClinical {
			stats = &clinical
		}
		bump(&stats.Correct, &stats.Incorrect, &stats.Empty, outcome)

		lesson := q.LessonOrDefault()
		ls, ok := lessons[lesson]
		if !ok {
			ls.Category = category
		}
		ls.Total++
		bump(&ls.Correct, &ls.Incorrect, &ls.Empty, outcome)
		lessons[lesson] = ls
	}

	foundational.Net = Net(foundational.Correct, foundational.Incorrect)
	clinical.Net = Net(clinical.Correct, clinical.Incorrect)

	answers := ledger.Clone()
	return domain.Result{
		ExamID:       exam.ID,
		ExamTitle:    exam.Title,
		StudentName:  studentName,
		Foundational: foundational,
		Clinical:     clinical,
		Lessons:      lessons,
		ScoreK:       ScoreK(foundational.Net, clinical.Net),
		ScoreT:       ScoreT(foundational.Net, clinical.Net),
		TotalNet:     foundational.Net + clinical.Net,
		CompletedAt:  completedAt,
		Answers:      answers,
	}
}

func bump(correct, incorrect, empty *int, outcome domain.Outcome) {
	switch outcome {
	case domain.OutcomeCorrect:
		*correct++
	case domain.OutcomeIncorrect:
		*incorrect++
	default:
		*empty++
	}
}

// Review builds the per-question answer sheet of a result.
func Review(exam domain.Exam, result domain.Result) []domain.ReviewItem {
	items := make([]domain.ReviewItem, 0, len(exam.Questions))
	for i, q := range exam.Questions {
		item := domain.ReviewItem{
			Number:        i + 1,
			QuestionID:    q.ID,
			Text:          q.Text,
			Category:      q.CategoryOrDefault(),
			Lesson:        q.LessonOrDefault(),
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			Outcome:       Classify(q, result.Answers),
		}
		if chosen, ok := result.Answers[q.ID]; ok {
			chosen := chosen
			item.Chosen = &chosen
		}
		items = append(items, item)
	}
	return items
}
