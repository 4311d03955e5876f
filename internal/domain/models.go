package domain

import (
	"fmt"
	"time"
)

// Category is the top-level subject grouping used for weighted scoring.
type Category string

const (
	CategoryFoundational Category = "Temel"
	CategoryClinical     Category = "Klinik"
)

// DefaultLesson labels questions that carry no lesson.
const DefaultLesson = "Genel"

// OptionCount is the number of options every question carries.
const OptionCount = 5

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Category      Category `json:"category,omitempty"`
	Lesson        string   `json:"lesson,omitempty"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	ImageURL      string   `json:"imageUrl,omitempty"`
}

// CategoryOrDefault treats an unset category as foundational.
func (q Question) CategoryOrDefault() Category {
	if q.Category == "" {
		return CategoryFoundational
	}
	return q.Category
}

// LessonOrDefault returns the lesson label or DefaultLesson.
func (q Question) LessonOrDefault() string {
	if q.Lesson == "" {
		return DefaultLesson
	}
	return q.Lesson
}

// Exam is a timed, ordered collection of questions.
type Exam struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	Questions       []Question `json:"questions"`
}

// Validate checks the exam invariants.
func (e Exam) Validate() error {
	if e.DurationMinutes <= 0 {
		return ErrInvalidExam
	}
	return nil
}

// DurationSeconds is the total allotted time in seconds.
func (e Exam) DurationSeconds() int {
	return e.DurationMinutes * 60
}

// AccessExpired reports whether the access deadline is strictly before now.
func (e Exam) AccessExpired(now time.Time) bool {
	return e.EndDate != nil && now.After(*e.EndDate)
}

// Ledger maps question ids to chosen option indexes. Unanswered questions have no key.
type Ledger map[string]int

// Clone returns an independent copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// CategoryStats aggregates one category of a result.
type CategoryStats struct {
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Empty     int     `json:"empty"`
	Net       float64 `json:"net"`
}

// LessonStats aggregates one lesson of a result.
type LessonStats struct {
	Correct   int      `json:"correct"`
	Incorrect int      `json:"incorrect"`
	Empty     int      `json:"empty"`
	Total     int      `json:"total"`
	Category  Category `json:"category"`
}

// Result is the immutable outcome of a finished session.
type Result struct {
	ID           string                 `json:"id"`
	ExamID       string                 `json:"examId"`
	ExamTitle    string                 `json:"examTitle"`
	StudentName  string                 `json:"studentName"`
	Foundational CategoryStats          `json:"tbt"`
	Clinical     CategoryStats          `json:"kbt"`
	Lessons      map[string]LessonStats `json:"detailedStats"`
	ScoreK       float64                `json:"scoreK"`
	ScoreT       float64                `json:"scoreT"`
	TotalNet     float64                `json:"totalNet"`
	CompletedAt  time.Time              `json:"date"`
	Answers      Ledger                 `json:"userAnswers"`
}

// Clone returns a copy that shares no maps with r.
func (r Result) Clone() Result {
	out := r
	out.Answers = r.Answers.Clone()
	if r.Lessons != nil {
		out.Lessons = make(map[string]LessonStats, len(r.Lessons))
		for k, v := range r.Lessons {
			out.Lessons[k] = v
		}
	}
	return out
}

// LeaderboardEntry is a ranked view of one result.
type LeaderboardEntry struct {
	Rank            int       `json:"rank"`
	ResultID        string    `json:"resultId"`
	StudentName     string    `json:"studentName"`
	FoundationalNet float64   `json:"tbtNet"`
	ClinicalNet     float64   `json:"kbtNet"`
	TotalNet        float64   `json:"totalNet"`
	CompletedAt     time.Time `json:"date"`
}

// Leaderboard captures the ordered ranking of one exam.
type Leaderboard struct {
	ExamID    string             `json:"examId"`
	ExamTitle string             `json:"examTitle,omitempty"`
	Entries   []LeaderboardEntry `json:"entries"`
	Total     int                `json:"total"`
}

// AnswerSource tells whether a draft's answer key came from the text.
type AnswerSource string

const (
	AnswerDetected  AnswerSource = "detected"
	AnswerDefaulted AnswerSource = "defaulted"
)

// AnswerKey is the correct option of a parsed draft and where it came from.
type AnswerKey struct {
	Index  int          `json:"index"`
	Source AnswerSource `json:"source"`
}

// Confirmed reports whether the key was read from an explicit marker.
func (k AnswerKey) Confirmed() bool {
	return k.Source == AnswerDetected
}

// QuestionDraft is the output of the bulk question parser.
type QuestionDraft struct {
	Text    string    `json:"text"`
	Options []string  `json:"options"`
	Answer  AnswerKey `json:"answer"`
}

// Outcome classifies a single answered question.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeEmpty     Outcome = "empty"
)

// ReviewItem is one row of the answer sheet shown after finishing.
type ReviewItem struct {
	Number        int      `json:"number"`
	QuestionID    string   `json:"questionId"`
	Text          string   `json:"text"`
	Category      Category `json:"category"`
	Lesson        string   `json:"lesson"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	Chosen        *int     `json:"chosen,omitempty"`
	Outcome       Outcome  `json:"outcome"`
}

// Phase is the lifecycle stage of an exam session.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
)

// LowTimeThreshold marks the final stretch of a session.
const LowTimeThreshold = 5 * 60

// SessionState is a snapshot of a session for transports.
type SessionState struct {
	SessionID     string `json:"sessionId"`
	ExamID        string `json:"examId"`
	StudentName   string `json:"studentName"`
	Phase         Phase  `json:"phase"`
	Current       int    `json:"current"`
	QuestionCount int    `json:"questionCount"`
	Remaining     int    `json:"remaining"`
	RemainingText string `json:"remainingText"`
	LowTime       bool   `json:"lowTime"`
	Answered      int    `json:"answered"`
	Answers       Ledger `json:"answers"`
	ResultID      string `json:"resultId,omitempty"`
	// SaveFailed is set while a finished result is waiting for a retried save.
	SaveFailed bool `json:"saveFailed,omitempty"`
}

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Role is the capability level of a caller.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Actor is the explicit caller context passed to gated operations.
type Actor struct {
	Name string
	Role Role
}

// IsAdmin reports whether the actor may use authoring operations.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
