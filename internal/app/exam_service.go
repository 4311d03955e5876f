package app

import (
	"context"
	"time"

	"dus-exam-service/internal/domain"
	"dus-exam-service/internal/parser"
	"dus-exam-service/internal/ranking"
	"dus-exam-service/internal/scoring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// ExamRepository loads exams with their questions (from cache/backing store).
type ExamRepository interface {
	GetExam(ctx context.Context, examID string) (domain.Exam, error)
}

// ResultStore is the append-only result collection.
type ResultStore interface {
	SaveResult(ctx context.Context, result domain.Result) (string, error)
	LoadResult(ctx context.Context, resultID string) (domain.Result, error)
	LoadResultsForExam(ctx context.Context, examID string) ([]domain.Result, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Result, error)
}

// ExamService contains the exam session use cases.
type ExamService struct {
	sessions SessionRepository
	exams    ExamRepository
	results  ResultStore
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
	tick     time.Duration
}

// Option customizes an ExamService.
type Option func(*ExamService)

// WithClock replaces time.Now, mostly for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *ExamService) { s.now = now }
}

// WithTickInterval changes the countdown cadence. One tick is one second of exam time.
func WithTickInterval(d time.Duration) Option {
	return func(s *ExamService) { s.tick = d }
}

// WithIDGenerator replaces the uuid generator for sessions and results.
func WithIDGenerator(gen func() string) Option {
	return func(s *ExamService) { s.newID = gen }
}

func NewExamService(sessions SessionRepository, exams ExamRepository, results ResultStore, log zerolog.Logger, opts ...Option) *ExamService {
	s := &ExamService{
		sessions: sessions,
		exams:    exams,
		results:  results,
		log:      log.With().Str("component", "exam_service").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
		tick:     time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession loads the exam and starts a timed attempt for studentName.
// Nothing is registered when the start is rejected.
func (s *ExamService) StartSession(ctx context.Context, examID, studentName string) (*Session, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, storeError("load exam", err)
	}
	if err := exam.Validate(); err != nil {
		return nil, err
	}

	session := NewSession(s.newID(), exam, s.now, s.newID)
	if _, err := session.Start(studentName); err != nil {
		return nil, err
	}
	s.sessions.Put(session)
	session.runTimer(s.tick, func() {
		if _, err := s.finish(context.Background(), session, true); err != nil {
			s.log.Error().Err(err).Str("session_id", session.ID()).Msg("auto-finish failed")
		}
	})

	s.log.Info().
		Str("session_id", session.ID()).
		Str("exam_id", exam.ID).
		Int("questions", len(exam.Questions)).
		Int("duration_min", exam.DurationMinutes).
		Msg("exam session started")
	return session, nil
}

// SelectOption records an answer on the currently viewed question.
func (s *ExamService) SelectOption(_ context.Context, sessionID, questionID string, option int) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return session.SelectOption(questionID, option)
}

// Navigate moves the question pointer by delta.
func (s *ExamService) Navigate(_ context.Context, sessionID string, delta int) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return session.Navigate(delta)
}

// Jump moves the question pointer to an absolute index.
func (s *ExamService) Jump(_ context.Context, sessionID string, index int) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return session.Jump(index)
}

// State returns the current snapshot of a session.
func (s *ExamService) State(_ context.Context, sessionID string) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return session.State(), nil
}

// Finish ends the session and persists its result. forced marks a timer
// expiry; explicit finishes come from a confirmed student request. Repeated
// calls never rescore: they return the same result, retrying only a save that
// previously failed.
func (s *ExamService) Finish(ctx context.Context, sessionID string, forced bool) (domain.Result, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Result{}, domain.ErrSessionNotFound
	}
	return s.finish(ctx, session, forced)
}

func (s *ExamService) finish(ctx context.Context, session *Session, forced bool) (domain.Result, error) {
	result, needsSave, err := session.complete()
	if err != nil {
		return domain.Result{}, err
	}
	if !needsSave {
		return result, nil
	}

	id, err := s.results.SaveResult(ctx, result)
	if err != nil {
		session.markSaveFailed()
		s.log.Error().Err(err).Str("session_id", session.ID()).Msg("save result failed")
		return result, domain.PersistenceError("save result", err)
	}
	session.markSaved(id)
	result.ID = id

	s.log.Info().
		Str("session_id", session.ID()).
		Str("result_id", id).
		Bool("forced", forced).
		Float64("total_net", result.TotalNet).
		Msg("exam session finished")
	return result, nil
}

// Subscribe returns a channel that receives state snapshots for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ExamService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionState, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Release drops a session. An attempt still in progress is abandoned without a result.
func (s *ExamService) Release(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	if session.Phase() == domain.PhaseInProgress {
		s.log.Warn().Str("session_id", sessionID).Msg("exam session abandoned")
	}
	session.abandon()
	s.sessions.Delete(sessionID)
}

// Result loads a stored result.
func (s *ExamService) Result(ctx context.Context, resultID string) (domain.Result, error) {
	result, err := s.results.LoadResult(ctx, resultID)
	if err != nil {
		return domain.Result{}, storeError("load result", err)
	}
	return result, nil
}

// Review builds the answer sheet of a stored result against the exam's current questions.
func (s *ExamService) Review(ctx context.Context, resultID string) ([]domain.ReviewItem, error) {
	result, err := s.Result(ctx, resultID)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.GetExam(ctx, result.ExamID)
	if err != nil {
		return nil, storeError("load exam", err)
	}
	return scoring.Review(exam, result), nil
}

// Leaderboard ranks every result of an exam and then applies the name search.
// Ranks are computed before filtering.
func (s *ExamService) Leaderboard(ctx context.Context, examID, search string) (domain.Leaderboard, error) {
	results, err := s.results.LoadResultsForExam(ctx, examID)
	if err != nil {
		return domain.Leaderboard{}, storeError("load results", err)
	}
	lb := ranking.Build(examID, results)
	if exam, err := s.exams.GetExam(ctx, examID); err == nil {
		lb.ExamTitle = exam.Title
	}
	return ranking.Filter(lb, search), nil
}

// MyRank returns the position of a result among all results of its exam.
// A result saved moments ago may be missing from a concurrent snapshot; the
// result itself is always counted.
func (s *ExamService) MyRank(ctx context.Context, resultID string) (int, int, error) {
	result, err := s.Result(ctx, resultID)
	if err != nil {
		return 0, 0, err
	}
	results, err := s.results.LoadResultsForExam(ctx, result.ExamID)
	if err != nil {
		return 0, 0, storeError("load results", err)
	}
	if !containsResult(results, resultID) {
		results = append(results, result)
	}
	return ranking.Position(results, resultID)
}

func containsResult(results []domain.Result, id string) bool {
	for _, r := range results {
		if r.ID == id {
			return true
		}
	}
	return false
}

// ParseQuestion decodes pasted question text for the authoring workflow.
func (s *ExamService) ParseQuestion(actor domain.Actor, raw string) (domain.QuestionDraft, error) {
	if !actor.IsAdmin() {
		return domain.QuestionDraft{}, domain.ErrForbidden
	}
	draft, err := parser.ParseQuestionText(raw)
	if err != nil {
		return domain.QuestionDraft{}, err
	}
	if !draft.Answer.Confirmed() {
		s.log.Warn().Str("actor", actor.Name).Msg("no answer marker found, defaulted to option A")
	}
	return draft, nil
}

// RecentResults lists the newest results across all exams for administrators.
func (s *ExamService) RecentResults(ctx context.Context, actor domain.Actor, limit int) ([]domain.Result, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	results, err := s.results.ListRecent(ctx, limit)
	if err != nil {
		return nil, storeError("list results", err)
	}
	return results, nil
}

// storeError keeps not-found errors as they are and marks everything else as
// a persistence failure.
func storeError(op string, err error) error {
	if domain.KindOf(err) == domain.KindNotFound {
		return err
	}
	return domain.PersistenceError(op, err)
}
