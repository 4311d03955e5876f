package app

import (
	"strings"
	"sync"
	"time"

	"dus-exam-service/internal/domain"
	"dus-exam-service/internal/scoring"
)

// Session drives one timed attempt: NotStarted -> InProgress -> Finished.
// It owns the answer ledger, the question pointer and the countdown timer.
type Session struct {
	id    string
	exam  domain.Exam
	now   func() time.Time
	newID func() string

	mu          sync.Mutex
	phase       domain.Phase
	studentName string
	current     int
	remaining   int
	ledger      domain.Ledger
	timer       *Timer
	result      *domain.Result
	saving      bool
	saveFailed  bool
	persisted   bool
	subscribers map[chan domain.SessionState]struct{}
}

// NewSession prepares a not-yet-started attempt of exam.
func NewSession(id string, exam domain.Exam, now func() time.Time, newID func() string) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:          id,
		exam:        exam,
		now:         now,
		newID:       newID,
		phase:       domain.PhaseNotStarted,
		ledger:      make(domain.Ledger),
		subscribers: make(map[chan domain.SessionState]struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Exam() domain.Exam {
	return s.exam
}

func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Start confirms the student name and begins the countdown. The access
// deadline is evaluated against the session clock at this moment.
func (s *Session) Start(studentName string) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseNotStarted {
		return s.snapshotLocked(), domain.ErrAlreadyStarted
	}
	if s.exam.AccessExpired(s.now()) {
		return s.snapshotLocked(), domain.ErrAccessExpired
	}
	name := strings.TrimSpace(studentName)
	if name == "" {
		return s.snapshotLocked(), domain.ErrEmptyStudentName
	}

	s.studentName = name
	s.remaining = s.exam.DurationSeconds()
	s.current = 0
	s.phase = domain.PhaseInProgress
	return s.broadcastLocked(), nil
}

// SelectOption records an answer for the currently viewed question. Earlier
// answers may be changed until the session finishes.
func (s *Session) SelectOption(questionID string, option int) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseInProgress {
		return s.snapshotLocked(), domain.ErrNotInProgress
	}
	if len(s.exam.Questions) == 0 || s.exam.Questions[s.current].ID != questionID {
		return s.snapshotLocked(), domain.ErrQuestionNotCurrent
	}
	limit := len(s.exam.Questions[s.current].Options)
	if limit == 0 {
		limit = domain.OptionCount
	}
	if option < 0 || option >= limit {
		return s.snapshotLocked(), domain.ErrOptionOutOfRange
	}

	s.ledger[questionID] = option
	return s.broadcastLocked(), nil
}

// Navigate moves the pointer by delta, clamped to the question range.
func (s *Session) Navigate(delta int) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseInProgress {
		return s.snapshotLocked(), domain.ErrNotInProgress
	}
	s.current = s.clampLocked(s.current + delta)
	return s.broadcastLocked(), nil
}

// Jump moves the pointer to index, clamped to the question range.
func (s *Session) Jump(index int) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseInProgress {
		return s.snapshotLocked(), domain.ErrNotInProgress
	}
	s.current = s.clampLocked(index)
	return s.broadcastLocked(), nil
}

func (s *Session) clampLocked(i int) int {
	last := len(s.exam.Questions) - 1
	if i > last {
		i = last
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Tick advances the countdown by one second. It reports whether time just
// ran out and whether the session is still running.
func (s *Session) Tick() (expired bool, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseInProgress {
		return false, false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	s.broadcastLocked()
	return s.remaining == 0, true
}

// runTimer attaches a countdown that calls onExpire once time runs out.
func (s *Session) runTimer(interval time.Duration, onExpire func()) {
	s.mu.Lock()
	if s.phase != domain.PhaseInProgress || s.timer != nil {
		s.mu.Unlock()
		return
	}
	timer := NewTimer(interval)
	s.timer = timer
	s.mu.Unlock()

	timer.Run(func() bool {
		expired, running := s.Tick()
		if expired {
			onExpire()
			return false
		}
		return running
	})
}

// complete moves the session to Finished and scores it exactly once. The
// second return value tells the caller whether the result still has to be
// persisted; it is false while a save is in flight or after it succeeded.
func (s *Session) complete() (domain.Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case domain.PhaseNotStarted:
		return domain.Result{}, false, domain.ErrNotInProgress
	case domain.PhaseInProgress:
		if s.timer != nil {
			s.timer.Stop()
		}
		s.phase = domain.PhaseFinished
		result := scoring.Compute(s.exam, s.studentName, s.ledger, s.now())
		if s.newID != nil {
			result.ID = s.newID()
		}
		s.result = &result
		s.saving = true
		s.broadcastLocked()
		return result.Clone(), true, nil
	default:
		if s.persisted || s.saving {
			return s.result.Clone(), false, nil
		}
		s.saving = true
		s.saveFailed = false
		s.broadcastLocked()
		return s.result.Clone(), true, nil
	}
}

func (s *Session) markSaved(resultID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	s.saveFailed = false
	s.persisted = true
	s.result.ID = resultID
	s.broadcastLocked()
}

// markSaveFailed keeps the scored result for a later retry and tells subscribers.
func (s *Session) markSaveFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	s.saveFailed = true
	s.broadcastLocked()
}

// abandon stops the countdown without scoring.
func (s *Session) abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Result returns the computed result once the session has finished.
func (s *Session) Result() (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.Result{}, false
	}
	return s.result.Clone(), true
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of state snapshots, starting with the current
// one, and its cancel function. Slow readers lose the oldest snapshots.
func (s *Session) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// Fresh buffer: the first snapshot never blocks.
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.SessionState {
	state := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// Drop the oldest snapshot so a slow reader never blocks the clock.
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
	return state
}

func (s *Session) snapshotLocked() domain.SessionState {
	state := domain.SessionState{
		SessionID:     s.id,
		ExamID:        s.exam.ID,
		StudentName:   s.studentName,
		Phase:         s.phase,
		Current:       s.current,
		QuestionCount: len(s.exam.Questions),
		Remaining:     s.remaining,
		RemainingText: domain.FormatRemaining(s.remaining),
		LowTime:       s.phase == domain.PhaseInProgress && s.remaining < domain.LowTimeThreshold,
		Answered:      len(s.ledger),
		Answers:       s.ledger.Clone(),
		SaveFailed:    s.saveFailed,
	}
	if s.result != nil && s.persisted {
		state.ResultID = s.result.ID
	}
	return state
}
