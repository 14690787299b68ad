package daily

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/quizbank"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/session"
)

// UnknownChoice stands in for the selected option when only the correctness of
// an earlier wrong answer is known.
const UnknownChoice = -1

const (
	SourceHistory = "history"
	SourceLocal   = "local"
)

// ErrProfileLoading is returned by Submit while the signed-in identity's
// stored history has not been merged yet.
var ErrProfileLoading = errors.New("profile is still loading")

// LocalStore holds the single guest answer slot per client. Get returns
// (nil, nil) when the slot is empty.
type LocalStore interface {
	GetLocalAnswer(ctx context.Context, clientID string) (*models.LocalAnswer, error)
	SaveLocalAnswer(ctx context.Context, clientID string, answer *models.LocalAnswer) error
}

// Session is the part of session.Store the selector reads and reports to.
type Session interface {
	Snapshot() session.State
	RecordQuizAnswer(ctx context.Context, questionID int, correct bool)
}

// State is today's question as one client sees it. Loading is set while a
// signed-in identity's history is still loading, when Answered is not known yet.
type State struct {
	Date     string              `json:"date"`
	Question models.QuizQuestion `json:"question"`
	Answered bool                `json:"answered"`
	Selected *int                `json:"selected,omitempty"`
	Correct  *bool               `json:"correct,omitempty"`
	Source   string              `json:"source,omitempty"`
	Loading  bool                `json:"loading,omitempty"`
}

type clientLock struct {
	mu   sync.Mutex
	refs int
}

type Selector struct {
	bank  *quizbank.Bank
	local LocalStore
	loc   *time.Location
	now   func() time.Time

	// locks makes the answered check and the write one step per client.
	locksMu sync.Mutex
	locks   map[string]*clientLock
}

func NewSelector(bank *quizbank.Bank, local LocalStore, loc *time.Location, now func() time.Time) *Selector {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Selector{bank: bank, local: local, loc: loc, now: now, locks: make(map[string]*clientLock)}
}

// lockClient serialises Submit calls of one client and returns the unlock func.
func (s *Selector) lockClient(clientID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[clientID]
	if !ok {
		l = &clientLock{}
		s.locks[clientID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, clientID)
		}
		s.locksMu.Unlock()
	}
}

// DayOfYear counts days since January 0 of t's year in t's location, so January 1st is 1.
func DayOfYear(t time.Time) int {
	return t.YearDay()
}

// IndexFor picks the bank index for the calendar day of t.
func IndexFor(t time.Time, bankSize int) int {
	return DayOfYear(t) % bankSize
}

// QuestionFor returns the question of the local calendar day containing t.
func (s *Selector) QuestionFor(t time.Time) models.QuizQuestion {
	return s.bank.At(IndexFor(t.In(s.loc), s.bank.Len()))
}

func (s *Selector) Today() models.QuizQuestion {
	return s.QuestionFor(s.now())
}

// State resolves whether clientID has answered today's question. A quiz
// history entry of the signed-in identity wins over the guest slot.
func (s *Selector) State(ctx context.Context, clientID string, sess Session) State {
	now := s.now()
	day := models.CalendarDay(now, s.loc)
	q := s.QuestionFor(now)
	st := State{Date: day, Question: q}

	snap := sess.Snapshot()
	if snap.Identity != nil {
		if rec, ok := snap.HistoryFor(day); ok {
			selected := UnknownChoice
			if rec.Correct {
				selected = q.Correct
			}
			correct := rec.Correct
			st.Answered = true
			st.Selected = &selected
			st.Correct = &correct
			st.Source = SourceHistory
			return st
		}
		if snap.LoadingProfile {
			st.Loading = true
			return st
		}
	}

	answer, err := s.local.GetLocalAnswer(ctx, clientID)
	if err != nil {
		log.Printf("Warning: failed to read local quiz answer for %s: %v", clientID, err)
		return st
	}
	if answer != nil && answer.Date == day {
		selected := answer.Selected
		correct := q.IsCorrect(selected)
		st.Answered = true
		st.Selected = &selected
		st.Correct = &correct
		st.Source = SourceLocal
	}
	return st
}

// Submit answers today's question once. A second call the same day returns the
// first answer unchanged. The guest slot is always written; the identity's
// history only when someone is signed in. While that history is loading the
// answer is refused with ErrProfileLoading.
func (s *Selector) Submit(ctx context.Context, clientID string, option int, sess Session) (State, bool, error) {
	unlock := s.lockClient(clientID)
	defer unlock()

	st := s.State(ctx, clientID, sess)
	if st.Answered {
		return st, false, nil
	}
	if st.Loading {
		return st, false, ErrProfileLoading
	}
	if option < 0 || option >= len(st.Question.Options) {
		return st, false, models.ErrInvalidOption
	}

	answer := &models.LocalAnswer{Date: st.Date, QuestionID: st.Question.ID, Selected: option}
	if err := s.local.SaveLocalAnswer(ctx, clientID, answer); err != nil {
		log.Printf("Warning: failed to save local quiz answer for %s: %v", clientID, err)
	}

	correct := st.Question.IsCorrect(option)
	if sess.Snapshot().Identity != nil {
		sess.RecordQuizAnswer(ctx, st.Question.ID, correct)
	}

	st.Answered = true
	st.Selected = &option
	st.Correct = &correct
	st.Source = SourceLocal
	return st, true, nil
}
