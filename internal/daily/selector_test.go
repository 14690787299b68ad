package daily

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/quizbank"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/session"
)

type recordedAnswer struct {
	questionID int
	correct    bool
}

type fakeSession struct {
	state    session.State
	recorded []recordedAnswer
}

func (f *fakeSession) Snapshot() session.State {
	return f.state
}

func (f *fakeSession) RecordQuizAnswer(_ context.Context, questionID int, correct bool) {
	if f.state.Identity == nil {
		return
	}
	f.recorded = append(f.recorded, recordedAnswer{questionID, correct})
}

type fakeLocal struct {
	mu      sync.Mutex
	answers map[string]*models.LocalAnswer
	err     error
	saves   int
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{answers: make(map[string]*models.LocalAnswer)}
}

func (f *fakeLocal) GetLocalAnswer(_ context.Context, clientID string) (*models.LocalAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.answers[clientID], nil
}

func (f *fakeLocal) SaveLocalAnswer(_ context.Context, clientID string, answer *models.LocalAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	cp := *answer
	f.answers[clientID] = &cp
	return nil
}

func threeQuestionBank(t *testing.T) *quizbank.Bank {
	t.Helper()
	opts := []string{"a", "b", "c", "d"}
	bank, err := quizbank.New([]models.QuizQuestion{
		{ID: 10, Options: opts, Correct: 0, Explanation: "zero"},
		{ID: 11, Options: opts, Correct: 2, Explanation: "one"},
		{ID: 12, Options: opts, Correct: 3, Explanation: "two"},
	})
	if err != nil {
		t.Fatalf("Failed to build bank: %v", err)
	}
	return bank
}

// Jan 4th 2026: day 4, index 1, question 11 with correct option 2.
var today = time.Date(2026, time.January, 4, 15, 0, 0, 0, time.UTC)

func newTestSelector(t *testing.T, local LocalStore) *Selector {
	return NewSelector(threeQuestionBank(t), local, time.UTC, func() time.Time { return today })
}

func signedIn(history ...models.QuizRecord) *fakeSession {
	return &fakeSession{state: session.State{
		Identity:    &models.Identity{UID: "u1"},
		Progress:    models.DefaultProgress(),
		QuizHistory: history,
	}}
}

func TestDayOfYear(t *testing.T) {
	tests := []struct {
		date time.Time
		want int
	}{
		{time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2026, time.January, 1, 23, 59, 59, 0, time.UTC), 1},
		{time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC), 61},
		{time.Date(2024, time.December, 31, 12, 0, 0, 0, time.UTC), 366},
		{time.Date(2026, time.December, 31, 12, 0, 0, 0, time.UTC), 365},
	}

	for _, tt := range tests {
		if got := DayOfYear(tt.date); got != tt.want {
			t.Errorf("DayOfYear(%s): expected %d, got %d", tt.date.Format(time.DateOnly), tt.want, got)
		}
	}
}

func TestIndexFor_ThreeQuestionBank(t *testing.T) {
	jan1 := time.Date(2026, time.January, 1, 8, 0, 0, 0, time.UTC)
	jan4 := time.Date(2026, time.January, 4, 8, 0, 0, 0, time.UTC)

	if got := IndexFor(jan1, 3); got != 1 {
		t.Errorf("Expected day 1 to select index 1, got %d", got)
	}
	if got := IndexFor(jan4, 3); got != 1 {
		t.Errorf("Expected day 4 to select index 1, got %d", got)
	}
}

func TestIndexFor_IsTotalAndPure(t *testing.T) {
	start := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	for d := start; d.Year() < 2026; d = d.AddDate(0, 0, 1) {
		got := IndexFor(d, 7)
		if got < 0 || got >= 7 {
			t.Fatalf("Index %d out of range on %s", got, d.Format(time.DateOnly))
		}
		if got != d.YearDay()%7 || got != IndexFor(d, 7) {
			t.Fatalf("Index not a pure function of the day on %s", d.Format(time.DateOnly))
		}
	}
}

func TestQuestionFor_SameLocalDay(t *testing.T) {
	s := newTestSelector(t, newFakeLocal())

	morning := time.Date(2026, time.January, 4, 0, 0, 1, 0, time.UTC)
	night := time.Date(2026, time.January, 4, 23, 59, 59, 0, time.UTC)

	if s.QuestionFor(morning).ID != s.QuestionFor(night).ID {
		t.Error("Expected the same question for the whole calendar day")
	}
	if s.QuestionFor(morning).ID != 11 {
		t.Errorf("Expected question 11, got %d", s.QuestionFor(morning).ID)
	}
}

func TestQuestionFor_UsesConfiguredZone(t *testing.T) {
	plusTwo := time.FixedZone("UTC+2", 2*60*60)
	s := NewSelector(threeQuestionBank(t), newFakeLocal(), plusTwo, nil)

	// 23:30 UTC on Jan 1st is already Jan 2nd at UTC+2.
	instant := time.Date(2026, time.January, 1, 23, 30, 0, 0, time.UTC)
	if got := s.QuestionFor(instant).ID; got != 12 {
		t.Errorf("Expected local day 2 to pick question 12, got %d", got)
	}
}

func TestSubmit_GuestAnswer(t *testing.T) {
	local := newFakeLocal()
	s := newTestSelector(t, local)
	guest := &fakeSession{state: session.State{Progress: models.DefaultProgress()}}
	ctx := context.Background()

	before := s.State(ctx, "sid-1", guest)
	if before.Answered {
		t.Fatal("Expected today's question to be unanswered")
	}

	st, accepted, err := s.Submit(ctx, "sid-1", 2, guest)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !accepted || !st.Answered {
		t.Fatal("Expected the answer to be accepted")
	}
	if *st.Selected != 2 || !*st.Correct {
		t.Errorf("Expected option 2 marked correct, got selected=%d correct=%v", *st.Selected, *st.Correct)
	}
	if st.Question.Explanation != "one" {
		t.Errorf("Expected explanation of question 11, got %q", st.Question.Explanation)
	}

	want := models.LocalAnswer{Date: "2026-01-04", QuestionID: 11, Selected: 2}
	if got := local.answers["sid-1"]; got == nil || *got != want {
		t.Errorf("Expected local answer %+v, got %+v", want, got)
	}
	if len(guest.recorded) != 0 {
		t.Errorf("Expected no remote write for a guest, got %d", len(guest.recorded))
	}
}

func TestSubmit_SecondAnswerIsIgnored(t *testing.T) {
	local := newFakeLocal()
	s := newTestSelector(t, local)
	sess := signedIn()
	ctx := context.Background()

	if _, _, err := s.Submit(ctx, "sid-1", 0, sess); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	sess.state.QuizHistory = append(sess.state.QuizHistory, models.QuizRecord{QuestionID: 11, Correct: false, Date: "2026-01-04"})

	st, accepted, err := s.Submit(ctx, "sid-1", 2, sess)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if accepted {
		t.Error("Expected the second answer to be rejected")
	}
	if *st.Correct {
		t.Error("Expected the first, wrong answer to stand")
	}
	if len(sess.recorded) != 1 || local.saves != 1 {
		t.Errorf("Expected exactly one write, got %d recorded and %d saved", len(sess.recorded), local.saves)
	}
}

func TestSubmit_SignedInRecordsHistory(t *testing.T) {
	local := newFakeLocal()
	s := newTestSelector(t, local)
	sess := signedIn()

	st, _, err := s.Submit(context.Background(), "sid-1", 1, sess)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(sess.recorded) != 1 {
		t.Fatalf("Expected one recorded answer, got %d", len(sess.recorded))
	}
	if sess.recorded[0] != (recordedAnswer{questionID: 11, correct: false}) {
		t.Errorf("Unexpected recorded answer %+v", sess.recorded[0])
	}
	if local.answers["sid-1"] == nil {
		t.Error("Expected the local slot to be written for a signed-in user too")
	}
	if *st.Correct {
		t.Error("Expected option 1 to be wrong")
	}
}

func TestSubmit_RejectsOutOfRangeOption(t *testing.T) {
	local := newFakeLocal()
	s := newTestSelector(t, local)

	for _, option := range []int{-1, 4} {
		_, accepted, err := s.Submit(context.Background(), "sid-1", option, signedIn())
		if !errors.Is(err, models.ErrInvalidOption) {
			t.Errorf("Option %d: expected ErrInvalidOption, got %v", option, err)
		}
		if accepted {
			t.Errorf("Option %d: expected no answer to be stored", option)
		}
	}
	if local.saves != 0 {
		t.Errorf("Expected nothing saved, got %d saves", local.saves)
	}
}

func TestState_Gating(t *testing.T) {
	tests := []struct {
		name         string
		sess         *fakeSession
		local        *models.LocalAnswer
		wantAnswered bool
		wantSelected int
		wantCorrect  bool
		wantSource   string
	}{
		{
			name:         "history correct",
			sess:         signedIn(models.QuizRecord{QuestionID: 11, Correct: true, Date: "2026-01-04"}),
			wantAnswered: true,
			wantSelected: 2,
			wantCorrect:  true,
			wantSource:   SourceHistory,
		},
		{
			name:         "history wrong uses sentinel",
			sess:         signedIn(models.QuizRecord{QuestionID: 11, Correct: false, Date: "2026-01-04"}),
			wantAnswered: true,
			wantSelected: UnknownChoice,
			wantCorrect:  false,
			wantSource:   SourceHistory,
		},
		{
			name:         "history wins over local slot",
			sess:         signedIn(models.QuizRecord{QuestionID: 11, Correct: true, Date: "2026-01-04"}),
			local:        &models.LocalAnswer{Date: "2026-01-04", QuestionID: 11, Selected: 0},
			wantAnswered: true,
			wantSelected: 2,
			wantCorrect:  true,
			wantSource:   SourceHistory,
		},
		{
			name:         "history from another day",
			sess:         signedIn(models.QuizRecord{QuestionID: 10, Correct: true, Date: "2026-01-03"}),
			wantAnswered: false,
		},
		{
			name:         "guest local slot today",
			sess:         &fakeSession{},
			local:        &models.LocalAnswer{Date: "2026-01-04", QuestionID: 11, Selected: 3},
			wantAnswered: true,
			wantSelected: 3,
			wantCorrect:  false,
			wantSource:   SourceLocal,
		},
		{
			name:         "guest local slot yesterday",
			sess:         &fakeSession{},
			local:        &models.LocalAnswer{Date: "2026-01-03", QuestionID: 10, Selected: 0},
			wantAnswered: false,
		},
		{
			name:         "guest ignores history without identity",
			sess:         &fakeSession{state: session.State{QuizHistory: []models.QuizRecord{{Date: "2026-01-04", Correct: true}}}},
			wantAnswered: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := newFakeLocal()
			if tt.local != nil {
				local.answers["sid-1"] = tt.local
			}
			s := newTestSelector(t, local)

			st := s.State(context.Background(), "sid-1", tt.sess)
			if st.Answered != tt.wantAnswered {
				t.Fatalf("Expected answered=%v, got %v", tt.wantAnswered, st.Answered)
			}
			if !tt.wantAnswered {
				if st.Selected != nil || st.Correct != nil {
					t.Error("Expected no selection for an unanswered question")
				}
				return
			}
			if *st.Selected != tt.wantSelected {
				t.Errorf("Expected selected %d, got %d", tt.wantSelected, *st.Selected)
			}
			if *st.Correct != tt.wantCorrect {
				t.Errorf("Expected correct=%v, got %v", tt.wantCorrect, *st.Correct)
			}
			if st.Source != tt.wantSource {
				t.Errorf("Expected source %q, got %q", tt.wantSource, st.Source)
			}
		})
	}
}

func TestState_LocalStoreFailureReadsAsUnanswered(t *testing.T) {
	local := newFakeLocal()
	local.err = errors.New("connection refused")
	s := newTestSelector(t, local)

	if s.State(context.Background(), "sid-1", &fakeSession{}).Answered {
		t.Error("Expected a failing local store to read as unanswered")
	}
}

// A guest answer made before signing in keeps gating the question through the
// local slot, but it never reaches the identity's quiz history.
func TestState_GuestAnswerThenSignInDiverges(t *testing.T) {
	local := newFakeLocal()
	s := newTestSelector(t, local)
	ctx := context.Background()
	sess := &fakeSession{state: session.State{Progress: models.DefaultProgress()}}

	if _, _, err := s.Submit(ctx, "sid-1", 2, sess); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sess.state.Identity = &models.Identity{UID: "u1"}

	st := s.State(ctx, "sid-1", sess)
	if !st.Answered || st.Source != SourceLocal {
		t.Errorf("Expected the guest answer to gate via the local slot, got answered=%v source=%q", st.Answered, st.Source)
	}
	if len(sess.recorded) != 0 || len(sess.state.QuizHistory) != 0 {
		t.Error("Expected the guest answer to stay out of the quiz history")
	}

	if _, accepted, _ := s.Submit(ctx, "sid-1", 1, sess); accepted {
		t.Error("Expected no second answer after signing in on the same day")
	}
	if len(sess.recorded) != 0 {
		t.Error("Expected no history record to be written after signing in")
	}
}

// slowSession holds RecordQuizAnswer until release is closed.
type slowSession struct {
	*fakeSession
	started chan struct{}
	release chan struct{}
}

func (s *slowSession) RecordQuizAnswer(ctx context.Context, questionID int, correct bool) {
	close(s.started)
	<-s.release
	s.fakeSession.RecordQuizAnswer(ctx, questionID, correct)
}

func TestSubmit_SlowRemoteWriteDoesNotBlockOtherClients(t *testing.T) {
	s := newTestSelector(t, newFakeLocal())
	ctx := context.Background()

	slow := &slowSession{fakeSession: signedIn(), started: make(chan struct{}), release: make(chan struct{})}
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		s.Submit(ctx, "sid-1", 2, slow)
	}()
	<-slow.started

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Submit(ctx, "sid-2", 1, &fakeSession{})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Expected another client's answer to complete while the first remote write is pending")
	}

	close(slow.release)
	<-firstDone
	if len(slow.recorded) != 1 {
		t.Errorf("Expected the slow answer to be recorded once, got %d", len(slow.recorded))
	}
}

func TestSubmit_ConcurrentAnswersOfOneClient(t *testing.T) {
	local := newFakeLocal()
	s := newTestSelector(t, local)
	guest := &fakeSession{}

	var wg sync.WaitGroup
	accepted := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(option int) {
			defer wg.Done()
			_, ok, err := s.Submit(context.Background(), "sid-1", option, guest)
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			accepted <- ok
		}(i % 4)
	}
	wg.Wait()
	close(accepted)

	count := 0
	for ok := range accepted {
		if ok {
			count++
		}
	}
	if count != 1 || local.saves != 1 {
		t.Errorf("Expected exactly one accepted answer, got %d accepted and %d saves", count, local.saves)
	}
	if len(s.locks) != 0 {
		t.Errorf("Expected client locks to be released, %d left", len(s.locks))
	}
}

func TestSubmit_RefusedWhileProfileLoads(t *testing.T) {
	local := newFakeLocal()
	s := newTestSelector(t, local)
	sess := signedIn()
	sess.state.LoadingProfile = true
	ctx := context.Background()

	st := s.State(ctx, "sid-1", sess)
	if !st.Loading || st.Answered {
		t.Fatalf("Expected a loading, unanswered state, got loading=%v answered=%v", st.Loading, st.Answered)
	}

	_, accepted, err := s.Submit(ctx, "sid-1", 2, sess)
	if !errors.Is(err, ErrProfileLoading) {
		t.Errorf("Expected ErrProfileLoading, got %v", err)
	}
	if accepted || len(sess.recorded) != 0 || local.saves != 0 {
		t.Errorf("Expected nothing written, got accepted=%v recorded=%d saves=%d", accepted, len(sess.recorded), local.saves)
	}

	sess.state.LoadingProfile = false
	if _, accepted, err := s.Submit(ctx, "sid-1", 2, sess); err != nil || !accepted {
		t.Errorf("Expected the answer once the profile has loaded, got accepted=%v err=%v", accepted, err)
	}
}

func TestState_HistoryKnownWhileProfileLoads(t *testing.T) {
	s := newTestSelector(t, newFakeLocal())
	sess := signedIn(models.QuizRecord{QuestionID: 11, Correct: true, Date: "2026-01-04"})
	sess.state.LoadingProfile = true

	st := s.State(context.Background(), "sid-1", sess)
	if st.Loading || !st.Answered || st.Source != SourceHistory {
		t.Errorf("Expected the in-memory record to answer, got loading=%v answered=%v source=%q", st.Loading, st.Answered, st.Source)
	}
}
