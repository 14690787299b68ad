package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"

	"github.com/pkg/errors"
)

const defaultDisplayName = "User"

type Options struct {
	Location     *time.Location
	Now          func() time.Time
	LoadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// observer is one Subscribe callback. last is the newest version it was given
// and is only touched under pubMu.
type observer struct {
	fn   func(State)
	last uint64
}

// Store owns one client's identity, module progress and quiz history.
//
// Every mutation publishes a full snapshot to all observers. Progress and
// history writes are applied in memory first and then sent to the document
// store once; a failed remote write is logged and reported in State.Sync but
// never rolled back.
type Store struct {
	auth IdentityProvider
	docs DocumentStore
	opts Options

	mu          sync.Mutex
	state       State
	generation  uint64
	observers   map[uint64]*observer
	nextID      uint64
	unsubscribe func()
	closed      bool

	// pubMu serialises delivery so observers never see an older version after a newer one.
	pubMu     sync.Mutex
	delivered uint64

	initialAuth     chan struct{}
	initialAuthOnce sync.Once
	loads           sync.WaitGroup
}

func NewStore(auth IdentityProvider, docs DocumentStore, opts Options) *Store {
	return &Store{
		auth:        auth,
		docs:        docs,
		opts:        opts.withDefaults(),
		state:       initialState(),
		observers:   make(map[uint64]*observer),
		initialAuth: make(chan struct{}),
	}
}

// Init subscribes to the provider's auth state. Calling it twice is a no-op.
func (s *Store) Init() {
	s.mu.Lock()
	if s.unsubscribe != nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.unsubscribe = func() {}
	s.mu.Unlock()

	unsubscribe := s.auth.OnAuthStateChanged(s.handleAuthState)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// Close detaches from the provider and drops every observer.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.observers = make(map[uint64]*observer)
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.initialAuthOnce.Do(func() { close(s.initialAuth) })
}

// Subscribe delivers the current snapshot to fn, then every later one.
// fn must not call mutating Store methods synchronously.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	snap := s.state.clone()
	s.observers[id] = &observer{fn: fn, last: snap.Version}
	s.mu.Unlock()

	fn(snap)

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) Identity() *models.Identity {
	return s.Snapshot().Identity
}

func (s *Store) SessionToken() string {
	return s.auth.SessionToken()
}

// AwaitInitialAuth blocks until the provider has reported the first auth state.
func (s *Store) AwaitInitialAuth(ctx context.Context) error {
	select {
	case <-s.initialAuth:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for initial auth state")
	}
}

// SignUp creates an account, attaches displayName and makes sure the user document exists.
func (s *Store) SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error) {
	identity, err := s.auth.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if displayName != "" {
		if err := s.auth.UpdateProfile(ctx, displayName); err != nil {
			log.Printf("Warning: failed to set display name for %s: %v", identity.UID, err)
		} else {
			identity.DisplayName = displayName
		}
	}

	s.ensureProfile(ctx, identity)
	return identity, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	return s.auth.SignIn(ctx, email, password)
}

// SignInWithExternalProvider completes the single-sign-on flow with credential.
// A dismissed flow comes back as an IdentityError with CodePopupClosedByUser.
func (s *Store) SignInWithExternalProvider(ctx context.Context, credential string) (*models.Identity, error) {
	identity, err := s.auth.SignInWithProvider(ctx, credential)
	if err != nil {
		return nil, err
	}
	s.ensureProfile(ctx, identity)
	return identity, nil
}

// SignOut resets progress and history in memory and ends the provider session.
// It never fails; provider errors are logged.
func (s *Store) SignOut(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.resetLocked()
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)

	if err := s.auth.SignOut(ctx); err != nil {
		log.Printf("Error signing out: %v", err)
	}
}

// MarkModuleComplete sets progress[key] to true. It is a no-op without an identity.
func (s *Store) MarkModuleComplete(ctx context.Context, key string) error {
	if !models.IsModuleKey(key) {
		return models.ErrUnknownModule
	}

	s.mu.Lock()
	identity := s.state.Identity
	if identity == nil {
		s.mu.Unlock()
		return nil
	}
	uid := identity.UID
	s.state.Progress[key] = true
	s.state.Sync.Pending++
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)

	s.syncRemote(ctx, "mark-module-complete", uid, func(ctx context.Context) error {
		return s.docs.UpdateFields(ctx, uid, map[string]any{"progress." + key: true})
	})
	return nil
}

// ResetAllProgress sets every module back to false. It is a no-op without an identity.
func (s *Store) ResetAllProgress(ctx context.Context) {
	s.mu.Lock()
	identity := s.state.Identity
	if identity == nil {
		s.mu.Unlock()
		return
	}
	uid := identity.UID
	s.state.Progress = models.DefaultProgress()
	s.state.Sync.Pending++
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)

	fields := make(map[string]any, len(models.Modules))
	for _, key := range models.ModuleKeys() {
		fields["progress."+key] = false
	}
	s.syncRemote(ctx, "reset-progress", uid, func(ctx context.Context) error {
		return s.docs.UpdateFields(ctx, uid, fields)
	})
}

// RecordQuizAnswer appends today's answer to the history. It is a no-op without an identity.
func (s *Store) RecordQuizAnswer(ctx context.Context, questionID int, correct bool) {
	now := s.opts.Now()
	record := models.QuizRecord{
		QuestionID: questionID,
		Correct:    correct,
		Date:       models.CalendarDay(now, s.opts.Location),
		Timestamp:  now.UnixMilli(),
	}

	s.mu.Lock()
	identity := s.state.Identity
	if identity == nil {
		s.mu.Unlock()
		return
	}
	uid := identity.UID
	s.state.QuizHistory = append(s.state.QuizHistory, record)
	s.state.Sync.Pending++
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)

	s.syncRemote(ctx, "record-quiz-answer", uid, func(ctx context.Context) error {
		return s.docs.AppendToArray(ctx, uid, "quizHistory", record)
	})
}

func (s *Store) handleAuthState(identity *models.Identity) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	previous := s.state.Identity
	s.state.LoadingInitialAuth = false

	load := false
	switch {
	case identity == nil:
		if previous != nil {
			s.generation++
			s.resetLocked()
		}
		s.state.Identity = nil
	case previous == nil || previous.UID != identity.UID:
		s.generation++
		if previous != nil {
			s.resetLocked()
		}
		id := *identity
		s.state.Identity = &id
		s.state.LoadingProfile = true
		load = true
	default:
		id := *identity
		s.state.Identity = &id
	}

	generation := s.generation
	if load {
		s.loads.Add(1)
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.initialAuthOnce.Do(func() { close(s.initialAuth) })
	s.publish(snap)

	if load {
		go s.loadProfile(identity.UID, generation)
	}
}

// loadProfile fetches the user document and merges it into memory. The result
// is dropped when the identity changed while the read was running.
func (s *Store) loadProfile(uid string, generation uint64) {
	defer s.loads.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.LoadTimeout)
	defer cancel()

	doc, err := s.docs.Read(ctx, uid)

	s.mu.Lock()
	if s.closed || generation != s.generation {
		s.mu.Unlock()
		log.Printf("Discarding stale profile load for %s", uid)
		return
	}
	s.state.LoadingProfile = false
	if err != nil {
		perr := &models.PersistenceError{Op: "load-profile", UID: uid, Err: err}
		log.Printf("Error loading progress: %v", perr)
		s.recordSyncErrorLocked(perr)
	} else if doc != nil {
		s.mergeLocked(doc)
	}
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// mergeLocked folds a stored document into memory. Completion flags are OR-ed
// so a flag set before the load finished is kept. History keeps the stored
// order and then any local record the stored copy does not have yet.
func (s *Store) mergeLocked(doc *models.UserDocument) {
	for key, done := range doc.Progress {
		if done && models.IsModuleKey(key) {
			s.state.Progress[key] = true
		}
	}

	merged := append([]models.QuizRecord{}, doc.QuizHistory...)
	for _, r := range s.state.QuizHistory {
		if !containsRecord(doc.QuizHistory, r) {
			merged = append(merged, r)
		}
	}
	s.state.QuizHistory = merged
}

func containsRecord(records []models.QuizRecord, r models.QuizRecord) bool {
	for _, existing := range records {
		if existing == r {
			return true
		}
	}
	return false
}

// ensureProfile creates the user document with default progress when it is missing.
func (s *Store) ensureProfile(ctx context.Context, identity *models.Identity) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
	defer cancel()

	existing, err := s.docs.Read(ctx, identity.UID)
	if err != nil {
		s.syncFailed(&models.PersistenceError{Op: "ensure-profile", UID: identity.UID, Err: err})
		return
	}
	if existing != nil {
		return
	}

	name := identity.DisplayName
	if name == "" {
		name = defaultDisplayName
	}
	doc := &models.UserDocument{
		UID:         identity.UID,
		DisplayName: name,
		Email:       identity.Email,
		CreatedAt:   s.opts.Now().UnixMilli(),
		Progress:    models.DefaultProgress(),
		QuizHistory: []models.QuizRecord{},
	}
	if err := s.docs.Write(ctx, identity.UID, doc, true); err != nil {
		s.syncFailed(&models.PersistenceError{Op: "ensure-profile", UID: identity.UID, Err: err})
		return
	}
	log.Printf("Created profile document for %s", identity.UID)
}

func (s *Store) syncRemote(ctx context.Context, op, uid string, write func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
	defer cancel()

	err := write(ctx)

	s.mu.Lock()
	s.state.Sync.Pending--
	if err != nil {
		perr := &models.PersistenceError{Op: op, UID: uid, Err: err}
		log.Printf("Error syncing progress: %v", perr)
		s.recordSyncErrorLocked(perr)
	}
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Store) syncFailed(err error) {
	log.Printf("Error syncing progress: %v", err)
	s.mu.Lock()
	s.recordSyncErrorLocked(err)
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Store) recordSyncErrorLocked(err error) {
	s.state.Sync.LastError = err.Error()
	s.state.Sync.LastErrorAt = s.opts.Now().UnixMilli()
}

func (s *Store) resetLocked() {
	s.state.Progress = models.DefaultProgress()
	s.state.QuizHistory = []models.QuizRecord{}
	s.state.LoadingProfile = false
}

func (s *Store) commitLocked() State {
	s.state.Version++
	return s.state.clone()
}

func (s *Store) publish(snap State) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version

	s.mu.Lock()
	observers := make([]*observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		if snap.Version <= o.last {
			continue
		}
		o.last = snap.Version
		o.fn(snap.clone())
	}
}
